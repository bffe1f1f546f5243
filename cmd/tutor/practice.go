package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"grammartutor/internal/config"
	"grammartutor/internal/course"
	"grammartutor/internal/lessons"
	"grammartutor/internal/practice"
)

var followCourse bool

var practiceCmd = &cobra.Command{
	Use:   "practice [lesson] [practice]",
	Short: "Work through a practice in the terminal",
	Long: `Runs a practice in the terminal, starting at the first lesson when none
is given. Type the number of a choice, or the words of the sentence in
order for sentence builders.

  j N   jump to step N (when the practice allows it)
  q     quit`,
	Args: cobra.MaximumNArgs(2),
	RunE: runPracticeCmd,
}

func init() {
	practiceCmd.Flags().BoolVar(&followCourse, "follow", false, "continue into the next practice when one is finished")
}

func runPracticeCmd(cmd *cobra.Command, args []string) error {
	c := course.FromCatalog()
	var lessonID, practiceID string
	switch len(args) {
	case 0:
		var err error
		if lessonID, practiceID, err = firstPractice(c); err != nil {
			return err
		}
	case 1, 2:
		lessonID = args[0]
		l := lessons.GetLesson(lessonID)
		if l == nil {
			return fmt.Errorf("unknown lesson %q", lessonID)
		}
		switch {
		case len(args) == 2:
			practiceID = args[1]
		case len(l.Practices) > 0:
			practiceID = l.Practices[0].ID
		default:
			return fmt.Errorf("lesson %q has no practices", lessonID)
		}
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	mgr := practice.NewManager(practice.Config{
		AdvanceDelay:  config.Duration(cfg.Practice.AdvanceDelay),
		ShakeDuration: config.Duration(cfg.Practice.ShakeDuration),
		SessionTTL:    config.Duration(cfg.Practice.SessionTTL),
		SnapshotTTL:   config.Duration(cfg.Practice.SnapshotTTL),
	}, practice.NewMemoryStore(), nil, c, log)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = mgr.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	return runPractice(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), mgr, lessonID, practiceID, followCourse)
}

// firstPractice returns the first practice of the first lesson that has one.
func firstPractice(c *course.Course) (lessonID, practiceID string, err error) {
	for cur := c.Cursor(""); !cur.Done(); cur.Advance() {
		if l := cur.Lesson(); len(l.Practices) > 0 {
			return l.ID, l.Practices[0].ID, nil
		}
	}
	return "", "", errors.New("no lesson has a practice")
}

// runPractice drives a session from line input until the learner quits, the
// input ends, or the practice (or course, with follow) is finished.
func runPractice(ctx context.Context, in io.Reader, out io.Writer, mgr *practice.Manager, lessonID, practiceID string, follow bool) error {
	s, err := mgr.Start(ctx, 0, lessonID, practiceID)
	if err != nil {
		return err
	}
	printHeader(out, s)

	lines := bufio.NewScanner(in)
	for {
		snap := s.Snapshot()
		if snap.Completed {
			printSummary(out, s, snap)
			if !follow {
				return nil
			}
			dest, err := s.Continue()
			if err != nil {
				return err
			}
			if dest.IsMenu() {
				fmt.Fprintln(out, "You have finished the course.")
				return nil
			}
			if s, err = mgr.Start(ctx, 0, dest.LessonID, dest.PracticeID); err != nil {
				return err
			}
			printHeader(out, s)
			continue
		}

		step, _ := s.Step()
		printStep(out, s.Practice, step, snap)
		fmt.Fprint(out, "> ")
		if !lines.Scan() {
			fmt.Fprintln(out)
			return lines.Err()
		}
		line := strings.TrimSpace(lines.Text())

		switch {
		case line == "":
			continue
		case line == "q":
			return nil
		case strings.HasPrefix(line, "j "):
			n, err := strconv.Atoi(strings.TrimSpace(line[2:]))
			if err != nil {
				fmt.Fprintln(out, "Usage: j N")
				continue
			}
			if err := s.JumpTo(n - 1); err != nil {
				fmt.Fprintln(out, err)
			}
			continue
		}

		answer, ok := parseLine(s.Practice, step, line)
		if !ok {
			fmt.Fprintln(out, answerHint(s.Practice, step))
			continue
		}
		if err := selectAndWait(ctx, out, s, step, answer, snap.Index); err != nil {
			return err
		}
	}
}

// selectAndWait submits an answer and, when it is correct, blocks until the
// session has moved past the step.
func selectAndWait(ctx context.Context, out io.Writer, s *practice.Session, step lessons.Step, a practice.Answer, index int) error {
	snaps, stop := s.Subscribe()
	defer stop()

	outcome, err := s.Select(a)
	switch {
	case errors.Is(err, practice.ErrInvalidAnswer):
		fmt.Fprintln(out, answerHint(s.Practice, step))
		return nil
	case err != nil:
		return err
	}

	switch outcome {
	case practice.OutcomeIncorrect:
		fmt.Fprintln(out, "✗ Not quite, try again.")
		return nil
	case practice.OutcomeIgnored:
		return nil
	}
	if s.Practice.Widget == lessons.WidgetMultipleChoice {
		fmt.Fprintf(out, "✓ %s\n", step.CorrectText())
	} else {
		fmt.Fprintf(out, "✓ %s\n", step.Spoken())
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap, ok := <-snaps:
			if !ok {
				return practice.ErrSessionNotFound
			}
			if snap.Index != index || snap.Completed {
				return nil
			}
		}
	}
}

func parseLine(p *lessons.Practice, step lessons.Step, line string) (practice.Answer, bool) {
	if !p.Widget.UsesChoices() {
		words := strings.Fields(line)
		return practice.Answer{Words: words}, len(words) > 0
	}
	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > len(step.Choices) {
		return practice.Answer{}, false
	}
	return practice.Answer{Choice: n - 1}, true
}

func answerHint(p *lessons.Practice, step lessons.Step) string {
	if !p.Widget.UsesChoices() {
		return "Type the words in order, separated by spaces."
	}
	return fmt.Sprintf("Type a number from 1 to %d.", len(step.Choices))
}

func printHeader(out io.Writer, s *practice.Session) {
	title := s.Practice.Title
	if title == "" {
		title = s.Practice.ID
	}
	fmt.Fprintf(out, "\n== %s: %s ==\n", s.Lesson.Title, title)
	if s.Practice.Story != "" {
		fmt.Fprintln(out, s.Practice.Story)
	}
}

func printStep(out io.Writer, p *lessons.Practice, step lessons.Step, snap practice.Snapshot) {
	fmt.Fprintf(out, "\n[%d/%d] ", snap.Index+1, snap.Total)
	switch p.Widget {
	case lessons.WidgetFillBlank:
		if len(step.SentenceParts) == 2 {
			fmt.Fprintf(out, "%s____%s\n", step.SentenceParts[0], step.SentenceParts[1])
		}
	case lessons.WidgetStory:
		before, after := step.PromptParts()
		fmt.Fprintf(out, "%s____%s\n", before, after)
	case lessons.WidgetSentenceBuilder:
		fmt.Fprintln(out, step.Chinese)
		words := make([]string, 0, len(step.Words))
		for _, w := range step.Words {
			words = append(words, w.English)
		}
		fmt.Fprintf(out, "Words: %s\n", strings.Join(words, " / "))
		return
	default:
		fmt.Fprintln(out, step.Question)
	}
	if step.ChineseHint != "" {
		fmt.Fprintf(out, "(%s)\n", step.ChineseHint)
	}
	for i, c := range step.Choices {
		fmt.Fprintf(out, "  %d. %s\n", i+1, c.Text)
	}
}

func printSummary(out io.Writer, s *practice.Session, snap practice.Snapshot) {
	c := s.Practice.Completion
	title := c.Title
	if title == "" {
		title = "Practice complete"
	}
	fmt.Fprintf(out, "\n%s\n", title)
	if c.Message != "" {
		fmt.Fprintln(out, c.Message)
	}
	fmt.Fprintf(out, "Steps: %d  Mistakes: %d  First try: %d\n", snap.Total, snap.Mistakes(), snap.FirstTry())
}
