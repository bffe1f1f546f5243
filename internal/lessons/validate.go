package lessons

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidContent is wrapped by every validation failure.
var ErrInvalidContent = errors.New("invalid lesson content")

// Validate checks the lesson and every practice step. All problems are reported together.
func (l *Lesson) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s: %s", ErrInvalidContent, l.ID, fmt.Sprintf(format, args...)))
	}

	if l.ID == "" {
		fail("missing id")
	}
	if l.Title == "" {
		fail("missing title")
	}
	seen := make(map[string]bool, len(l.Practices))
	for _, p := range l.Practices {
		if p.ID == "" {
			fail("practice without id")
		}
		if seen[p.ID] {
			fail("duplicate practice %q", p.ID)
		}
		seen[p.ID] = true

		switch p.Widget {
		case WidgetMultipleChoice, WidgetFillBlank, WidgetSentenceBuilder, WidgetStory:
		default:
			fail("practice %q: unknown widget %q", p.ID, p.Widget)
			continue
		}
		for i, s := range p.Steps {
			if err := s.validate(p.Widget); err != nil {
				fail("practice %q step %d: %v", p.ID, i, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (s Step) validate(w Widget) error {
	if w.UsesChoices() {
		correct := 0
		for _, c := range s.Choices {
			if c.IsCorrect {
				correct++
			}
		}
		if correct != 1 {
			return fmt.Errorf("want exactly one correct choice, got %d", correct)
		}
	}

	switch w {
	case WidgetMultipleChoice:
		if s.Question == "" {
			return errors.New("missing question")
		}
	case WidgetFillBlank:
		if len(s.SentenceParts) != 2 {
			return fmt.Errorf("want 2 sentence parts, got %d", len(s.SentenceParts))
		}
	case WidgetStory:
		if n := strings.Count(s.Prompt, GapMarker); n != 1 {
			return fmt.Errorf("want one gap marker in prompt, got %d", n)
		}
	case WidgetSentenceBuilder:
		if len(s.Correct) == 0 {
			return errors.New("missing correct order")
		}
		// Answers are matched after splitting on whitespace, so a tile must be one word.
		bank := make(map[string]int, len(s.Words))
		for _, word := range s.Words {
			if len(strings.Fields(word.English)) != 1 || strings.TrimSpace(word.English) != word.English {
				return fmt.Errorf("tile %q must be a single word", word.English)
			}
			bank[word.English]++
		}
		for _, word := range s.Correct {
			if len(strings.Fields(word)) != 1 || strings.TrimSpace(word) != word {
				return fmt.Errorf("tile %q must be a single word", word)
			}
			if bank[word] == 0 {
				return fmt.Errorf("word %q not in word bank", word)
			}
			bank[word]--
		}
	}
	return nil
}
