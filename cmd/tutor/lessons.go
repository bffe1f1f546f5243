package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"grammartutor/internal/course"
	"grammartutor/internal/lessons"
)

var lessonsCmd = &cobra.Command{
	Use:   "lessons",
	Short: "List the lesson catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listLessons(cmd.OutOrStdout())
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <dir>",
	Short: "Check a directory of lesson JSON files",
	Long: `Parses and validates every *.json lesson file in dir, the same way the
embedded catalog is checked at startup.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return validateDir(cmd.OutOrStdout(), args[0])
	},
}

func listLessons(w io.Writer) error {
	groups := lessons.ByCategory()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, c := range lessons.Categories {
		ls := groups[c]
		if len(ls) == 0 {
			continue
		}
		fmt.Fprintln(tw, c.Label())
		for _, l := range ls {
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", l.ID, l.Title, practiceIDs(l))
		}
	}
	return tw.Flush()
}

func practiceIDs(l *lessons.Lesson) string {
	ids := make([]string, 0, len(l.Practices))
	for _, p := range l.Practices {
		ids = append(ids, p.ID)
	}
	return strings.Join(ids, ", ")
}

func validateDir(w io.Writer, dir string) error {
	ls, err := lessons.Load(os.DirFS(dir), ".")
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(ls))
	steps := 0
	for _, l := range ls {
		if seen[l.ID] {
			return fmt.Errorf("duplicate lesson id %q", l.ID)
		}
		seen[l.ID] = true
		for _, p := range l.Practices {
			steps += len(p.Steps)
		}
	}
	c := course.New(ls)
	fmt.Fprintf(w, "%d lessons, %d steps OK\n", c.Len(), steps)
	return nil
}
