package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/satquiz/internal/questions"
)

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "Manage the question corpus",
}

var questionsImportCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Validate and import a JSON question corpus",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Importer.Import(cmd.Context(), f)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		skills := make([]string, 0, len(report.BySkill))
		for s := range report.BySkill {
			skills = append(skills, s)
		}
		sort.Strings(skills)
		for _, s := range skills {
			fmt.Fprintf(out, "%-30s  %5d\n", s, report.BySkill[s])
		}
		fmt.Fprintf(out, "\n%d questions imported\n", report.Imported)
		return nil
	},
}

var questionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List questions for a skill",
	RunE: func(cmd *cobra.Command, args []string) error {
		skill, _ := cmd.Flags().GetString("skill")
		difficulty, _ := cmd.Flags().GetString("difficulty")
		if skill == "" {
			return fmt.Errorf("--skill is required")
		}
		d := questions.Difficulty(strings.ToLower(difficulty))
		if d != questions.DifficultyAny {
			if _, err := questions.LevelForDifficulty(d); err != nil {
				return err
			}
		}

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		qs, err := a.Store.ListBySkill(cmd.Context(), skill, d)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-24s  %-8s  %-8s  %s\n", "ID", "Level", "Answer", "Prompt")
		fmt.Fprintln(out, strings.Repeat("─", 90))
		for _, q := range qs {
			prompt := q.Prompt
			if len(prompt) > 44 {
				prompt = prompt[:41] + "..."
			}
			fmt.Fprintf(out, "%-24s  %-8s  %-8s  %s\n", q.ID, q.Difficulty, q.CorrectAnswer, prompt)
		}
		fmt.Fprintf(out, "\n%d questions\n", len(qs))
		return nil
	},
}

func init() {
	questionsListCmd.Flags().String("skill", "", "Skill ID (required)")
	questionsListCmd.Flags().String("difficulty", "", "Filter by difficulty: easy, medium or hard")

	questionsCmd.AddCommand(questionsImportCmd)
	questionsCmd.AddCommand(questionsListCmd)
}
