package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/satquiz/internal/progress"
)

var progressCmd = &cobra.Command{
	Use:     "progress",
	Aliases: []string{"stats"},
	Short:   "Show a learner's per-skill progress and concept tallies",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		skill, _ := cmd.Flags().GetString("skill")
		if user == "" {
			return fmt.Errorf("--user is required")
		}

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()

		var records []*progress.SkillProgress
		if skill != "" {
			p, err := a.Progress.GetOrDefault(ctx, progress.Key{UserID: user, SkillID: skill})
			if err != nil {
				return err
			}
			records = append(records, p)
		} else {
			records, err = a.Progress.List(ctx, user)
			if err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-24s  %5s  %8s  %8s  %6s  %6s  %8s\n",
			"Skill", "Level", "Mastered", "Trailing", "Overall", "Asked", "Missed")
		fmt.Fprintln(out, strings.Repeat("─", 80))
		for _, p := range records {
			fmt.Fprintf(out, "%-24s  %5d  %8v  %7d%%  %6d%%  %6d  %8d\n",
				p.SkillID, p.Level, p.Mastered, p.TrailingAccuracy(), p.Stats.Accuracy,
				len(p.AskedQuestionIDs), len(p.MissedQuestionIDs))
		}
		fmt.Fprintf(out, "\n%d skills\n", len(records))

		tallies, err := a.Tallies.List(ctx, user)
		if err != nil {
			return err
		}
		if len(tallies) == 0 {
			return nil
		}
		fmt.Fprintf(out, "\n%-30s  %8s  %8s\n", "Concept", "Attempts", "Accuracy")
		for _, t := range tallies {
			fmt.Fprintf(out, "%-30s  %8d  %7d%%\n", t.Concept, t.Attempts, t.Accuracy())
		}
		return nil
	},
}

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Show learners with the most correct answers (requires Redis)",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.Ranking.Top(cmd.Context(), limit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(entries) == 0 {
			fmt.Fprintln(out, "No leaderboard data. Set SATQUIZ_REDIS_ADDR to enable ranking.")
			return nil
		}
		fmt.Fprintf(out, "%4s  %-24s  %8s\n", "Rank", "User", "Correct")
		for _, e := range entries {
			fmt.Fprintf(out, "%4d  %-24s  %8d\n", e.Rank, e.UserID, e.CorrectTotal)
		}
		return nil
	},
}

func init() {
	progressCmd.Flags().String("user", "", "Learner ID (required)")
	progressCmd.Flags().String("skill", "", "Limit to one skill")

	leaderboardCmd.Flags().IntP("limit", "n", 10, "Number of learners to show")
}
