package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/satquiz/internal/questions"
	"github.com/abhisek/satquiz/internal/quiz"
)

var quizCmd = &cobra.Command{
	Use:   "quiz",
	Short: "Start, answer and finish quizzes",
}

var quizStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Assemble a new quiz for one or more skills",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		skills, _ := cmd.Flags().GetStringSlice("skill")
		level, _ := cmd.Flags().GetInt("level")
		count, _ := cmd.Flags().GetInt("count")

		req := quiz.StartRequest{UserID: user, SkillIDs: skills, Count: count}
		// --level selects a level explicitly; without it the learner
		// continues from their stored level.
		if cmd.Flags().Changed("level") {
			l := questions.Level(level)
			req.Level = &l
		}

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		sess, err := a.Quiz.Start(cmd.Context(), req)
		if err != nil {
			return err
		}
		return printSession(cmd.OutOrStdout(), sess)
	},
}

var quizAnswerCmd = &cobra.Command{
	Use:   "answer <session> <question> <option>",
	Short: "Record one answer on an open quiz",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		spent, _ := cmd.Flags().GetDuration("time")

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ans, err := a.Quiz.SubmitAnswer(cmd.Context(), args[0], args[1], args[2], spent)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s for %s (correct: %v)\n", args[2], args[1], ans.IsCorrect)
		return nil
	},
}

var quizFinishCmd = &cobra.Command{
	Use:   "finish <session>",
	Short: "Grade a quiz and update progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		answersPath, _ := cmd.Flags().GetString("answers")
		submitted, err := readSubmissions(answersPath)
		if err != nil {
			return err
		}

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Quiz.Finalize(cmd.Context(), args[0], submitted)
		if err != nil {
			return err
		}
		printResult(cmd.OutOrStdout(), res)
		return nil
	},
}

var quizShowCmd = &cobra.Command{
	Use:   "show <session>",
	Short: "Show a stored quiz session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		sess, err := a.Quiz.Session(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printSession(cmd.OutOrStdout(), sess)
	},
}

func init() {
	quizStartCmd.Flags().String("user", "", "Learner ID (required)")
	quizStartCmd.Flags().StringSlice("skill", nil, "Skill ID; repeat for a multi-skill quiz (required)")
	quizStartCmd.Flags().Int("level", 0, "Explicit level 1-3 (default: continue from stored level)")
	quizStartCmd.Flags().Int("count", 0, "Number of questions (default: SATQUIZ_QUIZ_SIZE)")

	quizAnswerCmd.Flags().Duration("time", 0, "Time spent on the question")

	quizFinishCmd.Flags().String("answers", "", `JSON file of {"<question>": {"selected_option": "A"}} answers`)

	quizCmd.AddCommand(quizStartCmd)
	quizCmd.AddCommand(quizAnswerCmd)
	quizCmd.AddCommand(quizFinishCmd)
	quizCmd.AddCommand(quizShowCmd)
}

func readSubmissions(path string) (map[string]quiz.Submission, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out map[string]quiz.Submission
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse answers file: %w", err)
	}
	return out, nil
}

func printSession(w io.Writer, s *quiz.Session) error {
	fmt.Fprintf(w, "Session:   %s\n", s.ID)
	fmt.Fprintf(w, "User:      %s\n", s.UserID)
	fmt.Fprintf(w, "Skills:    %v\n", s.SkillIDs)
	fmt.Fprintf(w, "Level:     %d\n", s.Level)
	if s.PriorLevel != nil {
		fmt.Fprintf(w, "Prior:     %d\n", *s.PriorLevel)
	}
	fmt.Fprintf(w, "Status:    %s\n", s.Status)
	fmt.Fprintf(w, "Created:   %s\n", s.CreatedAt.Local().Format(time.DateTime))
	if s.CompletedAt != nil {
		fmt.Fprintf(w, "Completed: %s\n", s.CompletedAt.Local().Format(time.DateTime))
		fmt.Fprintf(w, "Score:     %d (passed: %v)\n", s.Score, s.Passed)
	}

	fmt.Fprintf(w, "\n%-24s  %-8s  %s\n", "Question", "Answer", "Correct")
	for _, id := range s.QuestionIDs {
		ans, ok := s.UserAnswers[id]
		if !ok {
			fmt.Fprintf(w, "%-24s  %-8s  %s\n", id, "-", "-")
			continue
		}
		fmt.Fprintf(w, "%-24s  %-8s  %v\n", id, ans.SelectedOption, ans.IsCorrect)
	}
	return nil
}

func printResult(w io.Writer, res *quiz.Result) {
	fmt.Fprintf(w, "Score:   %d%% (%d/%d)\n", res.Score, res.CorrectCount, res.Total)
	fmt.Fprintf(w, "Passed:  %v\n", res.Passed)
	if !res.Persisted {
		fmt.Fprintln(w, "Warning: progress could not be saved for every skill")
	}

	fmt.Fprintf(w, "\n%-24s  %7s  %6s  %5s  %8s  %s\n", "Skill", "Correct", "Passed", "Level", "Trailing", "Saved")
	for _, s := range res.Skills {
		fmt.Fprintf(w, "%-24s  %3d/%-3d  %6v  %5d  %7d%%  %v\n",
			s.SkillID, s.Correct, s.Attempted, s.Passed, s.Level, s.TrailingAccuracy, s.Persisted)
	}
}
