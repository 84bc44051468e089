package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete a learner's skill progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		yes, _ := cmd.Flags().GetBool("yes")
		if user == "" {
			return fmt.Errorf("--user is required")
		}

		out := cmd.OutOrStdout()
		if !yes {
			fmt.Fprintf(out, "Delete all progress for %q? [y/N] ", user)
			line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if !strings.EqualFold(strings.TrimSpace(line), "y") {
				fmt.Fprintln(out, "Aborted.")
				return nil
			}
		}

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.Progress.Reset(cmd.Context(), user)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted %d skill records for %s\n", n, user)
		return nil
	},
}

func init() {
	resetCmd.Flags().String("user", "", "Learner ID (required)")
	resetCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
}
