package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recent gateway lifecycle runs, or one run's steps",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app, id string) error {
			if a.history == nil {
				return errors.New("run history is unavailable")
			}
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				run, err := a.history.GetRun(args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(out, run)
				}
				fmt.Fprintf(out, "%s  %s  %s  %s\n", run.RunID, run.Kind, run.State, run.StartedAt.Format("2006-01-02 15:04:05"))
				for _, s := range run.Steps {
					fmt.Fprintf(out, "  %d. %s %s  %s\n", s.Seq, statusMark(s.Status), s.Step, s.Detail)
				}
				if run.Error != "" {
					fmt.Fprintln(out, "  error: "+run.Error)
				}
				return nil
			}
			runs, err := a.history.ListRuns(id, historyLimit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(out, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No lifecycle runs recorded.")
				return nil
			}
			for _, r := range runs {
				fmt.Fprintf(out, "%s  %-8s %-8s %s  %s\n", r.StartedAt.Format("2006-01-02 15:04:05"), r.Kind, r.State, r.RunID, r.Error)
			}
			return nil
		})
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to list")
	rootCmd.AddCommand(historyCmd)
}
