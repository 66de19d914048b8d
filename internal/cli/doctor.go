package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/quickclaw/quickclaw/internal/diagnostics"
	"github.com/spf13/cobra"
)

var doctorFix bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run setup diagnostics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app, id string) error {
			report := a.diagnostics.Doctor(cmd.Context(), id, diagnostics.DoctorOptions{Fix: doctorFix})
			if jsonOutput {
				if err := printJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
			} else {
				for _, check := range report.Checks {
					symbol := color.GreenString("PASS")
					if check.Status == diagnostics.DoctorWarn {
						symbol = color.YellowString("WARN")
					}
					if check.Status == diagnostics.DoctorFail {
						symbol = color.RedString("FAIL")
					}
					fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s: %s\n", symbol, check.Name, check.Message)
				}
			}
			failures := 0
			for _, check := range report.Checks {
				if check.Status == diagnostics.DoctorFail {
					failures++
				}
			}
			if failures > 0 {
				return fmt.Errorf("doctor found %d failing check(s)", failures)
			}
			return nil
		})
	},
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "Set gateway.mode=local in every existing config")
	rootCmd.AddCommand(doctorCmd)
}
