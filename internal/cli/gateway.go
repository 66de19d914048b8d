package cli

import (
	"fmt"

	"github.com/quickclaw/quickclaw/internal/lifecycle"
	"github.com/spf13/cobra"
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Inspect and control the openclaw gateway",
}

var gatewayStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Probe the gateway ports and CLI status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app, id string) error {
			st := a.lifecycle.Status(cmd.Context(), id)
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), st)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Gateway: %s running\n", yesNo(st.Running))
			printPorts(cmd, st)
			if st.Signals.StatusText != "" {
				fmt.Fprintln(cmd.OutOrStdout(), "\n"+st.Signals.StatusText)
			}
			return nil
		})
	},
}

var gatewayStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the gateway unless it is already running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app, id string) error {
			rep, err := a.lifecycle.Start(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), rep)
		})
	},
}

var gatewayStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the gateway and kill anything left on its ports",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app, id string) error {
			rep, err := a.lifecycle.Stop(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), rep)
		})
	},
}

var gatewayRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Hard-restart the gateway and verify its ports",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app, id string) error {
			rep, err := a.lifecycle.Restart(cmd.Context(), lifecycle.Request{ProfileID: id})
			if err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), rep)
		})
	},
}

func init() {
	gatewayCmd.AddCommand(gatewayStatusCmd, gatewayStartCmd, gatewayStopCmd, gatewayRestartCmd)
	rootCmd.AddCommand(gatewayCmd)
}
