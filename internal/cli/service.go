package cli

import (
	"fmt"
	"os"
	"runtime"

	"github.com/quickclaw/quickclaw/internal/config"
	"github.com/quickclaw/quickclaw/internal/onboarding"
	"github.com/spf13/cobra"
)

var (
	serviceBinary string
	serviceEnable bool

	serviceOS        = runtime.GOOS
	serviceInstallFn = onboarding.InstallUserService
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Run the dashboard as a systemd user service (Linux)",
}

var serviceInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the quickclaw serve user unit",
	RunE: func(cmd *cobra.Command, args []string) error {
		if serviceOS != "linux" {
			return fmt.Errorf("service install is only supported on linux (current: %s)", serviceOS)
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		bin := serviceBinary
		if bin == "" {
			if bin, err = os.Executable(); err != nil {
				return fmt.Errorf("resolve binary path: %w", err)
			}
		}
		res, err := serviceInstallFn(onboarding.ServiceOptions{
			Home:       cfg.Home,
			BinaryPath: bin,
			Root:       cfg.Root,
			Host:       cfg.DashboardHost,
			Port:       cfg.DashboardPort,
			Version:    version,
			Enable:     serviceEnable,
		})
		if res != nil {
			if jsonOutput {
				_ = printJSON(cmd.OutOrStdout(), res)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Unit: %s\n", res.UnitPath)
				fmt.Fprintf(cmd.OutOrStdout(), "Env:  %s", res.EnvPath)
				if res.EnvKept {
					fmt.Fprint(cmd.OutOrStdout(), " (kept)")
				}
				fmt.Fprintln(cmd.OutOrStdout())
				if res.Output != "" {
					fmt.Fprintln(cmd.OutOrStdout(), res.Output)
				}
			}
		}
		return err
	},
}

func init() {
	serviceInstallCmd.Flags().StringVar(&serviceBinary, "binary", "", "quickclaw binary for ExecStart (defaults to this executable)")
	serviceInstallCmd.Flags().BoolVar(&serviceEnable, "enable", true, "Run daemon-reload and enable --now after install")
	serviceCmd.AddCommand(serviceInstallCmd)
	rootCmd.AddCommand(serviceCmd)
}
