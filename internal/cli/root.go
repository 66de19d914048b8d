package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/quickclaw/quickclaw/internal/cli.version=1.2.3"
	version = "0.9.0"
	logo    = "\n" +
		"   ___       _      _       _\n" +
		"  / _ \\ _  _(_)__ _| |__ __| |__ ___ __ __\n" +
		" | (_) | || | / _| / / _/ _| / _` \\ V  V /\n" +
		"  \\__\\_\\\\_,_|_\\__|_\\_\\__\\__|_\\__,_|\\_/\\_/\n"
)

var (
	profileFlag string
	jsonOutput  bool
)

var rootCmd = &cobra.Command{
	Use:           "quickclaw",
	Short:         "QuickClaw - dashboard and lifecycle manager for the openclaw gateway",
	Long:          color.CyanString(logo) + "\nStarts, stops and reconfigures the local openclaw gateway and its Telegram bot.",
	SilenceUsage:  true,
	SilenceErrors: false,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&profileFlag, "profile", "p", "", "Profile id (defaults to the active profile)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print machine-readable JSON")
}
