package cli

import (
	"fmt"
	"sort"

	"github.com/quickclaw/quickclaw/internal/probe"
	"github.com/quickclaw/quickclaw/internal/settings"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if jsonOutput {
			_ = printJSON(cmd.OutOrStdout(), map[string]string{"version": version})
			return
		}
		printHeader(cmd.OutOrStdout(), "🏷️ QuickClaw Version")
		fmt.Fprintf(cmd.OutOrStdout(), "Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show profile, credentials and gateway status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app, id string) error {
			st := a.lifecycle.Status(cmd.Context(), id)
			saved := a.settings.Load()
			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, map[string]any{
					"version":  version,
					"profile":  id,
					"cli":      a.cli.String(),
					"gateway":  st,
					"telegram": saved.TelegramBotToken != "",
					"openai":   saved.OpenAIAPIKey != "",
				})
			}
			printHeader(out, "📊 QuickClaw Status")
			fmt.Fprintf(out, "Version:  %s\n", version)
			fmt.Fprintf(out, "Profile:  %s\n", id)
			fmt.Fprintf(out, "Root:     %s\n", a.cfg.Root)
			fmt.Fprintf(out, "OpenClaw: %s\n", a.cli.String())
			fmt.Fprintf(out, "Gateway:  %s running\n", yesNo(st.Running))
			printPorts(cmd, st)
			fmt.Fprintf(out, "Telegram: %s %s\n", yesNo(saved.TelegramBotToken != ""), maskOrNone(saved.TelegramBotToken))
			fmt.Fprintf(out, "OpenAI:   %s %s\n", yesNo(saved.OpenAIAPIKey != ""), maskOrNone(saved.OpenAIAPIKey))
			fmt.Fprintf(out, "Anthropic: %s %s\n", yesNo(saved.AnthropicAPIKey != ""), maskOrNone(saved.AnthropicAPIKey))
			return nil
		})
	},
}

func printPorts(cmd *cobra.Command, st probe.State) {
	ports := make([]int, 0, len(st.Signals.Ports))
	for p := range st.Signals.Ports {
		ports = append(ports, p)
	}
	sort.Ints(ports)
	for _, p := range ports {
		fmt.Fprintf(cmd.OutOrStdout(), "  port %-5d %s\n", p, yesNo(st.Signals.Ports[p]))
	}
}

func maskOrNone(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	return settings.MaskKey(secret)
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
}
