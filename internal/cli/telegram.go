package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/quickclaw/quickclaw/internal/channels"
	"github.com/quickclaw/quickclaw/internal/lifecycle"
	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
)

var (
	activateFresh  bool
	activateUserID string
	activateQRPath string
	diagnoseRaw    bool
)

var writeQRFn = func(content, path string) error {
	return qrcode.WriteFile(content, qrcode.Medium, 512, path)
}

var telegramCmd = &cobra.Command{
	Use:   "telegram",
	Short: "Set up and troubleshoot the Telegram bot",
}

var telegramSaveTokenCmd = &cobra.Command{
	Use:   "save-token <token>",
	Short: "Save a BotFather token everywhere the gateway reads it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app, id string) error {
			writes, err := a.onboarding.SaveTelegramToken(cmd.Context(), id, args[0])
			if writes == nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				if perr := printJSON(out, writes); perr != nil {
					return perr
				}
				return err
			}
			fmt.Fprintf(out, "%s openclaw channels add\n", yesNo(writes.CLIAdd))
			fmt.Fprintf(out, "%s settings.json\n", yesNo(writes.Settings))
			fmt.Fprintf(out, "%s profile .env\n", yesNo(writes.Env))
			fmt.Fprintf(out, "%s openclaw.json\n", yesNo(writes.OpenclawJSON))
			fmt.Fprintf(out, "%s default.yaml\n", yesNo(writes.YAMLConfig))
			fmt.Fprintf(out, "%s credentials/telegram.json\n", yesNo(writes.Credentials))
			if err == nil {
				fmt.Fprintln(out, "\nToken saved. Run `quickclaw telegram activate` to restart the gateway.")
			}
			return err
		})
	},
}

var telegramActivateCmd = &cobra.Command{
	Use:   "activate",
	Short: "Restart the gateway with Telegram enabled and verify the bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app, id string) error {
			req, err := a.activationRequest(id, activateUserID, activateFresh)
			if err != nil {
				return err
			}
			if !jsonOutput {
				printHeader(cmd.OutOrStdout(), "🤖 Activating Telegram")
			}
			rep, err := a.lifecycle.Activate(cmd.Context(), req)
			if err != nil {
				return err
			}
			if err := printReport(cmd.OutOrStdout(), rep); err != nil {
				return err
			}
			if !jsonOutput {
				printActivation(cmd, a, rep)
			}
			return nil
		})
	},
}

func printActivation(cmd *cobra.Command, a *app, rep *lifecycle.Report) {
	out := cmd.OutOrStdout()
	if rep.PairingInfo != nil {
		fmt.Fprintln(out, "\n"+rep.PairingInfo.Note)
	}
	if rep.BotInfo == nil {
		return
	}
	link := channels.ChatLink(rep.BotInfo.Username)
	fmt.Fprintf(out, "Chat with your bot: %s\n", link)
	path := activateQRPath
	if path == "" {
		path = filepath.Join(a.cfg.DataDir(), "telegram-qr.png")
	}
	if err := writeQRFn(link, path); err != nil {
		fmt.Fprintf(out, "QR code not written: %v\n", err)
		return
	}
	fmt.Fprintf(out, "QR code: %s\n", path)
}

var telegramLockCmd = &cobra.Command{
	Use:   "lock <telegram-user-id>",
	Short: "Allow only one Telegram user to chat with the bot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app, id string) error {
			res, err := a.onboarding.Lock(cmd.Context(), id, args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Note)
			fmt.Fprintf(cmd.OutOrStdout(), "Allowlist: %s\n", strings.Join(res.AllowFrom, ", "))
			return nil
		})
	},
}

var telegramPairCmd = &cobra.Command{
	Use:   "pair <code>",
	Short: "Approve a pairing code sent by the bot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app, id string) error {
			res, err := a.onboarding.Pair(cmd.Context(), id, args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), res)
			}
			if !res.OK {
				if res.Output != "" {
					fmt.Fprintln(cmd.OutOrStdout(), res.Output)
				}
				return fmt.Errorf("%s", res.Error)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		})
	},
}

var telegramPairingCmd = &cobra.Command{
	Use:   "pairing",
	Short: "List pending pairing requests and approved users",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app, id string) error {
			st, err := a.onboarding.PairingStatus(cmd.Context(), id)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), st)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Approved users: %s\n", strings.Join(st.ApprovedUsers, ", "))
			fmt.Fprintf(out, "Paired devices: %d\n", len(st.PairedDevices))
			if st.Pending != "" {
				fmt.Fprintln(out, "\n"+st.Pending)
			}
			return nil
		})
	},
}

var telegramDiagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Explain why the bot does not answer",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app, id string) error {
			if diagnoseRaw {
				return printJSON(cmd.OutOrStdout(), a.diagnostics.Diagnostics(cmd.Context(), id))
			}
			rep := a.diagnostics.Diagnose(cmd.Context(), id)
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), rep)
			}
			out := cmd.OutOrStdout()
			printHeader(out, "🩺 Telegram Diagnosis")
			fmt.Fprintf(out, "Gateway running:   %s\n", yesNo(rep.Gateway.Running))
			fmt.Fprintf(out, "Token in config:   %s\n", yesNo(rep.TokenLocations.OpenclawJSON))
			fmt.Fprintf(out, "Channel enabled:   %s\n", yesNo(rep.TokenLocations.TelegramEnabled))
			fmt.Fprintf(out, "Plugin enabled:    %s\n", yesNo(rep.TokenLocations.PluginEnabled))
			if rep.BotInfo != nil {
				fmt.Fprintf(out, "Bot:               @%s\n", rep.BotInfo.Username)
			} else {
				fmt.Fprintf(out, "Bot:               %s %s\n", yesNo(false), rep.BotError)
			}
			fmt.Fprintf(out, "Pending updates:   %d\n", rep.PendingUpdates)
			if len(rep.Suggestions) > 0 {
				fmt.Fprintln(out, "\nSuggestions:")
				for _, s := range rep.Suggestions {
					fmt.Fprintln(out, "  - "+s)
				}
			}
			fmt.Fprintln(out, "\nRecent logs:\n"+rep.RecentLogs)
			return nil
		})
	},
}

func init() {
	telegramActivateCmd.Flags().BoolVar(&activateFresh, "fresh", false, "Wipe cached sessions and pairings before restarting")
	telegramActivateCmd.Flags().StringVar(&activateUserID, "user-id", "", "Lock the bot to this Telegram user id")
	telegramActivateCmd.Flags().StringVar(&activateQRPath, "qr", "", "Where to write the chat link QR code (PNG)")
	telegramDiagnoseCmd.Flags().BoolVar(&diagnoseRaw, "raw", false, "Dump every config location, the launch agent and CLI channel status")

	telegramCmd.AddCommand(
		telegramSaveTokenCmd,
		telegramActivateCmd,
		telegramLockCmd,
		telegramPairCmd,
		telegramPairingCmd,
		telegramDiagnoseCmd,
	)
	rootCmd.AddCommand(telegramCmd)
}
