package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var voiceCmd = &cobra.Command{
	Use:   "voice",
	Short: "Voice message settings",
}

var voiceEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Transcribe voice messages and answer with voice notes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app, id string) error {
			res, err := a.onboarding.EnableVoiceReplies(cmd.Context(), id)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Note)
			if res.SoulUpdated {
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", res.SoulPath)
			}
			return nil
		})
	},
}

func init() {
	voiceCmd.AddCommand(voiceEnableCmd)
	rootCmd.AddCommand(voiceCmd)
}
