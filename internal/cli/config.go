package cli

import (
	"encoding/json"
	"fmt"

	"github.com/quickclaw/quickclaw/internal/locator"
	"github.com/quickclaw/quickclaw/internal/reconcile"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read and edit the gateway's openclaw.json",
}

var configGetCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Get a value by dotted path from the first existing config",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app, id string) error {
			path := locator.ReadPath(a.locations(id))
			doc, ok := reconcile.Read(path)
			if !ok {
				return fmt.Errorf("no readable config at %s", path)
			}
			val, err := reconcile.GetPath(doc, args[0])
			if err != nil {
				return err
			}
			switch v := val.(type) {
			case map[string]any, []any:
				out, _ := json.MarshalIndent(v, "", "  ")
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
			default:
				fmt.Fprintln(cmd.OutOrStdout(), v)
			}
			return nil
		})
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <path> <value>",
	Short: "Set a value by dotted path (JSON or plain string) in every config location",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := reconcile.ValidatePath(args[0]); err != nil {
			return err
		}
		return withApp(func(a *app, id string) error {
			res := reconcile.Apply(a.locations(id), reconcile.Patch{
				Sets: []reconcile.PathValue{{Path: args[0], Value: reconcile.ParseValue(args[1])}},
			})
			return printConfigResult(cmd, res)
		})
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <path>",
	Short: "Remove a value by dotted path from every existing config",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := reconcile.ValidatePath(args[0]); err != nil {
			return err
		}
		return withApp(func(a *app, id string) error {
			res := reconcile.Apply(a.locations(id), reconcile.Patch{Unsets: []string{args[0]}, ExistingOnly: true})
			return printConfigResult(cmd, res)
		})
	},
}

func printConfigResult(cmd *cobra.Command, res reconcile.Result) error {
	if jsonOutput {
		if err := printJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
		return res.Err()
	}
	for _, l := range res.Locations {
		switch {
		case l.Err != "":
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", yesNo(false), l.Path, l.Err)
		case l.Written:
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", yesNo(true), l.Path)
		}
	}
	return res.Err()
}

func init() {
	configCmd.AddCommand(configGetCmd, configSetCmd, configUnsetCmd)
	rootCmd.AddCommand(configCmd)
}
