package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage dashboard profiles",
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadAppFn()
		if err != nil {
			return err
		}
		defer a.Close()
		list, err := a.profiles.List()
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), list)
		}
		for _, p := range list {
			mark := " "
			if p.Active {
				mark = color.GreenString("*")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %-12s %s\n", mark, p.ID, p.Name)
		}
		return nil
	},
}

var profileUseCmd = &cobra.Command{
	Use:   "use <id>",
	Short: "Make a profile active",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadAppFn()
		if err != nil {
			return err
		}
		defer a.Close()
		p, err := a.profiles.SetActive(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Active profile: %s (%s)\n", p.ID, p.Name)
		return nil
	},
}

var profileCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an inactive profile",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadAppFn()
		if err != nil {
			return err
		}
		defer a.Close()
		p, err := a.profiles.Create(strings.Join(args, " "))
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), p)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created profile %s (%s)\n", p.ID, p.Name)
		return nil
	},
}

func init() {
	profileCmd.AddCommand(profileListCmd, profileUseCmd, profileCreateCmd)
	rootCmd.AddCommand(profileCmd)
}
