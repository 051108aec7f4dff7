package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/gyara/changeup/internal/station"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Ping the daemon and re-install its keybindings",
	Long: `Ping the daemon. As a side effect it binds its configured keys again,
which is useful after the window manager reloaded its own config.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *station.Client) error {
			reply, err := c.Ping(ctx)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), reply)
			return nil
		})
	},
}

var lastCmd = &cobra.Command{
	Use:   "last",
	Short: "Focus the previously focused window",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *station.Client) error {
			return c.JumpToLastViewed(ctx)
		})
	},
}

var configCmd = &cobra.Command{
	Use:   "config <path>",
	Short: "Load a rule file into the daemon",
	Long: `Load a rule file into the daemon. On error the daemon keeps its
current rules and keybindings.`,
	Example: `  changeup config ~/.config/changeup/config.toml`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolve %s: %w", args[0], err)
		}
		return withClient(func(ctx context.Context, c *station.Client) error {
			reply, err := c.ReloadConfig(ctx, path)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), reply)
			return nil
		})
	},
}

var focusCmd = &cobra.Command{
	Use:   "focus <app_id>",
	Short: "Focus a window by application id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *station.Client) error {
			return c.Focus(ctx, args[0])
		})
	},
}

var ruleFocusCmd = &cobra.Command{
	Use:   "rule-focus <rule>",
	Short: "Run a focus-or-launch rule",
	Long: `Run a rule from the daemon's rule file: focus its application, jump
back if it is already focused, or launch it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *station.Client) error {
			return c.RuleFocus(ctx, args[0])
		})
	},
}

func init() {
	rootCmd.AddCommand(initCmd, lastCmd, configCmd, focusCmd, ruleFocusCmd)
}
