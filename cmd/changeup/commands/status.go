package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gyara/changeup/internal/state"
	"github.com/gyara/changeup/internal/station"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var statusFormat string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the daemon's focus history and window index",
	Example: `  # YAML (default)
  changeup status

  # JSON, e.g. for jq
  changeup status --format json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

var rulesetCmd = &cobra.Command{
	Use:   "ruleset",
	Short: "Print the daemon's active rules as TOML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *station.Client) error {
			doc, err := c.Ruleset()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), doc)
			return nil
		})
	},
}

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "Print the daemon's active keybindings as TOML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *station.Client) error {
			doc, err := c.Actions()
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), doc)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(statusCmd, rulesetCmd, actionsCmd)
	statusCmd.Flags().StringVarP(&statusFormat, "format", "f", "yaml", "output format (yaml or json)")
}

type status struct {
	Version string         `json:"version" yaml:"version"`
	State   state.Snapshot `json:"state" yaml:"state"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, c *station.Client) error {
		version, err := c.Version()
		if err != nil {
			return err
		}
		snap, err := c.Snapshot(ctx)
		if err != nil {
			return err
		}
		return renderStatus(cmd, status{Version: version, State: snap})
	})
}

func renderStatus(cmd *cobra.Command, st status) error {
	out := cmd.OutOrStdout()
	switch statusFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(st); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (use yaml or json)", statusFormat)
	}
}
