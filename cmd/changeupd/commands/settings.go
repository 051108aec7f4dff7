package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/gyara/changeup/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Inspect daemon settings",
	Long: `View the daemon's effective settings: defaults, then the settings file,
then CHANGEUP_* environment variables, then flags.`,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective settings",
	Example: `  # Show settings as YAML (default)
  changeupd settings show

  # Show settings as JSON
  changeupd settings show --format json`,
	Args: cobra.NoArgs,
	RunE: runSettingsShow,
}

var settingsPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show settings file path",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		path := settingsFile
		if path == "" {
			path = config.DefaultSettingsPath()
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
	},
}

var formatFlag string

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsPathCmd)

	settingsShowCmd.Flags().StringVarP(&formatFlag, "format", "f", "yaml", "output format (yaml or json)")
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
	settings, err := config.LoadSettings(viper.GetViper(), settingsFile)
	if err != nil {
		return err
	}
	return writeSettings(cmd.OutOrStdout(), settings, formatFlag)
}

func writeSettings(w io.Writer, s *config.Settings, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal settings: %w", err)
		}
		fmt.Fprintln(w, string(data))
	case "yaml":
		data, err := yaml.Marshal(s)
		if err != nil {
			return fmt.Errorf("failed to marshal settings: %w", err)
		}
		fmt.Fprint(w, string(data))
	default:
		return fmt.Errorf("unsupported format: %s (use yaml or json)", format)
	}
	return nil
}
