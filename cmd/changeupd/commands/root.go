package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	settingsFile string
	rootCmd      = &cobra.Command{
		Use:   "changeupd",
		Short: "changeupd - window focus history daemon for sway",
		Long: `changeupd follows window focus in sway (or any i3-IPC compatible window
manager) and answers requests from the changeup client over D-Bus.

Features:
  • Jump back to the previously focused window
  • Focus a window by application id
  • Focus-or-launch rules loaded from a TOML file
  • Keybindings reconciled with the window manager on every reload
  • Rule file reloaded on change or SIGHUP
  • Optional HTTP API for debugging`,
		Example: `  # Run with the default rule file (~/.config/changeup/config.toml)
  changeupd

  # Run with a specific rule file and debug logging
  changeupd --rules ~/dotfiles/changeup.toml --log-level debug

  # Expose the debug HTTP API on localhost:7777
  changeupd --http-port 7777`,
		SilenceUsage: true,
		RunE:         runServe,
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&settingsFile, "settings", "", "settings file (default is $HOME/.config/changeup/changeupd.yaml)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.Bool("pretty", false, "human-readable console logs")

	rootCmd.Flags().String("rules", "", "rule file (default is $HOME/.config/changeup/config.toml)")
	rootCmd.Flags().Int("http-port", 0, "serve the debug HTTP API on this port (0 disables it)")
	rootCmd.Flags().Bool("no-watch", false, "do not reload the rule file when it changes")

	// Bind flags to viper
	viper.BindPFlag("log_level", flags.Lookup("log-level"))
	viper.BindPFlag("pretty_logs", flags.Lookup("pretty"))
	viper.BindPFlag("rules", rootCmd.Flags().Lookup("rules"))
	viper.BindPFlag("http_port", rootCmd.Flags().Lookup("http-port"))
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
