package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gyara/changeup/internal/station"
	"github.com/spf13/cobra"
)

var (
	busName string
	timeout time.Duration
	rootCmd = &cobra.Command{
		Use:   "changeup",
		Short: "changeup - talk to the changeupd focus daemon",
		Long: `changeup sends requests to a running changeupd over the session bus.
It is meant to be bound to keys in the window manager.`,
		Example: `  # Jump back to the previous window
  changeup last

  # Focus-or-launch the "term" rule
  changeup rule-focus term

  # Load a new rule file
  changeup config ~/.config/changeup/config.toml`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&busName, "bus-name", station.DefaultBusName, "D-Bus name of the daemon")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// withClient connects to the daemon and runs fn with a request deadline.
func withClient(fn func(ctx context.Context, c *station.Client) error) error {
	c, err := station.Connect(busName)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return fn(ctx, c)
}
