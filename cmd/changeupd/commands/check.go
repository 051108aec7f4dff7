package commands

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/gyara/changeup/internal/config"
	"github.com/gyara/changeup/internal/keymap"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check [rules.toml]",
	Short: "Validate a rule file",
	Long: `Parse and lint a rule file without starting the daemon.

Prints the rules and the keybindings the daemon would install.
Warnings are printed but do not fail the check.`,
	Example: `  # Check the default rule file
  changeupd check

  # Check another file
  changeupd check ./config.toml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	path := config.DefaultPath()
	if len(args) == 1 {
		path = args[0]
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d rules, %d actions\n\n", path, len(cfg.Ruleset), len(cfg.Actions))

	names := make([]string, 0, len(cfg.Ruleset))
	for name := range cfg.Ruleset {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RULE\tLINKS\tEXEC")
	for _, name := range names {
		rule := cfg.Ruleset[name]
		exec := rule.Exec
		if exec == "" {
			exec = "-"
		}
		fmt.Fprintf(w, "%s\t%v\t%s\n", name, rule.Link, exec)
	}
	w.Flush()

	if warns := cfg.Warnings(); len(warns) > 0 {
		fmt.Fprintln(out)
		for _, warn := range warns {
			fmt.Fprintf(out, "warning: %s\n", warn)
		}
	}

	if len(cfg.Actions) > 0 {
		fmt.Fprintln(out)
		for _, k := range cfg.Actions {
			fmt.Fprintln(out, keymap.BindCommand("changeup", k))
		}
	}
	return nil
}
