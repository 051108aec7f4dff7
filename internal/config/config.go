// Package config loads the rule file and the daemon settings.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// ActionType selects what a keybinding does.
type ActionType string

const (
	ActionLast      ActionType = "Last"
	ActionRuleFocus ActionType = "RuleFocus"
)

// Keymap binds one key to an action.
type Keymap struct {
	Type   ActionType `toml:"type" json:"type" yaml:"type"`
	Key    string     `toml:"key" json:"key" yaml:"key"`
	Target string     `toml:"target,omitempty" json:"target,omitempty" yaml:"target,omitempty"`
}

// Rule is an ordered list of identity links with an optional fallback
// command run when none of them has a live window.
type Rule struct {
	Link []string `toml:"link" json:"link" yaml:"link"`
	Exec string   `toml:"exec,omitempty" json:"exec,omitempty" yaml:"exec,omitempty"`
}

// Ruleset maps rule names to rules.
type Ruleset map[string]Rule

// Config is the parsed rule file.
//
// In TOML, a bare "actions = [...]" key must come before the first
// [ruleset.<name>] table; "[[actions]]" tables may appear anywhere.
type Config struct {
	Actions []Keymap `toml:"actions" json:"actions" yaml:"actions"`
	Ruleset Ruleset  `toml:"ruleset" json:"ruleset" yaml:"ruleset"`
}

// LoadError reports a rule file that could not be read, parsed or linted.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load config %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// DefaultPath returns $XDG_CONFIG_HOME/changeup/config.toml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(dir, "changeup", "config.toml")
}

// Load reads, parses and lints the rule file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return cfg, nil
}

// Parse decodes and lints a rule file. Unknown keys are rejected; lint
// warnings are left for Warnings to report.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, describeDecodeError(err)
	}
	if cfg.Ruleset == nil {
		cfg.Ruleset = Ruleset{}
	}
	if cfg.Actions == nil {
		cfg.Actions = []Keymap{}
	}
	for _, e := range cfg.Lint() {
		if !e.Warning {
			return nil, e
		}
	}
	return &cfg, nil
}

func describeDecodeError(err error) error {
	var decodeErr *toml.DecodeError
	if errors.As(err, &decodeErr) {
		row, col := decodeErr.Position()
		return fmt.Errorf("parse error at line %d column %d: %s", row, col, decodeErr.Error())
	}
	var strictErr *toml.StrictMissingError
	if errors.As(err, &strictErr) {
		return fmt.Errorf("unknown keys:\n%s", strictErr.String())
	}
	return fmt.Errorf("parse config: %w", err)
}

// MarshalRuleset renders a ruleset as TOML [ruleset.<name>] tables.
func MarshalRuleset(rs Ruleset) (string, error) {
	data, err := toml.Marshal(struct {
		Ruleset Ruleset `toml:"ruleset"`
	}{Ruleset: rs})
	if err != nil {
		return "", fmt.Errorf("marshal ruleset: %w", err)
	}
	return string(data), nil
}

// MarshalActions renders a keymap list as TOML [[actions]] tables.
func MarshalActions(actions []Keymap) (string, error) {
	data, err := toml.Marshal(struct {
		Actions []Keymap `toml:"actions"`
	}{Actions: actions})
	if err != nil {
		return "", fmt.Errorf("marshal actions: %w", err)
	}
	return string(data), nil
}
