package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

const sampleConfig = `
actions = [
  { type = "Last", key = "Mod4+Tab" },
  { type = "RuleFocus", key = "Mod4+b", target = "browser" },
]

[ruleset.browser]
link = ["firefox", "class:Google-chrome", "app_id:torbrowser"]
exec = "firefox"

[ruleset.term]
link = ["foot"]
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeFile(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	wantActions := []Keymap{
		{Type: ActionLast, Key: "Mod4+Tab"},
		{Type: ActionRuleFocus, Key: "Mod4+b", Target: "browser"},
	}
	if !reflect.DeepEqual(cfg.Actions, wantActions) {
		t.Fatalf("actions = %+v, want %+v", cfg.Actions, wantActions)
	}
	browser, ok := cfg.Ruleset["browser"]
	if !ok {
		t.Fatal("browser rule missing")
	}
	if got := browser.Link; !reflect.DeepEqual(got, []string{"firefox", "class:Google-chrome", "app_id:torbrowser"}) {
		t.Fatalf("browser links = %v", got)
	}
	if browser.Exec != "firefox" {
		t.Fatalf("browser exec = %q", browser.Exec)
	}
	if term := cfg.Ruleset["term"]; term.Exec != "" {
		t.Fatalf("term exec = %q, want empty", term.Exec)
	}
}

func TestLoadArrayOfTablesActions(t *testing.T) {
	cfg, err := Parse([]byte(`
[ruleset.term]
link = ["foot"]

[[actions]]
type = "RuleFocus"
key = "Mod4+Return"
target = "term"
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cfg.Actions) != 1 || cfg.Actions[0].Target != "term" {
		t.Fatalf("actions = %+v", cfg.Actions)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Ruleset == nil || cfg.Actions == nil {
		t.Fatal("empty config should have non-nil ruleset and actions")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("err = %v, want *LoadError", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want to wrap ErrNotExist", err)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantSub string
	}{
		{
			name:    "syntax",
			input:   "[ruleset.term\nlink = 1",
			wantSub: "parse error",
		},
		{
			name:    "unknown key",
			input:   "[ruleset.term]\nlink = [\"foot\"]\nlaunch = \"foot\"\n",
			wantSub: "unknown keys",
		},
		{
			name:    "actions after table",
			input:   "[ruleset.term]\nlink = [\"foot\"]\nactions = [{ type = \"Last\", key = \"a\" }]\n",
			wantSub: "unknown keys",
		},
		{
			name:    "space in key",
			input:   "actions = [{ type = \"Last\", key = \"Mod4+a exec rm\" }]\n",
			wantSub: "cannot contain whitespace",
		},
		{
			name:    "chained key",
			input:   "actions = [{ type = \"Last\", key = \"Mod4+a;exit\" }]\n",
			wantSub: `cannot contain ";"`,
		},
		{
			name:    "comma in target",
			input:   "actions = [{ type = \"RuleFocus\", key = \"a\", target = \"term,exit\" }]\n",
			wantSub: `cannot contain ","`,
		},
		{
			name:    "unknown type",
			input:   "actions = [{ type = \"Jump\", key = \"a\" }]\n",
			wantSub: "unknown action type",
		},
		{
			name:    "duplicate key",
			input:   "actions = [{ type = \"Last\", key = \"a\" }, { type = \"Last\", key = \"a\" }]\n",
			wantSub: "already bound",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Fatalf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestParseKeepsWarnings(t *testing.T) {
	input := "actions = [{ type = \"RuleFocus\", key = \"a\", target = \"nope\" }]\n\n[ruleset.none]\nlink = []\n"
	cfg, err := Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	warns := cfg.Warnings()
	if len(warns) != 2 {
		t.Fatalf("got %d warnings, want 2: %v", len(warns), warns)
	}
	if warns[0].Path != "ruleset.none" || !strings.Contains(warns[0].Message, "no links") {
		t.Errorf("warnings[0] = %v", warns[0])
	}
	if warns[1].Path != "actions[0]" || !strings.Contains(warns[1].Message, `target "nope" is not defined`) {
		t.Errorf("warnings[1] = %v", warns[1])
	}
}

func TestLintOrderIsStable(t *testing.T) {
	cfg := Config{
		Ruleset: Ruleset{"b": {}, "a": {}},
		Actions: []Keymap{{Type: ActionLast}},
	}
	errs := cfg.Lint()
	if len(errs) != 3 {
		t.Fatalf("got %d lint errors, want 3: %v", len(errs), errs)
	}
	if errs[0].Path != "ruleset.a" || errs[1].Path != "ruleset.b" || errs[2].Path != "actions[0]" {
		t.Fatalf("unexpected order: %v", errs)
	}
}

func TestMarshalActionsRoundTrip(t *testing.T) {
	actions := []Keymap{
		{Type: ActionLast, Key: "Mod4+Tab"},
		{Type: ActionRuleFocus, Key: "Mod4+b", Target: "browser"},
	}
	out, err := MarshalActions(actions)
	if err != nil {
		t.Fatalf("MarshalActions: %v", err)
	}
	cfg, err := Parse([]byte(out + "\n[ruleset.browser]\nlink = [\"firefox\"]\n"))
	if err != nil {
		t.Fatalf("Parse(%q): %v", out, err)
	}
	if !reflect.DeepEqual(cfg.Actions, actions) {
		t.Fatalf("round trip = %+v, want %+v", cfg.Actions, actions)
	}
}

func TestMarshalRuleset(t *testing.T) {
	rs := Ruleset{"term": {Link: []string{"foot"}, Exec: "foot"}}
	out, err := MarshalRuleset(rs)
	if err != nil {
		t.Fatalf("MarshalRuleset: %v", err)
	}
	cfg, err := Parse([]byte(out))
	if err != nil {
		t.Fatalf("Parse(%q): %v", out, err)
	}
	if !reflect.DeepEqual(cfg.Ruleset, rs) {
		t.Fatalf("round trip = %+v, want %+v", cfg.Ruleset, rs)
	}
}
