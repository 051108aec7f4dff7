package config

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// LintError is a semantic problem in an otherwise well-formed rule file.
// Warnings describe files the daemon still runs with.
type LintError struct {
	Path    string
	Message string
	Warning bool
}

func (e LintError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Lint checks references between actions and rules. Problems are returned
// in a stable order: rules by name first, then actions by position.
func (c *Config) Lint() []LintError {
	var errs []LintError

	names := make([]string, 0, len(c.Ruleset))
	for name := range c.Ruleset {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rule := c.Ruleset[name]
		path := fmt.Sprintf("ruleset.%s", name)
		if len(rule.Link) == 0 && rule.Exec == "" {
			errs = append(errs, LintError{Path: path, Message: "rule has no links and no exec fallback, focusing it does nothing", Warning: true})
		}
		for i, link := range rule.Link {
			if link == "" {
				errs = append(errs, LintError{Path: fmt.Sprintf("%s.link[%d]", path, i), Message: "link cannot be empty"})
			}
		}
	}

	keys := make(map[string]int, len(c.Actions))
	for i, action := range c.Actions {
		path := fmt.Sprintf("actions[%d]", i)
		if action.Key == "" {
			errs = append(errs, LintError{Path: path, Message: "key cannot be empty"})
		} else if bad := badBindToken(action.Key); bad != "" {
			errs = append(errs, LintError{Path: path, Message: fmt.Sprintf("key %q cannot contain %s", action.Key, bad)})
		} else if first, dup := keys[action.Key]; dup {
			errs = append(errs, LintError{Path: path, Message: fmt.Sprintf("key %q already bound by actions[%d]", action.Key, first)})
		} else {
			keys[action.Key] = i
		}
		switch action.Type {
		case ActionLast:
			if action.Target != "" {
				errs = append(errs, LintError{Path: path, Message: "Last actions take no target"})
			}
		case ActionRuleFocus:
			if action.Target == "" {
				errs = append(errs, LintError{Path: path, Message: "RuleFocus actions need a target"})
			} else if bad := badBindToken(action.Target); bad != "" {
				errs = append(errs, LintError{Path: path, Message: fmt.Sprintf("target %q cannot contain %s", action.Target, bad)})
			} else if _, ok := c.Ruleset[action.Target]; !ok {
				errs = append(errs, LintError{Path: path, Message: fmt.Sprintf("target %q is not defined in ruleset, the key will report no such rule", action.Target), Warning: true})
			}
		default:
			errs = append(errs, LintError{Path: path, Message: fmt.Sprintf("unknown action type %q (use Last or RuleFocus)", action.Type)})
		}
	}
	return errs
}

// Warnings returns the lint findings that do not stop the file loading.
func (c *Config) Warnings() []LintError {
	var warns []LintError
	for _, e := range c.Lint() {
		if e.Warning {
			warns = append(warns, e)
		}
	}
	return warns
}

// badBindToken names the first character that would split a bindsym
// command: whitespace separates arguments, ';' and ',' chain commands.
func badBindToken(s string) string {
	i := strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == ';' || r == ','
	})
	if i < 0 {
		return ""
	}
	switch c := s[i]; c {
	case ';', ',':
		return fmt.Sprintf("%q", string(c))
	default:
		return "whitespace"
	}
}
