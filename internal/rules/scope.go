package rules

import (
	"fmt"
	"strconv"
	"strings"
)

// Scope handles the common applicability options every rule accepts.
// It lets configuration override which environments a rule applies to and
// whether it runs in CI.
type Scope struct {
	Environments []string
	RunInCI      *bool
}

const (
	OptionEnvironments = "environments"
	OptionRunInCI      = "run_in_ci"
)

// Options returns the standard scope options.
func (s *Scope) Options() []Option {
	return []Option{
		{
			Name:        OptionEnvironments,
			Description: "Comma-separated list of environments the rule applies to (\"*\" for all). Overrides the rule default.",
		},
		{
			Name:        OptionRunInCI,
			Description: "Whether the rule runs in CI mode (true/false). Overrides the rule default.",
		},
	}
}

// Configure parses the scope options. Missing options keep the rule defaults.
func (s *Scope) Configure(opts map[string]string) error {
	s.Environments = nil
	s.RunInCI = nil

	if val, ok := opts[OptionEnvironments]; ok && strings.TrimSpace(val) != "" {
		for _, e := range strings.Split(val, ",") {
			e = strings.ToLower(strings.TrimSpace(e))
			if e != "" {
				s.Environments = append(s.Environments, e)
			}
		}
	}

	if val, ok := opts[OptionRunInCI]; ok && strings.TrimSpace(val) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		if err != nil {
			return fmt.Errorf("invalid value for %s: %s", OptionRunInCI, val)
		}
		s.RunInCI = &b
	}
	return nil
}

// Applies reports whether a rule scoped to environments applies to env.
func Applies(environments []string, env string) bool {
	if len(environments) == 0 {
		return true
	}
	env = strings.ToLower(strings.TrimSpace(env))
	for _, e := range environments {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "*" || e == env {
			return true
		}
	}
	return false
}
