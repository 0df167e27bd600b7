package rules

import (
	"context"

	"appaudit/internal/host"
)

type Rule interface {
	ID() string
	Title() string
	Description() string
	Category() Category

	// Environments lists the host environments the rule applies to.
	// Empty means every environment.
	Environments() []string

	// RunInCI reports whether the rule is meaningful inside a CI pipeline.
	// CI mode skips rules that return false.
	RunInCI() bool

	// Evaluate runs rule logic against read-only host state.
	// Expected violations are a failed Result; only exceptional conditions
	// return an error.
	Evaluate(ctx context.Context, hc host.Context) (Result, error)
}

type Option struct {
	Name        string
	Description string
	Default     string
}

type ConfigurableRule interface {
	Rule
	Options() []Option
	Configure(opts map[string]string) error
}

// Factory constructs a fresh rule instance for one run.
type Factory func() Rule
