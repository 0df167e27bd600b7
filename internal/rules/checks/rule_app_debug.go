package checks

import (
	"context"

	"appaudit/internal/host"
	"appaudit/internal/rules"
)

type AppDebugRule struct{}

func (r *AppDebugRule) ID() string {
	return "app-debug"
}

func (r *AppDebugRule) Title() string {
	return "Debug Mode Disabled in Production"
}

func (r *AppDebugRule) Description() string {
	return "Verifies that the application does not run with debug mode enabled in production. Debug pages expose stack traces, configuration values and secrets."
}

func (r *AppDebugRule) Category() rules.Category {
	return rules.CategorySecurity
}

func (r *AppDebugRule) Environments() []string {
	return []string{"production"}
}

func (r *AppDebugRule) RunInCI() bool {
	return true
}

func (r *AppDebugRule) Evaluate(ctx context.Context, hc host.Context) (rules.Result, error) {
	debug, err := hc.DebugEnabled()
	if err != nil {
		return rules.Result{}, err
	}
	if debug {
		return rules.FailResult(r.ID(), "Debug mode is enabled in production"), nil
	}
	return rules.PassResult(r.ID()), nil
}

func init() {
	rules.Register(func() rules.Rule { return &AppDebugRule{} })
}
