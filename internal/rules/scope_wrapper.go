package rules

import (
	"context"
	"fmt"
	"strings"

	"appaudit/internal/host"
)

// ScopeWrapper wraps a Rule to apply environment scoping. A rule whose
// environments do not include the host environment yields not_applicable
// without being evaluated.
type ScopeWrapper struct {
	Rule
	scope Scope
}

// Environments returns the configured override or the inner rule's default.
func (w *ScopeWrapper) Environments() []string {
	if len(w.scope.Environments) > 0 {
		return w.scope.Environments
	}
	return w.Rule.Environments()
}

// RunInCI returns the configured override or the inner rule's default.
func (w *ScopeWrapper) RunInCI() bool {
	if w.scope.RunInCI != nil {
		return *w.scope.RunInCI
	}
	return w.Rule.RunInCI()
}

// Evaluate checks the environment scope before calling the inner rule.
func (w *ScopeWrapper) Evaluate(ctx context.Context, hc host.Context) (Result, error) {
	envs := w.Environments()
	if len(envs) > 0 {
		env, err := hc.Environment()
		if err != nil {
			return Result{}, err
		}
		if !Applies(envs, env) {
			return NotApplicableResult(w.ID(), fmt.Sprintf("Only applies to %s environments (current: %s)", strings.Join(envs, ", "), env)), nil
		}
	}
	return w.Rule.Evaluate(ctx, hc)
}

// Options returns the combined options of the scope and the inner rule (if configurable).
func (w *ScopeWrapper) Options() []Option {
	opts := w.scope.Options()
	if cr, ok := w.Rule.(ConfigurableRule); ok {
		opts = append(opts, cr.Options()...)
	}
	return opts
}

// Configure configures the scope and the inner rule (if configurable).
func (w *ScopeWrapper) Configure(opts map[string]string) error {
	if err := w.scope.Configure(opts); err != nil {
		return err
	}
	if cr, ok := w.Rule.(ConfigurableRule); ok {
		return cr.Configure(opts)
	}
	return nil
}
