package engine

import (
	"context"
	"fmt"
	"runtime/debug"

	"appaudit/internal/host"
	"appaudit/internal/report"
	"appaudit/internal/rules"

	"github.com/rs/zerolog"
)

// Recorder receives every verdict as soon as it is produced.
// *output.Manager satisfies it.
type Recorder interface {
	Write(v any) error
}

// Runner evaluates rules one at a time, in order, against a shared host
// Context.
type Runner struct {
	// CIMode skips rules that are not eligible for CI. Skipped rules get no
	// verdict at all.
	CIMode bool

	// DontReport holds rule IDs whose verdicts are kept but marked
	// non-reportable.
	DontReport map[string]bool

	// Rethrow stops the run at the first captured rule failure and returns
	// it as a *RuleError.
	Rethrow bool

	// FailOnError is passed to the report's exit status policy.
	FailOnError bool

	Out    Recorder
	Logger zerolog.Logger
}

// Run evaluates selected against hc and returns the finalized report.
//
// Errors and panics raised by a rule become error verdicts and the run
// continues, unless Rethrow is set. The returned report is always
// finalized, including when Run returns an error.
func (r *Runner) Run(ctx context.Context, selected []rules.Rule, hc host.Context) (*report.Report, error) {
	rep := report.New(r.FailOnError)
	defer rep.Finalize()

	for _, rule := range selected {
		if err := ctx.Err(); err != nil {
			return rep, err
		}

		if r.CIMode && !rule.RunInCI() {
			r.Logger.Debug().Str("rule", rule.ID()).Msg("Skipping rule in CI mode")
			continue
		}

		r.Logger.Debug().Str("rule", rule.ID()).Msg("Evaluating rule")
		res, ruleErr := r.evaluate(ctx, rule, hc)
		if ruleErr != nil {
			r.Logger.Warn().
				Err(ruleErr.Err).
				Str("rule", ruleErr.RuleID).
				Bool("panic", ruleErr.Panic).
				Bool("hostUnavailable", ruleErr.HostUnavailable()).
				Bool("invalidHostValue", ruleErr.InvalidHostValue()).
				Msg("Rule raised an error")
			if r.Rethrow {
				return rep, ruleErr
			}
		}
		r.Logger.Debug().Str("rule", rule.ID()).Str("status", string(res.Status)).Msg("Rule evaluated")

		if err := rep.Add(res); err != nil {
			return rep, err
		}
		if r.Out != nil {
			if err := r.Out.Write(res); err != nil {
				r.Logger.Warn().Err(err).Str("rule", rule.ID()).Msg("Failed to write verdict")
			}
		}
	}
	return rep, nil
}

// evaluate runs one rule through a TrackingContext and always returns a
// stamped verdict. ruleErr is non-nil when the verdict is a captured failure.
func (r *Runner) evaluate(ctx context.Context, rule rules.Rule, hc host.Context) (res rules.Result, ruleErr *RuleError) {
	tracked := host.NewTrackingContext(hc)

	defer func() {
		if p := recover(); p != nil {
			ruleErr = &RuleError{RuleID: rule.ID(), Err: panicError(p), Panic: true, Stack: debug.Stack()}
			res = rules.ErrorResult(rule.ID(), ruleErr.Message())
		}
		res = r.stamp(res, rule, tracked)
	}()

	out, err := rule.Evaluate(ctx, tracked)
	if err != nil {
		ruleErr = &RuleError{RuleID: rule.ID(), Err: err}
		return rules.ErrorResult(rule.ID(), ruleErr.Message()), ruleErr
	}
	if !out.Status.Valid() {
		ruleErr = &RuleError{RuleID: rule.ID(), Err: fmt.Errorf("invalid verdict status %q", out.Status)}
		return rules.ErrorResult(rule.ID(), ruleErr.Message()), ruleErr
	}
	return out, nil
}

// stamp fills the fields the runner owns so rules only report status,
// message and evidence.
func (r *Runner) stamp(res rules.Result, rule rules.Rule, tracked *host.TrackingContext) rules.Result {
	res.RuleID = rule.ID()
	res.Title = rule.Title()
	res.Category = rule.Category()
	res.Reportable = !r.DontReport[rule.ID()]
	res.ConfigKeys = tracked.AccessedKeys()
	return res
}
