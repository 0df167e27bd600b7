package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"appaudit/internal/host"
	"appaudit/internal/rules"

	"github.com/rs/zerolog"
)

type stubRule struct {
	id       string
	title    string
	category rules.Category
	envs     []string
	noCI     bool
	calls    int
	eval     func(hc host.Context) (rules.Result, error)
}

func (r *stubRule) ID() string { return r.id }
func (r *stubRule) Title() string {
	if r.title != "" {
		return r.title
	}
	return "Stub " + r.id
}
func (r *stubRule) Description() string      { return "Test-only rule" }
func (r *stubRule) Category() rules.Category { return r.category }
func (r *stubRule) Environments() []string   { return r.envs }
func (r *stubRule) RunInCI() bool            { return !r.noCI }
func (r *stubRule) Evaluate(ctx context.Context, hc host.Context) (rules.Result, error) {
	r.calls++
	if r.eval == nil {
		return rules.PassResult(r.id), nil
	}
	return r.eval(hc)
}

type recordingRecorder struct {
	got []any
}

func (r *recordingRecorder) Write(v any) error {
	r.got = append(r.got, v)
	return nil
}

func newSnapshot(t *testing.T, values map[string]any) *host.Snapshot {
	t.Helper()
	s, err := host.NewSnapshot(values)
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	return s
}

func TestRunner_RunsInOrderAndStampsVerdicts(t *testing.T) {
	first := &stubRule{id: "first", category: rules.CategorySecurity, eval: func(hc host.Context) (rules.Result, error) {
		_, _, err := hc.ConfigValue("cache.prefix")
		return rules.FailResult("", "bad prefix"), err
	}}
	second := &stubRule{id: "second", category: rules.CategoryReliability}

	rec := &recordingRecorder{}
	r := &Runner{Out: rec, Logger: zerolog.Nop()}
	rep, err := r.Run(context.Background(), []rules.Rule{first, second}, newSnapshot(t, nil))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if !rep.Finalized() {
		t.Fatalf("expected finalized report")
	}

	entries := rep.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	got := entries[0]
	if got.RuleID != "first" || got.Title != "Stub first" || got.Category != rules.CategorySecurity {
		t.Fatalf("verdict not stamped: %+v", got)
	}
	if got.Status != rules.StatusFailed || got.Message != "bad prefix" || !got.Reportable {
		t.Fatalf("unexpected verdict: %+v", got)
	}
	if len(got.ConfigKeys) != 1 || got.ConfigKeys[0] != "cache.prefix" {
		t.Fatalf("unexpected config keys: %v", got.ConfigKeys)
	}
	if entries[1].RuleID != "second" || entries[1].Status != rules.StatusPassed {
		t.Fatalf("unexpected second verdict: %+v", entries[1])
	}

	if len(rec.got) != 2 {
		t.Fatalf("expected 2 streamed verdicts, got %d", len(rec.got))
	}
	if res, ok := rec.got[0].(rules.Result); !ok || res.RuleID != "first" {
		t.Fatalf("unexpected streamed value: %#v", rec.got[0])
	}
}

func TestRunner_CIModeSkipsIneligibleRules(t *testing.T) {
	eligible := &stubRule{id: "eligible", category: rules.CategorySecurity}
	skipped := &stubRule{id: "skipped", category: rules.CategorySecurity, noCI: true}

	r := &Runner{CIMode: true, Logger: zerolog.Nop()}
	rep, err := r.Run(context.Background(), []rules.Rule{eligible, skipped}, newSnapshot(t, nil))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if skipped.calls != 0 {
		t.Fatalf("CI-ineligible rule was evaluated")
	}
	if len(rep.Entries()) != 1 || rep.Entries()[0].RuleID != "eligible" {
		t.Fatalf("unexpected entries: %+v", rep.Entries())
	}

	// Outside CI mode the same rule runs.
	r.CIMode = false
	if _, err := r.Run(context.Background(), []rules.Rule{skipped}, newSnapshot(t, nil)); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if skipped.calls != 1 {
		t.Fatalf("expected rule to run outside CI, calls=%d", skipped.calls)
	}
}

func TestRunner_DontReportStillEvaluates(t *testing.T) {
	hidden := &stubRule{id: "hidden", category: rules.CategorySecurity, eval: func(hc host.Context) (rules.Result, error) {
		return rules.FailResult("hidden", "nope"), nil
	}}

	r := &Runner{DontReport: map[string]bool{"hidden": true}, Logger: zerolog.Nop()}
	rep, err := r.Run(context.Background(), []rules.Rule{hidden}, newSnapshot(t, nil))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if hidden.calls != 1 {
		t.Fatalf("dont_report rule must still run")
	}
	if e := rep.Entries()[0]; e.Reportable || e.Status != rules.StatusFailed {
		t.Fatalf("unexpected verdict: %+v", e)
	}
	if rep.ExitCode() != 0 {
		t.Fatalf("non-reportable failure must not fail the run")
	}
}

func TestRunner_CapturesErrorsAndPanics(t *testing.T) {
	failing := &stubRule{id: "failing", category: rules.CategorySecurity, eval: func(hc host.Context) (rules.Result, error) {
		return rules.Result{}, errors.New("boom")
	}}
	panicking := &stubRule{id: "panicking", category: rules.CategoryPerformance, eval: func(hc host.Context) (rules.Result, error) {
		panic("kaboom")
	}}
	invalid := &stubRule{id: "invalid", category: rules.CategoryPerformance, eval: func(hc host.Context) (rules.Result, error) {
		return rules.Result{Status: "maybe"}, nil
	}}
	after := &stubRule{id: "after", category: rules.CategoryReliability}

	r := &Runner{Logger: zerolog.Nop()}
	rep, err := r.Run(context.Background(), []rules.Rule{failing, panicking, invalid, after}, newSnapshot(t, nil))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	entries := rep.Entries()
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	if entries[0].Status != rules.StatusError || entries[0].Message != "boom" {
		t.Fatalf("unexpected verdict for failing: %+v", entries[0])
	}
	if entries[1].Status != rules.StatusError || entries[1].Message != "panic: kaboom" || entries[1].RuleID != "panicking" {
		t.Fatalf("unexpected verdict for panicking: %+v", entries[1])
	}
	if entries[2].Status != rules.StatusError || !strings.Contains(entries[2].Message, `invalid verdict status "maybe"`) {
		t.Fatalf("unexpected verdict for invalid: %+v", entries[2])
	}
	if after.calls != 1 || entries[3].Status != rules.StatusPassed {
		t.Fatalf("run must continue after captured failures")
	}
	if rep.ExitCode() != 0 {
		t.Fatalf("errors must not fail the run by default, got %d", rep.ExitCode())
	}

	r.FailOnError = true
	rep, err = r.Run(context.Background(), []rules.Rule{failing}, newSnapshot(t, nil))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if rep.ExitCode() != 1 {
		t.Fatalf("expected exit code 1 with fail-on-error, got %d", rep.ExitCode())
	}
}

func TestRunner_HostUnavailable(t *testing.T) {
	reader := &stubRule{id: "reader", category: rules.CategorySecurity, eval: func(hc host.Context) (rules.Result, error) {
		_, err := hc.DebugEnabled()
		return rules.Result{}, err
	}}

	r := &Runner{Rethrow: true, Logger: zerolog.Nop()}
	_, err := r.Run(context.Background(), []rules.Rule{reader}, nil)
	var ruleErr *RuleError
	if !errors.As(err, &ruleErr) {
		t.Fatalf("expected *RuleError, got %v", err)
	}
	if !ruleErr.HostUnavailable() || !errors.Is(err, host.ErrUnavailable) {
		t.Fatalf("expected host unavailable error, got %v", err)
	}
}

func TestRunner_InvalidHostValueIsNotHostUnavailable(t *testing.T) {
	reader := &stubRule{id: "reader", category: rules.CategoryReliability, eval: func(hc host.Context) (rules.Result, error) {
		_, _, err := rules.ConfigString(hc, "cache.prefix")
		return rules.Result{}, err
	}}
	hc := newSnapshot(t, map[string]any{"cache.prefix": []any{"a"}})

	r := &Runner{Logger: zerolog.Nop()}
	rep, err := r.Run(context.Background(), []rules.Rule{reader}, hc)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if e := rep.Entries()[0]; e.Status != rules.StatusError || !strings.Contains(e.Message, "cache.prefix") {
		t.Fatalf("unexpected verdict: %+v", e)
	}

	r.Rethrow = true
	_, err = r.Run(context.Background(), []rules.Rule{reader}, hc)
	var ruleErr *RuleError
	if !errors.As(err, &ruleErr) {
		t.Fatalf("expected *RuleError, got %v", err)
	}
	if ruleErr.HostUnavailable() || !ruleErr.InvalidHostValue() {
		t.Fatalf("expected invalid host value, got %v", err)
	}
}

func TestRunner_RethrowStopsAtFirstFailure(t *testing.T) {
	panicking := &stubRule{id: "panicking", category: rules.CategorySecurity, eval: func(hc host.Context) (rules.Result, error) {
		panic(errors.New("kaboom"))
	}}
	after := &stubRule{id: "after", category: rules.CategorySecurity}

	rec := &recordingRecorder{}
	r := &Runner{Rethrow: true, Out: rec, Logger: zerolog.Nop()}
	rep, err := r.Run(context.Background(), []rules.Rule{panicking, after}, newSnapshot(t, nil))

	var ruleErr *RuleError
	if !errors.As(err, &ruleErr) {
		t.Fatalf("expected *RuleError, got %v", err)
	}
	if ruleErr.RuleID != "panicking" || !ruleErr.Panic || len(ruleErr.Stack) == 0 {
		t.Fatalf("unexpected rule error: %+v", ruleErr)
	}
	if ruleErr.Error() != "rule panicking panicked: kaboom" {
		t.Fatalf("unexpected message: %q", ruleErr.Error())
	}
	if after.calls != 0 {
		t.Fatalf("run must stop after a rethrown failure")
	}
	if len(rep.Entries()) != 0 || len(rec.got) != 0 {
		t.Fatalf("rethrown failure must not be recorded")
	}
	if !rep.Finalized() {
		t.Fatalf("expected finalized report")
	}
}

func TestRunner_ScopeWrapperNotApplicable(t *testing.T) {
	prodOnly := &stubRule{id: "prod-only", category: rules.CategorySecurity, envs: []string{"production"}}

	r := &Runner{Logger: zerolog.Nop()}
	rep, err := r.Run(context.Background(), []rules.Rule{&rules.ScopeWrapper{Rule: prodOnly}}, newSnapshot(t, map[string]any{"app.env": "local"}))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	e := rep.Entries()[0]
	if e.Status != rules.StatusNotApplicable || prodOnly.calls != 0 {
		t.Fatalf("expected not_applicable without evaluation, got %+v (calls=%d)", e, prodOnly.calls)
	}
	if e.Title != "Stub prod-only" || len(e.ConfigKeys) != 1 || e.ConfigKeys[0] != host.KeyEnvironment {
		t.Fatalf("unexpected stamped fields: %+v", e)
	}
}

func TestRunner_ContextCanceled(t *testing.T) {
	rule := &stubRule{id: "never", category: rules.CategorySecurity}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &Runner{Logger: zerolog.Nop()}
	rep, err := r.Run(ctx, []rules.Rule{rule}, newSnapshot(t, nil))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if rule.calls != 0 || len(rep.Entries()) != 0 {
		t.Fatalf("no rule should run after cancellation")
	}
}
