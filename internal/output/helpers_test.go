package output

import (
	"testing"

	"appaudit/internal/report"
	"appaudit/internal/rules"

	"github.com/fatih/color"
)

func init() {
	color.NoColor = true
}

// runEvents returns the event stream of a small run: one passing security
// check, one failing performance check, one hidden failure and one error.
func runEvents(t *testing.T) []any {
	t.Helper()

	results := []rules.Result{
		{RuleID: "app-debug", Title: "Debug Mode Disabled", Category: rules.CategorySecurity, Status: rules.StatusPassed, Reportable: true},
		{RuleID: "unused-global-middleware", Title: "No Unused Middleware", Category: rules.CategoryPerformance, Status: rules.StatusFailed, Message: "TrustHosts unused", Reportable: true},
		{RuleID: "cache-prefix", Title: "Cache Prefix", Category: rules.CategoryReliability, Status: rules.StatusFailed, Message: "default prefix", Reportable: false},
		{RuleID: "faulty-rule", Title: "Faulty Check", Category: rules.CategorySecurity, Status: rules.StatusError, Message: "boom", Reportable: true},
	}

	rep := report.New(false)
	events := []any{Event{Type: EventRunStarted, Rules: len(results)}}
	for _, r := range results {
		if err := rep.Add(r); err != nil {
			t.Fatalf("Add: %v", err)
		}
		events = append(events, r)
	}
	rep.Finalize()
	summary := rep.Summarize()
	events = append(events, Event{Type: EventRunFinished, Summary: &summary, ExitCode: rep.ExitCode()})
	return events
}

func writeAll(t *testing.T, s Sink, events []any) {
	t.Helper()
	for _, e := range events {
		if err := s.Write(e); err != nil {
			t.Fatalf("Write(%T) error: %v", e, err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
}
