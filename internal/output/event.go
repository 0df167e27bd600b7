package output

import (
	"appaudit/internal/report"
	"appaudit/internal/rules"
)

// Lifecycle event types.
const (
	EventRunStarted  = "run.started"
	EventRuleResult  = "rule.result"
	EventRunFinished = "run.finished"
)

// Event is a lifecycle record for NDJSON streaming output.
//
// In NDJSON mode, sinks emit Events (one JSON object per line):
// - run.started (number of selected rules)
// - rule.result (one per verdict)
// - run.finished (report card summary and exit code)
//
// JSON and YAML modes write a single Document instead.
type Event struct {
	Type string `json:"type"`
	*rules.Result
	Rules    int             `json:"rules,omitempty"`
	Summary  *report.Summary `json:"summary,omitempty"`
	ExitCode int             `json:"exit_code,omitempty"`
}

func eventFromResult(r rules.Result) Event {
	return Event{Type: EventRuleResult, Result: &r}
}

// Document is the aggregate written by json and yaml sinks on Close.
type Document struct {
	Results  []rules.Result  `json:"results" yaml:"results"`
	Summary  *report.Summary `json:"summary,omitempty" yaml:"summary,omitempty"`
	ExitCode int             `json:"exit_code" yaml:"exit_code"`
}

// collector accumulates the aggregate Document from the event stream.
type collector struct {
	doc Document
}

func (c *collector) collect(v any) {
	switch t := v.(type) {
	case rules.Result:
		c.doc.Results = append(c.doc.Results, t)
	case Event:
		if t.Type == EventRunFinished {
			c.doc.Summary = t.Summary
			c.doc.ExitCode = t.ExitCode
		}
	}
}

func (c *collector) document() Document {
	d := c.doc
	if d.Results == nil {
		d.Results = []rules.Result{}
	}
	return d
}
