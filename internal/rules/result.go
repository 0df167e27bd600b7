package rules

type Status string

const (
	StatusPassed        Status = "passed"
	StatusFailed        Status = "failed"
	StatusNotApplicable Status = "not_applicable"
	StatusError         Status = "error"
)

// Statuses lists every verdict status in report row order.
var Statuses = []Status{StatusPassed, StatusFailed, StatusNotApplicable, StatusError}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Label is the human-readable row label used in reports.
func (s Status) Label() string {
	switch s {
	case StatusPassed:
		return "Passed"
	case StatusFailed:
		return "Failed"
	case StatusNotApplicable:
		return "Not Applicable"
	case StatusError:
		return "Error"
	default:
		return string(s)
	}
}

type Category string

const (
	CategorySecurity    Category = "Security"
	CategoryPerformance Category = "Performance"
	CategoryReliability Category = "Reliability"
)

// Result is the verdict of one rule in one run.
type Result struct {
	RuleID   string   `json:"rule_id" yaml:"rule_id"`
	Title    string   `json:"title,omitempty" yaml:"title,omitempty"`
	Category Category `json:"category" yaml:"category"`
	Status   Status   `json:"status" yaml:"status"`
	Message  string   `json:"message,omitempty" yaml:"message,omitempty"`
	// Reportable is false for rules in the dont_report set. Such verdicts are
	// kept but do not appear in the report card or affect the exit code.
	Reportable bool `json:"reportable" yaml:"reportable"`
	// Evidence contains simple key-value string pairs supporting the result.
	Evidence map[string]string `json:"evidence,omitempty" yaml:"evidence,omitempty"`
	// ConfigKeys lists the host keys the rule read while evaluating.
	ConfigKeys []string `json:"config_keys,omitempty" yaml:"config_keys,omitempty"`
}
