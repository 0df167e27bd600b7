// Package report aggregates rule verdicts into the per-category report card
// and derives the process exit status.
package report

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"appaudit/internal/rules"
)

// ErrFinalized is returned by Add once the report has been finalized.
var ErrFinalized = errors.New("report is finalized")

// Report holds the verdicts of one run in rule order.
type Report struct {
	entries     []rules.Result
	failOnError bool
	finalized   bool
}

// New creates an empty report. With failOnError, errored reportable rules
// make the exit status non-zero just like failed ones.
func New(failOnError bool) *Report {
	return &Report{failOnError: failOnError}
}

// Add appends a verdict.
func (r *Report) Add(res rules.Result) error {
	if r.finalized {
		return fmt.Errorf("%w: cannot add %s", ErrFinalized, res.RuleID)
	}
	r.entries = append(r.entries, res)
	return nil
}

// Finalize freezes the report.
func (r *Report) Finalize() {
	r.finalized = true
}

func (r *Report) Finalized() bool {
	return r.finalized
}

// Entries returns every verdict, reportable or not, in rule order.
func (r *Report) Entries() []rules.Result {
	out := make([]rules.Result, len(r.entries))
	copy(out, r.entries)
	return out
}

// Reportable returns the verdicts that count toward the report card.
func (r *Report) Reportable() []rules.Result {
	var out []rules.Result
	for _, e := range r.entries {
		if e.Reportable {
			out = append(out, e)
		}
	}
	return out
}

// Errored returns every errored verdict, reportable or not.
func (r *Report) Errored() []rules.Result {
	var out []rules.Result
	for _, e := range r.entries {
		if e.Status == rules.StatusError {
			out = append(out, e)
		}
	}
	return out
}

// ExitCode is 1 when any reportable rule failed (or errored, with the
// fail-on-error policy), else 0.
func (r *Report) ExitCode() int {
	for _, e := range r.Reportable() {
		if e.Status == rules.StatusFailed {
			return 1
		}
		if r.failOnError && e.Status == rules.StatusError {
			return 1
		}
	}
	return 0
}

// Summarize counts reportable verdicts per status per category.
func (r *Report) Summarize() Summary {
	byCategory := make(map[rules.Category]*Column)
	total := newColumn("Total")

	for _, e := range r.Reportable() {
		col, ok := byCategory[e.Category]
		if !ok {
			col = newColumn(string(e.Category))
			byCategory[e.Category] = col
		}
		col.add(e.Status)
		total.add(e.Status)
	}

	names := make([]string, 0, len(byCategory))
	for c := range byCategory {
		names = append(names, string(c))
	}
	sort.Strings(names)

	s := Summary{Total: *total, ExitCode: r.ExitCode()}
	for _, n := range names {
		s.Categories = append(s.Categories, *byCategory[rules.Category(n)])
	}
	return s
}

// Summary is the report card: one column per category plus a Total column.
type Summary struct {
	Categories []Column `json:"categories" yaml:"categories"`
	Total      Column   `json:"total" yaml:"total"`
	ExitCode   int      `json:"exit_code" yaml:"exit_code"`
}

// Column holds the status counts of one category.
type Column struct {
	Name      string               `json:"name" yaml:"name"`
	Counts    map[rules.Status]int `json:"counts" yaml:"counts"`
	Evaluated int                  `json:"evaluated" yaml:"evaluated"`
}

func newColumn(name string) *Column {
	c := &Column{Name: name, Counts: make(map[rules.Status]int, len(rules.Statuses))}
	for _, s := range rules.Statuses {
		c.Counts[s] = 0
	}
	return c
}

func (c *Column) add(s rules.Status) {
	c.Counts[s]++
	c.Evaluated++
}

func (c Column) Count(s rules.Status) int {
	return c.Counts[s]
}

// Percent is round(count * 100 / evaluated), or 0 for an empty column.
func (c Column) Percent(s rules.Status) int {
	if c.Evaluated == 0 {
		return 0
	}
	return int(math.Round(float64(c.Counts[s]) * 100 / float64(c.Evaluated)))
}

// Cell renders "<count> <(pct%) right-aligned to 6>", e.g. "0   (0%)".
func (c Column) Cell(s rules.Status) string {
	return fmt.Sprintf("%d %6s", c.Count(s), fmt.Sprintf("(%d%%)", c.Percent(s)))
}

// Headers returns the table header: Status, the categories, Total.
func (s Summary) Headers() []string {
	h := []string{"Status"}
	for _, c := range s.Categories {
		h = append(h, c.Name)
	}
	return append(h, s.Total.Name)
}

// Rows returns one row per status in rules.Statuses order.
func (s Summary) Rows() [][]string {
	rows := make([][]string, 0, len(rules.Statuses))
	for _, st := range rules.Statuses {
		row := []string{st.Label()}
		for _, c := range s.Categories {
			row = append(row, c.Cell(st))
		}
		rows = append(rows, append(row, s.Total.Cell(st)))
	}
	return rows
}

// Count returns the total count for a status.
func (s Summary) Count(st rules.Status) int {
	return s.Total.Count(st)
}
