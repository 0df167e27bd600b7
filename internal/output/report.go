package output

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"appaudit/internal/report"
	"appaudit/internal/rules"
)

// ReportSink writes a Markdown report on Close.
type ReportSink struct {
	path           string
	file           *os.File
	showExceptions bool
	mu             sync.Mutex
	results        []rules.Result
	summary        *report.Summary
	exitCode       int
	haveExitCode   bool
}

func NewReportSink(path string, showExceptions bool) (*ReportSink, error) {
	if path == "" {
		return nil, fmt.Errorf("report path required")
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create report file: %w", err)
	}

	return &ReportSink{
		path:           path,
		file:           f,
		showExceptions: showExceptions,
	}, nil
}

func (s *ReportSink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch t := v.(type) {
	case rules.Result:
		s.results = append(s.results, t)
	case Event:
		if t.Type == EventRunFinished {
			s.summary = t.Summary
			s.exitCode = t.ExitCode
			s.haveExitCode = true
		}
	}
	return nil
}

func (s *ReportSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	content := renderMarkdown(s.results, s.summary, s.showExceptions)
	if s.haveExitCode {
		content += fmt.Sprintf("Exit code: `%d`\n", s.exitCode)
	}

	_, err := s.file.WriteString(content)
	if closeErr := s.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

func renderMarkdown(results []rules.Result, summary *report.Summary, showExceptions bool) string {
	var failed, errored, hidden []rules.Result
	for _, r := range results {
		if !r.Reportable {
			hidden = append(hidden, r)
			continue
		}
		switch r.Status {
		case rules.StatusFailed:
			failed = append(failed, r)
		case rules.StatusError:
			errored = append(errored, r)
		}
	}

	var b strings.Builder
	b.WriteString("# Configuration Audit Report\n\n")

	b.WriteString("## " + CardTitle + "\n\n")
	if summary == nil {
		b.WriteString("No summary available (the run did not finish).\n\n")
	} else {
		headers := summary.Headers()
		b.WriteString("| " + strings.Join(headers, " | ") + " |\n")
		b.WriteString("| ---")
		for range headers[1:] {
			b.WriteString(" | ---:")
		}
		b.WriteString(" |\n")
		for _, row := range summary.Rows() {
			b.WriteString("| " + strings.Join(row, " | ") + " |\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("## Failed Checks\n\n")
	if len(failed) == 0 {
		b.WriteString("No failed checks.\n\n")
	} else {
		b.WriteString("| Check | Category | Finding |\n")
		b.WriteString("| --- | --- | --- |\n")
		for _, r := range failed {
			b.WriteString(fmt.Sprintf("| `%s` %s | %s | %s |\n", r.RuleID, escapeCell(r.Title), r.Category, escapeCell(r.Message)))
		}
		b.WriteString("\n")
	}

	if len(errored) > 0 {
		b.WriteString("## Errored Checks\n\n")
		if !showExceptions {
			b.WriteString(fmt.Sprintf("%d %s raised an error. Re-run with `--show-exceptions` for details.\n\n", len(errored), plural(len(errored), "check", "checks")))
		} else {
			b.WriteString("| Check | Error |\n")
			b.WriteString("| --- | --- |\n")
			for _, r := range errored {
				b.WriteString(fmt.Sprintf("| `%s` | %s |\n", r.RuleID, escapeCell(normalizeErrorReason(r.Message))))
			}
			b.WriteString("\n")
		}
	}

	if len(hidden) > 0 {
		b.WriteString("## Not Reported\n\n")
		b.WriteString("These checks ran but are excluded from the report card and the exit status.\n\n")
		for _, r := range hidden {
			b.WriteString(fmt.Sprintf("- `%s`: %s\n", r.RuleID, r.Status.Label()))
		}
		b.WriteString("\n")
	}

	return b.String()
}

// normalizeErrorReason collapses whitespace and truncates long messages.
func normalizeErrorReason(errText string) string {
	s := strings.Join(strings.Fields(errText), " ")
	if len(s) > 120 {
		return s[:117] + "..."
	}
	return s
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", "<br>")
}
