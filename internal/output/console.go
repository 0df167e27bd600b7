package output

import (
	"fmt"
	"io"
	"os"
	"sync"

	"appaudit/internal/rules"

	"github.com/fatih/color"
)

// ConsoleSink prints the audit to stdout: progress lines and the report card
// in text format, or the json/ndjson structured forms.
type ConsoleSink struct {
	writer         io.Writer
	format         string
	showExceptions bool
	mu             sync.Mutex
	out            *structured // nil in text format
	formatErr      error
	errored        int
}

func NewConsoleSink(w io.Writer, format string, showExceptions bool) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	if format == "" {
		format = "text"
	}

	s := &ConsoleSink{
		writer:         w,
		format:         format,
		showExceptions: showExceptions,
	}
	if format != "text" {
		s.out, s.formatErr = newStructured(w, format, "json", "ndjson")
	}
	return s
}

func (s *ConsoleSink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.formatErr != nil {
		return fmt.Errorf("console: %w", s.formatErr)
	}
	if s.out != nil {
		return s.out.write(v)
	}

	var err error
	switch t := v.(type) {
	case rules.Result:
		err = s.writeResultText(t)
	case Event:
		err = s.writeEventText(t)
	default:
		return nil
	}
	if err != nil {
		return err
	}
	return flushIfPossible(s.writer)
}

func (s *ConsoleSink) writeResultText(r rules.Result) error {
	name := r.Title
	if name == "" {
		name = r.RuleID
		// The rule ID identifies the failing rule; keep it for --show-exceptions.
		if r.Status == rules.StatusError && !s.showExceptions {
			name = unnamedCheck
		}
	}
	suffix := ""
	if !r.Reportable {
		suffix = color.New(color.Faint).Sprint(" (not reported)")
	}
	if _, err := fmt.Fprintf(s.writer, "Checking %s... %s%s\n", name, statusText(r.Status), suffix); err != nil {
		return err
	}

	switch r.Status {
	case rules.StatusFailed:
		if r.Message != "" {
			if _, err := fmt.Fprintf(s.writer, "  %s\n", r.Message); err != nil {
				return err
			}
		}
	case rules.StatusError:
		s.errored++
		// Exception details stay hidden unless asked for.
		if s.showExceptions {
			if _, err := fmt.Fprintf(s.writer, "  [%s] %s\n", r.RuleID, r.Message); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *ConsoleSink) writeEventText(e Event) error {
	switch e.Type {
	case EventRunStarted:
		_, err := fmt.Fprintf(s.writer, "Running %d %s...\n\n", e.Rules, plural(e.Rules, "check", "checks"))
		return err
	case EventRunFinished:
		if e.Summary == nil {
			return nil
		}
		bold := color.New(color.Bold)
		if _, err := fmt.Fprintln(s.writer); err != nil {
			return err
		}
		if _, err := bold.Fprintln(s.writer, CardTitle); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(s.writer, RenderCard(s.writer, *e.Summary)); err != nil {
			return err
		}
		if s.errored > 0 && !s.showExceptions {
			if _, err := fmt.Fprintf(s.writer, "\n%d %s raised an error. Re-run with --show-exceptions for details.\n", s.errored, plural(s.errored, "check", "checks")); err != nil {
				return err
			}
		}
		return nil
	default:
		return nil
	}
}

// unnamedCheck labels an errored rule without a title while exception
// details are hidden.
const unnamedCheck = "unnamed check"

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func statusText(st rules.Status) string {
	switch st {
	case rules.StatusPassed:
		return color.GreenString(st.Label())
	case rules.StatusFailed:
		return color.RedString(st.Label())
	case rules.StatusError:
		return color.MagentaString(st.Label())
	default:
		return color.YellowString(st.Label())
	}
}

func (s *ConsoleSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.formatErr != nil {
		return fmt.Errorf("console: %w", s.formatErr)
	}
	if s.out != nil {
		return s.out.finish()
	}
	return nil
}
