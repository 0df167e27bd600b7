package output

import (
	"errors"
	"fmt"

	"appaudit/internal/rules"
)

// ErrClosed is returned when writing to a Manager after Close.
var ErrClosed = errors.New("audit output already closed")

// Sink receives the records of one audit run: a run.started Event, one
// rules.Result per evaluated rule, then a run.finished Event.
type Sink interface {
	Write(v any) error
	Close() error
}

// Manager fans the audit records out to every sink. It rejects values that
// are not audit records and verdicts that arrive after run.finished, so
// sinks only ever see a well-formed run.
type Manager struct {
	sinks    []Sink
	verdicts int
	finished bool
	closed   bool
}

func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) AddSink(s Sink) error {
	if m == nil {
		return fmt.Errorf("output manager is nil")
	}
	if s == nil {
		return fmt.Errorf("sink must not be nil")
	}
	if m.closed {
		return ErrClosed
	}
	m.sinks = append(m.sinks, s)
	return nil
}

// Verdicts is the number of rule verdicts written so far.
func (m *Manager) Verdicts() int {
	if m == nil {
		return 0
	}
	return m.verdicts
}

func (m *Manager) Write(v any) error {
	if m == nil {
		return fmt.Errorf("output manager is nil")
	}
	if m.closed {
		return ErrClosed
	}
	switch t := v.(type) {
	case rules.Result:
		if m.finished {
			return fmt.Errorf("verdict for %s written after %s", t.RuleID, EventRunFinished)
		}
		m.verdicts++
	case Event:
		if t.Type == EventRunFinished {
			m.finished = true
		}
	default:
		return fmt.Errorf("unsupported audit record %T", v)
	}

	var errs []error
	for _, s := range m.sinks {
		if err := s.Write(v); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", s, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("writing audit record: %w", errors.Join(errs...))
	}
	return nil
}

// Close closes every sink once. Later calls return nil.
func (m *Manager) Close() error {
	if m == nil {
		return fmt.Errorf("output manager is nil")
	}
	if m.closed {
		return nil
	}
	m.closed = true
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", s, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("closing audit outputs: %w", errors.Join(errs...))
	}
	return nil
}
