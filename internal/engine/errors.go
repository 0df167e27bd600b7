package engine

import (
	"errors"
	"fmt"
	"strings"

	"appaudit/internal/host"
)

// RuleError is a failure captured while evaluating one rule: an error
// returned from Evaluate, a panic, or a verdict with an unknown status.
//
// The runner records it as an error verdict. With Rethrow set, it is also
// returned from Runner.Run.
type RuleError struct {
	RuleID string
	Err    error
	// Panic is true when Evaluate panicked; Stack then holds the goroutine stack.
	Panic bool
	Stack []byte
}

func (e *RuleError) Error() string {
	if e.Panic {
		return fmt.Sprintf("rule %s panicked: %v", e.RuleID, e.Err)
	}
	return fmt.Sprintf("rule %s: %v", e.RuleID, e.Err)
}

func (e *RuleError) Unwrap() error {
	return e.Err
}

// HostUnavailable reports whether the rule failed because the host could not
// answer a query.
func (e *RuleError) HostUnavailable() bool {
	return errors.Is(e.Err, host.ErrUnavailable)
}

// InvalidHostValue reports whether the rule failed because a host value had
// the wrong shape.
func (e *RuleError) InvalidHostValue() bool {
	return errors.Is(e.Err, host.ErrInvalidValue)
}

// Message is the text stored on the error verdict. It never includes the
// stack; callers that need it read Stack directly.
func (e *RuleError) Message() string {
	if e.Err == nil {
		return "unknown error"
	}
	msg := strings.TrimSpace(e.Err.Error())
	if msg == "" {
		msg = "unknown error"
	}
	if e.Panic {
		return "panic: " + msg
	}
	return msg
}

func panicError(p any) error {
	if err, ok := p.(error); ok {
		return err
	}
	return fmt.Errorf("%v", p)
}
