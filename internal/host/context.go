package host

import (
	"errors"
	"strings"
)

// ErrUnavailable is returned (wrapped) when the host cannot answer a query.
// The runner records the affected rule as errored.
var ErrUnavailable = errors.New("host state unavailable")

// ErrInvalidValue is returned (wrapped) when the host answers with a value
// of the wrong shape, e.g. a list where a string is expected. It marks host
// misconfiguration, not an unreachable host.
var ErrInvalidValue = errors.New("invalid host value")

// Context provides read-only host application state to rules.
//
// Every call reflects the host state at query time. Implementations must not
// cache answers across rules.
type Context interface {
	// Middleware lists the globally registered middleware in registration order.
	Middleware() ([]MiddlewareRef, error)

	// ConfigValue reads a dotted configuration key (e.g. "cache.prefix").
	ConfigValue(key string) (any, bool, error)

	// Environment returns the host environment name (e.g. "production").
	Environment() (string, error)

	// DebugEnabled reports whether the host runs with debug mode on.
	DebugEnabled() (bool, error)
}

// MiddlewareRef identifies one registered middleware and the properties it
// was registered with.
type MiddlewareRef struct {
	Name   string         `json:"name" yaml:"name"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// ShortName returns the last segment of a namespaced middleware name, so
// `Http\Middleware\TrustHosts` and `TrustHosts` compare equal.
func (m MiddlewareRef) ShortName() string {
	n := strings.TrimSpace(m.Name)
	if i := strings.LastIndexAny(n, `\/.`); i >= 0 {
		n = n[i+1:]
	}
	return n
}

// Is reports whether the middleware short name matches any of names
// (case-insensitive).
func (m MiddlewareRef) Is(names ...string) bool {
	short := m.ShortName()
	for _, n := range names {
		if strings.EqualFold(short, n) {
			return true
		}
	}
	return false
}

// Param returns a registration property.
func (m MiddlewareRef) Param(key string) (any, bool) {
	if m.Params == nil {
		return nil, false
	}
	v, ok := m.Params[key]
	return v, ok
}
