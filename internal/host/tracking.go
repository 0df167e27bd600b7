package host

import "sort"

// TrackingContext wraps another Context and records every configuration key
// read through ConfigValue, plus the well-known keys behind Environment,
// DebugEnabled and Middleware.
//
// The runner attaches the recorded keys to each verdict.
type TrackingContext struct {
	inner    Context
	accessed map[string]struct{}
}

func NewTrackingContext(inner Context) *TrackingContext {
	return &TrackingContext{
		inner:    inner,
		accessed: make(map[string]struct{}),
	}
}

func (c *TrackingContext) Middleware() ([]MiddlewareRef, error) {
	c.accessed[KeyMiddleware] = struct{}{}
	if c.inner == nil {
		return nil, ErrUnavailable
	}
	return c.inner.Middleware()
}

func (c *TrackingContext) ConfigValue(key string) (any, bool, error) {
	c.accessed[key] = struct{}{}
	if c.inner == nil {
		return nil, false, ErrUnavailable
	}
	return c.inner.ConfigValue(key)
}

func (c *TrackingContext) Environment() (string, error) {
	c.accessed[KeyEnvironment] = struct{}{}
	if c.inner == nil {
		return "", ErrUnavailable
	}
	return c.inner.Environment()
}

func (c *TrackingContext) DebugEnabled() (bool, error) {
	c.accessed[KeyDebug] = struct{}{}
	if c.inner == nil {
		return false, ErrUnavailable
	}
	return c.inner.DebugEnabled()
}

// AccessedKeys returns the recorded keys, sorted.
func (c *TrackingContext) AccessedKeys() []string {
	if c == nil || len(c.accessed) == 0 {
		return nil
	}
	keys := make([]string, 0, len(c.accessed))
	for k := range c.accessed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
