package rules

import (
	"fmt"
	"strings"

	"appaudit/internal/host"
)

// ConfigString reads a string config value. Missing keys and nil values
// report ok=false.
func ConfigString(hc host.Context, key string) (string, bool, error) {
	v, ok, err := hc.ConfigValue(key)
	if err != nil || !ok || v == nil {
		return "", false, err
	}
	switch t := v.(type) {
	case string:
		return t, true, nil
	case fmt.Stringer:
		return t.String(), true, nil
	case bool, int, int64, float64:
		return fmt.Sprint(t), true, nil
	default:
		return "", false, fmt.Errorf("%w: %s must be a string, got %T", host.ErrInvalidValue, key, v)
	}
}

// ConfigStrings reads a list config value. A scalar string is split on commas.
func ConfigStrings(hc host.Context, key string) ([]string, bool, error) {
	v, ok, err := hc.ConfigValue(key)
	if err != nil || !ok || v == nil {
		return nil, false, err
	}
	list, err := toStrings(v)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s: %v", host.ErrInvalidValue, key, err)
	}
	return list, true, nil
}

// ConfigBool reads a boolean config value.
func ConfigBool(hc host.Context, key string) (bool, bool, error) {
	v, ok, err := hc.ConfigValue(key)
	if err != nil || !ok || v == nil {
		return false, false, err
	}
	b, err := host.ToBool(v)
	if err != nil {
		return false, false, fmt.Errorf("%w: %s: %v", host.ErrInvalidValue, key, err)
	}
	return b, true, nil
}

func toStrings(v any) ([]string, error) {
	var out []string
	switch t := v.(type) {
	case string:
		for _, part := range strings.Split(t, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	case []string:
		for _, s := range t {
			if p := strings.TrimSpace(s); p != "" {
				out = append(out, p)
			}
		}
	case []any:
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("list entry %v is %T, not a string", item, item)
			}
			if p := strings.TrimSpace(s); p != "" {
				out = append(out, p)
			}
		}
	default:
		return nil, fmt.Errorf("cannot use %T as a list", v)
	}
	return out, nil
}

// ToStrings converts a loosely typed value (string, list) to a string slice.
func ToStrings(v any) ([]string, error) {
	if v == nil {
		return nil, nil
	}
	return toStrings(v)
}
