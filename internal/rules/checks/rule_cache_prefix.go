package checks

import (
	"context"
	"fmt"
	"strings"

	"appaudit/internal/host"
	"appaudit/internal/rules"
)

const (
	keyCachePrefix = "cache.prefix"

	defaultDisallowedCachePrefixes = "laravel_cache,cache,app_cache"
)

// CachePrefixRule flags a missing or framework-default cache key prefix.
// Applications sharing a cache store with the default prefix overwrite each
// other's entries.
type CachePrefixRule struct {
	disallowed []string
}

func (r *CachePrefixRule) ID() string {
	return "cache-prefix"
}

func (r *CachePrefixRule) Title() string {
	return "Cache Prefix Is Set"
}

func (r *CachePrefixRule) Description() string {
	return "Verifies that cache.prefix is set to an application-specific value rather than left empty or at a framework default."
}

func (r *CachePrefixRule) Category() rules.Category {
	return rules.CategoryReliability
}

func (r *CachePrefixRule) Environments() []string {
	return nil
}

func (r *CachePrefixRule) RunInCI() bool {
	return true
}

func (r *CachePrefixRule) Options() []rules.Option {
	return []rules.Option{
		{
			Name:        "disallowed",
			Description: "Comma-separated list of prefixes treated as defaults (case-insensitive)",
			Default:     defaultDisallowedCachePrefixes,
		},
	}
}

func (r *CachePrefixRule) Configure(opts map[string]string) error {
	r.disallowed = nil
	if val, ok := opts["disallowed"]; ok {
		r.disallowed = splitOption(val)
	}
	return nil
}

func (r *CachePrefixRule) disallowedPrefixes() []string {
	if r.disallowed != nil {
		return r.disallowed
	}
	return splitOption(defaultDisallowedCachePrefixes)
}

func (r *CachePrefixRule) Evaluate(ctx context.Context, hc host.Context) (rules.Result, error) {
	prefix, ok, err := rules.ConfigString(hc, keyCachePrefix)
	if err != nil {
		return rules.Result{}, err
	}
	prefix = strings.TrimSpace(prefix)
	if !ok || prefix == "" {
		return rules.FailResult(r.ID(), "Cache prefix (cache.prefix) is not set"), nil
	}

	for _, d := range r.disallowedPrefixes() {
		if strings.EqualFold(prefix, d) {
			return rules.FailResultWithEvidence(r.ID(),
				fmt.Sprintf("Cache prefix %q is a framework default; set an application-specific prefix", prefix),
				map[string]string{"prefix": prefix}), nil
		}
	}
	return rules.PassResult(r.ID()), nil
}

func splitOption(val string) []string {
	out := []string{}
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func init() {
	rules.Register(func() rules.Rule { return &CachePrefixRule{} })
}
