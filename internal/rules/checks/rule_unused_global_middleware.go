package checks

import (
	"context"
	"fmt"
	"strings"

	"appaudit/internal/host"
	"appaudit/internal/rules"
)

const (
	keyCorsPaths           = "cors.paths"
	keyTrustedProxyProxies = "trustedproxy.proxies"
)

// UnusedGlobalMiddlewareRule flags global middleware that runs on every
// request without doing anything useful:
//   - trusted hosts without trusted proxies (host validation is only
//     meaningful behind a proxy);
//   - trusted proxies with no proxies configured;
//   - CORS handling with no configured paths.
//
// A wildcard proxies value ("*" or "**") counts as configured.
type UnusedGlobalMiddlewareRule struct {
	trustHosts   string
	trustProxies string
	cors         string
}

func (r *UnusedGlobalMiddlewareRule) ID() string {
	return "unused-global-middleware"
}

func (r *UnusedGlobalMiddlewareRule) Title() string {
	return "No Unused Global Middleware"
}

func (r *UnusedGlobalMiddlewareRule) Description() string {
	return "Verifies that every registered global middleware is configured to do something. Unused global middleware adds overhead to every request."
}

func (r *UnusedGlobalMiddlewareRule) Category() rules.Category {
	return rules.CategoryPerformance
}

func (r *UnusedGlobalMiddlewareRule) Environments() []string {
	return nil
}

func (r *UnusedGlobalMiddlewareRule) RunInCI() bool {
	return true
}

func (r *UnusedGlobalMiddlewareRule) Options() []rules.Option {
	return []rules.Option{
		{Name: "trust_hosts", Description: "Name of the trusted hosts middleware", Default: "TrustHosts"},
		{Name: "trust_proxies", Description: "Name of the trusted proxies middleware", Default: "TrustProxies"},
		{Name: "cors", Description: "Name of the CORS middleware", Default: "HandleCors"},
	}
}

func (r *UnusedGlobalMiddlewareRule) Configure(opts map[string]string) error {
	r.trustHosts = strings.TrimSpace(opts["trust_hosts"])
	r.trustProxies = strings.TrimSpace(opts["trust_proxies"])
	r.cors = strings.TrimSpace(opts["cors"])
	return nil
}

func (r *UnusedGlobalMiddlewareRule) names() (trustHosts, trustProxies, cors string) {
	trustHosts, trustProxies, cors = "TrustHosts", "TrustProxies", "HandleCors"
	if r.trustHosts != "" {
		trustHosts = r.trustHosts
	}
	if r.trustProxies != "" {
		trustProxies = r.trustProxies
	}
	if r.cors != "" {
		cors = r.cors
	}
	return trustHosts, trustProxies, cors
}

func (r *UnusedGlobalMiddlewareRule) Evaluate(ctx context.Context, hc host.Context) (rules.Result, error) {
	middleware, err := hc.Middleware()
	if err != nil {
		return rules.Result{}, err
	}
	if len(middleware) == 0 {
		return rules.PassResultWithMessage(r.ID(), "No global middleware registered"), nil
	}

	trustHostsName, trustProxiesName, corsName := r.names()

	var trustHosts, trustProxies, cors *host.MiddlewareRef
	for i := range middleware {
		m := &middleware[i]
		switch {
		case m.Is(trustHostsName) && trustHosts == nil:
			trustHosts = m
		case m.Is(trustProxiesName) && trustProxies == nil:
			trustProxies = m
		case m.Is(corsName) && cors == nil:
			cors = m
		}
	}

	var unused []string
	if trustHosts != nil && trustProxies == nil {
		unused = append(unused, fmt.Sprintf("%s (registered without %s)", trustHostsName, trustProxiesName))
	}
	if trustProxies != nil {
		configured, err := proxiesConfigured(hc, *trustProxies)
		if err != nil {
			return rules.Result{}, err
		}
		if !configured {
			unused = append(unused, fmt.Sprintf("%s (no trusted proxies configured)", trustProxiesName))
		}
	}
	if cors != nil {
		paths, _, err := rules.ConfigStrings(hc, keyCorsPaths)
		if err != nil {
			return rules.Result{}, err
		}
		if len(paths) == 0 {
			unused = append(unused, fmt.Sprintf("%s (no CORS paths configured)", corsName))
		}
	}

	if len(unused) > 0 {
		return rules.FailResultWithEvidence(r.ID(),
			"Unused global middleware: "+strings.Join(unused, "; "),
			map[string]string{"unused": strings.Join(unused, "; ")}), nil
	}
	return rules.PassResult(r.ID()), nil
}

// proxiesConfigured reports whether the trusted proxies middleware has any
// proxies, either as a registration property or in host configuration.
func proxiesConfigured(hc host.Context, m host.MiddlewareRef) (bool, error) {
	if v, ok := m.Param("proxies"); ok {
		list, err := rules.ToStrings(v)
		if err != nil {
			return false, fmt.Errorf("%w: %s proxies: %v", host.ErrInvalidValue, m.Name, err)
		}
		if len(list) > 0 {
			return true, nil
		}
	}
	list, _, err := rules.ConfigStrings(hc, keyTrustedProxyProxies)
	if err != nil {
		return false, err
	}
	return len(list) > 0, nil
}

func init() {
	rules.Register(func() rules.Rule { return &UnusedGlobalMiddlewareRule{} })
}
