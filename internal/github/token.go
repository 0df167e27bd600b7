package github

import (
	"context"
	"errors"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"
)

const defaultHost = "github.com"

type AuthTokenSource string

const (
	AuthTokenSourceConfig     AuthTokenSource = "config"
	AuthTokenSourceEnv        AuthTokenSource = "env:GITHUB_TOKEN"
	AuthTokenSourceGHEnv      AuthTokenSource = "env:GH_TOKEN"
	AuthTokenSourceEnterprise AuthTokenSource = "env:GH_ENTERPRISE_TOKEN"
	AuthTokenSourceGitHubCL   AuthTokenSource = "gh"
)

// TokenRequest says where the commit status will be published.
type TokenRequest struct {
	// Configured is github.token from the appaudit config; it wins when set.
	Configured string
	// APIURL is github.api_url. Empty means github.com.
	APIURL string
}

// Host is the GitHub host the token must be valid for.
func (r TokenRequest) Host() string {
	raw := strings.TrimSpace(r.APIURL)
	if raw == "" {
		return defaultHost
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return defaultHost
	}
	host := strings.ToLower(u.Hostname())
	if host == "api.github.com" {
		return defaultHost
	}
	return host
}

// ResolveAuthToken finds a token that can publish commit statuses.
//
// For github.com: github.token, GITHUB_TOKEN, GH_TOKEN, then
// `gh auth token -h github.com`. For an Enterprise Server host the
// environment lookups are GH_ENTERPRISE_TOKEN and GITHUB_ENTERPRISE_TOKEN,
// matching the gh CLI, and gh is asked for that host.
//
// An empty token with a nil error means nothing was found. The token is never
// logged or printed.
func ResolveAuthToken(ctx context.Context, req TokenRequest) (token string, source AuthTokenSource, err error) {
	if tok := strings.TrimSpace(req.Configured); tok != "" {
		return tok, AuthTokenSourceConfig, nil
	}

	host := req.Host()
	lookups := []struct {
		name   string
		source AuthTokenSource
	}{
		{"GITHUB_TOKEN", AuthTokenSourceEnv},
		{"GH_TOKEN", AuthTokenSourceGHEnv},
	}
	if host != defaultHost {
		lookups = []struct {
			name   string
			source AuthTokenSource
		}{
			{"GH_ENTERPRISE_TOKEN", AuthTokenSourceEnterprise},
			{"GITHUB_ENTERPRISE_TOKEN", AuthTokenSourceEnterprise},
		}
	}
	for _, l := range lookups {
		if env := strings.TrimSpace(os.Getenv(l.name)); env != "" {
			return env, l.source, nil
		}
	}

	tok, ok, err := tokenFromGitHubCLI(ctx, host)
	if err != nil {
		return "", "", err
	}
	if ok {
		return tok, AuthTokenSourceGitHubCL, nil
	}
	return "", "", nil
}

// ghTimeout bounds `gh auth token` so a broken credential helper cannot
// stall the end of an audit.
const ghTimeout = 5 * time.Second

func tokenFromGitHubCLI(ctx context.Context, host string) (token string, ok bool, err error) {
	if _, lookErr := exec.LookPath("gh"); lookErr != nil {
		return "", false, nil
	}

	cmdCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(ctx, ghTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(cmdCtx, "gh", "auth", "token", "-h", host)
	env := make([]string, 0, len(os.Environ())+1)
	for _, entry := range os.Environ() {
		if !strings.HasPrefix(entry, "GH_PAGER=") {
			env = append(env, entry)
		}
	}
	cmd.Env = append(env, "GH_PAGER=cat")

	out, runErr := cmd.Output()
	if runErr != nil {
		if cmdCtx.Err() != nil {
			return "", false, cmdCtx.Err()
		}
		// Not logged in to this host; gh's stderr is not surfaced.
		return "", false, nil
	}

	tok := strings.TrimSpace(string(out))
	if tok == "" {
		return "", false, nil
	}
	if strings.ContainsAny(tok, " \t\n\r") {
		return "", false, errors.New("gh auth token returned malformed output")
	}
	return tok, true, nil
}
