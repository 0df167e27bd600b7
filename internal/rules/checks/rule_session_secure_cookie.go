package checks

import (
	"context"

	"appaudit/internal/host"
	"appaudit/internal/rules"
)

const keySessionSecure = "session.secure"

type SessionSecureCookieRule struct{}

func (r *SessionSecureCookieRule) ID() string {
	return "session-secure-cookie"
}

func (r *SessionSecureCookieRule) Title() string {
	return "Session Cookies Are HTTPS Only"
}

func (r *SessionSecureCookieRule) Description() string {
	return "Verifies that session.secure is enabled in production so session cookies are never sent over plain HTTP."
}

func (r *SessionSecureCookieRule) Category() rules.Category {
	return rules.CategorySecurity
}

func (r *SessionSecureCookieRule) Environments() []string {
	return []string{"production"}
}

func (r *SessionSecureCookieRule) RunInCI() bool {
	return true
}

func (r *SessionSecureCookieRule) Evaluate(ctx context.Context, hc host.Context) (rules.Result, error) {
	secure, ok, err := rules.ConfigBool(hc, keySessionSecure)
	if err != nil {
		return rules.Result{}, err
	}
	if !ok {
		return rules.FailResult(r.ID(), "session.secure is not set; session cookies may be sent over HTTP"), nil
	}
	if !secure {
		return rules.FailResult(r.ID(), "session.secure is disabled; session cookies may be sent over HTTP"), nil
	}
	return rules.PassResult(r.ID()), nil
}

func init() {
	rules.Register(func() rules.Rule { return &SessionSecureCookieRule{} })
}
