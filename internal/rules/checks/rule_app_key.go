package checks

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"appaudit/internal/host"
	"appaudit/internal/rules"
)

const keyAppKey = "app.key"

// AppKeyRule checks that the application encryption key is set and has a
// length usable by AES-128 or AES-256.
//
// CI environments rarely carry the real key, so the rule does not run in CI.
type AppKeyRule struct{}

func (r *AppKeyRule) ID() string {
	return "app-key"
}

func (r *AppKeyRule) Title() string {
	return "Application Key Is Set"
}

func (r *AppKeyRule) Description() string {
	return "Verifies that app.key is set to a 16 or 32 byte key (raw or \"base64:\" encoded). Without it, encrypted cookies and sessions are insecure."
}

func (r *AppKeyRule) Category() rules.Category {
	return rules.CategorySecurity
}

func (r *AppKeyRule) Environments() []string {
	return nil
}

func (r *AppKeyRule) RunInCI() bool {
	return false
}

func (r *AppKeyRule) Evaluate(ctx context.Context, hc host.Context) (rules.Result, error) {
	key, ok, err := rules.ConfigString(hc, keyAppKey)
	if err != nil {
		return rules.Result{}, err
	}
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return rules.FailResult(r.ID(), "Application key (app.key) is not set"), nil
	}

	raw := []byte(key)
	if encoded, found := strings.CutPrefix(key, "base64:"); found {
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return rules.FailResult(r.ID(), "Application key has a base64: prefix but is not valid base64"), nil
		}
		raw = decoded
	}

	if len(raw) != 16 && len(raw) != 32 {
		return rules.FailResultWithEvidence(r.ID(),
			fmt.Sprintf("Application key is %d bytes; expected 16 or 32", len(raw)),
			map[string]string{"key_length": fmt.Sprint(len(raw))}), nil
	}
	return rules.PassResult(r.ID()), nil
}

func init() {
	rules.Register(func() rules.Rule { return &AppKeyRule{} })
}
