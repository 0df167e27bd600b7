package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestValidate_Defaults(t *testing.T) {
	cfg := New()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned error: %v", err)
	}
	if cfg.Output.Format != "text" {
		t.Fatalf("expected default format text, got %q", cfg.Output.Format)
	}
}

func TestValidate_NormalizesCommaDelimitedLists(t *testing.T) {
	cfg := New()
	cfg.Rules.Enabled = []string{"app-debug, cache-prefix", "app-key", ",,"}
	cfg.Rules.DontReport = []string{"app-key,"}
	cfg.Host.Files = []string{"base.yaml, prod.toml"}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned error: %v", err)
	}

	if want := []string{"app-debug", "cache-prefix", "app-key"}; !reflect.DeepEqual(cfg.Rules.Enabled, want) {
		t.Fatalf("Enabled normalized mismatch: got %v want %v", cfg.Rules.Enabled, want)
	}
	if want := []string{"app-key"}; !reflect.DeepEqual(cfg.Rules.DontReport, want) {
		t.Fatalf("DontReport normalized mismatch: got %v want %v", cfg.Rules.DontReport, want)
	}
	if want := []string{"base.yaml", "prod.toml"}; !reflect.DeepEqual(cfg.Host.Files, want) {
		t.Fatalf("Files normalized mismatch: got %v want %v", cfg.Host.Files, want)
	}
}

func TestParseRuleOptionAssignments(t *testing.T) {
	got, err := ParseRuleOptionAssignments([]string{
		"cache-prefix.disallowed=cache, app-debug.environments=production",
		"app-key.run_in_ci=", // empty value allowed
		"some-rule.enabled=true",
	})
	if err != nil {
		t.Fatalf("ParseRuleOptionAssignments returned error: %v", err)
	}
	if got["some-rule"]["enabled"] != "true" {
		t.Fatalf("unexpected parsed value: %v", got)
	}
	if got["cache-prefix"]["disallowed"] != "cache" {
		t.Fatalf("unexpected parsed value: %v", got)
	}
	if got["app-debug"]["environments"] != "production" {
		t.Fatalf("unexpected parsed value: %v", got)
	}
	if got["app-key"]["run_in_ci"] != "" {
		t.Fatalf("expected empty string value to be preserved: %v", got)
	}
}

func TestParseRuleOptionAssignments_ListValues(t *testing.T) {
	got, err := ParseRuleOptionAssignments([]string{"cache-prefix.disallowed=cache,app_cache, shop"})
	if err != nil {
		t.Fatalf("ParseRuleOptionAssignments returned error: %v", err)
	}
	if got["cache-prefix"]["disallowed"] != "cache,app_cache,shop" {
		t.Fatalf("unexpected parsed value: %v", got)
	}
}

func TestParseRuleOptionAssignments_ErrorsOnInvalidSyntax(t *testing.T) {
	tests := []struct {
		name   string
		values []string
	}{
		{name: "missing_equals", values: []string{"a.b"}},
		{name: "missing_dot", values: []string{"ab=true"}},
		{name: "empty_rule", values: []string{".b=true"}},
		{name: "empty_opt", values: []string{"a.=true"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseRuleOptionAssignments(tt.values); err == nil {
				t.Fatalf("expected error, got nil")
			}
		})
	}
}

func TestValidate_RejectsInvalidSetSyntax(t *testing.T) {
	cfg := New()
	cfg.Rules.Set = []string{"nope"}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error, got nil")
	}
}

func TestValidate_RejectsInvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		format string
	}{
		{name: "empty", format: ""},
		{name: "spaces", format: "   "},
		{name: "unknown", format: "yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			cfg.Output.Format = tt.format
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected error, got nil")
			}
		})
	}
}

func TestValidate_AllowsKnownFormats(t *testing.T) {
	for _, format := range []string{"text", "JSON", " ndjson "} {
		t.Run(format, func(t *testing.T) {
			cfg := New()
			cfg.Output.Format = format
			if err := cfg.Validate(); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})
	}
}

func TestValidate_InfersOutFormat(t *testing.T) {
	tests := []struct {
		out     string
		want    string
		wantErr string
	}{
		{out: "results.json", want: "json"},
		{out: "results.ndjson", want: "ndjson"},
		{out: "results.yml", want: "yaml"},
		{out: "results", wantErr: "missing extension"},
		{out: "results.unknown", wantErr: "cannot infer output format"},
	}

	for _, tt := range tests {
		t.Run(tt.out, func(t *testing.T) {
			cfg := New()
			cfg.Output.Out = tt.out
			err := cfg.Validate()
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() returned error: %v", err)
			}
			if cfg.Output.OutFormat != tt.want {
				t.Fatalf("OutFormat = %q, want %q", cfg.Output.OutFormat, tt.want)
			}
		})
	}
}

func TestValidate_GitHubPublishRequiresTarget(t *testing.T) {
	t.Setenv("GITHUB_REPOSITORY", "")
	t.Setenv("GITHUB_SHA", "")

	cfg := New()
	cfg.GitHub.Publish = true
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for publish without repo/sha")
	}

	cfg = New()
	cfg.GitHub.Publish = true
	cfg.GitHub.Repo = "not-a-repo"
	cfg.GitHub.SHA = "abc123"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for malformed repo")
	}

	cfg = New()
	cfg.GitHub.Publish = true
	cfg.GitHub.Repo = "acme/shop"
	cfg.GitHub.SHA = "abc123"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned error: %v", err)
	}
}

func TestValidate_GitHubPublishDefaultsFromActionsEnv(t *testing.T) {
	t.Setenv("GITHUB_REPOSITORY", "acme/shop")
	t.Setenv("GITHUB_SHA", "deadbeef")

	cfg := New()
	cfg.GitHub.Publish = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned error: %v", err)
	}
	if cfg.GitHub.Repo != "acme/shop" || cfg.GitHub.SHA != "deadbeef" {
		t.Fatalf("unexpected GitHub target: %+v", cfg.GitHub)
	}

	// Explicit values win, and nothing is filled in without --github-status.
	cfg = New()
	cfg.GitHub.Repo = "acme/other"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned error: %v", err)
	}
	if cfg.GitHub.Repo != "acme/other" || cfg.GitHub.SHA != "" {
		t.Fatalf("unexpected GitHub target: %+v", cfg.GitHub)
	}
}

func TestValidate_Emit(t *testing.T) {
	cfg := New()
	cfg.Output.Emit = []string{"JSON, ndjson"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned error: %v", err)
	}
	if len(cfg.Output.Emit) != 2 || cfg.Output.Emit[0] != "json" || cfg.Output.Emit[1] != "ndjson" {
		t.Fatalf("unexpected emit list: %v", cfg.Output.Emit)
	}

	cfg = New()
	cfg.Output.Emit = []string{"yaml"}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for yaml emit")
	}
}

func TestRuleOptions_SetOverridesFile(t *testing.T) {
	cfg := New()
	cfg.Rules.Options = map[string]map[string]string{
		"cache-prefix": {"disallowed": "cache", "environments": "production"},
	}
	cfg.Rules.Set = []string{"cache-prefix.disallowed=shop", "app-debug.environments=*"}

	got, err := cfg.RuleOptions()
	if err != nil {
		t.Fatalf("RuleOptions returned error: %v", err)
	}
	want := map[string]map[string]string{
		"cache-prefix": {"disallowed": "shop", "environments": "production"},
		"app-debug":    {"environments": "*"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("RuleOptions mismatch: got %v want %v", got, want)
	}
	if cfg.Rules.Options["cache-prefix"]["disallowed"] != "cache" {
		t.Fatalf("RuleOptions must not mutate the config: %v", cfg.Rules.Options)
	}
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Output.Format != "text" {
		t.Errorf("expected Output.Format=text, got %q", cfg.Output.Format)
	}
	if cfg.GitHub.Context != "appaudit" {
		t.Errorf("expected GitHub.Context=appaudit, got %q", cfg.GitHub.Context)
	}
	if cfg.Rules.Options == nil {
		t.Errorf("expected non-nil Rules.Options")
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeConfig(t, "appaudit.yaml", `
rules:
  enabled: [app-debug, cache-prefix]
  dont_report: [app-key]
  options:
    cache-prefix:
      disallowed: "cache,app"
host:
  files: [host.yaml]
output:
  show_exceptions: true
runtime:
  ci: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if want := []string{"app-debug", "cache-prefix"}; !reflect.DeepEqual(cfg.Rules.Enabled, want) {
		t.Errorf("Enabled = %v, want %v", cfg.Rules.Enabled, want)
	}
	if want := []string{"app-key"}; !reflect.DeepEqual(cfg.Rules.DontReport, want) {
		t.Errorf("DontReport = %v, want %v", cfg.Rules.DontReport, want)
	}
	if cfg.Rules.Options["cache-prefix"]["disallowed"] != "cache,app" {
		t.Errorf("unexpected options: %v", cfg.Rules.Options)
	}
	if !cfg.Output.ShowExceptions || !cfg.Runtime.CI {
		t.Errorf("expected show_exceptions and ci to be true: %+v %+v", cfg.Output, cfg.Runtime)
	}
	if cfg.Output.Format != "text" {
		t.Errorf("expected default format to survive, got %q", cfg.Output.Format)
	}
}

func TestLoad_TOMLFileAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, "appaudit.toml", `
[runtime]
fail_on_error = false

[output]
format = "json"
`)
	t.Setenv("APPAUDIT_RUNTIME__FAIL_ON_ERROR", "true")
	t.Setenv("APPAUDIT_RULES__ENABLED", "app-debug, app-key")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if !cfg.Runtime.FailOnError {
		t.Errorf("expected env to override fail_on_error")
	}
	if cfg.Output.Format != "json" {
		t.Errorf("expected format json from file, got %q", cfg.Output.Format)
	}
	if want := []string{"app-debug", "app-key"}; !reflect.DeepEqual(cfg.Rules.Enabled, want) {
		t.Errorf("Enabled = %v, want %v", cfg.Rules.Enabled, want)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if _, err := Load("appaudit.ini"); err == nil {
		t.Fatalf("expected error for unsupported extension")
	}
}

func TestFindConfigFile(t *testing.T) {
	orig := userConfigPath
	t.Cleanup(func() { userConfigPath = orig })

	userConfigPath = func() (string, error) { return "/home/me/.config/appaudit/config.yaml", nil }

	dir := t.TempDir()
	if got := FindConfigFile(dir); got != "/home/me/.config/appaudit/config.yaml" {
		t.Fatalf("expected user config fallback, got %q", got)
	}

	local := filepath.Join(dir, "appaudit.toml")
	if err := os.WriteFile(local, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := FindConfigFile(dir); got != local {
		t.Fatalf("expected local config %q, got %q", local, got)
	}

	userConfigPath = func() (string, error) { return "", os.ErrNotExist }
	if got := FindConfigFile(t.TempDir()); got != "" {
		t.Fatalf("expected no config file, got %q", got)
	}
}
