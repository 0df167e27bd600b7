package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	// MAINTAINER NOTE: If you add/change/remove config fields that affect audit
	// behavior, keep these in sync:
	// - CLI flags in internal/cli/audit.go (applyFlagOverrides)
	// - defaults in New() and the koanf tags below (config file / env keys)
	Rules   Rules   `koanf:"rules"`
	Host    Host    `koanf:"host"`
	Output  Output  `koanf:"output"`
	Runtime Runtime `koanf:"runtime"`
	GitHub  GitHub  `koanf:"github"`
}

type Rules struct {
	// Enabled lists rule IDs to run, in order. Empty means every registered rule.
	// Positional audit arguments replace this list.
	Enabled []string `koanf:"enabled"`

	// DontReport lists rule IDs that still run but are left out of the report
	// card and the exit status (see --dont-report).
	DontReport []string `koanf:"dont_report"`

	// Options holds per-rule options from the config file: ruleID -> option -> value.
	Options map[string]map[string]string `koanf:"options"`

	// Set provides per-rule option overrides from the CLI.
	// Entries are of the form ruleID.option=value (repeatable; comma-separated accepted; see --set).
	Set []string `koanf:"set"`
}

type Host struct {
	// Files are host snapshot files (YAML, TOML or JSON), merged in order (see --host).
	Files []string `koanf:"files" validate:"dive,required"`

	// EnvPrefix selects environment variables that override snapshot keys (see --host-env-prefix).
	EnvPrefix string `koanf:"env_prefix"`
}

type Output struct {
	// Format controls the console sink format (see --format).
	// Allowed values: text, json, ndjson.
	Format string `koanf:"format" validate:"oneof=text json ndjson"`

	// Out writes structured output to this path (see --out).
	Out string `koanf:"out"`

	// OutFormat selects the format for --out (see --out-format).
	// Allowed values: json, ndjson, yaml. If empty, it is inferred from the --out file extension.
	OutFormat string `koanf:"out_format" validate:"omitempty,oneof=json ndjson yaml"`

	// Report writes a Markdown report to this path (see --report).
	Report string `koanf:"report"`

	// ShowExceptions prints the rule ID and message of errored rules (see --show-exceptions).
	ShowExceptions bool `koanf:"show_exceptions"`

	// NoConsole suppresses the console sink (see --no-console).
	NoConsole bool `koanf:"no_console"`

	// Emit adds structured streams on stdout next to the console output (see --emit).
	// Allowed values: json, ndjson.
	Emit []string `koanf:"emit" validate:"dive,oneof=json ndjson"`
}

type Runtime struct {
	// CI skips rules that are not eligible for CI (see --ci).
	CI bool `koanf:"ci"`

	// Rethrow stops the run on the first rule failure and returns it as an error (see --rethrow).
	Rethrow bool `koanf:"rethrow"`

	// FailOnError makes errored rules count toward a failing exit status (see --fail-on-error).
	FailOnError bool `koanf:"fail_on_error"`

	// Verbose raises log verbosity; each -v adds one level.
	Verbose int `koanf:"verbose" validate:"gte=0"`
}

type GitHub struct {
	// Publish posts the run outcome as a commit status (see --github-status).
	Publish bool `koanf:"publish"`

	// Repo is OWNER/REPO. Defaults to GITHUB_REPOSITORY.
	Repo string `koanf:"repo" validate:"required_if=Publish true,omitempty,owner_repo"`

	// SHA is the commit to annotate. Defaults to GITHUB_SHA.
	SHA string `koanf:"sha" validate:"required_if=Publish true"`

	// Context is the status context label.
	Context string `koanf:"context" validate:"required_if=Publish true"`

	// APIURL overrides the REST API base URL (GitHub Enterprise Server).
	APIURL string `koanf:"api_url" validate:"omitempty,url"`

	// Token is usually set as APPAUDIT_GITHUB__TOKEN rather than in a file.
	Token string `koanf:"token" json:"-" yaml:"-"`
}

func New() *Config {
	return &Config{
		Rules: Rules{
			Options: map[string]map[string]string{},
		},
		Output: Output{
			Format: "text",
		},
		GitHub: GitHub{
			Context: "appaudit",
		},
	}
}

func (c *Config) Validate() error {
	// Normalize comma-delimited list inputs.
	c.Rules.Enabled = splitCommaList(c.Rules.Enabled)
	c.Rules.DontReport = splitCommaList(c.Rules.DontReport)
	c.Host.Files = splitCommaList(c.Host.Files)
	c.Output.Emit = splitCommaList(c.Output.Emit)
	for i, e := range c.Output.Emit {
		c.Output.Emit[i] = normalizeEnumValue(e)
	}

	c.Output.Format = normalizeEnumValue(c.Output.Format)
	if c.Output.Format == "" {
		return errors.New("--format must be one of: text, json, ndjson")
	}

	if c.Output.Out != "" {
		c.Output.OutFormat = normalizeEnumValue(c.Output.OutFormat)
		if c.Output.OutFormat == "" {
			ext := strings.ToLower(filepath.Ext(c.Output.Out))
			switch ext {
			case ".json":
				c.Output.OutFormat = "json"
			case ".ndjson":
				c.Output.OutFormat = "ndjson"
			case ".yaml", ".yml":
				c.Output.OutFormat = "yaml"
			default:
				if ext == "" {
					return errors.New("cannot infer output format from file extension (missing extension); use --out-format")
				}
				return fmt.Errorf("cannot infer output format from file extension %q; use --out-format", ext)
			}
		}
	}

	c.GitHub.Repo = strings.TrimSpace(c.GitHub.Repo)
	c.GitHub.SHA = strings.TrimSpace(c.GitHub.SHA)
	c.GitHub.Context = strings.TrimSpace(c.GitHub.Context)
	if c.GitHub.Publish {
		// GitHub Actions exports both for every workflow run.
		if c.GitHub.Repo == "" {
			c.GitHub.Repo = strings.TrimSpace(os.Getenv("GITHUB_REPOSITORY"))
		}
		if c.GitHub.SHA == "" {
			c.GitHub.SHA = strings.TrimSpace(os.Getenv("GITHUB_SHA"))
		}
	}

	if err := newValidator().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Ruleset option syntax validation (rule.option=value)
	if len(c.Rules.Set) > 0 {
		if _, err := ParseRuleOptionAssignments(c.Rules.Set); err != nil {
			return err
		}
	}

	return nil
}

// RuleOptions merges config-file options with --set overrides. --set wins.
func (c *Config) RuleOptions() (map[string]map[string]string, error) {
	out := make(map[string]map[string]string, len(c.Rules.Options))
	for ruleID, opts := range c.Rules.Options {
		m := make(map[string]string, len(opts))
		for k, v := range opts {
			m[k] = v
		}
		out[ruleID] = m
	}

	overrides, err := ParseRuleOptionAssignments(c.Rules.Set)
	if err != nil {
		return nil, err
	}
	for ruleID, opts := range overrides {
		if _, ok := out[ruleID]; !ok {
			out[ruleID] = make(map[string]string, len(opts))
		}
		for k, v := range opts {
			out[ruleID][k] = v
		}
	}
	return out, nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Registration only fails on an empty tag or nil func.
	_ = v.RegisterValidation("owner_repo", validOwnerRepo)
	return v
}

// validOwnerRepo accepts OWNER/REPO with both parts non-empty.
func validOwnerRepo(fl validator.FieldLevel) bool {
	owner, repo, ok := strings.Cut(fl.Field().String(), "/")
	return ok && owner != "" && repo != "" && !strings.Contains(repo, "/")
}

func normalizeEnumValue(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ParseRuleOptionAssignments parses values of the form "ruleID.option=value".
//
// Notes:
// - Entries may be provided via repeated flags and/or comma-delimited lists.
// - A comma-separated part without "=" continues the previous value, so
//   "cache-prefix.disallowed=cache,app" keeps both prefixes.
// - This validates syntax only (no validation of rule IDs or option names).
// - Empty values are allowed ("rule.option=").
func ParseRuleOptionAssignments(values []string) (map[string]map[string]string, error) {
	out := make(map[string]map[string]string)
	var lastRule, lastOpt string
	for _, raw := range splitCommaList(values) {
		left, value, ok := strings.Cut(raw, "=")
		if !ok {
			if lastRule == "" {
				return nil, fmt.Errorf("invalid --set entry %q: expected rule.option=value", raw)
			}
			if out[lastRule][lastOpt] == "" {
				out[lastRule][lastOpt] = raw
			} else {
				out[lastRule][lastOpt] += "," + raw
			}
			continue
		}
		value = strings.TrimSpace(value)
		ruleID, opt, ok := strings.Cut(strings.TrimSpace(left), ".")
		if !ok {
			return nil, fmt.Errorf("invalid --set entry %q: expected rule.option=value", raw)
		}
		ruleID = strings.TrimSpace(ruleID)
		opt = strings.TrimSpace(opt)
		if ruleID == "" || opt == "" {
			return nil, fmt.Errorf("invalid --set entry %q: expected non-empty rule and option", raw)
		}
		if _, ok := out[ruleID]; !ok {
			out[ruleID] = make(map[string]string)
		}
		out[ruleID][opt] = value
		lastRule, lastOpt = ruleID, opt
	}
	return out, nil
}

func splitCommaList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			p := strings.TrimSpace(part)
			if p == "" {
				continue
			}
			out = append(out, p)
		}
	}
	return out
}
