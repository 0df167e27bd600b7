package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"appaudit/internal/config"
	"appaudit/internal/engine"
	"appaudit/internal/flags"
	"appaudit/internal/host"
	"appaudit/internal/logging"

	"github.com/spf13/cobra"
)

// Test seams.
var (
	exitFunc  = os.Exit
	newEngine = engine.NewEngine
)

const auditHelpTemplate = `{{with (or .Long .Short)}}{{. | trimTrailingWhitespaces}}

{{end}}Usage:
  {{.UseLine}}

{{if .HasAvailableLocalFlags}}Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}{{if .HasAvailableInheritedFlags}}Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

{{end}}Environment:
  APPAUDIT_*        override config file keys; "__" separates nested keys
                    (APPAUDIT_RUNTIME__CI=true sets runtime.ci)
  APPAUDIT_HOST_*   override host snapshot keys (APPAUDIT_HOST_APP__DEBUG=false
                    sets app.debug); change the prefix with --host-env-prefix
  GITHUB_TOKEN      token for --github-status (GH_TOKEN and "gh auth token"
                    are tried next; APPAUDIT_GITHUB__TOKEN wins over all)
  GH_ENTERPRISE_TOKEN
                    token when github.api_url points at Enterprise Server
                    (GITHUB_ENTERPRISE_TOKEN is tried next)
  GITHUB_REPOSITORY default for --github-repo
  GITHUB_SHA        default for --github-sha

  Examples:
    # macOS/Linux
    export GITHUB_TOKEN="<your_token>"
    appaudit audit --host host.yaml --ci --github-status

    # Windows PowerShell
    $env:APPAUDIT_HOST_APP__ENV = "staging"
    appaudit audit --host host.yaml

{{if .HasAvailableSubCommands}}Available Commands:
{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

{{end}}{{if .HasHelpSubCommands}}Additional help topics:
{{range .Commands}}{{if .IsAdditionalHelpTopicCommand}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

{{end}}{{if .HasAvailableSubCommands}}Use "{{.CommandPath}} [command] --help" for more information about a command.
{{end}}`

func newAuditCmd() *cobra.Command {
	flagCfg := config.New()

	cmd := &cobra.Command{
		Use:   "audit [rule-id...]",
		Short: "Audit a host snapshot and print the report card",
		Long: `Audit a host snapshot and print the report card.

Rules run one at a time in the configured order. Positional arguments select
the rules to run; without them, rules.enabled from the config file is used,
and when that is empty every registered rule runs.

Host state:
  The host snapshot is read from --host files (YAML, TOML or JSON, merged in
  order) plus APPAUDIT_HOST_* environment overrides. Well-known keys are
  app.env, app.debug and http.middleware; rules read any other key they need
  (e.g. cache.prefix).

Output:
  Console output is controlled by --format (default: text). Rules that raise
  an error are only counted unless --show-exceptions is set.
  Structured outputs can be written via:
  - --out / --out-format: write a JSON document, NDJSON stream or YAML document to a file
  - --emit: write an additional structured stream to stdout (json or ndjson)
  - --report: write a Markdown report
  - --no-console: suppress the console sink (use with --emit/--out/--report)

Exit codes:
  0 = no reportable rule failed
  1 = a reportable rule failed (or errored, with --fail-on-error), or the
      audit could not run (invalid configuration, unreadable host snapshot)

Examples:
  # Audit with every rule
  appaudit audit --host host.yaml

  # Run two rules only, in this order
  appaudit audit --host host.yaml app-debug cache-prefix

  # CI: skip rules that make no sense in a pipeline, keep one out of the score
  appaudit audit --host host.yaml --ci --dont-report app-key

  # Configure a rule
  appaudit audit --host host.yaml --set cache-prefix.disallowed=cache,app_cache

  # Machine-readable events on stdout
  appaudit audit --host host.yaml --no-console --emit ndjson
`,
		Run: func(cmd *cobra.Command, args []string) {
			exitFunc(runAudit(cmd, flagCfg, args))
		},
	}
	cmd.SetHelpTemplate(auditHelpTemplate)
	bindAuditFlags(cmd, flagCfg)
	return cmd
}

// bindAuditFlags registers the audit flags on cmd, storing values in c.
// Only flags the user changed are applied on top of the loaded config (see
// applyFlagOverrides).
func bindAuditFlags(cmd *cobra.Command, c *config.Config) {
	// MAINTAINER NOTE: If you add/change/remove flags here, keep
	// applyFlagOverrides in sync.
	f := cmd.Flags()

	// Rules
	f.StringArrayVar(&c.Rules.Set, flags.FlagSet, nil, "Per-rule option as ruleID.option=value (repeatable; list values may contain commas)")
	f.StringSliceVar(&c.Rules.DontReport, flags.FlagDontReport, nil, "Rule IDs that still run but are left out of the report card and exit code (repeatable; comma-separated accepted)")

	// Host
	f.StringSliceVar(&c.Host.Files, flags.FlagHost, nil, "Host snapshot file(s): YAML, TOML or JSON, merged in order (repeatable; comma-separated accepted)")
	f.StringVar(&c.Host.EnvPrefix, flags.FlagHostEnvPrefix, host.DefaultEnvPrefix, "Environment variable prefix for host snapshot overrides")

	// Output
	f.StringVar(&c.Output.Format, flags.FlagFormat, "text", "Console output format: text|json|ndjson (default: text)")
	f.BoolVar(&c.Output.ShowExceptions, flags.FlagShowExceptions, false, "Print the rule ID and message of rules that raised an error")
	f.StringVar(&c.Output.Report, flags.FlagReport, "", "Write a Markdown report to this path")
	f.StringVar(&c.Output.Out, flags.FlagOut, "", "Write structured output to this path")
	f.StringVar(&c.Output.OutFormat, flags.FlagOutFormat, "", "Structured output format for --out: json|ndjson|yaml (default: inferred from file extension)")
	f.StringSliceVar(&c.Output.Emit, flags.FlagEmit, nil, "Emit additional structured stream to stdout: json|ndjson (repeatable; comma-separated accepted)")
	f.BoolVar(&c.Output.NoConsole, flags.FlagNoConsole, false, "Suppress console output (use with --emit/--out/--report)")

	// Runtime
	f.BoolVar(&c.Runtime.CI, flags.FlagCI, false, "CI mode: skip rules that are not meaningful in a CI pipeline")
	f.BoolVar(&c.Runtime.Rethrow, flags.FlagRethrow, false, "Stop at the first rule that raises an error and exit with it")
	f.BoolVar(&c.Runtime.FailOnError, flags.FlagFailOnError, false, "Exit 1 when a reportable rule raises an error")

	// GitHub
	f.BoolVar(&c.GitHub.Publish, flags.FlagGitHubStatus, false, "Publish the outcome as a GitHub commit status")
	f.StringVar(&c.GitHub.Repo, flags.FlagGitHubRepo, "", "Repository for --github-status as OWNER/REPO (default: $GITHUB_REPOSITORY)")
	f.StringVar(&c.GitHub.SHA, flags.FlagGitHubSHA, "", "Commit for --github-status (default: $GITHUB_SHA)")
	f.StringVar(&c.GitHub.Context, flags.FlagGitHubContext, "appaudit", "Commit status context label")
}

// applyFlagOverrides copies the flags the user changed from src into dst.
func applyFlagOverrides(cmd *cobra.Command, dst, src *config.Config) {
	changed := cmd.Flags().Changed

	if changed(flags.FlagSet) {
		dst.Rules.Set = append(dst.Rules.Set, src.Rules.Set...)
	}
	if changed(flags.FlagDontReport) {
		dst.Rules.DontReport = src.Rules.DontReport
	}

	if changed(flags.FlagHost) {
		dst.Host.Files = src.Host.Files
	}
	if changed(flags.FlagHostEnvPrefix) {
		dst.Host.EnvPrefix = src.Host.EnvPrefix
	}

	if changed(flags.FlagFormat) {
		dst.Output.Format = src.Output.Format
	}
	if changed(flags.FlagShowExceptions) {
		dst.Output.ShowExceptions = src.Output.ShowExceptions
	}
	if changed(flags.FlagReport) {
		dst.Output.Report = src.Output.Report
	}
	if changed(flags.FlagOut) {
		dst.Output.Out = src.Output.Out
	}
	if changed(flags.FlagOutFormat) {
		dst.Output.OutFormat = src.Output.OutFormat
	}
	if changed(flags.FlagEmit) {
		dst.Output.Emit = src.Output.Emit
	}
	if changed(flags.FlagNoConsole) {
		dst.Output.NoConsole = src.Output.NoConsole
	}

	if changed(flags.FlagCI) {
		dst.Runtime.CI = src.Runtime.CI
	}
	if changed(flags.FlagRethrow) {
		dst.Runtime.Rethrow = src.Runtime.Rethrow
	}
	if changed(flags.FlagFailOnError) {
		dst.Runtime.FailOnError = src.Runtime.FailOnError
	}
	if verbosity > 0 {
		dst.Runtime.Verbose = verbosity
	}

	if changed(flags.FlagGitHubStatus) {
		dst.GitHub.Publish = src.GitHub.Publish
	}
	if changed(flags.FlagGitHubRepo) {
		dst.GitHub.Repo = src.GitHub.Repo
	}
	if changed(flags.FlagGitHubSHA) {
		dst.GitHub.SHA = src.GitHub.SHA
	}
	if changed(flags.FlagGitHubContext) {
		dst.GitHub.Context = src.GitHub.Context
	}
}

// loadConfig builds the effective config: defaults, config file, APPAUDIT_
// environment, then changed flags. The result is validated.
func loadConfig(cmd *cobra.Command, flagCfg *config.Config) (*config.Config, string, error) {
	path := configPath
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, "", fmt.Errorf("error resolving working directory: %w", err)
		}
		path = config.FindConfigFile(wd)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, err
	}
	applyFlagOverrides(cmd, cfg, flagCfg)
	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}

	// The config file may ask for more logging than the -v flags did.
	if cfg.Runtime.Verbose > verbosity {
		logging.SetupLogger(cfg.Runtime.Verbose)
	}
	return cfg, path, nil
}

// runAudit performs one audit and maps the outcome to the process exit code.
func runAudit(cmd *cobra.Command, flagCfg *config.Config, args []string) int {
	stderr := cmd.ErrOrStderr()

	cfg, path, err := loadConfig(cmd, flagCfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	logger := logging.GetLogger("cli")
	logger.Debug().Str("config", path).Strs("rules", args).Msg("Configuration loaded")

	return auditOnce(commandContext(cmd), cmd.OutOrStdout(), stderr, cfg, args)
}

func auditOnce(ctx context.Context, stdout, stderr io.Writer, cfg *config.Config, args []string) int {
	eng := newEngine()
	eng.Stdout = stdout
	code, err := eng.Run(ctx, cfg, args)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if code != 0 {
		return 1
	}
	return 0
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func init() {
	rootCmd.AddCommand(newAuditCmd())
}
