package flags

// Package flags defines canonical CLI flag names shared across the CLI and engine.
// Keeping these as constants helps avoid drift between Cobra flag wiring and other
// code paths that need to reference flags (e.g. applying only the flags a user
// changed on top of the config file).
// IMPORTANT: These are flag *names* without leading dashes.
// Example usage:
//
//	cmd.Flags().BoolVar(&ci, flags.FlagCI, false, "...")
//	arg := "--" + flags.FlagCI
const (
	// Config
	FlagConfig = "config"

	// Rules
	FlagSet        = "set"
	FlagDontReport = "dont-report"

	// Host
	FlagHost          = "host"
	FlagHostEnvPrefix = "host-env-prefix"

	// Output
	FlagFormat         = "format"
	FlagShowExceptions = "show-exceptions"
	FlagReport         = "report"
	FlagOut            = "out"
	FlagOutFormat      = "out-format"
	FlagNoConsole      = "no-console"
	FlagEmit           = "emit"

	// Runtime
	FlagCI          = "ci"
	FlagRethrow     = "rethrow"
	FlagFailOnError = "fail-on-error"
	FlagVerbose     = "verbose"

	// GitHub
	FlagGitHubStatus  = "github-status"
	FlagGitHubRepo    = "github-repo"
	FlagGitHubSHA     = "github-sha"
	FlagGitHubContext = "github-context"
)
