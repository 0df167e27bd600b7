package cli

import (
	"fmt"
	"os"

	"appaudit/internal/flags"
	"appaudit/internal/logging"

	"github.com/spf13/cobra"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

var (
	// configPath is the --config flag. Empty means appaudit.{yaml,yml,toml}
	// in the working directory, then $XDG_CONFIG_HOME/appaudit/config.yaml.
	configPath string
	// verbosity is the -v count.
	verbosity int
)

var rootCmd = &cobra.Command{
	Use:   "appaudit",
	Short: "Audit a web application's runtime configuration and print a report card",
	Long: `appaudit audits a snapshot of a web application's runtime state (configuration
values, environment, debug flag and global middleware) against a set of rules
and prints a categorised report card.

appaudit is read-only: it reports problems, it never changes the application.

Examples:
	# Audit a host snapshot with every rule
	appaudit audit --host host.yaml

	# Audit inside a CI pipeline
	appaudit audit --host host.yaml --ci

	# List rules
	appaudit rules list

	# Print build info
	appaudit version

Output:
	By default, commands write human-readable output to stdout and logs to stderr.
	Structured output is available via --format, --emit, --out and --report
	(see "appaudit audit --help").`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.SetupLogger(verbosity)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, flags.FlagConfig, "", "Config file (default: ./appaudit.yaml, then $XDG_CONFIG_HOME/appaudit/config.yaml)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, flags.FlagVerbose, "v", "Increase log verbosity (-v info, -vv debug with a log file, -vvv trace)")
}

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}

	rootCmd.Version = fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate)
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
