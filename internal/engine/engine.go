package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"appaudit/internal/config"
	gh "appaudit/internal/github"
	"appaudit/internal/host"
	"appaudit/internal/logging"
	"appaudit/internal/output"
	"appaudit/internal/report"
	"appaudit/internal/rules"
)

// StatusPublisher posts the outcome of a run as a commit status.
// *github.Client satisfies it.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, req gh.StatusRequest) error
}

type Engine struct {
	Registry *rules.Registry

	// Host replaces the snapshot loaded from cfg.Host when set.
	Host host.Context

	Stdout io.Writer

	// NewPublisher builds the commit status publisher for --github-status.
	// If nil, Engine uses the GitHub REST API.
	NewPublisher func(ctx context.Context, cfg *config.Config) (StatusPublisher, error)
}

func NewEngine() *Engine {
	return &Engine{
		Registry: rules.Default,
		Stdout:   os.Stdout,
	}
}

// Run performs one audit. ruleIDs selects rules in order; when empty,
// cfg.Rules.Enabled is used, and when that is empty too every registered rule
// runs.
//
// The returned code is the report's exit status. A non-nil error means the
// audit could not complete: invalid configuration, an unreadable host
// snapshot, failed outputs, or a rule failure rethrown with cfg.Runtime.Rethrow.
func (e *Engine) Run(ctx context.Context, cfg *config.Config, ruleIDs []string) (int, error) {
	logger := logging.GetLogger("engine")
	done := logging.LogOperationStart(logger, "audit")
	defer done()

	selected, err := e.resolveAndConfigureRules(cfg, ruleIDs)
	if err != nil {
		return 1, err
	}
	dontReport, err := e.dontReportSet(cfg)
	if err != nil {
		return 1, err
	}
	hc, err := e.hostContext(cfg)
	if err != nil {
		return 1, err
	}

	outMgr, err := e.setupOutputManager(cfg)
	if err != nil {
		return 1, fmt.Errorf("error creating output sinks: %w", err)
	}

	_ = outMgr.Write(output.Event{Type: output.EventRunStarted, Rules: countRunnable(selected, cfg.Runtime.CI)})

	runner := &Runner{
		CIMode:      cfg.Runtime.CI,
		DontReport:  dontReport,
		Rethrow:     cfg.Runtime.Rethrow,
		FailOnError: cfg.Runtime.FailOnError,
		Out:         outMgr,
		Logger:      logging.GetLogger("runner"),
	}
	rep, runErr := runner.Run(ctx, selected, hc)
	if runErr != nil {
		_ = outMgr.Close()
		return 1, runErr
	}

	summary := rep.Summarize()
	code := rep.ExitCode()
	_ = outMgr.Write(output.Event{Type: output.EventRunFinished, Summary: &summary, ExitCode: code})
	if err := outMgr.Close(); err != nil {
		return 1, err
	}

	logger.Info().
		Int("rules", len(rep.Entries())).
		Int("streamed", outMgr.Verdicts()).
		Int("failed", summary.Total.Count(rules.StatusFailed)).
		Int("errored", len(rep.Errored())).
		Int("exitCode", code).
		Msg("Audit finished")

	if cfg.GitHub.Publish {
		// The audit verdict stands even when the status cannot be posted.
		if err := e.publishStatus(ctx, cfg, summary, code); err != nil {
			logger.Warn().Err(err).Str("repo", cfg.GitHub.Repo).Msg("Failed to publish commit status")
		}
	}
	return code, nil
}

func (e *Engine) registry() *rules.Registry {
	if e.Registry != nil {
		return e.Registry
	}
	return rules.Default
}

// resolveAndConfigureRules resolves the selected rules and applies per-rule
// options from the config file and --set.
//
// Options naming a registered rule that is not selected are ignored. Options
// naming an unknown rule, or an option the rule does not declare, are errors.
//
// Example:
//
//	appaudit audit --set cache-prefix.disallowed=cache,app
func (e *Engine) resolveAndConfigureRules(cfg *config.Config, ruleIDs []string) ([]rules.Rule, error) {
	reg := e.registry()

	ids := ruleIDs
	if len(ids) == 0 {
		ids = cfg.Rules.Enabled
	}
	selected, err := reg.Resolve(ids)
	if err != nil {
		return nil, fmt.Errorf("error resolving rules: %w", err)
	}

	assignments, err := cfg.RuleOptions()
	if err != nil {
		return nil, err
	}
	if len(assignments) == 0 {
		return selected, nil
	}

	byID := make(map[string]rules.Rule, len(selected))
	for _, r := range selected {
		byID[r.ID()] = r
	}

	for ruleID, opts := range assignments {
		if !reg.Has(ruleID) {
			return nil, fmt.Errorf("error configuring rules: %w: %s", rules.ErrUnknownRule, ruleID)
		}
		r, ok := byID[ruleID]
		if !ok {
			continue
		}
		cr, ok := r.(rules.ConfigurableRule)
		if !ok {
			return nil, fmt.Errorf("rule %q does not support options", ruleID)
		}

		allowed := make(map[string]struct{})
		for _, opt := range cr.Options() {
			allowed[opt.Name] = struct{}{}
		}
		for name := range opts {
			if _, ok := allowed[name]; !ok {
				return nil, fmt.Errorf("unknown option %q for rule %q", name, ruleID)
			}
		}

		if err := cr.Configure(opts); err != nil {
			return nil, fmt.Errorf("configure rule %q: %w", ruleID, err)
		}
	}
	return selected, nil
}

func (e *Engine) dontReportSet(cfg *config.Config) (map[string]bool, error) {
	reg := e.registry()
	out := make(map[string]bool, len(cfg.Rules.DontReport))
	for _, id := range cfg.Rules.DontReport {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if !reg.Has(id) {
			return nil, fmt.Errorf("error reading dont_report: %w: %s", rules.ErrUnknownRule, id)
		}
		out[id] = true
	}
	return out, nil
}

func (e *Engine) hostContext(cfg *config.Config) (host.Context, error) {
	if e.Host != nil {
		return e.Host, nil
	}
	prefix := cfg.Host.EnvPrefix
	if prefix == "" {
		prefix = host.DefaultEnvPrefix
	}
	snap, err := host.Load(host.LoadOptions{Files: cfg.Host.Files, EnvPrefix: prefix})
	if err != nil {
		return nil, fmt.Errorf("error loading host snapshot: %w", err)
	}
	return snap, nil
}

func (e *Engine) setupOutputManager(cfg *config.Config) (*output.Manager, error) {
	stdout := e.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	outMgr := output.NewManager()

	// Console Sink
	if !cfg.Output.NoConsole {
		if err := outMgr.AddSink(output.NewConsoleSink(stdout, cfg.Output.Format, cfg.Output.ShowExceptions)); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	// Emit Sinks (additional structured streams)
	for _, emit := range cfg.Output.Emit {
		es, err := output.NewEmitSink(stdout, emit)
		if err != nil {
			outMgr.Close()
			return nil, err
		}
		if err := outMgr.AddSink(es); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	// File Sink
	if cfg.Output.Out != "" {
		fs, err := output.NewFileSink(cfg.Output.Out, cfg.Output.OutFormat)
		if err != nil {
			outMgr.Close()
			return nil, err
		}
		if err := outMgr.AddSink(fs); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	// Report Sink
	if cfg.Output.Report != "" {
		rs, err := output.NewReportSink(cfg.Output.Report, cfg.Output.ShowExceptions)
		if err != nil {
			outMgr.Close()
			return nil, err
		}
		if err := outMgr.AddSink(rs); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	return outMgr, nil
}

func countRunnable(selected []rules.Rule, ci bool) int {
	if !ci {
		return len(selected)
	}
	n := 0
	for _, r := range selected {
		if r.RunInCI() {
			n++
		}
	}
	return n
}

func (e *Engine) publishStatus(ctx context.Context, cfg *config.Config, summary report.Summary, code int) error {
	newPublisher := e.NewPublisher
	if newPublisher == nil {
		newPublisher = defaultPublisher
	}
	p, err := newPublisher(ctx, cfg)
	if err != nil {
		return err
	}
	return p.PublishStatus(ctx, StatusRequest(cfg.GitHub, summary, code))
}

func defaultPublisher(ctx context.Context, cfg *config.Config) (StatusPublisher, error) {
	req := gh.TokenRequest{Configured: cfg.GitHub.Token, APIURL: cfg.GitHub.APIURL}
	token, source, err := gh.ResolveAuthToken(ctx, req)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, fmt.Errorf("no GitHub token found for %s: set a token variable (see appaudit audit --help) or run `gh auth login -h %s`", req.Host(), req.Host())
	}
	logger := logging.GetLogger("github")
	logger.Debug().Str("source", string(source)).Msg("Resolved GitHub token")

	opts := []gh.Option{gh.WithVerbose(cfg.Runtime.Verbose >= 2, logger)}
	if cfg.GitHub.APIURL != "" {
		opts = append(opts, gh.WithBaseURL(cfg.GitHub.APIURL))
	}
	return gh.NewClient(ctx, token, opts...)
}

// StatusRequest builds the commit status for a finished run: success when the
// exit status is 0, failure otherwise, with per-status totals as description.
func StatusRequest(target config.GitHub, summary report.Summary, code int) gh.StatusRequest {
	state := gh.StateSuccess
	if code != 0 {
		state = gh.StateFailure
	}
	parts := make([]string, 0, len(rules.Statuses))
	for _, st := range rules.Statuses {
		parts = append(parts, fmt.Sprintf("%d %s", summary.Total.Count(st), strings.ToLower(st.Label())))
	}
	return gh.StatusRequest{
		Repo:        target.Repo,
		SHA:         target.SHA,
		State:       state,
		Context:     target.Context,
		Description: strings.Join(parts, ", "),
	}
}
