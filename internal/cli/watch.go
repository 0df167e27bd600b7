package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"appaudit/internal/config"
	"appaudit/internal/logging"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// watchDebounce coalesces the burst of events editors produce on save.
var watchDebounce = 300 * time.Millisecond

func newWatchCmd() *cobra.Command {
	flagCfg := config.New()

	cmd := &cobra.Command{
		Use:   "watch [rule-id...]",
		Short: "Re-run the audit whenever the host snapshot or config file changes",
		Long: `Run the audit once, then again every time a --host file or the config file
changes. Runs never overlap: changes made during a run trigger one more run
after it finishes.

Takes the same flags as "appaudit audit". The config file is reloaded before
every run. Stop with Ctrl-C.

Examples:
  appaudit watch --host host.yaml
  appaudit watch --host base.yaml,local.yaml app-debug cache-prefix
`,
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
			defer stop()
			if err := runWatch(ctx, cmd, flagCfg, args); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				exitFunc(1)
			}
		},
	}
	cmd.SetHelpTemplate(auditHelpTemplate)
	bindAuditFlags(cmd, flagCfg)
	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, flagCfg *config.Config, args []string) error {
	logger := logging.GetLogger("watch")

	cfg, path, err := loadConfig(cmd, flagCfg)
	if err != nil {
		return err
	}
	targets, err := watchTargets(cfg.Host.Files, path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch init failed: %w", err)
	}
	defer watcher.Close()

	// Watch parent directories: editors often replace files on save, which
	// drops a watch placed on the file itself.
	dirs := make(map[string]bool)
	for t := range targets {
		dirs[filepath.Dir(t)] = true
	}
	for d := range dirs {
		if err := watcher.Add(d); err != nil {
			return fmt.Errorf("watch %s: %w", d, err)
		}
	}

	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	run := func() {
		// Pick up config file edits; keep the last good config otherwise.
		next, _, err := loadConfig(cmd, flagCfg)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return
		}
		cfg = next
		code := auditOnce(ctx, stdout, stderr, cfg, args)
		color.New(color.Faint).Fprintf(stdout, "\n[%s] audit finished (exit %d); watching for changes...\n\n", time.Now().Format(time.Kitchen), code)
	}

	run()
	logger.Info().Int("files", len(targets)).Msg("Watching for changes")
	return watchLoop(ctx, watcher, targets, watchDebounce, run)
}

// watchTargets returns the cleaned absolute paths to watch.
func watchTargets(hostFiles []string, configFile string) (map[string]bool, error) {
	targets := make(map[string]bool)
	for _, p := range append(append([]string{}, hostFiles...), configFile) {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		targets[filepath.Clean(abs)] = true
	}
	if len(hostFiles) == 0 {
		return nil, errors.New("watch needs at least one host snapshot file (--host)")
	}
	return targets, nil
}

// watchLoop calls run once per debounced burst of changes to targets. run is
// called from this goroutine only, so runs are strictly sequential.
func watchLoop(ctx context.Context, watcher *fsnotify.Watcher, targets map[string]bool, debounce time.Duration, run func()) error {
	logger := logging.GetLogger("watch")

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil || !targets[filepath.Clean(abs)] {
				continue
			}
			logger.Debug().Str("file", ev.Name).Str("op", ev.Op.String()).Msg("Change detected")
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			run()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("Watch error")
		}
	}
}

func init() {
	rootCmd.AddCommand(newWatchCmd())
}
