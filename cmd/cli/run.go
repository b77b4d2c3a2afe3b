package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/trainloop/trainloop/api/rest"
	"github.com/trainloop/trainloop/internal/config"
	"github.com/trainloop/trainloop/internal/engine"
	"github.com/trainloop/trainloop/internal/hooks"
	"github.com/trainloop/trainloop/internal/metrics"
	"github.com/trainloop/trainloop/internal/reporter"
	"github.com/trainloop/trainloop/pkg/hook"
	"github.com/trainloop/trainloop/pkg/logger"
	"github.com/trainloop/trainloop/pkg/monitor"
)

var (
	runSteps   int64
	runOutJSON string
	runServe   string
)

var runCmd = &cobra.Command{
	Use:   "run [config.yaml]",
	Short: "Execute a monitored run",
	Long: `Run loads a configuration file, builds the engine and the configured
run hooks, and drives the step loop until a hook requests a stop, a
signal arrives, or a step fails.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if len(args) > 0 {
			path = args[0]
		}
		return runLoop(cmd.Context(), path)
	},
}

func init() {
	runCmd.Flags().Int64Var(&runSteps, "steps", 0, "stop after this many steps (overrides config)")
	runCmd.Flags().StringVar(&runOutJSON, "out-json", "", "write the run summary to a JSON file")
	runCmd.Flags().StringVar(&runServe, "serve", "", "expose the control surface on this address")

	rootCmd.AddCommand(runCmd)
}

func runLoop(ctx context.Context, configPath string) error {
	cfg, err := loadRunConfig(configPath)
	if err != nil {
		return err
	}

	if !debug && !quiet {
		logger.SetLevelFromString(cfg.Logging.Level)
	}

	eng, err := buildEngine(&cfg.Engine)
	if err != nil {
		return err
	}

	registry := metrics.NewRegistry()

	manager, err := buildReporterManager(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeReporters(manager)

	hookList, err := buildHooks(cfg, eng, registry, manager)
	if err != nil {
		return err
	}

	sess, err := monitor.NewSession(eng, hookList...)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received %s, stopping after the current step", sig)
			sess.RequestStop()
		case <-runCtx.Done():
		}
	}()

	var runOpts []monitor.RunOption
	srv := startServerIfEnabled(cfg, sess, registry)
	if srv != nil {
		defer srv.ShutdownWithTimeout(5 * time.Second)
		runOpts = append(runOpts, monitor.WithStepCallback(srv.PublishStep))
	}

	if !quiet {
		logger.Info("run %s started (%d ops, %d hooks)",
			sess.RunID(), len(cfg.Engine.Ops), len(hookList))
	}

	req, err := buildRequest(&cfg.Run)
	if err != nil {
		return err
	}

	runErr := monitor.Run(runCtx, sess, req, runOpts...)
	if srv != nil {
		srv.PublishComplete()
	}

	if closeErr := sess.Close(context.Background()); closeErr != nil && runErr == nil {
		runErr = closeErr
	}
	if runErr != nil {
		return fmt.Errorf("run failed: %w", runErr)
	}

	if !quiet {
		logger.Info("run %s finished after %d steps", sess.RunID(), sess.StepCount())
	}
	return nil
}

// loadRunConfig loads, overrides and validates the configuration.
func loadRunConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader.WithConfigPath(path)
	}

	overrides := map[string]string{}
	if runSteps > 0 {
		overrides["hooks.stop_after_steps"] = fmt.Sprintf("%d", runSteps)
	}
	if runServe != "" {
		overrides["server.enabled"] = "true"
		overrides["server.address"] = runServe
	}
	if len(overrides) > 0 {
		loader.WithCmdArgs(overrides)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if runOutJSON != "" {
		cfg.Reporters = append(cfg.Reporters, reporter.ReporterConfig{
			Type:    reporter.ReporterTypeJSON,
			Enabled: true,
			Config:  map[string]any{"file_path": runOutJSON},
		})
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildEngine constructs and populates the expression engine.
func buildEngine(cfg *config.EngineConfig) (*engine.Engine, error) {
	eng := engine.New()
	for name, value := range cfg.State {
		eng.SetState(name, value)
	}
	for _, op := range cfg.Ops {
		if err := eng.Define(op.Name, op.Expr); err != nil {
			return nil, fmt.Errorf("define op %s: %w", op.Name, err)
		}
	}
	return eng, nil
}

// buildReporterManager wires up every enabled reporter from the config.
func buildReporterManager(ctx context.Context, cfg *config.Config) (*reporter.Manager, error) {
	registry, err := reporter.NewDefaultRegistry()
	if err != nil {
		return nil, err
	}

	manager := reporter.NewManager(registry)
	for i := range cfg.Reporters {
		if err := manager.AddReporterFromConfig(ctx, &cfg.Reporters[i]); err != nil {
			return nil, err
		}
	}
	if err := manager.Start(ctx); err != nil {
		return nil, err
	}
	return manager, nil
}

// closeReporters closes the reporter manager, which also performs the
// final flush. A failed final delivery must not vanish silently.
func closeReporters(manager *reporter.Manager) {
	if err := manager.Close(context.Background()); err != nil {
		logger.Error("close reporters: %v", err)
	}
}

// buildHooks assembles the hook chain from the configuration. Hooks run
// in the order they are appended here.
func buildHooks(cfg *config.Config, eng *engine.Engine, registry *metrics.Registry, manager *reporter.Manager) ([]hook.Hook, error) {
	var list []hook.Hook
	hc := &cfg.Hooks

	if hc.StopAfterSteps > 0 {
		h, err := hooks.StopAtStepCount(hc.StopAfterSteps)
		if err != nil {
			return nil, err
		}
		list = append(list, h)
	}

	if hc.NaNGuard.Op != "" {
		h, err := hooks.NewNaNGuard(hc.NaNGuard.Op, hc.NaNGuard.FailOnNonFinite)
		if err != nil {
			return nil, err
		}
		list = append(list, h)
	}

	if len(hc.ValueLog.Ops) > 0 {
		h, err := hooks.NewValueLogger(fetchForOps(hc.ValueLog.Ops), hc.ValueLog.EverySteps, hc.ValueLog.Paths...)
		if err != nil {
			return nil, err
		}
		list = append(list, h)
	}

	counter := hooks.NewStepCounter(registry, hc.CounterEverySteps)
	list = append(list, counter)

	if hc.Checkpoint.Dir != "" {
		h, err := hooks.NewCheckpointSaver(eng, hc.Checkpoint.Dir, hc.Checkpoint.EverySteps)
		if err != nil {
			return nil, err
		}
		list = append(list, h)
	}

	if len(hc.Summary.Ops) > 0 {
		h, err := hooks.NewSummary(registry, manager, hc.Summary.Ops...)
		if err != nil {
			return nil, err
		}
		h.SetTiming(counter.Timing())
		list = append(list, h)
	}

	if hc.ScriptPath != "" {
		src, err := os.ReadFile(hc.ScriptPath)
		if err != nil {
			return nil, fmt.Errorf("read hook script: %w", err)
		}
		h, err := hooks.NewScript(string(src))
		if err != nil {
			return nil, fmt.Errorf("load hook script %s: %w", hc.ScriptPath, err)
		}
		list = append(list, h)
	}

	return list, nil
}

// buildRequest shapes the caller request from the run configuration.
func buildRequest(cfg *config.RunConfig) (*hook.RunRequest, error) {
	if len(cfg.Fetches) == 0 {
		return nil, fmt.Errorf("run.fetches must name at least one op")
	}

	opts := []hook.RequestOption{
		hook.WithOptions(&hook.RunOptions{
			Timeout: cfg.Timeout,
			Trace:   cfg.Trace,
			Tags:    cfg.Tags,
		}),
	}
	if len(cfg.Bindings) > 0 {
		opts = append(opts, hook.WithBindings(cfg.Bindings))
	}

	return hook.NewRequest(fetchForOps(cfg.Fetches), opts...), nil
}

// fetchForOps builds a map fetch keyed by op name.
func fetchForOps(ops []string) hook.Fetch {
	entries := make(map[string]hook.Fetch, len(ops))
	for _, op := range ops {
		entries[op] = hook.Op(op)
	}
	return hook.Map(entries)
}

// startServerIfEnabled brings up the control surface when configured.
func startServerIfEnabled(cfg *config.Config, sess *monitor.Session, registry *metrics.Registry) *rest.Server {
	if !cfg.Server.Enabled {
		return nil
	}

	srv := rest.NewServer(sess, registry, &rest.Config{
		Address:         cfg.Server.Address,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		EnableCORS:      cfg.Server.EnableCORS,
		EnableWebSocket: true,
	})

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("control surface stopped: %v", err)
		}
	}()
	logger.Info("control surface listening on %s", cfg.Server.Address)
	return srv
}
