package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opsfleet/workspace-worker/internal/account"
	"github.com/opsfleet/workspace-worker/internal/adapter"
	"github.com/opsfleet/workspace-worker/internal/config"
	"github.com/opsfleet/workspace-worker/internal/domain"
	"github.com/opsfleet/workspace-worker/internal/fulltext"
	"github.com/opsfleet/workspace-worker/internal/ledger"
	"github.com/opsfleet/workspace-worker/internal/lifecycle"
	"github.com/opsfleet/workspace-worker/internal/logging"
	"github.com/opsfleet/workspace-worker/internal/metrics"
	"github.com/opsfleet/workspace-worker/internal/phases"
	"github.com/opsfleet/workspace-worker/internal/transactor"
	"github.com/opsfleet/workspace-worker/internal/worker"
)

func buildServeCmd() *cobra.Command {
	var (
		configPath  string
		versionStr  string
		regionFlag  string
		limitFlag   int
		operationStr string
		consoleFlag bool
		forceFlag   bool
		logsDir     string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the control loop: handshake once, then poll and dispatch until signalled",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(serveFlags{
				configPath: configPath,
				version:    versionStr,
				region:     regionFlag,
				limit:      limitFlag,
				operation:  operationStr,
				console:    consoleFlag,
				force:      forceFlag,
				logsDir:    logsDir,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.Env("WORKER_CONFIG_PATH", "worker.yaml"), "path to the YAML worker options file")
	cmd.Flags().StringVar(&versionStr, "version", config.Env("WORKER_VERSION", "0.0.0"), "semantic version this worker declares at handshake")
	cmd.Flags().StringVar(&regionFlag, "region", config.Env("WORKER_REGION", ""), "region this worker serves; empty means default")
	cmd.Flags().IntVar(&limitFlag, "limit", 4, "maximum number of concurrent workspace jobs")
	cmd.Flags().StringVar(&operationStr, "operation", config.Env("WORKER_OPERATION", "all"), "declared capability: create, upgrade, all, all+backup")
	cmd.Flags().BoolVar(&consoleFlag, "console", true, "stream per-workspace logs to the console instead of per-workspace files")
	cmd.Flags().BoolVar(&forceFlag, "force", false, "force upgrades even where the external collaborator would otherwise defer")
	cmd.Flags().StringVar(&logsDir, "logs", config.Env("WORKER_LOGS_DIR", "logs"), "directory for per-workspace log files when --console=false")

	return cmd
}

type serveFlags struct {
	configPath string
	version    string
	region     string
	limit      int
	operation  string
	console    bool
	force      bool
	logsDir    string
}

func runServe(f serveFlags) error {
	logging.Init(logging.Config{
		Level:      logging.Level(config.Env("LOG_LEVEL", "info")),
		JSONOutput: config.Env("LOG_FORMAT", "console") == "json",
	})
	log := logging.WithComponent("workerd")

	version, err := config.ParseVersion(f.version)
	if err != nil {
		return err
	}

	cfgFile, err := config.Load(f.configPath)
	if err != nil {
		log.Warn().Err(err).Str("path", f.configPath).Msg("could not load worker options file, continuing with empty brandings/ignore")
		cfgFile = &config.File{}
	}

	fulltextURL := config.Env("FULLTEXT_URL", "")
	opts := config.Options{
		Identity: domain.Identity{
			Version:     version,
			Region:      f.region,
			Limit:       f.limit,
			Operation:   domain.Operation(f.operation),
			Brandings:   cfgFile.Brandings(),
			FulltextURL: fulltextURL,
		},
		AccountURL:       config.Env("ACCOUNT_URL", "http://localhost:8080"),
		Token:            config.Env("WORKER_TOKEN", ""),
		DBURL:            config.Env("WORKSPACE_DB_URL", ""),
		LedgerDSN:        config.Env("WORKER_LEDGER_DSN", ""),
		FulltextURL:      fulltextURL,
		WaitTimeout:      envDuration("WORKER_WAIT_TIMEOUT", 5*time.Second),
		Force:            f.force,
		Console:          f.console,
		LogsDir:          f.logsDir,
		MigrationCleanup: config.EnvBool("MIGRATION_CLEANUP", false),
		MetricsAddr:      config.Env("METRICS_ADDR", ":9090"),
	}
	identity := opts.Identity

	accountClient := account.NewHTTPClient(opts.AccountURL, opts.Token)

	collector := metrics.NewCollector()

	transactorClient := transactor.New(accountClient, opts.Token)
	fulltextClient := fulltext.New(identity.FulltextURL, opts.Token)
	adapters := adapter.Default()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobLedger, err := ledger.Open(ctx, ledger.Config{DSN: opts.LedgerDSN})
	if err != nil {
		log.Warn().Err(err).Msg("ledger unavailable, continuing without local dispatch diagnostics")
		jobLedger = nil
	}
	defer jobLedger.Close()

	if jobLedger != nil {
		if inFlight, err := jobLedger.InFlightAtStartup(ctx); err != nil {
			log.Warn().Err(err).Msg("could not read ledger startup state")
		} else if len(inFlight) > 0 {
			log.Warn().Strs("workspaces", inFlight).Msg("workspaces were mid-flight when this worker last exited")
		}
		go jobLedger.SweepLoop(ctx, func(err error) {
			log.Warn().Err(err).Msg("ledger sweep failed")
		})
	}

	deps := phases.Deps{
		Account:    accountClient,
		Transactor: transactorClient,
		Fulltext:   fulltextClient,
		Adapters:   adapters,
		Ledger:     jobLedger,
		Pipelines:  phases.NotConfiguredPipelines(),
		Ops:        phases.NotConfiguredOps(),
		Identity:   identity,
		Metrics:    collector,
		Options: phases.Options{
			Force:            opts.Force,
			Console:          opts.Console,
			LogsDir:          opts.LogsDir,
			Ignore:           cfgFile.IgnoreSet(),
			DBURL:            opts.DBURL,
			MigrationCleanup: opts.MigrationCleanup,
		},
		ErrorHandler: func(ws domain.WorkspaceInfo, err error) {
			logging.WithWorkspace(ws.Workspace).Error().Err(err).Msg("phase failed")
		},
	}

	table := lifecycle.Table{
		Create:        phases.Create{Deps: deps},
		Upgrade:       phases.Upgrade{Deps: deps},
		ArchiveBackup: phases.ArchiveBackup{Deps: deps},
		ArchiveClean:  phases.ArchiveClean{Deps: deps},
		MigrateBackup: phases.MigrateBackup{Deps: deps},
		MigrateClean:  phases.MigrateClean{Deps: deps},
		Restore:       phases.Restore{Deps: deps},
		Delete:        phases.Delete{Deps: deps},
		OnUnknownMode: func(ws domain.WorkspaceInfo) {
			logging.WithWorkspace(ws.Workspace).Error().Str("mode", string(ws.Mode)).Msg("Unknown workspace mode")
		},
	}

	w := worker.New(worker.Config{
		Account:     accountClient,
		Table:       table,
		Identity:    identity,
		WaitTimeout: opts.WaitTimeout,
		Metrics:     collector,
		Log:         log,
		OnDispatch: func(ws domain.WorkspaceInfo) {
			collector.RecordDispatch(phaseLabel(ws.Mode))
		},
		OnOutcome: func(ws domain.WorkspaceInfo, d time.Duration, ok bool) {
			if ok {
				collector.RecordSuccess(phaseLabel(ws.Mode), d.Seconds())
			} else {
				collector.RecordFailure(phaseLabel(ws.Mode), d.Seconds())
			}
		},
	})

	metricsSrv := &http.Server{Addr: opts.MetricsAddr, Handler: metrics.Handler()}
	go func() {
		log.Info().Str("addr", opts.MetricsAddr).Msg("metrics server listening")
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn().Err(err).Msg("metrics server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- w.Run(ctx) }()

	select {
	case <-sigCh:
		log.Info().Msg("shutdown signal received")
	case err := <-runErrCh:
		if err != nil {
			log.Error().Err(err).Msg("worker exited")
			return err
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	<-runErrCh
	return nil
}

func envDuration(key string, def time.Duration) time.Duration {
	v := config.Env(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// phaseLabel derives a stable metrics label from the workspace's mode,
// collapsing the two-mode phases ("creating"/"pending-creation" -> "create")
// into one series.
func phaseLabel(mode domain.Mode) string {
	switch mode.Normalize() {
	case domain.ModePendingCreation, domain.ModeCreating:
		return "create"
	case domain.ModeUpgrading, domain.ModeActive:
		return "upgrade"
	case domain.ModeArchivingPendingBackup, domain.ModeArchivingBackup:
		return "archive-backup"
	case domain.ModeArchivingPendingClean, domain.ModeArchivingClean:
		return "archive-clean"
	case domain.ModeMigrationPendingBackup, domain.ModeMigrationBackup:
		return "migrate-backup"
	case domain.ModeMigrationPendingClean, domain.ModeMigrationClean:
		return "migrate-clean"
	case domain.ModePendingRestore, domain.ModeRestoring:
		return "restore"
	case domain.ModePendingDeletion, domain.ModeDeleting:
		return "delete"
	default:
		return "unknown"
	}
}
