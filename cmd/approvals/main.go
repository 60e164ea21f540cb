package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	approvals "github.com/goliatone/go-approvals"
	"github.com/goliatone/go-approvals/adapters/gocommand"
	"github.com/goliatone/go-approvals/adapters/gojob"
	"github.com/goliatone/go-approvals/adapters/gologger"
	"github.com/goliatone/go-approvals/core"
	"github.com/goliatone/go-approvals/httpapi"
	sqlstore "github.com/goliatone/go-approvals/store/sql"
	gocmd "github.com/goliatone/go-command"
	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
	"golang.org/x/sync/errgroup"
)

func main() {
	settings, err := loadRuntimeSettings(os.LookupEnv)
	if err != nil {
		gologger.NewProvider(os.Stderr, "info", false).GetLogger("approvals").Fatal("invalid runtime settings", "error", err)
		return
	}
	provider := gologger.NewProvider(os.Stderr, settings.LogLevel, settings.LogJSON)
	logger := provider.GetLogger("approvals")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, settings, provider, logger); err != nil {
		logger.Fatal("approvals exited", "error", err)
	}
}

func run(ctx context.Context, settings runtimeSettings, provider glog.LoggerProvider, logger glog.Logger) error {
	cfg, err := core.NewCfgxConfigProvider(newEnvLoader()).Load(ctx, core.DefaultConfig())
	if err != nil {
		return err
	}
	logger.Info("config loaded",
		"http_addr", cfg.HTTP.Addr,
		"db_driver", cfg.Persistence.Driver,
		"default_backend", cfg.Resolver.DefaultBackend,
		"pending_cache_ttl", cfg.Pending.CacheTTL.String(),
	)

	client, err := sqlstore.Open(ctx, cfg.Persistence)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		return err
	}
	activity := factory.ActivityStore()

	app, err := approvals.Build(cfg,
		approvals.WithBuildLoggerProvider(provider),
		approvals.WithBuildLogger(logger),
		approvals.WithBuildActivityStore(activity),
	)
	if err != nil {
		return err
	}

	subs, err := app.Facade().Register(gocommand.NewRegistryAdapter(gocmd.NewRegistry()))
	if err != nil {
		return err
	}
	defer subs.Unsubscribe()

	handler, err := httpapi.NewHandler(app.Service(), httpapi.WithLogger(provider.GetLogger("http")))
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              app.Config().HTTP.Addr,
		Handler:           httpapi.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	jobs := gojob.NewMemoryQueue(8)
	jobLogger := provider.GetLogger("jobs")
	worker, err := gojob.NewWorker(jobs, gojob.WithHook(gojob.NewLoggingHook(jobLogger, core.NopMetricsRecorder{})))
	if err != nil {
		return err
	}
	prune, err := gojob.NewActivityPruneHandler(activity, jobLogger)
	if err != nil {
		return err
	}
	if err := worker.Handle(gojob.JobIDActivityPrune, prune); err != nil {
		return err
	}
	policy := core.ActivityRetentionPolicy{
		TTL:    app.Config().Activity.RetentionTTL,
		RowCap: app.Config().Activity.RowCap,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return worker.Run(groupCtx)
	})
	group.Go(func() error {
		return gojob.RunSchedule(groupCtx, jobs, settings.PruneInterval, func(time.Time) *job.ExecutionMessage {
			return gojob.ActivityPruneMessage(policy)
		}, jobLogger)
	})
	group.Go(func() error {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), settings.ShutdownGrace)
		defer cancel()
		logger.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("approvals stopped")
	return nil
}
