// Command weatherflickbatch runs the tourism and weather data ingestion
// batch engine: either as a long-lived worker process driving the
// scheduler, or as a one-shot operator subcommand against the same
// configuration and database.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/aicc6/weatherflick-batch/internal/config"
	"github.com/aicc6/weatherflick-batch/internal/platform"
	"github.com/aicc6/weatherflick-batch/internal/telemetry"
	"github.com/aicc6/weatherflick-batch/pkg/archive"
	"github.com/aicc6/weatherflick-batch/pkg/gateway"
	"github.com/aicc6/weatherflick-batch/pkg/governor"
	"github.com/aicc6/weatherflick-batch/pkg/job"
	"github.com/aicc6/weatherflick-batch/pkg/keyregistry"
	"github.com/aicc6/weatherflick-batch/pkg/notify"
	"github.com/aicc6/weatherflick-batch/pkg/quality"
	"github.com/aicc6/weatherflick-batch/pkg/scheduler"
	"github.com/aicc6/weatherflick-batch/pkg/transform"
	"github.com/aicc6/weatherflick-batch/pkg/upsert"
)

// Exit codes for operator subcommands, per the documented CLI contract.
const (
	exitOK             = 0
	exitJobFailed      = 1
	exitUsageError     = 2
	exitQuotaExhausted = 3
)

func main() {
	mode := flag.String("mode", "worker", "run mode: worker, list, run, run-all, status, test")
	jobID := flag.String("job", "", "job id, required for 'run'")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: loading config: %v\n", err)
		os.Exit(exitJobFailed)
	}

	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("fatal: building app", "error", err)
		os.Exit(exitJobFailed)
	}

	var runErr error
	switch *mode {
	case "worker":
		runErr = app.runWorker(ctx)
	case "list":
		app.runList()
		return
	case "run":
		if *jobID == "" {
			fmt.Fprintln(os.Stderr, "error: -job is required for 'run'")
			os.Exit(exitUsageError)
		}
		runErr = app.scheduler.RunOnce(ctx, *jobID)
	case "run-all":
		runErr = app.runAll(ctx)
	case "status":
		app.runStatus(ctx)
		return
	case "test":
		runErr = app.runTest(ctx)
	default:
		fmt.Fprintf(os.Stderr, "error: unknown mode %q\n", *mode)
		os.Exit(exitUsageError)
	}

	if runErr != nil {
		logger.Error("fatal", "error", runErr)
		var jerr *job.Error
		if errors.As(runErr, &jerr) && jerr.TaxonomyCategory() == job.CategoryQuotaExhausted {
			os.Exit(exitQuotaExhausted)
		}
		os.Exit(exitJobFailed)
	}
	os.Exit(exitOK)
}

// app bundles every wired component the operator subcommands and the
// worker loop act on.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	keys      *keyregistry.Registry
	archiver  *archive.Writer
	scheduler *scheduler.Scheduler
	gate      *quality.Gate
	location  *time.Location
}

func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	pool, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL, int32(cfg.DBPoolMaxAsync))
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	cache := newOptionalRedis(ctx, cfg.RedisURL, logger)

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", cfg.Timezone, err)
	}

	keyStore := keyregistry.NewStore(pool)
	prober := gateway.NewProber(time.Duration(cfg.RequestTimeoutSeconds)*time.Second, cfg.KTOBaseURL, cfg.KMABaseURL)
	keys := keyregistry.NewRegistry(keyStore, cache, prober, logger)
	for _, k := range cfg.KTOServiceKeys {
		if _, err := keyStore.Register(ctx, keyregistry.ProviderKTO, k, cfg.KTODailyQuota); err != nil {
			return nil, fmt.Errorf("registering KTO key: %w", err)
		}
	}
	for _, k := range cfg.KMAServiceKeys {
		if _, err := keyStore.Register(ctx, keyregistry.ProviderKMA, k, cfg.KMADailyQuota); err != nil {
			return nil, fmt.Errorf("registering KMA key: %w", err)
		}
	}
	if err := keys.Load(ctx, keyregistry.ProviderKTO); err != nil {
		return nil, fmt.Errorf("loading KTO keys: %w", err)
	}
	if err := keys.Load(ctx, keyregistry.ProviderKMA); err != nil {
		return nil, fmt.Errorf("loading KMA keys: %w", err)
	}

	gov := governor.New(governor.Config{
		MaxConcurrentGlobal:      int64(cfg.MaxConcurrentGlobal),
		MaxConcurrentPerProvider: int64(cfg.MaxConcurrentPerProvider),
		MinInterval:              time.Duration(cfg.MinIntervalMS) * time.Millisecond,
		AdaptiveDelayGrowth:      cfg.AdaptiveDelayGrowth,
		AdaptiveDelayDecay:       cfg.AdaptiveDelayDecay,
		AdaptiveDelayCap:         time.Duration(cfg.AdaptiveDelayCapSeconds * float64(time.Second)),
	})

	archiver := archive.NewWriter(pool, logger)
	exec := gateway.NewExecutor(time.Duration(cfg.RequestTimeoutSeconds)*time.Second, gov, keys, archiver, logger)
	tourismClient := gateway.NewTourismClient(exec, cfg.KTOBaseURL)
	weatherClient := gateway.NewWeatherClient(exec, cfg.KMABaseURL)

	pipeline := transform.New(cfg.TransformChunkSize, logger)
	upsertEngine := upsert.NewEngine(pool, logger)
	profile := upsert.ProfileByName(cfg.OptimizationLevel)

	qualitySpec, err := quality.LoadSpec(cfg.QualityChecksPath)
	if err != nil {
		return nil, fmt.Errorf("loading quality spec: %w", err)
	}
	gate := quality.NewGate(qualitySpec)

	cooldown, err := time.ParseDuration(cfg.AlertCooldown)
	if err != nil {
		return nil, fmt.Errorf("parsing alert cooldown: %w", err)
	}
	var tracker interface {
		ShouldDeliver(ctx context.Context, key string, cooldown time.Duration) bool
	}
	if cache != nil {
		tracker = notify.NewRedisCooldownTracker(cache)
	} else {
		tracker = notify.NewMemoryCooldownTracker()
	}
	routing, err := notify.LoadRoutingConfig(cfg.MonitoringPath)
	if err != nil {
		return nil, fmt.Errorf("loading monitoring config: %w", err)
	}
	slackEgress := notify.NewSlackEgress(cfg.SlackBotToken, cfg.SlackAlertChannel)
	notifier := notify.New(slackEgress, tracker, cooldown, routing, logger)

	ledger := scheduler.NewLedger(pool)
	sched := scheduler.New(ledger, notifier, cfg.SchedulerWorkerPoolSize, location, logger)

	if err := registerJobs(sched, archiver, keys, tourismClient, weatherClient, pipeline, upsertEngine, gate, profile, logger); err != nil {
		return nil, fmt.Errorf("registering jobs: %w", err)
	}

	return &app{cfg: cfg, logger: logger, keys: keys, archiver: archiver, scheduler: sched, gate: gate, location: location}, nil
}

// registerJobs declares the scheduled job definitions: one tourism sync
// per content type, one weather sync, and the retention job, grounded on
// the operator surface's "list"/"run" contract.
func registerJobs(sched *scheduler.Scheduler, archiver *archive.Writer, keys *keyregistry.Registry, tourismClient *gateway.TourismClient, weatherClient *gateway.WeatherClient, pipeline *transform.Pipeline, upsertEngine *upsert.Engine, gate *quality.Gate, profile upsert.Profile, logger *slog.Logger) error {
	contentTypes := []gateway.ContentType{
		gateway.ContentTourist, gateway.ContentCulture, gateway.ContentFestival,
		gateway.ContentCourse, gateway.ContentLeisure, gateway.ContentLodging,
		gateway.ContentShopping, gateway.ContentFood,
	}
	for _, ct := range contentTypes {
		id := "tourism-sync-" + string(ct)
		j := job.NewTourismSyncJob(id, ct, tourismClient, pipeline, upsertEngine, gate, profile, 100, logger)
		if err := sched.Register(&scheduler.Definition{
			ID:           id,
			Job:          j,
			Trigger:      scheduler.TriggerCron,
			CronExpr:     "0 0 3 * * *",
			Timeout:      20 * time.Minute,
			MaxRetries:   3,
			RetryBackoff: 30 * time.Second,
			MisfireGrace: 10 * time.Minute,
		}); err != nil {
			return err
		}
	}

	weatherJob := job.NewWeatherSyncJob("weather-sync", weatherClient, defaultGridCells(), pipeline, upsertEngine, gate, profile, "0500", logger)
	if err := sched.Register(&scheduler.Definition{
		ID:           "weather-sync",
		Job:          weatherJob,
		Trigger:      scheduler.TriggerInterval,
		Interval:     1 * time.Hour,
		Timeout:      10 * time.Minute,
		MaxRetries:   2,
		RetryBackoff: 15 * time.Second,
		MisfireGrace: 5 * time.Minute,
	}); err != nil {
		return err
	}

	retention := job.NewRetentionJob("retention", archiver, keys, logger)
	return sched.Register(&scheduler.Definition{
		ID:           "retention",
		Job:          retention,
		Trigger:      scheduler.TriggerInterval,
		Interval:     1 * time.Hour,
		Timeout:      5 * time.Minute,
		MaxRetries:   1,
		RetryBackoff: 10 * time.Second,
	})
}

// defaultGridCells is a small seed set of KMA nx/ny points covering major
// metro areas. An operator deploying to production is expected to load the
// full grid from a configuration file; this keeps the default runnable.
func defaultGridCells() []job.GridCell {
	return []job.GridCell{
		{NX: 60, NY: 127}, // Seoul
		{NX: 98, NY: 76},  // Busan
		{NX: 89, NY: 90},  // Daegu
		{NX: 58, NY: 74},  // Gwangju
	}
}

func (a *app) runWorker(ctx context.Context) error {
	go a.serveMetrics()
	a.logger.Info("worker starting", "jobs", len(a.scheduler.Definitions()))
	a.scheduler.Start(ctx)
	return nil
}

func (a *app) serveMetrics() {
	reg := telemetry.NewRegistry()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: a.cfg.MetricsListenAddr(), Handler: mux}
	a.logger.Info("metrics listener starting", "addr", a.cfg.MetricsListenAddr())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		a.logger.Error("metrics listener stopped", "error", err)
	}
}

func (a *app) runList() {
	for _, d := range a.scheduler.Definitions() {
		fmt.Printf("%-30s trigger=%-10s\n", d.ID, d.Trigger)
	}
}

func (a *app) runAll(ctx context.Context) error {
	var firstErr error
	for _, d := range a.scheduler.Definitions() {
		if err := a.scheduler.RunOnce(ctx, d.ID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (a *app) runStatus(ctx context.Context) {
	for _, p := range []keyregistry.Provider{keyregistry.ProviderKTO, keyregistry.ProviderKMA} {
		for _, k := range a.keys.Snapshot(p) {
			fmt.Printf("%s key=%s status=%s remaining=%d/%d\n", p, k.ID, k.Status, k.Remaining(), k.DailyQuota)
		}
	}
}

// runTest prints each provider key's status and remaining quota, the same
// report as the status mode. It makes no provider calls and always
// returns nil.
func (a *app) runTest(ctx context.Context) error {
	a.logger.Info("test mode: verifying provider connectivity")
	a.runStatus(ctx)
	return nil
}

// newOptionalRedis connects to Redis when a URL is configured, returning
// nil when it isn't so the key registry and notifier fall back to their
// in-process implementations.
func newOptionalRedis(ctx context.Context, redisURL string, logger *slog.Logger) *redis.Client {
	if redisURL == "" {
		return nil
	}
	client, err := platform.NewRedisClient(ctx, redisURL)
	if err != nil {
		logger.Warn("redis unavailable, falling back to in-process state", "error", err)
		return nil
	}
	return client
}
