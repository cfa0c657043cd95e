package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"ConferenceScanner/internal/config"
	"ConferenceScanner/internal/infrastructure/llm"
	"ConferenceScanner/internal/infrastructure/parser"
	"ConferenceScanner/internal/infrastructure/scheduler"
	"ConferenceScanner/internal/infrastructure/storage"
	"ConferenceScanner/internal/infrastructure/telegram"
	"ConferenceScanner/internal/logging"
	"ConferenceScanner/internal/ports"
	"ConferenceScanner/internal/scanner"
	"ConferenceScanner/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	pipeline *usecase.Pipeline
	now      func() time.Time
}

// New builds a runnable application instance. scrapers restricts scanning
// to the named sites or scanners; empty means all configured sites.
func New(cfg config.Config, scrapers []string, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	fetch := parser.FetchConfig{
		Client:    &http.Client{Timeout: cfg.Scraper.Timeout},
		UserAgent: cfg.Scraper.UserAgent,
		Delay:     cfg.Scraper.RequestDelay,
		Retries:   cfg.Scraper.Retries,
	}
	registry := scanner.NewRegistry()
	registry.Register(parser.NewInomicsScanner(fetch, baseLogger.With("component", "scanner.inomics")))
	registry.Register(parser.NewMisfitScanner(fetch, baseLogger.With("component", "scanner.misfit")))

	source := parser.NewStrategySource(registry, cfg.Sites, cfg.Scraper.Concurrency, baseLogger.With("component", "source")).
		Only(scrapers)

	deps := usecase.PipelineDeps{
		Source:          source,
		Store:           storage.NewWorkbookStore(cfg.Workbook.Path, baseLogger.With("component", "workbook")),
		CycleYear:       cfg.Dedup.CycleYear,
		RetentionWindow: cfg.Dedup.RetentionWindow,
		Logger:          baseLogger.With("component", "pipeline"),
	}

	if cfg.ChatGPT.APIKey != "" {
		client, err := llm.NewChatGPTClient(cfg.ChatGPT, cfg.Dedup.CycleYear, baseLogger.With("component", "chatgpt"))
		if err != nil {
			return nil, fmt.Errorf("chatgpt client: %w", err)
		}
		deps.Extractor = client
		deps.Relevance = client
	} else {
		baseLogger.Warn("OPENAI_API_KEY is not set, conferences are stored without extracted details")
	}

	if cfg.Notifications.Telegram.Enabled() {
		tg := cfg.Notifications.Telegram
		deps.Notifier = telegram.NewNotifier(tg.BaseURL, tg.BotToken, tg.ChatID)
	}

	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		pipeline: usecase.NewPipeline(deps),
		now:      time.Now,
	}, nil
}

// RunOnce performs a single pipeline execution dated in the scheduler timezone.
func (a *Application) RunOnce(ctx context.Context, opts usecase.RunOptions) (usecase.Report, error) {
	now := a.now().In(a.cfg.Scheduler.Location())
	return a.pipeline.Run(ctx, now, opts)
}

// Schedule runs the pipeline on the configured cron expression until ctx is
// cancelled. onReport receives every successful run.
func (a *Application) Schedule(ctx context.Context, opts usecase.RunOptions, onReport func(usecase.Report)) error {
	var driver ports.Scheduler = scheduler.NewCronScheduler(a.cfg.Scheduler.CronExpression, a.cfg.Scheduler.Location())

	sched := usecase.NewScheduler(driver, a.pipeline, opts, a.logger.With("component", "scheduler"))
	sched.OnReport(onReport)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("scheduler started",
		"cron", a.cfg.Scheduler.CronExpression,
		"timezone", a.cfg.Scheduler.Location().String())

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return sched.Stop(stopCtx)
}
