// Package app wires configuration into a runnable service: storage,
// summarizer, notifier, and the job registry.
package app

import (
	"context"
	"fmt"
	"net/http"

	gpubsub "cloud.google.com/go/pubsub"
	gstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/asagiri-dev/choukan/internal/clock/system"
	"github.com/asagiri-dev/choukan/internal/config"
	"github.com/asagiri-dev/choukan/internal/digest"
	"github.com/asagiri-dev/choukan/internal/hackernews"
	"github.com/asagiri-dev/choukan/internal/job"
	"github.com/asagiri-dev/choukan/internal/logging"
	"github.com/asagiri-dev/choukan/internal/metrics"
	"github.com/asagiri-dev/choukan/internal/notify"
	notifymem "github.com/asagiri-dev/choukan/internal/notify/memory"
	notifypubsub "github.com/asagiri-dev/choukan/internal/notify/pubsub"
	"github.com/asagiri-dev/choukan/internal/papers"
	"github.com/asagiri-dev/choukan/internal/storage"
	storagegcs "github.com/asagiri-dev/choukan/internal/storage/gcs"
	storagelocal "github.com/asagiri-dev/choukan/internal/storage/local"
	storagemem "github.com/asagiri-dev/choukan/internal/storage/memory"
	"github.com/asagiri-dev/choukan/internal/summarizer/gemini"
	"github.com/asagiri-dev/choukan/internal/techfeed"
	"github.com/asagiri-dev/choukan/internal/trending"
)

// App holds the assembled service components.
type App struct {
	Config   config.Config
	Logger   *zap.Logger
	Store    storage.Store
	Registry *job.Registry

	closers []func() error
}

// New assembles the service from configuration. The returned App owns
// the clients it opens; call Close when done.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	metrics.Init()

	a := &App{Config: cfg, Logger: logger}

	store, err := a.openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Store = store

	sum, err := gemini.New(ctx, gemini.Config{
		APIKey: cfg.Gemini.APIKey,
		Model:  cfg.Gemini.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("init summarizer: %w", err)
	}
	a.closers = append(a.closers, sum.Close)

	notifier, topic, err := a.openNotifier(ctx, cfg)
	if err != nil {
		return nil, err
	}

	clock := system.Clock{}
	publisher := digest.NewPublisher(store, notifier, topic, clock, logger)
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout()}

	jobs := []job.Job{
		trending.New(cfg.Trending.Languages, publisher, cfg.HTTP.UserAgent, cfg.HTTPTimeout(), logger),
		hackernews.New(
			hackernews.NewClient(httpClient, ""),
			sum,
			publisher,
			cfg.HackerNews.TopStories,
			cfg.HackerNews.ScoreThreshold,
			logger,
		),
		techfeed.New(
			cfg.TechFeed.Feeds,
			httpClient,
			sum,
			publisher,
			clock,
			cfg.TechFeed.ThresholdDays,
			cfg.TechFeed.MaxEntriesPerDay,
			cfg.TechFeed.Delay(),
			logger,
		),
	}
	if cfg.Papers.Enabled {
		jobs = append(jobs, papers.New(store, sum, publisher, httpClient, clock, cfg.Papers.LookbackDays, logger))
	}
	a.Registry = job.NewRegistry(jobs...)

	return a, nil
}

// Schedules maps each registered job to its cron expression.
func (a *App) Schedules() map[string]string {
	specs := map[string]string{
		trending.Name:   a.Config.Trending.Schedule,
		hackernews.Name: a.Config.HackerNews.Schedule,
		techfeed.Name:   a.Config.TechFeed.Schedule,
		papers.Name:     a.Config.Papers.Schedule,
	}
	out := make(map[string]string, len(specs))
	for _, name := range a.Registry.Names() {
		if spec := specs[name]; spec != "" {
			out[name] = spec
		}
	}
	return out
}

func (a *App) openStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	switch cfg.Storage.Driver {
	case "gcs":
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		return storagegcs.New(client, storagegcs.Config{Bucket: cfg.Storage.Bucket})
	case "local":
		return storagelocal.New(storagelocal.Config{BaseDir: cfg.Storage.BaseDir})
	case "memory":
		return storagemem.NewBlobStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func (a *App) openNotifier(ctx context.Context, cfg config.Config) (notify.Publisher, string, error) {
	if !cfg.PubSub.Enabled {
		// Keeps the notification path exercised without external wiring.
		return notifymem.New(), cfg.PubSub.Topic, nil
	}
	client, err := gpubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, "", fmt.Errorf("init pubsub client: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	return notifypubsub.New(client), cfg.PubSub.Topic, nil
}

// Close releases clients in reverse acquisition order.
func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	_ = a.Logger.Sync()
	return firstErr
}
