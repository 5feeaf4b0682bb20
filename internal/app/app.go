// Package app initializes and holds long-lived application services, acting
// as a dependency injection container for the statusgate commands.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ovsienko/statusgate/internal/challenge"
	"github.com/ovsienko/statusgate/internal/config"
	"github.com/ovsienko/statusgate/internal/diagnostics"
	"github.com/ovsienko/statusgate/internal/fetcher/browser"
	"github.com/ovsienko/statusgate/internal/fetcher/direct"
	"github.com/ovsienko/statusgate/internal/history"
	historypg "github.com/ovsienko/statusgate/internal/history/postgres"
	idgen "github.com/ovsienko/statusgate/internal/id/uuid"
	"github.com/ovsienko/statusgate/internal/logging"
	"github.com/ovsienko/statusgate/internal/pipeline"
	"github.com/ovsienko/statusgate/internal/proxy"
	"github.com/ovsienko/statusgate/internal/publisher/memory"
	"github.com/ovsienko/statusgate/internal/publisher/pubsub"
	"github.com/ovsienko/statusgate/internal/status"
	"github.com/ovsienko/statusgate/internal/track"
	"github.com/ovsienko/statusgate/internal/track/sinks"
)

// closeTimeout bounds the event hub drain during shutdown.
const closeTimeout = 10 * time.Second

// App holds the shared, long-lived services: logger, invocation history
// store, outcome publisher, tracking hub and the fetch pipeline itself. It
// is built once at startup and handed to the commands that need it.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	history   history.Store
	publisher status.Publisher
	pubsubPub *pubsub.Publisher
	hub       *track.Hub
	pipeline  *pipeline.Pipeline
}

// Config returns the loaded service configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// History exposes the invocation history store.
func (a *App) History() history.Store {
	return a.history
}

// Pipeline returns the fetch pipeline commands run identifiers through.
func (a *App) Pipeline() *pipeline.Pipeline {
	return a.pipeline
}

// New builds an App from configuration: it picks providers (noop/postgres
// history, memory/pubsub publisher), wires the fetch tiers and the proxy
// pool machinery, and starts the tracking hub. It fails fast if any
// critical service cannot be initialized.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &App{cfg: cfg, logger: logger}

	if err := a.initHistory(ctx); err != nil {
		return nil, err
	}
	if err := a.initPublisher(ctx); err != nil {
		a.history.Close()
		return nil, err
	}
	if err := a.initPipeline(); err != nil {
		a.history.Close()
		if a.pubsubPub != nil {
			_ = a.pubsubPub.Close()
		}
		return nil, err
	}

	logger.Info("application services initialized",
		zap.String("history_provider", cfg.History.Provider),
		zap.String("publisher_provider", cfg.Publisher.Provider),
		zap.Bool("proxy_escalation", cfg.Proxy.Enabled))
	return a, nil
}

func (a *App) initHistory(ctx context.Context) error {
	switch a.cfg.History.Provider {
	case "postgres":
		a.logger.Info("connecting invocation history store",
			zap.String("table", a.cfg.History.Table))
		store, err := historypg.New(ctx, historypg.Config{
			DSN:   a.cfg.History.DSN,
			Table: a.cfg.History.Table,
		})
		if err != nil {
			return fmt.Errorf("init history store: %w", err)
		}
		a.history = store
	case "noop":
		a.logger.Info("invocation history disabled")
		a.history = history.NewNoop()
	default:
		return fmt.Errorf("unknown history provider: %s", a.cfg.History.Provider)
	}
	return nil
}

func (a *App) initPublisher(ctx context.Context) error {
	switch a.cfg.Publisher.Provider {
	case "pubsub":
		a.logger.Info("connecting outcome publisher",
			zap.String("project", a.cfg.Publisher.ProjectID),
			zap.String("topic", a.cfg.Publisher.TopicName))
		pub, err := pubsub.New(ctx, a.cfg.Publisher.ProjectID)
		if err != nil {
			return fmt.Errorf("init publisher: %w", err)
		}
		a.pubsubPub = pub
		a.publisher = pub
	case "memory":
		a.publisher = memory.New()
	default:
		return fmt.Errorf("unknown publisher provider: %s", a.cfg.Publisher.Provider)
	}
	return nil
}

func (a *App) initPipeline() error {
	cfg := a.cfg

	directFetcher, err := direct.New(direct.Config{
		TargetBaseURL:  cfg.Target.BaseURL,
		ConnectTimeout: cfg.ConnectTimeout(),
		ReadTimeout:    cfg.ReadTimeout(),
	}, a.logger.Named("direct"))
	if err != nil {
		return fmt.Errorf("init direct fetcher: %w", err)
	}

	detector := challenge.New()
	browserFetcher, err := browser.New(browser.Config{
		TargetBaseURL:         cfg.Target.BaseURL,
		Headless:              cfg.Browser.Headless,
		MaxParallel:           cfg.Browser.MaxParallel,
		NavigationTimeout:     cfg.NavTimeout(),
		ChallengeWaitAttempts: cfg.Browser.ChallengeWaitAttempts,
		ChallengePollInterval: cfg.ChallengePollInterval(),
	}, detector, a.logger.Named("browser"))
	if err != nil {
		return fmt.Errorf("init browser fetcher: %w", err)
	}

	reporter := diagnostics.NewReporter(diagnostics.Config{
		BaseURL: cfg.Diagnostics.NtfyBaseURL,
		Topic:   cfg.Diagnostics.Topic,
	}, idgen.New(), a.logger.Named("diagnostics"))

	a.hub = track.NewHub(track.Config{Logger: a.logger.Named("track")},
		sinks.NewLogSink(a.logger.Named("events")),
		sinks.NewMetricsSink(),
		sinks.NewHistorySink(a.history, a.logger.Named("history")),
	)

	deps := pipeline.Deps{
		Direct:    directFetcher,
		Browser:   browserFetcher,
		Reporter:  reporter,
		Emitter:   a.hub,
		Publisher: a.publisher,
	}

	if cfg.Proxy.Enabled {
		discoverer, err := proxy.NewDiscoverer(proxy.DiscoveryConfig{
			ListingURL: cfg.Proxy.ListingURL,
			Cap:        cfg.Proxy.PoolCap,
		}, a.logger.Named("discovery"))
		if err != nil {
			return fmt.Errorf("init proxy discoverer: %w", err)
		}
		prober, err := proxy.NewProber(proxy.ProberConfig{
			EchoURL:     cfg.Target.EchoURL,
			Concurrency: cfg.Proxy.ProbeConcurrency,
			Timeout:     cfg.ProbeTimeout(),
		}, a.logger.Named("prober"))
		if err != nil {
			return fmt.Errorf("init proxy prober: %w", err)
		}
		validator, err := proxy.NewValidator(proxy.ValidatorConfig{
			EchoURL:     cfg.Target.EchoURL,
			Concurrency: cfg.Proxy.ValidateConcurrency,
			Timeout:     cfg.ProbeTimeout(),
		}, browserFetcher, a.logger.Named("validator"))
		if err != nil {
			return fmt.Errorf("init proxy validator: %w", err)
		}
		deps.Discover = discoverer
		deps.Prober = prober
		deps.Validator = validator
	}

	p, err := pipeline.New(pipeline.Config{
		ProxyEnabled:   cfg.Proxy.Enabled,
		PublisherTopic: cfg.Publisher.TopicName,
	}, deps, a.logger.Named("pipeline"))
	if err != nil {
		return fmt.Errorf("init pipeline: %w", err)
	}
	a.pipeline = p
	return nil
}

// Close gracefully shuts down all services: drains the tracking hub so the
// last invocation rows land in history, then releases the stores and
// flushes the logger.
func (a *App) Close() {
	a.logger.Info("shutting down application services")

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			a.logger.Warn("event hub shutdown incomplete", zap.Error(err))
		}
	}
	if a.history != nil {
		a.history.Close()
	}
	if a.pubsubPub != nil {
		if err := a.pubsubPub.Close(); err != nil {
			a.logger.Warn("error closing publisher", zap.Error(err))
		}
	}
	// Best effort: stderr sync fails on some platforms and there is no
	// recovery at this point anyway.
	_ = a.logger.Sync()
}
