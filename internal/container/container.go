// Package container provides dependency injection for the sms-ledger application.
// It centralizes the creation and wiring of all application dependencies,
// making them explicit and testable.
package container

import (
	"context"
	"fmt"
	"net/http"

	"fjacquet/sms-ledger/internal/api"
	"fjacquet/sms-ledger/internal/config"
	"fjacquet/sms-ledger/internal/dateutils"
	"fjacquet/sms-ledger/internal/gateway"
	"fjacquet/sms-ledger/internal/importer"
	"fjacquet/sms-ledger/internal/ingest"
	"fjacquet/sms-ledger/internal/logging"
	"fjacquet/sms-ledger/internal/mpesaparser"
	"fjacquet/sms-ledger/internal/normalizer"
	"fjacquet/sms-ledger/internal/phoneutils"
	"fjacquet/sms-ledger/internal/scheduler"
	"fjacquet/sms-ledger/internal/store"
)

// Container holds all application dependencies and provides methods to access them.
//
// Container is immutable after creation: all fields are private and can only
// be accessed through getter methods.
type Container struct {
	logger     logging.Logger
	config     *config.Config
	store      store.Store
	parser     *mpesaparser.Parser
	gateway    *gateway.Client
	normalizer *normalizer.Normalizer
	service    *ingest.Service
	importer   *importer.Importer
	scheduler  *scheduler.Scheduler
}

// NewContainer creates and wires all application dependencies.
// The gateway client and the scheduler are only built when the
// configuration enables them.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	return NewContainerWithLogger(ctx, cfg, logging.NewLogrusAdapter(cfg.Log.Level, cfg.Log.Format))
}

// NewContainerWithLogger is NewContainer with an explicit logger.
func NewContainerWithLogger(ctx context.Context, cfg *config.Config, logger logging.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}

	st, err := newStore(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	loc := cfg.Location()
	p := NewParser(cfg, logger)

	var (
		client  *gateway.Client
		fetcher gateway.Fetcher
	)
	if cfg.Gateway.APIKey != "" {
		client, err = gateway.NewClient(cfg.Gateway.APIKey, logger,
			gateway.WithBaseURL(cfg.Gateway.BaseURL),
			gateway.WithTimeout(cfg.GatewayTimeout()))
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("failed to create gateway client: %w", err)
		}
		fetcher = client
		logger.Info("Gateway client enabled", logging.F(logging.FieldEndpoint, cfg.Gateway.BaseURL))
	} else {
		logger.Info("Gateway client disabled, no API key configured")
	}

	norm := normalizer.NewNormalizer(logger, loc)
	svc := ingest.NewService(st, p, fetcher, norm, logger,
		ingest.WithLocation(loc),
		ingest.WithEmptyIDPolicy(cfg.Ingest.EmptyIDPolicy),
		ingest.WithWorkers(cfg.Ingest.ExtractWorkers))

	var sched *scheduler.Scheduler
	if cfg.Poller.Enabled && fetcher != nil {
		sched = scheduler.NewScheduler(svc, logger, cfg.Poller, cfg.GatewayTimeout()*2)
	}

	logger.Info("Container initialized successfully",
		logging.F("driver", cfg.Database.Driver),
		logging.F("poller_enabled", sched != nil))

	return &Container{
		logger:     logger,
		config:     cfg,
		store:      st,
		parser:     p,
		gateway:    client,
		normalizer: norm,
		service:    svc,
		importer:   importer.NewImporter(svc, norm, logger),
		scheduler:  sched,
	}, nil
}

// NewParser builds the extractor for the configured provider. It needs no
// store, so commands that only parse can use it directly.
func NewParser(cfg *config.Config, logger logging.Logger) *mpesaparser.Parser {
	return mpesaparser.NewParser(logger,
		mpesaparser.WithProvider(cfg.Provider.Name),
		mpesaparser.WithBrandTokens(cfg.Provider.BrandTokens...),
		mpesaparser.WithPhoneNormalizer(phoneutils.NewNormalizer(cfg.Provider.CountryCode, cfg.Provider.MobilePrefix)),
		mpesaparser.WithResolver(dateutils.NewResolver(cfg.Location())))
}

func newStore(ctx context.Context, cfg config.DatabaseConfig, logger logging.Logger) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		st, err := store.NewPostgresStore(ctx, cfg.URL, store.PoolOptions{
			MaxConns: int32(cfg.MaxConns),
			MinConns: int32(cfg.MinConns),
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		return st, nil
	case config.DriverSQLite:
		st, err := store.NewSQLiteStore(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return st, nil
	case config.DriverMemory:
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown database driver: %s", cfg.Driver)
	}
}

// Router builds the HTTP handler for the server command.
func (c *Container) Router() http.Handler {
	defaults := gateway.FetchOptions{UnreadOnly: c.config.Poller.UnreadOnly, DeviceID: c.config.Poller.DeviceID}
	h := api.NewHandlers(c.service, c.store, c.logger, defaults)
	return api.NewRouter(h, api.RouterConfig{
		WebhookPath:    c.config.Server.WebhookPath,
		RequestTimeout: c.config.RequestTimeout(),
	})
}

// GetLogger returns the container's logger instance.
func (c *Container) GetLogger() logging.Logger {
	return c.logger
}

// GetConfig returns the container's configuration instance.
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetStore returns the message store.
func (c *Container) GetStore() store.Store {
	return c.store
}

// GetParser returns the MPESA extractor.
func (c *Container) GetParser() *mpesaparser.Parser {
	return c.parser
}

// GetGateway returns the gateway client, or nil when no API key is set.
func (c *Container) GetGateway() *gateway.Client {
	return c.gateway
}

// GetService returns the ingestion service.
func (c *Container) GetService() *ingest.Service {
	return c.service
}

// GetImporter returns the export file importer.
func (c *Container) GetImporter() *importer.Importer {
	return c.importer
}

// GetScheduler returns the poller, or nil when polling is disabled.
func (c *Container) GetScheduler() *scheduler.Scheduler {
	return c.scheduler
}

// Close releases the store.
func (c *Container) Close() error {
	if err := c.store.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	c.logger.Info("Container closed")
	return nil
}
