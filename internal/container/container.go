// Package container is the composition root: it wires config, logging,
// tracing, storage, the broker, the outbox publisher, the per-destination
// consumer dispatchers, and the ops HTTP server into a single runnable
// process.
package container

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	adapterhttp "github.com/wallethub/eventcore/internal/adapters/http"
	"github.com/wallethub/eventcore/internal/bindings"
	"github.com/wallethub/eventcore/internal/broker"
	"github.com/wallethub/eventcore/internal/config"
	"github.com/wallethub/eventcore/internal/consumer"
	"github.com/wallethub/eventcore/internal/domain/walletevents"
	"github.com/wallethub/eventcore/internal/envelope"
	"github.com/wallethub/eventcore/internal/idempotency"
	"github.com/wallethub/eventcore/internal/outbox"
	"github.com/wallethub/eventcore/internal/pkg/logger"
	"github.com/wallethub/eventcore/internal/pkg/tracing"
	"github.com/wallethub/eventcore/internal/publisher"
	"github.com/wallethub/eventcore/internal/saga"
)

// eventToSagaEvent maps a CloudEvents type (bound in internal/bindings) to
// the saga.Event it drives. Every type the dispatchers consume must have an
// entry here.
var eventToSagaEvent = map[string]saga.Event{
	walletevents.TypeWalletCreated:    saga.EventWalletCreated,
	walletevents.TypeFundsAdded:       saga.EventFundsAdded,
	walletevents.TypeFundsWithdrawn:   saga.EventFundsWithdrawn,
	walletevents.TypeFundsTransferred: saga.EventFundsTransferred,
}

// Container owns every long-lived dependency and its shutdown order.
type Container struct {
	config *config.Config
	logger *slog.Logger

	pool        *pgxpool.Pool
	natsClient  *broker.NATSClient
	redisClient *redis.Client

	tracer       tracing.Tracer
	tracerClose  func(context.Context) error
	outboxStore  outbox.Store
	sagaStore    saga.Store
	ledger       idempotency.Ledger
	sagaMachine  *saga.Machine
	pub          *publisher.Publisher
	dispatchers  []*consumer.Dispatcher
	httpServer   *adapterhttp.Server
}

// New creates a Container around the given configuration. Call Initialize
// before Run.
func New(cfg *config.Config) *Container {
	return &Container{config: cfg}
}

// Initialize wires every dependency in the order each needs the last:
// logging, tracing, database, broker, redis, domain stores, the outbox
// publisher, one dispatcher per bound destination, and the ops HTTP server.
func (c *Container) Initialize(ctx context.Context) error {
	c.logger = logger.New(&logger.Config{
		Level:  c.config.Log.Level,
		Format: c.config.Log.Format,
	})
	c.logger.Info("initializing eventcore container")

	if err := c.initTracing(ctx); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}

	if err := c.initDatabase(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	c.logger.Info("database connected")

	if err := c.initBroker(); err != nil {
		return fmt.Errorf("broker: %w", err)
	}
	c.logger.Info("broker connected")

	c.initRedis()
	c.initStores()

	c.initPublisher()
	c.initDispatchers()
	c.initHTTPServer()

	c.logger.Info("container initialization complete")
	return nil
}

func (c *Container) initTracing(ctx context.Context) error {
	if !c.config.Trace.Enabled {
		c.tracer = tracing.NewNoopTracer()
		return nil
	}

	tracer, shutdown, err := tracing.NewOTelTracer(ctx, c.config.Trace.ServiceName, c.config.Trace.OTLPEndpoint)
	if err != nil {
		return err
	}
	c.tracer = tracer
	c.tracerClose = shutdown
	return nil
}

func (c *Container) initDatabase(ctx context.Context) error {
	poolConfig, err := pgxpool.ParseConfig(c.config.DB.DSN())
	if err != nil {
		return fmt.Errorf("parse database url: %w", err)
	}

	poolConfig.MaxConns = c.config.DB.MaxConnections
	poolConfig.MinConns = c.config.DB.MinConnections
	poolConfig.MaxConnLifetime = c.config.DB.MaxConnLifetime
	poolConfig.MaxConnIdleTime = c.config.DB.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	c.pool = pool
	return nil
}

func (c *Container) initBroker() error {
	client, err := broker.NewNATSClient(c.config.Broker.URL, c.config.Broker.ConsumerName, c.logger)
	if err != nil {
		return err
	}

	if err := client.ProvisionStream(c.config.Broker.StreamName, bindings.Destinations()); err != nil {
		return fmt.Errorf("provision stream: %w", err)
	}

	c.natsClient = client
	return nil
}

func (c *Container) initRedis() {
	c.redisClient = redis.NewClient(&redis.Options{
		Addr:     c.config.Redis.Addr,
		Password: c.config.Redis.Password,
		DB:       c.config.Redis.DB,
	})
}

func (c *Container) initStores() {
	c.outboxStore = outbox.NewPostgresStore(c.pool)
	c.sagaStore = saga.NewPostgresStore(c.pool)
	c.ledger = idempotency.NewPostgresLedger(c.pool)
	c.sagaMachine = saga.NewMachine(c.sagaStore, c.tracer)
	c.sagaMachine.MaxRetries = c.config.Core.MaxTransitionRetries
}

func (c *Container) initPublisher() {
	cfg := publisher.Config{
		PollInterval:    c.config.Core.PollInterval,
		BatchSize:       c.config.Core.BatchSize,
		PublishTimeout:  c.config.Core.PublishTimeout,
		RetentionWindow: c.config.Core.RetentionWindow,
		SweepInterval:   c.config.Core.SweepInterval,
		Source:          c.config.Core.ProducerSource,
	}
	c.pub = publisher.New(c.outboxStore, c.natsClient, c.tracer, c.logger, cfg)
}

// initDispatchers starts one Dispatcher per bound broker destination
// (spec §4.5, §5) and registers the saga-transition handler for whichever
// event type(s) route to that destination.
func (c *Container) initDispatchers() {
	for _, destination := range bindings.Destinations() {
		dispatcherCfg := consumer.DefaultConfig(c.config.Core.DispatcherConsumerTag, destination)
		dispatcherCfg.HandlerTimeout = c.config.Core.HandlerTimeout

		d := consumer.New(c.natsClient, c.ledger, c.tracer, c.logger, dispatcherCfg)
		for eventType, sagaEvent := range eventToSagaEvent {
			binding, ok := bindings.Lookup(eventType)
			if !ok || binding != destination {
				continue
			}
			d.Handle(eventType, c.sagaTransitionHandler(sagaEvent))
		}
		c.dispatchers = append(c.dispatchers, d)
	}
}

// sagaTransitionHandler builds a consumer.Handler that feeds the decoded
// envelope's correlation ID and event ID into the saga machine as the
// given saga.Event.
func (c *Container) sagaTransitionHandler(event saga.Event) consumer.Handler {
	return func(ctx context.Context, env envelope.Envelope) error {
		correlationID := env.CorrelationUUID()
		eventID, err := uuid.Parse(env.ID)
		if err != nil {
			return fmt.Errorf("envelope id %q is not a uuid: %w", env.ID, err)
		}
		return c.sagaMachine.Transition(ctx, correlationID, event, eventID)
	}
}

func (c *Container) initHTTPServer() {
	routerConfig := &adapterhttp.RouterConfig{
		Logger:       c.logger,
		Pool:         c.pool,
		SagaStore:    c.sagaStore,
		Version:      c.config.App.Version,
		BuildTime:    c.config.App.BuildTime,
		Environment:  c.config.App.Environment,
		TraceEnabled: c.config.Trace.Enabled,
	}
	router := adapterhttp.NewRouter(routerConfig)

	serverConfig := &adapterhttp.ServerConfig{
		Host:            c.config.Server.Host,
		Port:            fmt.Sprintf("%d", c.config.Server.Port),
		ReadTimeout:     c.config.Server.ReadTimeout,
		WriteTimeout:    c.config.Server.WriteTimeout,
		IdleTimeout:     c.config.Server.IdleTimeout,
		ShutdownTimeout: c.config.Server.ShutdownTimeout,
		Logger:          c.logger,
	}
	c.httpServer = adapterhttp.NewServer(serverConfig, router)
}

// Config returns the loaded configuration.
func (c *Container) Config() *config.Config { return c.config }

// Logger returns the process-wide logger.
func (c *Container) Logger() *slog.Logger { return c.logger }

// Pool returns the Postgres connection pool.
func (c *Container) Pool() *pgxpool.Pool { return c.pool }

// HTTPServer returns the ops HTTP server.
func (c *Container) HTTPServer() *adapterhttp.Server { return c.httpServer }

// Run starts the outbox publisher, every consumer dispatcher, and the ops
// HTTP server, and blocks on the HTTP server's signal-driven graceful
// shutdown. When it returns, the publisher and dispatcher goroutines have
// already been cancelled.
func (c *Container) Run() error {
	c.logger.Info("starting eventcore",
		slog.String("version", c.config.App.Version),
		slog.String("environment", c.config.App.Environment),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lease := publisher.NewLease(c.redisClient, c.config.Redis.LeaseKey, c.config.Redis.LeaseTTL)
	go c.runPublisherWithLease(ctx, lease, c.config.Redis.LeaseTTL)

	go c.runLedgerSweep(ctx)

	for _, d := range c.dispatchers {
		go d.Run(ctx)
	}

	return c.httpServer.Run()
}

// runLedgerSweep periodically purges processed_event rows older than
// Core.IdempotencyRetention (spec §4.6/§6.4), mirroring the outbox
// publisher's own retention sweeper (internal/publisher's sweepLoop).
// Every dispatcher instance runs this independently — unlike the
// outbox publisher, deleting an already-purged row is a no-op, so no
// leader election is needed here.
func (c *Container) runLedgerSweep(ctx context.Context) {
	ticker := time.NewTicker(c.config.Core.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-c.config.Core.IdempotencyRetention)
			n, err := c.ledger.Purge(ctx, cutoff)
			if err != nil {
				c.logger.Error("idempotency ledger sweep failed", slog.Any("error", err))
				continue
			}
			if n > 0 {
				c.logger.Info("idempotency ledger sweep", slog.Int64("purged", n))
			}
		}
	}
}

// runPublisherWithLease only runs the outbox publisher while this process
// holds the Redis leadership lease, so that exactly one instance of a
// horizontally scaled deployment drains the outbox at a time (spec §9's
// open question on outbox scheduler cardinality, resolved in favor of a
// single active publisher per environment).
func (c *Container) runPublisherWithLease(ctx context.Context, lease *publisher.Lease, ttl time.Duration) {
	ticker := time.NewTicker(ttl / 3)
	defer ticker.Stop()

	var publishing bool
	var publisherCancel context.CancelFunc

	stop := func() {
		if publisherCancel != nil {
			publisherCancel()
			publisherCancel = nil
		}
		publishing = false
	}
	defer stop()

	for {
		held, err := lease.Acquire(ctx)
		if err != nil {
			c.logger.Error("lease acquire failed", slog.Any("error", err))
		}
		if !held && !publishing {
			held, err = lease.Renew(ctx)
			if err != nil {
				c.logger.Error("lease renew failed", slog.Any("error", err))
			}
		}

		switch {
		case held && !publishing:
			c.logger.Info("acquired outbox publisher lease")
			var publisherCtx context.Context
			publisherCtx, publisherCancel = context.WithCancel(ctx)
			publishing = true
			go c.pub.Run(publisherCtx)
		case !held && publishing:
			c.logger.Warn("lost outbox publisher lease")
			stop()
		case held && publishing:
			if _, err := lease.Renew(ctx); err != nil {
				c.logger.Error("lease renew failed", slog.Any("error", err))
			}
		}

		select {
		case <-ctx.Done():
			if publishing {
				_ = lease.Release(context.Background())
			}
			return
		case <-ticker.C:
		}
	}
}

// Shutdown releases infrastructure in reverse dependency order: HTTP
// server, broker connection, database pool, tracer.
func (c *Container) Shutdown(ctx context.Context) error {
	c.logger.Info("shutting down container")

	var errs []error

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	if c.natsClient != nil {
		c.natsClient.Close()
	}

	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}

	if c.pool != nil {
		done := make(chan struct{})
		go func() {
			c.pool.Close()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			c.logger.Warn("database close timed out")
		}
	}

	if c.tracerClose != nil {
		if err := c.tracerClose(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	c.logger.Info("container shutdown complete")
	return nil
}
