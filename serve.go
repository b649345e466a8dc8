package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Zhima-Mochi/ecomarket/internal/application/catalog"
	apporder "github.com/Zhima-Mochi/ecomarket/internal/application/order"
	appwebhook "github.com/Zhima-Mochi/ecomarket/internal/application/webhook"
	"github.com/Zhima-Mochi/ecomarket/internal/config"
	"github.com/Zhima-Mochi/ecomarket/internal/domain/inventory"
	"github.com/Zhima-Mochi/ecomarket/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/ecomarket/internal/domain/outbox"
	"github.com/Zhima-Mochi/ecomarket/internal/domain/payment"
	"github.com/Zhima-Mochi/ecomarket/internal/domain/product"
	"github.com/Zhima-Mochi/ecomarket/internal/domain/webhook"
	"github.com/Zhima-Mochi/ecomarket/internal/infrastructure/auth"
	"github.com/Zhima-Mochi/ecomarket/internal/infrastructure/id"
	"github.com/Zhima-Mochi/ecomarket/internal/infrastructure/kafka"
	"github.com/Zhima-Mochi/ecomarket/internal/infrastructure/memory"
	infraobs "github.com/Zhima-Mochi/ecomarket/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/ecomarket/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/ecomarket/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/ecomarket/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/ecomarket/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/ecomarket/internal/infrastructure/postgres"
	"github.com/Zhima-Mochi/ecomarket/internal/infrastructure/rediscache"
	"github.com/Zhima-Mochi/ecomarket/internal/infrastructure/stripe"
	"github.com/Zhima-Mochi/ecomarket/internal/observability"
	"github.com/Zhima-Mochi/ecomarket/internal/pkg/logging"
	httppresentation "github.com/Zhima-Mochi/ecomarket/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/ecomarket/internal/presentation/worker"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

type storage struct {
	products product.Repository
	ledger   inventory.Ledger
	orders   order.Repository
	inbox    webhook.Inbox
	ready    func(context.Context) error
	close    func()
}

func serve(ctx context.Context, cfg *config.Config) error {
	zl, err := logging.NewLogger(cfg.ServiceName, cfg.Env, logging.WithLevel(cfg.LogLevel), logging.WithFile(cfg.LogFile))
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = zl.Sync() }()
	zap.ReplaceGlobals(zl)

	baseLogger := zaplogger.New(zl)
	systemLogger := zaplogger.New(logging.WithTrace(zl, logging.SystemTraceID, logging.SystemSpanID))

	shutdownTracing, err := oteltrace.InitProvider(ctx, cfg.ServiceName, cfg.Env, cfg.OTel.Endpoint)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			systemLogger.Warn("tracer_shutdown_error", observability.Err(err))
		}
	}()

	registry := prometrics.New("")
	tel := infraobs.NewWithRegistry(oteltrace.New(cfg.ServiceName), baseLogger, registry)

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.close()

	gateway, sandbox, err := newGateway(cfg, tel)
	if err != nil {
		return err
	}

	bus := outbox.NewBus(tel)
	wrap := func(worker string) func(domoutbox.Handler) domoutbox.Handler {
		return func(h domoutbox.Handler) domoutbox.Handler {
			return workerpresentation.Handler(worker, baseLogger, tel, h)
		}
	}

	products := store.products
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer func() { _ = client.Close() }()
		if err := client.Ping(ctx).Err(); err != nil {
			systemLogger.Warn("redis_unreachable", observability.F("addr", cfg.Redis.Addr), observability.Err(err))
		}
		cache := rediscache.NewProductCache(store.products, client, cfg.Redis.CacheTTL, tel)
		cache.Subscribe(bus, wrap("product_cache"))
		products = cache
	}

	if len(cfg.Kafka.Brokers) > 0 {
		relay, err := kafka.NewRelay(cfg.Kafka.Brokers, cfg.Kafka.Topic, tel)
		if err != nil {
			return err
		}
		defer func() { _ = relay.Close() }()
		relay.Subscribe(bus, wrap("kafka_relay"))
	}

	bus.Start(ctx)

	ids := id.NewUUIDGenerator()
	manager := apporder.NewManager(products, store.ledger, store.orders, gateway, bus, ids, tel,
		apporder.WithReservationTTL(cfg.Reservation.TTL),
	)
	receiver := appwebhook.NewReceiver(gateway, store.inbox, manager, tel,
		appwebhook.WithMaxAttempts(cfg.Webhook.MaxAttempts),
	)
	authenticator, err := auth.NewAuthenticator(cfg.Auth.JWTSecret, cfg.ServiceName)
	if err != nil {
		return err
	}

	deps := httppresentation.Deps{
		Orders:   manager,
		Catalog:  catalog.NewService(products, ids, tel),
		Webhooks: receiver,
		Auth:     authenticator,
		Logger:   baseLogger,
		Tel:      tel,
		Ready:    store.ready,
	}
	if sandbox != nil {
		deps.Sandbox = sandbox
	}
	handler := httppresentation.NewHandler(deps)

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	go apporder.NewSweeper(manager, cfg.Reservation.SweepInterval, tel).Run(workerCtx)
	go appwebhook.NewRetrier(receiver, cfg.Webhook.RetryInterval, cfg.Webhook.Retention, tel).Run(workerCtx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", registry.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		systemLogger.Info("http_server_start",
			observability.F("addr", server.Addr),
			observability.F("storage", cfg.Storage),
			observability.F("payment_mode", cfg.Payment.Mode),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			systemLogger.Error("http_server_error", observability.Err(err))
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error", observability.Err(err))
	} else {
		systemLogger.Info("http_server_stopped")
	}
	stopWorkers()
	bus.Stop(shutdownCtx)
	return nil
}

func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	if cfg.Storage == config.StoragePostgres {
		pool, err := postgres.NewPool(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		inv := postgres.NewInventoryRepository(pool)
		return &storage{
			products: inv,
			ledger:   inv,
			orders:   postgres.NewOrderRepository(pool),
			inbox:    postgres.NewInboxRepository(pool),
			ready:    pool.Ping,
			close:    pool.Close,
		}, nil
	}

	inv := memory.NewInventoryRepository()
	return &storage{
		products: inv,
		ledger:   inv,
		orders:   memory.NewOrderRepository(),
		inbox:    memory.NewInboxRepository(),
		close:    func() {},
	}, nil
}

// newGateway returns the payment gateway for the configured mode. The sandbox is also returned so its
// completion endpoint can be mounted; it is nil in stripe mode.
func newGateway(cfg *config.Config, tel observability.Observability) (payment.Gateway, *stripe.Sandbox, error) {
	if cfg.Payment.Mode == config.PaymentModeSandbox {
		sb := stripe.NewSandbox(cfg.Payment.WebhookSecret, cfg.Payment.SuccessURL, cfg.Payment.Currency)
		return sb, sb, nil
	}
	gw, err := stripe.NewGateway(stripe.Config{
		SecretKey:     cfg.Payment.SecretKey,
		WebhookSecret: cfg.Payment.WebhookSecret,
		SuccessURL:    cfg.Payment.SuccessURL,
		CancelURL:     cfg.Payment.CancelURL,
		Currency:      cfg.Payment.Currency,
		Timeout:       cfg.Payment.Timeout,
		APIURL:        cfg.Payment.APIURL,
	}, tel)
	if err != nil {
		return nil, nil, err
	}
	return gw, nil, nil
}
