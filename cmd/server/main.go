package main

import (
	"context"
	"net"
	"time"

	"tradeflow/internal/alerts"
	"tradeflow/internal/catalog"
	"tradeflow/internal/config"
	"tradeflow/internal/engine"
	grpchandlers "tradeflow/internal/grpc"
	"tradeflow/internal/identity"
	"tradeflow/internal/logger"
	"tradeflow/internal/pubsub"
	"tradeflow/internal/server"
	"tradeflow/internal/simulator"
	"tradeflow/internal/subscriptions"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/pkg/sys"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const shutdownTimeout = 5 * time.Second

var openStore = subscriptions.Open

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("tradeflow", logger.LevelInfo).Fatal("Failed to load configuration: %v", err)
	}

	log := logger.New("tradeflow", logger.ParseLevel(cfg.LogLevel))
	log.Info("Starting TradeFlow live state engine...")

	// run returns only after its deferred cleanup, so the store is closed
	// before Fatal exits the process.
	if err := run(cfg, log); err != nil {
		log.Fatal("%v", err)
	}
	log.Info("Server stopped")
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	instruments := catalog.Default()
	if cfg.CatalogFile != "" {
		var err error
		instruments, err = catalog.LoadFile(cfg.CatalogFile)
		if err != nil {
			return errors.Wrap(err, "failed to load catalog")
		}
	}
	log.Info("Catalog: %v", instruments.Symbols())

	store, err := openStore(ctx, cfg.StoreDriver, cfg.StoreDSN)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s subscription store", cfg.StoreDriver)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warning("Closing subscription store: %v", err)
		}
	}()

	provider := identity.NewLocalProvider()
	user, err := provider.SignIn(cfg.UserEmail)
	if err != nil {
		return errors.Wrapf(err, "failed to sign in %s", cfg.UserEmail)
	}

	// A failed load starts the session empty rather than refusing to run.
	followed, err := store.Load(ctx, user.ID)
	if err != nil {
		log.Error("Failed to load subscriptions for %s: %v", user.Email, err)
		followed = nil
	}
	log.Info("Signed in %s (%s) following %v", user.Email, user.ID, followed)

	broker := pubsub.NewBroker()
	bus := alerts.NewBus()

	eng := engine.New(user, followed, engine.Options{
		Catalog:      instruments,
		Store:        store,
		Random:       simulator.NewSource(cfg.SeedOrNow()),
		TickInterval: cfg.TickInterval,
		Logger:       log.Named("engine"),
		Broker:       broker,
		Bus:          bus,
	})

	log.Info("Starting services...")

	if err := broker.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start broker")
	}
	defer broker.Stop()

	if err := bus.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start notification bus")
	}
	defer bus.Stop()

	if err := eng.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start engine")
	}
	defer eng.Stop()

	serveErr := make(chan error, 2)

	var grpcServer *grpc.Server
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return errors.Wrapf(err, "failed to listen on %s", cfg.GRPCAddr)
		}

		grpcServer = grpc.NewServer()
		defer grpcServer.Stop()
		grpchandlers.RegisterDashboardServer(grpcServer, grpchandlers.NewDashboardService(eng, broker, bus, provider, log.Named("grpc")))

		healthServer := health.NewServer()
		healthServer.SetServingStatus(grpchandlers.ServiceName, healthpb.HealthCheckResponse_SERVING)
		healthpb.RegisterHealthServer(grpcServer, healthServer)

		reflection.Register(grpcServer)

		go func() {
			log.Info("gRPC server starting on %s", lis.Addr().String())
			if err := grpcServer.Serve(lis); err != nil {
				serveErr <- errors.Wrap(err, "failed to serve gRPC")
			}
		}()
	}

	var httpServer *server.HTTPServer
	if cfg.HTTPAddr != "" {
		lis, err := net.Listen("tcp", cfg.HTTPAddr)
		if err != nil {
			return errors.Wrapf(err, "failed to listen on %s", cfg.HTTPAddr)
		}

		httpServer = server.NewHTTPServer(eng, provider, log.Named("http"), logger.ParseLevel(cfg.LogLevel) == logger.LevelDebug)
		go func() {
			if err := httpServer.Serve(ctx, lis); err != nil {
				serveErr <- errors.Wrap(err, "failed to serve HTTP")
			}
		}()
	}

	log.Info("Server started successfully!")
	log.Info("Tick interval: %v, store: %s", cfg.TickInterval, cfg.StoreDriver)

	var failure error
	select {
	case <-sys.Shutdown():
		log.Info("Shutting down server...")
	case failure = <-serveErr:
		log.Error("Shutting down after serve failure: %v", failure)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warning("HTTP shutdown: %v", err)
		}
	}

	// Closing the outlets ends open streams so GracefulStop can return.
	eng.Stop()
	bus.Stop()
	broker.Stop()

	stats := broker.GetStats()
	log.Info("Quote streams: %d published, %d delivered, %d dropped", stats.Published, stats.Delivered, stats.Dropped)

	if grpcServer != nil {
		grpcServer.GracefulStop()
	}

	return failure
}
