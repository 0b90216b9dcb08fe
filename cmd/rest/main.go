package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"kb-assistant-be/internal/bootstrap"
	"kb-assistant-be/internal/config"
	"kb-assistant-be/internal/metrics"
	"kb-assistant-be/internal/server"
	"kb-assistant-be/internal/tracer"
	"kb-assistant-be/pkg/database"
	"kb-assistant-be/pkg/governor"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func main() {
	os.Exit(run())
}

func run() int {
	// 1. Load Configuration
	cfg := config.Load()

	// 2. Tracing and metrics
	shutdownTracer := tracer.InitTracer(cfg.App.OtelEnabled, cfg.App.OtelEndpoint, cfg.App.InstanceID)
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("[WARN] Tracer shutdown: %v", err)
		}
	}()
	metrics.Register()

	// 3. Initialize Database (optional)
	var gormDB *gorm.DB
	if cfg.Database.Connection != "" {
		db, err := database.NewGormDBFromDSN(cfg.Database.Connection, cfg.Governor.OperationCapacity, !cfg.IsProduction())
		if err != nil {
			log.Printf("[ERROR] Unable to connect to GORM DB: %v", err)
			return 1
		}
		gormDB = db
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(ctx, gormDB, cfg)
	if err != nil {
		log.Printf("[ERROR] Bootstrap failed: %v", err)
		return 1
	}
	defer container.Close()

	// 5. Start Background Services
	if err := container.Start(ctx); err != nil {
		log.Printf("[ERROR] %v", err)
		return 1
	}

	// 6. Run Server until a signal arrives
	srv := server.New(cfg, container)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Run)
	g.Go(func() error {
		<-gctx.Done()
		log.Printf("[INFO] Shutting down, draining in-flight requests (deadline %s)", cfg.Governor.ShutdownTimeout)

		drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Governor.ShutdownTimeout)
		defer cancel()

		drainErr := container.Shutdown(drainCtx)
		if err := srv.Shutdown(drainCtx); err != nil {
			log.Printf("[WARN] HTTP shutdown: %v", err)
		}
		return drainErr
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, governor.ErrDrainTimeout) {
			log.Printf("[ERROR] Drain deadline exceeded, abandoning in-flight work")
			return 1
		}
		log.Printf("[ERROR] Server stopped: %v", err)
		return 1
	}

	log.Printf("[INFO] Shutdown complete")
	return 0
}
