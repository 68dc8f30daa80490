package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"wildwatch/internal/catalog"
	"wildwatch/internal/config"
	"wildwatch/internal/handler"
	"wildwatch/internal/logger"
	"wildwatch/internal/metrics"
	"wildwatch/internal/repository/sqlite"
	"wildwatch/internal/route"
	"wildwatch/internal/service"
	"wildwatch/internal/service/ai"
	"wildwatch/internal/service/storage"
	"wildwatch/internal/service/websocket"
)

const (
	// shutdownTimeout is how long in-flight requests may finish before they are cancelled.
	shutdownTimeout = 10 * time.Second
	// drainTimeout bounds the wait for cancelled requests to hand their detectors back.
	drainTimeout = 30 * time.Second
)

type App struct {
	config     *config.Config
	logger     *logger.Logger
	db         *sqlite.DB
	pool       *ai.Pool
	tempStore  *storage.TempStore
	hubService *websocket.HubService
	manager    *service.Manager
	sessions   *handler.StreamSessions
	handler    http.Handler
}

func NewApp() (*App, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.NewLogger(cfg.LogDirectory)
	if err != nil {
		return nil, err
	}

	cat, err := catalog.LoadFile(cfg.CatalogPath)
	if err != nil {
		log.Close()
		return nil, err
	}

	pool, err := NewDetectorPool(cfg, cat)
	if err != nil {
		log.Close()
		return nil, err
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		pool.Close()
		log.Close()
		return nil, err
	}
	runRepo := sqlite.NewRunRepository(db)

	tempStore, err := storage.NewTempStore(cfg.TempDirectory, cfg.TempMaxAge, log)
	if err != nil {
		db.Close()
		pool.Close()
		log.Close()
		return nil, err
	}

	hub := websocket.NewHubService(log)
	m := metrics.New(pool.InUse)
	mng := service.NewManager(pool, cat, tempStore, hub, runRepo, m, cfg, log)

	sessions := handler.NewStreamSessions()

	return &App{
		config:     cfg,
		logger:     log,
		db:         db,
		pool:       pool,
		tempStore:  tempStore,
		hubService: hub,
		manager:    mng,
		sessions:   sessions,
		handler:    route.SetupRoutes(mng, hub, sessions, runRepo, m, cfg, log),
	}, nil
}

// NewDetectorPool loads one network per pool slot.
func NewDetectorPool(cfg *config.Config, cat *catalog.Catalog) (*ai.Pool, error) {
	opts := ai.Options{
		InputSize:           cfg.InputSize,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		NMSThreshold:        cfg.NMSThreshold,
	}

	detectors := make([]ai.Detector, 0, cfg.DetectorPoolSize)
	for i := 0; i < cfg.DetectorPoolSize; i++ {
		d, err := ai.NewYOLODetector(cfg.ModelPath, cat, opts)
		if err != nil {
			for _, loaded := range detectors {
				loaded.Close()
			}
			return nil, err
		}
		detectors = append(detectors, d)
	}
	return ai.NewPool(detectors, cfg.AcquireTimeout)
}

// Run serves HTTP until SIGINT or SIGTERM, then drains in-flight requests.
// Requests still running after shutdownTimeout are cancelled, and detectors
// are only closed once every request has released them.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer a.close()

	// Every request context derives from requestCtx, so cancelling it stops
	// long video jobs and stream sessions.
	requestCtx, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.hubService.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		a.tempStore.Run(ctx, a.config.TempSweepInterval)
	}()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return requestCtx },
	}
	// Hijacked stream connections are invisible to Shutdown.
	server.RegisterOnShutdown(a.sessions.CloseAll)

	fmt.Printf("🦒 Wildlife Detection Server\n")
	fmt.Printf("📍 URL: http://localhost:%d\n", a.config.Port)
	fmt.Printf("🤖 AI Model: %s (%d detectors)\n", a.config.ModelPath, a.pool.Size())
	fmt.Printf("🏷️  Labels: %v\n", a.manager.Catalog().Labels())
	fmt.Printf("🗄️  Run history: %s\n", a.config.DatabasePath)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	case sig := <-sigChan:
		a.logger.Info("Received %v, shutting down", sig)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Warning("Requests still running after %v, cancelling them: %v", shutdownTimeout, err)
		}
		shutdownCancel()
	}

	cancelRequests()
	cancel()
	wg.Wait()
	return runErr
}

func (a *App) close() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := a.pool.Shutdown(ctx); err != nil {
		a.logger.Error("Failed to release detectors: %v", err)
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("Failed to close database: %v", err)
	}
	a.logger.Close()
}
