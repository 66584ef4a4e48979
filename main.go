package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shelter-media/internal/database"
	"shelter-media/internal/dbfs"
	"shelter-media/internal/document"
	"shelter-media/internal/handlers"
	"shelter-media/internal/imageops"
	"shelter-media/internal/logging"
	"shelter-media/internal/media"
	"shelter-media/internal/mediatypes"
	"shelter-media/internal/memory"
	"shelter-media/internal/metrics"
	"shelter-media/internal/middleware"
	"shelter-media/internal/startup"
)

const (
	shutdownTimeout   = 30 * time.Second
	collectorInterval = time.Minute
)

func main() {
	startTime := time.Now()

	memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	ctx := context.Background()

	dbStart := time.Now()
	db, err := database.New(ctx, config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error("Failed to close database: %v", err)
		}
	}()
	startup.LogDatabaseInit(time.Since(dbStart))

	blobStart := time.Now()
	blobs, err := dbfs.Open(ctx, config.BlobDir, dbfs.WithObserver(metrics.NewBlobObserver()))
	if err != nil {
		startup.LogFatal("Failed to open blob store: %v", err)
	}
	defer func() {
		if err := blobs.Close(); err != nil {
			logging.Error("Failed to close blob store: %v", err)
		}
	}()
	startup.LogBlobStoreInit(config.BlobDir, time.Since(blobStart))

	var vipsErr error
	if config.UseVips {
		vipsErr = imageops.InitVips()
		defer imageops.ShutdownVips()
	}
	startup.LogImagingInit(config.UseVips && vipsErr == nil, vipsErr)
	startup.LogToolsInit(config)

	memMonitor := memory.NewMonitor(memory.DefaultConfig())
	memMonitor.Start()

	svc := media.NewService(media.Config{
		DB:       db,
		Blobs:    blobs,
		Types:    mediatypes.NewTable(config.MimeTypes),
		Policy:   config.Policy,
		PDF:      document.NewCompactor(config.PDFCommand, config.ToolTimeout),
		Renderer: document.NewRenderer(config.HTMLCommand, config.ToolTimeout),
		Memory:   memMonitor,
	})

	metrics.InitializeMetrics()
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
	collector := metrics.NewCollector(db, config.DatabasePath, collectorInterval)
	collector.Start()

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = newMetricsServer(config.MetricsPort)
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	router := newRouter(handlers.New(svc, db))
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           middleware.Logger(loggingConfig)(router),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		handleShutdown(srv, metricsSrv, collector, memMonitor)
	}()

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
	<-done
}

// newRouter registers the API and installs the metrics middleware so that
// requests are labeled by route template.
func newRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()
	h.Routes(r)
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	return r
}

func newMetricsServer(port string) *http.Server {
	m := http.NewServeMux()
	m.Handle("/metrics", promhttp.Handler())
	return &http.Server{
		Addr:              ":" + port,
		Handler:           m,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
}

func handleShutdown(srv, metricsSrv *http.Server, collector *metrics.Collector, mem *memory.Monitor) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Stopping metrics collector")
	collector.Stop()
	startup.LogShutdownStepComplete("Metrics collector stopped")

	startup.LogShutdownStep("Stopping memory monitor")
	mem.Stop()
	startup.LogShutdownStepComplete("Memory monitor stopped")

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownComplete()
}
