package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DuneV/Marketing-page-mockup-sub000/internal/app"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/config"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/pkg/distlock"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/queue"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/worker"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	log.Println("Starting import staging worker...")

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps, err := app.Open(ctx, cfg, reg)
	if err != nil {
		log.Fatalf("Failed to initialize backends: %v", err)
	}
	defer deps.Close()

	// Messages left in the processing list by a crashed worker go back to
	// the main list before consumers start.
	if rq, ok := deps.Queue.(*queue.RedisQueue); ok {
		n, err := rq.RequeueInFlight(ctx)
		if err != nil {
			log.Printf("Requeue in-flight messages failed: %v", err)
		} else if n > 0 {
			log.Printf("Requeued %d in-flight message(s)", n)
		}
	}

	materializer := worker.NewMaterializer(deps.Imports, deps.Schemas, deps.Store,
		worker.WithLocks(distlock.NewFactory(deps.Redis, deps.DB, cfg.Worker.LockTTL())),
		worker.WithMetrics(deps.Metrics))
	runner := worker.NewRunner(deps.Queue, materializer, cfg.Worker.Concurrency)
	reconciler := worker.NewReconciler(deps.Imports, deps.Queue, deps.Metrics,
		cfg.Worker.ReconcileInterval(), cfg.Worker.StaleAfter())

	metricsServer := &http.Server{
		Addr:              cfg.Worker.MetricsAddr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("Worker metrics on %s", cfg.Worker.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		runner.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		reconciler.Start(ctx)
	}()

	log.Println("Worker running...")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down worker...")
	cancel()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsServer.Shutdown(shutdownCtx)
	log.Println("Worker stopped")
}
