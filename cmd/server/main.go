package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DuneV/Marketing-page-mockup-sub000/internal/api"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/app"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/config"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/service/imports"
)

func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v\n"+
			"  Hint: Run 'lsof -i :%d' to find the blocking process", port, addr, err, port)
	}
	ln.Close()
	return nil
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	seedPath := flag.String("seed-schemas", "", "optional YAML file of schemas to publish at startup")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	host, port := cfg.Server.GetHost(), cfg.Server.Port
	if err := checkPortAvailable(host, port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
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

	if *seedPath != "" {
		seed, err := app.LoadSeed(*seedPath)
		if err != nil {
			log.Fatalf("Failed to load schema seed: %v", err)
		}
		n, err := app.Seed(ctx, deps.Schemas, seed)
		if err != nil {
			log.Fatalf("Failed to seed schemas: %v", err)
		}
		log.Printf("Seeded %d schema version(s) from %s", n, *seedPath)
	}

	svc := imports.NewService(deps.Imports, deps.Schemas, deps.Store, deps.Queue,
		imports.WithMetrics(deps.Metrics),
		imports.WithPreviewLimit(cfg.Imports.PreviewLimit))

	server := api.NewServer(cfg.Server, api.Deps{
		Imports: svc,
		Schemas: deps.Schemas,
		Health:  api.NewHealthChecker(deps.DB, deps.Redis),
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	go func() {
		log.Printf("Import API listening on %s", server.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-done

	log.Println("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
