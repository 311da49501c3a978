package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"orbitalliance.org/internal/httpapi"
	"orbitalliance.org/internal/obs"
	"orbitalliance.org/internal/rewards"
	"orbitalliance.org/internal/store/memory"
	"orbitalliance.org/internal/store/pg"
	"orbitalliance.org/internal/stream"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	// Local .env, if present. Real deployments set the environment directly.
	_ = godotenv.Load()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	var (
		store rewards.Store
		probe httpapi.ReadyProbe
	)
	if dsn := os.Getenv("ORBIT_PG_DSN"); dsn != "" {
		pgStore, err := pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer pgStore.Close()
		store = pgStore
		probe.DB = pgStore.DB()
	} else {
		log.Printf("ORBIT_PG_DSN not set, using in-memory store")
		store = memory.New()
	}

	svc, err := rewards.NewService(store)
	if err != nil {
		log.Fatalf("init service: %v", err)
	}

	api := httpapi.New(probe, version, svc, stream.New())
	if ttl := envDuration("ORBIT_TOKEN_TTL"); ttl > 0 {
		api.SetTokenTTL(ttl)
	}
	if burst, perSec := envInt("ORBIT_RATE_BURST"), envInt("ORBIT_RATE_PER_SEC"); burst > 0 && perSec > 0 {
		api.SetRateLimit(burst, perSec)
	}

	addr := os.Getenv("ORBIT_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting orbit-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}

func envDuration(key string) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Fatalf("parse %s: %v", key, err)
	}
	return d
}

func envInt(key string) int {
	raw := os.Getenv(key)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Fatalf("parse %s: %v", key, err)
	}
	return n
}
