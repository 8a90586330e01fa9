package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"jobboard.org/internal/auth"
	"jobboard.org/internal/config"
	"jobboard.org/internal/httpapi"
	"jobboard.org/internal/obs"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if cfg.PGDSN == "" {
		log.Fatal("missing DSN: set JOBBOARD_PG_DSN")
	}
	db, err := sql.Open("pgx", cfg.PGDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	key, err := cfg.SigningKey()
	if err != nil {
		log.Fatalf("signing key: %v", err)
	}
	minter, err := auth.NewTokenMinter(key,
		auth.WithIssuer(cfg.Issuer),
		auth.WithAccessTTL(cfg.AccessTokenTTL),
		auth.WithRefreshTTL(cfg.RefreshTokenTTL),
		auth.WithVerifyTTL(cfg.VerifyTokenTTL),
		auth.WithResetTTL(cfg.ResetTokenTTL),
	)
	if err != nil {
		log.Fatalf("token minter: %v", err)
	}

	svc, err := auth.NewService(auth.NewPGStore(db), minter)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 15*time.Second)
	if err := svc.EnsureBuiltins(seedCtx); err != nil {
		log.Fatalf("seed permission catalog: %v", err)
	}
	cancelSeed()

	api := httpapi.New(svc, httpapi.ReadyProbe{DB: db}, version)

	var handler http.Handler = api.Handler()
	handler = httpapi.MaxBodyBytes(handler, cfg.MaxBodyBytes)
	handler = httpapi.RateLimit(handler, cfg.RateLimitBurst, cfg.RateLimitPerSecond)
	handler = httpapi.CORS(handler)
	handler = httpapi.SecurityHeaders(handler)
	handler = httpapi.LoggingJSON(handler)
	handler = httpapi.RequestID(handler)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting jobboard-api %s on %s", version, srv.Addr)

	// graceful shutdown
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
	_ = db.Close()
	log.Println("Stopped")
}
