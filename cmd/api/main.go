package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"formscore.org/internal/auth"
	"formscore.org/internal/httpapi"
	"formscore.org/internal/migrate"
	"formscore.org/internal/obs"
	"formscore.org/internal/store/pg"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	var (
		addr       = flag.String("addr", envOr("FORMSCORE_ADDR", ":8080"), "listen address")
		dsn        = flag.String("dsn", os.Getenv("FORMSCORE_PG_DSN"), "PostgreSQL DSN")
		secret     = flag.String("secret", os.Getenv("FORMSCORE_AUTH_SECRET"), "HMAC signing secret")
		accessTTL  = flag.Duration("access-ttl", 24*time.Hour, "access token lifetime")
		refreshTTL = flag.Duration("refresh-ttl", 7*24*time.Hour, "refresh token lifetime")
		runMigrate = flag.Bool("migrate", false, "apply pending migrations before serving")
	)
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	obs.SetLogger(logger)
	defer obs.Sync()

	if *dsn == "" {
		logger.Fatal("missing DSN: provide via -dsn or FORMSCORE_PG_DSN")
	}
	if *secret == "" {
		logger.Fatal("missing signing secret: provide via -secret or FORMSCORE_AUTH_SECRET")
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	store, err := pg.Open(*dsn)
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}
	defer store.Close()

	if *runMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := migrate.UpDB(ctx, store.DB()); err != nil {
			cancel()
			logger.Fatal("apply migrations", zap.Error(err))
		}
		cancel()
		logger.Info("migrations applied")
	}

	svc, err := auth.NewService(store, []byte(*secret),
		auth.WithAccessTTL(*accessTTL),
		auth.WithRefreshTTL(*refreshTTL),
		auth.WithLogger(logger),
	)
	if err != nil {
		logger.Fatal("build auth service", zap.Error(err))
	}

	api := httpapi.New(svc, httpapi.ReadyProbe{DB: store.DB()}, version)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting formscore-auth",
		zap.String("version", version),
		zap.String("addr", srv.Addr),
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	logger.Info("stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
