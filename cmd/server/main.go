package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"obit-feed-enricher/internal/config"
	"obit-feed-enricher/internal/fetcher"
	"obit-feed-enricher/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	v := config.NewViper()
	v.SetDefault("addr", ":8080")
	cfg, err := config.Load(v, os.Getenv("OBITFEED_CONFIG"))
	if err != nil {
		panic(err)
	}

	l, err := logger.New(logger.Config{Level: cfg.LogLevel, JSON: true})
	if err != nil {
		panic(err)
	}
	defer func() { _ = l.Sync() }()

	if err := cfg.Validate(); err != nil {
		l.Error("invalid configuration", logger.Err(err))
		os.Exit(2)
	}

	gin.SetMode(gin.ReleaseMode)
	client := fetcher.NewHTTPClient(cfg.Timeout, config.DefaultDialTimeout, cfg.MaxBodyBytes)
	s := newServer(cfg, l, client)

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.routes(),
		ReadTimeout: 30 * time.Second,
		// enrichment of a long feed with a delay between entries takes a while
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		l.Info("server listening", logger.String("addr", addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			l.Error("server error", logger.Err(err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	l.Info("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	l.Info("bye")
}
