package main

import (
	"fmt"
	"net/http"
	"time"

	"negotiation-eval-go/internal/config"
	"negotiation-eval-go/internal/logger"
	"negotiation-eval-go/internal/pipeline"
)

func main() {
	log := logger.New()
	log.WithField("service", "negotiation-eval-api").Info("starting service")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	p, closeStore, err := pipeline.FromConfig(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to build pipeline")
	}
	defer closeStore()

	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      newServer(p, log).routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	log.WithField("addr", addr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server terminated")
	}
}
