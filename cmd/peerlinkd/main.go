// Command peerlinkd runs the rendezvous service: a WebSocket endpoint
// where endpoints register their presence and relay session-negotiation
// envelopes to each other, plus a liveness endpoint.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/peerlink/config"
	"github.com/opd-ai/peerlink/relay"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	_ = godotenv.Load(".env")

	cfg := config.MustLoad()
	setupLogger(cfg.Env)

	server := relay.NewServer()
	server.SetReadLimit(cfg.HTTP.ReadLimit)
	httpServer := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: server.Handler(),
	}

	go func() {
		logrus.WithFields(logrus.Fields{
			"address": cfg.HTTP.Address,
			"env":     cfg.Env,
		}).Info("Rendezvous service listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("HTTP server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logrus.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Shutdown did not complete cleanly")
	}
}

func setupLogger(env string) {
	switch env {
	case envProd:
		logrus.SetFormatter(&logrus.JSONFormatter{})
		logrus.SetLevel(logrus.InfoLevel)
	case envDev:
		logrus.SetFormatter(&logrus.JSONFormatter{})
		logrus.SetLevel(logrus.DebugLevel)
	case envLocal:
		fallthrough
	default:
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		logrus.SetLevel(logrus.DebugLevel)
	}
}
