package app

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/orgball2608/reddit-research-bot/internal/metrics"
	"github.com/orgball2608/reddit-research-bot/pkg/config"
	"github.com/orgball2608/reddit-research-bot/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
)

func newServer(cfg *config.Config, log logger.Logger, reg *prometheus.Registry) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           newMux(log, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func newMux(log logger.Logger, gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		healthCheckHandler(w, r, log)
	})
	mux.Handle("/metrics", metrics.Handler(gatherer))
	return mux
}

func serve(log logger.Logger, server *http.Server) {
	log.Info(fmt.Sprintf("Starting server on %s", server.Addr))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("Server failed to start", "error", err)
	}
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request, logger logger.Logger) {
	logger.Debug("Health check request received", "Method", r.Method, "URL", r.URL.String())
	w.Header().Set("Content-Type", "text/plain")
	if _, err := w.Write([]byte("ok")); err != nil {
		logger.Error("Failed to write response", "Error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
