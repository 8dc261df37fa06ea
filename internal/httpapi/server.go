// Package httpapi is the HTTP façade: event intake, report downloads,
// bulk report output, and the live-dashboard JSON reads, over a stdlib
// net/http.ServeMux.
package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Server owns the listener and routes requests to Handlers.
type Server struct {
	cfg      Config
	handlers *Handlers
	server   *http.Server
	logger   *slog.Logger
}

// Config is the subset of process configuration the server needs.
type Config struct {
	Addr      string
	OutputDir string
}

// New builds a Server wired to deps and registers every route.
func New(cfg Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	h := NewHandlers(deps, cfg.OutputDir, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.HandleHealth)
	mux.HandleFunc("/api/events/", h.HandleIntake)
	mux.HandleFunc("/api/get_cash_report", h.reportHandler(kindCash))
	mux.HandleFunc("/api/get_position_report", h.reportHandler(kindPosition))
	mux.HandleFunc("/api/get_bond_report", h.reportHandler(kindBond))
	mux.HandleFunc("/api/get_currency_report", h.reportHandler(kindCurrency))
	mux.HandleFunc("/api/get_exclusion_report", h.reportHandler(kindExclusion))
	mux.HandleFunc("/api/output_reports", h.HandleOutputReports)
	mux.HandleFunc("/api/fx", h.HandleFX)
	mux.HandleFunc("/api/bonds", h.HandleBonds)
	mux.HandleFunc("/api/desks", h.HandleDesks)
	mux.HandleFunc("/api/books", h.HandleBooks)
	mux.HandleFunc("/api/bond_records", h.HandleBondRecords)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      requestID(logRequests(mux, logger)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{cfg: cfg, handlers: h, server: srv, logger: logger.With("component", "httpapi")}
}

// Start blocks serving until the listener is closed.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("http server stopping")
	return s.server.Shutdown(ctx)
}
