package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"pricefetcher/internal/domain"
)

// Runner is the trigger surface's view of the run coordinator.
type Runner interface {
	Run(ctx context.Context) (domain.RunSummary, []domain.PriceResult, error)
	Last() []domain.PriceResult
}

// Server exposes the run trigger and the prices read endpoint.
type Server struct {
	runner Runner
	srv    *http.Server
}

func New(addr string, runner Runner) *Server {
	s := &Server{runner: runner}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/run", s.handleRun)
	r.Get("/prices", s.handlePrices)
	r.Get("/healthz", s.handleHealth)

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start blocks until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.srv.Addr).Msg("http server listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// handleRun triggers a synchronous resolution run and reports its summary.
// Failing to obtain the token list is the only error path.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	sum, _, err := s.runner.Run(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("run trigger failed")
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// handlePrices serves the last completed result set. A fresh run is forced
// when nothing has completed yet or ?refresh=1 is passed.
func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	results := s.runner.Last()
	if results == nil || r.URL.Query().Get("refresh") == "1" {
		var err error
		_, results, err = s.runner.Run(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("forced run failed")
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("response write failed")
	}
}
