// Package server exposes the small HTTP surface of the application: a
// liveness probe and the temp-token endpoint the free-trial backend
// fetches its short-lived credentials from.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Addr string
	// TrialToken is handed out at /api/temp_token. Empty means the trial
	// service is not configured and the endpoint answers 404.
	TrialToken string
}

type Server struct {
	config Config
}

func New(config Config) *Server {
	return &Server{config: config}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/ping", s.pingHandler)
	mux.HandleFunc("/api/temp_token", s.tempTokenHandler)
	return mux
}

// ListenAndServe runs the server until the context is cancelled, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.config.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "could not shut down http server")
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "http server failed")
	}
}

func (s *Server) pingHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "I'm still alive.",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) tempTokenHandler(w http.ResponseWriter, r *http.Request) {
	if s.config.TrialToken == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Token not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": s.config.TrialToken})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Msg("could not write response")
	}
}
