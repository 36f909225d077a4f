// Package server exposes the edit webhook over HTTP.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"sheet_notify/internal/metrics"
	"sheet_notify/internal/notifier"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/samber/mo"
)

// SecretHeader carries the shared webhook secret.
const SecretHeader = "X-Webhook-Secret"

const maxBodyBytes = 1 << 20

// EditHandler is the part of the notifier the server drives.
type EditHandler interface {
	HandleEdit(ctx context.Context, ev notifier.EditEvent) notifier.Result
}

// editRequest is the JSON body posted by the spreadsheet forwarder.
// Absent and null old/new values both mean "not provided".
type editRequest struct {
	Sheet    string  `json:"sheet"`
	Row      int     `json:"row"`
	Column   int     `json:"column"`
	OldValue *string `json:"oldValue"`
	Value    *string `json:"value"`
}

func (r editRequest) event() notifier.EditEvent {
	return notifier.EditEvent{
		Sheet:    r.Sheet,
		Row:      r.Row,
		Column:   r.Column,
		OldValue: optional(r.OldValue),
		Value:    optional(r.Value),
	}
}

func optional(v *string) mo.Option[string] {
	if v == nil {
		return mo.None[string]()
	}
	return mo.Some(*v)
}

type editResponse struct {
	Outcome   string `json:"outcome"`
	Reason    string `json:"reason,omitempty"`
	Retryable bool   `json:"retryable"`
}

type Server struct {
	handler EditHandler
	secret  string
}

func New(handler EditHandler, secret string) *Server {
	return &Server{handler: handler, secret: secret}
}

// Router registers every endpoint on a fresh mux.Router.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/hooks/edit", s.HandleEdit).Methods(http.MethodPost)
	router.HandleFunc("/healthz", s.HandleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.PromHandler()).Methods(http.MethodGet)
	router.Handle("/metrics.json", metrics.JSONHandler()).Methods(http.MethodGet)
	return router
}

func (s *Server) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// HandleEdit runs one edit through the notifier. Notification failures are
// reported in the body with status 200; the edit itself already happened.
func (s *Server) HandleEdit(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		log.Warn().Str("remote", r.RemoteAddr).Msg("Webhook secret mismatch")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read webhook body")
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	var req editRequest
	if err := json.Unmarshal(body, &req); err != nil {
		log.Warn().Err(err).Msg("Failed to parse webhook body")
		http.Error(w, "failed to parse body", http.StatusBadRequest)
		return
	}

	res := s.handler.HandleEdit(r.Context(), req.event())

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(editResponse{
		Outcome:   string(res.Outcome),
		Reason:    res.Reason,
		Retryable: res.Retryable(),
	})
}

func (s *Server) authorized(r *http.Request) bool {
	if s.secret == "" {
		return true
	}
	got := r.Header.Get(SecretHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.secret)) == 1
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Webhook server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutdown signal received, stopping webhook server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("Webhook server stopped gracefully")
	return nil
}
