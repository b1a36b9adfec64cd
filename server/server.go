// Package server exposes the notice board state and controls over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"noticeboard-notifier/board"
	"noticeboard-notifier/pkg/notice"
	"noticeboard-notifier/scraper"
)

// Board is the fetch controller driven by the endpoints.
type Board interface {
	Status() board.Status
	Refresh(ctx context.Context) (bool, error)
	LoadMore(ctx context.Context) (bool, error)
	Acknowledge()
}

// DetailFetcher loads one notice's detail page.
type DetailFetcher interface {
	FetchDetail(ctx context.Context, link string) (*notice.Detail, error)
}

// Poller runs a full check on demand.
type Poller interface {
	CheckNow(ctx context.Context) error
}

// Server handles HTTP requests.
type Server struct {
	board   Board
	details DetailFetcher
	poller  Poller
	logger  *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Board   Board
	Details DetailFetcher
	Poller  Poller
	Logger  *slog.Logger
}

// New creates a new HTTP server handler.
func New(cfg *Config) *Server {
	return &Server{
		board:   cfg.Board,
		details: cfg.Details,
		poller:  cfg.Poller,
		logger:  cfg.Logger,
	}
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/notices", s.handleNotices)
	mux.HandleFunc("/refresh", s.handleRefresh)
	mux.HandleFunc("/more", s.handleMore)
	mux.HandleFunc("/ack", s.handleAck)
	mux.HandleFunc("/detail", s.handleDetail)
	mux.HandleFunc("/pollz", s.handlePoll)
	return mux
}

// ListenAndServe serves on port until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port string) error {
	// Configure server with timeouts to prevent resource exhaustion
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           s.Handler(),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second, // Detail and refresh requests wait on the board
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", "port", port)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("Shutting down HTTP server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleNotices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, s.board.Status())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	accepted, err := s.board.Refresh(r.Context())
	s.writeFetchResult(w, "refresh", accepted, err)
}

func (s *Server) handleMore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	accepted, err := s.board.LoadMore(r.Context())
	s.writeFetchResult(w, "load_more", accepted, err)
}

func (s *Server) handleAck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.board.Acknowledge()
	s.writeJSON(w, http.StatusOK, s.board.Status())
}

type fetchResponse struct {
	Status board.Status `json:"status"`
	Error  string       `json:"error,omitempty"`
}

// writeFetchResult maps the outcome of Refresh or LoadMore to a response.
// An ignored request is a conflict; a failed fetch is reported as a bad gateway
// with the unchanged board state.
func (s *Server) writeFetchResult(w http.ResponseWriter, op string, accepted bool, err error) {
	resp := fetchResponse{Status: s.board.Status()}
	switch {
	case err != nil:
		s.logger.Warn("Board fetch failed", "op", op, "error", err)
		resp.Error = err.Error()
		s.writeJSON(w, http.StatusBadGateway, resp)
	case !accepted:
		resp.Error = board.ErrNotAccepted.Error()
		s.writeJSON(w, http.StatusConflict, resp)
	default:
		s.writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	link := r.URL.Query().Get("link")
	if link == "" {
		http.Error(w, "Missing link parameter", http.StatusBadRequest)
		return
	}

	detail, err := s.details.FetchDetail(r.Context(), link)
	if err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, scraper.ErrInvalidArticleID):
			status = http.StatusBadRequest
		case scraper.IsInvalidURL(err):
			status = http.StatusInternalServerError
		}
		s.logger.Warn("Detail fetch failed", "link", link, "status_code", status, "error", err)
		http.Error(w, err.Error(), status)
		return
	}

	s.writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.logger.Info("Poll endpoint triggered")

	if err := s.poller.CheckNow(r.Context()); err != nil {
		s.logger.Error("Poll check failed", "error", err)
		http.Error(w, "Check failed", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}
