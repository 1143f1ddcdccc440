package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sentra/internal/config"
	"sentra/internal/logging"
	"sentra/internal/screening"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

type statusResponse struct {
	Running          bool   `json:"running"`
	PID              int    `json:"pid"`
	FingerprintCount int    `json:"fingerprint_count"`
	Tolerance        int    `json:"tolerance"`
	SnapshotPath     string `json:"snapshot_path"`
	DiscordEnabled   bool   `json:"discord_enabled"`
}

type registryEntryResponse struct {
	ID          string    `json:"id"`
	PHash       string    `json:"phash"`
	DisplayName string    `json:"display_name,omitempty"`
	AddedAt     time.Time `json:"added_at,omitzero"`
}

type registryResponse struct {
	Count   int                     `json:"count"`
	Entries []registryEntryResponse `json:"entries"`
}

type detectionResponse struct {
	EntryID    string    `json:"entry_id"`
	Distance   int       `json:"distance"`
	Poster     string    `json:"poster,omitempty"`
	Channel    string    `json:"channel,omitempty"`
	Guild      string    `json:"guild,omitempty"`
	MessageID  string    `json:"message_id,omitempty"`
	DetectedAt time.Time `json:"detected_at"`
}

type historyResponse struct {
	Detections []detectionResponse `json:"detections"`
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealthz)
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/registry", srv.handleRegistry)
	mux.HandleFunc("/api/history", srv.handleHistory)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status()
	s.writeJSON(w, http.StatusOK, statusResponse{
		Running:          status.Running,
		PID:              status.PID,
		FingerprintCount: status.FingerprintCount,
		Tolerance:        status.Tolerance,
		SnapshotPath:     status.SnapshotPath,
		DiscordEnabled:   status.DiscordEnabled,
	})
}

func (s *apiServer) handleRegistry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	entries := s.daemon.screener.List()
	out := make([]registryEntryResponse, 0, len(entries))
	for _, entry := range entries {
		resp := registryEntryResponse{
			ID:      entry.ID,
			PHash:   entry.Fingerprint.Hex(),
			AddedAt: entry.AddedAt,
		}
		if name := screening.DisplayName(entry.ID); name != entry.ID {
			resp.DisplayName = name
		}
		out = append(out, resp)
	}
	s.writeJSON(w, http.StatusOK, registryResponse{Count: len(out), Entries: out})
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.daemon.history == nil {
		s.writeJSON(w, http.StatusOK, historyResponse{})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	detections, err := s.daemon.history.Recent(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]detectionResponse, 0, len(detections))
	for _, d := range detections {
		out = append(out, detectionResponse{
			EntryID:    d.EntryID,
			Distance:   d.Distance,
			Poster:     d.Poster,
			Channel:    d.Channel,
			Guild:      d.Guild,
			MessageID:  d.MessageID,
			DetectedAt: d.DetectedAt,
		})
	}
	s.writeJSON(w, http.StatusOK, historyResponse{Detections: out})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
