package daemon

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"verdant/internal/api"
	"verdant/internal/config"
	"verdant/internal/identification"
	"verdant/internal/logging"
	"verdant/internal/services"
)

// maxImageBytes bounds identify uploads; provider APIs reject anything close
// to this size anyway.
const maxImageBytes = 20 << 20

type apiServer struct {
	bind   string
	token  string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		token:  strings.TrimSpace(cfg.Paths.APIToken),
		logger: logger,
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/identify", authMiddleware(srv.token, srv.handleIdentify))
	mux.HandleFunc("/api/v1/status", authMiddleware(srv.token, srv.handleStatus))
	mux.HandleFunc("/healthz", srv.handleHealthz)
	if d.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(d.gatherer, promhttp.HandlerOpts{}))
	} else {
		mux.Handle("/metrics", promhttp.Handler())
	}

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
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
			s.log().Error("api server error", slog.String("error", err.Error()))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", slog.String("address", listener.Addr().String()))
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

// addr reports the bound listen address, empty before start.
func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleIdentify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	content, opts, ok := s.readIdentifyRequest(w, r)
	if !ok {
		return
	}

	requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
	if requestID == "" {
		requestID = uuid.NewString()
	}
	ctx := services.WithRequestID(r.Context(), requestID)

	result, err := s.daemon.Identify(ctx, content, opts)
	if err != nil {
		s.writeError(w, api.StatusForError(err), err.Error())
		return
	}

	w.Header().Set("X-Request-ID", requestID)
	s.writeJSON(w, http.StatusOK, api.FromAggregatedResult(result, requestID))
}

// readIdentifyRequest extracts the image bytes and call options from either a
// JSON body with base64 content or a raw image upload with query options. A
// false return means the response has already been written.
func (s *apiServer) readIdentifyRequest(w http.ResponseWriter, r *http.Request) ([]byte, identification.Options, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		var req api.IdentifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, statusForBodyError(err), "invalid request body: "+err.Error())
			return nil, identification.Options{}, false
		}
		content, err := base64.StdEncoding.DecodeString(strings.TrimSpace(req.Image))
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "image must be base64 encoded")
			return nil, identification.Options{}, false
		}
		return content, req.Options(), true
	}

	content, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, statusForBodyError(err), "read request body: "+err.Error())
		return nil, identification.Options{}, false
	}
	return content, optionsFromQuery(r.URL.Query()), true
}

// optionsFromQuery maps query parameters onto call options for raw uploads.
func optionsFromQuery(query url.Values) identification.Options {
	var opts identification.Options
	for _, value := range query["organ"] {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			opts.Organs = append(opts.Organs, trimmed)
		}
	}
	opts.Language = strings.TrimSpace(query.Get("language"))
	health := query.Get("health")
	opts.IncludeHealth = health == "1" || strings.EqualFold(health, "true")
	return opts
}

func statusForBodyError(err error) int {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String("component", "api-server"))
	}
	return logging.NewNop()
}
