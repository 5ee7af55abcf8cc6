// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jeranaias/drchat/internal/config"
	"github.com/jeranaias/drchat/internal/research"
	"github.com/jeranaias/drchat/internal/sse"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// MaxRequestBodySize bounds POST bodies (1MB).
	MaxRequestBodySize = 1 << 20

	// MaxUpstreamResponseSize bounds the upstream reply to a submission.
	MaxUpstreamResponseSize = 1 << 20

	// ServiceName is reported by GET /.
	ServiceName = "drchat-relay"
)

// Messages returned to clients.
const (
	msgProcessFailed = "Failed to process query"
	msgNoRequestID   = "No request ID provided"
)

// ============================================================================
// SERVER STATS
// ============================================================================

// Stats holds relay counters.
type Stats struct {
	StartTime      time.Time
	Queries        atomic.Int64
	QueryFailures  atomic.Int64
	StreamsOpened  atomic.Int64
	StreamsActive  atomic.Int64
	StreamFailures atomic.Int64
	LinesRelayed   atomic.Int64
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	UptimeSeconds  int64  `json:"uptime_seconds"`
	Upstream       string `json:"upstream"`
	Queries        int64  `json:"queries"`
	QueryFailures  int64  `json:"query_failures"`
	StreamsOpened  int64  `json:"streams_opened"`
	StreamsActive  int64  `json:"streams_active"`
	StreamFailures int64  `json:"stream_failures"`
	LinesRelayed   int64  `json:"lines_relayed"`
}

// ============================================================================
// SERVER
// ============================================================================

// Server relays research queries to the upstream service.
type Server struct {
	cfg      config.ServerConfig
	upstream atomic.Pointer[string]

	submitClient *http.Client
	streamClient *http.Client

	logger  *slog.Logger
	limiter *RateLimiter
	stats   *Stats
	version string

	mu         sync.Mutex
	httpServer *http.Server
	closed     bool
}

// New creates a relay for cfg. A nil logger discards logs.
func New(cfg config.ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		cfg: cfg,
		submitClient: &http.Client{
			Timeout: cfg.UpstreamTimeout(),
		},
		// Streams stay open for the whole research run.
		streamClient: &http.Client{},
		logger:       logger,
		stats:        &Stats{StartTime: time.Now()},
		version:      "dev",
	}
	s.SetUpstream(cfg.UpstreamURL)

	if cfg.RateLimit > 0 {
		s.limiter = NewRateLimiter(cfg.RateLimit, cfg.RateBurst)
	}
	return s
}

// WithVersion sets the version reported by GET /.
func (s *Server) WithVersion(v string) *Server {
	if v != "" {
		s.version = v
	}
	return s
}

// WithHTTPClient replaces both upstream clients. Used by tests.
func (s *Server) WithHTTPClient(hc *http.Client) *Server {
	s.submitClient = hc
	s.streamClient = hc
	return s
}

// SetUpstream swaps the upstream base URL. Safe for concurrent use.
func (s *Server) SetUpstream(upstream string) {
	upstream = strings.TrimRight(upstream, "/")
	s.upstream.Store(&upstream)
}

// Upstream returns the current upstream base URL.
func (s *Server) Upstream() string {
	return *s.upstream.Load()
}

// UpdateConfig applies the reloadable parts of cfg.
func (s *Server) UpdateConfig(cfg config.ServerConfig) {
	if old := s.Upstream(); old != strings.TrimRight(cfg.UpstreamURL, "/") {
		s.SetUpstream(cfg.UpstreamURL)
		s.logger.Info("upstream changed", "from", old, "to", s.Upstream())
	}
}

// Stats returns the relay counters.
func (s *Server) Stats() *Stats {
	return s.stats
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/query", s.handleSubmit)
	mux.HandleFunc("GET /api/query", s.handleStream)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /{$}", s.handleIndex)

	cors := DefaultCORSConfig()
	if len(s.cfg.CORSOrigins) > 0 {
		cors.AllowedOrigins = s.cfg.CORSOrigins
	}

	return Chain(
		RecoveryMiddleware(s.logger),
		CORSMiddleware(cors),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(s.logger),
		RateLimitMiddleware(s.limiter, s.logger),
	)(mux)
}

// Start listens on the configured address and blocks until the server
// stops. It returns nil after a graceful Shutdown.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		// No WriteTimeout: streams are long-lived.
	}
	s.httpServer = srv
	s.mu.Unlock()

	s.logger.Info("SERVER_START",
		"addr", s.cfg.Addr(),
		"upstream", s.Upstream(),
		"version", s.version,
		"debug", s.cfg.Debug,
	)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr(), err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for handlers to finish or
// ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	s.logger.Info("SERVER_STOP", "active_streams", s.stats.StreamsActive.Load())
	return srv.Shutdown(ctx)
}

// ============================================================================
// SUBMIT
// ============================================================================

// submitBody accepts omitted budget fields so defaults can be applied.
type submitBody struct {
	Q             string `json:"q"`
	Budget        *int   `json:"budget"`
	MaxBadAttempt *int   `json:"maxBadAttempt"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	s.stats.Queries.Add(1)

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	var body submitBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.stats.QueryFailures.Add(1)
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	req := research.QueryRequest{
		Q:             research.NormalizeQuestion(body.Q),
		Budget:        s.cfg.DefaultBudget,
		MaxBadAttempt: s.cfg.DefaultMaxBadAttempt,
	}
	if body.Budget != nil {
		req.Budget = *body.Budget
	}
	if body.MaxBadAttempt != nil {
		req.MaxBadAttempt = *body.MaxBadAttempt
	}
	if err := req.Validate(); err != nil {
		s.stats.QueryFailures.Add(1)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	status, data, err := s.forwardQuery(r.Context(), req)
	if err != nil {
		s.stats.QueryFailures.Add(1)
		s.logger.Error("RELAY_QUERY_ERROR", "upstream", s.Upstream(), "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if status != http.StatusOK {
		s.stats.QueryFailures.Add(1)
		s.logger.Warn("RELAY_QUERY_REJECTED", "status", status)
		writeJSON(w, status, map[string]string{
			"error":   msgProcessFailed,
			"details": string(data),
		})
		return
	}

	if !json.Valid(data) {
		s.stats.QueryFailures.Add(1)
		writeError(w, http.StatusInternalServerError, "upstream returned invalid JSON")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// forwardQuery posts req to {upstream}/query and returns the raw reply.
func (s *Server) forwardQuery(ctx context.Context, req research.QueryRequest) (int, []byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal query: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Upstream()+"/query", bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.submitClient.Do(httpReq)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxUpstreamResponseSize+1))
	if err != nil {
		return 0, nil, fmt.Errorf("read upstream response: %w", err)
	}
	if len(data) > MaxUpstreamResponseSize {
		return 0, nil, fmt.Errorf("upstream response exceeds %d bytes", MaxUpstreamResponseSize)
	}
	return resp.StatusCode, data, nil
}

// ============================================================================
// STREAM
// ============================================================================

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	requestID := r.URL.Query().Get("request_id")
	if requestID == "" {
		writeError(w, http.StatusBadRequest, msgNoRequestID)
		return
	}

	sw, err := sse.NewWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.stats.StreamsOpened.Add(1)
	s.stats.StreamsActive.Add(1)
	defer s.stats.StreamsActive.Add(-1)

	log := s.logger.With("request_id", requestID)
	log.Debug("RELAY_STREAM_OPEN", "upstream", s.Upstream())

	err = s.relayStream(r.Context(), requestID, sw)
	switch {
	case err == nil:
		log.Debug("RELAY_STREAM_DONE")
	case r.Context().Err() != nil:
		// Client went away; nobody is left to notify.
		log.Debug("RELAY_STREAM_CLIENT_GONE")
	default:
		s.stats.StreamFailures.Add(1)
		log.Warn("RELAY_STREAM_ERROR", "error", err)
		s.writeStreamFailure(sw, err)
	}
}

// relayStream copies upstream lines to sw until the upstream ends.
func (s *Server) relayStream(ctx context.Context, requestID string, sw *sse.Writer) error {
	target := s.Upstream() + "/stream/" + url.PathEscape(requestID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.streamClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upstream stream returned HTTP %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), sse.MaxEventSize)
	for scanner.Scan() {
		line := sse.Normalize(scanner.Text())
		if line == "" {
			continue
		}
		if err := sw.WriteRaw(line); err != nil {
			return fmt.Errorf("write to client: %w", err)
		}
		s.stats.LinesRelayed.Add(1)
	}
	return scanner.Err()
}

// writeStreamFailure emits an error event and a close event.
func (s *Server) writeStreamFailure(sw *sse.Writer, cause error) {
	payload, err := research.EncodeEvent(&research.ErrorEvent{Message: cause.Error()})
	if err != nil {
		return
	}
	if err := sw.WriteData(payload); err != nil {
		return
	}
	_ = sw.WriteEvent(sse.Event{Type: sse.EventClose, Data: []byte("{}")})
}

// ============================================================================
// INFO ENDPOINTS
// ============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st := s.stats
	writeJSON(w, http.StatusOK, StatsResponse{
		UptimeSeconds:  int64(time.Since(st.StartTime).Seconds()),
		Upstream:       s.Upstream(),
		Queries:        st.Queries.Load(),
		QueryFailures:  st.QueryFailures.Load(),
		StreamsOpened:  st.StreamsOpened.Load(),
		StreamsActive:  st.StreamsActive.Load(),
		StreamFailures: st.StreamFailures.Load(),
		LinesRelayed:   st.LinesRelayed.Load(),
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    ServiceName,
		"version": s.version,
		"routes": []string{
			"POST /api/query",
			"GET /api/query?request_id=<id>",
			"GET /health",
			"GET /stats",
		},
	})
}

// ============================================================================
// HELPERS
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
