package httpx

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/craftdeck/api/internal/domain"
	"github.com/craftdeck/api/internal/service/history"
	"github.com/craftdeck/api/internal/service/ingest"
	"github.com/craftdeck/api/internal/service/live"
	"github.com/craftdeck/api/internal/ws"
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux           *http.ServeMux
	logger        *slog.Logger
	ingest        *ingest.Service
	history       history.Service
	live          *live.Broadcaster
	upgrader      websocket.Upgrader
	limiter       RateLimiter
	defaultServer string
	dbHealth      func(context.Context) error

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
	heartbeatSections  *prometheus.CounterVec
}

const (
	rateWindowDefault  = time.Minute
	rateWindowRealtime = 30 * time.Second
	rateLimitHeartbeat = 600
	rateLimitRead      = 240
	rateLimitRealtime  = 30
	healthCheckTimeout = 2 * time.Second
	sseHeartbeatEvery  = 15 * time.Second
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, ingestSvc *ingest.Service, historySvc history.Service, liveSvc *live.Broadcaster, limiter RateLimiter, defaultServer string, dbHealth func(context.Context) error) *Router {
	r := &Router{
		mux:     http.NewServeMux(),
		logger:  logger,
		ingest:  ingestSvc,
		history: historySvc,
		live:    liveSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:       limiter,
		defaultServer: strings.TrimSpace(defaultServer),
		dbHealth:      dbHealth,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit(r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/webhook/heartbeat", r.audit(r.withRateLimit("heartbeat", rateLimitHeartbeat, rateWindowDefault, rateLimitKeyIP, r.handleHeartbeat)))
	r.mux.HandleFunc("/samples", r.audit(r.withRateLimit("samples", rateLimitRead, rateWindowDefault, rateLimitKeyIP, r.handleSamples)))
	r.mux.HandleFunc("/ws/live", r.audit(r.withRateLimit("ws_live", rateLimitRealtime, rateWindowRealtime, rateLimitKeyIP, r.handleLiveWS)))
	r.mux.HandleFunc("/sse/live", r.audit(r.withRateLimit("sse_live", rateLimitRealtime, rateWindowRealtime, rateLimitKeyIP, r.handleLiveSSE)))
}

// handleHeartbeat is the unauthenticated inbound webhook. An empty payload
// is rejected before any side effect; per-section failures still yield 200.
func (r *Router) handleHeartbeat(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var hb domain.Heartbeat
	if err := json.NewDecoder(req.Body).Decode(&hb); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	res, err := r.ingest.Handle(req.Context(), hb)
	if err != nil {
		if errors.Is(err, ingest.ErrEmptyHeartbeat) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "heartbeat processing failed")
		return
	}

	sections := make(map[string]string)
	if hb.Metrics != nil {
		sections["metrics"] = "ok"
	}
	if len(hb.Advancements) > 0 {
		sections["advancements"] = "ok"
	}
	if len(hb.Stats) > 0 {
		sections["stats"] = "ok"
	}
	for name := range res.SectionErrors {
		sections[name] = "failed"
	}
	for name, outcome := range sections {
		r.recordHeartbeatSection(name, outcome)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ingest_id":      res.IngestID,
		"server":         res.ServerName,
		"sample_written": res.SampleWritten,
		"sections":       sections,
	})
}

// handleSamples serves the historical range fetch used by chart
// reconstruction. 64-bit counters are emitted as decimal strings.
func (r *Router) handleSamples(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	window := strings.TrimSpace(req.URL.Query().Get("window"))
	if window == "" {
		window = "1h"
	}
	samples, err := r.history.Window(req.Context(), window)
	if err != nil {
		if errors.Is(err, history.ErrUnknownWindow) {
			writeError(w, http.StatusBadRequest, "window must be one of 1m, 1h, 24h")
			return
		}
		r.logger.Error("sample window fetch failed", "window", window, "error", err)
		writeError(w, http.StatusInternalServerError, "could not load samples")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"window":  window,
		"samples": samples,
	})
}

func (r *Router) liveServer(req *http.Request) string {
	server := strings.TrimSpace(req.URL.Query().Get("server"))
	if server == "" {
		server = r.defaultServer
	}
	return server
}

func (r *Router) handleLiveWS(w http.ResponseWriter, req *http.Request) {
	server := r.liveServer(req)
	if server == "" {
		writeError(w, http.StatusBadRequest, "server query parameter required")
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	r.live.Hub().Register(server, client)
	go func() {
		defer func() {
			r.live.Hub().Unregister(server, client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (r *Router) handleLiveSSE(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	server := r.liveServer(req)
	if server == "" {
		writeError(w, http.StatusBadRequest, "server query parameter required")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	client := ws.NewSSEClient(w, flusher, r.logger)
	r.live.Hub().Register(server, client)
	defer func() {
		r.live.Hub().Unregister(server, client)
		client.Close()
	}()

	ticker := time.NewTicker(sseHeartbeatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-req.Context().Done():
			return
		case <-ticker.C:
			if err := client.Heartbeat(); err != nil {
				return
			}
		}
	}
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

func (r *Router) audit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		r.recordRequestMetrics(req.Method, req.URL.Path, status, duration)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	if limit <= 0 {
		return
	}
	remaining := limit - decision.count
	if remaining < 0 {
		remaining = 0
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !decision.windowEnd.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.windowEnd.Unix(), 10))
	}
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
