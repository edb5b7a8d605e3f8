package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"log/slog"

	"github.com/craftdeck/api/internal/domain"
	"github.com/craftdeck/api/internal/service/history"
	"github.com/craftdeck/api/internal/service/ingest"
	"github.com/craftdeck/api/internal/service/live"
	"github.com/craftdeck/api/internal/ws"
)

type stubSampleRepo struct {
	mu      sync.Mutex
	upserts int
	rows    []domain.Sample
}

func (s *stubSampleRepo) UpsertSample(ctx context.Context, sample domain.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	return nil
}

func (s *stubSampleRepo) ListSamplesSince(ctx context.Context, since time.Time) ([]domain.Sample, error) {
	return s.rows, nil
}

func (s *stubSampleRepo) DeleteSamplesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type stubStatRepo struct {
	mu          sync.Mutex
	defUpserts  int
	statUpserts int
}

func (s *stubStatRepo) ListStatDefinitionIDs(ctx context.Context) (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}

func (s *stubStatRepo) UpsertStatDefinition(ctx context.Context, def domain.StatDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defUpserts++
	return nil
}

func (s *stubStatRepo) GetPlayerStatValues(ctx context.Context, player string, statIDs []string) (map[string]uint64, error) {
	return map[string]uint64{}, nil
}

func (s *stubStatRepo) UpsertPlayerStat(ctx context.Context, stat domain.PlayerStat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statUpserts++
	return nil
}

type stubAdvancementRepo struct{}

func (s *stubAdvancementRepo) ListCompletedAdvancementIDs(ctx context.Context, player string) (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}

func (s *stubAdvancementRepo) UpsertAdvancementDefinition(ctx context.Context, def domain.AdvancementDefinition) error {
	return nil
}

func (s *stubAdvancementRepo) UpsertPlayerAdvancement(ctx context.Context, unlock domain.PlayerAdvancement) error {
	return nil
}

func (s *stubAdvancementRepo) UpsertPlayerAdvancements(ctx context.Context, unlocks []domain.PlayerAdvancement) error {
	return nil
}

func newTestRouter(t *testing.T, samples *stubSampleRepo, dbHealth func(context.Context) error) *Router {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	liveSvc := live.New(ws.NewHub(), nil, "craftdeck:live:", logger)
	ingestSvc := ingest.New(samples, &stubStatRepo{}, &stubAdvancementRepo{}, liveSvc, logger, "survival", 24*time.Hour)
	historySvc := history.New(samples, logger)
	r := NewRouter(logger, ingestSvc, historySvc, liveSvc, NewMemoryRateLimiter(), "survival", dbHealth)
	t.Cleanup(r.Close)
	return r
}

func TestHeartbeatRejectsInvalidBody(t *testing.T) {
	samples := &stubSampleRepo{}
	r := newTestRouter(t, samples, nil)

	for _, body := range []string{"{not json", "{}", `{"serverName":"survival"}`} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/webhook/heartbeat", strings.NewReader(body))
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, rec.Code)
		}
	}
	samples.mu.Lock()
	defer samples.mu.Unlock()
	if samples.upserts != 0 {
		t.Fatalf("rejected payloads must have no side effects, got %d writes", samples.upserts)
	}
}

func TestHeartbeatAcceptsMetricsPayload(t *testing.T) {
	r := newTestRouter(t, &stubSampleRepo{}, nil)

	body := `{"serverName":"survival","status":"ONLINE","metrics":{"tps":19.9,"playersOnline":3,"bytesSent":123456}}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook/heartbeat", strings.NewReader(body))
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		IngestID string            `json:"ingest_id"`
		Server   string            `json:"server"`
		Sections map[string]string `json:"sections"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.IngestID == "" {
		t.Fatalf("expected an ingest id")
	}
	if resp.Server != "survival" {
		t.Fatalf("expected resolved server name, got %q", resp.Server)
	}
	if resp.Sections["metrics"] != "ok" {
		t.Fatalf("expected metrics section ok, got %v", resp.Sections)
	}
}

func TestHeartbeatMethodNotAllowed(t *testing.T) {
	r := newTestRouter(t, &stubSampleRepo{}, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook/heartbeat", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestSamplesEmitCountersAsStrings(t *testing.T) {
	samples := &stubSampleRepo{rows: []domain.Sample{{
		BucketID:   29_500_000,
		ServerName: "survival",
		Status:     domain.StatusOnline,
		BytesSent:  18_446_744_073_709_551_000,
	}}}
	r := newTestRouter(t, samples, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/samples?window=24h", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"bytes_sent":"18446744073709551000"`) {
		t.Fatalf("expected decimal-string counter in %s", rec.Body.String())
	}
}

func TestSamplesDefaultAndUnknownWindow(t *testing.T) {
	r := newTestRouter(t, &stubSampleRepo{}, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/samples", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected default window to succeed, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"window":"1h"`) {
		t.Fatalf("expected 1h default, got %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/samples?window=7d", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown window, got %d", rec.Code)
	}
}

func TestHealthzReportsDatabaseState(t *testing.T) {
	r := newTestRouter(t, &stubSampleRepo{}, func(ctx context.Context) error { return nil })
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	r = newTestRouter(t, &stubSampleRepo{}, func(ctx context.Context) error { return errors.New("pool exhausted") })
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when database is down, got %d", rec.Code)
	}
}

func TestRateLimitCapsRealtimeSubscriptions(t *testing.T) {
	r := newTestRouter(t, &stubSampleRepo{}, nil)

	var last int
	for i := 0; i < rateLimitRealtime+1; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/sse/live", nil)
		req.RemoteAddr = "198.51.100.7:4242"
		ctx, cancel := context.WithCancel(req.Context())
		cancel()
		r.ServeHTTP(rec, req.WithContext(ctx))
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected request %d to be limited, got %d", rateLimitRealtime+1, last)
	}
}

func TestRateLimitHeaders(t *testing.T) {
	r := newTestRouter(t, &stubSampleRepo{}, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/samples", nil)
	req.RemoteAddr = "198.51.100.8:4242"
	r.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-RateLimit-Limit"); got != "240" {
		t.Fatalf("expected limit header, got %q", got)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "239" {
		t.Fatalf("expected remaining header, got %q", got)
	}
}

func TestMemoryRateLimiterWindowReset(t *testing.T) {
	rl := NewMemoryRateLimiter()
	defer rl.Close()

	for i := 0; i < 3; i++ {
		if d := rl.Allow("ip:test", 3, 50*time.Millisecond); !d.allowed {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if d := rl.Allow("ip:test", 3, 50*time.Millisecond); d.allowed {
		t.Fatalf("fourth request in window must be denied")
	}
	time.Sleep(60 * time.Millisecond)
	if d := rl.Allow("ip:test", 3, 50*time.Millisecond); !d.allowed {
		t.Fatalf("expired window must reset the counter")
	}
}
