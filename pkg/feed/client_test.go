package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/craftdeck/api/pkg/chart"
)

func TestSamplesDecodeStringCounters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/samples" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("window"); got != "1h" {
			t.Fatalf("unexpected window %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"window": "1h",
			"samples": [{
				"server_name": "survival",
				"recorded_at": "2025-03-09T12:00:00Z",
				"status": "ONLINE",
				"tps": 19.8,
				"players_online": 5,
				"memory_free": "1073741824",
				"memory_total": "4294967296",
				"bytes_sent": "18446744073709551000",
				"bytes_received": "42"
			}]
		}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	samples, err := c.Samples(context.Background(), chart.ResolutionHour)
	if err != nil {
		t.Fatalf("samples: %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("expected one sample, got %d", len(samples))
	}
	s := samples[0]
	if s.BytesSent != 18_446_744_073_709_551_000 {
		t.Fatalf("string counter must decode losslessly, got %d", s.BytesSent)
	}
	if want := uint64(4294967296 - 1073741824); s.MemoryUsed != want {
		t.Fatalf("expected memory used %d, got %d", want, s.MemoryUsed)
	}
	if s.TPS != 19.8 || s.PlayersOnline != 5 {
		t.Fatalf("unexpected sample %+v", s)
	}
}

func TestSamplesSurfaceAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"window must be one of 1m, 1h, 24h"}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = c.Samples(context.Background(), chart.Resolution("7d"))
	var apiErr APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Message == "" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestNewClientNormalizesBase(t *testing.T) {
	c, err := NewClient("dashboard.example.com:4000/")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if c.baseURL != "http://dashboard.example.com:4000" {
		t.Fatalf("unexpected base %q", c.baseURL)
	}
}
