package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/craftdeck/api/internal/domain"
	"github.com/craftdeck/api/internal/repository"
)

// ErrEmptyHeartbeat rejects payloads carrying none of the three sections.
var ErrEmptyHeartbeat = errors.New("heartbeat carries no metrics, advancements, or stats")

// Publisher receives every accepted metrics payload for the live feed.
type Publisher interface {
	Publish(sample domain.LiveSample)
}

// Service is the single inbound gateway for game-server heartbeats. Each
// present section is dispatched independently; a failure in one never stops
// the others.
type Service struct {
	samples       repository.SampleRepository
	stats         repository.StatRepository
	advancements  repository.AdvancementRepository
	live          Publisher
	logger        *slog.Logger
	defaultServer string
	retention     time.Duration

	now     func() time.Time
	pruning sync.WaitGroup
}

// New constructs the ingestion service.
func New(samples repository.SampleRepository, stats repository.StatRepository, advancements repository.AdvancementRepository, live Publisher, logger *slog.Logger, defaultServer string, retention time.Duration) *Service {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	if logger != nil {
		logger = logger.With("component", "ingest")
	}
	return &Service{
		samples:       samples,
		stats:         stats,
		advancements:  advancements,
		live:          live,
		logger:        logger,
		defaultServer: defaultServer,
		retention:     retention,
		now:           time.Now,
	}
}

// Result reports what a heartbeat produced. SectionErrors carries per-section
// failures that were isolated and logged; they do not fail the request.
type Result struct {
	IngestID      string
	ServerName    string
	SampleWritten bool
	SectionErrors map[string]error
}

// Handle validates and dispatches one heartbeat. It returns an error only
// for invalid payloads; per-section processing failures are captured in the
// Result instead.
func (s *Service) Handle(ctx context.Context, hb domain.Heartbeat) (Result, error) {
	if hb.Metrics == nil && len(hb.Advancements) == 0 && len(hb.Stats) == 0 {
		return Result{}, ErrEmptyHeartbeat
	}
	server := strings.TrimSpace(hb.ServerName)
	if server == "" {
		server = s.defaultServer
	}
	now := s.now().UTC()
	at := now
	if hb.Timestamp > 0 {
		at = time.UnixMilli(hb.Timestamp).UTC()
	}
	status := strings.TrimSpace(hb.Status)
	if status == "" {
		status = domain.StatusOnline
	}

	res := Result{
		IngestID:      uuid.NewString(),
		ServerName:    server,
		SectionErrors: make(map[string]error),
	}
	if s.logger != nil {
		s.logger.Info("heartbeat received",
			"ingest_id", res.IngestID,
			"server", server,
			"status", status,
			"metrics", hb.Metrics != nil,
			"advancement_players", len(hb.Advancements),
			"stat_players", len(hb.Stats),
		)
	}

	if hb.Metrics != nil {
		if err := s.runSection(ctx, "metrics", res.IngestID, func(ctx context.Context) error {
			return s.ingestMetrics(ctx, server, status, at, now, *hb.Metrics, &res)
		}); err != nil {
			res.SectionErrors["metrics"] = err
		}
	}
	if len(hb.Advancements) > 0 {
		if err := s.runSection(ctx, "advancements", res.IngestID, func(ctx context.Context) error {
			return s.ingestAdvancements(ctx, at, hb.Advancements)
		}); err != nil {
			res.SectionErrors["advancements"] = err
		}
	}
	if len(hb.Stats) > 0 {
		if err := s.runSection(ctx, "stats", res.IngestID, func(ctx context.Context) error {
			return s.ingestStats(ctx, at, hb.Stats)
		}); err != nil {
			res.SectionErrors["stats"] = err
		}
	}
	return res, nil
}

// runSection isolates one section's processing: errors and panics are
// captured and logged, never propagated to the other sections.
func (s *Service) runSection(ctx context.Context, name, ingestID string, fn func(context.Context) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%s section panicked: %v", name, rec)
		}
		if err != nil && s.logger != nil {
			s.logger.Error("heartbeat section failed", "section", name, "ingest_id", ingestID, "error", err)
		}
	}()
	return fn(ctx)
}
