package history

import (
	"context"
	"errors"
	"time"

	"log/slog"

	"github.com/craftdeck/api/internal/domain"
	"github.com/craftdeck/api/internal/repository"
)

// ErrUnknownWindow rejects unsupported resolution tokens.
var ErrUnknownWindow = errors.New("unknown window token")

// windowDurations maps resolution tokens to how far back the fetch reaches.
var windowDurations = map[string]time.Duration{
	"1m":  time.Minute,
	"1h":  time.Hour,
	"24h": 24 * time.Hour,
}

// Service serves historical sample ranges for chart reconstruction.
type Service struct {
	repo   repository.SampleRepository
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a history service.
func New(repo repository.SampleRepository, logger *slog.Logger) Service {
	if logger != nil {
		logger = logger.With("component", "history")
	}
	return Service{repo: repo, logger: logger, now: time.Now}
}

// Window returns the ordered samples covering the token's time window.
func (s Service) Window(ctx context.Context, token string) ([]domain.Sample, error) {
	dur, ok := windowDurations[token]
	if !ok {
		return nil, ErrUnknownWindow
	}
	return s.repo.ListSamplesSince(ctx, s.now().UTC().Add(-dur))
}
