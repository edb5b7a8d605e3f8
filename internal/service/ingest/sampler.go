package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/craftdeck/api/internal/domain"
)

const pruneTimeout = 10 * time.Second

// ingestMetrics publishes every accepted metrics payload to the live feed,
// then throttles durable writes to one sample per minute. A shutdown status
// forces an immediate write so the last known good state is captured instead
// of waiting for the next minute boundary.
func (s *Service) ingestMetrics(ctx context.Context, server, status string, at, now time.Time, m domain.MetricsSection, res *Result) error {
	if s.live != nil {
		s.live.Publish(domain.LiveSampleFromMetrics(server, status, at, m))
	}

	shutdown := status == domain.StatusShutdown
	if now.Second() != 0 && !shutdown {
		return nil
	}

	// The bucket comes from the wall clock, never from payload time, so
	// repeated or out-of-order heartbeats within a minute converge to one row.
	sample := domain.SampleFromMetrics(server, status, now, m)
	if shutdown {
		sample = sample.Zeroed()
	}
	if err := s.samples.UpsertSample(ctx, sample); err != nil {
		return fmt.Errorf("write sample: %w", err)
	}
	res.SampleWritten = true
	s.pruneAsync(now)
	return nil
}

// pruneAsync sweeps samples past the retention window without blocking the
// request. Failures are logged and swallowed.
func (s *Service) pruneAsync(now time.Time) {
	cutoff := now.Add(-s.retention)
	s.pruning.Add(1)
	go func() {
		defer s.pruning.Done()
		ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
		defer cancel()
		dropped, err := s.samples.DeleteSamplesBefore(ctx, cutoff)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("sample retention prune failed", "error", err)
			}
			return
		}
		if dropped > 0 && s.logger != nil {
			s.logger.Debug("pruned expired samples", "count", dropped, "cutoff", cutoff)
		}
	}()
}
