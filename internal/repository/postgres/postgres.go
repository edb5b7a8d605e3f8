package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/craftdeck/api/internal/domain"
	"github.com/craftdeck/api/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.SampleRepository      = (*Repository)(nil)
	_ repository.StatRepository        = (*Repository)(nil)
	_ repository.AdvancementRepository = (*Repository)(nil)
)

// UpsertSample writes one metrics row keyed by minute bucket. Concurrent
// writers to the same bucket converge, last write wins.
func (r *Repository) UpsertSample(ctx context.Context, sample domain.Sample) error {
	if sample.ServerName == "" {
		return fmt.Errorf("sample server name required")
	}
	const query = `INSERT INTO samples (
		bucket_id,
		server_name,
		recorded_at,
		status,
		tps,
		tick_millis,
		players_online,
		players_max,
		memory_free,
		memory_total,
		memory_max,
		chunks_loaded,
		entities,
		cpu_percent,
		bytes_sent,
		bytes_received,
		disk_used,
		started_at_ms,
		next_restart
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19
	) ON CONFLICT (bucket_id) DO UPDATE SET
		server_name = EXCLUDED.server_name,
		recorded_at = EXCLUDED.recorded_at,
		status = EXCLUDED.status,
		tps = EXCLUDED.tps,
		tick_millis = EXCLUDED.tick_millis,
		players_online = EXCLUDED.players_online,
		players_max = EXCLUDED.players_max,
		memory_free = EXCLUDED.memory_free,
		memory_total = EXCLUDED.memory_total,
		memory_max = EXCLUDED.memory_max,
		chunks_loaded = EXCLUDED.chunks_loaded,
		entities = EXCLUDED.entities,
		cpu_percent = EXCLUDED.cpu_percent,
		bytes_sent = EXCLUDED.bytes_sent,
		bytes_received = EXCLUDED.bytes_received,
		disk_used = EXCLUDED.disk_used,
		started_at_ms = EXCLUDED.started_at_ms,
		next_restart = EXCLUDED.next_restart`
	_, err := r.pool.Exec(ctx, query,
		sample.BucketID,
		sample.ServerName,
		sample.RecordedAt.UTC(),
		emptyToNil(sample.Status),
		sample.TPS,
		sample.TickMillis,
		sample.PlayersOnline,
		sample.PlayersMax,
		int64(sample.MemoryFree),
		int64(sample.MemoryTotal),
		int64(sample.MemoryMax),
		sample.ChunksLoaded,
		sample.Entities,
		sample.CPUPercent,
		int64(sample.BytesSent),
		int64(sample.BytesReceived),
		int64(sample.DiskUsed),
		sample.StartedAtMS,
		nilTimePtr(sample.NextRestart),
	)
	if err != nil {
		return fmt.Errorf("upsert sample bucket %d: %w", sample.BucketID, err)
	}
	return nil
}

// ListSamplesSince returns samples recorded at or after the given instant,
// oldest first.
func (r *Repository) ListSamplesSince(ctx context.Context, since time.Time) ([]domain.Sample, error) {
	const query = `SELECT
		bucket_id,
		server_name,
		recorded_at,
		COALESCE(status, ''),
		tps,
		tick_millis,
		players_online,
		players_max,
		memory_free,
		memory_total,
		memory_max,
		chunks_loaded,
		entities,
		cpu_percent,
		bytes_sent,
		bytes_received,
		disk_used,
		started_at_ms,
		next_restart
	FROM samples
	WHERE recorded_at >= $1
	ORDER BY bucket_id ASC`
	rows, err := r.pool.Query(ctx, query, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("list samples: %w", err)
	}
	defer rows.Close()

	samples := make([]domain.Sample, 0)
	for rows.Next() {
		var (
			s             domain.Sample
			memoryFree    int64
			memoryTotal   int64
			memoryMax     int64
			bytesSent     int64
			bytesReceived int64
			diskUsed      int64
			nextRestart   *time.Time
		)
		if err := rows.Scan(
			&s.BucketID,
			&s.ServerName,
			&s.RecordedAt,
			&s.Status,
			&s.TPS,
			&s.TickMillis,
			&s.PlayersOnline,
			&s.PlayersMax,
			&memoryFree,
			&memoryTotal,
			&memoryMax,
			&s.ChunksLoaded,
			&s.Entities,
			&s.CPUPercent,
			&bytesSent,
			&bytesReceived,
			&diskUsed,
			&s.StartedAtMS,
			&nextRestart,
		); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		s.MemoryFree = uint64(memoryFree)
		s.MemoryTotal = uint64(memoryTotal)
		s.MemoryMax = uint64(memoryMax)
		s.BytesSent = uint64(bytesSent)
		s.BytesReceived = uint64(bytesReceived)
		s.DiskUsed = uint64(diskUsed)
		s.RecordedAt = s.RecordedAt.UTC()
		if nextRestart != nil {
			utc := nextRestart.UTC()
			s.NextRestart = &utc
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// DeleteSamplesBefore removes rows past the retention window and reports how
// many were dropped.
func (r *Repository) DeleteSamplesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM samples WHERE recorded_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired samples: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListStatDefinitionIDs returns the identifiers of every known statistic
// definition as a set.
func (r *Repository) ListStatDefinitionIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM stat_definitions`)
	if err != nil {
		return nil, fmt.Errorf("list stat definition ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan stat definition id: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// UpsertStatDefinition registers a definition if absent. Definitions are
// immutable, so conflicts are ignored and concurrent creators are tolerated.
func (r *Repository) UpsertStatDefinition(ctx context.Context, def domain.StatDefinition) error {
	if strings.TrimSpace(def.ID) == "" {
		return fmt.Errorf("stat definition id required")
	}
	const query = `INSERT INTO stat_definitions (id, category, stat_name, display_name)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO NOTHING`
	if _, err := r.pool.Exec(ctx, query, def.ID, def.Category, def.StatName, def.DisplayName); err != nil {
		return fmt.Errorf("upsert stat definition %s: %w", def.ID, err)
	}
	return nil
}

// GetPlayerStatValues bulk-loads current values for the given statistic ids.
// Missing rows are simply absent from the result.
func (r *Repository) GetPlayerStatValues(ctx context.Context, player string, statIDs []string) (map[string]uint64, error) {
	values := make(map[string]uint64, len(statIDs))
	if len(statIDs) == 0 {
		return values, nil
	}
	const query = `SELECT stat_id, value FROM player_stats
		WHERE player = $1 AND stat_id = ANY($2)`
	rows, err := r.pool.Query(ctx, query, player, statIDs)
	if err != nil {
		return nil, fmt.Errorf("load stat values for %s: %w", player, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    string
			value int64
		)
		if err := rows.Scan(&id, &value); err != nil {
			return nil, fmt.Errorf("scan stat value: %w", err)
		}
		values[id] = uint64(value)
	}
	return values, rows.Err()
}

// UpsertPlayerStat writes a counter's current value for a player.
func (r *Repository) UpsertPlayerStat(ctx context.Context, stat domain.PlayerStat) error {
	const query = `INSERT INTO player_stats (player, stat_id, value, updated_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (player, stat_id) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at`
	updated := stat.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	if _, err := r.pool.Exec(ctx, query, stat.Player, stat.StatID, int64(stat.Value), updated.UTC()); err != nil {
		return fmt.Errorf("upsert stat %s for %s: %w", stat.StatID, stat.Player, err)
	}
	return nil
}

// ListCompletedAdvancementIDs returns the set of advancement ids already
// marked done for the player, in one read.
func (r *Repository) ListCompletedAdvancementIDs(ctx context.Context, player string) (map[string]struct{}, error) {
	const query = `SELECT advancement_id FROM player_advancements
		WHERE player = $1 AND done`
	rows, err := r.pool.Query(ctx, query, player)
	if err != nil {
		return nil, fmt.Errorf("list completed advancements for %s: %w", player, err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan advancement id: %w", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// UpsertAdvancementDefinition registers a definition if absent.
func (r *Repository) UpsertAdvancementDefinition(ctx context.Context, def domain.AdvancementDefinition) error {
	if strings.TrimSpace(def.ID) == "" {
		return fmt.Errorf("advancement definition id required")
	}
	const query = `INSERT INTO advancement_definitions (id, title, description, category, icon)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO NOTHING`
	if _, err := r.pool.Exec(ctx, query,
		def.ID,
		def.Title,
		nilIfEmpty(def.Description),
		emptyToNil(def.Category),
		nilIfEmpty(def.Icon),
	); err != nil {
		return fmt.Errorf("upsert advancement definition %s: %w", def.ID, err)
	}
	return nil
}

// UpsertPlayerAdvancement records an unlock. The done flag never reverts.
func (r *Repository) UpsertPlayerAdvancement(ctx context.Context, unlock domain.PlayerAdvancement) error {
	const query = `INSERT INTO player_advancements (player, advancement_id, done, updated_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (player, advancement_id) DO UPDATE SET
			done = player_advancements.done OR EXCLUDED.done,
			updated_at = EXCLUDED.updated_at`
	updated := unlock.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	if _, err := r.pool.Exec(ctx, query, unlock.Player, unlock.AdvancementID, unlock.Done, updated.UTC()); err != nil {
		return fmt.Errorf("upsert advancement %s for %s: %w", unlock.AdvancementID, unlock.Player, err)
	}
	return nil
}

// UpsertPlayerAdvancements writes a batch of unlocks in one round trip.
func (r *Repository) UpsertPlayerAdvancements(ctx context.Context, unlocks []domain.PlayerAdvancement) error {
	if len(unlocks) == 0 {
		return nil
	}
	const query = `INSERT INTO player_advancements (player, advancement_id, done, updated_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (player, advancement_id) DO UPDATE SET
			done = player_advancements.done OR EXCLUDED.done,
			updated_at = EXCLUDED.updated_at`
	batch := &pgx.Batch{}
	for _, unlock := range unlocks {
		updated := unlock.UpdatedAt
		if updated.IsZero() {
			updated = time.Now().UTC()
		}
		batch.Queue(query, unlock.Player, unlock.AdvancementID, unlock.Done, updated.UTC())
	}
	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range unlocks {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch upsert advancements: %w", err)
		}
	}
	return nil
}

func emptyToNil(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func nilIfEmpty(v string) *string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return &v
}

func nilTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
