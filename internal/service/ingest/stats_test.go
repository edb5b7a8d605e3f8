package ingest

import (
	"context"
	"testing"

	"github.com/craftdeck/api/internal/domain"
)

func floatPtr(v float64) *float64 { return &v }

func statsHeartbeat(categories map[string]domain.StatValue) domain.Heartbeat {
	return domain.Heartbeat{
		ServerName: "survival",
		Stats: map[string]map[string]domain.StatValue{
			"steve": categories,
		},
	}
}

func TestStatsFlattenTotalsAndFields(t *testing.T) {
	stats := newStubStatRepo()
	svc := newTestService(newStubSampleRepo(), stats, newStubAdvancementRepo(), &stubPublisher{})

	if _, err := svc.Handle(context.Background(), statsHeartbeat(map[string]domain.StatValue{
		"deaths": {Total: floatPtr(12)},
		"minecraft:mined": {Fields: map[string]float64{
			"minecraft:stone_bricks": 420,
			"minecraft:dirt":         1337,
		}},
	})); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(stats.statUpserts) != 3 {
		t.Fatalf("expected three counters, got %d", len(stats.statUpserts))
	}
	if got := stats.values["steve"]["deaths:total"]; got != 12 {
		t.Fatalf("expected bare total under the reserved name, got %d", got)
	}
	if got := stats.values["steve"]["minecraft:mined:minecraft:stone_bricks"]; got != 420 {
		t.Fatalf("unexpected sub-counter value %d", got)
	}
}

func TestStatsSkipUnchangedValues(t *testing.T) {
	stats := newStubStatRepo()
	stats.known["deaths:total"] = struct{}{}
	stats.values["steve"] = map[string]uint64{"deaths:total": 12}
	svc := newTestService(newStubSampleRepo(), stats, newStubAdvancementRepo(), &stubPublisher{})

	if _, err := svc.Handle(context.Background(), statsHeartbeat(map[string]domain.StatValue{
		"deaths": {Total: floatPtr(12)},
	})); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(stats.statUpserts) != 0 {
		t.Fatalf("equal value must not be rewritten, got %d writes", len(stats.statUpserts))
	}

	if _, err := svc.Handle(context.Background(), statsHeartbeat(map[string]domain.StatValue{
		"deaths": {Total: floatPtr(13)},
	})); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(stats.statUpserts) != 1 || stats.statUpserts[0].Value != 13 {
		t.Fatalf("changed value must be written, got %+v", stats.statUpserts)
	}
}

func TestStatsRegisterDefinitionsLazily(t *testing.T) {
	stats := newStubStatRepo()
	stats.known["deaths:total"] = struct{}{}
	svc := newTestService(newStubSampleRepo(), stats, newStubAdvancementRepo(), &stubPublisher{})

	if _, err := svc.Handle(context.Background(), statsHeartbeat(map[string]domain.StatValue{
		"deaths": {Total: floatPtr(1)},
		"minecraft:mined": {Fields: map[string]float64{
			"minecraft:stone_bricks": 3,
		}},
	})); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(stats.defUpserts) != 1 {
		t.Fatalf("expected one new definition, got %d", len(stats.defUpserts))
	}
	def := stats.defUpserts[0]
	if def.ID != "minecraft:mined:minecraft:stone_bricks" {
		t.Fatalf("unexpected definition id %q", def.ID)
	}
	if def.DisplayName != "stone bricks" {
		t.Fatalf("expected humanized display name, got %q", def.DisplayName)
	}
}

func TestStatsCoerceBogusCounters(t *testing.T) {
	stats := newStubStatRepo()
	svc := newTestService(newStubSampleRepo(), stats, newStubAdvancementRepo(), &stubPublisher{})

	if _, err := svc.Handle(context.Background(), statsHeartbeat(map[string]domain.StatValue{
		"deaths": {Total: floatPtr(-5)},
		"jumps":  {Total: floatPtr(17.9)},
	})); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := stats.values["steve"]["deaths:total"]; got != 0 {
		t.Fatalf("negative counter must clamp to zero, got %d", got)
	}
	if got := stats.values["steve"]["jumps:total"]; got != 17 {
		t.Fatalf("fractional counter must truncate, got %d", got)
	}
}
