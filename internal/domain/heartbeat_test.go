package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestHeartbeatDecode(t *testing.T) {
	payload := `{
		"serverName": "survival",
		"timestamp": 1741521600000,
		"status": "ONLINE",
		"metrics": {"tps": 19.8, "playersOnline": 5, "freeMemory": 1073741824, "bytesSent": 123456},
		"advancements": {"steve": {"details": {"minecraft:story/root": {"done": true, "title": "Minecraft"}}}},
		"stats": {"steve": {"deaths": 12, "minecraft:mined": {"minecraft:dirt": 42}}}
	}`
	var hb Heartbeat
	if err := json.Unmarshal([]byte(payload), &hb); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if hb.Metrics == nil || hb.Metrics.TPS != 19.8 || hb.Metrics.MemoryFree != 1<<30 {
		t.Fatalf("unexpected metrics %+v", hb.Metrics)
	}
	if !hb.Advancements["steve"].Details["minecraft:story/root"].Done {
		t.Fatalf("expected advancement decoded as done")
	}
}

func TestStatValueDecodesNumberOrObject(t *testing.T) {
	var v StatValue
	if err := json.Unmarshal([]byte(`12`), &v); err != nil {
		t.Fatalf("decode number: %v", err)
	}
	if v.Total == nil || *v.Total != 12 || v.Fields != nil {
		t.Fatalf("expected bare total, got %+v", v)
	}

	if err := json.Unmarshal([]byte(`{"minecraft:dirt": 42}`), &v); err != nil {
		t.Fatalf("decode object: %v", err)
	}
	if v.Total != nil || v.Fields["minecraft:dirt"] != 42 {
		t.Fatalf("expected sub-counters, got %+v", v)
	}

	if err := json.Unmarshal([]byte(`"twelve"`), &v); err == nil {
		t.Fatalf("expected non-numeric value to be rejected")
	}
}

func TestSampleCountersSerializeAsStrings(t *testing.T) {
	sample := Sample{
		BucketID:  29_025_360,
		BytesSent: 18_446_744_073_709_551_000,
	}
	buf, err := json.Marshal(sample)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(buf), `"bytes_sent":"18446744073709551000"`) {
		t.Fatalf("expected string counter in %s", buf)
	}
	if !strings.Contains(string(buf), `"bucket_id":29025360`) {
		t.Fatalf("bucket id stays numeric, got %s", buf)
	}
}

func TestBucketForTime(t *testing.T) {
	at := time.Date(2025, time.March, 9, 12, 5, 37, 0, time.UTC)
	if got, want := BucketForTime(at), at.Unix()/60; got != want {
		t.Fatalf("expected bucket %d, got %d", want, got)
	}
	if BucketForTime(at) != BucketForTime(at.Add(22*time.Second)) {
		t.Fatalf("same minute must map to the same bucket")
	}
	if BucketForTime(at) == BucketForTime(at.Add(time.Minute)) {
		t.Fatalf("next minute must map to a new bucket")
	}
}

func TestHumanizeIdentifier(t *testing.T) {
	cases := map[string]string{
		"minecraft:stone_bricks":                 "stone bricks",
		"minecraft:mined.minecraft:stone_swords": "stone swords",
		"minecraft:story/follow_ender_eye":       "follow ender eye",
		"total":                                  "total",
	}
	for id, want := range cases {
		if got := HumanizeIdentifier(id); got != want {
			t.Fatalf("%q: expected %q, got %q", id, want, got)
		}
	}
}
