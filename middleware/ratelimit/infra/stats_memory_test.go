package infra

import (
	"context"
	"testing"

	"linkwithmentor/middleware/ratelimit/domain"
)

func TestMemoryStatsStore_GroupsByOpAndOutcome(t *testing.T) {
	s := NewMemoryStatsStore(WithTrackKeys(true))
	ctx := context.Background()

	events := []domain.StatsEvent{
		{Key: "uid:u1", Allowed: true, Op: "CreateUser", Transport: "rpc", Outcome: "ok"},
		{Key: "uid:u1", Allowed: false, Op: "CreateUser", Transport: "rpc", Outcome: "resource_exhausted"},
		{Key: "user:7", Allowed: true, Op: "ListSessions", Transport: "stream", Outcome: "internal"},
	}
	for _, ev := range events {
		if err := s.Record(ctx, ev); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	if got := s.Total(); got.Allowed != 2 || got.Denied != 1 {
		t.Fatalf("unexpected totals: %+v", got)
	}
	if got := s.ByOp()["rpc CreateUser"]; got.Allowed != 1 || got.Denied != 1 {
		t.Fatalf("unexpected rpc CreateUser counters: %+v", got)
	}
	if got := s.ByOutcome()["resource_exhausted"]; got != 1 {
		t.Fatalf("expected one resource_exhausted outcome, got %d", got)
	}
	if got := s.ByKey()["uid:u1"]; got.Allowed != 1 || got.Denied != 1 {
		t.Fatalf("unexpected per-key counters: %+v", got)
	}
}

func TestMemoryStatsStore_KeysNotTrackedByDefault(t *testing.T) {
	s := NewMemoryStatsStore()
	_ = s.Record(context.Background(), domain.StatsEvent{Key: "k", Allowed: true})
	if len(s.ByKey()) != 0 {
		t.Fatalf("expected no per-key tracking by default")
	}
}
