package infra

import (
	"context"
	"testing"

	"vault-gateway/middleware/ratelimit/domain"
)

func TestMemoryStatsStore_CountsByRouteAndKey(t *testing.T) {
	s := NewMemoryStatsStore(WithTrackKeys(true))
	ctx := context.Background()

	events := []domain.StatsEvent{
		{Key: "tok-a", Allowed: true, Remaining: 1, Method: "POST", Path: "/vault"},
		{Key: "tok-a", Allowed: true, Remaining: 0, Method: "POST", Path: "/vault"},
		{Key: "tok-a", Allowed: false, Method: "POST", Path: "/vault"},
		{Key: "tok-b", Allowed: true, Remaining: 4, Method: "GET", Path: "/vault/items"},
	}
	for _, ev := range events {
		if err := s.Record(ctx, ev); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	total := s.Total()
	if total.Allowed != 3 || total.Denied != 1 || total.Exhausted != 1 {
		t.Fatalf("unexpected totals %+v", total)
	}

	post := s.ByRoute()["POST /vault"]
	if post.Allowed != 2 || post.Denied != 1 {
		t.Fatalf("unexpected POST counters %+v", post)
	}

	byKey := s.ByKey()
	if _, raw := byKey["tok-a"]; raw {
		t.Fatalf("raw token must not be used as stats key")
	}
	a := byKey[domain.Key("tok-a").Fingerprint()]
	if a.Allowed != 2 || a.Denied != 1 {
		t.Fatalf("unexpected tok-a counters %+v", a)
	}
}

func TestMemoryStatsStore_KeysOffByDefault(t *testing.T) {
	s := NewMemoryStatsStore()
	_ = s.Record(context.Background(), domain.StatsEvent{Key: "k", Allowed: true, Remaining: 1})
	if len(s.ByKey()) != 0 {
		t.Fatalf("expected no per-key counters by default")
	}
}
