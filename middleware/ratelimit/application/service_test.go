package application

import (
	"testing"
	"time"

	"vault-gateway/middleware/ratelimit/domain"
)

type fakeStore struct {
	dec   domain.Decision
	limit int
	calls int
	seen  time.Time
}

func (s *fakeStore) CheckAndConsume(_ domain.Key, now time.Time) domain.Decision {
	s.calls++
	s.seen = now
	return s.dec
}

func (s *fakeStore) Limit() int { return s.limit }

func TestService_Decide_AllowsWhenNoStore(t *testing.T) {
	svc := Service{}
	dec := svc.Decide("k")
	if !dec.Allowed {
		t.Fatalf("expected allowed")
	}
	if dec.RetryAfter != 0 {
		t.Fatalf("expected RetryAfter=0 when allowed, got %s", dec.RetryAfter)
	}
}

func TestService_Decide_DelegatesWithClock(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	store := &fakeStore{dec: domain.Decision{Allowed: true, Limit: 5, Remaining: 4}}
	svc := Service{Store: store, Now: func() time.Time { return at }}

	dec := svc.Decide("k")
	if !dec.Allowed || dec.Remaining != 4 {
		t.Fatalf("unexpected decision %+v", dec)
	}
	if store.calls != 1 {
		t.Fatalf("expected one call, got %d", store.calls)
	}
	if !store.seen.Equal(at) {
		t.Fatalf("expected injected clock %s, got %s", at, store.seen)
	}
}

func TestService_Decide_PassesRejection(t *testing.T) {
	store := &fakeStore{dec: domain.Decision{Allowed: false, Limit: 5, RetryAfter: 30 * time.Second}}
	svc := Service{Store: store}

	dec := svc.Decide("k")
	if dec.Allowed {
		t.Fatalf("expected blocked")
	}
	if dec.Remaining != 0 {
		t.Fatalf("expected remaining=0, got %d", dec.Remaining)
	}
	if dec.RetryAfter != 30*time.Second {
		t.Fatalf("expected RetryAfter=30s, got %s", dec.RetryAfter)
	}
}

func TestService_Quota_ReportsFullLimitWithoutConsuming(t *testing.T) {
	store := &fakeStore{limit: 7}
	svc := Service{Store: store}

	q := svc.Quota()
	if q.Remaining != 7 || q.Limit != 7 {
		t.Fatalf("expected full quota 7, got %+v", q)
	}
	if store.calls != 0 {
		t.Fatalf("Quota must not consume, got %d calls", store.calls)
	}
}
