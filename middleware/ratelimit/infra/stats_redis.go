package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"vault-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore grava contadores de decisões em hashes do Redis.
//
// Layout (prefix padrão "vault:stats"):
//
//	<prefix>:total                 allowed/denied/exhausted (cumulativo)
//	<prefix>:minute:<yyyymmddhhmm> idem, por minuto (expira com ttl)
//	<prefix>:route                 "<METHOD> <path>:<campo>"
//	<prefix>:key:<fingerprint>     por chamador, só com trackKeys
type RedisStatsStore struct {
	rdb redis.UniversalClient

	prefix string
	// ttl aplica apenas em chaves de série temporal / por key.
	// total é cumulativo e não expira.
	ttl time.Duration

	bucket string // "minute" (padrão) ou "none"

	trackKeys bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb redis.UniversalClient, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "vault:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	fields := []string{"denied"}
	if ev.Allowed {
		fields = []string{"allowed"}
		if ev.Remaining == 0 {
			fields = append(fields, "exhausted")
		}
	}

	totalKey := s.prefix + ":total"
	bucketKey := fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
	routeKey := s.prefix + ":route"
	routeField := strings.TrimSpace(strings.TrimSpace(ev.Method) + " " + strings.TrimSpace(ev.Path))
	keyKey := s.prefix + ":key:" + ev.Key.Fingerprint()

	pipe := s.rdb.Pipeline()
	for _, field := range fields {
		pipe.HIncrBy(ctx, totalKey, field, 1)
		if s.bucket == "minute" {
			pipe.HIncrBy(ctx, bucketKey, field, 1)
		}
		if routeField != "" {
			pipe.HIncrBy(ctx, routeKey, routeField+":"+field, 1)
		}
		if s.trackKeys && ev.Key != "" {
			pipe.HIncrBy(ctx, keyKey, field, 1)
		}
	}
	if s.ttl > 0 {
		if s.bucket == "minute" {
			pipe.Expire(ctx, bucketKey, s.ttl)
		}
		if s.trackKeys && ev.Key != "" {
			pipe.Expire(ctx, keyKey, s.ttl)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis stats: %w", err)
	}
	return nil
}

// Total lê os contadores cumulativos.
func (s *RedisStatsStore) Total(ctx context.Context) (Counters, error) {
	vals, err := s.rdb.HGetAll(ctx, s.prefix+":total").Result()
	if err != nil {
		return Counters{}, fmt.Errorf("redis stats: %w", err)
	}
	var c Counters
	for field, dst := range map[string]*int64{
		"allowed":   &c.Allowed,
		"denied":    &c.Denied,
		"exhausted": &c.Exhausted,
	} {
		if v, ok := vals[field]; ok {
			if _, err := fmt.Sscan(v, dst); err != nil {
				return Counters{}, fmt.Errorf("redis stats: parse %s: %w", field, err)
			}
		}
	}
	return c, nil
}
