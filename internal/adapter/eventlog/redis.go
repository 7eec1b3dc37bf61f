package eventlog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gomodule/redigo/redis"
	"github.com/webitel/cloudevents-bin/internal/domain/model"
)

var _ Log = (*RedisLog)(nil)

// RedisLog keeps one Redis list per namespace under <prefix>events/<ns>.
// LPUSH puts the newest entry at index 0.
type RedisLog struct {
	pool   *redis.Pool
	prefix string
	logger *slog.Logger
}

func NewRedisLog(pool *redis.Pool, prefix string, logger *slog.Logger) *RedisLog {
	return &RedisLog{pool: pool, prefix: prefix, logger: logger}
}

// Key returns the list key of ns.
func (l *RedisLog) Key(ns model.Namespace) string {
	return l.prefix + "events/" + string(ns)
}

func (l *RedisLog) do(ctx context.Context, cmd string, args ...any) (any, error) {
	conn, err := l.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	return conn.Do(cmd, args...)
}

func (l *RedisLog) Append(ctx context.Context, ns model.Namespace, rec model.EventRecord) error {
	if rec.IsZero() {
		return storageErr("append", ns, fmt.Errorf("empty record"))
	}
	if _, err := redis.Int(l.do(ctx, "LPUSH", l.Key(ns), []byte(rec.Raw()))); err != nil {
		return storageErr("append", ns, err)
	}
	return nil
}

func (l *RedisLog) Read(ctx context.Context, ns model.Namespace, limit int) ([]model.EventRecord, error) {
	if limit <= 0 {
		return []model.EventRecord{}, nil
	}

	// A missing key is an empty list for LRANGE.
	items, err := redis.ByteSlices(l.do(ctx, "LRANGE", l.Key(ns), 0, limit-1))
	if err != nil && err != redis.ErrNil {
		return nil, storageErr("read", ns, err)
	}

	out := make([]model.EventRecord, 0, len(items))
	for i, raw := range items {
		rec, err := model.ParseEventRecord(raw)
		if err != nil {
			// [CORRUPT_ENTRY] Something else wrote into our key; skip it rather than fail the listing.
			l.logger.Warn("CORRUPT_ENTRY",
				"namespace", ns,
				"key", l.Key(ns),
				"index", i,
				"err", err,
			)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Trim issues LTRIM 0 bound-1: Redis resolves the cut against the list as it
// is when the command executes, so concurrent LPUSHes are never over-trimmed.
func (l *RedisLog) Trim(ctx context.Context, ns model.Namespace, bound int) error {
	if bound <= 0 {
		// LTRIM 0 -1 would keep everything.
		if _, err := l.do(ctx, "DEL", l.Key(ns)); err != nil {
			return storageErr("trim", ns, err)
		}
		return nil
	}
	if _, err := l.do(ctx, "LTRIM", l.Key(ns), 0, bound-1); err != nil {
		return storageErr("trim", ns, err)
	}
	return nil
}

func (l *RedisLog) Len(ctx context.Context, ns model.Namespace) (int, error) {
	n, err := redis.Int(l.do(ctx, "LLEN", l.Key(ns)))
	if err != nil {
		return 0, storageErr("len", ns, err)
	}
	return n, nil
}

// Close is a no-op: the pool is owned by the redis infra module.
func (l *RedisLog) Close() error { return nil }
