package order

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const orderNumberPrefix = "IBP"

// Sequencer hands out a per-day counter. Values for one day are unique and
// start at 1.
type Sequencer interface {
	Next(ctx context.Context, day string) (int, error)
}

// DayKey is the YYMMDD component of an order number.
func DayKey(t time.Time) string {
	return t.Format("060102")
}

// FormatOrderNumber builds IBP<YY><MM><DD><NNNN>.
func FormatOrderNumber(t time.Time, seq int) string {
	return fmt.Sprintf("%s%s%04d", orderNumberPrefix, DayKey(t), seq)
}

type MemorySequencer struct {
	mu   sync.Mutex
	days map[string]int
}

func NewMemorySequencer() *MemorySequencer {
	return &MemorySequencer{days: make(map[string]int)}
}

func (s *MemorySequencer) Next(_ context.Context, day string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.days[day]++
	return s.days[day], nil
}

const nextSequenceQuery = `
	INSERT INTO order_sequences (day, value) VALUES ($1, 1)
	ON CONFLICT (day) DO UPDATE SET value = order_sequences.value + 1
	RETURNING value
`

// PostgresSequencer keeps one counter row per day.
type PostgresSequencer struct {
	db *sql.DB
}

func NewPostgresSequencer(db *sql.DB) *PostgresSequencer {
	return &PostgresSequencer{db: db}
}

func (s *PostgresSequencer) Next(ctx context.Context, day string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, nextSequenceQuery, day).Scan(&n); err != nil {
		return 0, fmt.Errorf("next order sequence: %w", err)
	}
	return n, nil
}

// RedisSequencer uses INCR on a per-day key that expires after two days.
type RedisSequencer struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisSequencer(client redis.UniversalClient) *RedisSequencer {
	return &RedisSequencer{client: client, ttl: 48 * time.Hour}
}

func (s *RedisSequencer) Next(ctx context.Context, day string) (int, error) {
	key := "order_seq:" + day
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("next order sequence: %w", err)
	}
	if n == 1 {
		if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
			return 0, fmt.Errorf("expire order sequence: %w", err)
		}
	}
	return int(n), nil
}
