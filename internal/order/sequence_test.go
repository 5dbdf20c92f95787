package order

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatOrderNumber(t *testing.T) {
	day := time.Date(2024, time.March, 7, 15, 4, 5, 0, time.UTC)
	assert.Equal(t, "IBP2403070001", FormatOrderNumber(day, 1))
	assert.Equal(t, "IBP2403070042", FormatOrderNumber(day, 42))
	assert.Regexp(t, `^IBP\d{10}$`, FormatOrderNumber(day, 9999))
}

func TestMemorySequencer_UniqueUnderConcurrency(t *testing.T) {
	seq := NewMemorySequencer()
	seen := sync.Map{}

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := seq.Next(context.Background(), "240307")
			require.NoError(t, err)
			_, dup := seen.LoadOrStore(n, true)
			assert.False(t, dup, "duplicate sequence %d", n)
		}()
	}
	wg.Wait()

	n, _ := seq.Next(context.Background(), "240308")
	assert.Equal(t, 1, n, "each day starts at 1")
}

func TestRedisSequencer(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	seq := NewRedisSequencer(client)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		n, err := seq.Next(ctx, "240307")
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
	assert.Equal(t, 48*time.Hour, mr.TTL("order_seq:240307"))

	n, err := seq.Next(ctx, "240308")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPostgresSequencer(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(nextSequenceQuery)).WithArgs("240307").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(12))

	n, err := NewPostgresSequencer(db).Next(context.Background(), "240307")
	require.NoError(t, err)
	assert.Equal(t, 12, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
