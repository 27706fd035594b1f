package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"augur/internal/config"
)

func entry(i int) Entry {
	return Entry{
		GameID:     fmt.Sprintf("g%d", i),
		Symbol:     "BTC",
		Prediction: 1,
		Success:    i%2 == 0,
		Points:     float64(i * 10),
		Rank:       i,
		FirstPrice: 1,
		LastPrice:  1.1,
		Series:     []float64{1, 1.05, 1.1},
		RecordedAt: time.UnixMilli(int64(1_700_000_000_000 + i)).UTC(),
	}
}

// exerciseStore checks the window contract against any backend.
func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	recent, err := s.Recent(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, recent)

	for i := 1; i <= 5; i++ {
		require.NoError(t, s.Append(ctx, entry(i)))
	}

	for _, k := range []int{-1, 0, 1, 3, 5, 10} {
		got, err := s.Recent(ctx, k)
		require.NoError(t, err)
		want := k
		if want < 0 {
			want = 0
		}
		if want > 5 {
			want = 5
		}
		require.Len(t, got, want, "k=%d", k)
		for j, e := range got {
			assert.Equal(t, entry(5-want+1+j), e, "k=%d idx=%d", k, j)
		}
	}

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, entry(1), all[0])

	require.NoError(t, s.Append(ctx))
	require.NoError(t, s.Append(ctx, entry(6), entry(7)))
	got, err := s.Recent(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []Entry{entry(5), entry(6), entry(7)}, got)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemoryStoreConcurrent(t *testing.T) {
	s := NewMemory()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.Append(context.Background(), entry(i))
		}()
		go func() {
			defer wg.Done()
			_, _ = s.Recent(context.Background(), 3)
		}()
	}
	wg.Wait()
	all, _ := s.All(context.Background())
	assert.Len(t, all, 50)
}

func TestGormStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "history.db")
	s, err := NewGormStore(path)
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)

	reopened, err := NewGormStore(path)
	require.NoError(t, err)
	defer reopened.Close()
	all, err := reopened.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 7)
}

func TestGormStoreAppendRollsBack(t *testing.T) {
	s, err := NewGormStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, entry(1)))

	creates := 0
	require.NoError(t, s.db.Callback().Create().Before("gorm:create").Register("test:fail_second", func(tx *gorm.DB) {
		creates++
		if creates == 2 {
			_ = tx.AddError(errors.New("disk full"))
		}
	}))

	err = s.Append(ctx, entry(2), entry(3), entry(4))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Entry{entry(1)}, all)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("AUGUR_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("AUGUR_TEST_REDIS_ADDR not set")
	}
	key := fmt.Sprintf("augur:test:%d", time.Now().UnixNano())
	s, err := NewRedisStore(context.Background(), config.RedisConfig{Addr: addr, Key: key})
	require.NoError(t, err)
	defer func() {
		_ = s.rdb.Del(context.Background(), key).Err()
		_ = s.Close()
	}()
	exerciseStore(t, s)
}

func TestDecodeEntries(t *testing.T) {
	out, err := decodeEntries([]string{`{"game_id":"g1","symbol":"A","prediction":-1,"success":true}`})
	require.NoError(t, err)
	assert.Equal(t, []Entry{{GameID: "g1", Symbol: "A", Prediction: -1, Success: true}}, out)

	_, err = decodeEntries([]string{"nope"})
	assert.Error(t, err)
}

func TestOpenSelectsDriver(t *testing.T) {
	s, err := Open(context.Background(), config.HistoryConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	_, err = Open(context.Background(), config.HistoryConfig{Driver: "mongo"})
	assert.Error(t, err)
}
