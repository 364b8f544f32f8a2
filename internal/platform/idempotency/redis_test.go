package idempotency

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})

	store, err := NewRedisStore(client, "sf")
	require.NoError(t, err)
	return store, mr
}

func TestRedisStoreReserveAndReplay(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	first, err := store.Reserve(ctx, "key-1", "fp-1", fixedTime, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, ReservationStateNew, first.State)

	second, err := store.Reserve(ctx, "key-1", "fp-1", fixedTime, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, ReservationStatePending, second.State)

	_, err = store.Reserve(ctx, "key-1", "fp-other", fixedTime, time.Hour)
	assert.ErrorIs(t, err, ErrFingerprintMismatch)

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Content-Length", "12")
	require.NoError(t, store.SaveResponse(ctx, "key-1", "fp-1", Response{
		Status:  http.StatusCreated,
		Headers: header,
		Body:    []byte(`{"order":{}}`),
	}, fixedTime.Add(time.Second), time.Hour))

	replay, err := store.Reserve(ctx, "key-1", "fp-1", fixedTime.Add(2*time.Second), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, ReservationStateCompleted, replay.State)
	assert.Equal(t, http.StatusCreated, replay.Record.ResponseStatus)
	assert.JSONEq(t, `{"order":{}}`, string(replay.Record.ResponseBody))
	assert.Equal(t, []string{"application/json"}, replay.Record.ResponseHeaders["Content-Type"])
	assert.NotContains(t, replay.Record.ResponseHeaders, "Content-Length")
}

func TestRedisStoreRecordsExpire(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	_, err := store.Reserve(ctx, "key-ttl", "fp", fixedTime, time.Minute)
	require.NoError(t, err)

	redisKey := store.key("key-ttl")
	assert.True(t, mr.Exists(redisKey))
	assert.Equal(t, time.Minute, mr.TTL(redisKey))

	mr.FastForward(2 * time.Minute)

	again, err := store.Reserve(ctx, "key-ttl", "fp-new", fixedTime.Add(2*time.Minute), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, ReservationStateNew, again.State)
}

func TestRedisStoreReleaseOnlyOwnFingerprint(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	_, err := store.Reserve(ctx, "key-rel", "fp-1", fixedTime, time.Hour)
	require.NoError(t, err)

	require.NoError(t, store.Release(ctx, "key-rel", "fp-2"))
	assert.True(t, mr.Exists(store.key("key-rel")))

	require.NoError(t, store.Release(ctx, "key-rel", "fp-1"))
	assert.False(t, mr.Exists(store.key("key-rel")))

	require.NoError(t, store.Release(ctx, "key-missing", "fp-1"))
}

func TestRedisStoreBacksMiddleware(t *testing.T) {
	store, _ := setupRedisStore(t)
	var calls int
	handler := Middleware(store, WithClock(func() time.Time { return fixedTime }))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for i := 0; i < 2; i++ {
		req := newOrderRequest(`{"items":[]}`, "redis-key")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		require.Equal(t, http.StatusCreated, rr.Code)
	}
	assert.Equal(t, 1, calls)
}
