package redisx

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis keeps values in a map and answers with go-redis result objects.
type fakeRedis struct {
	mu       sync.Mutex
	vals     map[string]string
	ttls     map[string]time.Duration
	shas     []string
	failGet  error
	failEval error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{vals: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet != nil {
		return redis.NewStringResult("", f.failGet)
	}
	v, ok := f.vals[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

// runIncrWithWindow applies what the login counter script does on the server.
func (f *fakeRedis) runIncrWithWindow(keys []string, args []any) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failEval != nil {
		return redis.NewCmdResult(nil, f.failEval)
	}
	k := keys[0]
	n, _ := strconv.ParseInt(f.vals[k], 10, 64)
	n++
	f.vals[k] = strconv.FormatInt(n, 10)
	if _, ok := f.ttls[k]; !ok {
		f.ttls[k] = time.Duration(args[0].(int64)) * time.Millisecond
	}
	return redis.NewCmdResult(n, nil)
}

func (f *fakeRedis) Eval(_ context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	return f.runIncrWithWindow(keys, args)
}

func (f *fakeRedis) EvalSha(_ context.Context, sha string, keys []string, args ...any) *redis.Cmd {
	f.mu.Lock()
	f.shas = append(f.shas, sha)
	f.mu.Unlock()
	return f.runIncrWithWindow(keys, args)
}

func (f *fakeRedis) EvalRO(context.Context, string, []string, ...any) *redis.Cmd {
	return redis.NewCmdResult(nil, errors.New("not supported"))
}

func (f *fakeRedis) EvalShaRO(context.Context, string, []string, ...any) *redis.Cmd {
	return redis.NewCmdResult(nil, errors.New("not supported"))
}

func (f *fakeRedis) ScriptExists(_ context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult(make([]bool, len(hashes)), nil)
}

func (f *fakeRedis) ScriptLoad(context.Context, string) *redis.StringCmd {
	return redis.NewStringResult("", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.vals[k]; ok {
			delete(f.vals, k)
			delete(f.ttls, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value any, exp time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.vals[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.vals[key] = "1"
	f.ttls[key] = exp
	return redis.NewBoolResult(true, nil)
}

func TestLoginLimiter_BlocksAfterMax(t *testing.T) {
	rdb := newFakeRedis()
	l := NewLoginLimiter(rdb, 3, 15*time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		blocked, err := l.Blocked(ctx, "aya@x.com")
		require.NoError(t, err)
		assert.False(t, blocked)
		require.NoError(t, l.RecordFailure(ctx, "aya@x.com"))
	}

	blocked, err := l.Blocked(ctx, "aya@x.com")
	require.NoError(t, err)
	assert.True(t, blocked)
	assert.Equal(t, 15*time.Minute, rdb.ttls["login_fail:aya@x.com"])
}

func TestLoginLimiter_CounterAlwaysCarriesWindow(t *testing.T) {
	rdb := newFakeRedis()
	l := NewLoginLimiter(rdb, 5, 15*time.Minute)
	ctx := context.Background()

	// a counter left behind without a TTL
	rdb.vals["login_fail:k"] = "3"

	require.NoError(t, l.RecordFailure(ctx, "k"))
	assert.Equal(t, "4", rdb.vals["login_fail:k"])
	assert.Equal(t, 15*time.Minute, rdb.ttls["login_fail:k"])
	require.Len(t, rdb.shas, 1)
	assert.Equal(t, incrWithWindow.Hash(), rdb.shas[0])
}

func TestLoginLimiter_RecordFailureError(t *testing.T) {
	rdb := newFakeRedis()
	rdb.failEval = errors.New("i/o timeout")
	l := NewLoginLimiter(rdb, 1, time.Minute)

	require.Error(t, l.RecordFailure(context.Background(), "k"))
	_, exists := rdb.vals["login_fail:k"]
	assert.False(t, exists)
}

func TestLoginLimiter_Reset(t *testing.T) {
	rdb := newFakeRedis()
	l := NewLoginLimiter(rdb, 1, time.Minute)
	ctx := context.Background()

	require.NoError(t, l.RecordFailure(ctx, "k"))
	blocked, _ := l.Blocked(ctx, "k")
	require.True(t, blocked)

	require.NoError(t, l.Reset(ctx, "k"))
	blocked, err := l.Blocked(ctx, "k")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestLoginLimiter_GetError(t *testing.T) {
	rdb := newFakeRedis()
	rdb.failGet = errors.New("i/o timeout")
	l := NewLoginLimiter(rdb, 1, time.Minute)

	_, err := l.Blocked(context.Background(), "k")
	require.Error(t, err)
}

func TestDedup_FirstSeen(t *testing.T) {
	rdb := newFakeRedis()
	d := NewDedup(rdb, "notifier")
	ctx := context.Background()

	first, err := d.FirstSeen(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := d.FirstSeen(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, again)

	assert.Equal(t, TTLDedup, rdb.ttls["dedup:notifier:evt-1"])
}

func TestDedup_Forget(t *testing.T) {
	rdb := newFakeRedis()
	d := NewDedup(rdb, "notifier")
	ctx := context.Background()

	_, err := d.FirstSeen(ctx, "evt-2")
	require.NoError(t, err)
	require.NoError(t, d.Forget(ctx, "evt-2"))

	first, err := d.FirstSeen(ctx, "evt-2")
	require.NoError(t, err)
	assert.True(t, first)
}
