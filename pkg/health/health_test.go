package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// toggle is a check whose outcome the test controls.
type toggle struct{ fail atomic.Bool }

func (c *toggle) check(context.Context) error {
	if c.fail.Load() {
		return errors.New("connection refused")
	}
	return nil
}

func serve(t *testing.T, handler http.HandlerFunc) (int, Report) {
	t.Helper()
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var rep Report
	require.NoError(t, json.NewDecoder(w.Body).Decode(&rep))
	return w.Code, rep
}

func TestLiveEndpoint_Thresholds(t *testing.T) {
	ctx := context.Background()
	db := &toggle{}
	h := New()
	h.AddLivenessCheck("db", time.Second, db.check)

	code, rep := serve(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, rep.OK)

	db.fail.Store(true)
	h.RunOnce(ctx)
	h.RunOnce(ctx)
	code, _ = serve(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code, "below failure threshold")

	h.RunOnce(ctx)
	code, rep = serve(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.False(t, rep.OK)
	assert.Equal(t, "unhealthy", rep.Status)
	assert.Equal(t, "connection refused", rep.Checks["db"])

	db.fail.Store(false)
	h.RunOnce(ctx)
	code, _ = serve(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code, "recovers after one success")
}

func TestReadyEndpoint(t *testing.T) {
	ctx := context.Background()
	cache := &toggle{}
	h := New()
	h.Register(Probe{Name: "redis", Kind: Readiness, Check: cache.check, FailureThreshold: 1})

	code, rep := serve(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, rep.Checks, "_readiness")
	assert.False(t, h.IsReady())

	h.SetReady(true)
	code, _ = serve(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, h.IsReady())

	cache.fail.Store(true)
	h.RunOnce(ctx)
	code, rep = serve(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "connection refused", rep.Checks["redis"])
	assert.False(t, h.IsReady())

	// Liveness ignores readiness probes.
	code, _ = serve(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code)
}

func TestSummaryEndpoint(t *testing.T) {
	ctx := context.Background()
	db := &toggle{}
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, GoroutineCountCheck(1_000_000))
	h.Register(Probe{Name: "postgres", Kind: Readiness, Check: db.check, FailureThreshold: 1})

	code, rep := serve(t, h.SummaryEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, rep.OK)

	db.fail.Store(true)
	h.RunOnce(ctx)
	code, rep = serve(t, h.SummaryEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, map[string]string{"postgres": "connection refused"}, rep.Checks)
}

func TestStartStop(t *testing.T) {
	var runs atomic.Int32
	h := New()
	h.AddLivenessCheck("counter", time.Second, func(context.Context) error {
		runs.Add(1)
		return nil
	})

	h.Start(context.Background(), 5*time.Millisecond)
	require.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, time.Millisecond)

	h.Stop()
	h.Stop()
	after := runs.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, runs.Load())
}

func TestProbeTimeout(t *testing.T) {
	h := New()
	h.Register(Probe{
		Name:             "slow",
		Kind:             Liveness,
		Timeout:          5 * time.Millisecond,
		FailureThreshold: 1,
		Check: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})
	h.RunOnce(context.Background())

	_, rep := serve(t, h.LiveEndpoint)
	assert.Equal(t, context.DeadlineExceeded.Error(), rep.Checks["slow"])
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestCheckers(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, GoroutineCountCheck(1_000_000)(ctx))
	assert.Error(t, GoroutineCountCheck(0)(ctx))

	assert.NoError(t, PingCheck("postgres", pinger{})(ctx))
	err := PingCheck("postgres", pinger{err: errors.New("refused")})(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping postgres")
}

func TestConcurrentAccess(t *testing.T) {
	h := New()
	h.AddReadinessCheck("a", time.Second, func(context.Context) error { return nil })
	h.SetReady(true)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.RunOnce(context.Background())
		}()
		go func() {
			defer wg.Done()
			_ = h.IsReady()
			serve(t, h.ReadyEndpoint)
		}()
	}
	wg.Wait()
}
