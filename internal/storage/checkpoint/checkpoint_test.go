package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testWindow = 500 * time.Millisecond

// recordingSink keeps every payload and tracks how many writes overlap.
type recordingSink struct {
	mu       sync.Mutex
	writes   []string
	active   atomic.Int32
	maxSeen  atomic.Int32
	entered  chan struct{}
	release  chan struct{}
	failures int
}

func (s *recordingSink) Write(_ context.Context, data []byte) error {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		seen := s.maxSeen.Load()
		if n <= seen || s.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("disk full")
	}
	s.writes = append(s.writes, string(data))
	return nil
}

func (s *recordingSink) Writes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.writes...)
}

type state struct {
	v atomic.Int64
}

func (s *state) snapshot(context.Context) ([]byte, error) {
	return []byte(fmt.Sprintf("state-%d", s.v.Load())), nil
}

func newTestLogger() logrus.FieldLogger {
	logger, _ := logtest.NewNullLogger()
	return logger
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestRequestDebouncesBurstIntoOneWrite(t *testing.T) {
	ctx := testContext(t)
	clock := quartz.NewMock(t)
	sink := &recordingSink{}
	st := &state{}
	metrics := NewMetrics(prometheus.NewRegistry())
	cp := New(st.snapshot, sink, Options{Window: testWindow, Clock: clock, Logger: newTestLogger(), Metrics: metrics})
	t.Cleanup(func() { _ = cp.Close(context.Background()) })

	for i := 1; i <= 5; i++ {
		st.v.Store(int64(i))
		cp.Request()
		clock.Advance(testWindow / 2).MustWait(ctx)
	}
	assert.Empty(t, sink.Writes(), "no write while requests keep arriving")

	clock.Advance(testWindow / 2).MustWait(ctx)

	require.Eventually(t, func() bool { return len(sink.Writes()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"state-5"}, sink.Writes())
	assert.Equal(t, 4.0, promtest.ToFloat64(metrics.Debounced))
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.Writes.WithLabelValues(resultOK)))
}

func TestRequestWriteReflectsStateAtFireTime(t *testing.T) {
	ctx := testContext(t)
	clock := quartz.NewMock(t)
	sink := &recordingSink{}
	st := &state{}
	cp := New(st.snapshot, sink, Options{Window: testWindow, Clock: clock, Logger: newTestLogger()})
	t.Cleanup(func() { _ = cp.Close(context.Background()) })

	st.v.Store(1)
	cp.Request()
	st.v.Store(2)
	clock.Advance(testWindow).MustWait(ctx)

	require.Eventually(t, func() bool { return len(sink.Writes()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "state-2", sink.Writes()[0])
}

func TestNowSingleFlightWithTrailingWrite(t *testing.T) {
	sink := &recordingSink{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	st := &state{}
	metrics := NewMetrics(nil)
	cp := New(st.snapshot, sink, Options{Clock: quartz.NewMock(t), Logger: newTestLogger(), Metrics: metrics})

	st.v.Store(1)
	done := make(chan struct{})
	go func() {
		cp.Now()
		close(done)
	}()
	<-sink.entered

	// Both return immediately and collapse into one trailing write.
	cp.Now()
	cp.Now()
	st.v.Store(2)

	sink.release <- struct{}{}
	<-sink.entered
	st.v.Store(3)
	sink.release <- struct{}{}
	<-done

	assert.Equal(t, []string{"state-1", "state-2"}, sink.Writes())
	assert.Equal(t, int32(1), sink.maxSeen.Load())
	assert.Equal(t, 2.0, promtest.ToFloat64(metrics.Coalesced))

	sink.entered = nil
	sink.release = nil
	require.NoError(t, cp.Close(context.Background()))
	assert.Equal(t, []string{"state-1", "state-2", "state-3"}, sink.Writes())
}

func TestWriteFailureIsLoggedAndSwallowed(t *testing.T) {
	ctx := testContext(t)
	clock := quartz.NewMock(t)
	sink := &recordingSink{failures: 1}
	st := &state{}
	logger, hook := logtest.NewNullLogger()
	metrics := NewMetrics(nil)
	cp := New(st.snapshot, sink, Options{Window: testWindow, Clock: clock, Logger: logger, Metrics: metrics})
	t.Cleanup(func() { _ = cp.Close(context.Background()) })

	cp.Request()
	clock.Advance(testWindow).MustWait(ctx)
	require.Eventually(t, func() bool {
		return promtest.ToFloat64(metrics.Writes.WithLabelValues(resultError)) == 1
	}, time.Second, 5*time.Millisecond)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "checkpoint write failed", hook.LastEntry().Message)

	st.v.Store(9)
	cp.Request()
	clock.Advance(testWindow).MustWait(ctx)
	require.Eventually(t, func() bool { return len(sink.Writes()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "state-9", sink.Writes()[0])
}

func TestSnapshotFailureSkipsSink(t *testing.T) {
	sink := &recordingSink{}
	cp := New(func(context.Context) ([]byte, error) {
		return nil, errors.New("database is closed")
	}, sink, Options{Clock: quartz.NewMock(t), Logger: newTestLogger()})

	cp.Now()

	assert.Empty(t, sink.Writes())
	assert.Error(t, cp.Flush(context.Background()))
}

func TestFlushCancelsPendingTimer(t *testing.T) {
	ctx := testContext(t)
	clock := quartz.NewMock(t)
	sink := &recordingSink{}
	st := &state{}
	cp := New(st.snapshot, sink, Options{Window: testWindow, Clock: clock, Logger: newTestLogger()})

	st.v.Store(4)
	cp.Request()
	require.NoError(t, cp.Flush(ctx))
	assert.Equal(t, []string{"state-4"}, sink.Writes())

	clock.Advance(testWindow).MustWait(ctx)
	assert.Equal(t, []string{"state-4"}, sink.Writes())
	require.NoError(t, cp.Close(ctx))
}

func TestCloseFlushesAndIgnoresLaterRequests(t *testing.T) {
	ctx := testContext(t)
	clock := quartz.NewMock(t)
	sink := &recordingSink{}
	st := &state{}
	cp := New(st.snapshot, sink, Options{Window: testWindow, Clock: clock, Logger: newTestLogger()})

	st.v.Store(7)
	cp.Request()
	require.NoError(t, cp.Close(ctx))
	assert.Equal(t, []string{"state-7"}, sink.Writes())

	cp.Request()
	cp.Now()
	clock.Advance(testWindow).MustWait(ctx)
	assert.Equal(t, []string{"state-7"}, sink.Writes())
}

func TestFileSinkReplacesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dashboard.db")
	sink := FileSink{Path: path}

	require.NoError(t, sink.Write(context.Background(), []byte("first")))
	require.NoError(t, sink.Write(context.Background(), []byte("second")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
}
