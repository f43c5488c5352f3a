package jobqueue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startQueue(t *testing.T, cfg Config, handler Handler) *Queue {
	t.Helper()
	q := newQueue("test", cfg, handler, nil)
	ctx, cancel := context.WithCancel(context.Background())
	q.start(ctx)
	t.Cleanup(func() {
		cancel()
		q.stop()
	})
	return q
}

func TestQueue_EnqueueIsIdempotentPerDedupKey(t *testing.T) {
	block := make(chan struct{})
	q := startQueue(t, Config{Workers: 1}, func(ctx context.Context, job Job) error {
		<-block
		return nil
	})
	defer close(block)

	first, err := q.Enqueue([]byte(`{"n":1}`), Options{DedupKey: "post-1"})
	require.NoError(t, err)

	second, err := q.Enqueue([]byte(`{"n":2}`), Options{DedupKey: "post-1"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "duplicate enqueue must return the existing job")
	assert.Equal(t, []byte(`{"n":1}`), second.Payload, "original payload must win")
}

func TestQueue_EnqueueRequiresDedupKey(t *testing.T) {
	q := newQueue("test", Config{}, nil, nil)
	_, err := q.Enqueue(nil, Options{})
	require.Error(t, err)
}

func TestQueue_CompletesJob(t *testing.T) {
	var calls int32
	q := startQueue(t, Config{Workers: 1}, func(ctx context.Context, job Job) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	_, err := q.Enqueue(nil, Options{DedupKey: "job-1"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		j, ok := q.Job("job-1")
		return ok && j.Status == StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	s := q.Stats()
	assert.Equal(t, 1, s.Completed)
	assert.Equal(t, int64(1), s.Processed)
}

func TestQueue_RetriesWithBackoffThenFailsTerminally(t *testing.T) {
	var calls int32
	q := startQueue(t, Config{Workers: 1, MaxAttempts: 3, BackoffBase: 5 * time.Millisecond},
		func(ctx context.Context, job Job) error {
			atomic.AddInt32(&calls, 1)
			return errors.New("backend down")
		})

	_, err := q.Enqueue(nil, Options{DedupKey: "job-1"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		j, ok := q.Job("job-1")
		return ok && j.Status == StatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "attempt budget must be honored")

	j, ok := q.Job("job-1")
	require.True(t, ok, "failed jobs stay visible")
	assert.Equal(t, 3, j.Attempts)
	assert.Equal(t, "backend down", j.LastError)
}

func TestQueue_PermanentErrorSkipsRetries(t *testing.T) {
	var calls int32
	q := startQueue(t, Config{Workers: 1, MaxAttempts: 3, BackoffBase: time.Millisecond},
		func(ctx context.Context, job Job) error {
			atomic.AddInt32(&calls, 1)
			return Permanent(errors.New("bad payload"))
		})

	_, err := q.Enqueue(nil, Options{DedupKey: "job-1"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		j, ok := q.Job("job-1")
		return ok && j.Status == StatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "permanent errors must not consume retries")
}

func TestQueue_PanicIsRetriedAsStalled(t *testing.T) {
	var calls int32
	q := startQueue(t, Config{Workers: 1, MaxAttempts: 2, BackoffBase: time.Millisecond},
		func(ctx context.Context, job Job) error {
			if atomic.AddInt32(&calls, 1) == 1 {
				panic("boom")
			}
			return nil
		})

	_, err := q.Enqueue(nil, Options{DedupKey: "job-1"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		j, ok := q.Job("job-1")
		return ok && j.Status == StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestQueue_PauseHoldsDispatch(t *testing.T) {
	var calls int32
	q := startQueue(t, Config{Workers: 1}, func(ctx context.Context, job Job) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	q.Pause()
	_, err := q.Enqueue(nil, Options{DedupKey: "job-1"})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls), "paused queue must not dispatch")

	q.Resume()
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestQueue_ReplayFailedResetsAttemptBudget(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	q := startQueue(t, Config{Workers: 1, MaxAttempts: 1, BackoffBase: time.Millisecond},
		func(ctx context.Context, job Job) error {
			if fail.Load() {
				return errors.New("transient")
			}
			return nil
		})

	_, err := q.Enqueue(nil, Options{DedupKey: "job-1"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		j, ok := q.Job("job-1")
		return ok && j.Status == StatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	fail.Store(false)
	replayed := q.ReplayFailed()
	assert.Equal(t, 1, replayed)

	require.Eventually(t, func() bool {
		j, ok := q.Job("job-1")
		return ok && j.Status == StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	j, _ := q.Job("job-1")
	assert.Equal(t, 1, j.Attempts, "replay must start from a fresh budget")
}

func TestQueue_PurgeTrimsTerminalJobs(t *testing.T) {
	now := time.Now()
	q := newQueue("test", Config{
		RetainCompleted: 1,
		RetainFailedFor: time.Hour,
		Clock:           func() time.Time { return now },
	}, nil, nil)

	q.terminal = []*Job{
		{DedupKey: "c1", Status: StatusCompleted, FinishedAt: now},
		{DedupKey: "c2", Status: StatusCompleted, FinishedAt: now},
		{DedupKey: "f-old", Status: StatusFailed, FinishedAt: now.Add(-2 * time.Hour)},
		{DedupKey: "f-new", Status: StatusFailed, FinishedAt: now.Add(-time.Minute)},
	}
	q.purge()

	keys := make([]string, 0, len(q.terminal))
	for _, j := range q.terminal {
		keys = append(keys, j.DedupKey)
	}
	assert.Equal(t, []string{"c2", "f-new"}, keys)
}

func TestManager_RegisterIsIdempotentAndSubscribeStreams(t *testing.T) {
	m := NewManager()
	handler := func(ctx context.Context, job Job) error { return nil }

	q1 := m.Register("alpha", Config{Workers: 1}, handler)
	q2 := m.Register("alpha", Config{Workers: 5}, handler)
	assert.Same(t, q1, q2)

	events, unsubscribe := m.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	_, err := q1.Enqueue(nil, Options{DedupKey: "job-1"})
	require.NoError(t, err)

	deadline := time.After(2 * time.Second)
	seen := map[EventType]bool{}
	for !seen[EventCompleted] {
		select {
		case ev := <-events:
			seen[ev.Type] = true
			assert.Equal(t, "alpha", ev.Queue)
		case <-deadline:
			t.Fatal("timed out waiting for lifecycle events")
		}
	}
	assert.True(t, seen[EventWaiting])
	assert.True(t, seen[EventActive])
}
