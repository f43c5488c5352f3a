package devicegate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider scripts the status sequence a device reports and counts
// the start commands it receives.
type fakeProvider struct {
	mu       sync.Mutex
	statuses []int
	statErr  error
	startErr error
	starts   int32
}

func (f *fakeProvider) Status(ctx context.Context, deviceID string) (int, error) {
	if f.statErr != nil {
		return 0, f.statErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statuses) == 0 {
		return StatusOn, nil
	}
	s := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return s, nil
}

func (f *fakeProvider) Start(ctx context.Context, deviceID string) error {
	atomic.AddInt32(&f.starts, 1)
	return f.startErr
}

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func TestGate_DeviceAlreadyOn(t *testing.T) {
	p := &fakeProvider{statuses: []int{StatusOn}}
	g := New(p, Config{Sleep: noSleep})

	res, err := g.EnsureReady(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.True(t, res.Ready)
	assert.Zero(t, atomic.LoadInt32(&p.starts), "no start command for a running device")
}

func TestGate_StartsStoppedDeviceAndPollsUntilOn(t *testing.T) {
	p := &fakeProvider{statuses: []int{StatusStopped, StatusStarting, StatusConfiguring, StatusOn}}
	g := New(p, Config{Sleep: noSleep})

	res, err := g.EnsureReady(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.True(t, res.Ready)
	assert.Equal(t, int32(1), atomic.LoadInt32(&p.starts))
}

func TestGate_UnrecoverableStatusFailsFastWithoutStart(t *testing.T) {
	for _, status := range []int{StatusExpired, StatusBlocked, StatusSetupFailed} {
		p := &fakeProvider{statuses: []int{status}}
		g := New(p, Config{Sleep: noSleep})

		res, err := g.EnsureReady(context.Background(), "dev-1")
		require.NoError(t, err)
		assert.False(t, res.Ready)
		assert.Zero(t, atomic.LoadInt32(&p.starts))
	}
}

func TestGate_AlreadyStartingSkipsStartCommand(t *testing.T) {
	p := &fakeProvider{statuses: []int{StatusStarting, StatusOn}}
	g := New(p, Config{Sleep: noSleep})

	res, err := g.EnsureReady(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.True(t, res.Ready)
	assert.Zero(t, atomic.LoadInt32(&p.starts), "a starting device must not be started again")
}

func TestGate_StartRetriesExhausted(t *testing.T) {
	p := &fakeProvider{statuses: []int{StatusOff}, startErr: errors.New("api 500")}
	g := New(p, Config{StartRetries: 3, Sleep: noSleep})

	res, err := g.EnsureReady(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.False(t, res.Ready)
	assert.Equal(t, int32(3), atomic.LoadInt32(&p.starts))
}

func TestGate_PollTimesOut(t *testing.T) {
	now := time.Now()
	clock := func() time.Time {
		now = now.Add(time.Minute)
		return now
	}
	p := &fakeProvider{statuses: []int{StatusStarting, StatusStarting}}
	g := New(p, Config{Timeout: 150 * time.Second, Clock: clock, Sleep: noSleep})

	res, err := g.EnsureReady(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.False(t, res.Ready)
	assert.Contains(t, res.Message, "not ready")
}

func TestGate_TransportErrorIsAnError(t *testing.T) {
	p := &fakeProvider{statErr: errors.New("connection refused")}
	g := New(p, Config{Sleep: noSleep})

	res, err := g.EnsureReady(context.Background(), "dev-1")
	require.Error(t, err)
	assert.False(t, res.Ready)
}

func TestGate_ConcurrentCallsCoalesceIntoOneStart(t *testing.T) {
	release := make(chan struct{})
	var statusCalls int32
	p := &coalescingProvider{release: release, statusCalls: &statusCalls}
	g := New(p, Config{Sleep: noSleep})

	const callers = 5
	var wg sync.WaitGroup
	results := make([]Result, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := g.EnsureReady(context.Background(), "dev-1")
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}

	// Let all callers pile onto the in-flight request, then release it.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&p.starts), "exactly one start command")
	for _, res := range results {
		assert.True(t, res.Ready)
	}
}

// coalescingProvider blocks the first Status call until released so that
// concurrent EnsureReady calls overlap deterministically.
type coalescingProvider struct {
	release     chan struct{}
	statusCalls *int32
	starts      int32
}

func (p *coalescingProvider) Status(ctx context.Context, deviceID string) (int, error) {
	n := atomic.AddInt32(p.statusCalls, 1)
	if n == 1 {
		<-p.release
		return StatusOff, nil
	}
	return StatusOn, nil
}

func (p *coalescingProvider) Start(ctx context.Context, deviceID string) error {
	atomic.AddInt32(&p.starts, 1)
	return nil
}
