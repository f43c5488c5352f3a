package devicegate

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Device status codes as reported by the automation backend.
const (
	StatusOff         = 0
	StatusOn          = 1
	StatusStopped     = 2
	StatusExpired     = 3
	StatusBlocked     = 4
	StatusStarting    = 10
	StatusConfiguring = 11
	StatusSetupFailed = 12
)

// Provider reads and mutates device power state. Status must always fetch
// fresh state from the backend, bypassing any cache.
type Provider interface {
	Status(ctx context.Context, deviceID string) (int, error)
	Start(ctx context.Context, deviceID string) error
}

// Result is the outcome of an EnsureReady call.
type Result struct {
	Ready   bool   `json:"ready"`
	Message string `json:"message"`
}

// Config tunes the gate's start/poll behavior.
type Config struct {
	StartRetries    int
	StartRetryPause time.Duration
	PollInterval    time.Duration
	Timeout         time.Duration
	Clock           func() time.Time
	Sleep           func(ctx context.Context, d time.Duration) error
}

func (c Config) withDefaults() Config {
	if c.StartRetries <= 0 {
		c.StartRetries = 3
	}
	if c.StartRetryPause <= 0 {
		c.StartRetryPause = 10 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 10 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 150 * time.Second
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.Sleep == nil {
		c.Sleep = func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		}
	}
	return c
}

// Gate ensures a device is powered on before a dependent action runs.
// Concurrent calls for the same device id are coalesced: only the first
// caller drives the start/poll sequence, the rest share its result. The
// in-flight entry is discarded once the operation resolves.
type Gate struct {
	provider Provider
	cfg      Config
	group    singleflight.Group
}

// New creates a readiness gate around the given provider.
func New(provider Provider, cfg Config) *Gate {
	return &Gate{provider: provider, cfg: cfg.withDefaults()}
}

// EnsureReady blocks until the device is on, fails fast on unrecoverable
// statuses, and times out after the configured window. A non-nil error
// means the backend itself was unreachable; a logical "device cannot be
// readied" outcome is reported through Result.Ready=false.
func (g *Gate) EnsureReady(ctx context.Context, deviceID string) (Result, error) {
	v, err, shared := g.group.Do(deviceID, func() (any, error) {
		res, err := g.ensure(ctx, deviceID)
		return res, err
	})
	if shared {
		logrus.Debugf("[DEVICE_GATE] %s: joined in-flight readiness request", deviceID)
	}
	if err != nil {
		return Result{Ready: false, Message: err.Error()}, err
	}
	return v.(Result), nil
}

func (g *Gate) ensure(ctx context.Context, deviceID string) (Result, error) {
	status, err := g.provider.Status(ctx, deviceID)
	if err != nil {
		return Result{}, fmt.Errorf("fetch device status: %w", err)
	}

	switch {
	case status == StatusOn:
		return Result{Ready: true, Message: "device is on"}, nil
	case isUnrecoverable(status):
		return Result{Ready: false, Message: fmt.Sprintf("device status %d is unrecoverable", status)}, nil
	case isStarting(status):
		// Someone or something already issued a start, just wait for it.
		return g.poll(ctx, deviceID)
	}

	// Off or stopped: issue the start command with bounded retries.
	started := false
	for attempt := 1; attempt <= g.cfg.StartRetries; attempt++ {
		if err := g.provider.Start(ctx, deviceID); err == nil {
			started = true
			break
		} else {
			logrus.WithError(err).Warnf("[DEVICE_GATE] %s: start attempt %d/%d failed",
				deviceID, attempt, g.cfg.StartRetries)
		}
		if attempt < g.cfg.StartRetries {
			if err := g.cfg.Sleep(ctx, g.cfg.StartRetryPause); err != nil {
				return Result{}, err
			}
		}
	}
	if !started {
		return Result{Ready: false, Message: fmt.Sprintf("start command failed %d times", g.cfg.StartRetries)}, nil
	}

	return g.poll(ctx, deviceID)
}

// poll re-fetches the device status until it turns on, becomes
// unrecoverable, or the overall timeout elapses.
func (g *Gate) poll(ctx context.Context, deviceID string) (Result, error) {
	deadline := g.cfg.Clock().Add(g.cfg.Timeout)
	for {
		if err := g.cfg.Sleep(ctx, g.cfg.PollInterval); err != nil {
			return Result{}, err
		}

		status, err := g.provider.Status(ctx, deviceID)
		if err != nil {
			return Result{}, fmt.Errorf("poll device status: %w", err)
		}
		switch {
		case status == StatusOn:
			return Result{Ready: true, Message: "device is on"}, nil
		case isUnrecoverable(status):
			return Result{Ready: false, Message: fmt.Sprintf("device status %d is unrecoverable", status)}, nil
		}

		if g.cfg.Clock().After(deadline) {
			logrus.Warnf("[DEVICE_GATE] %s: readiness timed out after %s", deviceID, g.cfg.Timeout)
			return Result{Ready: false, Message: fmt.Sprintf("device not ready within %s", g.cfg.Timeout)}, nil
		}
	}
}

func isUnrecoverable(status int) bool {
	return status == StatusExpired || status == StatusBlocked || status == StatusSetupFailed
}

func isStarting(status int) bool {
	return status == StatusStarting || status == StatusConfiguring
}
