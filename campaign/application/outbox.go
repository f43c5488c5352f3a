package application

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Queue names used across the engine.
const (
	QueuePublish  = "publish"
	QueueInteract = "interact"
)

// Dedup key prefixes. One logical row maps to at most one outstanding job.
const (
	dedupPrefixPost        = "post-"
	dedupPrefixInteraction = "interaction-"
)

// outboxLoop runs poll immediately and then on every interval tick until
// the context is canceled. Both enqueuers are instances of this loop.
func outboxLoop(ctx context.Context, name string, interval time.Duration, poll func(ctx context.Context)) {
	logrus.Infof("[OUTBOX] %s: polling every %s", name, interval)
	poll(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logrus.Infof("[OUTBOX] %s: stopped", name)
			return
		case <-ticker.C:
			poll(ctx)
		}
	}
}
