package application

import (
	"context"
	"encoding/json"
	"time"

	"github.com/AzielCF/az-amp/campaign/domain/common"
	"github.com/AzielCF/az-amp/campaign/repository"
	"github.com/AzielCF/az-amp/infrastructure/valkey"
	"github.com/AzielCF/az-amp/pkg/jobqueue"
	"github.com/sirupsen/logrus"
)

type interactionJobPayload struct {
	InteractionID string `json:"interaction_id"`
}

// InteractionEnqueuer polls for due pending interactions and pushes them
// into the interact queue. Interactions whose dependent target cannot be
// resolved (a like without a URL, a follow without a username) are failed
// terminally and counted, never enqueued.
type InteractionEnqueuer struct {
	repo         repository.ICampaignRepository
	queue        *jobqueue.Queue
	valkeyClient *valkey.Client
	interval     time.Duration
	batchSize    int
	clock        func() time.Time
}

func NewInteractionEnqueuer(repo repository.ICampaignRepository, queue *jobqueue.Queue, vk *valkey.Client, interval time.Duration, batchSize int) *InteractionEnqueuer {
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 20
	}
	return &InteractionEnqueuer{
		repo:         repo,
		queue:        queue,
		valkeyClient: vk,
		interval:     interval,
		batchSize:    batchSize,
		clock:        time.Now,
	}
}

// Run blocks until ctx is canceled.
func (e *InteractionEnqueuer) Run(ctx context.Context) {
	outboxLoop(ctx, "interactions", e.interval, func(ctx context.Context) {
		if err := e.RunOnce(ctx); err != nil {
			logrus.WithError(err).Error("[OUTBOX] interactions: poll failed")
		}
	})
}

// RunOnce performs a single bounded poll-and-enqueue pass.
func (e *InteractionEnqueuer) RunOnce(ctx context.Context) error {
	if e.valkeyClient != nil && !e.valkeyClient.AcquireLock(ctx, "lock:enqueuer:interactions", e.interval-5*time.Second) {
		return nil
	}

	due, err := e.repo.ListDueInteractions(ctx, e.clock().UTC(), e.batchSize)
	if err != nil {
		return err
	}

	enqueued, skipped := 0, 0
	for _, in := range due {
		if !in.HasTarget() {
			skipped++
			if err := e.repo.MarkInteractionFailed(ctx, in.ID, in.RetryCount, common.ErrMissingTarget.Error()); err != nil {
				logrus.WithError(err).Errorf("[OUTBOX] interactions: failed to skip %s", in.ID)
			}
			if in.PlanID != "" {
				if _, err := e.repo.RecordPlanProgress(ctx, in.PlanID, 0, 1); err != nil {
					logrus.WithError(err).Errorf("[OUTBOX] interactions: plan progress for %s", in.PlanID)
				}
			}
			continue
		}

		payload, err := json.Marshal(interactionJobPayload{InteractionID: in.ID})
		if err != nil {
			return err
		}
		if _, err := e.queue.Enqueue(payload, jobqueue.Options{DedupKey: dedupPrefixInteraction + in.ID}); err != nil {
			logrus.WithError(err).Errorf("[OUTBOX] interactions: enqueue failed for %s", in.ID)
			continue
		}
		if err := e.repo.ClaimInteraction(ctx, in.ID); err != nil {
			logrus.WithError(err).Errorf("[OUTBOX] interactions: claim failed for %s", in.ID)
		}
		enqueued++
	}

	if enqueued > 0 || skipped > 0 {
		logrus.Infof("[OUTBOX] interactions: enqueued %d, skipped %d unresolvable", enqueued, skipped)
	}
	return nil
}
