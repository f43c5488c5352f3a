package application

import (
	"context"
	"encoding/json"
	"time"

	"github.com/AzielCF/az-amp/campaign/repository"
	"github.com/AzielCF/az-amp/infrastructure/valkey"
	"github.com/AzielCF/az-amp/pkg/jobqueue"
	"github.com/sirupsen/logrus"
)

type postJobPayload struct {
	PostID string `json:"post_id"`
}

// PostEnqueuer polls the store for due, approved posts and pushes one job
// per row into the publish queue. Rows are claimed to "processing" right
// after the enqueue so a poll within the same minute cannot re-select them
// even if the queue's own dedup were bypassed.
type PostEnqueuer struct {
	repo         repository.ICampaignRepository
	queue        *jobqueue.Queue
	valkeyClient *valkey.Client // optional, for multi-replica leader lock
	interval     time.Duration
	batchSize    int
	clock        func() time.Time
}

func NewPostEnqueuer(repo repository.ICampaignRepository, queue *jobqueue.Queue, vk *valkey.Client, interval time.Duration, batchSize int) *PostEnqueuer {
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 20
	}
	return &PostEnqueuer{
		repo:         repo,
		queue:        queue,
		valkeyClient: vk,
		interval:     interval,
		batchSize:    batchSize,
		clock:        time.Now,
	}
}

// Run blocks until ctx is canceled, polling once per interval
// (and once immediately on start).
func (e *PostEnqueuer) Run(ctx context.Context) {
	outboxLoop(ctx, "posts", e.interval, func(ctx context.Context) {
		if err := e.RunOnce(ctx); err != nil {
			logrus.WithError(err).Error("[OUTBOX] posts: poll failed")
		}
	})
}

// RunOnce performs a single bounded poll-and-enqueue pass.
func (e *PostEnqueuer) RunOnce(ctx context.Context) error {
	if e.valkeyClient != nil && !e.valkeyClient.AcquireLock(ctx, "lock:enqueuer:posts", e.interval-5*time.Second) {
		return nil // another replica holds the poll window
	}

	posts, err := e.repo.ListDueScheduledPosts(ctx, e.clock().UTC(), e.batchSize)
	if err != nil {
		return err
	}

	for _, post := range posts {
		payload, err := json.Marshal(postJobPayload{PostID: post.ID})
		if err != nil {
			return err
		}
		if _, err := e.queue.Enqueue(payload, jobqueue.Options{DedupKey: dedupPrefixPost + post.ID}); err != nil {
			logrus.WithError(err).Errorf("[OUTBOX] posts: enqueue failed for %s", post.ID)
			continue
		}
		// Claim in the store as well; the dedup key alone would already
		// prevent a duplicate job, this is defense in depth.
		if err := e.repo.ClaimScheduledPost(ctx, post.ID); err != nil {
			logrus.WithError(err).Errorf("[OUTBOX] posts: claim failed for %s", post.ID)
		}
	}

	if len(posts) > 0 {
		logrus.Infof("[OUTBOX] posts: enqueued %d due posts", len(posts))
	}
	return nil
}
