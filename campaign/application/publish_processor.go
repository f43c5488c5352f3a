package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AzielCF/az-amp/campaign/domain"
	"github.com/AzielCF/az-amp/campaign/domain/common"
	"github.com/AzielCF/az-amp/campaign/repository"
	"github.com/AzielCF/az-amp/pkg/devicegate"
	"github.com/AzielCF/az-amp/pkg/jobqueue"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PostSuccessHook runs after a post has been published. The orchestrator
// wires the planner in here.
type PostSuccessHook func(ctx context.Context, post common.ScheduledPost)

// PublishProcessor is the sole consumer of the publish queue. It readies
// the account's device, invokes the automation backend and persists the
// outcome. Retries are owned by the queue; the row's status is
// observational while the job is alive.
type PublishProcessor struct {
	repo      repository.ICampaignRepository
	gate      *devicegate.Gate
	executor  domain.AutomationExecutor
	freeze    domain.FreezeDetector
	onSuccess PostSuccessHook
	clock     func() time.Time
}

func NewPublishProcessor(repo repository.ICampaignRepository, gate *devicegate.Gate, executor domain.AutomationExecutor, freeze domain.FreezeDetector) *PublishProcessor {
	return &PublishProcessor{
		repo:     repo,
		gate:     gate,
		executor: executor,
		freeze:   freeze,
		clock:    time.Now,
	}
}

// SetSuccessHook registers the post-publish callback.
func (p *PublishProcessor) SetSuccessHook(hook PostSuccessHook) {
	p.onSuccess = hook
}

// Handle processes one publish job.
func (p *PublishProcessor) Handle(ctx context.Context, job jobqueue.Job) error {
	var payload postJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return jobqueue.Permanent(fmt.Errorf("decode publish payload: %w", err))
	}

	post, err := p.repo.GetScheduledPost(ctx, payload.PostID)
	if err != nil {
		if errors.Is(err, common.ErrPostNotFound) {
			return jobqueue.Permanent(err)
		}
		return err
	}

	// A concurrent path may already have finished this row.
	switch post.Status {
	case common.ScheduledPostStatusPosted:
		logrus.Debugf("[PUBLISH] %s: already posted, skipping", post.ID)
		return nil
	case common.ScheduledPostStatusFailed:
		logrus.Debugf("[PUBLISH] %s: already failed terminally, skipping", post.ID)
		return nil
	}

	account, err := p.repo.GetAccount(ctx, post.AccountID)
	if err != nil {
		return p.failPermanently(ctx, post.ID, fmt.Errorf("resolve account %s: %w", post.AccountID, err))
	}
	if !account.Active {
		return p.failPermanently(ctx, post.ID, fmt.Errorf("account %s is inactive", account.ID))
	}
	if account.DeviceID == "" {
		return p.failPermanently(ctx, post.ID, common.ErrNoDeviceAssigned)
	}

	// Device readiness is a precondition, not an automation attempt: a
	// gate failure fails the row without burning further queue retries.
	ready, err := p.gate.EnsureReady(ctx, account.DeviceID)
	if err != nil {
		return fmt.Errorf("readiness gate: %w", err)
	}
	if !ready.Ready {
		return p.failPermanently(ctx, post.ID, fmt.Errorf("device %s not ready: %s", account.DeviceID, ready.Message))
	}
	_ = p.repo.UpdateDeviceStatus(ctx, account.DeviceID, devicegate.StatusOn, p.clock().UTC())

	result, err := p.executor.Execute(ctx, domain.ExecuteRequest{
		Action:   domain.PublishAction,
		DeviceID: account.DeviceID,
		Content:  post.Content,
	})
	if err == nil && result.Success {
		if err := p.repo.MarkPostPosted(ctx, post.ID, result.PostURL, result.ScreenshotRef); err != nil {
			return err
		}
		logrus.Infof("[PUBLISH] %s: published by %s -> %s", post.ID, account.Username, result.PostURL)

		if post.RepeatInterval > 0 {
			p.scheduleNextOccurrence(ctx, post)
		}
		if p.onSuccess != nil {
			post.PostURL = result.PostURL
			p.onSuccess(ctx, post)
		}
		return nil
	}

	failMsg := "automation call failed"
	if err != nil {
		failMsg = err.Error()
	} else if result.Error != "" {
		failMsg = result.Error
	}
	p.consultFreezeDetector(ctx, account.ID, account.DeviceID, failMsg)

	if job.Attempts >= job.MaxAttempts {
		// Final attempt: the row becomes terminal. MarkPostFailed skips
		// the write if a concurrent path already marked it posted.
		if markErr := p.repo.MarkPostFailed(ctx, post.ID, failMsg); markErr != nil {
			logrus.WithError(markErr).Errorf("[PUBLISH] %s: failed to persist terminal failure", post.ID)
		}
	}
	return fmt.Errorf("publish %s: %s", post.ID, failMsg)
}

// failPermanently persists a validation failure and tells the queue not
// to retry.
func (p *PublishProcessor) failPermanently(ctx context.Context, postID string, cause error) error {
	if err := p.repo.MarkPostFailed(ctx, postID, cause.Error()); err != nil {
		logrus.WithError(err).Errorf("[PUBLISH] %s: failed to persist failure", postID)
	}
	return jobqueue.Permanent(cause)
}

func (p *PublishProcessor) consultFreezeDetector(ctx context.Context, accountID, deviceID, errMsg string) {
	if p.freeze == nil {
		return
	}
	verdict, err := p.freeze.Detect(ctx, accountID, deviceID, errMsg)
	if err != nil {
		logrus.WithError(err).Warn("[PUBLISH] freeze detection failed")
		return
	}
	if !verdict.IsFrozen {
		return
	}
	logrus.Warnf("[PUBLISH] account %s appears frozen (%s), attempting remedy %q",
		accountID, verdict.FreezeType, verdict.RecommendedAction)
	resp, err := p.freeze.Respond(ctx, verdict.FreezeID, accountID, deviceID, verdict.RecommendedAction)
	if err != nil {
		logrus.WithError(err).Warn("[PUBLISH] freeze response failed")
		return
	}
	logrus.Infof("[PUBLISH] freeze remedy for %s: %s", accountID, resp.Message)
}

// scheduleNextOccurrence inserts the next pending row for recurring posts.
func (p *PublishProcessor) scheduleNextOccurrence(ctx context.Context, post common.ScheduledPost) {
	now := p.clock().UTC()
	next := post.ScheduledTime.Add(time.Duration(post.RepeatInterval) * time.Minute)
	for !next.After(now) {
		next = next.Add(time.Duration(post.RepeatInterval) * time.Minute)
	}
	repeat := common.ScheduledPost{
		ID:             uuid.NewString(),
		ProjectID:      post.ProjectID,
		AccountID:      post.AccountID,
		Content:        post.Content,
		ScheduledTime:  next,
		Status:         common.ScheduledPostStatusPending,
		ReviewStatus:   post.ReviewStatus,
		RepeatInterval: post.RepeatInterval,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := p.repo.CreateScheduledPost(ctx, repeat); err != nil {
		logrus.WithError(err).Errorf("[PUBLISH] %s: failed to schedule next occurrence", post.ID)
		return
	}
	logrus.Infof("[PUBLISH] %s: next occurrence scheduled at %s", post.ID, next)
}
