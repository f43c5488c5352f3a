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
	"github.com/sirupsen/logrus"
)

// InteractionProcessor is the sole consumer of the interact queue. One
// invocation performs exactly one engagement action on a device.
type InteractionProcessor struct {
	repo     repository.ICampaignRepository
	gate     *devicegate.Gate
	executor domain.AutomationExecutor
	freeze   domain.FreezeDetector
	clock    func() time.Time
}

func NewInteractionProcessor(repo repository.ICampaignRepository, gate *devicegate.Gate, executor domain.AutomationExecutor, freeze domain.FreezeDetector) *InteractionProcessor {
	return &InteractionProcessor{
		repo:     repo,
		gate:     gate,
		executor: executor,
		freeze:   freeze,
		clock:    time.Now,
	}
}

// Handle processes one interaction job.
func (p *InteractionProcessor) Handle(ctx context.Context, job jobqueue.Job) error {
	var payload interactionJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return jobqueue.Permanent(fmt.Errorf("decode interaction payload: %w", err))
	}

	in, err := p.repo.GetInteraction(ctx, payload.InteractionID)
	if err != nil {
		if errors.Is(err, common.ErrInteractionNotFound) {
			return jobqueue.Permanent(err)
		}
		return err
	}

	switch in.Status {
	case common.InteractionStatusCompleted:
		logrus.Debugf("[INTERACT] %s: already completed, skipping", in.ID)
		return nil
	case common.InteractionStatusFailed:
		logrus.Debugf("[INTERACT] %s: already failed terminally, skipping", in.ID)
		return nil
	}

	deviceID := in.FromDeviceID
	if deviceID == "" {
		account, err := p.repo.GetAccount(ctx, in.FromAccountID)
		if err != nil || account.DeviceID == "" {
			return p.failPermanently(ctx, in, common.ErrNoDeviceAssigned)
		}
		deviceID = account.DeviceID
	}
	if !in.HasTarget() {
		return p.failPermanently(ctx, in, common.ErrMissingTarget)
	}

	ready, err := p.gate.EnsureReady(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("readiness gate: %w", err)
	}
	if !ready.Ready {
		return p.failPermanently(ctx, in, fmt.Errorf("device %s not ready: %s", deviceID, ready.Message))
	}
	_ = p.repo.UpdateDeviceStatus(ctx, deviceID, devicegate.StatusOn, p.clock().UTC())

	target := in.TargetURL
	if in.InteractionType == common.InteractionFollow {
		target = in.TargetUsername
	}
	result, err := p.executor.Execute(ctx, domain.ExecuteRequest{
		Action:   in.InteractionType,
		DeviceID: deviceID,
		Target:   target,
		Content:  in.Content,
	})
	if err == nil && result.Success {
		if err := p.repo.MarkInteractionCompleted(ctx, in.ID); err != nil {
			return err
		}
		logrus.Infof("[INTERACT] %s: %s by %s done", in.ID, in.InteractionType, in.FromAccountID)
		p.reportPlanProgress(ctx, in.PlanID, 1, 0)
		return nil
	}

	failMsg := "automation call failed"
	if err != nil {
		failMsg = err.Error()
	} else if result.Error != "" {
		failMsg = result.Error
	}
	p.consultFreezeDetector(ctx, in.FromAccountID, deviceID, failMsg)

	// retryCount mirrors the job's attempt counter and only ever grows.
	if recErr := p.repo.RecordInteractionAttempt(ctx, in.ID, job.Attempts, failMsg); recErr != nil {
		logrus.WithError(recErr).Errorf("[INTERACT] %s: failed to record attempt", in.ID)
	}

	if job.Attempts >= job.MaxAttempts {
		if markErr := p.repo.MarkInteractionFailed(ctx, in.ID, job.Attempts, failMsg); markErr != nil {
			logrus.WithError(markErr).Errorf("[INTERACT] %s: failed to persist terminal failure", in.ID)
		}
		p.reportPlanProgress(ctx, in.PlanID, 0, 1)
	}
	return fmt.Errorf("interaction %s: %s", in.ID, failMsg)
}

func (p *InteractionProcessor) failPermanently(ctx context.Context, in common.Interaction, cause error) error {
	if err := p.repo.MarkInteractionFailed(ctx, in.ID, in.RetryCount, cause.Error()); err != nil {
		logrus.WithError(err).Errorf("[INTERACT] %s: failed to persist failure", in.ID)
	}
	p.reportPlanProgress(ctx, in.PlanID, 0, 1)
	return jobqueue.Permanent(cause)
}

func (p *InteractionProcessor) reportPlanProgress(ctx context.Context, planID string, completed, failed int) {
	if planID == "" {
		return
	}
	plan, err := p.repo.RecordPlanProgress(ctx, planID, completed, failed)
	if err != nil {
		logrus.WithError(err).Errorf("[INTERACT] plan %s: progress update failed", planID)
		return
	}
	if plan.Status == common.PlanStatusCompleted || plan.Status == common.PlanStatusFailed {
		logrus.Infof("[INTERACT] plan %s finished: %d completed, %d failed",
			plan.ID, plan.CompletedActions, plan.FailedActions)
	}
}

func (p *InteractionProcessor) consultFreezeDetector(ctx context.Context, accountID, deviceID, errMsg string) {
	if p.freeze == nil {
		return
	}
	verdict, err := p.freeze.Detect(ctx, accountID, deviceID, errMsg)
	if err != nil {
		logrus.WithError(err).Warn("[INTERACT] freeze detection failed")
		return
	}
	if !verdict.IsFrozen {
		return
	}
	logrus.Warnf("[INTERACT] account %s appears frozen (%s), attempting remedy %q",
		accountID, verdict.FreezeType, verdict.RecommendedAction)
	if _, err := p.freeze.Respond(ctx, verdict.FreezeID, accountID, deviceID, verdict.RecommendedAction); err != nil {
		logrus.WithError(err).Warn("[INTERACT] freeze response failed")
	}
}
