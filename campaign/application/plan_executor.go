package application

import (
	"context"
	"fmt"
	"time"

	"github.com/AzielCF/az-amp/campaign/domain/common"
	"github.com/AzielCF/az-amp/campaign/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PlanExecutor materializes a persisted plan into individual interaction
// rows with absolute scheduled timestamps. The rows then flow through the
// enqueuer -> queue -> processor pipeline like any other interaction.
type PlanExecutor struct {
	repo  repository.ICampaignRepository
	clock func() time.Time
}

func NewPlanExecutor(repo repository.ICampaignRepository) *PlanExecutor {
	return &PlanExecutor{repo: repo, clock: time.Now}
}

// ExecutePlan loads a plan in planned status (no-op otherwise), marks it
// in_progress before creating any rows so a crash mid-execution is visible,
// then inserts one pending interaction per resolvable action. Actions whose
// account has no device are skipped and counted as failed.
func (e *PlanExecutor) ExecutePlan(ctx context.Context, planID string) error {
	plan, err := e.repo.GetPlan(ctx, planID)
	if err != nil {
		return err
	}
	if plan.Status != common.PlanStatusPlanned {
		logrus.Infof("[PLAN_EXEC] plan %s is %s, nothing to execute", planID, plan.Status)
		return nil
	}

	if err := e.repo.TransitionPlan(ctx, planID, common.PlanStatusInProgress); err != nil {
		return fmt.Errorf("mark plan %s in progress: %w", planID, err)
	}

	now := e.clock().UTC()
	created, skipped := 0, 0
	for _, action := range plan.Actions {
		account, err := e.repo.GetAccount(ctx, action.AccountID)
		if err != nil || account.DeviceID == "" {
			skipped++
			if _, perr := e.repo.RecordPlanProgress(ctx, planID, 0, 1); perr != nil {
				logrus.WithError(perr).Errorf("[PLAN_EXEC] plan %s: progress update failed", planID)
			}
			logrus.Warnf("[PLAN_EXEC] plan %s: account %s has no usable device, action skipped",
				planID, action.AccountID)
			continue
		}

		in := common.Interaction{
			ID:              uuid.NewString(),
			PlanID:          planID,
			InteractionType: action.ActionType,
			FromAccountID:   account.ID,
			FromDeviceID:    account.DeviceID,
			TargetURL:       plan.PostURL,
			Content:         action.Content,
			Status:          common.InteractionStatusPending,
			ScheduledAt:     now.Add(time.Duration(action.DelayMinutes) * time.Minute),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := e.repo.CreateInteraction(ctx, in); err != nil {
			skipped++
			if _, perr := e.repo.RecordPlanProgress(ctx, planID, 0, 1); perr != nil {
				logrus.WithError(perr).Errorf("[PLAN_EXEC] plan %s: progress update failed", planID)
			}
			logrus.WithError(err).Errorf("[PLAN_EXEC] plan %s: failed to create interaction", planID)
			continue
		}
		created++
	}

	logrus.Infof("[PLAN_EXEC] plan %s: %d interactions created, %d actions skipped",
		planID, created, skipped)
	return nil
}
