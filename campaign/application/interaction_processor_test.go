package application

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/AzielCF/az-amp/campaign/domain"
	"github.com/AzielCF/az-amp/campaign/domain/common"
	"github.com/AzielCF/az-amp/pkg/jobqueue"
	"github.com/stretchr/testify/require"
)

func interactionJob(t *testing.T, interactionID string, attempts, maxAttempts int) jobqueue.Job {
	t.Helper()
	payload, err := json.Marshal(interactionJobPayload{InteractionID: interactionID})
	require.NoError(t, err)
	return jobqueue.Job{
		ID:          "job-" + interactionID,
		Queue:       QueueInteract,
		DedupKey:    dedupPrefixInteraction + interactionID,
		Payload:     payload,
		Attempts:    attempts,
		MaxAttempts: maxAttempts,
	}
}

func TestInteractionSuccessCompletesAndReportsProgress(t *testing.T) {
	repo := newMemRepo()
	ctx := context.Background()
	require.NoError(t, repo.CreatePlan(ctx, common.OrchestrationPlan{
		ID: "plan-1", Status: common.PlanStatusInProgress, TotalActions: 1,
	}))
	require.NoError(t, repo.CreateInteraction(ctx, common.Interaction{
		ID:              "in-1",
		PlanID:          "plan-1",
		InteractionType: common.InteractionLike,
		FromAccountID:   "acc-1",
		FromDeviceID:    "dev-1",
		TargetURL:       "https://x.com/u/status/1",
		Status:          common.InteractionStatusProcessing,
	}))

	exec := &fakeExecutor{}
	proc := NewInteractionProcessor(repo, readyGate(), exec, nil)
	require.NoError(t, proc.Handle(ctx, interactionJob(t, "in-1", 1, 3)))

	in, err := repo.GetInteraction(ctx, "in-1")
	require.NoError(t, err)
	require.Equal(t, common.InteractionStatusCompleted, in.Status)

	plan, err := repo.GetPlan(ctx, "plan-1")
	require.NoError(t, err)
	require.Equal(t, 1, plan.CompletedActions)
	require.Equal(t, common.PlanStatusCompleted, plan.Status)

	calls := exec.calls()
	require.Len(t, calls, 1)
	require.Equal(t, common.InteractionLike, calls[0].Action)
	require.Equal(t, "https://x.com/u/status/1", calls[0].Target)
}

func TestInteractionFollowTargetsUsername(t *testing.T) {
	repo := newMemRepo()
	ctx := context.Background()
	require.NoError(t, repo.CreateInteraction(ctx, common.Interaction{
		ID:              "in-follow",
		InteractionType: common.InteractionFollow,
		FromAccountID:   "acc-1",
		FromDeviceID:    "dev-1",
		TargetUsername:  "someuser",
		Status:          common.InteractionStatusProcessing,
	}))

	exec := &fakeExecutor{}
	proc := NewInteractionProcessor(repo, readyGate(), exec, nil)
	require.NoError(t, proc.Handle(ctx, interactionJob(t, "in-follow", 1, 3)))

	calls := exec.calls()
	require.Len(t, calls, 1)
	require.Equal(t, "someuser", calls[0].Target)
}

func TestInteractionFallsBackToAccountDevice(t *testing.T) {
	repo := newMemRepo()
	ctx := context.Background()
	require.NoError(t, repo.CreateAccount(ctx, common.Account{
		ID: "acc-1", Username: "alice", DeviceID: "dev-7", Active: true,
	}))
	require.NoError(t, repo.CreateInteraction(ctx, common.Interaction{
		ID:              "in-1",
		InteractionType: common.InteractionLike,
		FromAccountID:   "acc-1",
		TargetURL:       "https://x.com/u/status/1",
		Status:          common.InteractionStatusProcessing,
	}))

	exec := &fakeExecutor{}
	proc := NewInteractionProcessor(repo, readyGate(), exec, nil)
	require.NoError(t, proc.Handle(ctx, interactionJob(t, "in-1", 1, 3)))
	require.Equal(t, "dev-7", exec.calls()[0].DeviceID)
}

func TestInteractionWithoutAnyDeviceFailsPermanently(t *testing.T) {
	repo := newMemRepo()
	ctx := context.Background()
	require.NoError(t, repo.CreateAccount(ctx, common.Account{
		ID: "acc-1", Username: "alice", Active: true,
	}))
	require.NoError(t, repo.CreateInteraction(ctx, common.Interaction{
		ID:              "in-1",
		InteractionType: common.InteractionLike,
		FromAccountID:   "acc-1",
		TargetURL:       "https://x.com/u/status/1",
		Status:          common.InteractionStatusProcessing,
	}))

	proc := NewInteractionProcessor(repo, readyGate(), &fakeExecutor{}, nil)
	err := proc.Handle(ctx, interactionJob(t, "in-1", 1, 3))
	require.True(t, jobqueue.IsPermanent(err))

	in, gerr := repo.GetInteraction(ctx, "in-1")
	require.NoError(t, gerr)
	require.Equal(t, common.InteractionStatusFailed, in.Status)
}

func TestInteractionRetryRecordsAttempt(t *testing.T) {
	repo := newMemRepo()
	ctx := context.Background()
	require.NoError(t, repo.CreateInteraction(ctx, common.Interaction{
		ID:              "in-1",
		InteractionType: common.InteractionComment,
		FromAccountID:   "acc-1",
		FromDeviceID:    "dev-1",
		TargetURL:       "https://x.com/u/status/1",
		Content:         "good point",
		Status:          common.InteractionStatusProcessing,
	}))

	exec := &fakeExecutor{script: []executorStep{{
		result: domain.ExecuteResult{Success: false, Error: "comment field not found"},
	}}}
	proc := NewInteractionProcessor(repo, readyGate(), exec, nil)

	err := proc.Handle(ctx, interactionJob(t, "in-1", 1, 3))
	require.Error(t, err)
	require.False(t, jobqueue.IsPermanent(err))

	in, gerr := repo.GetInteraction(ctx, "in-1")
	require.NoError(t, gerr)
	require.Equal(t, common.InteractionStatusProcessing, in.Status)
	require.Equal(t, 1, in.RetryCount)
	require.Contains(t, in.Error, "comment field not found")
}

func TestInteractionFinalAttemptFailsTerminally(t *testing.T) {
	repo := newMemRepo()
	ctx := context.Background()
	require.NoError(t, repo.CreatePlan(ctx, common.OrchestrationPlan{
		ID: "plan-1", Status: common.PlanStatusInProgress, TotalActions: 1,
	}))
	require.NoError(t, repo.CreateInteraction(ctx, common.Interaction{
		ID:              "in-1",
		PlanID:          "plan-1",
		InteractionType: common.InteractionLike,
		FromAccountID:   "acc-1",
		FromDeviceID:    "dev-1",
		TargetURL:       "https://x.com/u/status/1",
		Status:          common.InteractionStatusProcessing,
		RetryCount:      2,
	}))

	exec := &fakeExecutor{script: []executorStep{{
		result: domain.ExecuteResult{Success: false, Error: "rate limit exceeded"},
	}}}
	freeze := &fakeFreeze{verdict: domain.FreezeVerdict{
		FreezeID: "frz-1", IsFrozen: true, FreezeType: "rate_limit", RecommendedAction: "cooldown",
	}}
	proc := NewInteractionProcessor(repo, readyGate(), exec, freeze)

	err := proc.Handle(ctx, interactionJob(t, "in-1", 3, 3))
	require.Error(t, err)

	in, gerr := repo.GetInteraction(ctx, "in-1")
	require.NoError(t, gerr)
	require.Equal(t, common.InteractionStatusFailed, in.Status)
	require.Equal(t, 3, in.RetryCount)

	plan, perr := repo.GetPlan(ctx, "plan-1")
	require.NoError(t, perr)
	require.Equal(t, 1, plan.FailedActions)
	require.Equal(t, common.PlanStatusFailed, plan.Status)

	require.Equal(t, 1, freeze.detectCount())
}

func TestInteractionSkipsTerminalRows(t *testing.T) {
	repo := newMemRepo()
	ctx := context.Background()
	require.NoError(t, repo.CreateInteraction(ctx, common.Interaction{
		ID:              "in-done",
		InteractionType: common.InteractionLike,
		Status:          common.InteractionStatusCompleted,
	}))

	exec := &fakeExecutor{}
	proc := NewInteractionProcessor(repo, readyGate(), exec, nil)
	require.NoError(t, proc.Handle(ctx, interactionJob(t, "in-done", 1, 3)))
	require.Empty(t, exec.calls())
}

func TestInteractionUnreadyDeviceFailsPermanently(t *testing.T) {
	repo := newMemRepo()
	ctx := context.Background()
	require.NoError(t, repo.CreateInteraction(ctx, common.Interaction{
		ID:              "in-1",
		InteractionType: common.InteractionLike,
		FromAccountID:   "acc-1",
		FromDeviceID:    "dev-1",
		TargetURL:       "https://x.com/u/status/1",
		Status:          common.InteractionStatusProcessing,
	}))

	exec := &fakeExecutor{}
	proc := NewInteractionProcessor(repo, blockedGate(), exec, nil)
	err := proc.Handle(ctx, interactionJob(t, "in-1", 1, 3))
	require.True(t, jobqueue.IsPermanent(err))
	require.Empty(t, exec.calls())
}
