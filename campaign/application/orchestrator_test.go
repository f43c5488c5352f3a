package application

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/AzielCF/az-amp/campaign/domain"
	"github.com/AzielCF/az-amp/campaign/domain/common"
	"github.com/AzielCF/az-amp/core/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Queue: config.QueueConfig{
			PublishWorkers:  2,
			InteractWorkers: 2,
			MaxAttempts:     3,
			BackoffBase:     time.Millisecond,
			RetainCompleted: 100,
			RetainFailedFor: time.Hour,
		},
		Enqueuer: config.EnqueuerConfig{
			Interval:  25 * time.Millisecond,
			BatchSize: 10,
		},
		Planner: config.PlannerConfig{},
	}
}

// End to end through in-memory storage: a due approved post is picked up
// by the outbox, published, and its success hook leaves an executed
// amplification plan behind.
func TestOrchestratorPublishesAndAmplifies(t *testing.T) {
	repo := newMemRepo()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.CreateAccount(ctx, common.Account{
		ID: "acc-main", Username: "alice", DeviceID: "dev-1", Active: true,
	}))
	require.NoError(t, repo.CreateDevice(ctx, common.Device{ID: "dev-1", Name: "phone-1"}))
	seedRoles(t, repo, "proj-1", common.RoleSupport, "sup-1")
	require.NoError(t, repo.CreateScheduledPost(ctx, common.ScheduledPost{
		ID:            "post-1",
		ProjectID:     "proj-1",
		AccountID:     "acc-main",
		Content:       "launch day",
		ScheduledTime: now.Add(-time.Minute),
		Status:        common.ScheduledPostStatusPending,
		ReviewStatus:  common.ReviewStatusApproved,
	}))

	exec := &fakeExecutor{script: []executorStep{{
		result: domain.ExecuteResult{Success: true, PostURL: "https://x.com/alice/status/1"},
	}}}

	orch := NewOrchestrator(testConfig(), Deps{
		Repo:     repo,
		Executor: exec,
		Gate:     readyGate(),
		Rand:     rand.New(rand.NewSource(11)),
	})
	runCtx, cancel := context.WithCancel(ctx)
	orch.Start(runCtx)
	t.Cleanup(func() {
		cancel()
		orch.Stop()
	})

	require.Eventually(t, func() bool {
		post, err := repo.GetScheduledPost(ctx, "post-1")
		return err == nil && post.Status == common.ScheduledPostStatusPosted
	}, 5*time.Second, 10*time.Millisecond)

	// The hook planned and executed an amplification pass: the support
	// account's like now sits in the outbox with a future timestamp.
	require.Eventually(t, func() bool {
		due, err := repo.ListDueInteractions(ctx, now.Add(4*time.Hour), 10)
		return err == nil && len(due) == 1
	}, 5*time.Second, 10*time.Millisecond)

	due, err := repo.ListDueInteractions(ctx, now.Add(4*time.Hour), 10)
	require.NoError(t, err)
	assert.Equal(t, common.InteractionLike, due[0].InteractionType)
	assert.Equal(t, "sup-1", due[0].FromAccountID)
	assert.Equal(t, "https://x.com/alice/status/1", due[0].TargetURL)
	assert.True(t, due[0].ScheduledAt.After(now))
}

func TestOrchestratorHookSkipsPostsWithoutProject(t *testing.T) {
	repo := newMemRepo()
	orch := NewOrchestrator(testConfig(), Deps{
		Repo:     repo,
		Executor: &fakeExecutor{},
		Gate:     readyGate(),
		Rand:     rand.New(rand.NewSource(1)),
	})

	orch.onPostPublished(context.Background(), common.ScheduledPost{
		ID: "post-1", PostURL: "https://x.com/u/status/1",
	})

	require.Empty(t, repo.plans)
}

func TestScheduleInteractionSamplesDelayWindow(t *testing.T) {
	repo := newMemRepo()
	ctx := context.Background()
	require.NoError(t, repo.CreateAccount(ctx, common.Account{
		ID: "acc-1", Username: "alice", DeviceID: "dev-1", Active: true,
	}))

	orch := NewOrchestrator(testConfig(), Deps{
		Repo:     repo,
		Executor: &fakeExecutor{},
		Gate:     readyGate(),
		Rand:     rand.New(rand.NewSource(5)),
	})

	before := time.Now().UTC()
	in, err := orch.ScheduleInteraction(ctx, common.InteractionFollow, "acc-1", "", "someuser", "")
	require.NoError(t, err)
	require.Equal(t, common.InteractionStatusPending, in.Status)
	require.Equal(t, "dev-1", in.FromDeviceID)
	require.Equal(t, "someuser", in.TargetUsername)

	window := DefaultDelayRanges[common.InteractionFollow]
	offset := in.ScheduledAt.Sub(before)
	require.GreaterOrEqual(t, offset, time.Duration(window.Min)*time.Minute-time.Second)
	require.LessOrEqual(t, offset, time.Duration(window.Max)*time.Minute+time.Second)

	stored, err := repo.GetInteraction(ctx, in.ID)
	require.NoError(t, err)
	require.Equal(t, in.ID, stored.ID)
}

func TestScheduleInteractionUnknownAccount(t *testing.T) {
	orch := NewOrchestrator(testConfig(), Deps{
		Repo:     newMemRepo(),
		Executor: &fakeExecutor{},
		Gate:     readyGate(),
	})
	_, err := orch.ScheduleInteraction(context.Background(), common.InteractionLike, "ghost", "url", "", "")
	require.ErrorIs(t, err, common.ErrAccountNotFound)
}
