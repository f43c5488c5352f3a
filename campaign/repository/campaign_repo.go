package repository

import (
	"context"
	"time"

	"github.com/AzielCF/az-amp/campaign/domain/common"
)

type ICampaignRepository interface {
	Init(ctx context.Context) error

	// Scheduled Posts
	CreateScheduledPost(ctx context.Context, post common.ScheduledPost) error
	GetScheduledPost(ctx context.Context, id string) (common.ScheduledPost, error)
	UpdateScheduledPost(ctx context.Context, post common.ScheduledPost) error
	ListDueScheduledPosts(ctx context.Context, now time.Time, limit int) ([]common.ScheduledPost, error)
	ClaimScheduledPost(ctx context.Context, id string) error
	MarkPostPosted(ctx context.Context, id, postURL, screenshotRef string) error
	MarkPostFailed(ctx context.Context, id, message string) error

	// Interactions
	CreateInteraction(ctx context.Context, in common.Interaction) error
	GetInteraction(ctx context.Context, id string) (common.Interaction, error)
	ListDueInteractions(ctx context.Context, now time.Time, limit int) ([]common.Interaction, error)
	ClaimInteraction(ctx context.Context, id string) error
	RecordInteractionAttempt(ctx context.Context, id string, retryCount int, message string) error
	MarkInteractionCompleted(ctx context.Context, id string) error
	MarkInteractionFailed(ctx context.Context, id string, retryCount int, message string) error

	// Orchestration Plans
	CreatePlan(ctx context.Context, plan common.OrchestrationPlan) error
	GetPlan(ctx context.Context, id string) (common.OrchestrationPlan, error)
	TransitionPlan(ctx context.Context, id string, to common.PlanStatus) error
	RecordPlanProgress(ctx context.Context, id string, completedDelta, failedDelta int) (common.OrchestrationPlan, error)

	// Account Roles
	UpsertAccountRole(ctx context.Context, role common.AccountRole) error
	ListActiveRoles(ctx context.Context, projectID string) ([]common.AccountRole, error)

	// Accounts & Devices
	CreateAccount(ctx context.Context, acc common.Account) error
	GetAccount(ctx context.Context, id string) (common.Account, error)
	CreateDevice(ctx context.Context, dev common.Device) error
	GetDevice(ctx context.Context, id string) (common.Device, error)
	UpdateDeviceStatus(ctx context.Context, id string, statusCode int, checkedAt time.Time) error
}
