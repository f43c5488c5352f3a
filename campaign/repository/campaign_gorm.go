package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AzielCF/az-amp/campaign/domain/common"
	"gorm.io/gorm"
)

// --- Persistence Models ---

type scheduledPostModel struct {
	ID             string         `gorm:"primaryKey"`
	ProjectID      string         `gorm:"column:project_id;not null;index"`
	AccountID      string         `gorm:"column:account_id;not null;index"`
	Content        string         `gorm:"type:text"`
	ScheduledTime  time.Time      `gorm:"column:scheduled_time;not null;index"`
	Status         string         `gorm:"default:'pending';index"`
	ReviewStatus   string         `gorm:"column:review_status;default:'draft';index"`
	RepeatInterval int            `gorm:"column:repeat_interval;default:0"`
	PostURL        sql.NullString `gorm:"column:post_url"`
	ScreenshotRef  sql.NullString `gorm:"column:screenshot_ref"`
	Error          sql.NullString
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

func (scheduledPostModel) TableName() string { return "scheduled_posts" }

type interactionModel struct {
	ID              string         `gorm:"primaryKey"`
	PlanID          sql.NullString `gorm:"column:plan_id;index"`
	InteractionType string         `gorm:"column:interaction_type;not null"`
	FromAccountID   string         `gorm:"column:from_account_id;not null;index"`
	FromDeviceID    sql.NullString `gorm:"column:from_device_id"`
	TargetURL       sql.NullString `gorm:"column:target_url"`
	TargetUsername  sql.NullString `gorm:"column:target_username"`
	Content         sql.NullString `gorm:"type:text"`
	Status          string         `gorm:"default:'pending';index"`
	RetryCount      int            `gorm:"column:retry_count;default:0"`
	ScheduledAt     time.Time      `gorm:"column:scheduled_at;not null;index"`
	Error           sql.NullString
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

func (interactionModel) TableName() string { return "interactions" }

type orchestrationPlanModel struct {
	ID               string `gorm:"primaryKey"`
	ProjectID        string `gorm:"column:project_id;not null;index"`
	TriggerPostID    string `gorm:"column:trigger_post_id;not null;index"`
	PostURL          sql.NullString `gorm:"column:post_url"`
	PlanType         string `gorm:"column:plan_type;not null"`
	Status           string `gorm:"default:'planned';index"`
	Actions          string `gorm:"type:text"` // JSON, immutable once persisted
	TotalActions     int    `gorm:"column:total_actions;default:0"`
	CompletedActions int    `gorm:"column:completed_actions;default:0"`
	FailedActions    int    `gorm:"column:failed_actions;default:0"`
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

func (orchestrationPlanModel) TableName() string { return "orchestration_plans" }

type accountRoleModel struct {
	ID        string `gorm:"primaryKey"`
	ProjectID string `gorm:"column:project_id;not null;uniqueIndex:idx_project_account"`
	AccountID string `gorm:"column:account_id;not null;uniqueIndex:idx_project_account"`
	Role      string `gorm:"not null"`
	Priority  int    `gorm:"default:0"`
	Active    bool   `gorm:"default:true"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (accountRoleModel) TableName() string { return "account_roles" }

type accountModel struct {
	ID        string         `gorm:"primaryKey"`
	Username  string         `gorm:"not null;uniqueIndex"`
	DeviceID  sql.NullString `gorm:"column:device_id"`
	Persona   sql.NullString `gorm:"type:text"`
	Active    bool           `gorm:"default:true"`
	CreatedAt time.Time      `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"not null"`
}

func (accountModel) TableName() string { return "accounts" }

type deviceModel struct {
	ID         string    `gorm:"primaryKey"`
	Name       string    `gorm:"not null"`
	StatusCode int       `gorm:"column:status_code;default:0"`
	CheckedAt  time.Time `gorm:"column:checked_at"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

func (deviceModel) TableName() string { return "devices" }

// --- Repository Implementation ---

type CampaignGormRepository struct {
	db *gorm.DB
}

func NewCampaignGormRepository(db *gorm.DB) *CampaignGormRepository {
	return &CampaignGormRepository{db: db}
}

func (r *CampaignGormRepository) Init(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(
		&scheduledPostModel{},
		&interactionModel{},
		&orchestrationPlanModel{},
		&accountRoleModel{},
		&accountModel{},
		&deviceModel{},
	)
}

// Scheduled Posts

func (r *CampaignGormRepository) CreateScheduledPost(ctx context.Context, post common.ScheduledPost) error {
	m := toPostModel(post)
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *CampaignGormRepository) GetScheduledPost(ctx context.Context, id string) (common.ScheduledPost, error) {
	var m scheduledPostModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return common.ScheduledPost{}, common.ErrPostNotFound
		}
		return common.ScheduledPost{}, err
	}
	return fromPostModel(m), nil
}

func (r *CampaignGormRepository) UpdateScheduledPost(ctx context.Context, post common.ScheduledPost) error {
	m := toPostModel(post)
	return r.db.WithContext(ctx).Save(&m).Error
}

// ListDueScheduledPosts selects pending, approved rows whose scheduled time
// has passed, oldest first, capped at limit.
func (r *CampaignGormRepository) ListDueScheduledPosts(ctx context.Context, now time.Time, limit int) ([]common.ScheduledPost, error) {
	var models []scheduledPostModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND review_status = ? AND scheduled_time <= ?",
			string(common.ScheduledPostStatusPending), string(common.ReviewStatusApproved), now).
		Order("scheduled_time ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	posts := make([]common.ScheduledPost, len(models))
	for i, m := range models {
		posts[i] = fromPostModel(m)
	}
	return posts, nil
}

// ClaimScheduledPost flips a pending row to processing so the next poll
// does not re-select it. No-op when the row was already claimed.
func (r *CampaignGormRepository) ClaimScheduledPost(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&scheduledPostModel{}).
		Where("id = ? AND status = ?", id, string(common.ScheduledPostStatusPending)).
		Updates(map[string]any{
			"status":     string(common.ScheduledPostStatusProcessing),
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *CampaignGormRepository) MarkPostPosted(ctx context.Context, id, postURL, screenshotRef string) error {
	return r.db.WithContext(ctx).Model(&scheduledPostModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":         string(common.ScheduledPostStatusPosted),
			"post_url":       nullString(postURL),
			"screenshot_ref": nullString(screenshotRef),
			"error":          sql.NullString{},
			"updated_at":     time.Now().UTC(),
		}).Error
}

// MarkPostFailed writes a terminal failure unless a concurrent path already
// moved the row to posted (terminal-success race guard).
func (r *CampaignGormRepository) MarkPostFailed(ctx context.Context, id, message string) error {
	return r.db.WithContext(ctx).Model(&scheduledPostModel{}).
		Where("id = ? AND status <> ?", id, string(common.ScheduledPostStatusPosted)).
		Updates(map[string]any{
			"status":     string(common.ScheduledPostStatusFailed),
			"error":      nullString(message),
			"updated_at": time.Now().UTC(),
		}).Error
}

// Interactions

func (r *CampaignGormRepository) CreateInteraction(ctx context.Context, in common.Interaction) error {
	m := toInteractionModel(in)
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *CampaignGormRepository) GetInteraction(ctx context.Context, id string) (common.Interaction, error) {
	var m interactionModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return common.Interaction{}, common.ErrInteractionNotFound
		}
		return common.Interaction{}, err
	}
	return fromInteractionModel(m), nil
}

func (r *CampaignGormRepository) ListDueInteractions(ctx context.Context, now time.Time, limit int) ([]common.Interaction, error) {
	var models []interactionModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_at <= ?", string(common.InteractionStatusPending), now).
		Order("scheduled_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]common.Interaction, len(models))
	for i, m := range models {
		out[i] = fromInteractionModel(m)
	}
	return out, nil
}

func (r *CampaignGormRepository) ClaimInteraction(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&interactionModel{}).
		Where("id = ? AND status = ?", id, string(common.InteractionStatusPending)).
		Updates(map[string]any{
			"status":     string(common.InteractionStatusProcessing),
			"updated_at": time.Now().UTC(),
		}).Error
}

// RecordInteractionAttempt bumps the monotonic retry counter after a failed
// attempt while the queue still owns further retries.
func (r *CampaignGormRepository) RecordInteractionAttempt(ctx context.Context, id string, retryCount int, message string) error {
	return r.db.WithContext(ctx).Model(&interactionModel{}).
		Where("id = ? AND retry_count < ?", id, retryCount).
		Updates(map[string]any{
			"retry_count": retryCount,
			"error":       nullString(message),
			"updated_at":  time.Now().UTC(),
		}).Error
}

func (r *CampaignGormRepository) MarkInteractionCompleted(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&interactionModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     string(common.InteractionStatusCompleted),
			"error":      sql.NullString{},
			"updated_at": time.Now().UTC(),
		}).Error
}

// MarkInteractionFailed writes the terminal failure unless the row already
// completed through a concurrent path.
func (r *CampaignGormRepository) MarkInteractionFailed(ctx context.Context, id string, retryCount int, message string) error {
	return r.db.WithContext(ctx).Model(&interactionModel{}).
		Where("id = ? AND status <> ?", id, string(common.InteractionStatusCompleted)).
		Updates(map[string]any{
			"status":      string(common.InteractionStatusFailed),
			"retry_count": retryCount,
			"error":       nullString(message),
			"updated_at":  time.Now().UTC(),
		}).Error
}

// Orchestration Plans

func (r *CampaignGormRepository) CreatePlan(ctx context.Context, plan common.OrchestrationPlan) error {
	m, err := toPlanModel(plan)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *CampaignGormRepository) GetPlan(ctx context.Context, id string) (common.OrchestrationPlan, error) {
	var m orchestrationPlanModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return common.OrchestrationPlan{}, common.ErrPlanNotFound
		}
		return common.OrchestrationPlan{}, err
	}
	return fromPlanModel(m)
}

// TransitionPlan enforces the forward-only status machine at the database
// row: the UPDATE is conditional on the expected source status.
func (r *CampaignGormRepository) TransitionPlan(ctx context.Context, id string, to common.PlanStatus) error {
	plan, err := r.GetPlan(ctx, id)
	if err != nil {
		return err
	}
	if !plan.Status.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", common.ErrInvalidTransition, plan.Status, to)
	}
	res := r.db.WithContext(ctx).Model(&orchestrationPlanModel{}).
		Where("id = ? AND status = ?", id, string(plan.Status)).
		Updates(map[string]any{
			"status":     string(to),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: plan %s changed concurrently", common.ErrInvalidTransition, id)
	}
	return nil
}

// RecordPlanProgress adds to the completed/failed counters and finalizes
// the plan once every action is accounted for.
func (r *CampaignGormRepository) RecordPlanProgress(ctx context.Context, id string, completedDelta, failedDelta int) (common.OrchestrationPlan, error) {
	err := r.db.WithContext(ctx).Model(&orchestrationPlanModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"completed_actions": gorm.Expr("completed_actions + ?", completedDelta),
			"failed_actions":    gorm.Expr("failed_actions + ?", failedDelta),
			"updated_at":        time.Now().UTC(),
		}).Error
	if err != nil {
		return common.OrchestrationPlan{}, err
	}

	plan, err := r.GetPlan(ctx, id)
	if err != nil {
		return common.OrchestrationPlan{}, err
	}
	if plan.Status == common.PlanStatusInProgress && plan.CompletedActions+plan.FailedActions >= plan.TotalActions {
		final := common.PlanStatusCompleted
		if plan.CompletedActions == 0 {
			final = common.PlanStatusFailed
		}
		if err := r.TransitionPlan(ctx, id, final); err != nil {
			return common.OrchestrationPlan{}, err
		}
		plan.Status = final
	}
	return plan, nil
}

// Account Roles

func (r *CampaignGormRepository) UpsertAccountRole(ctx context.Context, role common.AccountRole) error {
	var existing accountRoleModel
	err := r.db.WithContext(ctx).
		First(&existing, "project_id = ? AND account_id = ?", role.ProjectID, role.AccountID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		m := toRoleModel(role)
		return r.db.WithContext(ctx).Create(&m).Error
	case err != nil:
		return err
	}
	return r.db.WithContext(ctx).Model(&accountRoleModel{}).
		Where("id = ?", existing.ID).
		Updates(map[string]any{
			"role":       string(role.Role),
			"priority":   role.Priority,
			"active":     role.Active,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *CampaignGormRepository) ListActiveRoles(ctx context.Context, projectID string) ([]common.AccountRole, error) {
	var models []accountRoleModel
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND active = ?", projectID, true).
		Order("priority ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]common.AccountRole, len(models))
	for i, m := range models {
		out[i] = fromRoleModel(m)
	}
	return out, nil
}

// Accounts & Devices

func (r *CampaignGormRepository) CreateAccount(ctx context.Context, acc common.Account) error {
	m := toAccountModel(acc)
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *CampaignGormRepository) GetAccount(ctx context.Context, id string) (common.Account, error) {
	var m accountModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return common.Account{}, common.ErrAccountNotFound
		}
		return common.Account{}, err
	}
	return fromAccountModel(m), nil
}

func (r *CampaignGormRepository) CreateDevice(ctx context.Context, dev common.Device) error {
	m := toDeviceModel(dev)
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *CampaignGormRepository) GetDevice(ctx context.Context, id string) (common.Device, error) {
	var m deviceModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return common.Device{}, common.ErrDeviceNotFound
		}
		return common.Device{}, err
	}
	return fromDeviceModel(m), nil
}

func (r *CampaignGormRepository) UpdateDeviceStatus(ctx context.Context, id string, statusCode int, checkedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&deviceModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status_code": statusCode,
			"checked_at":  checkedAt,
			"updated_at":  time.Now().UTC(),
		}).Error
}

// --- Conversions ---

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func toPostModel(p common.ScheduledPost) scheduledPostModel {
	return scheduledPostModel{
		ID:             p.ID,
		ProjectID:      p.ProjectID,
		AccountID:      p.AccountID,
		Content:        p.Content,
		ScheduledTime:  p.ScheduledTime,
		Status:         string(p.Status),
		ReviewStatus:   string(p.ReviewStatus),
		RepeatInterval: p.RepeatInterval,
		PostURL:        nullString(p.PostURL),
		ScreenshotRef:  nullString(p.ScreenshotRef),
		Error:          nullString(p.Error),
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func fromPostModel(m scheduledPostModel) common.ScheduledPost {
	return common.ScheduledPost{
		ID:             m.ID,
		ProjectID:      m.ProjectID,
		AccountID:      m.AccountID,
		Content:        m.Content,
		ScheduledTime:  m.ScheduledTime,
		Status:         common.ScheduledPostStatus(m.Status),
		ReviewStatus:   common.ReviewStatus(m.ReviewStatus),
		RepeatInterval: m.RepeatInterval,
		PostURL:        m.PostURL.String,
		ScreenshotRef:  m.ScreenshotRef.String,
		Error:          m.Error.String,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func toInteractionModel(i common.Interaction) interactionModel {
	return interactionModel{
		ID:              i.ID,
		PlanID:          nullString(i.PlanID),
		InteractionType: string(i.InteractionType),
		FromAccountID:   i.FromAccountID,
		FromDeviceID:    nullString(i.FromDeviceID),
		TargetURL:       nullString(i.TargetURL),
		TargetUsername:  nullString(i.TargetUsername),
		Content:         nullString(i.Content),
		Status:          string(i.Status),
		RetryCount:      i.RetryCount,
		ScheduledAt:     i.ScheduledAt,
		Error:           nullString(i.Error),
		CreatedAt:       i.CreatedAt,
		UpdatedAt:       i.UpdatedAt,
	}
}

func fromInteractionModel(m interactionModel) common.Interaction {
	return common.Interaction{
		ID:              m.ID,
		PlanID:          m.PlanID.String,
		InteractionType: common.InteractionType(m.InteractionType),
		FromAccountID:   m.FromAccountID,
		FromDeviceID:    m.FromDeviceID.String,
		TargetURL:       m.TargetURL.String,
		TargetUsername:  m.TargetUsername.String,
		Content:         m.Content.String,
		Status:          common.InteractionStatus(m.Status),
		RetryCount:      m.RetryCount,
		ScheduledAt:     m.ScheduledAt,
		Error:           m.Error.String,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func toPlanModel(p common.OrchestrationPlan) (orchestrationPlanModel, error) {
	actions, err := json.Marshal(p.Actions)
	if err != nil {
		return orchestrationPlanModel{}, fmt.Errorf("marshal plan actions: %w", err)
	}
	return orchestrationPlanModel{
		ID:               p.ID,
		ProjectID:        p.ProjectID,
		TriggerPostID:    p.TriggerPostID,
		PostURL:          nullString(p.PostURL),
		PlanType:         string(p.PlanType),
		Status:           string(p.Status),
		Actions:          string(actions),
		TotalActions:     p.TotalActions,
		CompletedActions: p.CompletedActions,
		FailedActions:    p.FailedActions,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}, nil
}

func fromPlanModel(m orchestrationPlanModel) (common.OrchestrationPlan, error) {
	var actions []common.PlanAction
	if m.Actions != "" {
		if err := json.Unmarshal([]byte(m.Actions), &actions); err != nil {
			return common.OrchestrationPlan{}, fmt.Errorf("unmarshal plan actions: %w", err)
		}
	}
	return common.OrchestrationPlan{
		ID:               m.ID,
		ProjectID:        m.ProjectID,
		TriggerPostID:    m.TriggerPostID,
		PostURL:          m.PostURL.String,
		PlanType:         common.PlanType(m.PlanType),
		Status:           common.PlanStatus(m.Status),
		Actions:          actions,
		TotalActions:     m.TotalActions,
		CompletedActions: m.CompletedActions,
		FailedActions:    m.FailedActions,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}, nil
}

func toRoleModel(r common.AccountRole) accountRoleModel {
	return accountRoleModel{
		ID:        r.ID,
		ProjectID: r.ProjectID,
		AccountID: r.AccountID,
		Role:      string(r.Role),
		Priority:  r.Priority,
		Active:    r.Active,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func fromRoleModel(m accountRoleModel) common.AccountRole {
	return common.AccountRole{
		ID:        m.ID,
		ProjectID: m.ProjectID,
		AccountID: m.AccountID,
		Role:      common.AccountRoleName(m.Role),
		Priority:  m.Priority,
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func toAccountModel(a common.Account) accountModel {
	return accountModel{
		ID:        a.ID,
		Username:  a.Username,
		DeviceID:  nullString(a.DeviceID),
		Persona:   nullString(a.Persona),
		Active:    a.Active,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func fromAccountModel(m accountModel) common.Account {
	return common.Account{
		ID:        m.ID,
		Username:  m.Username,
		DeviceID:  m.DeviceID.String,
		Persona:   m.Persona.String,
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func toDeviceModel(d common.Device) deviceModel {
	return deviceModel{
		ID:         d.ID,
		Name:       d.Name,
		StatusCode: d.StatusCode,
		CheckedAt:  d.CheckedAt,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

func fromDeviceModel(m deviceModel) common.Device {
	return common.Device{
		ID:         m.ID,
		Name:       m.Name,
		StatusCode: m.StatusCode,
		CheckedAt:  m.CheckedAt,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}
