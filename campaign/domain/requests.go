package domain

import "time"

// CreatePostRequest schedules a new post for publication.
type CreatePostRequest struct {
	ProjectID     string    `json:"project_id"`
	AccountID     string    `json:"account_id"`
	Content       string    `json:"content"`
	ScheduledTime time.Time `json:"scheduled_time"`
	RepeatDays    int       `json:"repeat_days"`
	AutoApprove   bool      `json:"auto_approve"`
}

// ReviewPostRequest moves a post through the review workflow.
type ReviewPostRequest struct {
	Decision string `json:"decision"` // "approve" or "reject"
}

// ScheduleInteractionRequest creates one ad-hoc engagement action.
type ScheduleInteractionRequest struct {
	InteractionType string `json:"interaction_type"`
	FromAccountID   string `json:"from_account_id"`
	TargetURL       string `json:"target_url"`
	TargetUsername  string `json:"target_username"`
	Content         string `json:"content"`
}

// GeneratePlanRequest asks the planner for an orchestration plan.
type GeneratePlanRequest struct {
	ProjectID   string `json:"project_id"`
	PostID      string `json:"post_id"`
	PostURL     string `json:"post_url"`
	PostContent string `json:"post_content"`
	Execute     bool   `json:"execute"`
}

// CreateAccountRequest registers a managed account.
type CreateAccountRequest struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	DeviceID string `json:"device_id"`
	Persona  string `json:"persona"`
}

// UpsertRoleRequest assigns a role to an account within a project.
type UpsertRoleRequest struct {
	AccountID string `json:"account_id"`
	Role      string `json:"role"`
	Priority  int    `json:"priority"`
	Active    *bool  `json:"active"`
}
