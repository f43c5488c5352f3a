package common

import "time"

type ScheduledPostStatus string

const (
	ScheduledPostStatusPending    ScheduledPostStatus = "pending"
	ScheduledPostStatusProcessing ScheduledPostStatus = "processing"
	ScheduledPostStatusPosted     ScheduledPostStatus = "posted"
	ScheduledPostStatusFailed     ScheduledPostStatus = "failed"
)

type ReviewStatus string

const (
	ReviewStatusDraft         ReviewStatus = "draft"
	ReviewStatusPendingReview ReviewStatus = "pending_review"
	ReviewStatusApproved      ReviewStatus = "approved"
	ReviewStatusRejected      ReviewStatus = "rejected"
)

// ScheduledPost is one unit of content due for publication. Rows are never
// deleted; terminal states are final and serve as the audit trail.
// Only pending+approved rows whose scheduled time has passed are eligible
// for enqueue.
type ScheduledPost struct {
	ID             string              `json:"id"`
	ProjectID      string              `json:"project_id"`
	AccountID      string              `json:"account_id"`
	Content        string              `json:"content"`
	ScheduledTime  time.Time           `json:"scheduled_time"`
	Status         ScheduledPostStatus `json:"status"`
	ReviewStatus   ReviewStatus        `json:"review_status"`
	RepeatInterval int                 `json:"repeat_interval"` // minutes, 0 = one-shot
	PostURL        string              `json:"post_url,omitempty"`
	ScreenshotRef  string              `json:"screenshot_ref,omitempty"`
	Error          string              `json:"error,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// Due reports whether the post is eligible for enqueue at the given time.
func (p ScheduledPost) Due(now time.Time) bool {
	return p.Status == ScheduledPostStatusPending &&
		p.ReviewStatus == ReviewStatusApproved &&
		!p.ScheduledTime.After(now)
}
