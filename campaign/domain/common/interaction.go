package common

import "time"

type InteractionType string

const (
	InteractionLike    InteractionType = "like"
	InteractionComment InteractionType = "comment"
	InteractionRetweet InteractionType = "retweet"
	InteractionFollow  InteractionType = "follow"
)

type InteractionStatus string

const (
	InteractionStatusPending    InteractionStatus = "pending"
	InteractionStatusProcessing InteractionStatus = "processing"
	InteractionStatusCompleted  InteractionStatus = "completed"
	InteractionStatusFailed     InteractionStatus = "failed"
)

// MaxInteractionRetries caps how often one interaction may be attempted.
// Once RetryCount reaches this value the row is terminally failed and is
// never re-enqueued.
const MaxInteractionRetries = 3

// Interaction is one engagement action (like, comment, retweet, follow)
// performed by an account against a target post or user. Created by the
// post-success hook or the plan executor; mutated only by processors.
type Interaction struct {
	ID              string            `json:"id"`
	PlanID          string            `json:"plan_id,omitempty"`
	InteractionType InteractionType   `json:"interaction_type"`
	FromAccountID   string            `json:"from_account_id"`
	FromDeviceID    string            `json:"from_device_id"`
	TargetURL       string            `json:"target_url,omitempty"`
	TargetUsername  string            `json:"target_username,omitempty"`
	Content         string            `json:"content,omitempty"`
	Status          InteractionStatus `json:"status"`
	RetryCount      int               `json:"retry_count"`
	ScheduledAt     time.Time         `json:"scheduled_at"`
	Error           string            `json:"error,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Due reports whether the interaction is eligible for enqueue at now.
func (i Interaction) Due(now time.Time) bool {
	return i.Status == InteractionStatusPending && !i.ScheduledAt.After(now)
}

// HasTarget reports whether the interaction's dependent target is resolvable.
// Likes, comments and retweets need a post URL; follows need a username.
func (i Interaction) HasTarget() bool {
	if i.InteractionType == InteractionFollow {
		return i.TargetUsername != ""
	}
	return i.TargetURL != ""
}
