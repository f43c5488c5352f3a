package common

import "time"

type PlanStatus string

const (
	PlanStatusPlanned    PlanStatus = "planned"
	PlanStatusInProgress PlanStatus = "in_progress"
	PlanStatusCompleted  PlanStatus = "completed"
	PlanStatusFailed     PlanStatus = "failed"
)

// forward-only transition table
var planTransitions = map[PlanStatus][]PlanStatus{
	PlanStatusPlanned:    {PlanStatusInProgress},
	PlanStatusInProgress: {PlanStatusCompleted, PlanStatusFailed},
}

// CanTransition reports whether a plan may move from one status to another.
// Terminal states never transition; status only moves forward.
func (s PlanStatus) CanTransition(to PlanStatus) bool {
	for _, allowed := range planTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

type PlanType string

const (
	PlanTypeAmplify      PlanType = "amplify"
	PlanTypeConversation PlanType = "conversation"
)

// PlanAction is one scheduled step of an orchestration plan.
type PlanAction struct {
	AccountID    string          `json:"account_id"`
	ActionType   InteractionType `json:"action_type"`
	DelayMinutes int             `json:"delay_minutes"`
	Content      string          `json:"content,omitempty"`
}

// OrchestrationPlan is the amplification recipe computed for one published
// post. Actions are sorted ascending by delay and immutable once persisted;
// TotalActions is fixed at creation.
type OrchestrationPlan struct {
	ID               string       `json:"id"`
	ProjectID        string       `json:"project_id"`
	TriggerPostID    string       `json:"trigger_post_id"`
	PostURL          string       `json:"post_url"`
	PlanType         PlanType     `json:"plan_type"`
	Status           PlanStatus   `json:"status"`
	Actions          []PlanAction `json:"actions"`
	TotalActions     int          `json:"total_actions"`
	CompletedActions int          `json:"completed_actions"`
	FailedActions    int          `json:"failed_actions"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}
