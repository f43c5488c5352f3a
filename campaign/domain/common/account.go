package common

import "time"

type AccountRoleName string

const (
	RoleMain       AccountRoleName = "main"
	RoleAmplifier  AccountRoleName = "amplifier"
	RoleEngagement AccountRoleName = "engagement"
	RoleSupport    AccountRoleName = "support"
)

// AccountRole assigns a planning role to an account within a project.
// Re-assignable at any time (upsert by project+account key); consumed
// only as planner input.
type AccountRole struct {
	ID        string          `json:"id"`
	ProjectID string          `json:"project_id"`
	AccountID string          `json:"account_id"`
	Role      AccountRoleName `json:"role"`
	Priority  int             `json:"priority"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Account is a social-media account operated by the pool.
type Account struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	DeviceID  string    `json:"device_id"`
	Persona   string    `json:"persona,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Device is a virtual phone in the automation farm. StatusCode mirrors the
// backend's last known power state and is refreshed by the readiness gate.
type Device struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StatusCode int       `json:"status_code"`
	CheckedAt  time.Time `json:"checked_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
