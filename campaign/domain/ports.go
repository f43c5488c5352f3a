package domain

import (
	"context"

	"github.com/AzielCF/az-amp/campaign/domain/common"
)

// ExecuteRequest is the input to the device automation backend. Only
// primitive identifiers and content cross this boundary; the backend
// is a black box performing the taps.
type ExecuteRequest struct {
	Action   common.InteractionType
	DeviceID string
	Target   string // post URL or username depending on the action
	Content  string // post text or comment text
}

// ExecuteResult is what the automation backend reports back.
type ExecuteResult struct {
	Success       bool
	Error         string
	Comment       string // actual comment text used, if the backend adjusted it
	PostURL       string // URL of a freshly published post
	ScreenshotRef string
}

// AutomationExecutor performs one side effect on a device.
type AutomationExecutor interface {
	Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error)
}

// PublishAction is the pseudo interaction type used for publishing posts
// through the automation executor.
const PublishAction common.InteractionType = "post"

// FreezeVerdict classifies a failure as a platform-level block.
type FreezeVerdict struct {
	FreezeID          string
	IsFrozen          bool
	FreezeType        string
	RecommendedAction string
}

// FreezeResponse is the outcome of a remediation attempt.
type FreezeResponse struct {
	Success bool
	Message string
}

// FreezeDetector classifies failures and dispatches remedies. Invoked by
// processors on failure; a positive verdict triggers Respond before the
// job is finally marked failed.
type FreezeDetector interface {
	Detect(ctx context.Context, accountID, deviceID, errorMessage string) (FreezeVerdict, error)
	Respond(ctx context.Context, freezeID, accountID, deviceID, action string) (FreezeResponse, error)
}

// GenerateRequest asks the content collaborator for text.
type GenerateRequest struct {
	Context     string // what the content reacts to (post text, thread so far)
	Persona     string
	Constraints string // free-form constraints (length, tone, format)
}

// GenerateResult is the collaborator's answer.
type GenerateResult struct {
	Content    string
	Hashtags   []string
	Confidence float64
}

// ContentGenerator produces persona-conditioned content. Prompt assembly
// lives behind this boundary.
type ContentGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error)
}
