package application

import (
	"context"
	"sync"
	"time"

	"github.com/AzielCF/az-amp/campaign/domain"
	"github.com/AzielCF/az-amp/campaign/domain/common"
	"github.com/AzielCF/az-amp/pkg/devicegate"
)

// memRepo is an in-memory ICampaignRepository with the same conditional
// write semantics as the gorm implementation (claims only move pending
// rows, terminal-success guards, plan finalization on full progress).
type memRepo struct {
	mu           sync.Mutex
	posts        map[string]common.ScheduledPost
	interactions map[string]common.Interaction
	plans        map[string]common.OrchestrationPlan
	roles        map[string]common.AccountRole // key: projectID+"/"+accountID
	accounts     map[string]common.Account
	devices      map[string]common.Device
}

func newMemRepo() *memRepo {
	return &memRepo{
		posts:        map[string]common.ScheduledPost{},
		interactions: map[string]common.Interaction{},
		plans:        map[string]common.OrchestrationPlan{},
		roles:        map[string]common.AccountRole{},
		accounts:     map[string]common.Account{},
		devices:      map[string]common.Device{},
	}
}

func (r *memRepo) Init(ctx context.Context) error { return nil }

func (r *memRepo) CreateScheduledPost(ctx context.Context, post common.ScheduledPost) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posts[post.ID] = post
	return nil
}

func (r *memRepo) GetScheduledPost(ctx context.Context, id string) (common.ScheduledPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok {
		return common.ScheduledPost{}, common.ErrPostNotFound
	}
	return post, nil
}

func (r *memRepo) UpdateScheduledPost(ctx context.Context, post common.ScheduledPost) error {
	return r.CreateScheduledPost(ctx, post)
}

func (r *memRepo) ListDueScheduledPosts(ctx context.Context, now time.Time, limit int) ([]common.ScheduledPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []common.ScheduledPost
	for _, post := range r.posts {
		if post.Due(now) {
			out = append(out, post)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memRepo) ClaimScheduledPost(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if ok && post.Status == common.ScheduledPostStatusPending {
		post.Status = common.ScheduledPostStatusProcessing
		r.posts[id] = post
	}
	return nil
}

func (r *memRepo) MarkPostPosted(ctx context.Context, id, postURL, screenshotRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok {
		return nil
	}
	post.Status = common.ScheduledPostStatusPosted
	post.PostURL = postURL
	post.ScreenshotRef = screenshotRef
	post.Error = ""
	r.posts[id] = post
	return nil
}

func (r *memRepo) MarkPostFailed(ctx context.Context, id, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok || post.Status == common.ScheduledPostStatusPosted {
		return nil
	}
	post.Status = common.ScheduledPostStatusFailed
	post.Error = message
	r.posts[id] = post
	return nil
}

func (r *memRepo) CreateInteraction(ctx context.Context, in common.Interaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interactions[in.ID] = in
	return nil
}

func (r *memRepo) GetInteraction(ctx context.Context, id string) (common.Interaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.interactions[id]
	if !ok {
		return common.Interaction{}, common.ErrInteractionNotFound
	}
	return in, nil
}

func (r *memRepo) ListDueInteractions(ctx context.Context, now time.Time, limit int) ([]common.Interaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []common.Interaction
	for _, in := range r.interactions {
		if in.Due(now) {
			out = append(out, in)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memRepo) ClaimInteraction(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.interactions[id]
	if ok && in.Status == common.InteractionStatusPending {
		in.Status = common.InteractionStatusProcessing
		r.interactions[id] = in
	}
	return nil
}

func (r *memRepo) RecordInteractionAttempt(ctx context.Context, id string, retryCount int, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.interactions[id]
	if ok && in.RetryCount < retryCount {
		in.RetryCount = retryCount
		in.Error = message
		r.interactions[id] = in
	}
	return nil
}

func (r *memRepo) MarkInteractionCompleted(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.interactions[id]
	if !ok {
		return common.ErrInteractionNotFound
	}
	in.Status = common.InteractionStatusCompleted
	in.Error = ""
	r.interactions[id] = in
	return nil
}

func (r *memRepo) MarkInteractionFailed(ctx context.Context, id string, retryCount int, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.interactions[id]
	if !ok || in.Status == common.InteractionStatusCompleted {
		return nil
	}
	in.Status = common.InteractionStatusFailed
	in.RetryCount = retryCount
	in.Error = message
	r.interactions[id] = in
	return nil
}

func (r *memRepo) CreatePlan(ctx context.Context, plan common.OrchestrationPlan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans[plan.ID] = plan
	return nil
}

func (r *memRepo) GetPlan(ctx context.Context, id string) (common.OrchestrationPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	plan, ok := r.plans[id]
	if !ok {
		return common.OrchestrationPlan{}, common.ErrPlanNotFound
	}
	return plan, nil
}

func (r *memRepo) TransitionPlan(ctx context.Context, id string, to common.PlanStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transitionLocked(id, to)
}

func (r *memRepo) transitionLocked(id string, to common.PlanStatus) error {
	plan, ok := r.plans[id]
	if !ok {
		return common.ErrPlanNotFound
	}
	if !plan.Status.CanTransition(to) {
		return common.ErrInvalidTransition
	}
	plan.Status = to
	r.plans[id] = plan
	return nil
}

func (r *memRepo) RecordPlanProgress(ctx context.Context, id string, completedDelta, failedDelta int) (common.OrchestrationPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	plan, ok := r.plans[id]
	if !ok {
		return common.OrchestrationPlan{}, common.ErrPlanNotFound
	}
	plan.CompletedActions += completedDelta
	plan.FailedActions += failedDelta
	r.plans[id] = plan
	if plan.Status == common.PlanStatusInProgress && plan.CompletedActions+plan.FailedActions >= plan.TotalActions {
		final := common.PlanStatusCompleted
		if plan.CompletedActions == 0 {
			final = common.PlanStatusFailed
		}
		if err := r.transitionLocked(id, final); err != nil {
			return common.OrchestrationPlan{}, err
		}
		plan.Status = final
	}
	return plan, nil
}

func (r *memRepo) UpsertAccountRole(ctx context.Context, role common.AccountRole) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[role.ProjectID+"/"+role.AccountID] = role
	return nil
}

func (r *memRepo) ListActiveRoles(ctx context.Context, projectID string) ([]common.AccountRole, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []common.AccountRole
	for _, role := range r.roles {
		if role.ProjectID == projectID && role.Active {
			out = append(out, role)
		}
	}
	return out, nil
}

func (r *memRepo) CreateAccount(ctx context.Context, acc common.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[acc.ID] = acc
	return nil
}

func (r *memRepo) GetAccount(ctx context.Context, id string) (common.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.accounts[id]
	if !ok {
		return common.Account{}, common.ErrAccountNotFound
	}
	return acc, nil
}

func (r *memRepo) CreateDevice(ctx context.Context, dev common.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[dev.ID] = dev
	return nil
}

func (r *memRepo) GetDevice(ctx context.Context, id string) (common.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dev, ok := r.devices[id]
	if !ok {
		return common.Device{}, common.ErrDeviceNotFound
	}
	return dev, nil
}

func (r *memRepo) UpdateDeviceStatus(ctx context.Context, id string, statusCode int, checkedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	dev, ok := r.devices[id]
	if ok {
		dev.StatusCode = statusCode
		dev.CheckedAt = checkedAt
		r.devices[id] = dev
	}
	return nil
}

// fakeExecutor replays a script of results, repeating the last entry when
// the script runs out. Requests are recorded for assertions.
type fakeExecutor struct {
	mu       sync.Mutex
	script   []executorStep
	requests []domain.ExecuteRequest
}

type executorStep struct {
	result domain.ExecuteResult
	err    error
}

func (f *fakeExecutor) Execute(ctx context.Context, req domain.ExecuteRequest) (domain.ExecuteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if len(f.script) == 0 {
		return domain.ExecuteResult{Success: true}, nil
	}
	step := f.script[0]
	if len(f.script) > 1 {
		f.script = f.script[1:]
	}
	return step.result, step.err
}

func (f *fakeExecutor) calls() []domain.ExecuteRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ExecuteRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// fakeFreeze records Detect calls and answers with a fixed verdict.
type fakeFreeze struct {
	mu       sync.Mutex
	verdict  domain.FreezeVerdict
	detects  []string
	responds []string
}

func (f *fakeFreeze) Detect(ctx context.Context, accountID, deviceID, errorMessage string) (domain.FreezeVerdict, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detects = append(f.detects, errorMessage)
	return f.verdict, nil
}

func (f *fakeFreeze) Respond(ctx context.Context, freezeID, accountID, deviceID, action string) (domain.FreezeResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responds = append(f.responds, action)
	return domain.FreezeResponse{Success: true, Message: "acknowledged"}, nil
}

func (f *fakeFreeze) detectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.detects)
}

// fakeGenerator answers every request through reply; nil reply returns a
// fixed single comment.
type fakeGenerator struct {
	mu       sync.Mutex
	reply    func(req domain.GenerateRequest) (domain.GenerateResult, error)
	requests []domain.GenerateRequest
}

func (f *fakeGenerator) Generate(ctx context.Context, req domain.GenerateRequest) (domain.GenerateResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	reply := f.reply
	f.mu.Unlock()
	if reply == nil {
		return domain.GenerateResult{Content: "nice one"}, nil
	}
	return reply(req)
}

// onProvider reports every device as already powered on.
type onProvider struct{}

func (onProvider) Status(ctx context.Context, deviceID string) (int, error) {
	return devicegate.StatusOn, nil
}
func (onProvider) Start(ctx context.Context, deviceID string) error { return nil }

// blockedProvider reports every device as unrecoverable.
type blockedProvider struct{}

func (blockedProvider) Status(ctx context.Context, deviceID string) (int, error) {
	return devicegate.StatusBlocked, nil
}
func (blockedProvider) Start(ctx context.Context, deviceID string) error { return nil }

func readyGate() *devicegate.Gate {
	return devicegate.New(onProvider{}, devicegate.Config{
		StartRetryPause: time.Millisecond,
		PollInterval:    time.Millisecond,
		Timeout:         time.Second,
		Sleep:           func(ctx context.Context, d time.Duration) error { return nil },
	})
}

func blockedGate() *devicegate.Gate {
	return devicegate.New(blockedProvider{}, devicegate.Config{
		StartRetryPause: time.Millisecond,
		PollInterval:    time.Millisecond,
		Timeout:         time.Second,
		Sleep:           func(ctx context.Context, d time.Duration) error { return nil },
	})
}
