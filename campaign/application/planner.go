package application

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/AzielCF/az-amp/campaign/domain"
	"github.com/AzielCF/az-amp/campaign/domain/common"
	"github.com/AzielCF/az-amp/campaign/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DelayRange is an inclusive window of minutes a delay is sampled from.
type DelayRange struct {
	Min int
	Max int
}

// Role-specific delay windows for plan actions.
var (
	amplifierRetweetDelay  = DelayRange{15, 60}
	amplifierCommentDelay  = DelayRange{15, 60}
	engagementLikeDelay    = DelayRange{30, 90}
	engagementCommentDelay = DelayRange{30, 120}
	supportLikeDelay       = DelayRange{15, 120}
)

// DefaultDelayRanges are used for ad-hoc interactions created outside a
// plan, keyed by interaction type.
var DefaultDelayRanges = map[common.InteractionType]DelayRange{
	common.InteractionLike:    {5, 30},
	common.InteractionComment: {10, 60},
	common.InteractionRetweet: {5, 30},
	common.InteractionFollow:  {30, 180},
}

// PlannerOptions tunes plan generation.
type PlannerOptions struct {
	ConversationEnabled bool
	ConversationSize    int // participants in a generated thread, 2-3
}

// Planner computes the amplification plan for a freshly published post
// from the project's account-role assignments. The random source and
// clock are injected so tests can assert plan structure deterministically.
type Planner struct {
	repo  repository.ICampaignRepository
	gen   domain.ContentGenerator
	opts  PlannerOptions
	clock func() time.Time
	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewPlanner(repo repository.ICampaignRepository, gen domain.ContentGenerator, rng *rand.Rand, opts PlannerOptions) *Planner {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.ConversationSize < 2 {
		opts.ConversationSize = 2
	}
	if opts.ConversationSize > 3 {
		opts.ConversationSize = 3
	}
	return &Planner{
		repo:  repo,
		gen:   gen,
		opts:  opts,
		clock: time.Now,
		rng:   rng,
	}
}

func (pl *Planner) sample(r DelayRange) int {
	pl.rngMu.Lock()
	defer pl.rngMu.Unlock()
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + pl.rng.Intn(r.Max-r.Min+1)
}

// GeneratePlan reads the project's active role assignments and persists a
// full amplification plan for the trigger post. Returns the plan id.
func (pl *Planner) GeneratePlan(ctx context.Context, projectID, triggerPostID, postURL, postContent string) (string, error) {
	roles, err := pl.repo.ListActiveRoles(ctx, projectID)
	if err != nil {
		return "", fmt.Errorf("list roles for %s: %w", projectID, err)
	}

	var actions []common.PlanAction
	var conversational []common.Account

	for _, role := range roles {
		switch role.Role {
		case common.RoleAmplifier:
			actions = append(actions, common.PlanAction{
				AccountID:    role.AccountID,
				ActionType:   common.InteractionRetweet,
				DelayMinutes: pl.sample(amplifierRetweetDelay),
			})
			actions = append(actions, common.PlanAction{
				AccountID:    role.AccountID,
				ActionType:   common.InteractionComment,
				DelayMinutes: pl.sample(amplifierCommentDelay),
				Content:      pl.generateComment(ctx, role.AccountID, postContent),
			})
		case common.RoleEngagement:
			actions = append(actions, common.PlanAction{
				AccountID:    role.AccountID,
				ActionType:   common.InteractionLike,
				DelayMinutes: pl.sample(engagementLikeDelay),
			})
			actions = append(actions, common.PlanAction{
				AccountID:    role.AccountID,
				ActionType:   common.InteractionComment,
				DelayMinutes: pl.sample(engagementCommentDelay),
				Content:      pl.generateComment(ctx, role.AccountID, postContent),
			})
			if acc, err := pl.repo.GetAccount(ctx, role.AccountID); err == nil && acc.Active {
				conversational = append(conversational, acc)
			}
		case common.RoleSupport:
			actions = append(actions, common.PlanAction{
				AccountID:    role.AccountID,
				ActionType:   common.InteractionLike,
				DelayMinutes: pl.sample(supportLikeDelay),
			})
		}
	}

	planType := common.PlanTypeAmplify
	if pl.opts.ConversationEnabled && len(conversational) >= 2 {
		planType = common.PlanTypeConversation
		actions = append(actions, pl.conversationActions(ctx, conversational, postContent)...)
	}

	// The action list is immutable once persisted: sorted ascending by
	// delay, with TotalActions fixed at creation.
	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].DelayMinutes < actions[j].DelayMinutes
	})

	now := pl.clock().UTC()
	plan := common.OrchestrationPlan{
		ID:            uuid.NewString(),
		ProjectID:     projectID,
		TriggerPostID: triggerPostID,
		PostURL:       postURL,
		PlanType:      planType,
		Status:        common.PlanStatusPlanned,
		Actions:       actions,
		TotalActions:  len(actions),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := pl.repo.CreatePlan(ctx, plan); err != nil {
		return "", fmt.Errorf("persist plan: %w", err)
	}

	logrus.Infof("[PLANNER] plan %s for post %s: %d actions (%s)",
		plan.ID, triggerPostID, plan.TotalActions, plan.PlanType)
	return plan.ID, nil
}

// generateComment asks the content collaborator for a persona-conditioned
// comment. On failure the action is still scheduled with empty content;
// the automation backend composes its own comment in that case.
func (pl *Planner) generateComment(ctx context.Context, accountID, postContent string) string {
	if pl.gen == nil {
		return ""
	}
	persona := ""
	if acc, err := pl.repo.GetAccount(ctx, accountID); err == nil {
		persona = acc.Persona
	}
	res, err := pl.gen.Generate(ctx, domain.GenerateRequest{
		Context:     postContent,
		Persona:     persona,
		Constraints: "one reply under 140 characters, no hashtags unless natural",
	})
	if err != nil {
		logrus.WithError(err).Warnf("[PLANNER] comment generation failed for %s", accountID)
		return ""
	}
	return res.Content
}

// conversationActions turns a generated thread into comment actions whose
// delays continue after the last turn's cumulative offset.
func (pl *Planner) conversationActions(ctx context.Context, participants []common.Account, postContent string) []common.PlanAction {
	if len(participants) > pl.opts.ConversationSize {
		participants = participants[:pl.opts.ConversationSize]
	}
	turns, err := pl.GenerateThread(ctx, participants, postContent)
	if err != nil {
		logrus.WithError(err).Warn("[PLANNER] thread generation failed, plan continues without conversation")
		return nil
	}
	actions := make([]common.PlanAction, 0, len(turns))
	for _, turn := range turns {
		actions = append(actions, common.PlanAction{
			AccountID:    turn.AccountID,
			ActionType:   common.InteractionComment,
			DelayMinutes: turn.DelayMinutes,
			Content:      turn.Content,
		})
	}
	return actions
}
