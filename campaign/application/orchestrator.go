package application

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/AzielCF/az-amp/campaign/domain"
	"github.com/AzielCF/az-amp/campaign/domain/common"
	"github.com/AzielCF/az-amp/campaign/repository"
	"github.com/AzielCF/az-amp/core/config"
	"github.com/AzielCF/az-amp/infrastructure/valkey"
	"github.com/AzielCF/az-amp/pkg/devicegate"
	"github.com/AzielCF/az-amp/pkg/jobqueue"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Orchestrator wires the whole pipeline together and owns its lifecycle:
// queues, processors, outbox enqueuers, planner and plan executor. All
// scheduler state (tickers, in-flight maps) lives behind Start/Stop.
type Orchestrator struct {
	cfg     *config.Config
	repo    repository.ICampaignRepository
	queues  *jobqueue.Manager
	gate    *devicegate.Gate
	planner *Planner

	publishQueue  *jobqueue.Queue
	interactQueue *jobqueue.Queue
	postEnq       *PostEnqueuer
	interEnq      *InteractionEnqueuer
	planExec      *PlanExecutor

	rngMu sync.Mutex
	rng   *rand.Rand

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Repo      repository.ICampaignRepository
	Executor  domain.AutomationExecutor
	Freeze    domain.FreezeDetector
	Generator domain.ContentGenerator
	Gate      *devicegate.Gate
	Valkey    *valkey.Client // optional
	Rand      *rand.Rand     // optional, injectable for tests
}

// NewOrchestrator builds the pipeline from configuration. Nothing runs
// until Start is called.
func NewOrchestrator(cfg *config.Config, deps Deps) *Orchestrator {
	rng := deps.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	o := &Orchestrator{
		cfg:    cfg,
		repo:   deps.Repo,
		queues: jobqueue.NewManager(),
		gate:   deps.Gate,
		rng:    rng,
	}

	o.planner = NewPlanner(deps.Repo, deps.Generator, rng, PlannerOptions{
		ConversationEnabled: cfg.Planner.ConversationEnabled,
		ConversationSize:    cfg.Planner.MaxConversationSize,
	})
	o.planExec = NewPlanExecutor(deps.Repo)

	publishProc := NewPublishProcessor(deps.Repo, deps.Gate, deps.Executor, deps.Freeze)
	publishProc.SetSuccessHook(o.onPostPublished)
	interactProc := NewInteractionProcessor(deps.Repo, deps.Gate, deps.Executor, deps.Freeze)

	o.publishQueue = o.queues.Register(QueuePublish, jobqueue.Config{
		Workers:         cfg.Queue.PublishWorkers,
		MaxAttempts:     cfg.Queue.MaxAttempts,
		BackoffBase:     cfg.Queue.BackoffBase,
		RatePerMinute:   cfg.Queue.RatePerMinute,
		RetainCompleted: cfg.Queue.RetainCompleted,
		RetainFailedFor: cfg.Queue.RetainFailedFor,
	}, publishProc.Handle)
	o.interactQueue = o.queues.Register(QueueInteract, jobqueue.Config{
		Workers:         cfg.Queue.InteractWorkers,
		MaxAttempts:     cfg.Queue.MaxAttempts,
		BackoffBase:     cfg.Queue.BackoffBase,
		RatePerMinute:   cfg.Queue.RatePerMinute,
		RetainCompleted: cfg.Queue.RetainCompleted,
		RetainFailedFor: cfg.Queue.RetainFailedFor,
	}, interactProc.Handle)

	o.postEnq = NewPostEnqueuer(deps.Repo, o.publishQueue, deps.Valkey, cfg.Enqueuer.Interval, cfg.Enqueuer.BatchSize)
	o.interEnq = NewInteractionEnqueuer(deps.Repo, o.interactQueue, deps.Valkey, cfg.Enqueuer.Interval, cfg.Enqueuer.BatchSize)

	return o
}

// Start launches the queues and both enqueuer loops.
func (o *Orchestrator) Start(ctx context.Context) {
	o.once.Do(func() {
		runCtx, cancel := context.WithCancel(ctx)
		o.cancel = cancel

		o.queues.Start(runCtx)

		o.wg.Add(2)
		go func() {
			defer o.wg.Done()
			o.postEnq.Run(runCtx)
		}()
		go func() {
			defer o.wg.Done()
			o.interEnq.Run(runCtx)
		}()

		// Log lifecycle events from both queues.
		events, unsubscribe := o.queues.Subscribe()
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			defer unsubscribe()
			for {
				select {
				case <-runCtx.Done():
					return
				case ev, ok := <-events:
					if !ok {
						return
					}
					if ev.Type == jobqueue.EventFailed || ev.Type == jobqueue.EventStalled {
						logrus.Warnf("[ORCHESTRATOR] %s/%s: %s (attempt %d) %s",
							ev.Queue, ev.DedupKey, ev.Type, ev.Attempt, ev.Error)
					}
				}
			}
		}()

		logrus.Info("[ORCHESTRATOR] started")
	})
}

// Stop halts enqueuers and waits for in-flight jobs to finish.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.queues.Stop()
	o.wg.Wait()
	logrus.Info("[ORCHESTRATOR] stopped")
}

// Queues exposes the queue manager to the ops surface.
func (o *Orchestrator) Queues() *jobqueue.Manager { return o.queues }

// Planner exposes plan generation to the ops surface.
func (o *Orchestrator) Planner() *Planner { return o.planner }

// PlanExecutor exposes plan execution to the ops surface.
func (o *Orchestrator) PlanExecutor() *PlanExecutor { return o.planExec }

// onPostPublished is the post-success hook: every published post with a
// project gets an amplification plan, executed immediately so its
// interactions enter the outbox with absolute timestamps.
func (o *Orchestrator) onPostPublished(ctx context.Context, post common.ScheduledPost) {
	if post.ProjectID == "" || post.PostURL == "" {
		return
	}
	planID, err := o.planner.GeneratePlan(ctx, post.ProjectID, post.ID, post.PostURL, post.Content)
	if err != nil {
		logrus.WithError(err).Errorf("[ORCHESTRATOR] plan generation failed for post %s", post.ID)
		return
	}
	if err := o.planExec.ExecutePlan(ctx, planID); err != nil {
		logrus.WithError(err).Errorf("[ORCHESTRATOR] plan execution failed for %s", planID)
	}
}

// ScheduleInteraction creates an ad-hoc interaction with a randomized
// delay from the per-type default window. Used by the ops API.
func (o *Orchestrator) ScheduleInteraction(ctx context.Context, typ common.InteractionType, fromAccountID, targetURL, targetUsername, content string) (common.Interaction, error) {
	account, err := o.repo.GetAccount(ctx, fromAccountID)
	if err != nil {
		return common.Interaction{}, err
	}

	window, ok := DefaultDelayRanges[typ]
	if !ok {
		window = DelayRange{5, 30}
	}
	o.rngMu.Lock()
	delay := window.Min
	if window.Max > window.Min {
		delay += o.rng.Intn(window.Max - window.Min + 1)
	}
	o.rngMu.Unlock()

	now := time.Now().UTC()
	in := common.Interaction{
		ID:              uuid.NewString(),
		InteractionType: typ,
		FromAccountID:   account.ID,
		FromDeviceID:    account.DeviceID,
		TargetURL:       targetURL,
		TargetUsername:  targetUsername,
		Content:         content,
		Status:          common.InteractionStatusPending,
		ScheduledAt:     now.Add(time.Duration(delay) * time.Minute),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := o.repo.CreateInteraction(ctx, in); err != nil {
		return common.Interaction{}, err
	}
	return in, nil
}
