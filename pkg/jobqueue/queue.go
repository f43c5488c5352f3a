package jobqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Config tunes one named queue.
type Config struct {
	Workers         int
	MaxAttempts     int
	BackoffBase     time.Duration
	RatePerMinute   int           // 0 disables rate limiting
	RetainCompleted int           // completed jobs kept for inspection
	RetainFailedFor time.Duration // failed jobs kept for inspection
	Clock           func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 5 * time.Second
	}
	if c.RetainCompleted <= 0 {
		c.RetainCompleted = 1000
	}
	if c.RetainFailedFor <= 0 {
		c.RetainFailedFor = 7 * 24 * time.Hour
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

// Handler processes one job. A nil return completes the job; an error
// schedules a retry with exponential backoff unless wrapped with Permanent
// or the attempt budget is exhausted.
type Handler func(ctx context.Context, job Job) error

// Stats is a point-in-time snapshot of a queue.
type Stats struct {
	Name      string `json:"name"`
	Workers   int    `json:"workers"`
	Paused    bool   `json:"paused"`
	Waiting   int    `json:"waiting"`
	Active    int    `json:"active"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Processed int64  `json:"processed"`
	Errored   int64  `json:"errored"`
}

// Queue is an in-process job queue with dedup-key idempotent enqueue,
// bounded concurrency, rate limiting and exponential-backoff retries.
// Terminal jobs are retained for a bounded window for observability.
type Queue struct {
	name    string
	cfg     Config
	handler Handler
	limiter *rate.Limiter
	events  *broadcaster

	mu       sync.Mutex
	byKey    map[string]*Job // non-terminal jobs, keyed by dedup key
	ready    []*Job          // waiting jobs, FIFO by NextRunAt
	active   int
	terminal []*Job
	paused   bool

	processed int64
	errored   int64

	wake    chan struct{}
	sem     chan struct{}
	stopCh  chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup
}

func newQueue(name string, cfg Config, handler Handler, events *broadcaster) *Queue {
	cfg = cfg.withDefaults()
	q := &Queue{
		name:    name,
		cfg:     cfg,
		handler: handler,
		events:  events,
		byKey:   make(map[string]*Job),
		wake:    make(chan struct{}, 1),
		sem:     make(chan struct{}, cfg.Workers),
		stopCh:  make(chan struct{}),
	}
	if cfg.RatePerMinute > 0 {
		q.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), cfg.RatePerMinute)
	}
	return q
}

// Name returns the queue name.
func (q *Queue) Name() string { return q.name }

// Enqueue registers a job for the given dedup key. If a non-terminal job
// with the same key already exists, a snapshot of that job is returned and
// nothing new is created (idempotent enqueue).
func (q *Queue) Enqueue(payload []byte, opts Options) (Job, error) {
	if opts.DedupKey == "" {
		return Job{}, fmt.Errorf("dedup key is required")
	}

	q.mu.Lock()
	if existing, ok := q.byKey[opts.DedupKey]; ok {
		snapshot := *existing
		q.mu.Unlock()
		logrus.Debugf("[JOB_QUEUE] %s: duplicate enqueue for %s, returning existing job", q.name, opts.DedupKey)
		return snapshot, nil
	}

	now := q.cfg.Clock()
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = q.cfg.MaxAttempts
	}
	job := &Job{
		ID:          uuid.NewString(),
		Queue:       q.name,
		DedupKey:    opts.DedupKey,
		Payload:     payload,
		MaxAttempts: maxAttempts,
		Status:      StatusWaiting,
		CreatedAt:   now,
		NextRunAt:   now,
	}
	q.byKey[job.DedupKey] = job
	q.ready = append(q.ready, job)
	snapshot := *job
	q.mu.Unlock()

	q.emit(snapshot, EventWaiting, "")
	q.signal()
	return snapshot, nil
}

// Job returns a snapshot of the tracked job for key, terminal ones included.
func (q *Queue) Job(dedupKey string) (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if j, ok := q.byKey[dedupKey]; ok {
		return *j, true
	}
	for i := len(q.terminal) - 1; i >= 0; i-- {
		if q.terminal[i].DedupKey == dedupKey {
			return *q.terminal[i], true
		}
	}
	return Job{}, false
}

// Pause stops job dispatch. In-flight jobs run to completion.
func (q *Queue) Pause() {
	q.mu.Lock()
	q.paused = true
	q.mu.Unlock()
	logrus.Infof("[JOB_QUEUE] %s: paused", q.name)
}

// Resume restarts job dispatch.
func (q *Queue) Resume() {
	q.mu.Lock()
	q.paused = false
	q.mu.Unlock()
	logrus.Infof("[JOB_QUEUE] %s: resumed", q.name)
	q.signal()
}

// ReplayFailed re-enqueues retained failed jobs with a fresh attempt budget.
// Returns how many jobs were replayed.
func (q *Queue) ReplayFailed() int {
	q.mu.Lock()
	now := q.cfg.Clock()
	var kept []*Job
	var replayed []*Job
	for _, j := range q.terminal {
		if j.Status != StatusFailed {
			kept = append(kept, j)
			continue
		}
		if _, busy := q.byKey[j.DedupKey]; busy {
			kept = append(kept, j)
			continue
		}
		j.Status = StatusWaiting
		j.Attempts = 0
		j.LastError = ""
		j.NextRunAt = now
		j.FinishedAt = time.Time{}
		q.byKey[j.DedupKey] = j
		q.ready = append(q.ready, j)
		replayed = append(replayed, j)
	}
	q.terminal = kept
	snapshots := make([]Job, len(replayed))
	for i, j := range replayed {
		snapshots[i] = *j
	}
	q.mu.Unlock()

	for _, s := range snapshots {
		q.emit(s, EventWaiting, "")
	}
	if len(snapshots) > 0 {
		q.signal()
	}
	logrus.Infof("[JOB_QUEUE] %s: replayed %d failed jobs", q.name, len(snapshots))
	return len(snapshots)
}

// Stats returns a point-in-time snapshot of the queue.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := Stats{
		Name:      q.name,
		Workers:   q.cfg.Workers,
		Paused:    q.paused,
		Waiting:   len(q.ready),
		Active:    q.active,
		Processed: q.processed,
		Errored:   q.errored,
	}
	for _, j := range q.terminal {
		switch j.Status {
		case StatusCompleted:
			s.Completed++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}

// start launches the dispatcher and retention loops. Called by the Manager.
func (q *Queue) start(ctx context.Context) {
	q.wg.Add(2)
	go q.dispatchLoop(ctx)
	go q.purgeLoop(ctx)
	logrus.Infof("[JOB_QUEUE] %s: started with %d workers", q.name, q.cfg.Workers)
}

// stop waits for in-flight jobs to finish.
func (q *Queue) stop() {
	q.stopped.Do(func() { close(q.stopCh) })
	q.wg.Wait()
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) dispatchLoop(ctx context.Context) {
	defer q.wg.Done()
	for {
		job, wait := q.nextReady()
		if job == nil {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-q.stopCh:
				timer.Stop()
				return
			case <-q.wake:
				timer.Stop()
			case <-timer.C:
			}
			continue
		}

		// Concurrency limit first, then the rate window.
		select {
		case q.sem <- struct{}{}:
		case <-ctx.Done():
			q.requeue(job)
			return
		case <-q.stopCh:
			q.requeue(job)
			return
		}
		if q.limiter != nil {
			if err := q.limiter.Wait(ctx); err != nil {
				<-q.sem
				q.requeue(job)
				return
			}
		}

		q.wg.Add(1)
		go func(j *Job) {
			defer q.wg.Done()
			defer func() { <-q.sem }()
			q.process(ctx, j)
		}(job)
	}
}

// nextReady pops the first due waiting job. When nothing is due it returns
// nil and how long the dispatcher should sleep.
func (q *Queue) nextReady() (*Job, time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	const idleWait = time.Second
	if q.paused || len(q.ready) == 0 {
		return nil, idleWait
	}

	now := q.cfg.Clock()
	wait := idleWait
	for i, j := range q.ready {
		if !j.NextRunAt.After(now) {
			q.ready = append(q.ready[:i], q.ready[i+1:]...)
			q.active++
			return j, 0
		}
		if d := j.NextRunAt.Sub(now); d < wait {
			wait = d
		}
	}
	return nil, wait
}

func (q *Queue) requeue(job *Job) {
	q.mu.Lock()
	q.active--
	q.ready = append([]*Job{job}, q.ready...)
	q.mu.Unlock()
}

func (q *Queue) process(ctx context.Context, job *Job) {
	q.mu.Lock()
	job.Status = StatusActive
	job.Attempts++
	snapshot := *job
	q.mu.Unlock()

	q.emit(snapshot, EventActive, "")

	var err error
	stalled := false
	func() {
		defer func() {
			if r := recover(); r != nil {
				stalled = true
				err = fmt.Errorf("handler panic: %v", r)
				logrus.Errorf("[JOB_QUEUE] %s: worker panic on %s: %v", q.name, job.DedupKey, r)
			}
		}()
		err = q.handler(ctx, snapshot)
	}()

	now := q.cfg.Clock()
	q.mu.Lock()
	q.active--
	switch {
	case err == nil:
		job.Status = StatusCompleted
		job.LastError = ""
		job.FinishedAt = now
		delete(q.byKey, job.DedupKey)
		q.terminal = append(q.terminal, job)
		q.processed++
		snapshot = *job
		q.mu.Unlock()
		q.emit(snapshot, EventCompleted, "")

	case !IsPermanent(err) && job.Attempts < job.MaxAttempts:
		job.Status = StatusWaiting
		job.LastError = err.Error()
		backoff := q.cfg.BackoffBase * (1 << (job.Attempts - 1))
		job.NextRunAt = now.Add(backoff)
		q.ready = append(q.ready, job)
		q.errored++
		snapshot = *job
		q.mu.Unlock()
		if stalled {
			q.emit(snapshot, EventStalled, err.Error())
		}
		q.emit(snapshot, EventWaiting, err.Error())
		logrus.WithError(err).Warnf("[JOB_QUEUE] %s: job %s attempt %d/%d failed, retrying in %s",
			q.name, job.DedupKey, snapshot.Attempts, snapshot.MaxAttempts, backoff)
		q.signal()

	default:
		job.Status = StatusFailed
		job.LastError = err.Error()
		job.FinishedAt = now
		delete(q.byKey, job.DedupKey)
		q.terminal = append(q.terminal, job)
		q.errored++
		snapshot = *job
		q.mu.Unlock()
		q.emit(snapshot, EventFailed, err.Error())
		logrus.WithError(err).Errorf("[JOB_QUEUE] %s: job %s failed terminally after %d attempts",
			q.name, job.DedupKey, snapshot.Attempts)
	}
}

func (q *Queue) purgeLoop(ctx context.Context) {
	defer q.wg.Done()
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopCh:
			return
		case <-ticker.C:
			q.purge()
		}
	}
}

// purge trims retained terminal jobs: completed beyond the count cap,
// failed beyond the age cap.
func (q *Queue) purge() {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.cfg.Clock()
	completed := 0
	for _, j := range q.terminal {
		if j.Status == StatusCompleted {
			completed++
		}
	}

	var kept []*Job
	for _, j := range q.terminal {
		switch j.Status {
		case StatusCompleted:
			if completed > q.cfg.RetainCompleted {
				completed--
				continue
			}
		case StatusFailed:
			if now.Sub(j.FinishedAt) > q.cfg.RetainFailedFor {
				continue
			}
		}
		kept = append(kept, j)
	}
	q.terminal = kept
}

func (q *Queue) emit(job Job, typ EventType, errMsg string) {
	if q.events == nil {
		return
	}
	q.events.publish(Event{
		Queue:    q.name,
		JobID:    job.ID,
		DedupKey: job.DedupKey,
		Type:     typ,
		Attempt:  job.Attempts,
		Error:    errMsg,
		At:       q.cfg.Clock(),
	})
}
