package jobqueue

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Manager owns a set of named queues and the shared lifecycle event bus.
type Manager struct {
	mu     sync.RWMutex
	queues map[string]*Queue
	events *broadcaster

	startOnce sync.Once
	stopOnce  sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewManager creates an empty queue manager.
func NewManager() *Manager {
	return &Manager{
		queues: make(map[string]*Queue),
		events: newBroadcaster(),
	}
}

// Register creates a named queue. Registering twice for the same name
// replaces nothing and returns the existing queue.
func (m *Manager) Register(name string, cfg Config, handler Handler) *Queue {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q, ok := m.queues[name]; ok {
		return q
	}
	q := newQueue(name, cfg, handler, m.events)
	m.queues[name] = q
	if m.ctx != nil {
		q.start(m.ctx)
	}
	return q
}

// Queue returns the queue registered under name.
func (m *Manager) Queue(name string) (*Queue, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.queues[name]
	return q, ok
}

// Queues returns all registered queues.
func (m *Manager) Queues() []*Queue {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Queue, 0, len(m.queues))
	for _, q := range m.queues {
		out = append(out, q)
	}
	return out
}

// Start launches dispatchers for every registered queue.
func (m *Manager) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		m.mu.Lock()
		m.ctx, m.cancel = context.WithCancel(ctx)
		for _, q := range m.queues {
			q.start(m.ctx)
		}
		m.mu.Unlock()
		logrus.Infof("[JOB_QUEUE] Manager started with %d queues", len(m.queues))
	})
}

// Stop cancels dispatch and waits for in-flight jobs to finish.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		if m.cancel != nil {
			m.cancel()
		}
		m.mu.RLock()
		for _, q := range m.queues {
			q.stop()
		}
		m.mu.RUnlock()
		m.events.close()
		logrus.Info("[JOB_QUEUE] Manager stopped")
	})
}

// Subscribe returns a channel of lifecycle events from all queues plus an
// unsubscribe function. Slow consumers drop events instead of blocking
// the queues.
func (m *Manager) Subscribe() (<-chan Event, func()) {
	return m.events.subscribe()
}
