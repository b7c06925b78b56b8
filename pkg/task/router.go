// Package task runs background work off the gateway goroutines. Tasks of the
// same group run one at a time in dispatch order; failed tasks are retried
// with exponential backoff.
package task

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/physum/physbot/pkg/log"
)

// TaskHandler is a function that processes a task payload.
type TaskHandler func(ctx context.Context, payload any) error

// Task encapsulates the work to be executed by the router.
type Task struct {
	Type    string
	Payload any
	// GroupKey serializes tasks sharing it, e.g. one channel. Empty uses a
	// global group.
	GroupKey string
}

// RouterConfig configures the TaskRouter behavior.
type RouterConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// GroupBuffer is the queue length of each group.
	GroupBuffer int
	// GroupIdleTTL after which an idle group worker stops.
	GroupIdleTTL time.Duration
	// Timeout bounds one handler run.
	Timeout time.Duration
}

// Defaults returns a RouterConfig with sensible defaults.
func Defaults() RouterConfig {
	return RouterConfig{
		MaxAttempts:    3,
		InitialBackoff: 250 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		GroupBuffer:    128,
		GroupIdleTTL:   2 * time.Minute,
		Timeout:        10 * time.Second,
	}
}

// Errors returned by the router.
var (
	ErrRouterClosed    = errors.New("task router is closed")
	ErrUnknownTaskType = errors.New("unknown task type")
)

const globalGroup = "_global"

// TaskRouter is an in-memory dispatcher with per-group serialization and
// retries.
type TaskRouter struct {
	mu       sync.Mutex
	handlers map[string]TaskHandler
	groups   map[string]*groupWorker
	closed   bool
	cfg      RouterConfig
	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once
	sleep    func(ctx context.Context, d time.Duration) bool
}

type groupWorker struct {
	key string
	ch  chan Task
}

// NewRouter creates a TaskRouter; zero fields of cfg take their defaults.
func NewRouter(cfg RouterConfig) *TaskRouter {
	def := Defaults()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.GroupBuffer <= 0 {
		cfg.GroupBuffer = def.GroupBuffer
	}
	if cfg.GroupIdleTTL <= 0 {
		cfg.GroupIdleTTL = def.GroupIdleTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &TaskRouter{
		handlers: make(map[string]TaskHandler),
		groups:   make(map[string]*groupWorker),
		cfg:      cfg,
		stopCh:   make(chan struct{}),
		sleep:    sleepCtx,
	}
}

// RegisterHandler registers a handler for the given task type.
func (tr *TaskRouter) RegisterHandler(taskType string, handler TaskHandler) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.handlers[taskType] = handler
}

// Dispatch enqueues t. It blocks while the group queue is full, until ctx is
// done.
func (tr *TaskRouter) Dispatch(ctx context.Context, t Task) error {
	tr.mu.Lock()
	if tr.closed {
		tr.mu.Unlock()
		return ErrRouterClosed
	}
	if h := tr.handlers[t.Type]; h == nil {
		tr.mu.Unlock()
		return ErrUnknownTaskType
	}
	key := t.GroupKey
	if key == "" {
		key = globalGroup
	}
	gw := tr.groups[key]
	if gw == nil {
		gw = &groupWorker{key: key, ch: make(chan Task, tr.cfg.GroupBuffer)}
		tr.groups[key] = gw
		tr.wg.Add(1)
		go tr.groupLoop(gw)
	}
	// A worker only retires with an empty queue under mu, so a send made
	// while holding mu is always picked up.
	select {
	case gw.ch <- t:
		tr.mu.Unlock()
		return nil
	default:
	}
	tr.mu.Unlock()

	select {
	case gw.ch <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-tr.stopCh:
		return ErrRouterClosed
	}
}

// Close stops accepting tasks, lets workers finish what is queued and waits
// for them. Retries still pending are abandoned.
func (tr *TaskRouter) Close() {
	tr.stopOnce.Do(func() {
		tr.mu.Lock()
		tr.closed = true
		tr.mu.Unlock()
		close(tr.stopCh)
		tr.wg.Wait()
	})
}

// Groups returns the number of live group workers.
func (tr *TaskRouter) Groups() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return len(tr.groups)
}

func (tr *TaskRouter) groupLoop(gw *groupWorker) {
	defer tr.wg.Done()

	idle := time.NewTimer(tr.cfg.GroupIdleTTL)
	defer idle.Stop()
	for {
		select {
		case t := <-gw.ch:
			tr.run(gw.key, t)
			idle.Reset(tr.cfg.GroupIdleTTL)
		case <-idle.C:
			if tr.retire(gw) {
				return
			}
			idle.Reset(tr.cfg.GroupIdleTTL)
		case <-tr.stopCh:
			for {
				select {
				case t := <-gw.ch:
					tr.run(gw.key, t)
				default:
					return
				}
			}
		}
	}
}

// retire removes an idle group unless a task slipped in.
func (tr *TaskRouter) retire(gw *groupWorker) bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if len(gw.ch) > 0 {
		return false
	}
	delete(tr.groups, gw.key)
	return true
}

func (tr *TaskRouter) run(group string, t Task) {
	tr.mu.Lock()
	handler := tr.handlers[t.Type]
	tr.mu.Unlock()
	if handler == nil {
		log.ApplicationLogger().Warn("Task dropped (handler not registered)", "type", t.Type, "group", group)
		return
	}

	for attempt := 1; ; attempt++ {
		err := tr.attempt(handler, t.Payload)
		if err == nil {
			return
		}
		if attempt >= tr.cfg.MaxAttempts {
			log.ErrorLogger().Error("Task failed; max attempts reached",
				"type", t.Type, "group", group, "attempts", attempt, "error", err)
			return
		}
		delay := backoff(tr.cfg.InitialBackoff, tr.cfg.MaxBackoff, attempt)
		log.ApplicationLogger().Warn("Task failed, scheduling retry",
			"type", t.Type, "group", group, "attempt", attempt+1,
			"max_attempts", tr.cfg.MaxAttempts, "backoff", delay.String(), "error", err)
		if !tr.wait(delay) {
			log.ApplicationLogger().Warn("Task retry abandoned on shutdown", "type", t.Type, "group", group)
			return
		}
	}
}

// attempt runs h once. Queued tasks still run during Close, so the context
// only carries the per-task timeout.
func (tr *TaskRouter) attempt(h TaskHandler, payload any) error {
	ctx, cancel := context.WithTimeout(context.Background(), tr.cfg.Timeout)
	defer cancel()
	return h(ctx, payload)
}

// wait sleeps for d and reports false when the router closed first.
func (tr *TaskRouter) wait(d time.Duration) bool {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-tr.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	return tr.sleep(ctx, d)
}

// backoff is initial * 2^(attempt-1) with 10% jitter, capped at maxDelay.
func backoff(initial, maxDelay time.Duration, attempt int) time.Duration {
	d := initial
	for i := 1; i < attempt && d < maxDelay; i++ {
		d *= 2
	}
	if delta := int64(d) / 10; delta > 0 {
		d += time.Duration(rand.Int63n(2*delta+1) - delta)
	}
	return max(min(d, maxDelay), initial)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
