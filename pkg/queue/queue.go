// Package queue implements the upload admission queue: a bounded FIFO that
// runs exactly one task at a time so concurrent uploads cannot decode and
// encode images in parallel.
package queue

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

var (
	ErrQueueFull   = errors.New("admission queue is full")
	ErrQueueClosed = errors.New("admission queue is closed")
)

// Policy decides what Submit does when the queue is at capacity.
type Policy string

const (
	// PolicyBlock makes Submit wait for room (or for the caller's context).
	PolicyBlock Policy = "block"
	// PolicyReject makes Submit fail fast with ErrQueueFull.
	PolicyReject Policy = "reject"

	DefaultCapacity = 64
)

// Task is a unit of work admitted to the queue.
type Task func(ctx context.Context) (any, error)

// Future resolves once the task has run.
type Future struct {
	done  chan struct{}
	value any
	err   error
}

// Wait blocks until the task finished or ctx is done. A cancelled wait does
// not stop the task; its result is simply dropped.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done is closed when the task has finished.
func (f *Future) Done() <-chan struct{} { return f.done }

type job struct {
	task   Task
	future *Future
}

// Queue serialises tasks in arrival order.
type Queue struct {
	jobs    chan *job
	policy  Policy
	pending atomic.Int64

	mu     sync.RWMutex
	closed bool

	runCtx  context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
}

// New creates a queue holding at most capacity waiting tasks and starts its
// single executor goroutine.
func New(capacity int, policy Policy) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if policy != PolicyReject {
		policy = PolicyBlock
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		jobs:    make(chan *job, capacity),
		policy:  policy,
		runCtx:  ctx,
		cancel:  cancel,
		stopped: make(chan struct{}),
	}
	go q.loop()
	return q
}

// Submit enqueues task. The returned future resolves with the task's result.
func (q *Queue) Submit(ctx context.Context, task Task) (*Future, error) {
	if task == nil {
		return nil, errors.New("task must not be nil")
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return nil, ErrQueueClosed
	}

	j := &job{task: task, future: &Future{done: make(chan struct{})}}
	q.pending.Add(1)

	if q.policy == PolicyReject {
		select {
		case q.jobs <- j:
			return j.future, nil
		default:
			q.pending.Add(-1)
			return nil, ErrQueueFull
		}
	}

	select {
	case q.jobs <- j:
		return j.future, nil
	case <-ctx.Done():
		q.pending.Add(-1)
		return nil, ctx.Err()
	}
}

// Pending returns the number of tasks waiting or running.
func (q *Queue) Pending() int {
	return int(q.pending.Load())
}

// Close stops admitting tasks, lets queued tasks finish and waits for the
// executor to exit or ctx to expire.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	select {
	case <-q.stopped:
		return nil
	case <-ctx.Done():
		q.cancel()
		return ctx.Err()
	}
}

func (q *Queue) loop() {
	defer close(q.stopped)
	defer q.cancel()
	for j := range q.jobs {
		q.run(j)
		q.pending.Add(-1)
	}
}

func (q *Queue) run(j *job) {
	defer close(j.future.done)
	defer func() {
		if r := recover(); r != nil {
			j.future.err = fmt.Errorf("task panicked: %v\n%s", r, debug.Stack())
		}
	}()
	j.future.value, j.future.err = j.task(q.runCtx)
}

// Do submits fn and waits for its typed result.
func Do[T any](ctx context.Context, q *Queue, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	future, err := q.Submit(ctx, func(runCtx context.Context) (any, error) {
		return fn(runCtx)
	})
	if err != nil {
		return zero, err
	}
	value, err := future.Wait(ctx)
	if err != nil {
		return zero, err
	}
	typed, ok := value.(T)
	if !ok && value != nil {
		return zero, fmt.Errorf("unexpected task result type %T", value)
	}
	return typed, nil
}
