package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/ifmain/pinny/internal/worker"
)

// scriptedHandler fails each bookmark a configured number of times.
type scriptedHandler struct {
	mu       sync.Mutex
	failures map[string]int
	errFor   map[string]error
	attempts map[string][]int
	block    chan struct{}
}

func newScriptedHandler() *scriptedHandler {
	return &scriptedHandler{
		failures: map[string]int{},
		errFor:   map[string]error{},
		attempts: map[string][]int{},
	}
}

func (h *scriptedHandler) Sync(ctx context.Context, job worker.Job) error {
	if h.block != nil {
		select {
		case <-h.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.attempts[job.BookmarkID] = append(h.attempts[job.BookmarkID], job.Attempt)
	if err := h.errFor[job.BookmarkID]; err != nil {
		return err
	}
	if h.failures[job.BookmarkID] > 0 {
		h.failures[job.BookmarkID]--
		return errors.New("temporary failure")
	}
	return nil
}

func (h *scriptedHandler) Attempts(id string) []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]int(nil), h.attempts[id]...)
}

func startPool(t *testing.T, params worker.PoolParams) *worker.Pool {
	t.Helper()
	p := worker.NewPool(params)
	p.Start(context.Background())
	t.Cleanup(p.Stop)
	return p
}

func drain(t *testing.T, p *worker.Pool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NilError(t, p.Drain(ctx))
}

func TestPool_RunsScheduledJobs(t *testing.T) {
	h := newScriptedHandler()
	p := startPool(t, worker.PoolParams{Handler: h, Workers: 3})

	for i := 0; i < 20; i++ {
		p.Schedule(fmt.Sprintf("b%d", i), "https://example.com")
	}
	drain(t, p)

	for i := 0; i < 20; i++ {
		assert.DeepEqual(t, h.Attempts(fmt.Sprintf("b%d", i)), []int{1})
	}
	assert.Equal(t, p.Pending(), 0)
}

func TestPool_RetriesWithBackoff(t *testing.T) {
	h := newScriptedHandler()
	h.failures["b1"] = 2
	p := startPool(t, worker.PoolParams{Handler: h, RetryBackoff: 5 * time.Millisecond})

	start := time.Now()
	p.Schedule("b1", "https://example.com")
	drain(t, p)

	assert.DeepEqual(t, h.Attempts("b1"), []int{1, 2, 3})
	// 5ms then 10ms
	assert.Assert(t, time.Since(start) >= 15*time.Millisecond)
}

func TestPool_GivesUpAfterMaxAttempts(t *testing.T) {
	h := newScriptedHandler()
	h.failures["b1"] = 100
	p := startPool(t, worker.PoolParams{Handler: h, MaxAttempts: 3, RetryBackoff: time.Millisecond})

	p.Schedule("b1", "https://example.com")
	drain(t, p)

	assert.DeepEqual(t, h.Attempts("b1"), []int{1, 2, 3})
}

func TestPool_PermanentErrorsAreNotRetried(t *testing.T) {
	h := newScriptedHandler()
	h.errFor["b1"] = fmt.Errorf("%w: bad input", worker.ErrInvalidJob)
	p := startPool(t, worker.PoolParams{Handler: h, RetryBackoff: time.Millisecond})

	p.Schedule("b1", "https://example.com")
	drain(t, p)

	assert.DeepEqual(t, h.Attempts("b1"), []int{1})
}

func TestPool_DropsWhenQueueFull(t *testing.T) {
	h := newScriptedHandler()
	h.block = make(chan struct{})
	p := worker.NewPool(worker.PoolParams{Handler: h, Workers: 1, QueueSize: 2})

	// not started, so nothing leaves the queue
	assert.Assert(t, p.Submit(worker.Job{BookmarkID: "b1", URL: "u"}))
	assert.Assert(t, p.Submit(worker.Job{BookmarkID: "b2", URL: "u"}))
	assert.Assert(t, !p.Submit(worker.Job{BookmarkID: "b3", URL: "u"}))
	assert.Equal(t, p.Pending(), 2)

	p.Start(context.Background())
	defer p.Stop()
	close(h.block)
	drain(t, p)

	assert.Equal(t, len(h.Attempts("b3")), 0)
}

func TestPool_DrainRespectsContext(t *testing.T) {
	h := newScriptedHandler()
	h.block = make(chan struct{})
	p := startPool(t, worker.PoolParams{Handler: h})
	defer close(h.block)

	p.Schedule("b1", "https://example.com")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Drain(ctx), context.DeadlineExceeded)
}

func TestPool_DrainWhenIdle(t *testing.T) {
	p := worker.NewPool(worker.PoolParams{Handler: newScriptedHandler()})
	assert.NilError(t, p.Drain(context.Background()))
}
