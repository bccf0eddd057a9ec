package worker

import (
	"context"
	"sync"
	"time"

	"github.com/ifmain/pinny/internal/logger"
)

const (
	DefaultWorkers      = 4
	DefaultQueueSize    = 256
	DefaultMaxAttempts  = 5
	DefaultRetryBackoff = 10 * time.Second
)

// PoolParams configures a Pool.
type PoolParams struct {
	Handler      Handler
	Workers      int           // default 4
	QueueSize    int           // default 256
	MaxAttempts  int           // default 5
	RetryBackoff time.Duration // delay before the first retry, doubled each time; default 10s
	Logger       logger.Logger
}

// Pool runs jobs on a fixed number of goroutines. Failed jobs are retried
// with exponential backoff until MaxAttempts is reached.
type Pool struct {
	handler      Handler
	workers      int
	maxAttempts  int
	retryBackoff time.Duration
	log          logger.Logger

	jobs chan Job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	start  sync.Once

	mu      sync.Mutex
	pending int
	idle    chan struct{} // closed while pending == 0
}

func NewPool(params PoolParams) *Pool {
	p := &Pool{
		handler:      params.Handler,
		workers:      params.Workers,
		maxAttempts:  params.MaxAttempts,
		retryBackoff: params.RetryBackoff,
		log:          params.Logger,
		idle:         make(chan struct{}),
	}
	if p.workers <= 0 {
		p.workers = DefaultWorkers
	}
	if p.maxAttempts <= 0 {
		p.maxAttempts = DefaultMaxAttempts
	}
	if p.retryBackoff <= 0 {
		p.retryBackoff = DefaultRetryBackoff
	}
	if p.log == nil {
		p.log = logger.Nop()
	}
	queueSize := params.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	p.jobs = make(chan Job, queueSize)
	close(p.idle)
	return p
}

// Start launches the workers. They stop when ctx is cancelled or Stop is called.
func (p *Pool) Start(ctx context.Context) {
	p.start.Do(func() {
		p.ctx, p.cancel = context.WithCancel(ctx)
		for w := 0; w < p.workers; w++ {
			p.wg.Add(1)
			go func() {
				defer p.wg.Done()
				for {
					select {
					case job := <-p.jobs:
						p.run(job)
					case <-p.ctx.Done():
						return
					}
				}
			}()
		}
	})
}

// Stop cancels running jobs and waits for the workers to exit.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// Schedule implements MetadataSync.
func (p *Pool) Schedule(bookmarkID, url string) {
	p.Submit(Job{BookmarkID: bookmarkID, URL: url})
}

// Submit queues a job. It returns false, dropping the job, when the queue is full.
func (p *Pool) Submit(job Job) bool {
	p.acquire()
	select {
	case p.jobs <- job:
		return true
	default:
		p.release()
		p.log.Warn("metadata queue full, dropping job",
			logger.String("bookmark", job.BookmarkID),
			logger.String("url", job.URL))
		return false
	}
}

// Drain blocks until every accepted job, retries included, has finished.
func (p *Pool) Drain(ctx context.Context) error {
	p.mu.Lock()
	idle := p.idle
	p.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of accepted jobs that haven't finished.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}

func (p *Pool) run(job Job) {
	job.Attempt++
	err := p.handler.Sync(p.ctx, job)
	if err == nil {
		p.release()
		return
	}

	log := p.log.With(
		logger.String("bookmark", job.BookmarkID),
		logger.String("url", job.URL),
		logger.Int("attempt", job.Attempt),
		logger.Error(err))

	if IsPermanent(err) || job.Attempt >= p.maxAttempts || p.ctx.Err() != nil {
		log.Error("metadata sync failed")
		p.release()
		return
	}

	delay := p.backoff(job.Attempt)
	log.Warn("metadata sync failed, retrying", logger.Duration("retry_in", delay))
	time.AfterFunc(delay, func() {
		select {
		case p.jobs <- job:
		case <-p.ctx.Done():
			p.release()
		}
	})
}

// maxRetryBackoff caps the exponential retry delay.
const maxRetryBackoff = time.Hour

// backoff returns the delay after the given failed attempt (1-based).
func (p *Pool) backoff(attempt int) time.Duration {
	d := p.retryBackoff
	for i := 1; i < attempt && d < maxRetryBackoff; i++ {
		d *= 2
	}
	return min(d, maxRetryBackoff)
}

func (p *Pool) acquire() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending == 0 {
		p.idle = make(chan struct{})
	}
	p.pending++
}

func (p *Pool) release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending--
	if p.pending == 0 {
		close(p.idle)
	}
}
