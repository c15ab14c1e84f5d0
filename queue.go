package asyncftp

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Runner is an operation a Queue can schedule. *StreamOperation and the
// operations embedding it implement it.
type Runner interface {
	ID() string
	Start()
	Cancel()
	IsFinished() bool
	OnTransition(fn TransitionFunc)
	Done() <-chan struct{}
	Err() error
}

// Queue runs operations with a bound on how many execute at once. The next
// queued operation starts when a running one reports Finished.
type Queue struct {
	ctx    context.Context
	sem    *semaphore.Weighted
	group  errgroup.Group
	logger *zap.Logger

	mu   sync.Mutex
	ops  map[string]Runner
	errs *multierror.Error
}

// NewQueue returns a Queue running at most limit operations at once.
// A limit below one is treated as one. Cancelling ctx cancels every
// operation that is queued or running.
func NewQueue(ctx context.Context, limit int, logger *zap.Logger) *Queue {
	if limit < 1 {
		limit = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	q := &Queue{
		ctx:    ctx,
		sem:    semaphore.NewWeighted(int64(limit)),
		logger: logger,
		ops:    make(map[string]Runner),
	}
	context.AfterFunc(ctx, q.CancelAll)
	return q
}

// Add schedules op. It returns immediately.
func (q *Queue) Add(op Runner) {
	q.mu.Lock()
	q.ops[op.ID()] = op
	q.mu.Unlock()

	q.group.Go(func() error {
		q.run(op)
		return nil
	})
}

func (q *Queue) run(op Runner) {
	defer func() {
		q.mu.Lock()
		delete(q.ops, op.ID())
		q.mu.Unlock()
	}()

	if err := q.sem.Acquire(q.ctx, 1); err != nil {
		// The queue was cancelled; the operation finishes with ErrCancelled.
		op.Cancel()
		op.Start()
		q.record(op)
		return
	}

	var once sync.Once
	release := func() { once.Do(func() { q.sem.Release(1) }) }
	op.OnTransition(func(_, to OperationState) {
		if to == StateFinished {
			release()
		}
	})

	q.logger.Debug("starting operation", zap.String("op_id", op.ID()))
	op.Start()
	if op.IsFinished() {
		release()
	}
	<-op.Done()
	q.record(op)
}

func (q *Queue) record(op Runner) {
	select {
	case <-op.Done():
	default:
		return
	}
	if err := op.Err(); err != nil {
		q.mu.Lock()
		q.errs = multierror.Append(q.errs, err)
		q.mu.Unlock()
	}
}

// CancelAll cancels every queued and running operation.
func (q *Queue) CancelAll() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, op := range q.ops {
		op.Cancel()
	}
}

// Wait blocks until every added operation finished and returns their errors
// combined, or nil if all succeeded.
func (q *Queue) Wait() error {
	_ = q.group.Wait()
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.errs.ErrorOrNil()
}
