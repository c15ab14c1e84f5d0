package asyncftp

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OperationState is the lifecycle state of an operation.
type OperationState int32

const (
	StateReady OperationState = iota
	StateExecuting
	StateFinished
)

func (s OperationState) String() string {
	switch s {
	case StateReady:
		return "Ready"
	case StateExecuting:
		return "Executing"
	case StateFinished:
		return "Finished"
	}
	return fmt.Sprintf("OperationState(%d)", int32(s))
}

// TransitionFunc observes a state change of an operation. It runs
// synchronously on the goroutine that changed the state.
type TransitionFunc func(from, to OperationState)

// Operation holds the lifecycle shared by every FTP operation: its state,
// cancellation flag, captured error and transition observers.
//
// State only moves forward, Ready to Executing to Finished. The error and
// results of an operation are only meaningful once it is Finished.
type Operation struct {
	id     string
	kind   string
	config *Configuration
	path   string
	logger *zap.Logger

	cancelled atomic.Bool

	mu        sync.Mutex
	state     OperationState
	started   bool
	err       error
	observers []TransitionFunc
	done      chan struct{}
}

func newOperation(kind string, cfg *Configuration, path string, logger *zap.Logger) *Operation {
	id := uuid.NewString()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Operation{
		id:     id,
		kind:   kind,
		config: cfg,
		path:   path,
		logger: logger.With(zap.String("op_id", id), zap.String("kind", kind), zap.String("path", path)),
		done:   make(chan struct{}),
	}
}

// ID returns the unique identifier of the operation, as used in logs.
func (o *Operation) ID() string { return o.id }

// Configuration returns the session configuration the operation runs with.
func (o *Operation) Configuration() *Configuration { return o.config }

// Path returns the target path, relative to the configuration base URL.
func (o *Operation) Path() string { return o.path }

// State returns the current state.
func (o *Operation) State() OperationState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Operation) IsReady() bool     { return o.State() == StateReady }
func (o *Operation) IsExecuting() bool { return o.State() == StateExecuting }
func (o *Operation) IsFinished() bool  { return o.State() == StateFinished }

// Cancel requests cancellation. It may be called at any time from any
// goroutine; the operation notices the request before it handles its next
// stream event, runs its cleanup and finishes with ErrCancelled.
func (o *Operation) Cancel() {
	if o.cancelled.CompareAndSwap(false, true) {
		o.logger.Debug("cancel requested")
	}
}

// IsCancelled reports whether Cancel was called.
func (o *Operation) IsCancelled() bool {
	return o.cancelled.Load()
}

// Err returns the captured error, or nil. It is only final once the operation
// is Finished.
func (o *Operation) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// Done returns a channel that is closed when the operation is Finished.
func (o *Operation) Done() <-chan struct{} {
	return o.done
}

// Wait blocks until the operation is Finished and returns its error.
//
// If ctx is done first the operation is cancelled. A started operation is
// then still awaited, so its cleanup has run when Wait returns; an operation
// that was never started returns ctx.Err() at once.
func (o *Operation) Wait(ctx context.Context) error {
	select {
	case <-o.done:
		return o.Err()
	case <-ctx.Done():
	}

	o.Cancel()
	o.mu.Lock()
	started := o.started
	o.mu.Unlock()
	if !started {
		return ctx.Err()
	}
	<-o.done
	return o.Err()
}

// begin marks the operation started. It reports false if the operation was
// started before or is no longer Ready. A Cancel that Wait observed as
// preceding begin is always seen by the caller's IsCancelled check.
func (o *Operation) begin() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started || o.state != StateReady {
		return false
	}
	o.started = true
	return true
}

// OnTransition registers fn to be called on every state change.
func (o *Operation) OnTransition(fn TransitionFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observers = append(o.observers, fn)
}

// captureError records err unless an error was already captured.
func (o *Operation) captureError(err error) {
	if err == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err == nil {
		o.err = err
	}
}

// setState moves the operation to state to. Moving backwards or to the
// current state is a no-op. Finishing from Ready passes through Executing.
func (o *Operation) setState(to OperationState) {
	o.mu.Lock()
	from := o.state
	if to <= from {
		o.mu.Unlock()
		return
	}

	type change struct{ from, to OperationState }
	var changes []change
	if from == StateReady && to == StateFinished {
		changes = append(changes, change{StateReady, StateExecuting}, change{StateExecuting, StateFinished})
	} else {
		changes = append(changes, change{from, to})
	}
	o.state = to
	observers := append([]TransitionFunc(nil), o.observers...)
	err := o.err
	o.mu.Unlock()

	for _, c := range changes {
		o.logger.Debug("state changed", zap.Stringer("from", c.from), zap.Stringer("to", c.to))
		for _, fn := range observers {
			fn(c.from, c.to)
		}
	}

	if to == StateFinished {
		if err != nil {
			o.logger.Debug("finished with error", zap.Error(err))
		}
		close(o.done)
	}
}
