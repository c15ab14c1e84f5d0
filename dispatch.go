package asyncftp

import (
	"io"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// EventHandler implements the behaviour of a StreamOperation.
//
// All methods but Prepare run on the stream's event goroutine, one at a time.
// A non-nil error from OpenCompleted, BytesAvailable or SpaceAvailable fails
// the operation: Failed runs with that error and the operation finishes.
// SpaceAvailable may return io.EOF to report a complete transfer, in which
// case End runs and the operation finishes without error.
type EventHandler interface {
	// Prepare acquires local resources and returns the stream to attach.
	// It runs on the goroutine calling Start.
	Prepare(op *StreamOperation) (Stream, error)

	OpenCompleted(s Stream) error
	BytesAvailable(s InputStream) error
	SpaceAvailable(s OutputStream) error

	// End runs when the transfer completed. Its error, if any, becomes the
	// operation's error.
	End(s Stream) error

	// Failed runs when the operation fails or is cancelled, before it
	// finishes. It releases local resources.
	Failed(s Stream, err error)
}

// BaseHandler implements the event methods of EventHandler as no-ops.
// Handlers embed it and override what they need.
type BaseHandler struct{}

func (BaseHandler) OpenCompleted(Stream) error        { return nil }
func (BaseHandler) BytesAvailable(InputStream) error  { return nil }
func (BaseHandler) SpaceAvailable(OutputStream) error { return nil }
func (BaseHandler) End(Stream) error                  { return nil }
func (BaseHandler) Failed(Stream, error)              {}

// StreamOperation is an Operation driven by the events of a single stream.
// It is the delegate of its stream and routes each event to its handler.
type StreamOperation struct {
	*Operation

	handler EventHandler
	stream  Stream
}

// NewStreamOperation returns a Ready operation running h against path,
// relative to the base URL of cfg. kind names the operation in logs.
func NewStreamOperation(kind string, cfg *Configuration, path string, h EventHandler, opts ...Option) *StreamOperation {
	s := newSettings(opts)
	return &StreamOperation{
		Operation: newOperation(kind, cfg, path, s.logger),
		handler:   h,
	}
}

// URL returns the resolved URL of the operation's target.
func (op *StreamOperation) URL() string {
	return op.config.Resolve(op.path).Redacted()
}

// Start runs the operation. It has no effect unless the operation is Ready.
// A cancelled operation finishes at once with ErrCancelled.
func (op *StreamOperation) Start() {
	if !op.begin() {
		return
	}
	if op.IsCancelled() {
		op.captureError(ErrCancelled)
		op.finish()
		return
	}

	s, err := op.handler.Prepare(op)
	if err != nil {
		op.captureError(err)
		op.finish()
		return
	}
	op.attach(s)
}

// attach configures s, makes op its delegate and opens it.
func (op *StreamOperation) attach(s Stream) {
	op.stream = s
	s.SetOptions(op.config.streamOptions())
	s.SetDelegate(op)
	op.setState(StateExecuting)
	op.logger.Debug("opening stream", zap.String("url", op.URL()))
	s.Open()
}

// HandleEvent implements StreamDelegate.
func (op *StreamOperation) HandleEvent(s Stream, ev Event) {
	if op.IsFinished() {
		return
	}
	if op.IsCancelled() {
		op.fail(s, ErrCancelled)
		return
	}

	switch ev {
	case EventOpenCompleted:
		if err := op.handler.OpenCompleted(s); err != nil {
			op.fail(s, err)
		}

	case EventHasBytesAvailable:
		in, ok := s.(InputStream)
		if !ok {
			return
		}
		if err := op.handler.BytesAvailable(in); err != nil {
			op.fail(s, err)
		}

	case EventHasSpaceAvailable:
		out, ok := s.(OutputStream)
		if !ok {
			return
		}
		err := op.handler.SpaceAvailable(out)
		if errors.Is(err, io.EOF) {
			op.captureError(op.handler.End(s))
			op.finish()
			return
		}
		if err != nil {
			op.fail(s, err)
		}

	case EventErrorOccurred:
		err := s.Err()
		if err == nil {
			err = ErrStreamFailed
		}
		op.fail(s, err)

	case EventEndEncountered:
		op.captureError(op.handler.End(s))
		op.finish()

	default:
		op.logger.Warn("ignoring unknown stream event", zap.Stringer("event", ev))
	}
}

func (op *StreamOperation) fail(s Stream, err error) {
	if a, ok := s.(Aborter); ok {
		a.Abort()
	}
	op.handler.Failed(s, err)
	op.captureError(err)
	op.finish()
}

// finish closes the stream and moves the operation to Finished. A close error
// fails the operation only if it had not failed already.
func (op *StreamOperation) finish() {
	if s := op.stream; s != nil {
		op.stream = nil
		if err := s.Close(); err != nil && op.Err() == nil {
			op.handler.Failed(s, err)
			op.captureError(err)
		}
	}
	op.setState(StateFinished)
}
