package asyncftp_test

import (
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gonzalop/asyncftp"
	"github.com/gonzalop/asyncftp/streamtest"
)

// recordingHandler records the calls made by the dispatcher.
type recordingHandler struct {
	asyncftp.BaseHandler

	stream   asyncftp.Stream
	bytesErr error
	endErr   error

	mu     sync.Mutex
	calls  []string
	failed error
}

func (h *recordingHandler) record(call string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, call)
}

func (h *recordingHandler) Calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

func (h *recordingHandler) Prepare(*asyncftp.StreamOperation) (asyncftp.Stream, error) {
	h.record("prepare")
	return h.stream, nil
}

func (h *recordingHandler) OpenCompleted(asyncftp.Stream) error {
	h.record("open")
	return nil
}

func (h *recordingHandler) BytesAvailable(s asyncftp.InputStream) error {
	h.record("bytes")
	io.ReadAll(io.LimitReader(readerFunc(s.Read), 1<<20))
	return h.bytesErr
}

func (h *recordingHandler) End(asyncftp.Stream) error {
	h.record("end")
	return h.endErr
}

func (h *recordingHandler) Failed(_ asyncftp.Stream, err error) {
	h.record("failed")
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failed = err
}

type readerFunc func([]byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) {
	n, err := f(p)
	if n == 0 && err == nil {
		return 0, io.EOF
	}
	return n, err
}

func TestStreamOperation_EventRouting(t *testing.T) {
	in := streamtest.NewInputStream([]byte("abcdef"), 2)
	h := &recordingHandler{stream: in}

	op := asyncftp.NewStreamOperation("custom", newConfig(t), "x", h)
	op.Start()
	require.NoError(t, wait(t, op))

	assert.Equal(t, []string{"prepare", "open", "bytes", "bytes", "bytes", "end"}, h.Calls())
	assert.True(t, in.Closed())
}

func TestStreamOperation_HandlerError(t *testing.T) {
	in := streamtest.NewInputStream([]byte("abcdef"), 2)
	failure := errors.New("disk full")
	h := &recordingHandler{stream: in, bytesErr: failure}

	op := asyncftp.NewStreamOperation("custom", newConfig(t), "x", h)
	op.Start()

	require.ErrorIs(t, wait(t, op), failure)
	assert.Equal(t, []string{"prepare", "open", "bytes", "failed"}, h.Calls())
	assert.ErrorIs(t, h.failed, failure)
	assert.True(t, in.Closed())
	assert.Len(t, in.Events(), 2, "no events after the operation finished")
}

func TestStreamOperation_EndError(t *testing.T) {
	in := streamtest.NewInputStream([]byte("ab"), 0)
	failure := errors.New("checksum mismatch")
	h := &recordingHandler{stream: in, endErr: failure}

	op := asyncftp.NewStreamOperation("custom", newConfig(t), "x", h)
	op.Start()

	require.ErrorIs(t, wait(t, op), failure)
	assert.Equal(t, []string{"prepare", "open", "bytes", "end"}, h.Calls())
}

func TestStreamOperation_StreamErrorWithoutCause(t *testing.T) {
	in := streamtest.NewInputStream(nil, 0)
	h := &recordingHandler{stream: in}
	op := asyncftp.NewStreamOperation("custom", newConfig(t), "x", h)

	// Deliver an error event by hand, after the stream is attached.
	in.BeforeEvent = func(ev asyncftp.Event) {
		if ev == asyncftp.EventOpenCompleted {
			op.HandleEvent(in, asyncftp.EventErrorOccurred)
		}
	}
	op.Start()

	require.ErrorIs(t, wait(t, op), asyncftp.ErrStreamFailed)
	assert.Equal(t, []string{"prepare", "failed"}, h.Calls())
}

func TestStreamOperation_CancelNotifiesHandler(t *testing.T) {
	in := streamtest.NewInputStream([]byte("abcdef"), 2)
	h := &recordingHandler{stream: in}
	op := asyncftp.NewStreamOperation("custom", newConfig(t), "x", h)

	in.BeforeEvent = func(ev asyncftp.Event) {
		if ev == asyncftp.EventHasBytesAvailable {
			op.Cancel()
		}
	}
	op.Start()

	require.ErrorIs(t, wait(t, op), asyncftp.ErrCancelled)
	assert.Equal(t, []string{"prepare", "open", "failed"}, h.Calls())
	assert.ErrorIs(t, h.failed, asyncftp.ErrCancelled)
}

func TestEvent_String(t *testing.T) {
	assert.Equal(t, "HasBytesAvailable", asyncftp.EventHasBytesAvailable.String())
	assert.Equal(t, "EndEncountered", asyncftp.EventEndEncountered.String())
	assert.Equal(t, "Event(99)", asyncftp.Event(99).String())
}
