package asyncftp_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gonzalop/asyncftp"
	"github.com/gonzalop/asyncftp/streamtest"
)

func TestOperationState_String(t *testing.T) {
	tests := []struct {
		state asyncftp.OperationState
		want  string
	}{
		{asyncftp.StateReady, "Ready"},
		{asyncftp.StateExecuting, "Executing"},
		{asyncftp.StateFinished, "Finished"},
		{asyncftp.OperationState(7), "OperationState(7)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}

func TestOperation_Lifecycle(t *testing.T) {
	tr := streamtest.NewTransport()
	tr.Serve("/a.txt", streamtest.NewInputStream([]byte("hello"), 2))

	op := asyncftp.NewDownloadOperation(newConfig(t), tr, "a.txt", asyncftp.WithTempDir(t.TempDir()))
	rec := recordTransitions(op)

	assert.True(t, op.IsReady())
	assert.NotEmpty(t, op.ID())
	assert.Equal(t, "a.txt", op.Path())

	op.Start()
	require.NoError(t, wait(t, op))

	assert.True(t, op.IsFinished())
	assert.False(t, op.IsExecuting())
	assert.Equal(t, fullLifecycle, rec.list())

	// Finished is final: starting again changes nothing.
	op.Start()
	op.Cancel()
	assert.True(t, op.IsFinished())
	assert.NoError(t, op.Err())
	assert.Empty(t, rec.list())
}

func TestOperation_CancelBeforeStart(t *testing.T) {
	dir := t.TempDir()
	tr := streamtest.NewTransport()
	in := streamtest.NewInputStream([]byte("never read"), 0)
	tr.Serve("/a.txt", in)

	op := asyncftp.NewDownloadOperation(newConfig(t), tr, "a.txt", asyncftp.WithTempDir(dir))
	rec := recordTransitions(op)

	op.Cancel()
	assert.True(t, op.IsCancelled())
	op.Start()

	require.ErrorIs(t, wait(t, op), asyncftp.ErrCancelled)
	assert.Equal(t, fullLifecycle, rec.list())
	assert.Empty(t, op.LocalPath())
	assert.Empty(t, in.Events(), "stream must not be opened")
	assert.Empty(t, dirEntries(t, dir), "no temporary file is created")
}

func TestOperation_WaitNeverStarted(t *testing.T) {
	op := asyncftp.NewListOperation(newConfig(t), streamtest.NewTransport(), "pub")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, op.Wait(ctx), context.Canceled)
	assert.True(t, op.IsCancelled())

	// Starting it later finishes it as cancelled.
	op.Start()
	assert.True(t, op.IsFinished())
	assert.ErrorIs(t, op.Err(), asyncftp.ErrCancelled)
}

func TestOperation_WaitRacingStart(t *testing.T) {
	for i := 0; i < 50; i++ {
		tr := streamtest.NewTransport()
		in := streamtest.NewInputStream([]byte("data"), 0)
		tr.Serve("/a.txt", in)
		op := asyncftp.NewDownloadOperation(newConfig(t), tr, "a.txt", asyncftp.WithTempDir(t.TempDir()))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		startDone := make(chan struct{})
		go func() {
			defer close(startDone)
			op.Start()
		}()
		err := op.Wait(ctx)
		<-startDone

		if errors.Is(err, context.Canceled) {
			// Wait returned without waiting: the operation must not have run.
			assert.Empty(t, in.Events(), "stream opened after Wait gave up")
			assert.True(t, op.IsFinished())
			assert.ErrorIs(t, op.Err(), asyncftp.ErrCancelled)
			continue
		}
		assert.True(t, op.IsFinished(), "Wait returned before the operation finished")
	}
}

func TestOperation_PrepareFailureFinishes(t *testing.T) {
	op := asyncftp.NewUploadOperation(newConfig(t), streamtest.NewTransport(),
		"/does/not/exist.bin", "remote.bin")
	rec := recordTransitions(op)

	op.Start()

	var ioErr *asyncftp.LocalIOError
	require.ErrorAs(t, wait(t, op), &ioErr)
	assert.Equal(t, "open", ioErr.Op)
	assert.Equal(t, "/does/not/exist.bin", ioErr.Path)
	assert.Equal(t, fullLifecycle, rec.list())
}
