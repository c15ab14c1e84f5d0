package asyncftp_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gonzalop/asyncftp"
)

func newConfig(t *testing.T, opts ...asyncftp.ConfigOption) *asyncftp.Configuration {
	t.Helper()
	cfg, err := asyncftp.NewConfiguration("ftp://ftp.example.com/", opts...)
	require.NoError(t, err)
	return cfg
}

// wait waits for op with a deadline and returns its error.
func wait(t *testing.T, op interface{ Wait(context.Context) error }) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := op.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "operation did not finish")
	return err
}

// transitions records the state changes of an operation.
type transitions struct {
	ch chan [2]asyncftp.OperationState
}

func recordTransitions(op interface{ OnTransition(asyncftp.TransitionFunc) }) *transitions {
	r := &transitions{ch: make(chan [2]asyncftp.OperationState, 16)}
	op.OnTransition(func(from, to asyncftp.OperationState) {
		r.ch <- [2]asyncftp.OperationState{from, to}
	})
	return r
}

func (r *transitions) list() [][2]asyncftp.OperationState {
	var out [][2]asyncftp.OperationState
	for {
		select {
		case c := <-r.ch:
			out = append(out, c)
		default:
			return out
		}
	}
}

var fullLifecycle = [][2]asyncftp.OperationState{
	{asyncftp.StateReady, asyncftp.StateExecuting},
	{asyncftp.StateExecuting, asyncftp.StateFinished},
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
