package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func newTestRunner() *Runner {
	return NewRunner(4, 3, time.Millisecond, time.Second)
}

func TestRunnerExecutesTask(t *testing.T) {
	r := newTestRunner()
	r.Start()
	defer r.Stop()

	done := make(chan struct{})
	ok := r.Submit(Task{
		Name: "noop",
		Run: func(ctx context.Context) error {
			close(done)
			return nil
		},
	})
	require.True(t, ok)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}

	require.Empty(t, r.DeadLetters())
}

func TestRunnerRetriesUntilSuccess(t *testing.T) {
	r := newTestRunner()
	r.Start()
	defer r.Stop()

	var attempts int32
	done := make(chan struct{})
	r.Submit(Task{
		Name: "flaky",
		Run: func(ctx context.Context) error {
			if atomic.AddInt32(&attempts, 1) < 3 {
				return errors.New("transient")
			}

			close(done)
			return nil
		},
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never succeeded")
	}

	require.EqualValues(t, 3, atomic.LoadInt32(&attempts))
	require.Empty(t, r.DeadLetters())
}

func TestRunnerDeadLettersExhaustedTask(t *testing.T) {
	r := newTestRunner()
	r.Start()
	defer r.Stop()

	var attempts int32
	r.Submit(Task{
		Name: "doomed",
		Run: func(ctx context.Context) error {
			atomic.AddInt32(&attempts, 1)
			return errors.New("permanent")
		},
	})

	require.Eventually(t, func() bool {
		return len(r.DeadLetters()) == 1
	}, time.Second, 5*time.Millisecond)

	dl := r.DeadLetters()[0]
	require.Equal(t, "doomed", dl.Task)
	require.Equal(t, 3, dl.Attempts)
	require.EqualValues(t, 3, atomic.LoadInt32(&attempts))
}

func TestRunnerSubmitFullQueue(t *testing.T) {
	r := NewRunner(1, 1, time.Millisecond, time.Second)
	// Not started: the queue only drains when the worker runs.
	require.True(t, r.Submit(Task{Name: "first", Run: func(context.Context) error { return nil }}))
	require.False(t, r.Submit(Task{Name: "second", Run: func(context.Context) error { return nil }}))
}
