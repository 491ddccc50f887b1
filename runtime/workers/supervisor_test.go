package workers

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type countingWorker struct {
	runs    atomic.Int32
	done    chan struct{}
	panicAt int32
}

func (w *countingWorker) Run(ctx context.Context) error {
	n := w.runs.Add(1)
	if n <= w.panicAt {
		panic("boom")
	}
	close(w.done)
	<-ctx.Done()
	return nil
}

func Test_Supervisor_Restarts_Panicking_Worker(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	sup := NewSupervisor(log, 5*time.Millisecond)

	worker := &countingWorker{done: make(chan struct{}), panicAt: 2}
	sup.Add(worker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	finished := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(finished)
	}()

	select {
	case <-worker.done:
	case <-time.After(2 * time.Second):
		req.Fail("worker was not restarted after panicking")
	}
	req.EqualValues(3, worker.runs.Load())

	sup.Stop()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		req.Fail("supervisor did not drain after Stop")
	}
}

func Test_Supervisor_Stops_On_Parent_Cancellation(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	sup := NewSupervisor(log, 5*time.Millisecond)

	worker := &countingWorker{done: make(chan struct{})}
	sup.Add(worker)

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(finished)
	}()

	<-worker.done
	cancel()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		req.Fail("supervisor did not stop with its parent context")
	}
}
