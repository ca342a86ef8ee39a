// FILE: muxd/src/internal/engine/tasks.go
package engine

import (
	"fmt"
	"sync/atomic"
	"time"

	"muxd/src/internal/event"

	"github.com/lixenwraith/log"
	"github.com/panjf2000/ants/v2"
)

// taskPool runs task events on task_worker_num goroutines.
// Each running task holds one task worker id from slots. Submitting while every
// task worker is busy fails instead of blocking the calling event loop.
type taskPool struct {
	e     *Engine
	pool  *ants.Pool
	slots chan int
	first int
	size  int
	seq   atomic.Int64
}

type antsLogger struct {
	logger *log.Logger
}

func (l antsLogger) Printf(format string, args ...any) {
	l.logger.Warn("msg", fmt.Sprintf(format, args...), "component", "task_pool")
}

func newTaskPool(e *Engine, first, size int) (*taskPool, error) {
	pool, err := ants.NewPool(size,
		ants.WithNonblocking(true),
		ants.WithLogger(antsLogger{logger: e.logger}),
		ants.WithPanicHandler(func(r any) {
			e.logger.Error("msg", "Task worker panicked",
				"component", "task_pool",
				"panic", fmt.Sprint(r))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create task pool: %w", err)
	}

	t := &taskPool{
		e:     e,
		pool:  pool,
		slots: make(chan int, size),
		first: first,
		size:  size,
	}
	for i := 0; i < size; i++ {
		t.slots <- first + i
	}
	return t, nil
}

// submit queues data for a task worker and returns the task id.
// A non-nil Result from the task handler comes back as a Finish event on fromWorker;
// otherwise only the observer is told the task ended.
func (t *taskPool) submit(fromWorker int, data []byte) (int, error) {
	id := int(t.seq.Add(1))

	err := t.pool.Submit(func() {
		slot := <-t.slots
		defer func() { t.slots <- slot }()

		ev := &event.Event{
			Kind:        event.Task,
			WorkerID:    slot,
			SrcWorkerID: fromWorker,
			TaskID:      id,
			Data:        data,
		}
		t.e.emit(ev)

		done := &event.Event{
			Kind:     event.Finish,
			WorkerID: fromWorker,
			TaskID:   id,
			Data:     ev.Result,
		}
		if ev.Result != nil {
			t.e.emit(done)
			return
		}
		// No result: observers still see the task end, the finish handler does not run
		t.e.notify(t.e.master, done)
	})
	if err != nil {
		return -1, fmt.Errorf("failed to submit task: %w", err)
	}
	return id, nil
}

// reload drains running tasks, then cycles the task worker ids
func (t *taskPool) reload(wait time.Duration) error {
	for i := 0; i < t.size; i++ {
		t.e.emit(&event.Event{Kind: event.WorkerStop, WorkerID: t.first + i})
	}

	if err := t.pool.ReleaseTimeout(wait); err != nil {
		t.e.logger.Warn("msg", "Task workers did not drain in time",
			"component", "task_pool",
			"error", err)
	}
	t.pool.Reboot()

	for i := 0; i < t.size; i++ {
		t.e.emit(&event.Event{Kind: event.WorkerStart, WorkerID: t.first + i})
	}
	return nil
}

func (t *taskPool) release(wait time.Duration) error {
	if err := t.pool.ReleaseTimeout(wait); err != nil {
		return fmt.Errorf("task pool release: %w", err)
	}
	return nil
}

func (t *taskPool) running() int {
	return t.pool.Running()
}
