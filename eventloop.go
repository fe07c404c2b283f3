package dynobj

import (
	"sync"

	"github.com/google/uuid"
)

// EventLoop is the task-posting interface the Dispatcher schedules
// asynchronous work onto. spec.md §1 treats the real thread-pool
// executor as an external collaborator ("transport... and the
// thread-pool executor used by the event loop"); this is the minimal
// contract the Dispatcher needs from it.
type EventLoop interface {
	// Post schedules fn to run on the event loop, returning
	// immediately (non-blocking, bounded only by the executor's own
	// queue capacity per spec.md §5).
	Post(fn func())
	// IsInEventLoopThread reports whether the calling goroutine is
	// one of this event loop's own worker goroutines.
	IsInEventLoopThread() bool
}

// WorkerPoolEventLoop is a fixed-size goroutine pool running
// closures from a bounded queue (Post blocks while it is full),
// grounded in the teacher's
// modules/eventbus/memory.go (workerPool chan func() / worker loop)
// and modules/scheduler/scheduler.go (jobQueue chan Job).
type WorkerPoolEventLoop struct {
	id      string
	tasks   chan func()
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.RWMutex
	workers map[int64]struct{}
}

// NewWorkerPoolEventLoop starts workerCount goroutines draining an
// internally queued task channel. The pool's instance id is a UUID,
// matching the teacher's pervasive use of uuid.New() for correlation
// ids rather than a bare incrementing counter.
func NewWorkerPoolEventLoop(workerCount, queueSize int) *WorkerPoolEventLoop {
	if workerCount <= 0 {
		workerCount = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	el := &WorkerPoolEventLoop{
		id:      uuid.NewString(),
		tasks:   make(chan func(), queueSize),
		done:    make(chan struct{}),
		workers: make(map[int64]struct{}),
	}
	for i := 0; i < workerCount; i++ {
		el.wg.Add(1)
		go el.worker()
	}
	return el
}

// ID returns the pool's UUID, useful for diagnostics/logging.
func (el *WorkerPoolEventLoop) ID() string { return el.id }

func (el *WorkerPoolEventLoop) worker() {
	defer el.wg.Done()
	gid := goroutineID()
	el.mu.Lock()
	el.workers[gid] = struct{}{}
	el.mu.Unlock()
	defer func() {
		el.mu.Lock()
		delete(el.workers, gid)
		el.mu.Unlock()
	}()

	for {
		select {
		case fn := <-el.tasks:
			fn()
		case <-el.done:
			return
		}
	}
}

// Post queues fn for execution by one of the pool's workers.
func (el *WorkerPoolEventLoop) Post(fn func()) {
	el.tasks <- fn
}

// IsInEventLoopThread reports whether the caller is running on one of
// this pool's own worker goroutines.
func (el *WorkerPoolEventLoop) IsInEventLoopThread() bool {
	gid := goroutineID()
	el.mu.RLock()
	defer el.mu.RUnlock()
	_, ok := el.workers[gid]
	return ok
}

// Stop signals all workers to exit and waits for them to drain,
// matching the graceful-shutdown shape of the teacher's MemoryEventBus.Stop.
func (el *WorkerPoolEventLoop) Stop() {
	close(el.done)
	el.wg.Wait()
}

var (
	defaultEventLoopOnce sync.Once
	defaultEventLoop     *WorkerPoolEventLoop
)

// DefaultThreadPoolEventLoop returns the process-wide default event
// loop the Dispatcher binds to when async execution is chosen but the
// caller supplied none, matching spec.md §5's "no global state other
// than... the default thread-pool event-loop handle".
func DefaultThreadPoolEventLoop() *WorkerPoolEventLoop {
	defaultEventLoopOnce.Do(func() {
		defaultEventLoop = NewWorkerPoolEventLoop(4, 256)
	})
	return defaultEventLoop
}
