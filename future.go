package dynobj

import "sync"

// CallbackMode controls how a Promise invokes callbacks registered via
// Future.Connect once it settles: inline on the settling goroutine
// (Sync), or on a freshly spawned goroutine (Async). The Dispatcher
// picks Sync when it owns the worker that settles the promise (no
// caller-supplied EventLoop was used) since running the continuation
// inline cannot reenter caller state the caller doesn't control, and
// Async otherwise. Grounded in the request/response channel idiom of
// the teacher's reload_orchestrator.go and modules/scheduler, which
// never block a shared worker on arbitrary continuation work.
type CallbackMode int

const (
	CallbackSync CallbackMode = iota
	CallbackAsync
)

// Promise is the write side of a Future[T]; the settling party holds
// the Promise, callers hold the Future.
type Promise[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	value     T
	err       error
	settled   bool
	mode      CallbackMode
	callbacks []func(Future[T])
}

// NewPromise creates an unsettled promise with the given callback mode.
func NewPromise[T any](mode CallbackMode) *Promise[T] {
	return &Promise[T]{done: make(chan struct{}), mode: mode}
}

// Future returns the read-only handle backed by this promise.
func (p *Promise[T]) Future() Future[T] { return Future[T]{p: p} }

// SetValue settles the promise with a value. Settling twice panics,
// matching the contract that a callable runs exactly once per
// dispatch.
func (p *Promise[T]) SetValue(v T) { p.settle(v, nil) }

// SetError settles the promise with an error.
func (p *Promise[T]) SetError(err error) { p.settle(*new(T), err) }

func (p *Promise[T]) settle(v T, err error) {
	p.mu.Lock()
	if p.settled {
		p.mu.Unlock()
		panic("dynobj: promise settled twice")
	}
	p.value, p.err, p.settled = v, err, true
	callbacks := p.callbacks
	p.callbacks = nil
	mode := p.mode
	p.mu.Unlock()
	close(p.done)

	fut := p.Future()
	for _, cb := range callbacks {
		if mode == CallbackAsync {
			go cb(fut)
		} else {
			cb(fut)
		}
	}
}

// Future is the read-only handle to an eventual T/error pair.
// It is settled on return when the producing call already ran
// synchronously; otherwise Value blocks until settlement.
type Future[T any] struct {
	p *Promise[T]
}

// MakeFailedFuture returns an already-settled future carrying err.
func MakeFailedFuture[T any](err error) Future[T] {
	p := NewPromise[T](CallbackSync)
	p.SetError(err)
	return p.Future()
}

// MakeReadyFuture returns an already-settled future carrying v.
func MakeReadyFuture[T any](v T) Future[T] {
	p := NewPromise[T](CallbackSync)
	p.SetValue(v)
	return p.Future()
}

// IsValid reports whether this Future was obtained from a Promise
// (as opposed to the zero value).
func (f Future[T]) IsValid() bool { return f.p != nil }

// Wait blocks until the future settles.
func (f Future[T]) Wait() { <-f.p.done }

// Settled reports whether the future has already settled, without
// blocking.
func (f Future[T]) Settled() bool {
	select {
	case <-f.p.done:
		return true
	default:
		return false
	}
}

// Value blocks until settlement and returns the value or error.
func (f Future[T]) Value() (T, error) {
	<-f.p.done
	return f.p.value, f.p.err
}

// HasError reports, after waiting for settlement, whether the future
// carries an error.
func (f Future[T]) HasError() bool {
	_, err := f.Value()
	return err != nil
}

// Error returns the settled error, or nil.
func (f Future[T]) Error() error {
	_, err := f.Value()
	return err
}

// Connect registers a continuation invoked once the future settles,
// per the Promise's CallbackMode. If the future is already settled,
// the continuation runs immediately (inline, on the calling
// goroutine) regardless of mode — there is nothing left to defer.
func (f Future[T]) Connect(cb func(Future[T])) {
	p := f.p
	p.mu.Lock()
	if p.settled {
		p.mu.Unlock()
		cb(f)
		return
	}
	p.callbacks = append(p.callbacks, cb)
	p.mu.Unlock()
}
