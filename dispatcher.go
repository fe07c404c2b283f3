package dynobj

import "time"

// Dispatcher is the central decision function described in spec.md
// §4.5: given an EventLoop, the object's threading model, a
// per-method hint, and the caller's CallType, it decides sync vs.
// queued execution, decides whether to take the object's lock, runs
// the callable, and settles a Future. Grounded in original_source's
// free function qi::metaCall plus locked_call, generalized from a
// package-level function to a small struct so the deadlock timeout is
// an explicit field rather than a function-local static (spec.md §9:
// "prefer an explicit configuration value threaded into the
// Dispatcher").
type Dispatcher struct {
	cfg *Config
}

// NewDispatcher builds a Dispatcher reading its deadlock timeout from
// cfg. Pass nil to use DefaultConfig().
func NewDispatcher(cfg *Config) *Dispatcher {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Dispatcher{cfg: cfg}
}

// dispatchParams bundles metaCall's many positional arguments (the
// same grouping original_source's qi::metaCall free function takes).
type dispatchParams struct {
	el             EventLoop
	objModel       ObjectThreadingModel
	methodHint     MetaCallType
	callType       MetaCallType
	ctx            Context
	methodID       uint32
	fn             *Function
	params         []AnyValue
	noCloneFirst   bool
}

// Dispatch implements the synchronicity, event-loop, and locking
// decisions of spec.md §4.5 and returns a settled-or-eventually-settled
// Future[AnyValue].
func (d *Dispatcher) Dispatch(p dispatchParams) Future[AnyValue] {
	sync := true
	switch {
	case p.el != nil:
		sync = p.el.IsInEventLoopThread()
	case p.methodHint != MetaCallAuto:
		sync = p.methodHint == MetaCallDirect
	default:
		sync = p.callType != MetaCallQueued
	}

	el := p.el
	elForced := el != nil
	if !sync && el == nil {
		el = DefaultThreadPoolEventLoop()
	}

	doLock := p.ctx != nil && p.objModel == ObjectThreadingModelSingleThread && p.methodHint == MetaCallAuto

	if sync {
		promise := NewPromise[AnyValue](CallbackSync)
		d.call(promise, p.ctx, doLock, p.methodID, p.fn, p.params)
		return promise.Future()
	}

	mode := CallbackSync
	if elForced {
		mode = CallbackAsync
	}
	promise := NewPromise[AnyValue](mode)
	paramsCopy := cloneParams(p.params, p.noCloneFirst)
	el.Post(func() {
		d.call(promise, p.ctx, doLock, p.methodID, p.fn, paramsCopy)
	})
	return promise.Future()
}

// cloneParams makes the "one bulk copy" the async path performs
// before posting, per spec.md §5. Every element, including element 0
// (the implicit receiver DynamicObject.MetaCall always prepends), is
// copied by value with a plain slice copy rather than a deep copy, so
// the receiver pointer inside element 0 is shared, not duplicated.
// noCloneFirst is accepted for parity with original_source's
// GenericFunctionParameters::copy(noCloneFirst) and has no effect.
func cloneParams(params []AnyValue, noCloneFirst bool) []AnyValue {
	out := make([]AnyValue, len(params))
	copy(out, params)
	_ = noCloneFirst // no heap aliasing to avoid in the GC'd Go model; kept for doc parity
	return out
}

// call runs fn(params), optionally under ctx's per-object lock with
// the Dispatcher's configured timeout, and records stats/trace
// observability around it per spec.md §4.5. It never panics: fn.Call
// already normalizes panics into errors (callable.go).
func (d *Dispatcher) call(promise *Promise[AnyValue], ctx Context, doLock bool, methodID uint32, fn *Function, params []AnyValue) {
	stats := ctx != nil && ctx.IsStatsEnabled()
	trace := ctx != nil && ctx.IsTraceEnabled()

	var traceID int64
	if trace {
		traceID = ctx.NextTraceID()
		ctx.TraceObject(EventTrace{
			TraceID:   traceID,
			Kind:      EventTraceCall,
			MethodID:  methodID,
			Value:     From(traceableArgs(params)),
			Timestamp: time.Now(),
		})
	}

	var wallStart time.Time
	var userStart, sysStart float64
	if stats {
		wallStart = time.Now()
	}
	if stats || trace {
		userStart, sysStart = processCPUTimes()
	}

	var result AnyValue
	var callErr error
	if doLock {
		if !ctx.Mutex().LockTimeout(d.cfg.DeadlockTimeout) {
			callErr = ErrLockTimeout
		} else {
			result, callErr = fn.Call(params)
			ctx.Mutex().Unlock()
		}
	} else {
		result, callErr = fn.Call(params)
	}

	if callErr != nil {
		promise.SetError(callErr)
	} else {
		promise.SetValue(result)
	}

	var userDelta, sysDelta float64
	if stats || trace {
		userEnd, sysEnd := processCPUTimes()
		userDelta, sysDelta = userEnd-userStart, sysEnd-sysStart
	}
	if stats {
		ctx.PushStats(methodID, time.Since(wallStart).Seconds(), userDelta, sysDelta)
	}
	if trace {
		kind := EventTraceResult
		val := result
		if callErr != nil {
			kind = EventTraceError
			val = From(callErr.Error())
		}
		ctx.TraceObject(EventTrace{
			TraceID:   traceID,
			Kind:      kind,
			MethodID:  methodID,
			Value:     val,
			Timestamp: time.Now(),
			UserCPU:   userDelta,
			SysCPU:    sysDelta,
		})
	}
}

// traceableArgs drops the implicit receiver (element 0, prepended by
// DynamicObject.MetaCall) and converts the remainder to a plain slice
// of underlying values for the trace payload, matching
// original_source's filtering of non-trivial kinds to a placeholder —
// simplified here since AnyValue already erases wire-level kinds.
func traceableArgs(params []AnyValue) []any {
	if len(params) <= 1 {
		return nil
	}
	args := make([]any, 0, len(params)-1)
	for _, p := range params[1:] {
		args = append(args, p.Value())
	}
	return args
}
