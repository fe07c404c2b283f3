package dynobj

import "sync"

// Object is the shareable handle returned to callers once a
// DynamicObject is ready for service, matching original_source's
// qi::Object/makeDynamicAnyObject: construction-time wiring (meta,
// methods, signals, manageable) happens on the *DynamicObject
// directly; Object wraps the finished instance with reference
// counting and an onDelete hook, keeping that bookkeeping out of
// DynamicObject itself (spec.md §9, "Private implementation handle").
type Object struct {
	mu            sync.Mutex
	impl          *DynamicObject
	refs          int
	destroyObject bool
	onDelete      func(*DynamicObject)
	released      bool
}

// MakeDynamicObject wraps obj behind a reference-counted Object
// handle. destroyObject selects whether the last Release calls
// obj.Destroy() before onDelete runs, matching original's
// makeDynamicAnyObject(obj, destroyObject) parameter; onDelete is an
// optional hook run exactly once, after destruction, with the wrapped
// instance (e.g. to release it back to a pool) — mirrors
// original_source's cleanupDynamicObject finalizer.
func MakeDynamicObject(obj *DynamicObject, destroyObject bool, onDelete func(*DynamicObject)) *Object {
	return &Object{
		impl:          obj,
		refs:          1,
		destroyObject: destroyObject,
		onDelete:      onDelete,
	}
}

// Retain increments the handle's reference count and returns the
// same Object, so callers can hand out additional owning references
// without constructing a new wrapper.
func (h *Object) Retain() *Object {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.refs++
	return h
}

// Release drops one reference. Once the count reaches zero it
// destroys the wrapped DynamicObject (if destroyObject was set) and
// invokes onDelete exactly once. Calling Release more times than the
// handle was retained is a caller bug; extra calls are no-ops past
// the first release at zero.
func (h *Object) Release() {
	h.mu.Lock()
	h.refs--
	shouldFinalize := h.refs <= 0 && !h.released
	if shouldFinalize {
		h.released = true
	}
	h.mu.Unlock()

	if !shouldFinalize {
		return
	}
	if h.destroyObject {
		h.impl.Destroy()
	}
	if h.onDelete != nil {
		h.onDelete(h.impl)
	}
}

// MetaObject returns the wrapped instance's MetaObject.
func (h *Object) MetaObject() *MetaObject { return h.impl.MetaObject() }

// Call performs a synchronous-preferring call (CallType Auto),
// mirroring the four-verb surface spec.md §2 names as "call".
func (h *Object) Call(ctx Context, methodID uint32, params []AnyValue) Future[AnyValue] {
	return h.impl.MetaCall(ctx, methodID, params, MetaCallAuto)
}

// Post performs a fire-and-forget signal trigger or queued method
// call, mirroring spec.md §2's "post".
func (h *Object) Post(ctx Context, eventID uint32, params []AnyValue) {
	h.impl.MetaPost(ctx, eventID, params)
}

// Connect subscribes to a signal or property, mirroring spec.md §2's
// "connect".
func (h *Object) Connect(eventID uint32, subscriber Subscriber) Future[SignalLink] {
	return h.impl.MetaConnect(eventID, subscriber)
}

// Disconnect removes a subscription, mirroring spec.md §2's
// "disconnect".
func (h *Object) Disconnect(link SignalLink) Future[struct{}] {
	return h.impl.MetaDisconnect(link)
}

// Get reads a property's current value, mirroring spec.md §2's
// property "get".
func (h *Object) Get(id uint32) Future[AnyValue] {
	return h.impl.MetaProperty(id)
}

// Set writes a property's value, mirroring spec.md §2's property
// "set".
func (h *Object) Set(id uint32, val AnyValue) Future[struct{}] {
	return h.impl.MetaSetProperty(id, val)
}
