package dynobj

import (
	"fmt"
	"sync"
)

// signalSlot is the tagged variant spec.md §9 calls for to resolve
// the cyclic-ownership hazard between the signal table and
// property-backed signals: Owned holds a signal table-owned cell
// (released with the DynamicObject if its id is >= ManageableEndID);
// Borrowed marks a cell owned elsewhere (a property's signal, or one
// produced by a Manageable signal getter) that must not be
// double-released by the signal table.
type signalSlot struct {
	signal   *SignalBase
	borrowed bool
}

// DynamicObject is the live instance described by spec.md §3/§4.4: a
// method table, a lazily-populated signal table, a lazily-populated
// property table, a threading-model flag, and a four-verb surface.
// Grounded directly in original_source/src/dynamicobject.cpp's
// DynamicObject/DynamicObjectPrivate, collapsed into one struct since
// this engine publishes DynamicObject exclusively behind an Object
// handle (object.go) that already owns sharing/lifetime (spec.md §9,
// "Private implementation handle").
type DynamicObject struct {
	mu sync.RWMutex

	meta           *MetaObject
	methods        map[uint32]methodEntry
	signals        map[uint32]signalSlot
	properties     map[uint32]PropertyBase
	threadingModel ObjectThreadingModel
	dying          bool

	manageable *Manageable

	dispatcher *Dispatcher
	logr       Logger
}

// NewDynamicObject returns an empty object in its builder phase
// (SetMetaObject/SetMethod/SetSignal/SetProperty/SetManageable),
// ready to be frozen into service by a first MetaCall/MetaPost/etc.
// It dispatches through NewDispatcher(nil) until SetDispatcher is
// called.
func NewDynamicObject() *DynamicObject {
	return &DynamicObject{
		meta:           NewMetaObject(),
		methods:        make(map[uint32]methodEntry),
		signals:        make(map[uint32]signalSlot),
		properties:     make(map[uint32]PropertyBase),
		threadingModel: ObjectThreadingModelSingleThread,
		dispatcher:     NewDispatcher(nil),
		logr:           NopLogger{},
	}
}

// SetDispatcher overrides the Dispatcher used for MetaCall, e.g. to
// share one Dispatcher (and its deadlock-timeout config) across many
// objects.
func (o *DynamicObject) SetDispatcher(d *Dispatcher) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dispatcher = d
}

// SetLogger overrides the Logger used for metaPost's error-and-drop
// paths (spec.md line 68). A nil logger resets to NopLogger.
func (o *DynamicObject) SetLogger(l Logger) {
	if l == nil {
		l = NopLogger{}
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.logr = l
}

// SetMetaObject replaces the object's MetaObject wholesale. Per
// spec.md §3, the engine treats it as immutable after assignment:
// only on-demand materialization (createSignal/property) adds to the
// signal/property tables afterward, it never mutates meta itself.
func (o *DynamicObject) SetMetaObject(m *MetaObject) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.meta = m
}

// MetaObject returns the object's current MetaObject.
func (o *DynamicObject) MetaObject() *MetaObject {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.meta
}

// SetThreadingModel sets whether concurrent Auto-hint calls on this
// instance are serialized.
func (o *DynamicObject) SetThreadingModel(m ObjectThreadingModel) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.threadingModel = m
}

// ThreadingModel returns the object's current threading model.
func (o *DynamicObject) ThreadingModel() ObjectThreadingModel {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.threadingModel
}

// SetMethod binds a callable and per-method threading hint to id.
func (o *DynamicObject) SetMethod(id uint32, fn *Function, hint MetaCallType) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.methods[id] = methodEntry{fn: fn, hint: hint}
}

// SetSignal pre-populates the signal table with an already-existing
// SignalBase under id (as opposed to lazily creating one from the
// MetaObject's declaration), matching
// original_source's DynamicObject::setSignal.
func (o *DynamicObject) SetSignal(id uint32, s *SignalBase) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.signals[id] = signalSlot{signal: s}
}

// SetProperty pre-populates the property table under id.
func (o *DynamicObject) SetProperty(id uint32, p PropertyBase) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.properties[id] = p
}

// SetManageable merges registry's MetaObject and method map into this
// object, and converts each of registry's signal getters into a live
// SignalBase bound to instance, matching original_source's
// DynamicObject::setManageable. Per spec.md invariant 3, method ids in
// [ManageableStartID, ManageableEndID) receive instance as their
// implicit first MetaCall argument instead of the DynamicObject
// itself.
func (o *DynamicObject) SetManageable(instance *Manageable, registry *ManageableRegistry) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.manageable = instance
	for id, entry := range registry.Methods {
		o.methods[id] = entry
	}
	o.meta = MergeMetaObject(o.meta, registry.Meta)
	for id, getter := range registry.Signals {
		o.signals[id] = signalSlot{signal: getter(instance), borrowed: true}
	}
}

// Method returns the callable and threading hint bound to id.
func (o *DynamicObject) Method(id uint32) (*Function, MetaCallType, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	e, ok := o.methods[id]
	if !ok {
		return nil, MetaCallAuto, false
	}
	return e.fn, e.hint, true
}

// Signal returns the signal cell for id without adding it to the
// signal table: for a property id it returns that property's own
// signal (spec.md invariant 1), materializing the property cell if
// needed; otherwise it looks up an already-materialized signal table
// entry and returns nil if there is none yet — callers that want lazy
// creation use createSignal via MetaPost/MetaConnect/MetaDisconnect.
func (o *DynamicObject) Signal(id uint32) *SignalBase {
	o.mu.RLock()
	_, isProperty := o.meta.Property(id)
	o.mu.RUnlock()
	if isProperty {
		p, err := o.Property(id)
		if err != nil {
			return nil
		}
		return p.Signal()
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	slot, ok := o.signals[id]
	if !ok {
		return nil
	}
	return slot.signal
}

// Property returns the property cell for id, materializing it on
// first reference from the MetaObject's declared signature (spec.md
// §4.4 "Lazy property materialization"). Repeated calls return the
// same cell (spec.md testable property 3).
func (o *DynamicObject) Property(id uint32) (PropertyBase, error) {
	o.mu.RLock()
	if p, ok := o.properties[id]; ok {
		o.mu.RUnlock()
		return p, nil
	}
	o.mu.RUnlock()

	o.mu.Lock()
	defer o.mu.Unlock()
	// Re-check under the write lock: another goroutine may have
	// materialized it while we waited.
	if p, ok := o.properties[id]; ok {
		return p, nil
	}
	desc, ok := o.meta.Property(id)
	if !ok {
		return nil, ErrPropertyUnknown
	}
	t, err := FromSignature(desc.ValueSignature)
	if err != nil {
		return nil, err
	}
	p := NewGenericProperty(t)
	o.properties[id] = p
	return p, nil
}

// createSignal implements spec.md §4.4's "Lazy signal materialization":
// if id already has a signal table entry, return it; else if id names
// a property, borrow (and cache) that property's signal; else if id
// names a declared signal, allocate and cache a new SignalBase; else
// return nil. Note: per spec.md §9's Open Question, this can be
// called (and will happily materialize a signal) from MetaDisconnect
// on an id that turns out to have no such local subscription — that
// tolerance is preserved deliberately, matching
// original_source/src/dynamicobject.cpp.
func (o *DynamicObject) createSignal(id uint32) *SignalBase {
	o.mu.RLock()
	if slot, ok := o.signals[id]; ok {
		o.mu.RUnlock()
		return slot.signal
	}
	_, isProperty := o.meta.Property(id)
	o.mu.RUnlock()

	if isProperty {
		p, err := o.Property(id)
		if err != nil {
			return nil
		}
		s := p.Signal()
		o.mu.Lock()
		if slot, ok := o.signals[id]; ok {
			o.mu.Unlock()
			return slot.signal
		}
		o.signals[id] = signalSlot{signal: s, borrowed: true}
		o.mu.Unlock()
		return s
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if slot, ok := o.signals[id]; ok {
		return slot.signal
	}
	desc, ok := o.meta.Signal(id)
	if !ok {
		return nil
	}
	s := NewSignalBase(desc.ParameterSignature)
	o.signals[id] = signalSlot{signal: s}
	return s
}

// MetaCall implements spec.md §4.4's metaCall: look up methodID,
// prepend the implicit receiver, and delegate to the Dispatcher.
func (o *DynamicObject) MetaCall(ctx Context, methodID uint32, params []AnyValue, callType MetaCallType) Future[AnyValue] {
	o.mu.RLock()
	if o.dying {
		o.mu.RUnlock()
		return MakeFailedFuture[AnyValue](ErrObjectDying)
	}
	entry, ok := o.methods[methodID]
	manageable := o.manageable
	threadingModel := o.threadingModel
	dispatcher := o.dispatcher
	o.mu.RUnlock()

	if !ok {
		return MakeFailedFuture[AnyValue](fmt.Errorf("%w: %d", ErrMethodNotFound, methodID))
	}

	receiver := From(o)
	if methodID >= ManageableStartID && methodID < ManageableEndID {
		receiver = From(manageable)
	}
	full := make([]AnyValue, 0, len(params)+1)
	full = append(full, receiver)
	full = append(full, params...)

	var el EventLoop
	if ctx != nil {
		el = ctx.EventLoop()
	}
	return dispatcher.Dispatch(dispatchParams{
		el:           el,
		objModel:     threadingModel,
		methodHint:   entry.hint,
		callType:     callType,
		ctx:          ctx,
		methodID:     methodID,
		fn:           entry.fn,
		params:       full,
		noCloneFirst: true,
	})
}

// MetaPost implements spec.md §4.4's metaPost: trigger the signal for
// eventID if one exists/can be materialized; otherwise, if eventID
// names a method, fire a queued, fire-and-forget MetaCall; otherwise
// log and drop.
func (o *DynamicObject) MetaPost(ctx Context, eventID uint32, params []AnyValue) {
	if o.Dying() {
		o.logger().Error("metaPost: object is being destroyed", "event", eventID)
		return
	}
	if s := o.createSignal(eventID); s != nil {
		s.Trigger(params)
		return
	}
	if _, ok := o.MetaObject().Method(eventID); ok {
		fut := o.MetaCall(ctx, eventID, params, MetaCallQueued)
		fut.Connect(func(f Future[AnyValue]) {
			if err := f.Error(); err != nil {
				o.logger().Error("metaPost: method call failed", "event", eventID, "error", err)
			}
		})
		return
	}
	o.logger().Error("metaPost: no such event", "event", eventID)
}

func (o *DynamicObject) logger() Logger {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.logr
}

// MetaConnect implements spec.md §4.4's metaConnect.
func (o *DynamicObject) MetaConnect(eventID uint32, subscriber Subscriber) Future[SignalLink] {
	s := o.createSignal(eventID)
	if s == nil {
		return MakeFailedFuture[SignalLink](ErrSignalNotFound)
	}
	local := s.Connect(subscriber)
	if local == InvalidSignalLink {
		return MakeReadyFuture(SignalLink(0))
	}
	return MakeReadyFuture(EncodeSignalLink(eventID, local))
}

// MetaDisconnect implements spec.md §4.4's metaDisconnect.
func (o *DynamicObject) MetaDisconnect(link SignalLink) Future[struct{}] {
	eventID, local := link.Split()
	// materializes on unknown ids too — matches upstream (spec.md §9 Open Question)
	s := o.createSignal(eventID)
	if s == nil {
		return MakeFailedFuture[struct{}](ErrLinkNotFound)
	}
	if !s.Disconnect(local) {
		return MakeFailedFuture[struct{}](ErrLinkNotFound)
	}
	return MakeReadyFuture(struct{}{})
}

// MetaProperty implements spec.md §4.4's metaProperty get.
func (o *DynamicObject) MetaProperty(id uint32) Future[AnyValue] {
	p, err := o.Property(id)
	if err != nil {
		return MakeFailedFuture[AnyValue](err)
	}
	return MakeReadyFuture(p.Value())
}

// MetaSetProperty implements spec.md §4.4's metaProperty set.
func (o *DynamicObject) MetaSetProperty(id uint32, val AnyValue) Future[struct{}] {
	p, err := o.Property(id)
	if err != nil {
		return MakeFailedFuture[struct{}](fmt.Errorf("setProperty: %w", err))
	}
	if err := p.SetValue(val); err != nil {
		return MakeFailedFuture[struct{}](fmt.Errorf("setProperty: %w", err))
	}
	return MakeReadyFuture(struct{}{})
}

// Destroy marks the object dying (rejecting further MetaCall/MetaPost
// work) and releases signal-table entries that this object owns
// exclusively: ids >= ManageableEndID that are not borrowed from a
// property (spec.md invariant 2). Manageable-facet signals and
// property-borrowed signals are left to their owners.
func (o *DynamicObject) Destroy() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dying = true
	for id, slot := range o.signals {
		if !slot.borrowed && id >= ManageableEndID {
			delete(o.signals, id)
		}
	}
}

// Dying reports whether Destroy has been called.
func (o *DynamicObject) Dying() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.dying
}
