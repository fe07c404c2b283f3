package dynobj

// Manageable is the lifecycle-introspection facet every DynamicObject
// may opt into. spec.md §1 treats its method bodies as out of scope
// ("a pre-defined method/signal registry that the engine merges at
// construction"); this file implements exactly that merge mechanics,
// grounded in original_source/src/dynamicobject.cpp's
// DynamicObject::setManageable.
const (
	// ManageableStartID is the first id reserved for the Manageable
	// facet ([ManageableStartID, ManageableEndID) per spec.md §3).
	ManageableStartID uint32 = 1
	// ManageableEndID is the first id available for user-defined
	// methods/signals/properties.
	ManageableEndID uint32 = 100
)

// Manageable is the instance passed as the implicit first argument to
// method ids in [ManageableStartID, ManageableEndID). Its own method
// bodies are out of scope (spec.md §1); this engine only needs an
// opaque handle to prepend.
type Manageable struct {
	// Name optionally labels the facet instance for diagnostics.
	Name string
}

// SignalGetter produces a live SignalBase from a Manageable instance;
// used by ManageableRegistry to convert per-instance signal factories
// into concrete signals at merge time, matching the original's
// Manageable::SignalMap of getter functions.
type SignalGetter func(*Manageable) *SignalBase

// ManageableRegistry is the pre-built method/signal/property registry
// for the Manageable facet: a MetaObject plus the callables/getters
// that back its ids. An implementer assembles one of these once,
// process-wide, and merges it into any DynamicObject that opts in via
// DynamicObject.SetManageable.
type ManageableRegistry struct {
	Meta    *MetaObject
	Methods map[uint32]methodEntry
	Signals map[uint32]SignalGetter
}

// NewManageableRegistry builds an empty registry; callers add entries
// with AddMethod/AddSignal before passing it to DynamicObject.SetManageable.
func NewManageableRegistry() *ManageableRegistry {
	return &ManageableRegistry{
		Meta:    NewMetaObject(),
		Methods: make(map[uint32]methodEntry),
		Signals: make(map[uint32]SignalGetter),
	}
}

// AddMethod registers a Manageable-facet method: its descriptor plus
// the callable that implements it (called with the Manageable
// instance as its first argument, per spec.md invariant 3).
func (r *ManageableRegistry) AddMethod(id uint32, name, paramSig, returnSig string, hint MetaCallType, fn *Function) {
	r.Meta.AddMethod(id, name, paramSig, returnSig)
	r.Methods[id] = methodEntry{fn: fn, hint: hint}
}

// AddSignal registers a Manageable-facet signal: its descriptor plus
// a getter that produces the live SignalBase from the instance that
// is being merged in.
func (r *ManageableRegistry) AddSignal(id uint32, name, paramSig string, getter SignalGetter) {
	r.Meta.AddSignal(id, name, paramSig)
	r.Signals[id] = getter
}
