package dynobj

import (
	"fmt"
	"sync"
)

// PropertyBase is the interface a typed property cell implements:
// value()/setValue()/signal(), per spec.md §4.3. GenericProperty is
// the only implementation shipped here (qi's PropertyBase/GenericProperty
// split does not carry meaning in Go — no virtual dispatch is needed
// for a single concrete strategy).
type PropertyBase interface {
	Value() AnyValue
	SetValue(v AnyValue) error
	Signal() *SignalBase
}

// GenericProperty is a typed cell whose writes trigger an embedded
// signal after the write becomes visible, grounded in
// original_source's GenericProperty/PropertyBase::setValue.
type GenericProperty struct {
	mu     sync.RWMutex
	typ    *TypeInterface
	value  AnyValue
	signal *SignalBase
}

// NewGenericProperty allocates a property cell typed by t, with its
// own embedded signal carrying t's signature.
func NewGenericProperty(t *TypeInterface) *GenericProperty {
	return &GenericProperty{
		typ:    t,
		signal: NewSignalBase(t.String()),
	}
}

// Value returns the current value.
func (p *GenericProperty) Value() AnyValue {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

// SetValue validates v against the declared signature (coercing via
// golobby/cast, see typeinterface.go) then writes it, and triggers the
// embedded signal with the new value *after* the write becomes
// visible to readers — matching spec.md §4.3 and invariant 1 (the
// signal obtained via DynamicObject.Signal(id) for a property id is
// this exact cell's signal).
func (p *GenericProperty) SetValue(v AnyValue) error {
	coerced, err := coerce(v.Value(), p.typ)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTypeMismatch, err)
	}
	nv := From(coerced)

	p.mu.Lock()
	p.value = nv
	p.mu.Unlock()

	p.signal.Trigger([]AnyValue{nv})
	return nil
}

// Signal returns the cell's embedded signal.
func (p *GenericProperty) Signal() *SignalBase { return p.signal }
