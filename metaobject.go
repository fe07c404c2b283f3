package dynobj

// MethodDescriptor describes one callable entry in a MetaObject.
type MethodDescriptor struct {
	ID                uint32
	Name              string
	ParameterSignature string
	ReturnSignature   string
}

// SignalDescriptor describes one broadcast event entry in a MetaObject.
type SignalDescriptor struct {
	ID                 uint32
	Name               string
	ParameterSignature string
}

// PropertyDescriptor describes one signal-backed value entry in a
// MetaObject.
type PropertyDescriptor struct {
	ID              uint32
	Name            string
	ValueSignature  string
}

// MetaObject is the read-mostly, immutable-by-convention registry
// mapping ids to method/signal/property descriptors. It is the Go
// counterpart to the teacher's id-keyed registries (serviceRegistry.go)
// generalized from string keys to the numeric ids spec.md requires.
type MetaObject struct {
	methods    map[uint32]MethodDescriptor
	signals    map[uint32]SignalDescriptor
	properties map[uint32]PropertyDescriptor
}

// NewMetaObject returns an empty MetaObject ready for population via
// the Add* methods during the builder phase of a DynamicObject.
func NewMetaObject() *MetaObject {
	return &MetaObject{
		methods:    make(map[uint32]MethodDescriptor),
		signals:    make(map[uint32]SignalDescriptor),
		properties: make(map[uint32]PropertyDescriptor),
	}
}

// AddMethod registers a method descriptor under id.
func (m *MetaObject) AddMethod(id uint32, name, paramSig, returnSig string) {
	m.methods[id] = MethodDescriptor{ID: id, Name: name, ParameterSignature: paramSig, ReturnSignature: returnSig}
}

// AddSignal registers a signal descriptor under id.
func (m *MetaObject) AddSignal(id uint32, name, paramSig string) {
	m.signals[id] = SignalDescriptor{ID: id, Name: name, ParameterSignature: paramSig}
}

// AddProperty registers a property descriptor under id.
func (m *MetaObject) AddProperty(id uint32, name, valueSig string) {
	m.properties[id] = PropertyDescriptor{ID: id, Name: name, ValueSignature: valueSig}
}

// Method returns the method descriptor for id, or (_, false) if none.
func (m *MetaObject) Method(id uint32) (MethodDescriptor, bool) {
	d, ok := m.methods[id]
	return d, ok
}

// Signal returns the signal descriptor for id, or (_, false) if none.
func (m *MetaObject) Signal(id uint32) (SignalDescriptor, bool) {
	d, ok := m.signals[id]
	return d, ok
}

// Property returns the property descriptor for id, or (_, false) if
// none.
func (m *MetaObject) Property(id uint32) (PropertyDescriptor, bool) {
	d, ok := m.properties[id]
	return d, ok
}

// Methods returns a snapshot copy of all method descriptors.
func (m *MetaObject) Methods() map[uint32]MethodDescriptor {
	return cloneMap(m.methods)
}

// Signals returns a snapshot copy of all signal descriptors.
func (m *MetaObject) Signals() map[uint32]SignalDescriptor {
	return cloneMap(m.signals)
}

// Properties returns a snapshot copy of all property descriptors.
func (m *MetaObject) Properties() map[uint32]PropertyDescriptor {
	return cloneMap(m.properties)
}

func cloneMap[K comparable, V any](src map[K]V) map[K]V {
	out := make(map[K]V, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// MergeMetaObject produces a new MetaObject whose id space is the
// union of a and b; collisions in any of the three sub-registries are
// resolved by preferring b, matching qi::MetaObject::merge in
// original_source/src/dynamicobject.cpp (used there to fold the
// Manageable facet's descriptors into a user object's MetaObject).
func MergeMetaObject(a, b *MetaObject) *MetaObject {
	out := NewMetaObject()
	if a != nil {
		for id, d := range a.methods {
			out.methods[id] = d
		}
		for id, d := range a.signals {
			out.signals[id] = d
		}
		for id, d := range a.properties {
			out.properties[id] = d
		}
	}
	if b != nil {
		for id, d := range b.methods {
			out.methods[id] = d
		}
		for id, d := range b.signals {
			out.signals[id] = d
		}
		for id, d := range b.properties {
			out.properties[id] = d
		}
	}
	return out
}
