package dynobj

import (
	"fmt"
	"reflect"

	"github.com/golobby/cast"
)

// TypeKind enumerates the value kinds a TypeInterface can describe.
// Spec.md treats signature parsing as an external collaborator; this
// is the minimal stand-in that lets PropertyBase/GenericProperty
// validate writes against a declared signature. No signature-parsing
// library appears anywhere in the example pack, so this is built on
// stdlib reflect rather than an invented third-party dependency.
type TypeKind int

const (
	TypeKindDynamic TypeKind = iota
	TypeKindBool
	TypeKindInt
	TypeKindFloat
	TypeKindString
	TypeKindList
	TypeKindMap
	TypeKindTuple
)

// TypeInterface describes the Go-level shape a signature resolves to.
type TypeInterface struct {
	Kind      TypeKind
	Signature string
	// Elem is set for TypeKindList (element type).
	Elem *TypeInterface
	// Key/Value are set for TypeKindMap.
	Key   *TypeInterface
	Value *TypeInterface
}

func (t *TypeInterface) String() string {
	if t == nil {
		return "<nil>"
	}
	return t.Signature
}

// FromSignature parses a single-value textual signature into a
// TypeInterface. Supported signatures: "i" (int), "f" (float), "s"
// (string), "b" (bool), "m" (dynamic/any), "[x]" (list of x), "{kv}"
// (map k->v). Returns ErrUnparseableSignature for anything else.
func FromSignature(sig string) (*TypeInterface, error) {
	t, rest, err := parseOne(sig)
	if err != nil {
		return nil, err
	}
	if rest != "" {
		return nil, fmt.Errorf("%w: %q (trailing %q)", ErrUnparseableSignature, sig, rest)
	}
	return t, nil
}

func parseOne(sig string) (*TypeInterface, string, error) {
	if sig == "" {
		return nil, "", fmt.Errorf("%w: empty signature", ErrUnparseableSignature)
	}
	switch sig[0] {
	case 'i':
		return &TypeInterface{Kind: TypeKindInt, Signature: "i"}, sig[1:], nil
	case 'f':
		return &TypeInterface{Kind: TypeKindFloat, Signature: "f"}, sig[1:], nil
	case 's':
		return &TypeInterface{Kind: TypeKindString, Signature: "s"}, sig[1:], nil
	case 'b':
		return &TypeInterface{Kind: TypeKindBool, Signature: "b"}, sig[1:], nil
	case 'm':
		return &TypeInterface{Kind: TypeKindDynamic, Signature: "m"}, sig[1:], nil
	case '[':
		elem, rest, err := parseOne(sig[1:])
		if err != nil {
			return nil, "", err
		}
		if rest == "" || rest[0] != ']' {
			return nil, "", fmt.Errorf("%w: %q (unterminated list)", ErrUnparseableSignature, sig)
		}
		return &TypeInterface{Kind: TypeKindList, Signature: "[" + elem.Signature + "]", Elem: elem}, rest[1:], nil
	case '{':
		key, rest, err := parseOne(sig[1:])
		if err != nil {
			return nil, "", err
		}
		val, rest2, err := parseOne(rest)
		if err != nil {
			return nil, "", err
		}
		if rest2 == "" || rest2[0] != '}' {
			return nil, "", fmt.Errorf("%w: %q (unterminated map)", ErrUnparseableSignature, sig)
		}
		return &TypeInterface{Kind: TypeKindMap, Signature: "{" + key.Signature + val.Signature + "}", Key: key, Value: val}, rest2[1:], nil
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnparseableSignature, sig)
	}
}

// ParseTupleSignature parses a "(xyz)" parameter-list signature into
// one TypeInterface per parameter, in order.
func ParseTupleSignature(sig string) ([]*TypeInterface, error) {
	if len(sig) < 2 || sig[0] != '(' || sig[len(sig)-1] != ')' {
		return nil, fmt.Errorf("%w: %q (not a tuple)", ErrUnparseableSignature, sig)
	}
	body := sig[1 : len(sig)-1]
	var out []*TypeInterface
	for body != "" {
		t, rest, err := parseOne(body)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
		body = rest
	}
	return out, nil
}

// AnyValue is a type-erased runtime value, standing in for the
// marshalling layer's richer AnyValue/AnyReference (out of scope per
// spec.md §1).
type AnyValue struct {
	v any
}

// From wraps a Go value as an AnyValue.
func From(v any) AnyValue { return AnyValue{v: v} }

// Value returns the underlying Go value.
func (a AnyValue) Value() any { return a.v }

// Conforms reports whether a's underlying value satisfies t's kind,
// coercing numeric/string kinds with golobby/cast the way the teacher
// coerces feeder values into typed config fields.
func (a AnyValue) Conforms(t *TypeInterface) bool {
	_, err := coerce(a.v, t)
	return err == nil
}

var (
	intType    = reflect.TypeOf(int(0))
	floatType  = reflect.TypeOf(float64(0))
	stringType = reflect.TypeOf("")
	boolType   = reflect.TypeOf(false)
)

// coerce attempts to bring v into the Go shape t describes, using
// golobby/cast the same way the teacher's affixed-env feeder coerces
// raw environment-variable strings into typed struct fields.
func coerce(v any, t *TypeInterface) (any, error) {
	if t == nil || t.Kind == TypeKindDynamic {
		return v, nil
	}
	switch t.Kind {
	case TypeKindInt:
		return cast.FromType(v, intType)
	case TypeKindFloat:
		return cast.FromType(v, floatType)
	case TypeKindString:
		return cast.FromType(v, stringType)
	case TypeKindBool:
		return cast.FromType(v, boolType)
	default:
		// Lists/maps/tuples: accept as-is, structural validation of
		// element types is left to the (out-of-scope) marshaller.
		return v, nil
	}
}
