package dynobj

import "errors"

// Lookup errors: unknown method/signal/property/link id. These never
// retry; the caller is expected to have stale metadata.
var (
	ErrMethodNotFound  = errors.New("Can't find methodID")
	ErrSignalNotFound  = errors.New("Cannot find signal")
	ErrLinkNotFound    = errors.New("Cannot find local signal connection.")
	ErrPropertyUnknown = errors.New("id is not id of a property")
)

// Type errors: parameter/property type mismatch or an unparseable
// signature.
var (
	ErrTypeMismatch        = errors.New("value does not conform to declared signature")
	ErrUnparseableSignature = errors.New("unable to construct a type from signature")
)

// Timeout errors: deadlock-suspected lock acquisition.
var (
	ErrLockTimeout = errors.New("Time-out acquiring lock. Deadlock?")
)

// Generic/unknown errors raised crossing the callable boundary without a
// typed cause.
var (
	ErrUnknown = errors.New("Unknown exception caught.")
)

// Construction/config errors.
var (
	ErrObjectDying      = errors.New("object is being destroyed")
	ErrNilMetaObject    = errors.New("meta object must not be nil")
	ErrConfigFileEmpty  = errors.New("config file path is empty")
	ErrUnsupportedFormat = errors.New("unsupported config file format")
)
