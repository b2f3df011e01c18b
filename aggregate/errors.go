package aggregate

import (
	"errors"
	"fmt"
)

// ErrNotFillable is the sentinel wrapped by the value-range error
// returned when Fill is called on a past-tense primitive (one rebuilt
// from the wire, which carries no extractor). Detect it with
// errors.Is(err, aggregate.ErrNotFillable).
var ErrNotFillable = errors.New("past-tense primitive cannot be filled")

// ErrorKind classifies the failures the library surfaces to callers.
type ErrorKind string

const (
	// KindQuantityType: a quantity/extractor returned a value outside
	// the contract for the primitive consuming it.
	KindQuantityType ErrorKind = "quantity-type"
	// KindShapeMismatch: + applied to incompatible primitives.
	KindShapeMismatch ErrorKind = "shape-mismatch"
	// KindWireFormat: a malformed wire fragment: missing keys, wrong
	// value types, non-numeric entries.
	KindWireFormat ErrorKind = "wire-format"
	// KindUnknownType: a wire "type" tag has no registered factory.
	KindUnknownType ErrorKind = "unknown-type"
	// KindValueRange: negative entries, a non-finite weight where
	// finite is required, an arity mismatch where enforced.
	KindValueRange ErrorKind = "value-range"
)

// Error is the structured error type returned by every fallible
// operation in this module.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is/errors.As to reach the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext attaches a structured field to the error and returns it
// for chaining.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

func newError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func wrapError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// NewQuantityTypeError reports an extractor result outside the
// contract for the primitive consuming it. Raised before any state
// mutation (rollback-by-construction).
func NewQuantityTypeError(primitive string, got any) *Error {
	return newError(KindQuantityType,
		fmt.Sprintf("%s: quantity returned a value of unsupported type %T", primitive, got)).
		WithContext("primitive", primitive).
		WithContext("value", got)
}

// NewShapeMismatchError reports an incompatible Combine.
func NewShapeMismatchError(a, b string) *Error {
	return newError(KindShapeMismatch,
		fmt.Sprintf("cannot combine %s with %s", a, b)).
		WithContext("left", a).
		WithContext("right", b)
}

// NewWireFormatError reports a malformed wire fragment.
func NewWireFormatError(message string) *Error {
	return newError(KindWireFormat, message)
}

// WrapWireFormatError wraps a lower-level decode error (e.g. schema
// validation failure) as a wire-format error.
func WrapWireFormatError(message string, cause error) *Error {
	return wrapError(KindWireFormat, message, cause)
}

// NewUnknownTypeError reports a wire "type" tag absent from the registry.
func NewUnknownTypeError(name string) *Error {
	return newError(KindUnknownType, fmt.Sprintf("unknown primitive type %q", name)).
		WithContext("type", name)
}

// NewValueRangeError reports a value outside its required range
// (negative entries, non-finite weight, enforced arity mismatch).
func NewValueRangeError(message string) *Error {
	return newError(KindValueRange, message)
}

// NewNotFillableError reports Fill on a past-tense instance of the
// named primitive.
func NewNotFillableError(primitive string) *Error {
	return wrapError(KindValueRange,
		fmt.Sprintf("%s was deserialized from the wire and carries no quantity", primitive),
		ErrNotFillable).
		WithContext("primitive", primitive)
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if ae, ok := err.(*Error); ok {
		e = ae
	} else {
		return false
	}
	return e.Kind == kind
}
