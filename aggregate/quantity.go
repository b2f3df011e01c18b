package aggregate

// Extractor projects a raw record to the scalar/vector/string/boolean
// value a primitive consumes. Extractors are borrowed references:
// their lifetime must exceed any present-tense primitive holding them.
type Extractor func(datum any) (any, error)

// Quantity wraps an Extractor with a stable name used for wire
// identity. An empty Name makes the primitive holding it anonymous; a
// nil *Quantity marks a past-tense primitive, which has no extractor
// and cannot be filled.
type Quantity struct {
	Name    string
	Extract Extractor
}

// NewQuantity binds name to extract. Only Name participates in a
// primitive's identity for Equal purposes, since Go func values aren't
// comparable;
// primitives compare the *presence* and *name* of their quantity, not
// extractor function identity.
func NewQuantity(name string, extract Extractor) *Quantity {
	return &Quantity{Name: name, Extract: extract}
}

// String returns Name (empty for an anonymous quantity), or
// "<anonymous>" when q is nil, for debug formatting. Never part of
// the wire form.
func (q *Quantity) String() string {
	if q == nil {
		return "<anonymous>"
	}
	return q.Name
}

// value runs the extractor, or returns an error if q is nil (a nil
// quantity cannot be filled; callers should never construct
// a present-tense primitive with a nil quantity; this is a defensive
// fallback, not the normal path).
func (q *Quantity) value(datum any) (any, error) {
	if q == nil {
		return nil, newError(KindValueRange, "cannot fill a primitive with no quantity bound")
	}
	return q.Extract(datum)
}

// Value runs q's extractor against datum. Exported so primitive
// packages outside aggregate can invoke it without reimplementing the
// nil-check above.
func (q *Quantity) Value(datum any) (any, error) {
	return q.value(datum)
}

// SameQuantityName reports whether a and b agree on quantity identity:
// both anonymous, or both named with equal names (named and anonymous
// forms of otherwise-equal primitives are not equal).
// Present- and past-tense instances compare by name only, so a
// primitive equals its own wire round-trip.
func SameQuantityName(a, b Primitive) bool {
	an, aok := a.QuantityName()
	bn, bok := b.QuantityName()
	return aok == bok && an == bn
}
