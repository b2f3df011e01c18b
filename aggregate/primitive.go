// Package aggregate defines the algebraic contract every statistical
// primitive honors plus the shared quantity-binding and
// error types. Concrete primitives (bag, deviate, fraction, selectagg)
// depend on this package; this package depends on nothing in this
// module except wire and numeric, so it never imports a concrete
// primitive package.
package aggregate

import "github.com/histostream/histostream/wire"

// Primitive is the uniform contract every aggregator kind implements.
// A Primitive is either present-tense (holds a Quantity, supports
// Fill) or past-tense (built from the wire by a registry factory, Fill
// always fails).
type Primitive interface {
	// Name returns the registered type tag ("Bag", "Deviate",
	// "Fraction", "Select") used as the wire discriminator.
	Name() string

	// Zero returns a fresh present-tense peer: same extractor, same
	// child shape, Entries()==0, children zeroed.
	Zero() Primitive

	// Fill updates state from datum weighted by weight. A no-op on
	// state for weight<=0 except where a component's own rules say
	// otherwise (Fraction/Select still advance their own Entries for
	// positive weights). Returns a quantity-type error before any
	// mutation if the extractor result doesn't fit this primitive's
	// contract, and a value-range error if this instance is
	// past-tense or weight is not finite.
	Fill(datum any, weight float64) error

	// Combine returns a new Primitive that is the associative,
	// commutative merge of the receiver and other. Neither operand is
	// modified. Returns a shape-mismatch error if other is not the
	// same concrete kind, or if a child combine would fail.
	Combine(other Primitive) (Primitive, error)

	// ToJSONFragment emits this primitive's wire payload.
	// suppressName=true omits the "name" field, used when a parent
	// has already recorded the quantity's name in a "sub:name" slot.
	ToJSONFragment(suppressName bool) (wire.Document, error)

	// Children returns this primitive's child aggregators for tree
	// walking (empty for Bag/Deviate, [numerator,denominator] for
	// Fraction, [cut] for Select).
	Children() []Primitive

	// Entries returns total weight observed so far.
	Entries() float64

	// QuantityName returns the registered quantity name and whether
	// this primitive is named (as opposed to anonymous).
	QuantityName() (name string, ok bool)

	// Equal reports structural equality under the package-wide float
	// tolerance, with NaN treated as equal to NaN. Named and anonymous
	// forms of otherwise-equal primitives are not equal.
	Equal(other Primitive) bool
}
