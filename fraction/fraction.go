// Package fraction accumulates two sub-aggregators over the same
// stream: a numerator holding only the entries that pass a selection,
// and a denominator holding all entries. The ratio of their contents
// measures the efficiency of the selection.
//
// A NaN selection result compares false against zero and is therefore
// treated as a failed cut: the denominator is filled, the numerator is
// not.
package fraction

import (
	"fmt"

	"github.com/histostream/histostream/aggregate"
	"github.com/histostream/histostream/invariant"
	"github.com/histostream/histostream/numeric"
	"github.com/histostream/histostream/registry"
	"github.com/histostream/histostream/wire"
)

// TypeName is the registered wire discriminator.
const TypeName = "Fraction"

// Fraction is the pass/total primitive. Both children are built as
// zeroes of one template aggregator, so they always have the same
// shape (co-shape).
type Fraction struct {
	selection *aggregate.Quantity
	name      string

	entries     float64
	numerator   aggregate.Primitive
	denominator aggregate.Primitive
}

// New creates a present-tense Fraction. selection computes a boolean
// or number from each datum and is interpreted as a multiplicative
// factor on the fill weight; value is the template aggregator from
// which both children are zeroed.
func New(selection *aggregate.Quantity, value aggregate.Primitive) *Fraction {
	invariant.NotNil(selection, "selection")
	invariant.NotNil(value, "value")
	return &Fraction{
		selection:   selection,
		name:        selection.Name,
		numerator:   value.Zero(),
		denominator: value.Zero(),
	}
}

// ed builds a past-tense instance from already-deserialized children.
func ed(entries float64, numerator, denominator aggregate.Primitive, name string) *Fraction {
	return &Fraction{name: name, entries: entries, numerator: numerator, denominator: denominator}
}

// Name returns the wire type tag.
func (f *Fraction) Name() string { return TypeName }

// Entries returns total weight observed.
func (f *Fraction) Entries() float64 { return f.entries }

// Numerator returns the passing-entries child.
func (f *Fraction) Numerator() aggregate.Primitive { return f.numerator }

// Denominator returns the all-entries child.
func (f *Fraction) Denominator() aggregate.Primitive { return f.denominator }

// Children returns [numerator, denominator].
func (f *Fraction) Children() []aggregate.Primitive {
	return []aggregate.Primitive{f.numerator, f.denominator}
}

// QuantityName reports the selection's name, ok=false when anonymous.
func (f *Fraction) QuantityName() (string, bool) {
	return f.name, f.name != ""
}

// Zero returns a peer with the same selection and freshly zeroed
// children.
func (f *Fraction) Zero() aggregate.Primitive {
	return &Fraction{
		selection:   f.selection,
		name:        f.name,
		numerator:   f.numerator.Zero(),
		denominator: f.denominator.Zero(),
	}
}

// Fill evaluates the selection, multiplies it by weight, fills the
// denominator for weight > 0 and the numerator for the reweighted
// value > 0, then advances entries by weight whether or not the
// selection passed. Weights <= 0 leave all state untouched; the
// selection is not evaluated. A selection returning a non-finite
// positive value is passed through unclamped.
func (f *Fraction) Fill(datum any, weight float64) error {
	if f.selection == nil {
		return aggregate.NewNotFillableError(TypeName)
	}
	if err := numeric.ValidateWeight(weight); err != nil {
		return aggregate.NewValueRangeError(err.Error())
	}
	if weight <= 0.0 {
		return nil
	}

	raw, err := f.selection.Value(datum)
	if err != nil {
		return aggregate.NewQuantityTypeError(TypeName, raw).WithContext("cause", err.Error())
	}
	w, err := numeric.Number(raw)
	if err != nil {
		return aggregate.NewQuantityTypeError(TypeName, raw)
	}
	w *= weight

	if weight > 0.0 {
		if err := f.denominator.Fill(datum, weight); err != nil {
			return err
		}
	}
	if w > 0.0 {
		if err := f.numerator.Fill(datum, w); err != nil {
			return err
		}
	}

	// No possibility of error from here on out.
	f.entries += weight
	return nil
}

// Combine merges f and other child-wise into a new Fraction. Shape
// compatibility is exactly the requirement that both child combines
// succeed.
func (f *Fraction) Combine(other aggregate.Primitive) (aggregate.Primitive, error) {
	o, ok := other.(*Fraction)
	if !ok {
		return nil, aggregate.NewShapeMismatchError(TypeName, other.Name())
	}
	numerator, err := f.numerator.Combine(o.numerator)
	if err != nil {
		return nil, aggregate.NewShapeMismatchError(TypeName, TypeName).
			WithContext("child", "numerator").
			WithContext("cause", err.Error())
	}
	denominator, err := f.denominator.Combine(o.denominator)
	if err != nil {
		return nil, aggregate.NewShapeMismatchError(TypeName, TypeName).
			WithContext("child", "denominator").
			WithContext("cause", err.Error())
	}
	return &Fraction{
		selection:   f.selection,
		name:        f.name,
		entries:     f.entries + o.entries,
		numerator:   numerator,
		denominator: denominator,
	}, nil
}

// ToJSONFragment emits {"entries", "type", "numerator", "denominator"}
// plus optional "name" (the selection's name) and "sub:name" (the
// shared child quantity name, written once here and supplied to both
// children on load, which is why the children serialize with their
// names suppressed).
func (f *Fraction) ToJSONFragment(suppressName bool) (wire.Document, error) {
	numFrag, err := f.numerator.ToJSONFragment(true)
	if err != nil {
		return nil, err
	}
	denFrag, err := f.denominator.ToJSONFragment(true)
	if err != nil {
		return nil, err
	}
	frag := wire.Document{
		"entries":     numeric.EncodeFloat(f.entries),
		"type":        f.numerator.Name(),
		"numerator":   numFrag,
		"denominator": denFrag,
	}
	if name, ok := f.QuantityName(); ok && !suppressName {
		frag["name"] = name
	}
	if subName, ok := f.numerator.QuantityName(); ok {
		frag["sub:name"] = subName
	}
	return frag, nil
}

// Equal reports structural equality under the library tolerance.
func (f *Fraction) Equal(other aggregate.Primitive) bool {
	o, ok := other.(*Fraction)
	if !ok {
		return false
	}
	return aggregate.SameQuantityName(f, o) &&
		numeric.ApproxEqual(f.entries, o.entries) &&
		f.numerator.Equal(o.numerator) &&
		f.denominator.Equal(o.denominator)
}

var fragmentSchema = wire.CompileSchema(TypeName, map[string]any{
	"type":     "object",
	"required": []any{"entries", "type", "numerator", "denominator"},
	"properties": map[string]any{
		"entries":     map[string]any{"type": "number"},
		"type":        map[string]any{"type": "string"},
		"numerator":   map[string]any{"type": "object"},
		"denominator": map[string]any{"type": "object"},
		"name":        map[string]any{"type": "string"},
		"sub:name":    map[string]any{"type": "string"},
	},
	"additionalProperties": false,
})

func fromJSONFragment(fragment wire.Document, nameFromParent string) (aggregate.Primitive, error) {
	if err := fragmentSchema.Validate(fragment); err != nil {
		return nil, aggregate.WrapWireFormatError("malformed Fraction fragment", err)
	}
	entries, err := fragment.Float("entries")
	if err != nil {
		return nil, aggregate.NewWireFormatError(err.Error())
	}
	if entries < 0.0 {
		return nil, aggregate.NewValueRangeError(fmt.Sprintf("Fraction entries (%v) cannot be negative", entries))
	}
	childType, err := fragment.String("type")
	if err != nil {
		return nil, aggregate.NewWireFormatError(err.Error())
	}
	factory, err := registry.Lookup(childType)
	if err != nil {
		return nil, err
	}
	subName, _ := fragment.OptString("sub:name")

	numFrag, err := fragment.Sub("numerator")
	if err != nil {
		return nil, aggregate.NewWireFormatError(err.Error())
	}
	numerator, err := factory(numFrag, subName)
	if err != nil {
		return nil, err
	}
	denFrag, err := fragment.Sub("denominator")
	if err != nil {
		return nil, aggregate.NewWireFormatError(err.Error())
	}
	denominator, err := factory(denFrag, subName)
	if err != nil {
		return nil, err
	}

	// Combining the freshly loaded children validates that the wire
	// form really holds a co-shaped pair.
	if _, err := numerator.Combine(denominator); err != nil {
		return nil, aggregate.WrapWireFormatError("Fraction children are not shape-compatible", err)
	}

	name, ok := fragment.OptString("name")
	if !ok {
		name = nameFromParent
	}
	return ed(entries, numerator, denominator, name), nil
}

func init() {
	registry.Register(TypeName, fromJSONFragment)
}
