// Package selectagg filters or weights data according to a selection
// before passing it to a single sub-aggregator. It resembles Fraction
// without the denominator: a standard histogram with a custom cut is
// built by nesting a Select around the binning aggregator.
//
// The package is named selectagg because select is a Go keyword; the
// wire type tag is still "Select".
package selectagg

import (
	"fmt"

	"github.com/histostream/histostream/aggregate"
	"github.com/histostream/histostream/invariant"
	"github.com/histostream/histostream/numeric"
	"github.com/histostream/histostream/registry"
	"github.com/histostream/histostream/wire"
)

// TypeName is the registered wire discriminator.
const TypeName = "Select"

// Select is the weighted-cut primitive: one child aggregator that
// receives only data passing the selection, weighted by it.
type Select struct {
	selection *aggregate.Quantity
	name      string

	entries float64
	cut     aggregate.Primitive
}

// New creates a present-tense Select. selection computes a boolean or
// number from each datum and is interpreted as a multiplicative factor
// on the fill weight; cut receives only data for which the reweighted
// value is positive.
func New(selection *aggregate.Quantity, cut aggregate.Primitive) *Select {
	invariant.NotNil(selection, "selection")
	invariant.NotNil(cut, "cut")
	return &Select{selection: selection, name: selection.Name, cut: cut}
}

// ed builds a past-tense instance from an already-deserialized child.
func ed(entries float64, cut aggregate.Primitive, name string) *Select {
	return &Select{name: name, entries: entries, cut: cut}
}

// Name returns the wire type tag.
func (s *Select) Name() string { return TypeName }

// Entries returns total weight observed.
func (s *Select) Entries() float64 { return s.entries }

// Cut returns the child aggregator.
func (s *Select) Cut() aggregate.Primitive { return s.cut }

// FractionPassing returns cut.Entries()/Entries(), the efficiency of
// the selection. Derived, never stored or serialized.
func (s *Select) FractionPassing() float64 {
	return s.cut.Entries() / s.entries
}

// Children returns [cut].
func (s *Select) Children() []aggregate.Primitive {
	return []aggregate.Primitive{s.cut}
}

// QuantityName reports the selection's name, ok=false when anonymous.
func (s *Select) QuantityName() (string, bool) {
	return s.name, s.name != ""
}

// Zero returns a peer with the same selection and a zeroed child.
func (s *Select) Zero() aggregate.Primitive {
	return &Select{selection: s.selection, name: s.name, cut: s.cut.Zero()}
}

// Fill evaluates the selection, multiplies it by weight, fills the
// child only when the product is positive, then advances entries by
// weight whatever the sign of the product. Weights <= 0 leave all
// state untouched; the selection is not evaluated. A selection
// returning a non-finite positive value is passed through unclamped.
func (s *Select) Fill(datum any, weight float64) error {
	if s.selection == nil {
		return aggregate.NewNotFillableError(TypeName)
	}
	if err := numeric.ValidateWeight(weight); err != nil {
		return aggregate.NewValueRangeError(err.Error())
	}
	if weight <= 0.0 {
		return nil
	}

	raw, err := s.selection.Value(datum)
	if err != nil {
		return aggregate.NewQuantityTypeError(TypeName, raw).WithContext("cause", err.Error())
	}
	w, err := numeric.Number(raw)
	if err != nil {
		return aggregate.NewQuantityTypeError(TypeName, raw)
	}
	w *= weight

	if w > 0.0 {
		if err := s.cut.Fill(datum, w); err != nil {
			return err
		}
	}

	// No possibility of error from here on out.
	s.entries += weight
	return nil
}

// Combine merges s and other into a new Select; the children combine.
func (s *Select) Combine(other aggregate.Primitive) (aggregate.Primitive, error) {
	o, ok := other.(*Select)
	if !ok {
		return nil, aggregate.NewShapeMismatchError(TypeName, other.Name())
	}
	cut, err := s.cut.Combine(o.cut)
	if err != nil {
		return nil, aggregate.NewShapeMismatchError(TypeName, TypeName).
			WithContext("child", "cut").
			WithContext("cause", err.Error())
	}
	return &Select{
		selection: s.selection,
		name:      s.name,
		entries:   s.entries + o.entries,
		cut:       cut,
	}, nil
}

// ToJSONFragment emits {"entries", "type", "data"} plus optional
// "name". The child serializes in named mode: Select has no sub:name
// slot, so the child carries its own name.
func (s *Select) ToJSONFragment(suppressName bool) (wire.Document, error) {
	cutFrag, err := s.cut.ToJSONFragment(false)
	if err != nil {
		return nil, err
	}
	frag := wire.Document{
		"entries": numeric.EncodeFloat(s.entries),
		"type":    s.cut.Name(),
		"data":    cutFrag,
	}
	if name, ok := s.QuantityName(); ok && !suppressName {
		frag["name"] = name
	}
	return frag, nil
}

// Equal reports structural equality under the library tolerance.
func (s *Select) Equal(other aggregate.Primitive) bool {
	o, ok := other.(*Select)
	if !ok {
		return false
	}
	return aggregate.SameQuantityName(s, o) &&
		numeric.ApproxEqual(s.entries, o.entries) &&
		s.cut.Equal(o.cut)
}

var fragmentSchema = wire.CompileSchema(TypeName, map[string]any{
	"type":     "object",
	"required": []any{"entries", "type", "data"},
	"properties": map[string]any{
		"entries": map[string]any{"type": "number"},
		"type":    map[string]any{"type": "string"},
		"data":    map[string]any{"type": "object"},
		"name":    map[string]any{"type": "string"},
	},
	"additionalProperties": false,
})

func fromJSONFragment(fragment wire.Document, nameFromParent string) (aggregate.Primitive, error) {
	if err := fragmentSchema.Validate(fragment); err != nil {
		return nil, aggregate.WrapWireFormatError("malformed Select fragment", err)
	}
	entries, err := fragment.Float("entries")
	if err != nil {
		return nil, aggregate.NewWireFormatError(err.Error())
	}
	if entries < 0.0 {
		return nil, aggregate.NewValueRangeError(fmt.Sprintf("Select entries (%v) cannot be negative", entries))
	}
	childType, err := fragment.String("type")
	if err != nil {
		return nil, aggregate.NewWireFormatError(err.Error())
	}
	factory, err := registry.Lookup(childType)
	if err != nil {
		return nil, err
	}
	cutFrag, err := fragment.Sub("data")
	if err != nil {
		return nil, aggregate.NewWireFormatError(err.Error())
	}
	cut, err := factory(cutFrag, "")
	if err != nil {
		return nil, err
	}

	name, ok := fragment.OptString("name")
	if !ok {
		name = nameFromParent
	}
	return ed(entries, cut, name), nil
}

func init() {
	registry.Register(TypeName, fromJSONFragment)
}
