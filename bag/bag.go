// Package bag accumulates raw values (scalars, fixed-length vectors
// of numbers, or strings) with identical values merged and their
// weights added. A bag (also known as a multiset) keeps multiplicity
// but not order; it is the appropriate structure for collecting the
// raw points of a scatter plot.
package bag

import (
	"fmt"
	"sort"

	"github.com/histostream/histostream/aggregate"
	"github.com/histostream/histostream/invariant"
	"github.com/histostream/histostream/numeric"
	"github.com/histostream/histostream/registry"
	"github.com/histostream/histostream/wire"
)

// TypeName is the registered wire discriminator.
const TypeName = "Bag"

// Weighted is one accumulated (value, weight) pair.
type Weighted struct {
	Value  Value
	Weight float64
}

// Bag is the weighted multiset primitive. The value kind is fixed by
// the first fill; later fills of a different kind fail. Tuple values
// of differing lengths are accepted and kept as distinct keys.
type Bag struct {
	quantity *aggregate.Quantity
	name     string

	kind    Kind
	entries float64
	values  map[string]Weighted
}

// New creates a present-tense Bag over quantity.
func New(quantity *aggregate.Quantity) *Bag {
	invariant.NotNil(quantity, "quantity")
	return &Bag{quantity: quantity, name: quantity.Name, values: make(map[string]Weighted)}
}

// Name returns the wire type tag.
func (b *Bag) Name() string { return TypeName }

// Entries returns total weight observed.
func (b *Bag) Entries() float64 { return b.entries }

// Kind returns the value family this Bag holds, KindUnset before any
// value has been observed.
func (b *Bag) Kind() Kind { return b.kind }

// Len returns the number of distinct values.
func (b *Bag) Len() int { return len(b.values) }

// WeightOf returns the accumulated weight of v and whether v is present.
func (b *Bag) WeightOf(v Value) (float64, bool) {
	w, ok := b.values[v.id()]
	return w.Weight, ok
}

// Values returns the accumulated pairs in canonical order: non-NaN
// keys first under natural ordering, NaN entries last.
func (b *Bag) Values() []Weighted {
	out := make([]Weighted, 0, len(b.values))
	for _, w := range b.values {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value.less(out[j].Value) })
	return out
}

// Children returns an empty slice; Bag is a leaf.
func (b *Bag) Children() []aggregate.Primitive { return nil }

// QuantityName reports the bound quantity name, ok=false when anonymous.
func (b *Bag) QuantityName() (string, bool) {
	return b.name, b.name != ""
}

// Zero returns an empty peer with the same quantity. The value kind is
// not carried over: it is re-fixed by the first fill, like a freshly
// constructed Bag.
func (b *Bag) Zero() aggregate.Primitive {
	return &Bag{quantity: b.quantity, name: b.name, values: make(map[string]Weighted)}
}

// Fill coerces quantity(datum) into a Value and adds weight to its
// accumulated total. Weights <= 0 leave all state untouched; the
// quantity is not evaluated. Coercion and kind checks happen before
// any state mutation, so a failed Fill leaves the Bag unchanged.
func (b *Bag) Fill(datum any, weight float64) error {
	if b.quantity == nil {
		return aggregate.NewNotFillableError(TypeName)
	}
	if err := numeric.ValidateWeight(weight); err != nil {
		return aggregate.NewValueRangeError(err.Error())
	}
	if weight <= 0.0 {
		return nil
	}

	raw, err := b.quantity.Value(datum)
	if err != nil {
		return aggregate.NewQuantityTypeError(TypeName, raw).WithContext("cause", err.Error())
	}
	v, err := coerce(raw)
	if err != nil {
		return aggregate.NewQuantityTypeError(TypeName, raw)
	}
	if b.kind != KindUnset && v.kind != b.kind {
		return aggregate.NewQuantityTypeError(TypeName, raw).
			WithContext("bagKind", b.kind.String()).
			WithContext("valueKind", v.kind.String())
	}

	// No possibility of error from here on out (rollback by
	// construction).
	b.kind = v.kind
	b.entries += weight
	b.add(v, weight)
	return nil
}

func (b *Bag) add(v Value, weight float64) {
	id := v.id()
	if existing, ok := b.values[id]; ok {
		existing.Weight += weight
		b.values[id] = existing
	} else {
		b.values[id] = Weighted{Value: v, Weight: weight}
	}
}

// coerce maps a raw quantity result onto the Bag key union: strings
// pass through, slices of numbers become tuples element-wise via
// FloatOrNaN, everything else must coerce as a scalar.
func coerce(raw any) (Value, error) {
	switch x := raw.(type) {
	case string:
		return Str(x), nil
	case []float64:
		return Tuple(x...), nil
	case []any:
		t := make([]float64, len(x))
		for i, e := range x {
			f, err := numeric.FloatOrNaN(e)
			if err != nil {
				return Value{}, fmt.Errorf("tuple element %d: %w", i, err)
			}
			t[i] = f
		}
		return Value{kind: KindTuple, tuple: t}, nil
	case []int:
		t := make([]float64, len(x))
		for i, e := range x {
			t[i] = float64(e)
		}
		return Value{kind: KindTuple, tuple: t}, nil
	default:
		f, err := numeric.FloatOrNaN(raw)
		if err != nil {
			return Value{}, err
		}
		return Scalar(f), nil
	}
}

// Combine merges b and other key-wise into a new Bag. Bags of
// different value kinds are shape-incompatible. Neither operand is
// modified.
func (b *Bag) Combine(other aggregate.Primitive) (aggregate.Primitive, error) {
	o, ok := other.(*Bag)
	if !ok {
		return nil, aggregate.NewShapeMismatchError(TypeName, other.Name())
	}
	if b.kind != KindUnset && o.kind != KindUnset && b.kind != o.kind {
		return nil, aggregate.NewShapeMismatchError(TypeName, TypeName).
			WithContext("leftKind", b.kind.String()).
			WithContext("rightKind", o.kind.String())
	}

	out := &Bag{quantity: b.quantity, name: b.name, values: make(map[string]Weighted, len(b.values)+len(o.values))}
	out.kind = b.kind
	if out.kind == KindUnset {
		out.kind = o.kind
	}
	out.entries = b.entries + o.entries
	for id, w := range b.values {
		out.values[id] = w
	}
	for _, w := range o.values {
		out.add(w.Value, w.Weight)
	}
	return out, nil
}

// ToJSONFragment emits {"entries", "values": [{"w", "v"}, …]} in
// canonical order, plus "name" when named and not suppressed.
func (b *Bag) ToJSONFragment(suppressName bool) (wire.Document, error) {
	ordered := b.Values()
	values := make([]any, len(ordered))
	for i, w := range ordered {
		values[i] = map[string]any{
			"w": numeric.EncodeFloat(w.Weight),
			"v": w.Value.encode(),
		}
	}
	frag := wire.Document{
		"entries": numeric.EncodeFloat(b.entries),
		"values":  values,
	}
	if name, ok := b.QuantityName(); ok && !suppressName {
		frag["name"] = name
	}
	return frag, nil
}

// Equal reports structural equality under the library tolerance:
// same quantity name, same entries, and pairwise-equal (value, weight)
// lists in canonical order. NaN keys compare equal to each other.
func (b *Bag) Equal(other aggregate.Primitive) bool {
	o, ok := other.(*Bag)
	if !ok {
		return false
	}
	if !aggregate.SameQuantityName(b, o) || !numeric.ApproxEqual(b.entries, o.entries) {
		return false
	}
	if len(b.values) != len(o.values) {
		return false
	}
	one, two := b.Values(), o.Values()
	for i := range one {
		if !one[i].Value.equalTolerant(two[i].Value) {
			return false
		}
		if !numeric.ApproxEqual(one[i].Weight, two[i].Weight) {
			return false
		}
	}
	return true
}

var fragmentSchema = wire.CompileSchema(TypeName, map[string]any{
	"type":     "object",
	"required": []any{"entries", "values"},
	"properties": map[string]any{
		"entries": map[string]any{
			"anyOf": []any{
				map[string]any{"type": "number"},
				map[string]any{"enum": []any{numeric.SentinelNaN, numeric.SentinelPosInf, numeric.SentinelNegInf}},
			},
		},
		"values": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":                 "object",
				"required":             []any{"w", "v"},
				"additionalProperties": false,
				"properties": map[string]any{
					"w": map[string]any{
						"anyOf": []any{
							map[string]any{"type": "number"},
							map[string]any{"enum": []any{numeric.SentinelNaN, numeric.SentinelPosInf, numeric.SentinelNegInf}},
						},
					},
					"v": map[string]any{
						"anyOf": []any{
							map[string]any{"type": "number"},
							map[string]any{"type": "string"},
							map[string]any{
								"type": "array",
								"items": map[string]any{
									"anyOf": []any{
										map[string]any{"type": "number"},
										map[string]any{"type": "string"},
									},
								},
							},
						},
					},
				},
			},
		},
		"name": map[string]any{"type": "string"},
	},
	"additionalProperties": false,
})

// decodeValue rebuilds a Bag key from its wire form. Numbers and the
// float sentinels decode as scalars before strings are considered, so
// the literal string "nan" decodes as the NaN scalar; the wire form
// cannot distinguish the two.
func decodeValue(raw any) (Value, error) {
	switch x := raw.(type) {
	case []any:
		t := make([]float64, len(x))
		for i, e := range x {
			f, err := numeric.DecodeFloat(e)
			if err != nil {
				return Value{}, fmt.Errorf("Bag value element %d: %w", i, err)
			}
			t[i] = f
		}
		return Value{kind: KindTuple, tuple: t}, nil
	case string:
		if x == numeric.SentinelNaN || x == numeric.SentinelPosInf || x == numeric.SentinelNegInf {
			f, err := numeric.DecodeFloat(x)
			if err != nil {
				return Value{}, err
			}
			return Scalar(f), nil
		}
		return Str(x), nil
	default:
		f, err := numeric.DecodeFloat(raw)
		if err != nil {
			return Value{}, fmt.Errorf("Bag value: %w", err)
		}
		return Scalar(f), nil
	}
}

func fromJSONFragment(fragment wire.Document, nameFromParent string) (aggregate.Primitive, error) {
	if err := fragmentSchema.Validate(fragment); err != nil {
		return nil, aggregate.WrapWireFormatError("malformed Bag fragment", err)
	}
	entries, err := fragment.Float("entries")
	if err != nil {
		return nil, aggregate.NewWireFormatError(err.Error())
	}
	if entries < 0.0 {
		return nil, aggregate.NewValueRangeError(fmt.Sprintf("Bag entries (%v) cannot be negative", entries))
	}
	rawValues, err := fragment.List("values")
	if err != nil {
		return nil, aggregate.NewWireFormatError(err.Error())
	}

	out := &Bag{entries: entries, values: make(map[string]Weighted, len(rawValues))}
	for i, rv := range rawValues {
		pair, ok := rv.(map[string]any)
		if !ok {
			return nil, aggregate.NewWireFormatError(fmt.Sprintf("Bag values[%d] must be an object", i))
		}
		w, err := numeric.DecodeFloat(pair["w"])
		if err != nil {
			return nil, aggregate.NewWireFormatError(fmt.Sprintf("Bag values[%d] w: %v", i, err))
		}
		v, err := decodeValue(pair["v"])
		if err != nil {
			return nil, aggregate.NewWireFormatError(fmt.Sprintf("Bag values[%d]: %v", i, err))
		}
		if out.kind == KindUnset {
			out.kind = v.kind
		}
		out.add(v, w)
	}

	name, ok := fragment.OptString("name")
	if !ok {
		name = nameFromParent
	}
	out.name = name
	return out, nil
}

func init() {
	registry.Register(TypeName, fromJSONFragment)
}
