// Package deviate accumulates the weighted mean and weighted variance
// of a quantity, using the numerically stable incremental update of
// Finch, "Incremental calculation of weighted mean and variance",
// University of Cambridge Computing Service, 2009. The variance is
// computed around the mean, not zero.
package deviate

import (
	"fmt"
	"math"

	"github.com/histostream/histostream/aggregate"
	"github.com/histostream/histostream/invariant"
	"github.com/histostream/histostream/numeric"
	"github.com/histostream/histostream/registry"
	"github.com/histostream/histostream/wire"
)

// TypeName is the registered wire discriminator.
const TypeName = "Deviate"

// Deviate is the weighted mean/variance primitive. A present-tense
// instance (built with New) holds a quantity and supports Fill; a
// past-tense instance (built from the wire) supports only Combine and
// serialization.
type Deviate struct {
	quantity *aggregate.Quantity
	name     string

	entries              float64
	mean                 float64
	varianceTimesEntries float64
}

// New creates a present-tense Deviate over quantity.
func New(quantity *aggregate.Quantity) *Deviate {
	invariant.NotNil(quantity, "quantity")
	return &Deviate{quantity: quantity, name: quantity.Name}
}

// ed builds a past-tense instance from wire fields. variance is the
// normalized observable; the stored moment is variance*entries.
func ed(entries, mean, variance float64, name string) *Deviate {
	return &Deviate{
		name:                 name,
		entries:              entries,
		mean:                 mean,
		varianceTimesEntries: variance * entries,
	}
}

// Name returns the wire type tag.
func (d *Deviate) Name() string { return TypeName }

// Entries returns total weight observed.
func (d *Deviate) Entries() float64 { return d.entries }

// Mean returns the running weighted mean.
func (d *Deviate) Mean() float64 { return d.mean }

// Variance returns the weighted variance of the quantity: the stored
// moment divided by entries, or the moment verbatim when entries is
// zero.
func (d *Deviate) Variance() float64 {
	if d.entries == 0.0 {
		return d.varianceTimesEntries
	}
	return d.varianceTimesEntries / d.entries
}

// Children returns an empty slice; Deviate is a leaf.
func (d *Deviate) Children() []aggregate.Primitive { return nil }

// QuantityName reports the bound quantity name, ok=false when anonymous.
func (d *Deviate) QuantityName() (string, bool) {
	return d.name, d.name != ""
}

// Zero returns an empty peer with the same quantity.
func (d *Deviate) Zero() aggregate.Primitive {
	return &Deviate{quantity: d.quantity, name: d.name}
}

// Fill folds (quantity(datum), weight) into the running moments.
// Weights <= 0 leave all state untouched, the quantity is not even
// evaluated. Any NaN input permanently poisons mean and variance;
// infinite inputs drive the mean to the matching infinity (or NaN for
// opposite-sign infinities) and the variance to NaN.
func (d *Deviate) Fill(datum any, weight float64) error {
	if d.quantity == nil {
		return aggregate.NewNotFillableError(TypeName)
	}
	if err := numeric.ValidateWeight(weight); err != nil {
		return aggregate.NewValueRangeError(err.Error())
	}
	if weight <= 0.0 {
		return nil
	}

	raw, err := d.quantity.Value(datum)
	if err != nil {
		return aggregate.NewQuantityTypeError(TypeName, raw).WithContext("cause", err.Error())
	}
	q, err := numeric.Number(raw)
	if err != nil {
		return aggregate.NewQuantityTypeError(TypeName, raw)
	}

	// No possibility of error from here on out (rollback by
	// construction: the state update is the last thing that happens).
	d.entries += weight

	switch {
	case math.IsNaN(d.mean) || math.IsNaN(q):
		d.mean = math.NaN()
		d.varianceTimesEntries = math.NaN()

	case math.IsInf(d.mean, 0) || math.IsInf(q, 0):
		if math.IsInf(d.mean, 0) && math.IsInf(q, 0) && d.mean*q < 0.0 {
			d.mean = math.NaN() // opposite-sign infinities
		} else if math.IsInf(q, 0) {
			d.mean = q // mean acquires q's sign
		}
		if math.IsInf(d.entries, 0) || math.IsNaN(d.entries) {
			d.mean = math.NaN() // non-finite denominator
		}
		// any infinite value makes the variance NaN
		d.varianceTimesEntries = math.NaN()

	default:
		delta := q - d.mean
		shift := delta * weight / d.entries
		d.mean += shift
		d.varianceTimesEntries += weight * delta * (q - d.mean)
	}
	return nil
}

// Combine merges d and other into a new Deviate using the algebraic
// expansion that keeps + exactly associative in exact arithmetic.
// Neither operand is modified.
func (d *Deviate) Combine(other aggregate.Primitive) (aggregate.Primitive, error) {
	o, ok := other.(*Deviate)
	if !ok {
		return nil, aggregate.NewShapeMismatchError(TypeName, other.Name())
	}

	out := &Deviate{quantity: d.quantity, name: d.name}
	ca, ma, sa := d.entries, d.mean, d.varianceTimesEntries
	cb, mb, sb := o.entries, o.mean, o.varianceTimesEntries

	out.entries = ca + cb
	if out.entries == 0.0 {
		out.mean = (ma + mb) / 2.0
	} else {
		out.mean = (ca*ma + cb*mb) / out.entries
	}
	out.varianceTimesEntries = sa + sb + ca*ma*ma + cb*mb*mb -
		2.0*out.mean*(ca*ma+cb*mb) + out.mean*out.mean*out.entries
	return out, nil
}

// ToJSONFragment emits {"entries", "mean", "variance"} plus "name"
// when named and not suppressed.
func (d *Deviate) ToJSONFragment(suppressName bool) (wire.Document, error) {
	frag := wire.Document{
		"entries":  numeric.EncodeFloat(d.entries),
		"mean":     numeric.EncodeFloat(d.mean),
		"variance": numeric.EncodeFloat(d.Variance()),
	}
	if name, ok := d.QuantityName(); ok && !suppressName {
		frag["name"] = name
	}
	return frag, nil
}

// Equal reports structural equality under the library tolerance. The
// variance is compared in its normalized (observable) form so a
// primitive equals its own wire round-trip.
func (d *Deviate) Equal(other aggregate.Primitive) bool {
	o, ok := other.(*Deviate)
	if !ok {
		return false
	}
	return aggregate.SameQuantityName(d, o) &&
		numeric.ApproxEqual(d.entries, o.entries) &&
		numeric.ApproxEqual(d.mean, o.mean) &&
		numeric.ApproxEqual(d.Variance(), o.Variance())
}

var fragmentSchema = wire.CompileSchema(TypeName, map[string]any{
	"type":     "object",
	"required": []any{"entries", "mean", "variance"},
	"properties": map[string]any{
		"entries":  floatSchema,
		"mean":     floatSchema,
		"variance": floatSchema,
		"name":     map[string]any{"type": "string"},
	},
	"additionalProperties": false,
})

var floatSchema = map[string]any{
	"anyOf": []any{
		map[string]any{"type": "number"},
		map[string]any{"enum": []any{numeric.SentinelNaN, numeric.SentinelPosInf, numeric.SentinelNegInf}},
	},
}

func fromJSONFragment(fragment wire.Document, nameFromParent string) (aggregate.Primitive, error) {
	if err := fragmentSchema.Validate(fragment); err != nil {
		return nil, aggregate.WrapWireFormatError("malformed Deviate fragment", err)
	}
	entries, err := fragment.Float("entries")
	if err != nil {
		return nil, aggregate.NewWireFormatError(err.Error())
	}
	if entries < 0.0 {
		return nil, aggregate.NewValueRangeError(fmt.Sprintf("Deviate entries (%v) cannot be negative", entries))
	}
	mean, err := fragment.Float("mean")
	if err != nil {
		return nil, aggregate.NewWireFormatError(err.Error())
	}
	variance, err := fragment.Float("variance")
	if err != nil {
		return nil, aggregate.NewWireFormatError(err.Error())
	}

	name, ok := fragment.OptString("name")
	if !ok {
		name = nameFromParent
	}
	return ed(entries, mean, variance, name), nil
}

func init() {
	registry.Register(TypeName, fromJSONFragment)
}
