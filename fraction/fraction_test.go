package fraction_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/histostream/histostream/aggregate"
	"github.com/histostream/histostream/deviate"
	"github.com/histostream/histostream/fraction"
	"github.com/histostream/histostream/registry"
	"github.com/histostream/histostream/wire"
)

func identity(name string) *aggregate.Quantity {
	return aggregate.NewQuantity(name, func(datum any) (any, error) {
		return datum, nil
	})
}

func positive(name string) *aggregate.Quantity {
	return aggregate.NewQuantity(name, func(datum any) (any, error) {
		return datum.(float64) > 0, nil
	})
}

func newFraction() *fraction.Fraction {
	return fraction.New(positive("cut"), deviate.New(identity("x")))
}

func fillAll(t *testing.T, p aggregate.Primitive, data ...float64) {
	t.Helper()
	for _, x := range data {
		require.NoError(t, p.Fill(x, 1.0))
	}
}

func TestFillBooleanSelection(t *testing.T) {
	f := newFraction()
	fillAll(t, f, -1, 0, 1, 2)

	assert.Equal(t, 4.0, f.Entries())
	assert.Equal(t, 4.0, f.Denominator().Entries())
	assert.Equal(t, 2.0, f.Numerator().Entries())

	// Only the passing entries reached the numerator.
	num := f.Numerator().(*deviate.Deviate)
	assert.InDelta(t, 1.5, num.Mean(), 1e-12)
}

func TestFillNumericSelectionReweights(t *testing.T) {
	// A numeric selection multiplies the weight fed to the numerator.
	half := aggregate.NewQuantity("half", func(datum any) (any, error) {
		return 0.5, nil
	})
	f := fraction.New(half, deviate.New(identity("x")))
	fillAll(t, f, 2, 4)

	assert.Equal(t, 2.0, f.Entries())
	assert.Equal(t, 2.0, f.Denominator().Entries())
	assert.Equal(t, 1.0, f.Numerator().Entries())
}

func TestNaNSelectionIsFailedCut(t *testing.T) {
	nanCut := aggregate.NewQuantity("cut", func(datum any) (any, error) {
		return math.NaN(), nil
	})
	f := fraction.New(nanCut, deviate.New(identity("x")))
	fillAll(t, f, 1, 2)

	assert.Equal(t, 2.0, f.Entries())
	assert.Equal(t, 2.0, f.Denominator().Entries())
	assert.Equal(t, 0.0, f.Numerator().Entries())
}

func TestInfiniteSelectionNotClamped(t *testing.T) {
	// A non-finite positive selection result multiplies the weight and
	// is passed through to the numerator unclamped; the child then
	// rejects the non-finite weight, and the fraction's own state is
	// left untouched.
	infCut := aggregate.NewQuantity("cut", func(datum any) (any, error) {
		return math.Inf(1), nil
	})
	f := fraction.New(infCut, deviate.New(identity("x")))
	err := f.Fill(1.0, 1.0)
	assert.True(t, aggregate.IsKind(err, aggregate.KindValueRange))
	assert.Equal(t, 0.0, f.Entries())
	assert.Equal(t, 1.0, f.Denominator().Entries())
}

func TestSelectionTypeError(t *testing.T) {
	badCut := aggregate.NewQuantity("cut", func(datum any) (any, error) {
		return "yes", nil
	})
	f := fraction.New(badCut, deviate.New(identity("x")))
	err := f.Fill(1.0, 1.0)
	assert.True(t, aggregate.IsKind(err, aggregate.KindQuantityType))
	assert.Equal(t, 0.0, f.Entries())
	assert.Equal(t, 0.0, f.Denominator().Entries())
}

func TestChildren(t *testing.T) {
	f := newFraction()
	children := f.Children()
	require.Len(t, children, 2)
	assert.Same(t, f.Numerator(), children[0])
	assert.Same(t, f.Denominator(), children[1])
}

func TestZero(t *testing.T) {
	f := newFraction()
	fillAll(t, f, -1, 1, 2)

	z := f.Zero().(*fraction.Fraction)
	assert.Equal(t, 0.0, z.Entries())
	assert.Equal(t, 0.0, z.Numerator().Entries())
	assert.Equal(t, 0.0, z.Denominator().Entries())

	// Still fillable with the same selection and child shape.
	require.NoError(t, z.Fill(3.0, 1.0))
	assert.Equal(t, 1.0, z.Numerator().Entries())
}

func TestCombine(t *testing.T) {
	a := newFraction()
	fillAll(t, a, -1, 1)
	b := newFraction()
	fillAll(t, b, 0, 2)

	sum, err := a.Combine(b)
	require.NoError(t, err)

	got := sum.(*fraction.Fraction)
	assert.Equal(t, 4.0, got.Entries())
	assert.Equal(t, 4.0, got.Denominator().Entries())
	assert.Equal(t, 2.0, got.Numerator().Entries())
}

func TestCombineZeroIsIdentity(t *testing.T) {
	f := newFraction()
	fillAll(t, f, -1, 0, 1, 2)

	left, err := f.Combine(f.Zero())
	require.NoError(t, err)
	right, err := f.Zero().Combine(f)
	require.NoError(t, err)

	assert.True(t, left.Equal(f))
	assert.True(t, right.Equal(f))
}

func TestCombineShapeMismatch(t *testing.T) {
	f := newFraction()
	_, err := f.Combine(deviate.New(identity("x")))
	assert.True(t, aggregate.IsKind(err, aggregate.KindShapeMismatch))
}

func TestFractionConsistencyInvariant(t *testing.T) {
	f := newFraction()
	fillAll(t, f, -3, -1, 0, 1, 2, 5)

	assert.LessOrEqual(t, f.Numerator().Entries(), f.Denominator().Entries())
	assert.Equal(t, f.Entries(), f.Denominator().Entries())
}

func TestWireRoundTrip(t *testing.T) {
	f := newFraction()
	fillAll(t, f, -1, 0, 1, 2)

	frag, err := f.ToJSONFragment(false)
	require.NoError(t, err)
	assert.Equal(t, "cut", frag["name"])
	assert.Equal(t, "Deviate", frag["type"])
	assert.Equal(t, "x", frag["sub:name"])

	// Children serialize with their names suppressed; sub:name carries
	// the shared quantity name once.
	num := frag["numerator"].(wire.Document)
	_, hasName := num["name"]
	assert.False(t, hasName)

	factory, err := registry.Lookup("Fraction")
	require.NoError(t, err)
	back, err := factory(frag, "")
	require.NoError(t, err)

	assert.True(t, f.Equal(back))

	// Children recovered their quantity name from sub:name.
	name, ok := back.Children()[0].QuantityName()
	assert.True(t, ok)
	assert.Equal(t, "x", name)

	err = back.Fill(1.0, 1.0)
	assert.True(t, aggregate.IsKind(err, aggregate.KindValueRange))
}

func TestWireRoundTripThroughEnvelope(t *testing.T) {
	f := newFraction()
	fillAll(t, f, -1, 2)

	doc, err := aggregate.ToJSON(f)
	require.NoError(t, err)
	raw, err := wire.Marshal(doc)
	require.NoError(t, err)
	parsed, err := wire.Unmarshal(raw)
	require.NoError(t, err)

	back, err := registry.FromDocument(parsed)
	require.NoError(t, err)
	assert.True(t, f.Equal(back))
}

func TestFromFragmentErrors(t *testing.T) {
	factory, err := registry.Lookup("Fraction")
	require.NoError(t, err)

	valid := func() wire.Document {
		f := newFraction()
		frag, err := f.ToJSONFragment(false)
		require.NoError(t, err)
		return frag
	}

	t.Run("missing denominator", func(t *testing.T) {
		frag := valid()
		delete(frag, "denominator")
		_, err := factory(frag, "")
		assert.True(t, aggregate.IsKind(err, aggregate.KindWireFormat))
	})

	t.Run("unknown child type", func(t *testing.T) {
		frag := valid()
		frag["type"] = "Bogus"
		_, err := factory(frag, "")
		assert.True(t, aggregate.IsKind(err, aggregate.KindUnknownType))
	})

	t.Run("entries must be a bare number", func(t *testing.T) {
		frag := valid()
		frag["entries"] = "nan"
		_, err := factory(frag, "")
		assert.True(t, aggregate.IsKind(err, aggregate.KindWireFormat))
	})

	t.Run("negative entries", func(t *testing.T) {
		frag := valid()
		frag["entries"] = -1.0
		_, err := factory(frag, "")
		assert.True(t, aggregate.IsKind(err, aggregate.KindValueRange))
	})
}
