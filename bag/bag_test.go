package bag_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/histostream/histostream/aggregate"
	"github.com/histostream/histostream/bag"
	"github.com/histostream/histostream/registry"
	"github.com/histostream/histostream/wire"
)

func identity(name string) *aggregate.Quantity {
	return aggregate.NewQuantity(name, func(datum any) (any, error) {
		return datum, nil
	})
}

func fillAll(t *testing.T, p aggregate.Primitive, data ...any) {
	t.Helper()
	for _, x := range data {
		require.NoError(t, p.Fill(x, 1.0))
	}
}

func TestFillStrings(t *testing.T) {
	b := bag.New(identity("label"))
	fillAll(t, b, "a", "b", "a")

	assert.Equal(t, 3.0, b.Entries())
	assert.Equal(t, 2, b.Len())
	assert.Equal(t, bag.KindString, b.Kind())

	w, ok := b.WeightOf(bag.Str("a"))
	require.True(t, ok)
	assert.Equal(t, 2.0, w)
	w, ok = b.WeightOf(bag.Str("b"))
	require.True(t, ok)
	assert.Equal(t, 1.0, w)
}

func TestFillScalars(t *testing.T) {
	b := bag.New(identity("x"))
	fillAll(t, b, 1.5, 1.5, 2.0)

	assert.Equal(t, 3.0, b.Entries())
	assert.Equal(t, bag.KindScalar, b.Kind())

	w, ok := b.WeightOf(bag.Scalar(1.5))
	require.True(t, ok)
	assert.Equal(t, 2.0, w)
}

func TestFillTuples(t *testing.T) {
	b := bag.New(identity("xy"))
	fillAll(t, b, []float64{1, 2}, []float64{1, 2}, []float64{3, 4})

	assert.Equal(t, 3.0, b.Entries())
	assert.Equal(t, 2, b.Len())
	assert.Equal(t, bag.KindTuple, b.Kind())

	w, ok := b.WeightOf(bag.Tuple(1, 2))
	require.True(t, ok)
	assert.Equal(t, 2.0, w)
}

func TestFillTupleArityNotUnified(t *testing.T) {
	// Differing tuple lengths are accepted and kept as distinct keys,
	// never unified.
	b := bag.New(identity("xy"))
	fillAll(t, b, []float64{1, 2}, []float64{1, 2, 3})

	assert.Equal(t, 2, b.Len())
	_, ok := b.WeightOf(bag.Tuple(1, 2))
	assert.True(t, ok)
	_, ok = b.WeightOf(bag.Tuple(1, 2, 3))
	assert.True(t, ok)
}

func TestNaNKeysMerge(t *testing.T) {
	b := bag.New(identity("x"))
	fillAll(t, b, math.NaN(), math.NaN())

	assert.Equal(t, 1, b.Len())
	w, ok := b.WeightOf(bag.Scalar(math.NaN()))
	require.True(t, ok)
	assert.Equal(t, 2.0, w)
}

func TestCanonicalOrderPutsNaNLast(t *testing.T) {
	b := bag.New(identity("x"))
	fillAll(t, b, math.NaN(), 3.0, 1.0)

	values := b.Values()
	require.Len(t, values, 3)
	assert.Equal(t, 1.0, values[0].Value.AsScalar())
	assert.Equal(t, 3.0, values[1].Value.AsScalar())
	assert.True(t, math.IsNaN(values[2].Value.AsScalar()))
}

func TestKindMixingIsError(t *testing.T) {
	b := bag.New(identity("x"))
	fillAll(t, b, 1.0)

	err := b.Fill("a string", 1.0)
	assert.True(t, aggregate.IsKind(err, aggregate.KindQuantityType))

	// Failed fill left state untouched.
	assert.Equal(t, 1.0, b.Entries())
	assert.Equal(t, 1, b.Len())
}

func TestFillIgnoresNonPositiveWeight(t *testing.T) {
	b := bag.New(identity("x"))
	require.NoError(t, b.Fill(1.0, 0.0))
	require.NoError(t, b.Fill(1.0, -2.0))
	assert.Equal(t, 0.0, b.Entries())
	assert.Equal(t, 0, b.Len())
}

func TestFillRejectsNonFiniteWeight(t *testing.T) {
	b := bag.New(identity("x"))
	err := b.Fill(1.0, math.Inf(1))
	assert.True(t, aggregate.IsKind(err, aggregate.KindValueRange))
}

func TestQuantityTypeError(t *testing.T) {
	b := bag.New(identity("x"))
	err := b.Fill(struct{}{}, 1.0)
	assert.True(t, aggregate.IsKind(err, aggregate.KindQuantityType))
	assert.Equal(t, 0.0, b.Entries())
}

func TestZero(t *testing.T) {
	b := bag.New(identity("x"))
	fillAll(t, b, "a", "b")

	z := b.Zero()
	assert.Equal(t, 0.0, z.Entries())
	assert.Equal(t, 0, z.(*bag.Bag).Len())

	// A zeroed Bag re-fixes its kind on the next fill.
	require.NoError(t, z.Fill(1.0, 1.0))
	assert.Equal(t, bag.KindScalar, z.(*bag.Bag).Kind())

	assert.Equal(t, 2.0, b.Entries())
}

func TestCombine(t *testing.T) {
	a := bag.New(identity("x"))
	fillAll(t, a, "a", "b")
	b := bag.New(identity("x"))
	fillAll(t, b, "b", "c")

	sum, err := a.Combine(b)
	require.NoError(t, err)

	got := sum.(*bag.Bag)
	assert.Equal(t, 4.0, got.Entries())
	assert.Equal(t, 3, got.Len())
	w, _ := got.WeightOf(bag.Str("b"))
	assert.Equal(t, 2.0, w)

	// Operands unmodified.
	assert.Equal(t, 2, a.Len())
	assert.Equal(t, 2, b.Len())
}

func TestCombineZeroIsIdentity(t *testing.T) {
	b := bag.New(identity("x"))
	fillAll(t, b, 1.0, 2.0, 1.0)

	left, err := b.Combine(b.Zero())
	require.NoError(t, err)
	right, err := b.Zero().Combine(b)
	require.NoError(t, err)

	assert.True(t, left.Equal(b))
	assert.True(t, right.Equal(b))
}

func TestCombineCommutative(t *testing.T) {
	a := bag.New(identity("x"))
	fillAll(t, a, 1.0, 2.0)
	b := bag.New(identity("x"))
	fillAll(t, b, 2.0, 3.0)

	ab, err := a.Combine(b)
	require.NoError(t, err)
	ba, err := b.Combine(a)
	require.NoError(t, err)
	assert.True(t, ab.Equal(ba))
}

func TestCombineKindMismatch(t *testing.T) {
	a := bag.New(identity("x"))
	fillAll(t, a, 1.0)
	b := bag.New(identity("x"))
	fillAll(t, b, "a")

	_, err := a.Combine(b)
	assert.True(t, aggregate.IsKind(err, aggregate.KindShapeMismatch))
}

func TestBagMassInvariant(t *testing.T) {
	b := bag.New(identity("x"))
	require.NoError(t, b.Fill(1.0, 0.5))
	require.NoError(t, b.Fill(2.0, 1.5))
	require.NoError(t, b.Fill(1.0, 2.0))

	var mass float64
	for _, w := range b.Values() {
		mass += w.Weight
	}
	assert.InDelta(t, b.Entries(), mass, 1e-12)
}

func TestWireRoundTripStrings(t *testing.T) {
	b := bag.New(identity("label"))
	fillAll(t, b, "a", "b", "a")

	frag, err := b.ToJSONFragment(false)
	require.NoError(t, err)
	assert.Equal(t, 3.0, frag["entries"])
	values := frag["values"].([]any)
	require.Len(t, values, 2)
	first := values[0].(map[string]any)
	assert.Equal(t, "a", first["v"])
	assert.Equal(t, 2.0, first["w"])

	factory, err := registry.Lookup("Bag")
	require.NoError(t, err)
	back, err := factory(frag, "")
	require.NoError(t, err)
	assert.True(t, b.Equal(back))

	err = back.Fill("a", 1.0)
	assert.True(t, aggregate.IsKind(err, aggregate.KindValueRange))
}

func TestWireRoundTripTuplesAndNaN(t *testing.T) {
	b := bag.New(identity("xy"))
	fillAll(t, b, []float64{1, math.NaN()}, []float64{1, 2})

	frag, err := b.ToJSONFragment(false)
	require.NoError(t, err)

	factory, err := registry.Lookup("Bag")
	require.NoError(t, err)
	back, err := factory(frag, "")
	require.NoError(t, err)
	assert.True(t, b.Equal(back))
}

func TestWireRoundTripScalarNaN(t *testing.T) {
	b := bag.New(identity("x"))
	fillAll(t, b, 1.0, math.NaN())

	frag, err := b.ToJSONFragment(false)
	require.NoError(t, err)
	values := frag["values"].([]any)
	last := values[len(values)-1].(map[string]any)
	assert.Equal(t, "nan", last["v"])

	factory, err := registry.Lookup("Bag")
	require.NoError(t, err)
	back, err := factory(frag, "")
	require.NoError(t, err)
	assert.True(t, b.Equal(back))
}

func TestWireRoundTripThroughJSONText(t *testing.T) {
	b := bag.New(identity("x"))
	fillAll(t, b, 1.5, 2.5, 1.5)

	doc, err := aggregate.ToJSON(b)
	require.NoError(t, err)
	raw, err := wire.Marshal(doc)
	require.NoError(t, err)
	parsed, err := wire.Unmarshal(raw)
	require.NoError(t, err)

	back, err := registry.FromDocument(parsed)
	require.NoError(t, err)
	assert.True(t, b.Equal(back))
}

func TestFromFragmentErrors(t *testing.T) {
	factory, err := registry.Lookup("Bag")
	require.NoError(t, err)

	tests := []struct {
		name string
		frag wire.Document
		kind aggregate.ErrorKind
	}{
		{"missing values", wire.Document{"entries": 1.0}, aggregate.KindWireFormat},
		{"entries wrong type", wire.Document{"entries": []any{}, "values": []any{}}, aggregate.KindWireFormat},
		{"negative entries", wire.Document{"entries": -2.0, "values": []any{}}, aggregate.KindValueRange},
		{"value pair missing w", wire.Document{"entries": 1.0, "values": []any{map[string]any{"v": 1.0}}}, aggregate.KindWireFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := factory(tt.frag, "")
			assert.True(t, aggregate.IsKind(err, tt.kind), "got %v", err)
		})
	}
}

func TestEqualNamedVsAnonymous(t *testing.T) {
	named := bag.New(identity("x"))
	fillAll(t, named, "a")
	anon := bag.New(identity(""))
	fillAll(t, anon, "a")
	assert.False(t, named.Equal(anon))
}

func TestFingerprintStableAcrossFillOrder(t *testing.T) {
	a := bag.New(identity("x"))
	fillAll(t, a, "a", "b", "c")
	b := bag.New(identity("x"))
	fillAll(t, b, "c", "a", "b")

	ha, err := aggregate.Fingerprint(a)
	require.NoError(t, err)
	hb, err := aggregate.Fingerprint(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
}
