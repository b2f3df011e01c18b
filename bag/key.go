package bag

import (
	"math"
	"strconv"
	"strings"

	"github.com/histostream/histostream/numeric"
)

// Kind discriminates the three value families a Bag can hold. A single
// Bag holds one kind for its whole life; the kind is fixed by the
// first fill and mixing kinds is a runtime error.
type Kind int

const (
	// KindUnset means no value has been observed yet.
	KindUnset Kind = iota
	// KindScalar holds float64 keys, possibly NaN.
	KindScalar
	// KindTuple holds fixed-length float64 tuples. Tuple length is
	// deliberately not enforced across fills: differing lengths simply
	// produce distinct keys.
	KindTuple
	// KindString holds string keys.
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindTuple:
		return "tuple"
	case KindString:
		return "string"
	default:
		return "unset"
	}
}

// Value is one Bag key: a scalar, a tuple of floats, or a string.
type Value struct {
	kind   Kind
	scalar float64
	tuple  []float64
	str    string
}

// Scalar makes a scalar-kind Value.
func Scalar(f float64) Value { return Value{kind: KindScalar, scalar: f} }

// Tuple makes a tuple-kind Value. The slice is copied.
func Tuple(fs ...float64) Value {
	t := make([]float64, len(fs))
	copy(t, fs)
	return Value{kind: KindTuple, tuple: t}
}

// Str makes a string-kind Value.
func Str(s string) Value { return Value{kind: KindString, str: s} }

// Kind returns the value's family.
func (v Value) Kind() Kind { return v.kind }

// AsScalar returns the scalar payload (meaningful only for KindScalar).
func (v Value) AsScalar() float64 { return v.scalar }

// AsTuple returns the tuple payload (meaningful only for KindTuple).
func (v Value) AsTuple() []float64 { return v.tuple }

// AsString returns the string payload (meaningful only for KindString).
func (v Value) AsString() string { return v.str }

// id is the map key under which this value is stored: a canonical
// string encoding in which every NaN collapses to one token, so all
// NaN keys are treated as equal to each other.
func (v Value) id() string {
	switch v.kind {
	case KindScalar:
		return "f:" + formatFloat(v.scalar)
	case KindTuple:
		parts := make([]string, len(v.tuple))
		for i, f := range v.tuple {
			parts[i] = formatFloat(f)
		}
		return "t:" + strings.Join(parts, ",")
	default:
		return "s:" + v.str
	}
}

func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return numeric.SentinelNaN
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// less orders values for the canonical wire form: within a kind,
// scalars numerically, strings lexicographically, tuples element-wise
// with shorter prefixes first. NaN sorts after every number, which
// places scalar NaN entries last (the wire form's requirement). Across
// kinds (only possible in a document that mixed them) the order is
// scalar < tuple < string.
func (v Value) less(o Value) bool {
	if v.kind != o.kind {
		return v.kind < o.kind
	}
	switch v.kind {
	case KindScalar:
		return floatLess(v.scalar, o.scalar)
	case KindString:
		return v.str < o.str
	default:
		n := len(v.tuple)
		if len(o.tuple) < n {
			n = len(o.tuple)
		}
		for i := 0; i < n; i++ {
			if floatLess(v.tuple[i], o.tuple[i]) {
				return true
			}
			if floatLess(o.tuple[i], v.tuple[i]) {
				return false
			}
		}
		return len(v.tuple) < len(o.tuple)
	}
}

// floatLess is a total order with NaN greater than everything else and
// equal to itself.
func floatLess(a, b float64) bool {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	if aNaN {
		return false
	}
	if bNaN {
		return true
	}
	return a < b
}

// equalTolerant compares two values under the library float tolerance,
// with NaN equal to NaN. Tuples of different lengths are unequal.
func (v Value) equalTolerant(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindScalar:
		return numeric.ApproxEqual(v.scalar, o.scalar)
	case KindString:
		return v.str == o.str
	default:
		if len(v.tuple) != len(o.tuple) {
			return false
		}
		for i := range v.tuple {
			if !numeric.ApproxEqual(v.tuple[i], o.tuple[i]) {
				return false
			}
		}
		return true
	}
}

// encode renders the value for the wire: bare number or sentinel
// string for scalars, a list of such for tuples, the string itself for
// strings.
func (v Value) encode() any {
	switch v.kind {
	case KindScalar:
		return numeric.EncodeFloat(v.scalar)
	case KindTuple:
		out := make([]any, len(v.tuple))
		for i, f := range v.tuple {
			out[i] = numeric.EncodeFloat(f)
		}
		return out
	default:
		return v.str
	}
}
