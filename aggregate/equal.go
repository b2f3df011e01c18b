package aggregate

import (
	"github.com/google/go-cmp/cmp"

	"github.com/histostream/histostream/numeric"
)

// FloatComparer is the library-wide float64 equality rule: NaN equals
// NaN, and otherwise equal within numeric.DefaultRelTolerance/
// DefaultAbsTolerance. The primitives' own Equal methods call
// numeric.ApproxEqual directly on their fields, so tolerance is
// defined in exactly one place (package numeric).
var FloatComparer = cmp.Comparer(numeric.ApproxEqual)

// Equal compares x and y structurally using FloatComparer for any
// float64 field/element found anywhere in the tree, plus any extra
// opts the caller supplies (e.g. cmp.AllowUnexported for a primitive's
// own state struct).
func Equal(x, y any, opts ...cmp.Option) bool {
	return cmp.Equal(x, y, append([]cmp.Option{FloatComparer}, opts...)...)
}
