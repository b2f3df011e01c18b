package wire

import (
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"
)

// Hash computes a deterministic fingerprint of d: a canonical,
// key-sorted CBOR encoding hashed with BLAKE2b-256, returned as
// "blake2b:<hex>". Two aggregators that serialize to structurally
// equal documents, even across language implementations, produce
// the same hash, which is what lets partial aggregations be merged
// across processes and languages with confidence.
//
// Two-step: build a canonical form, then encode it deterministically
// before hashing. The canonical form is a recursive sort of map keys.
func (d Document) Hash() (string, error) {
	canon := canonicalize(d)

	encMode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return "", fmt.Errorf("create canonical CBOR encoder: %w", err)
	}

	data, err := encMode.Marshal(canon)
	if err != nil {
		return "", fmt.Errorf("canonical CBOR encode: %w", err)
	}

	digest := blake2b.Sum256(data)
	return fmt.Sprintf("blake2b:%x", digest), nil
}

// canonicalize recursively rewrites a Document/slice/scalar tree into
// a form whose CBOR encoding is deterministic: map[string]any becomes
// an ordered slice of key/value pairs (CanonicalEncOptions already
// sorts plain map keys, but Document is a named map type that CBOR
// would otherwise encode via reflection in struct-field order if it
// were ever a struct; keeping this explicit keeps the hash stable
// even if a future field is added as a Go struct rather than a map).
func canonicalize(v any) any {
	switch x := v.(type) {
	case Document:
		return canonicalize(map[string]any(x))
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]cborPair, 0, len(x))
		for _, k := range keys {
			out = append(out, cborPair{Key: k, Value: canonicalize(x[k])})
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = canonicalize(e)
		}
		return out
	default:
		return x
	}
}

// cborPair is an explicit key/value pair so CBOR encodes maps as an
// ordered list rather than relying on map iteration order.
type cborPair struct {
	Key   string
	Value any
}
