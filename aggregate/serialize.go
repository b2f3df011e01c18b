package aggregate

import "github.com/histostream/histostream/wire"

// ToJSON serializes p as a top-level wire document:
// {"type": p.Name(), "data": fragment, "version": wire.CurrentVersion}.
// The fragment is emitted in named mode (suppressName=false); callers
// that want the anonymous form serialize the fragment directly via
// ToJSONFragment.
func ToJSON(p Primitive) (wire.Document, error) {
	frag, err := p.ToJSONFragment(false)
	if err != nil {
		return nil, err
	}
	return wire.Envelope(p.Name(), frag, wire.CurrentVersion), nil
}

// Fingerprint returns the deterministic cross-process identity of p:
// the BLAKE2b hash of the canonical CBOR encoding of its envelope
// document. Two aggregators, in this process or another, in this
// language or another, that represent the same logical aggregation
// produce the same fingerprint.
func Fingerprint(p Primitive) (string, error) {
	doc, err := ToJSON(p)
	if err != nil {
		return "", err
	}
	return doc.Hash()
}
