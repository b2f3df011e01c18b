// Package registry is the process-wide, immutable-after-init table
// mapping a primitive's wire "type" tag to the factory that
// deserializes it: a mutex-guarded map populated once per primitive
// package via init(), with a package-level global instance behind
// Register/Lookup wrappers.
package registry

import (
	"sync"

	"github.com/histostream/histostream/aggregate"
	"github.com/histostream/histostream/wire"
)

// Factory builds a past-tense Primitive from a wire fragment. If the
// fragment omits "name", the factory adopts nameFromParent.
type Factory func(fragment wire.Document, nameFromParent string) (aggregate.Primitive, error)

type registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

var global = &registry{factories: make(map[string]Factory)}

// Register adds a factory for name. Called once per primitive package
// at load time (init()); registering the same name twice overwrites
// the previous factory, matching a hot-reloadable module-load model
// rather than panicking, since tests may re-register fakes.
func Register(name string, factory Factory) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.factories[name] = factory
}

// Lookup returns the factory registered for name, or an unknown-type
// error if none was registered.
func Lookup(name string) (Factory, error) {
	global.mu.RLock()
	defer global.mu.RUnlock()
	f, ok := global.factories[name]
	if !ok {
		return nil, aggregate.NewUnknownTypeError(name)
	}
	return f, nil
}

// FromDocument decodes a top-level envelope document by looking up its
// "type" and invoking the registered factory on its "data" fragment.
func FromDocument(doc wire.Document) (aggregate.Primitive, error) {
	typeName, err := doc.Type()
	if err != nil {
		return nil, aggregate.NewWireFormatError(err.Error())
	}
	data, err := doc.Data()
	if err != nil {
		return nil, aggregate.NewWireFormatError(err.Error())
	}
	if version, ok := doc.OptString("version"); ok {
		if err := wire.ValidateVersion(version); err != nil {
			return nil, aggregate.NewWireFormatError(err.Error())
		}
	}

	factory, err := Lookup(typeName)
	if err != nil {
		return nil, err
	}
	return factory(data, "")
}
