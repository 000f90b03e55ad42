package extension

import (
	"reflect"
	"strings"

	"github.com/viant/x"
)

// Types keeps goal payload prototypes addressable by wire name so clients
// and tools can resolve a payload type without importing the handler
// package.
type Types struct {
	x.Registry
}

// Register adds a payload type to the registry.
func (t *Types) Register(dataType *x.Type) {
	t.Registry.Register(dataType)
}

// Lookup returns a payload type from the registry; a "[]" prefix resolves to
// the slice of the registered type.
func (t *Types) Lookup(dataType string) *x.Type {
	typeModifier := ""
	if idx := strings.LastIndex(dataType, "]"); idx != -1 {
		typeModifier = dataType[:idx+1]
		dataType = dataType[idx+1:]
	}
	ret := t.Registry.Lookup(dataType)
	if ret == nil {
		return nil
	}
	if strings.TrimSpace(typeModifier) == "[]" {
		return x.NewType(reflect.SliceOf(ret.Type))
	}
	return ret
}

// NewTypes creates a new types
func NewTypes(options ...x.RegistryOption) *Types {
	result := &Types{
		Registry: *x.NewRegistry(options...),
	}
	return result
}
