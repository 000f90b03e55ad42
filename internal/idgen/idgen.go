package idgen

import "github.com/google/uuid"

// NewFunc produces goal identifiers. It is a variable so tests can stub it
// with predictable values.
var NewFunc = uuid.NewString

// New returns a new globally unique goal identifier.
func New() string { return NewFunc() }
