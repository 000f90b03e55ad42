// Package executor bridges opaque goal payloads and strongly typed handler
// inputs.  It is effectively a glue layer between the wire-level goal model
// and user handler implementations.
package executor
