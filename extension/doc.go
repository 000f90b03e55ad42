// Package extension provides run-time registries that bind wire-level action
// names to user-defined Go handlers and their goal payload types.
//
// The registries are normally modified through the public APIs under the
// root actionlib package, therefore most applications do not need to import
// this package directly.
package extension
