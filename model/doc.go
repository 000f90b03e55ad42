// Package model contains the wire-level representation of goals and of the
// events a goal server publishes about them: status updates, feedback and
// results.
//
// The types here are deliberately transport-agnostic.  A goal carries an
// opaque payload; the messaging and event layers move these structures
// around, while the coordinator only ever inspects identity, timestamp and
// status.
package model
