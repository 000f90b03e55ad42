// Package clock funnels all time reads through one swappable function so
// tests can pin goal stamps and TTL sweeps to deterministic instants.
package clock

import "time"

// NowFunc returns the current time. Tests override it to control admission
// ordering and registry eviction.
var NowFunc = time.Now

// Now is a thin wrapper around NowFunc.
func Now() time.Time { return NowFunc() }
