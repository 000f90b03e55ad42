// Package policy provides optional declarative rules that can be applied on
// top of a running action server – for example to require approval before a
// goal is admitted or to cap how long a callback may run.
package policy
