// Package actionlib provides a single-active goal execution service: clients
// submit goals, at most one goal executes at a time, newer goals preempt
// older ones and every state change is published as a typed event.
//
// The module is organised in pluggable service layers:
//
//   - server      – goal ingestion, status tracking and event publication
//   - coordinator – admission (latest goal wins) and the execution loop
//   - executor    – typed payload adapters for execute callbacks
//   - client      – goal submission, cancellation and result tracking
//
// actionlib is designed to be embedded in host applications. End-users
// typically interact via the high-level Service façade exposed by the root
// package:
//
//	srv, _ := actionlib.New(actionlib.WithHandler("fibonacci", &FibonacciInput{}, handler))
//	_ = srv.Start(ctx)
//	cli, _ := srv.Client()
//	goal, _ := cli.SendGoal(ctx, "fibonacci", &FibonacciInput{Order: 10})
//	result, _ := goal.WaitForResult(ctx)
//
// For more details see the README and individual sub-packages.
package actionlib
