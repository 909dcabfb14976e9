// Package poller provides a cancellable, deadline-bounded polling task.
//
// Start runs a check function immediately and then on a fixed interval until
// it reports completion. The task ends with ErrTimeout when the ceiling is
// reached, with the context error when the parent context or Cancel stops it,
// or with the last check error once the consecutive error budget is spent.
package poller
