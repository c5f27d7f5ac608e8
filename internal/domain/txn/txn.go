// Package txn defines the scoped unit of work used by services that must
// change several tables atomically.
package txn

import "context"

// Runner executes fn inside a transaction. The transaction commits when fn
// returns nil and rolls back when fn returns an error or panics. Repositories
// called with the ctx passed to fn take part in the same transaction.
type Runner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, fn func(ctx context.Context) error) error

// InTx implements Runner.
func (f RunnerFunc) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return f(ctx, fn)
}

// Passthrough runs fn directly, without any transaction. It suits read paths
// in tests and single-statement stores.
var Passthrough Runner = RunnerFunc(func(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
})
