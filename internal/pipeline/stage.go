// Package pipeline runs a fixed sequence of stages over a single item.
// Steps inside one stage run in parallel; stages run one after another and
// the first failing stage aborts the run.
package pipeline

import (
	"context"
)

// Step mutates the item in place. Steps sharing a stage run concurrently and
// must not write the same fields.
//
// Example:
//
//	func pickRegion(ctx context.Context, a *attempt) error { a.region = ...; return nil }
type Step[T any] func(ctx context.Context, item *T) error

// Stage groups steps that are safe to run in parallel for one item.
type Stage[T any] struct {
	name  string
	steps []Step[T]
}

// NewStage constructs a named Stage from the provided steps. The name is
// used to prefix errors.
func NewStage[T any](name string, steps ...Step[T]) Stage[T] {
	return Stage[T]{name: name, steps: steps}
}

func (s Stage[T]) Name() string { return s.name }
