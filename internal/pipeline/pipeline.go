package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Pipeline is generic over the item type T.
type Pipeline[T any] struct {
	stages []Stage[T]
}

// NewPipeline constructs a Pipeline from the provided stages, applied in order.
func NewPipeline[T any](stages ...Stage[T]) *Pipeline[T] {
	return &Pipeline[T]{stages: stages}
}

// Run applies every stage to item. All steps of a stage are started together
// and must finish before the next stage begins. If any step of a stage fails,
// Run stops and returns the stage's errors joined and prefixed with its name.
// A cancelled context stops the run before the next stage starts.
func (p *Pipeline[T]) Run(ctx context.Context, item *T) error {
	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := runStage(ctx, stage, item); err != nil {
			return fmt.Errorf("%s: %w", stage.name, err)
		}
	}
	return nil
}

func runStage[T any](ctx context.Context, stage Stage[T], item *T) error {
	if len(stage.steps) == 1 {
		return stage.steps[0](ctx, item)
	}

	errs := make([]error, len(stage.steps))
	var wg sync.WaitGroup
	for i, step := range stage.steps {
		wg.Add(1)
		go func(i int, step Step[T]) {
			defer wg.Done()
			errs[i] = step(ctx, item)
		}(i, step)
	}
	wg.Wait() // stage barrier: ensure all steps finished before the next stage
	return errors.Join(errs...)
}
