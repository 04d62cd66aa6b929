// Package lifecycle runs entity creation through an explicit, ordered list of
// stages. Each stage may prepare the entity before it is persisted and gets a
// chance to react once the outcome is known.
//
// For a pipeline built as
//
//	lifecycle.NewPipeline[*billing.Invoice]().
//		Use(lifecycle.TenantStage[*billing.Invoice](guard)).
//		Use(lifecycle.NumberingStage[*billing.Invoice](gen, logger)).
//		Build()
//
// Create runs the BeforeCreate of every stage in order, calls persist, and
// then runs the AfterCommit or OnFailure hooks of the stages that ran in
// reverse order.
package lifecycle

import (
	"context"
	"errors"

	"github.com/invoiced/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Hooks are the outcome callbacks a stage registers for one Create call.
// Either may be nil.
type Hooks struct {
	// AfterCommit runs after persist succeeded
	AfterCommit func(ctx context.Context)
	// OnFailure runs after persist or a later stage failed. It returns the
	// error to propagate, which lets a stage translate the cause.
	OnFailure func(ctx context.Context, cause error) error
}

// Stage is one step of the create pipeline. State needed by the hooks is
// captured by the returned closures, so stages can be shared by concurrent
// requests.
type Stage[T any] interface {
	Name() string
	BeforeCreate(ctx context.Context, entity T) (Hooks, error)
}

// StageFunc adapts a function to a Stage
type StageFunc[T any] struct {
	StageName string
	Fn        func(ctx context.Context, entity T) (Hooks, error)
}

// Name implements Stage
func (s StageFunc[T]) Name() string { return s.StageName }

// BeforeCreate implements Stage
func (s StageFunc[T]) BeforeCreate(ctx context.Context, entity T) (Hooks, error) {
	return s.Fn(ctx, entity)
}

// PersistFunc writes the prepared entity
type PersistFunc[T any] func(ctx context.Context, entity T) error

// Builder assembles a Pipeline
type Builder[T any] struct {
	stages     []Stage[T]
	maxRetries int
	logger     *zap.Logger
}

// NewPipeline starts a pipeline definition
func NewPipeline[T any]() *Builder[T] {
	return &Builder[T]{logger: zap.NewNop()}
}

// Use appends a stage
func (b *Builder[T]) Use(stage Stage[T]) *Builder[T] {
	b.stages = append(b.stages, stage)
	return b
}

// WithMaxRetries sets how many times a create whose auto-generated number
// collided is retried with a fresh number. Zero disables retries.
func (b *Builder[T]) WithMaxRetries(n int) *Builder[T] {
	if n < 0 {
		n = 0
	}
	b.maxRetries = n
	return b
}

// WithLogger sets the logger
func (b *Builder[T]) WithLogger(logger *zap.Logger) *Builder[T] {
	b.logger = logger
	return b
}

// Build returns the immutable pipeline
func (b *Builder[T]) Build() *Pipeline[T] {
	stages := make([]Stage[T], len(b.stages))
	copy(stages, b.stages)
	return &Pipeline[T]{stages: stages, maxRetries: b.maxRetries, logger: b.logger}
}

// Pipeline runs creates through its stages
type Pipeline[T any] struct {
	stages     []Stage[T]
	maxRetries int
	logger     *zap.Logger
}

// Stages returns the stage names in execution order
func (p *Pipeline[T]) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// Create prepares entity, persists it and settles every stage. A collision
// of an auto-generated number is retried up to the configured limit; all
// other errors are returned as translated by the stages.
func (p *Pipeline[T]) Create(ctx context.Context, entity T, persist PersistFunc[T]) error {
	var err error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		err = p.attempt(ctx, entity, persist)
		if err == nil || !retriableCollision(err) {
			return err
		}
		if attempt < p.maxRetries {
			p.logger.Info("generated number collided, retrying with a fresh one",
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
		}
	}
	return err
}

func (p *Pipeline[T]) attempt(ctx context.Context, entity T, persist PersistFunc[T]) error {
	hooks := make([]Hooks, 0, len(p.stages))
	for _, stage := range p.stages {
		h, err := stage.BeforeCreate(ctx, entity)
		if err != nil {
			return p.fail(ctx, hooks, err)
		}
		hooks = append(hooks, h)
	}

	if err := persist(ctx, entity); err != nil {
		return p.fail(ctx, hooks, err)
	}

	for i := len(hooks) - 1; i >= 0; i-- {
		if hooks[i].AfterCommit != nil {
			hooks[i].AfterCommit(ctx)
		}
	}
	return nil
}

// fail unwinds the stages that ran, letting each translate the error
func (p *Pipeline[T]) fail(ctx context.Context, hooks []Hooks, cause error) error {
	err := cause
	for i := len(hooks) - 1; i >= 0; i-- {
		if hooks[i].OnFailure != nil {
			err = hooks[i].OnFailure(ctx, err)
		}
	}
	return err
}

func retriableCollision(err error) bool {
	var dup *shared.DuplicateNumberError
	return errors.As(err, &dup) && dup.Retriable()
}
