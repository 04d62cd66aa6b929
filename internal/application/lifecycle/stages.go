package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/invoiced/backend/internal/domain/numbering"
	"github.com/invoiced/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// TenantGuard validates and stamps the owner of a new entity
type TenantGuard interface {
	BeforeCreate(ctx context.Context, entity shared.TenantOwned) error
}

// TenantStage stamps the current tenant on the entity. It must run before
// any stage that depends on the owner, numbering in particular.
func TenantStage[T shared.TenantOwned](guard TenantGuard) Stage[T] {
	return StageFunc[T]{
		StageName: "tenant",
		Fn: func(ctx context.Context, entity T) (Hooks, error) {
			return Hooks{}, guard.BeforeCreate(ctx, entity)
		},
	}
}

// ValidationStage rejects entities that fail validate
func ValidationStage[T any](validate func(any) error) Stage[T] {
	return StageFunc[T]{
		StageName: "validation",
		Fn: func(_ context.Context, entity T) (Hooks, error) {
			return Hooks{}, validate(entity)
		},
	}
}

// creationMarker is implemented by entities that record a creation event
type creationMarker interface {
	MarkCreated()
}

// EventStage publishes the pending domain events of the entity once it is
// saved, including its creation event. Events of failed creates are dropped.
func EventStage[T shared.AggregateRoot](publisher shared.EventPublisher, logger *zap.Logger) Stage[T] {
	return StageFunc[T]{
		StageName: "events",
		Fn: func(_ context.Context, entity T) (Hooks, error) {
			return Hooks{
				AfterCommit: func(ctx context.Context) {
					if m, ok := any(entity).(creationMarker); ok {
						m.MarkCreated()
					}
					events := entity.GetDomainEvents()
					if len(events) == 0 {
						return
					}
					if err := publisher.Publish(ctx, events...); err != nil {
						logger.Error("failed to publish domain events",
							zap.String("aggregate_id", entity.GetID().String()),
							zap.Error(err),
						)
						return
					}
					entity.ClearDomainEvents()
				},
				OnFailure: func(_ context.Context, cause error) error {
					entity.ClearDomainEvents()
					return cause
				},
			}, nil
		},
	}
}

// NumberingStage assigns document numbers. A number already set on the
// entity is user supplied and always wins; it is only checked for
// uniqueness. Otherwise a number is reserved from the tenant's sequence and
// settled once the save outcome is known:
//
//   - saved: the reservation is committed
//   - number taken: the candidate is burned and a retriable
//     DuplicateNumberError is returned
//   - any other failure: the candidate is released
func NumberingStage[T shared.Numbered](gen *numbering.Generator, logger *zap.Logger) Stage[T] {
	return StageFunc[T]{
		StageName: "numbering",
		Fn: func(ctx context.Context, entity T) (Hooks, error) {
			objectType, err := numbering.ParseObjectType(entity.ObjectType())
			if err != nil {
				return Hooks{}, err
			}
			seq := gen.For(entity.GetTenantID(), objectType)

			if supplied := entity.GetNumber(); supplied != "" {
				return userSupplied(ctx, seq, supplied)
			}

			r, err := seq.Reserve(ctx)
			if err != nil {
				return Hooks{}, err
			}
			entity.SetNumber(r.Number)

			return Hooks{
				AfterCommit: func(context.Context) {
					seq.Commit(r.Number)
				},
				OnFailure: func(ctx context.Context, cause error) error {
					entity.SetNumber("")
					if errors.Is(cause, shared.ErrNumberTaken) {
						seq.Burn(ctx, r.Number)
						return shared.NewDuplicateNumberError(string(objectType), r.Number, false, cause)
					}
					if err := seq.Release(ctx, r.Number); err != nil {
						logger.Warn("failed to release reserved number",
							zap.String("sequence", seq.Key().String()),
							zap.String("number", r.Number),
							zap.Error(err),
						)
					}
					return cause
				},
			}, nil
		},
	}
}

func userSupplied(ctx context.Context, seq *numbering.Sequence, number string) (Hooks, error) {
	objectType := string(seq.Key().ObjectType)
	unique, err := seq.IsUnique(ctx, number)
	if err != nil {
		return Hooks{}, fmt.Errorf("check number %s: %w", number, err)
	}
	if !unique {
		return Hooks{}, shared.NewDuplicateNumberError(objectType, number, true, nil)
	}
	return Hooks{
		OnFailure: func(_ context.Context, cause error) error {
			if errors.Is(cause, shared.ErrNumberTaken) {
				return shared.NewDuplicateNumberError(objectType, number, true, cause)
			}
			return cause
		},
	}, nil
}
