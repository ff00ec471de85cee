// Package saga drives multi-step money movements with durable progress
// records and reverse-order compensation. Steps must be idempotent: the
// recovery loop may re-invoke a step that already ran.
package saga

import (
	"context"
	"errors"
)

var (
	// ErrManualInterventionRequired is returned when a compensation step
	// fails. The saga is parked in FAILED and needs an operator.
	ErrManualInterventionRequired = errors.New("saga compensation failed, manual intervention required")

	// ErrUnknownSaga is returned by the registry when no definition is
	// registered under the requested name.
	ErrUnknownSaga = errors.New("unknown saga definition")
)

// Step is one unit of a saga. Execute applies the step's side effect against
// the aggregate; Compensate undoes it. Both receive the aggregate reference
// (e.g. a transfer reference) and resolve the aggregate themselves, so a step
// re-invoked after a crash operates on current state.
type Step interface {
	ID() string
	Execute(ctx context.Context, aggregateRef string) error
	Compensate(ctx context.Context, aggregateRef string) error
}

// Definition is an ordered list of steps under a stable saga name. The name
// keys the durable record, so renaming a saga orphans its in-flight runs.
type Definition struct {
	Name  string
	Steps []Step
}

func (d Definition) stepByID(stepID string) (Step, bool) {
	for _, step := range d.Steps {
		if step.ID() == stepID {
			return step, true
		}
	}
	return nil, false
}

// Registry maps saga names to definitions so the recovery loop can re-drive
// persisted records.
type Registry struct {
	definitions map[string]Definition
}

func NewRegistry() *Registry {
	return &Registry{definitions: map[string]Definition{}}
}

func (r *Registry) Register(definition Definition) {
	r.definitions[definition.Name] = definition
}

func (r *Registry) Get(sagaName string) (Definition, error) {
	definition, ok := r.definitions[sagaName]
	if !ok {
		return Definition{}, ErrUnknownSaga
	}
	return definition, nil
}
