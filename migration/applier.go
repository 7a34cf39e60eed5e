package migration

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rediwo/redi-migrate/logger"
	"github.com/rediwo/redi-migrate/types"
)

// OperationStatus tracks one operation through its application lifecycle
type OperationStatus int

const (
	StatusUnapplied OperationStatus = iota
	StatusApplying
	StatusApplied
	StatusFailed
)

func (s OperationStatus) String() string {
	switch s {
	case StatusUnapplied:
		return "unapplied"
	case StatusApplying:
		return "applying"
	case StatusApplied:
		return "applied"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Plan is an ordered list of operations applied as one unit
type Plan struct {
	Version    string
	Name       string
	Operations []Operation
}

// OperationResult reports the outcome of one operation within a plan
type OperationResult struct {
	Operation Operation
	Status    OperationStatus
	Err       error
}

// Applier applies operation plans against a database. Each plan runs inside a
// single schema-editing transaction: the first failing operation aborts the
// plan and rolls back everything it already did.
type Applier struct {
	db      *sql.DB
	dialect types.Dialect
	history *HistoryManager
	log     logger.Logger
}

// NewApplier creates an applier. history may be nil, in which case applied
// plans are not recorded.
func NewApplier(db *sql.DB, dialect types.Dialect, history *HistoryManager) *Applier {
	return &Applier{
		db:      db,
		dialect: dialect,
		history: history,
		log:     logger.GetGlobalLogger(),
	}
}

// Apply runs the plan's operations in order against the given project state.
// The input state is never mutated: each operation advances a cloned snapshot,
// and the post-plan state is returned alongside the per-operation results.
// Results always cover every operation; operations after a failure stay
// unapplied.
func (a *Applier) Apply(ctx context.Context, state *ProjectState, plan *Plan) (*ProjectState, []OperationResult, error) {
	results := make([]OperationResult, len(plan.Operations))
	for i, op := range plan.Operations {
		results[i] = OperationResult{Operation: op, Status: StatusUnapplied}
	}

	current := state.Clone()

	err := Edit(ctx, a.db, a.dialect, func(e *SchemaEditor) error {
		for i, op := range plan.Operations {
			results[i].Status = StatusApplying
			a.log.Info("applying operation: %s", op.Describe())

			next := current.Clone()
			if err := op.StateForwards(next); err != nil {
				results[i].Status = StatusFailed
				results[i].Err = err
				return fmt.Errorf("operation %q: %w", op.Describe(), err)
			}
			if err := op.DatabaseForwards(e, current, next); err != nil {
				results[i].Status = StatusFailed
				results[i].Err = err
				return fmt.Errorf("operation %q: %w", op.Describe(), err)
			}

			results[i].Status = StatusApplied
			current = next
		}
		return nil
	})
	if err != nil {
		return nil, results, err
	}

	if a.history != nil && plan.Version != "" {
		if err := a.history.Record(ctx, plan.Version, plan.Name, planChecksum(plan)); err != nil {
			return nil, results, fmt.Errorf("failed to record migration %s: %w", plan.Version, err)
		}
	}

	return current, results, nil
}

// planChecksum fingerprints a plan by its operation descriptions
func planChecksum(plan *Plan) string {
	var descr string
	for _, op := range plan.Operations {
		descr += op.Describe() + "\n"
	}
	return ComputeChecksum(descr)
}
