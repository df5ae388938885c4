// saga.go
//
// Collaborative item catalog data service for jam-build
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of jam-build-cmdb.
// jam-build-cmdb is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// jam-build-cmdb is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with jam-build-cmdb.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package cascade

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/localnerve/jam-build-cmdb/internal/store"
	"github.com/localnerve/jam-build-cmdb/internal/types"
)

// Mode selects how a multi-record mutation is applied
type Mode int

const (
	// ModeTransaction runs all steps in one store transaction
	ModeTransaction Mode = iota
	// ModeSaga runs steps directly and compensates completed steps on failure
	ModeSaga
)

func (m Mode) String() string {
	if m == ModeSaga {
		return "saga"
	}
	return "transaction"
}

// ParseMode maps a configuration value onto a Mode
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "transaction", "tx":
		return ModeTransaction, nil
	case "saga":
		return ModeSaga, nil
	}
	return ModeTransaction, fmt.Errorf("unknown cascade mode %q", s)
}

// Step is one mutation of a cascade with its compensation.
// Undo is nil for steps with nothing to reverse. Refs names the records
// left behind if Undo fails.
type Step struct {
	Name string
	Do   func(ctx context.Context, s store.Store) error
	Undo func(ctx context.Context, s store.Store) error
	Refs func() []string
}

// Plan builds the steps of an operation from current store state
type Plan func(ctx context.Context, s store.Store) ([]Step, error)

// Saga executes steps in order. On failure it runs the compensations of the
// completed steps in reverse order.
type Saga struct {
	Op    string
	Steps []Step
}

// Run executes the saga against s. Cancellation is observed between steps
// only; compensations run detached from ctx so they are never cut short.
func (sg *Saga) Run(ctx context.Context, s store.Store) error {
	completed := make([]Step, 0, len(sg.Steps))
	var failure error
	for _, step := range sg.Steps {
		if err := ctx.Err(); err != nil {
			failure = types.Upstream(sg.Op, fmt.Errorf("abandoned before %s: %w", step.Name, err))
			break
		}
		if err := step.Do(ctx, s); err != nil {
			failure = err
			break
		}
		completed = append(completed, step)
	}
	if failure == nil {
		return nil
	}
	return sg.compensate(context.WithoutCancel(ctx), s, completed, failure)
}

func (sg *Saga) compensate(ctx context.Context, s store.Store, completed []Step, cause error) error {
	var (
		undoErrs []error
		orphans  []string
	)
	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if step.Undo == nil {
			continue
		}
		if err := step.Undo(ctx, s); err != nil {
			log.Printf("%s: compensation %s failed: %v", sg.Op, step.Name, err)
			undoErrs = append(undoErrs, fmt.Errorf("%s: %w", step.Name, err))
			if step.Refs != nil {
				orphans = append(orphans, step.Refs()...)
			}
		}
	}
	if len(undoErrs) > 0 {
		return types.Conflict(sg.Op, errors.Join(append([]error{cause}, undoErrs...)...), orphans...)
	}
	return cause
}

// execute applies a plan in the engine's mode
func (e *Engine) execute(ctx context.Context, op string, plan Plan) error {
	if e.mode == ModeTransaction {
		return e.store.Transaction(ctx, func(tx store.Store) error {
			steps, err := plan(ctx, tx)
			if err != nil {
				return err
			}
			// The unit rolls back as a whole, so the steps are not compensated
			for _, step := range steps {
				if err := ctx.Err(); err != nil {
					return types.Upstream(op, fmt.Errorf("abandoned before %s: %w", step.Name, err))
				}
				if err := step.Do(ctx, tx); err != nil {
					return err
				}
			}
			return nil
		})
	}

	steps, err := plan(ctx, e.store)
	if err != nil {
		return err
	}
	saga := &Saga{Op: op, Steps: steps}
	return saga.Run(ctx, e.store)
}
