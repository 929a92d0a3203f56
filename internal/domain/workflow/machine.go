package workflow

import (
	"context"

	"github.com/dinhan2610/EVM-DMS-sub001/internal/domain/status"
)

// StateMachine tracks an invoice's internal status and validates transitions
type StateMachine interface {
	// State returns the current internal status
	State() status.Internal

	// CanFire returns true if the action is permitted in the current status
	CanFire(action Action) bool

	// Fire attempts to execute the action, transitioning to the new status if allowed
	Fire(ctx context.Context, action Action) error

	// PermittedActions returns all actions that can be fired in the current status
	PermittedActions() []Action
}
