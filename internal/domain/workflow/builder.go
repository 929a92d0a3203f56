package workflow

import (
	"context"
	"fmt"

	"github.com/dinhan2610/EVM-DMS-sub001/internal/domain/status"
)

// GuardFunc is a function that evaluates whether a transition should be allowed
type GuardFunc func(ctx context.Context) bool

// StateMachineBuilder builds a configured state machine
type StateMachineBuilder interface {
	// Configure returns a state configuration for the given status
	Configure(s status.Internal) StateConfiguration

	// Build creates a new state machine instance with the given initial status
	Build(initial status.Internal) StateMachine
}

// StateConfiguration configures transitions for a specific status
type StateConfiguration interface {
	// Permit allows an action to transition to the target status
	Permit(action Action, to status.Internal) StateConfiguration

	// PermitIf allows an action to transition to the target status if the guard passes
	PermitIf(action Action, to status.Internal, guard GuardFunc) StateConfiguration
}

// transition represents a state transition with optional guard
type transition struct {
	to    status.Internal
	guard GuardFunc
}

type stateConfig struct {
	from        status.Internal
	transitions map[Action][]transition
}

type stateMachineBuilder struct {
	configurations map[status.Internal]*stateConfig
}

type stateMachine struct {
	current        status.Internal
	configurations map[status.Internal]*stateConfig
}

// NewBuilder creates a new state machine builder
func NewBuilder() StateMachineBuilder {
	return &stateMachineBuilder{
		configurations: make(map[status.Internal]*stateConfig),
	}
}

// Configure returns a state configuration for the given status
func (b *stateMachineBuilder) Configure(s status.Internal) StateConfiguration {
	if !s.IsValid() {
		panic(fmt.Sprintf("invalid status: %d", s))
	}

	config, exists := b.configurations[s]
	if !exists {
		config = &stateConfig{
			from:        s,
			transitions: make(map[Action][]transition),
		}
		b.configurations[s] = config
	}

	return config
}

// Build creates a new state machine instance with the given initial status
func (b *stateMachineBuilder) Build(initial status.Internal) StateMachine {
	if !initial.IsValid() {
		panic(fmt.Sprintf("invalid initial status: %d", initial))
	}

	// Deep copy configurations so a built machine is isolated from the builder
	configsCopy := make(map[status.Internal]*stateConfig)
	for s, config := range b.configurations {
		transitionsCopy := make(map[Action][]transition)
		for action, transitions := range config.transitions {
			transitionsCopy[action] = append([]transition{}, transitions...)
		}
		configsCopy[s] = &stateConfig{
			from:        s,
			transitions: transitionsCopy,
		}
	}

	return &stateMachine{
		current:        initial,
		configurations: configsCopy,
	}
}

// Permit allows an action to transition to the target status
func (c *stateConfig) Permit(action Action, to status.Internal) StateConfiguration {
	return c.PermitIf(action, to, nil)
}

// PermitIf allows an action to transition to the target status if the guard passes
func (c *stateConfig) PermitIf(action Action, to status.Internal, guard GuardFunc) StateConfiguration {
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target status: %d", to))
	}

	c.transitions[action] = append(c.transitions[action], transition{
		to:    to,
		guard: guard,
	})

	return c
}

// State returns the current internal status
func (m *stateMachine) State() status.Internal {
	return m.current
}

// CanFire returns true if the action is permitted in the current status.
// Guards are not evaluated here; CanFire answers "is this action configured",
// Fire answers "is it allowed right now".
func (m *stateMachine) CanFire(action Action) bool {
	config, exists := m.configurations[m.current]
	if !exists {
		return false
	}

	transitions, exists := config.transitions[action]
	return exists && len(transitions) > 0
}

// Fire attempts to execute the action, transitioning to the new status if allowed
func (m *stateMachine) Fire(ctx context.Context, action Action) error {
	config, exists := m.configurations[m.current]
	if !exists {
		return fmt.Errorf("%w: cannot fire %s from %s (no configuration)", ErrInvalidTransition, action, m.current)
	}

	transitions, exists := config.transitions[action]
	if !exists || len(transitions) == 0 {
		return fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, action, m.current)
	}

	// Try each transition in order until one succeeds
	for _, t := range transitions {
		if t.guard == nil || t.guard(ctx) {
			m.current = t.to
			return nil
		}
	}

	return fmt.Errorf("%w: %s from %s", ErrGuardFailed, action, m.current)
}

// PermittedActions returns all actions that can be fired in the current status
func (m *stateMachine) PermittedActions() []Action {
	config, exists := m.configurations[m.current]
	if !exists {
		return []Action{}
	}

	actions := make([]Action, 0, len(config.transitions))
	for action := range config.transitions {
		actions = append(actions, action)
	}

	return actions
}
