package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/discharge-planner/internal/domain/entity"
)

// Request is the input handed to guards and effects. Case is the working copy
// that effects mutate; the stored case is never passed in.
type Request struct {
	Case    *entity.Case
	Action  Action
	Payload any
	Actor   entity.Actor
	At      time.Time
}

// GuardFunc evaluates whether a transition may proceed
type GuardFunc func(ctx context.Context, req *Request) error

// EffectFunc mutates the working copy as part of a transition
type EffectFunc func(ctx context.Context, req *Request) error

// DestinationFunc resolves a target state from case data at fire time
type DestinationFunc func(c *entity.Case) State

// Builder builds an immutable transition table
type Builder interface {
	// Configure returns a state configuration for the given state
	Configure(state State) StateConfiguration

	// Build returns a table that later Configure calls cannot change
	Build() *Table
}

// StateConfiguration configures transitions for a specific state
type StateConfiguration interface {
	// Permit allows an action to transition to the target state
	Permit(action Action, toState State) StateConfiguration

	// PermitIf allows an action to transition to the target state if the guard passes
	PermitIf(action Action, toState State, guard GuardFunc, effects ...EffectFunc) StateConfiguration

	// PermitDynamic allows an action whose target is resolved from the case
	PermitDynamic(action Action, dest DestinationFunc, guard GuardFunc, effects ...EffectFunc) StateConfiguration

	// PermitReentry allows an action that stays in the current state
	PermitReentry(action Action, guard GuardFunc, effects ...EffectFunc) StateConfiguration

	// Block rejects an action from this state with a dedicated reason
	Block(action Action, reason string) StateConfiguration
}

// Transition is one permitted action out of a state
type Transition struct {
	Action  Action
	From    State
	To      State
	Guard   GuardFunc
	Effects []EffectFunc
	dest    DestinationFunc
}

// Destination returns the target state for c. It must be resolved before effects run.
func (t Transition) Destination(c *entity.Case) State {
	if t.dest != nil {
		return t.dest(c)
	}
	return t.To
}

type stateConfig struct {
	fromState   State
	transitions map[Action]Transition
	order       []Action
	blocked     map[Action]string
}

type builder struct {
	configurations map[State]*stateConfig
}

// Table maps each state to its permitted actions
type Table struct {
	configurations map[State]*stateConfig
}

// NewBuilder creates a new transition table builder
func NewBuilder() Builder {
	return &builder{
		configurations: make(map[State]*stateConfig),
	}
}

// Configure returns a state configuration for the given state
func (b *builder) Configure(state State) StateConfiguration {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", state))
	}

	config, exists := b.configurations[state]
	if !exists {
		config = &stateConfig{
			fromState:   state,
			transitions: make(map[Action]Transition),
			blocked:     make(map[Action]string),
		}
		b.configurations[state] = config
	}

	return config
}

// Build deep-copies the configuration into a Table
func (b *builder) Build() *Table {
	configsCopy := make(map[State]*stateConfig, len(b.configurations))
	for state, config := range b.configurations {
		transitionsCopy := make(map[Action]Transition, len(config.transitions))
		for action, t := range config.transitions {
			t.Effects = append([]EffectFunc(nil), t.Effects...)
			transitionsCopy[action] = t
		}
		blockedCopy := make(map[Action]string, len(config.blocked))
		for action, reason := range config.blocked {
			blockedCopy[action] = reason
		}
		configsCopy[state] = &stateConfig{
			fromState:   state,
			transitions: transitionsCopy,
			order:       append([]Action(nil), config.order...),
			blocked:     blockedCopy,
		}
	}

	return &Table{configurations: configsCopy}
}

// Permit allows an action to transition to the target state
func (c *stateConfig) Permit(action Action, toState State) StateConfiguration {
	return c.PermitIf(action, toState, nil)
}

// PermitIf allows an action to transition to the target state if the guard passes
func (c *stateConfig) PermitIf(action Action, toState State, guard GuardFunc, effects ...EffectFunc) StateConfiguration {
	if !toState.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", toState))
	}
	c.add(Transition{Action: action, From: c.fromState, To: toState, Guard: guard, Effects: effects})
	return c
}

// PermitDynamic allows an action whose target is resolved from the case
func (c *stateConfig) PermitDynamic(action Action, dest DestinationFunc, guard GuardFunc, effects ...EffectFunc) StateConfiguration {
	if dest == nil {
		panic(fmt.Sprintf("nil destination for %s from %s", action, c.fromState))
	}
	c.add(Transition{Action: action, From: c.fromState, Guard: guard, Effects: effects, dest: dest})
	return c
}

// PermitReentry allows an action that stays in the current state
func (c *stateConfig) PermitReentry(action Action, guard GuardFunc, effects ...EffectFunc) StateConfiguration {
	c.add(Transition{Action: action, From: c.fromState, To: c.fromState, Guard: guard, Effects: effects})
	return c
}

// Block rejects an action from this state with a dedicated reason
func (c *stateConfig) Block(action Action, reason string) StateConfiguration {
	if _, exists := c.transitions[action]; exists {
		panic(fmt.Sprintf("action %s from %s is both permitted and blocked", action, c.fromState))
	}
	c.blocked[action] = reason
	return c
}

func (c *stateConfig) add(t Transition) {
	if !t.Action.IsValid() {
		panic(fmt.Sprintf("invalid action: %s", t.Action))
	}
	if _, exists := c.transitions[t.Action]; exists {
		panic(fmt.Sprintf("action %s already configured for %s", t.Action, c.fromState))
	}
	if _, blocked := c.blocked[t.Action]; blocked {
		panic(fmt.Sprintf("action %s from %s is both permitted and blocked", t.Action, c.fromState))
	}
	c.transitions[t.Action] = t
	c.order = append(c.order, t.Action)
}

// Lookup returns the transition for action out of state
func (t *Table) Lookup(state State, action Action) (Transition, bool) {
	config, exists := t.configurations[state]
	if !exists {
		return Transition{}, false
	}
	tr, exists := config.transitions[action]
	return tr, exists
}

// Blocked returns the dedicated rejection reason for action out of state, if any
func (t *Table) Blocked(state State, action Action) (string, bool) {
	config, exists := t.configurations[state]
	if !exists {
		return "", false
	}
	reason, blocked := config.blocked[action]
	return reason, blocked
}

// CanFire returns true if the action is in the state's whitelist
func (t *Table) CanFire(state State, action Action) bool {
	_, ok := t.Lookup(state, action)
	return ok
}

// Permitted returns the state's whitelist in configuration order
func (t *Table) Permitted(state State) []Action {
	config, exists := t.configurations[state]
	if !exists {
		return []Action{}
	}
	return append([]Action{}, config.order...)
}
