// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agent

import (
	"fmt"
	"sync"
)

// StateMachine manages valid state transitions for the agent loop.
//
// The state machine enforces the following transition graph:
//
//	IDLE → WORKER            : Question received
//	WORKER → TOOLS           : Worker requested tool calls
//	WORKER → EVALUATOR       : Worker produced a direct answer
//	TOOLS → WORKER           : Tool results appended, continue reasoning
//	EVALUATOR → COMPLETE     : Answer normalized, run terminal
//	* → ERROR                : Any non-terminal state can fail
//
// The evaluator runs exactly once per run; COMPLETE and ERROR have no
// outgoing transitions.
//
// Thread Safety:
//
//	StateMachine is safe for concurrent use.
type StateMachine struct {
	mu sync.RWMutex

	// transitions maps (from, to) pairs that are valid.
	transitions map[AgentState]map[AgentState]bool
}

// NewStateMachine creates a new state machine with all valid transitions.
//
// Outputs:
//
//	*StateMachine - Configured state machine
func NewStateMachine() *StateMachine {
	sm := &StateMachine{
		transitions: make(map[AgentState]map[AgentState]bool),
	}

	// Initialize all states with empty transition maps
	for _, state := range AllStates() {
		sm.transitions[state] = make(map[AgentState]bool)
	}

	sm.addTransition(StateIdle, StateWorker)

	sm.addTransition(StateWorker, StateTools)
	sm.addTransition(StateWorker, StateEvaluator)

	sm.addTransition(StateTools, StateWorker)

	sm.addTransition(StateEvaluator, StateComplete)

	// Any non-terminal state can fail.
	sm.addTransition(StateIdle, StateError)
	sm.addTransition(StateWorker, StateError)
	sm.addTransition(StateTools, StateError)
	sm.addTransition(StateEvaluator, StateError)

	return sm
}

// addTransition registers a valid transition.
func (sm *StateMachine) addTransition(from, to AgentState) {
	sm.transitions[from][to] = true
}

// CanTransition checks if a transition from one state to another is valid.
//
// Inputs:
//
//	from - Current state
//	to - Target state
//
// Outputs:
//
//	bool - True if the transition is valid
//
// Thread Safety: This method is safe for concurrent use.
func (sm *StateMachine) CanTransition(from, to AgentState) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if toMap, ok := sm.transitions[from]; ok {
		return toMap[to]
	}
	return false
}

// Transition attempts to transition a conversation from its current state.
//
// Description:
//
//	Validates the transition and updates the conversation state if valid.
//	Returns an error if the transition is not allowed.
//
// Inputs:
//
//	conv - The conversation to transition
//	to - Target state
//
// Outputs:
//
//	error - ErrInvalidTransition if transition not allowed
//
// Thread Safety: This method is safe for concurrent use.
func (sm *StateMachine) Transition(conv *Conversation, to AgentState) error {
	from := conv.State()

	if !sm.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	conv.SetState(to)
	return nil
}

// ValidTransitionsFrom returns all valid transitions from a given state.
//
// Inputs:
//
//	from - The source state
//
// Outputs:
//
//	[]AgentState - All valid target states
//
// Thread Safety: This method is safe for concurrent use.
func (sm *StateMachine) ValidTransitionsFrom(from AgentState) []AgentState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	var result []AgentState
	if toMap, ok := sm.transitions[from]; ok {
		for state, valid := range toMap {
			if valid {
				result = append(result, state)
			}
		}
	}
	return result
}

// DefaultStateMachine is the shared state machine instance.
var DefaultStateMachine = NewStateMachine()
