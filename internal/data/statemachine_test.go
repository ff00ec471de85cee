package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_StateMachine_TransitionTo(t *testing.T) {
	const (
		draft     = State("DRAFT")
		submitted = State("SUBMITTED")
		approved  = State("APPROVED")
		rejected  = State("REJECTED")
	)
	transitions := []StateTransition{
		{From: draft, To: submitted},
		{From: submitted, To: approved},
		{From: submitted, To: rejected},
		{From: rejected, To: draft},
	}

	t.Run("walks an allowed path", func(t *testing.T) {
		sm := NewStateMachine(draft, transitions)

		require.NoError(t, sm.TransitionTo(submitted))
		require.NoError(t, sm.TransitionTo(rejected))
		require.NoError(t, sm.TransitionTo(draft))
		assert.Equal(t, draft, sm.CurrentState)
	})

	t.Run("rejects a transition outside the DAG", func(t *testing.T) {
		sm := NewStateMachine(draft, transitions)

		err := sm.TransitionTo(approved)
		require.Error(t, err)
		assert.EqualError(t, err, "cannot transition from DRAFT to APPROVED")
		assert.Equal(t, draft, sm.CurrentState, "current state must not move on a rejected transition")

		var transitionErr *TransitionError
		require.ErrorAs(t, err, &transitionErr)
		assert.Equal(t, draft, transitionErr.From)
		assert.Equal(t, approved, transitionErr.To)
	})

	t.Run("terminal state has no outgoing transitions", func(t *testing.T) {
		sm := NewStateMachine(approved, transitions)

		assert.False(t, sm.CanTransitionTo(draft))
		assert.False(t, sm.CanTransitionTo(submitted))
		assert.Error(t, sm.TransitionTo(rejected))
	})

	t.Run("self transition is not implicit", func(t *testing.T) {
		sm := NewStateMachine(submitted, transitions)
		assert.False(t, sm.CanTransitionTo(submitted))
	})
}
