package dispatcher

import (
	"github.com/mindburn-labs/turnctl/pkg/contracts"
)

// resolveSession returns the session to operate on for this turn: a
// freshly seeded state if current is nil, or current itself otherwise.
// If the caller's agentId disagrees with the session's established
// agentId, the mismatch is logged but never rejected — a session is
// bound to its runSessionId, and a second agent taking over an existing
// run (handoff, retry with a new agent instance) is a normal operational
// event, not an attack to defend against at this layer. This resolves
// the question of how strictly agentId should be enforced once a session
// already exists.
func (c *Controller) resolveSession(env contracts.Envelope, current *contracts.SessionState) *contracts.SessionState {
	if current == nil {
		now := c.Now()
		return &contracts.SessionState{
			RunSessionID:    env.RunSessionID,
			WorkID:          env.WorkID,
			AgentID:         env.AgentID,
			State:           contracts.StateUninitialized,
			RejectionCounts: map[string]int64{},
			ActionCounts:    map[string]int64{},
			CreatedAt:       now,
			UpdatedAt:       now,
		}
	}

	if current.AgentID != "" && env.AgentID != "" && current.AgentID != env.AgentID {
		c.Logger.Warn("agent id mismatch for existing session",
			"run_session_id", env.RunSessionID, "established_agent_id", current.AgentID, "request_agent_id", env.AgentID)
	}

	return current
}
