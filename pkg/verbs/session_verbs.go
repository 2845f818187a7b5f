package verbs

import (
	"context"

	"github.com/mindburn-labs/turnctl/pkg/capabilities"
	"github.com/mindburn-labs/turnctl/pkg/contracts"
)

func stateOverride(s contracts.RunState) *contracts.RunState { return &s }

// handleInitializeWork is the only verb reachable from UNINITIALIZED. It
// seeds the session's original prompt and worktree root and transitions
// to PLANNING.
func handleInitializeWork(ctx context.Context, d *Deps, sess *contracts.SessionState, args map[string]interface{}) (contracts.VerbResult, error) {
	sess.OriginalPrompt = argString(args, "original_prompt")
	sess.WorktreeRoot = argString(args, "worktree_root")

	empty, err := d.Pack.Build("pack:"+sess.RunSessionID, nil)
	if err != nil {
		return contracts.VerbResult{}, err
	}
	sess.ContextPack = empty

	return contracts.VerbResult{
		Result:        map[string]interface{}{"worktree_root": sess.WorktreeRoot},
		StateOverride: stateOverride(contracts.StatePlanning),
	}, nil
}

// handleListAvailableVerbs reports the verbs reachable from the
// session's current state plus the known codemod catalog ids.
func handleListAvailableVerbs(ctx context.Context, d *Deps, sess *contracts.SessionState, args map[string]interface{}) (contracts.VerbResult, error) {
	var codemodIDs []string
	if d.Codemods != nil {
		for _, cm := range d.Codemods.List() {
			codemodIDs = append(codemodIDs, cm.ID)
		}
	}
	return contracts.VerbResult{
		Result: map[string]interface{}{
			"available_verbs": capabilities.AllowedList(sess.State),
			"codemods":        codemodIDs,
		},
	}, nil
}

// handleGetOriginalPrompt returns the prompt the session was initialized
// with, unmodified.
func handleGetOriginalPrompt(ctx context.Context, d *Deps, sess *contracts.SessionState, args map[string]interface{}) (contracts.VerbResult, error) {
	return contracts.VerbResult{Result: map[string]interface{}{"original_prompt": sess.OriginalPrompt}}, nil
}

// handleSignalTaskComplete accepts task completion only once every node
// in the accepted plan graph has been marked done; otherwise it denies
// with WORK_INCOMPLETE and lists the remaining nodes.
func handleSignalTaskComplete(ctx context.Context, d *Deps, sess *contracts.SessionState, args map[string]interface{}) (contracts.VerbResult, error) {
	if sess.PlanGraphProgress == nil || sess.PlanGraph == nil {
		return contracts.VerbResult{
			DenyReasons: []contracts.DenyReason{{
				Code:    contracts.RejectWorkIncomplete,
				Message: "no accepted plan graph to complete",
			}},
		}, nil
	}

	allIDs := make([]string, 0, len(sess.PlanGraph.Nodes))
	for _, n := range sess.PlanGraph.Nodes {
		allIDs = append(allIDs, n.NodeID)
	}
	remaining := sess.PlanGraphProgress.RemainingNodeIDs(allIDs)
	if len(remaining) > 0 {
		return contracts.VerbResult{
			DenyReasons: []contracts.DenyReason{{
				Code:    contracts.RejectWorkIncomplete,
				Message: "plan graph has unexecuted nodes",
			}},
			Result: map[string]interface{}{"remaining_node_ids": remaining},
		}, nil
	}

	return contracts.VerbResult{
		Result:        map[string]interface{}{"summary": argString(args, "summary")},
		StateOverride: stateOverride(contracts.StateCompleted),
	}, nil
}
