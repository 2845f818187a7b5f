package dispatcher

import (
	"github.com/mindburn-labs/turnctl/pkg/budget"
	"github.com/mindburn-labs/turnctl/pkg/canonicalize"
	"github.com/mindburn-labs/turnctl/pkg/capabilities"
	"github.com/mindburn-labs/turnctl/pkg/contracts"
	"github.com/mindburn-labs/turnctl/pkg/verbs"
)

// suggestedActionFor maps a rejection code to the verb most likely to
// resolve it, so a denied response carries a concrete next step instead
// of leaving the planning agent to guess (spec.md §4.7).
var suggestedActionFor = map[contracts.RejectionCode]contracts.SuggestedAction{
	contracts.RejectPlanEvidenceInsufficient: {Verb: contracts.VerbRequestEvidenceGuidance, Reason: "gather the missing evidence sources before resubmitting"},
	contracts.RejectPackInsufficient:         {Verb: contracts.VerbTraceSymbolGraph, Reason: "resolve the missing proof-chain anchor"},
	contracts.RejectPackScopeViolation:       {Verb: contracts.VerbListDirectoryContents, Reason: "pull the target file into the context pack before citing or patching it"},
	contracts.RejectPlanMigrationRuleMissing: {Verb: contracts.VerbSearchCodebaseText, Reason: "find and cite the applicable migration: rule"},
	contracts.RejectBudgetExceeded:           {Verb: contracts.VerbSignalTaskComplete, Reason: "session token budget is exhausted; wrap up or escalate"},
}

// synthesizeSuggestedAction picks the first deny reason with a known
// remediation, in reasons order, so the result is deterministic.
func synthesizeSuggestedAction(reasons []contracts.DenyReason) *contracts.SuggestedAction {
	for _, r := range reasons {
		if action, ok := suggestedActionFor[r.Code]; ok {
			a := action
			return &a
		}
	}
	return nil
}

// traceHashView is the subset of a turn's outcome that participates in
// the response's content-addressed traceRef.
type traceHashView struct {
	Verb         string                 `json:"verb"`
	RunSessionID string                 `json:"run_session_id"`
	State        string                 `json:"state"`
	DenyCodes    []string               `json:"deny_codes"`
	Result       interface{}            `json:"result,omitempty"`
}

func (c *Controller) buildResponse(sess *contracts.SessionState, verb contracts.Verb, outcome *turnOutcome) (*contracts.Response, error) {
	denyCodes := make([]string, len(outcome.denyReasons))
	for i, dr := range outcome.denyReasons {
		denyCodes[i] = string(dr.Code)
	}

	traceRef, err := canonicalize.CanonicalHash(traceHashView{
		Verb:         string(verb),
		RunSessionID: sess.RunSessionID,
		State:        string(sess.State),
		DenyCodes:    denyCodes,
		Result:       outcome.result,
	})
	if err != nil {
		return nil, err
	}

	var traceReceipt string
	if c.Signer != nil {
		token, err := c.Signer.IssueReceipt(traceRef, sess.RunSessionID, string(sess.State), c.ReceiptTTL)
		if err != nil {
			c.Logger.Error("failed to sign trace receipt", "error", err)
		} else {
			traceReceipt = token
		}
	}

	var knowledgeStrategy string
	if sess.PlanGraph != nil {
		knowledgeStrategy = sess.PlanGraph.KnowledgeStrategyID
	}

	return &contracts.Response{
		RunSessionID:      sess.RunSessionID,
		WorkID:            sess.WorkID,
		AgentID:           sess.AgentID,
		State:             sess.State,
		Capabilities:      capabilities.AllowedList(sess.State),
		DenyReasons:       outcome.denyReasons,
		TraceRef:          traceRef,
		TraceReceipt:      traceReceipt,
		SchemaVersion:     c.SchemaVersion,
		BudgetStatus:      budget.Check(sess.UsedTokens, c.MaxTokens, c.ThresholdTokens),
		Scope:             contracts.ScopeInfo{WorktreeRoot: sess.WorktreeRoot},
		KnowledgeStrategy: knowledgeStrategy,
		VerbDescriptions:  verbs.Descriptions(),
		Result:            outcome.result,
		SuggestedAction:   synthesizeSuggestedAction(outcome.denyReasons),
	}, nil
}
