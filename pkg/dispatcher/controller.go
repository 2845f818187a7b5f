// Package dispatcher implements the Turn Controller: the single
// handle(verb, args, envelope) state machine every verb passes through
// (spec.md §4.1-§4.2, §5).
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mindburn-labs/turnctl/pkg/budget"
	"github.com/mindburn-labs/turnctl/pkg/capabilities"
	"github.com/mindburn-labs/turnctl/pkg/config"
	"github.com/mindburn-labs/turnctl/pkg/contracts"
	"github.com/mindburn-labs/turnctl/pkg/observability"
	"github.com/mindburn-labs/turnctl/pkg/session"
	"github.com/mindburn-labs/turnctl/pkg/signing"
	"github.com/mindburn-labs/turnctl/pkg/verbs"
)

// alwaysAllowedUnderBudget is the small set of verbs a blocked session may
// still invoke: orientation verbs cost almost nothing and a budget-locked
// session still needs a way to discover that it's locked.
var alwaysAllowedUnderBudget = map[contracts.Verb]bool{
	contracts.VerbListAvailableVerbs: true,
	contracts.VerbGetOriginalPrompt:  true,
}

// Controller wires together every service the dispatch loop needs.
type Controller struct {
	Sessions *session.Manager
	Verbs    verbs.Registry
	Deps     *verbs.Deps
	Profile  *config.PolicyProfile
	Obs      *observability.Provider
	Signer   *signing.Signer

	MaxTokens       int64
	ThresholdTokens int64
	ReceiptTTL      time.Duration
	SchemaVersion   string

	Now    func() time.Time
	Logger *slog.Logger
}

// New constructs a Controller with sane defaults for any zero-valued
// optional field.
func New(sessions *session.Manager, registry verbs.Registry, deps *verbs.Deps, profile *config.PolicyProfile, obs *observability.Provider, signer *signing.Signer, maxTokens, thresholdTokens int64) *Controller {
	return &Controller{
		Sessions:        sessions,
		Verbs:           registry,
		Deps:            deps,
		Profile:         profile,
		Obs:             obs,
		Signer:          signer,
		MaxTokens:       maxTokens,
		ThresholdTokens: thresholdTokens,
		ReceiptTTL:      24 * time.Hour,
		SchemaVersion:   "1.0.0",
		Now:             time.Now,
		Logger:          slog.Default().With("component", "dispatcher"),
	}
}

// turnOutcome accumulates what happened inside one lease-held turn, since
// the lease callback can only return a *contracts.SessionState.
type turnOutcome struct {
	result      interface{}
	denyReasons []contracts.DenyReason
	finalState  contracts.RunState
}

// Handle is the single entry point every verb invocation passes through.
func (c *Controller) Handle(ctx context.Context, env contracts.Envelope, verb contracts.Verb, rawArgs map[string]interface{}) (*contracts.Response, error) {
	start := c.Now()
	ctx, span := c.Obs.StartHandleSpan(ctx, string(verb), env.RunSessionID)
	defer span.End()

	outcome := &turnOutcome{}

	updated, err := c.Sessions.WithLease(ctx, env.RunSessionID, func(ctx context.Context, current *contracts.SessionState) (*contracts.SessionState, error) {
		sess := c.resolveSession(env, current)
		c.runTurn(ctx, sess, verb, rawArgs, outcome)
		sess.UpdatedAt = c.Now()
		return sess, nil
	})
	if err != nil {
		return nil, err
	}

	duration := c.Now().Sub(start)
	c.Obs.RecordVerb(ctx, string(verb), duration)
	if len(outcome.denyReasons) > 0 {
		codes := make([]string, len(outcome.denyReasons))
		for i, dr := range outcome.denyReasons {
			codes[i] = string(dr.Code)
		}
		c.Obs.RecordDenyReasons(ctx, string(verb), codes)
	}
	c.Obs.RecordBudgetUsage(ctx, updated.UsedTokens)

	return c.buildResponse(updated, verb, outcome)
}

// runTurn performs the ordered gate sequence — capability check, argument
// validation, budget check, dispatch — while the session's lease is
// held. It returns nothing: every rejection, including a handler's Go
// error, is recorded as a deny reason on outcome.
func (c *Controller) runTurn(ctx context.Context, sess *contracts.SessionState, verb contracts.Verb, rawArgs map[string]interface{}, outcome *turnOutcome) {
	deny := func(reasons ...contracts.DenyReason) {
		outcome.denyReasons = append(outcome.denyReasons, reasons...)
		outcome.finalState = sess.State
	}

	if !capabilities.Permits(sess.State, verb) {
		if contracts.MutationVerbs[verb] && sess.State != contracts.StatePlanAccepted {
			deny(contracts.DenyReason{
				Code:    contracts.RejectPlanScopeViolation,
				Message: fmt.Sprintf("%s requires an accepted plan; call submit_execution_plan first", verb),
			})
			return
		}
		deny(contracts.DenyReason{
			Code:    contracts.RejectVerbNotPermitted,
			Message: fmt.Sprintf("%s is not permitted in state %s", verb, sess.State),
		})
		return
	}

	if argDeny := verbs.ValidateArgs(verb, rawArgs); argDeny != nil {
		deny(*argDeny)
		return
	}

	status := budget.Check(sess.UsedTokens, c.MaxTokens, c.ThresholdTokens)
	if status.Blocked && !alwaysAllowedUnderBudget[verb] {
		sess.State = contracts.StateBlockedBudget
		deny(contracts.DenyReason{Code: contracts.RejectBudgetExceeded, Message: "session token budget exceeded"})
		return
	}

	handler, ok := c.Verbs[verb]
	if !ok {
		deny(contracts.DenyReason{Code: contracts.RejectVerbNotPermitted, Message: fmt.Sprintf("no handler registered for %s", verb)})
		return
	}

	vr, err := handler(ctx, c.Deps, sess, rawArgs)
	if err != nil {
		// A handler error is a controller-level failure; surface it as a
		// single opaque deny reason rather than panicking the turn, since
		// handle() must always return a response envelope (spec.md §4.7).
		c.Logger.ErrorContext(ctx, "verb handler error", "verb", verb, "error", err)
		deny(contracts.DenyReason{Code: contracts.RejectPlanPolicyViolation, Message: fmt.Sprintf("internal error executing %s", verb)})
		return
	}

	outcome.result = vr.Result
	outcome.denyReasons = append(outcome.denyReasons, vr.DenyReasons...)

	if sess.RejectionCounts == nil {
		sess.RejectionCounts = map[string]int64{}
	}
	if sess.ActionCounts == nil {
		sess.ActionCounts = map[string]int64{}
	}
	sess.ActionCounts[string(verb)]++
	for _, dr := range vr.DenyReasons {
		sess.RejectionCounts[string(dr.Code)]++
	}
	sess.UsedTokens = budget.Charge(sess.UsedTokens, c.Profile, verb)

	if vr.StateOverride != nil {
		sess.State = *vr.StateOverride
	}
	outcome.finalState = sess.State
}
