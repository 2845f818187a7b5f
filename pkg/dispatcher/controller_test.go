package dispatcher

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mindburn-labs/turnctl/pkg/config"
	"github.com/mindburn-labs/turnctl/pkg/contracts"
	"github.com/mindburn-labs/turnctl/pkg/observability"
	"github.com/mindburn-labs/turnctl/pkg/session"
	"github.com/mindburn-labs/turnctl/pkg/signing"
	"github.com/mindburn-labs/turnctl/pkg/store/sessionstore"
	"github.com/mindburn-labs/turnctl/pkg/verbs"
)

func testController(t *testing.T, registry verbs.Registry, maxTokens, thresholdTokens int64) *Controller {
	t.Helper()
	obs, err := observability.New(context.Background(), &observability.Config{Enabled: false})
	if err != nil {
		t.Fatal(err)
	}
	signer, err := signing.NewSigner([]byte("test-secret"), "")
	if err != nil {
		t.Fatal(err)
	}
	c := New(
		session.NewManager(sessionstore.NewMemoryStore()),
		registry,
		&verbs.Deps{},
		config.DefaultPolicyProfile(),
		obs,
		signer,
		maxTokens, thresholdTokens,
	)
	c.Now = func() time.Time { return time.Unix(0, 0).UTC() }
	return c
}

func okHandler(result interface{}) verbs.Handler {
	return func(ctx context.Context, d *verbs.Deps, sess *contracts.SessionState, args map[string]interface{}) (contracts.VerbResult, error) {
		return contracts.VerbResult{Result: result}, nil
	}
}

func TestHandle_DeniesMutationVerbBeforePlanAcceptedWithPlanScopeViolation(t *testing.T) {
	registry := verbs.Registry{contracts.VerbApplyCodePatch: okHandler("should not run")}
	c := testController(t, registry, 1000, 1000)

	resp, err := c.Handle(context.Background(), contracts.Envelope{RunSessionID: "s1"}, contracts.VerbApplyCodePatch, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.DenyReasons) != 1 || resp.DenyReasons[0].Code != contracts.RejectPlanScopeViolation {
		t.Fatalf("expected PLAN_SCOPE_VIOLATION, got %+v", resp.DenyReasons)
	}
	if !strings.Contains(resp.DenyReasons[0].Message, "submit_execution_plan") {
		t.Fatalf("expected deny message to reference submit_execution_plan, got %q", resp.DenyReasons[0].Message)
	}
}

func TestHandle_DeniesNonMutationVerbNotPermittedInState(t *testing.T) {
	registry := verbs.Registry{contracts.VerbSignalTaskComplete: okHandler("should not run")}
	c := testController(t, registry, 1000, 1000)

	resp, err := c.Handle(context.Background(), contracts.Envelope{RunSessionID: "s1"}, contracts.VerbSignalTaskComplete, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.DenyReasons) != 1 || resp.DenyReasons[0].Code != contracts.RejectVerbNotPermitted {
		t.Fatalf("expected VERB_NOT_PERMITTED_IN_STATE, got %+v", resp.DenyReasons)
	}
}

func TestHandle_InitializeWorkTransitionsFromUninitialized(t *testing.T) {
	registry := verbs.Registry{
		contracts.VerbInitializeWork: func(ctx context.Context, d *verbs.Deps, sess *contracts.SessionState, args map[string]interface{}) (contracts.VerbResult, error) {
			next := contracts.StatePlanning
			return contracts.VerbResult{StateOverride: &next}, nil
		},
	}
	c := testController(t, registry, 1000, 1000)

	resp, err := c.Handle(context.Background(), contracts.Envelope{RunSessionID: "s1"}, contracts.VerbInitializeWork, map[string]interface{}{
		"original_prompt": "do it", "worktree_root": "/tmp/work",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.DenyReasons) != 0 {
		t.Fatalf("expected no deny reasons, got %+v", resp.DenyReasons)
	}
	if resp.State != contracts.StatePlanning {
		t.Fatalf("expected PLANNING, got %s", resp.State)
	}
	if resp.TraceRef == "" {
		t.Fatal("expected a non-empty trace ref")
	}
	if resp.TraceReceipt == "" {
		t.Fatal("expected a signed trace receipt when a signer is configured")
	}
}

func TestHandle_BudgetExceededBlocksNonOrientationVerbs(t *testing.T) {
	toPlanning := contracts.StatePlanning
	registry := verbs.Registry{
		contracts.VerbInitializeWork:     okHandler(nil),
		contracts.VerbListScopedFiles:    okHandler("files"),
		contracts.VerbListAvailableVerbs: okHandler("verbs"),
	}
	registry[contracts.VerbInitializeWork] = func(ctx context.Context, d *verbs.Deps, sess *contracts.SessionState, args map[string]interface{}) (contracts.VerbResult, error) {
		return contracts.VerbResult{StateOverride: &toPlanning}, nil
	}
	c := testController(t, registry, 10, 5)
	c.Profile.VerbCosts = map[contracts.Verb]int64{
		contracts.VerbInitializeWork:     6,
		contracts.VerbListScopedFiles:    1,
		contracts.VerbListAvailableVerbs: 1,
	}

	ctx := context.Background()
	env := contracts.Envelope{RunSessionID: "s1"}

	initResp, err := c.Handle(ctx, env, contracts.VerbInitializeWork, map[string]interface{}{
		"original_prompt": "do it", "worktree_root": "/tmp/work",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !initResp.BudgetStatus.Blocked {
		t.Fatalf("expected budget blocked after spending 6/5 threshold, got %+v", initResp.BudgetStatus)
	}

	blockedResp, err := c.Handle(ctx, env, contracts.VerbListScopedFiles, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(blockedResp.DenyReasons) != 1 || blockedResp.DenyReasons[0].Code != contracts.RejectBudgetExceeded {
		t.Fatalf("expected BUDGET_EXCEEDED, got %+v", blockedResp.DenyReasons)
	}
	if blockedResp.State != contracts.StateBlockedBudget {
		t.Fatalf("expected state forced to BLOCKED_BUDGET, got %s", blockedResp.State)
	}

	orientationResp, err := c.Handle(ctx, env, contracts.VerbListAvailableVerbs, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(orientationResp.DenyReasons) != 0 {
		t.Fatalf("expected list_available_verbs to stay reachable while budget-blocked, got %+v", orientationResp.DenyReasons)
	}
}

func TestHandle_HandlerErrorBecomesOpaquePolicyViolation(t *testing.T) {
	registry := verbs.Registry{
		contracts.VerbInitializeWork: func(ctx context.Context, d *verbs.Deps, sess *contracts.SessionState, args map[string]interface{}) (contracts.VerbResult, error) {
			return contracts.VerbResult{}, context.DeadlineExceeded
		},
	}
	c := testController(t, registry, 1000, 1000)

	resp, err := c.Handle(context.Background(), contracts.Envelope{RunSessionID: "s1"}, contracts.VerbInitializeWork, map[string]interface{}{
		"original_prompt": "do it", "worktree_root": "/tmp/work",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.DenyReasons) != 1 || resp.DenyReasons[0].Code != contracts.RejectPlanPolicyViolation {
		t.Fatalf("expected a single opaque PLAN_POLICY_VIOLATION deny reason, got %+v", resp.DenyReasons)
	}
}

func TestHandle_AgentIDMismatchIsLoggedNotRejected(t *testing.T) {
	toPlanning := contracts.StatePlanning
	registry := verbs.Registry{
		contracts.VerbInitializeWork: func(ctx context.Context, d *verbs.Deps, sess *contracts.SessionState, args map[string]interface{}) (contracts.VerbResult, error) {
			return contracts.VerbResult{StateOverride: &toPlanning}, nil
		},
		contracts.VerbListAvailableVerbs: okHandler("verbs"),
	}
	c := testController(t, registry, 1000, 1000)
	ctx := context.Background()

	if _, err := c.Handle(ctx, contracts.Envelope{RunSessionID: "s1", AgentID: "agent-a"}, contracts.VerbInitializeWork, map[string]interface{}{
		"original_prompt": "do it", "worktree_root": "/tmp/work",
	}); err != nil {
		t.Fatal(err)
	}

	resp, err := c.Handle(ctx, contracts.Envelope{RunSessionID: "s1", AgentID: "agent-b"}, contracts.VerbListAvailableVerbs, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.DenyReasons) != 0 {
		t.Fatalf("expected agent mismatch to be logged, not rejected, got %+v", resp.DenyReasons)
	}
}
