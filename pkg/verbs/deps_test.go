package verbs

import (
	"context"
	"testing"
	"time"

	"github.com/mindburn-labs/turnctl/pkg/artifactstore"
	"github.com/mindburn-labs/turnctl/pkg/collision"
	"github.com/mindburn-labs/turnctl/pkg/config"
	"github.com/mindburn-labs/turnctl/pkg/connector"
	"github.com/mindburn-labs/turnctl/pkg/contracts"
	"github.com/mindburn-labs/turnctl/pkg/enforcement"
	"github.com/mindburn-labs/turnctl/pkg/graphclient"
	"github.com/mindburn-labs/turnctl/pkg/indexer"
	"github.com/mindburn-labs/turnctl/pkg/memory"
	"github.com/mindburn-labs/turnctl/pkg/pack"
	"github.com/mindburn-labs/turnctl/pkg/planvalidator"
	"github.com/mindburn-labs/turnctl/pkg/proofchain"
	"github.com/mindburn-labs/turnctl/pkg/scope"
)

// fakeConnector is a deterministic connector.Connector fixture for handler
// tests: it never talks to a real backend, just echoes fixed artifacts or
// ErrConnectorUnavailable back.
type fakeConnector struct {
	unavailable bool
}

func (c fakeConnector) FetchJiraIssue(ctx context.Context, issueKey string) (connector.Artifact, error) {
	if c.unavailable {
		return connector.Artifact{}, connector.ErrConnectorUnavailable
	}
	return connector.Artifact{SourceURI: "jira:" + issueKey, Kind: "jira_issue", Content: []byte(issueKey)}, nil
}

func (c fakeConnector) RegisterSwaggerRef(ctx context.Context, swaggerRef string) (connector.Artifact, error) {
	if c.unavailable {
		return connector.Artifact{}, connector.ErrConnectorUnavailable
	}
	return connector.Artifact{SourceURI: swaggerRef, Kind: "swagger_spec", Content: []byte(swaggerRef)}, nil
}

// newTestDeps builds a Deps with real in-memory/file-backed implementations
// of every service, wired the same way cmd/turnctl wires them, so handler
// tests exercise the same code paths the dispatcher does.
func newTestDeps(t *testing.T, baseDir string) *Deps {
	t.Helper()

	artifacts, err := artifactstore.NewFileStore(baseDir)
	if err != nil {
		t.Fatalf("new artifact store: %v", err)
	}

	memSvc := memory.New(memory.NewInMemoryStore(), memory.AutoPromotionPolicy{
		ContestWindow:        24 * time.Hour,
		ExpiryWindow:         30 * 24 * time.Hour,
		AutoPromotableTypes:  []contracts.EnforcementType{contracts.EnforcementPlanRule},
		OverrideInitialState: contracts.MemoryApproved,
	})

	graph := graphclient.NewInMemoryClient()
	idx := indexer.NewInMemoryIndexer(nil, nil, nil, nil, nil, nil)

	return &Deps{
		Pack:        pack.New(),
		Scope:       scope.New(),
		Collision:   collision.NewGuard(),
		Memory:      memSvc,
		Enforcement: enforcement.NewBuilder(),
		Validator:   planvalidator.New(nil, enforcement.DefaultCodemodCatalog()),
		Codemods:    enforcement.DefaultCodemodCatalog(),
		Artifacts:   artifacts,
		Indexer:     idx,
		Graph:       graph,
		ProofChain:  proofchain.New(graph, idx, 1),
		Connector:   fakeConnector{},
		Profile:     config.DefaultPolicyProfile(),
		Now:         time.Now,
	}
}

func newTestSession(id string) *contracts.SessionState {
	now := time.Now()
	return &contracts.SessionState{
		RunSessionID:    id,
		WorkID:          "work-1",
		AgentID:         "agent-1",
		State:           contracts.StatePlanning,
		RejectionCounts: map[string]int64{},
		ActionCounts:    map[string]int64{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
