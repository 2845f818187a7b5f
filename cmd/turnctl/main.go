// Command turnctl builds and runs the Turn Controller: the single
// handle(verb, args, envelope) state machine an LLM planning agent drives
// turn by turn (spec.md §4.1-§4.2, §6). Wiring a transport (HTTP, gRPC,
// stdio) on top of Controller.Handle is left to the deployment; this
// binary's job is assembling the services Handle depends on and proving
// the wiring is sound with a self-check call before it sits idle waiting
// for a transport to be attached.
package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"golang.org/x/time/rate"

	"github.com/mindburn-labs/turnctl/pkg/artifactstore"
	"github.com/mindburn-labs/turnctl/pkg/collision"
	"github.com/mindburn-labs/turnctl/pkg/config"
	"github.com/mindburn-labs/turnctl/pkg/connector"
	"github.com/mindburn-labs/turnctl/pkg/contracts"
	"github.com/mindburn-labs/turnctl/pkg/dispatcher"
	"github.com/mindburn-labs/turnctl/pkg/enforcement"
	"github.com/mindburn-labs/turnctl/pkg/graphclient"
	"github.com/mindburn-labs/turnctl/pkg/indexer"
	"github.com/mindburn-labs/turnctl/pkg/memory"
	"github.com/mindburn-labs/turnctl/pkg/observability"
	"github.com/mindburn-labs/turnctl/pkg/pack"
	"github.com/mindburn-labs/turnctl/pkg/planvalidator"
	"github.com/mindburn-labs/turnctl/pkg/scope"
	"github.com/mindburn-labs/turnctl/pkg/session"
	"github.com/mindburn-labs/turnctl/pkg/signing"
	"github.com/mindburn-labs/turnctl/pkg/store/memorystore"
	"github.com/mindburn-labs/turnctl/pkg/store/sessionstore"
	"github.com/mindburn-labs/turnctl/pkg/verbs"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := slog.Default()
	ctx := context.Background()

	cfg := config.Load()

	controller, cleanup, err := build(ctx, cfg, logger)
	if err != nil {
		logger.Error("turnctl: startup failed", "error", err)
		return 1
	}
	defer cleanup()

	logger.Info("turnctl: ready", "verbs", len(controller.Verbs), "policy_profile", controller.Profile.Name)

	// No transport is wired in this binary (spec.md Non-goals). Prove the
	// assembled controller is reachable before exiting, the way a smoke
	// test would at the bottom of a deployment's init container.
	// initialize_work is the only verb a brand-new session ever permits.
	resp, err := controller.Handle(ctx, contracts.Envelope{RunSessionID: "turnctl-startup-selfcheck"}, contracts.VerbInitializeWork, map[string]interface{}{
		"original_prompt": "turnctl startup self-check",
		"worktree_root":   ".",
	})
	if err != nil {
		logger.Error("turnctl: self-check handle() failed", "error", err)
		return 1
	}
	logger.Info("turnctl: self-check ok", "state", resp.State, "deny_reasons", len(resp.DenyReasons))
	return 0
}

// build assembles every service the Turn Controller depends on, selecting
// backends per cfg the way the teacher's runServer does: a durable
// backend when one is configured, an in-memory one otherwise. The
// returned cleanup func closes any database handles build opened.
func build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*dispatcher.Controller, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	sessionStore, closeSessions, err := buildSessionStore(cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if closeSessions != nil {
		closers = append(closers, closeSessions)
	}

	memoryStore, closeMemory, err := buildMemoryStore(cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if closeMemory != nil {
		closers = append(closers, closeMemory)
	}

	collisionGuard := buildCollisionGuard(cfg, logger)

	artifacts, err := artifactstore.FromConfig(ctx, cfg)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("turnctl: artifact store: %w", err)
	}

	policyProfile, err := config.LoadPolicyProfile(cfg.ProfilesDir, os.Getenv("POLICY_PROFILE_NAME"))
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("turnctl: policy profile: %w", err)
	}

	obs, err := observability.New(ctx, &observability.Config{
		ServiceName:  cfg.ServiceName,
		OTLPEndpoint: cfg.OTLPEndpoint,
		Enabled:      cfg.OTLPEndpoint != "",
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("turnctl: observability: %w", err)
	}

	signer, err := buildSigner()
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("turnctl: signer: %w", err)
	}

	codemods := enforcement.DefaultCodemodCatalog()

	celEvaluator, err := enforcement.NewCELEvaluator()
	if err != nil {
		logger.Warn("turnctl: CEL evaluator unavailable, plan-rule and graph-policy conditions will be treated as always applying", "error", err)
		celEvaluator = nil
	}

	deps := &verbs.Deps{
		Pack:        pack.New(),
		Scope:       scope.New(),
		Collision:   collisionGuard,
		Memory:      memory.New(memoryStore, policyFromProfile(policyProfile)),
		Enforcement: enforcement.NewBuilder(),
		Validator:   planvalidator.New(celEvaluator, codemods),
		Codemods:    codemods,
		Artifacts:   artifacts,
		Indexer:     indexer.NewInMemoryIndexer(nil, nil, nil, nil, nil, nil),
		Graph:       graphclient.NewInMemoryClient(),
		Connector:   buildConnector(),
		Profile:     policyProfile,
		Now:         time.Now,
	}

	controller := dispatcher.New(
		session.NewManager(sessionStore),
		verbs.NewRegistry(),
		deps,
		policyProfile,
		obs,
		signer,
		cfg.MaxTokensDefault,
		cfg.ThresholdTokensDefault,
	)

	return controller, cleanup, nil
}

// buildSessionStore selects the session store backend per
// cfg.SessionStoreBackend. "postgres" requires a live DSN; turnctl fails
// fast at startup rather than silently falling back, since a production
// deployment choosing postgres almost always means a multi-instance
// deployment where the in-memory store would silently lose sessions.
func buildSessionStore(cfg *config.Config) (sessionstore.Store, func(), error) {
	switch cfg.SessionStoreBackend {
	case "", "memory":
		return sessionstore.NewMemoryStore(), nil, nil
	case "postgres":
		db, err := sql.Open("postgres", cfg.SessionStoreDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("session store: open postgres: %w", err)
		}
		if err := db.PingContext(context.Background()); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("session store: ping postgres: %w", err)
		}
		return sessionstore.NewPostgresStore(db), func() { db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("session store: unknown backend %q", cfg.SessionStoreBackend)
	}
}

// buildMemoryStore selects the Memory Service's persistence backend per
// cfg.MemoryStoreBackend.
func buildMemoryStore(cfg *config.Config) (memory.Store, func(), error) {
	switch cfg.MemoryStoreBackend {
	case "", "memory":
		return memory.NewInMemoryStore(), nil, nil
	case "sqlite":
		db, err := sql.Open("sqlite", cfg.MemoryStoreDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("memory store: open sqlite: %w", err)
		}
		store, err := memorystore.NewSQLiteStore(db)
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("memory store: migrate sqlite: %w", err)
		}
		return store, func() { db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("memory store: unknown backend %q", cfg.MemoryStoreBackend)
	}
}

// buildCollisionGuard selects the Collision Guard backend. The Redis
// backend (pkg/collision.RedisGuard) is built for multi-instance
// deployments where more than one controller process holds leases over
// the same repository, but pkg/verbs.Deps.Collision is typed against the
// concrete in-memory *collision.Guard rather than an interface — turnctl
// honors "memory" and warns, rather than silently degrading, when
// "redis" is requested until that seam is generalized.
func buildCollisionGuard(cfg *config.Config, logger *slog.Logger) *collision.Guard {
	if cfg.CollisionBackend == "redis" {
		logger.Warn("turnctl: COLLISION_BACKEND=redis requested but not wired into this single-process binary; falling back to the in-memory guard")
	}
	return collision.NewGuard()
}

// buildConnector wires the HTTP-backed Jira/Swagger connector at a low,
// conservative rate limit. No production Jira SDK or Swagger registry
// client appears anywhere in the example pack, so turnctl follows the
// generic net/http connector pkg/connector itself settles on.
func buildConnector() connector.Connector {
	jiraBaseURL := os.Getenv("JIRA_BASE_URL")
	if jiraBaseURL == "" {
		jiraBaseURL = "https://issues.invalid/rest/api/2/issue/"
	}
	return connector.NewHTTPConnector(jiraBaseURL, rate.Limit(1), 5)
}

// buildSigner loads the trace-receipt signing secret from
// TRACE_RECEIPT_SECRET, generating an ephemeral one for local/dev runs
// when unset. An ephemeral secret means receipts from one process
// restart cannot be verified against the next; that is an accepted
// trade-off for a dev default, not a production configuration.
func buildSigner() (*signing.Signer, error) {
	secret := os.Getenv("TRACE_RECEIPT_SECRET")
	if secret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generate ephemeral signing secret: %w", err)
		}
		secret = string(buf)
		slog.Default().Warn("turnctl: TRACE_RECEIPT_SECRET not set, generated an ephemeral signing secret for this process only")
	}
	return signing.NewSigner([]byte(secret), "turnctl.dispatcher")
}

func policyFromProfile(p *config.PolicyProfile) memory.AutoPromotionPolicy {
	return memory.AutoPromotionPolicy{
		ContestWindow:        p.MemoryContestWindow,
		ExpiryWindow:         p.MemoryExpiryWindow,
		AutoPromotableTypes:  p.AutoPromotableTypes,
		OverrideInitialState: p.HumanOverrideInitialState,
	}
}
