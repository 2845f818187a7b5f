// Package connector implements the consumed Connector interface (spec.md
// §6): fetchJiraIssue and registerSwaggerRef. Connectors are optional —
// their absence, or a fetch failure, is non-fatal to the session (§5
// failure recovery): the verb returns the error in result.error and the
// session continues.
package connector

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// ErrConnectorUnavailable is returned by a connector that has not been
// wired to a live backend.
var ErrConnectorUnavailable = errors.New("connector: unavailable")

// Artifact is the raw content a connector fetch produces, before it is
// persisted to the artifact store and recorded on the session as a
// contracts.ArtifactRef.
type Artifact struct {
	SourceURI string
	Kind      string // "jira_issue" | "swagger_spec"
	Content   []byte
	FetchedAt time.Time
}

// Connector is the interface the dispatcher's fetch_jira_ticket and
// fetch_api_spec handlers consume.
type Connector interface {
	FetchJiraIssue(ctx context.Context, issueKey string) (Artifact, error)
	RegisterSwaggerRef(ctx context.Context, swaggerRef string) (Artifact, error)
}

// BaseConnector provides rate-limited scaffolding shared by concrete
// connectors, mirroring the teacher's arc.BaseConnector.
type BaseConnector struct {
	id      string
	limiter *rate.Limiter
}

// NewBaseConnector constructs a BaseConnector with a token-bucket limiter
// of rate r and burst b.
func NewBaseConnector(id string, r rate.Limit, b int) BaseConnector {
	return BaseConnector{id: id, limiter: rate.NewLimiter(r, b)}
}

// ID returns the connector's identifier.
func (c *BaseConnector) ID() string { return c.id }

// Wait blocks until the rate limiter admits one more call, or ctx is done.
func (c *BaseConnector) Wait(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}
