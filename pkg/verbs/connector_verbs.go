package verbs

import (
	"context"
	"errors"
	"fmt"

	"github.com/mindburn-labs/turnctl/pkg/connector"
	"github.com/mindburn-labs/turnctl/pkg/contracts"
)

// attachArtifact persists artifact bytes in the artifact store and
// records a reference on the session.
func attachArtifact(ctx context.Context, d *Deps, sess *contracts.SessionState, kind string, content []byte) (contracts.ArtifactRef, error) {
	ref, err := d.Artifacts.Put(ctx, content)
	if err != nil {
		return contracts.ArtifactRef{}, err
	}
	artifact := contracts.ArtifactRef{Ref: ref, Kind: kind, Hash: ref, CreatedAt: d.Now()}
	sess.Artifacts = append(sess.Artifacts, artifact)
	return artifact, nil
}

// handleFetchJiraTicket fetches a Jira issue via the configured
// connector and attaches it as a session artifact the planning agent can
// cite as a requirement-source.
func handleFetchJiraTicket(ctx context.Context, d *Deps, sess *contracts.SessionState, args map[string]interface{}) (contracts.VerbResult, error) {
	issueKey := argString(args, "issue_key")
	artifact, err := d.Connector.FetchJiraIssue(ctx, issueKey)
	if errors.Is(err, connector.ErrConnectorUnavailable) {
		return contracts.VerbResult{DenyReasons: []contracts.DenyReason{{
			Code: contracts.RejectPlanEvidenceInsufficient, Message: "jira connector is not configured for this deployment",
		}}}, nil
	}
	if err != nil {
		return contracts.VerbResult{DenyReasons: []contracts.DenyReason{{
			Code: contracts.RejectPlanEvidenceInsufficient, Message: fmt.Sprintf("fetch jira issue %s: %v", issueKey, err),
		}}}, nil
	}

	ref, err := attachArtifact(ctx, d, sess, artifact.Kind, artifact.Content)
	if err != nil {
		return contracts.VerbResult{}, err
	}
	return contracts.VerbResult{Result: map[string]interface{}{"artifact": ref}}, nil
}

// handleFetchAPISpec fetches a Swagger/OpenAPI spec and attaches it as a
// session artifact for API-contract citations.
func handleFetchAPISpec(ctx context.Context, d *Deps, sess *contracts.SessionState, args map[string]interface{}) (contracts.VerbResult, error) {
	swaggerRef := argString(args, "swagger_ref")
	artifact, err := d.Connector.RegisterSwaggerRef(ctx, swaggerRef)
	if errors.Is(err, connector.ErrConnectorUnavailable) {
		return contracts.VerbResult{DenyReasons: []contracts.DenyReason{{
			Code: contracts.RejectPlanEvidenceInsufficient, Message: "swagger registry connector is not configured for this deployment",
		}}}, nil
	}
	if err != nil {
		return contracts.VerbResult{DenyReasons: []contracts.DenyReason{{
			Code: contracts.RejectPlanEvidenceInsufficient, Message: fmt.Sprintf("fetch swagger ref %s: %v", swaggerRef, err),
		}}}, nil
	}

	ref, err := attachArtifact(ctx, d, sess, artifact.Kind, artifact.Content)
	if err != nil {
		return contracts.VerbResult{}, err
	}
	return contracts.VerbResult{Result: map[string]interface{}{"artifact": ref}}, nil
}
