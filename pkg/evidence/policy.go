// Package evidence implements the Evidence Policy Engine: per-change-node
// evidence-sufficiency checks against a configurable EvidencePolicy.
package evidence

import "github.com/mindburn-labs/turnctl/pkg/contracts"

// Result is the outcome of evaluating one change node against an
// EvidencePolicy.
type Result struct {
	Sufficient     bool
	DistinctCount  int
	FailedBuckets  []string
}

// uniqueCount counts the distinct, non-empty strings across groups.
func uniqueCount(groups ...[]string) int {
	seen := map[string]bool{}
	for _, g := range groups {
		for _, v := range g {
			if v != "" {
				seen[v] = true
			}
		}
	}
	return len(seen)
}

// Evaluate checks node against policy. A node with insufficient distinct
// sources still passes if it has set the low-evidence guard triple
// (lowEvidenceGuard, a non-empty uncertaintyNote, requiresHumanReview) and
// the policy allows it.
func Evaluate(node *contracts.ChangeNode, policy contracts.EvidencePolicy) Result {
	distinct := uniqueCount(node.Citations, node.CodeEvidence, node.PolicyRefs)

	res := Result{DistinctCount: distinct, Sufficient: true}

	minDistinct := policy.MinDistinctSources
	if minDistinct == 0 {
		minDistinct = contracts.DefaultEvidencePolicy().MinDistinctSources
	}

	if distinct < minDistinct {
		if policy.AllowSingleSourceWithGuard && node.LowEvidenceGuard && node.UncertaintyNote != "" && node.RequiresHumanReview {
			// Guarded low-evidence change: allowed through.
		} else {
			res.Sufficient = false
			res.FailedBuckets = append(res.FailedBuckets, "min_distinct_sources")
		}
	}

	if policy.MinRequirementSources > 0 && uniqueCount(node.Citations) < policy.MinRequirementSources {
		res.Sufficient = false
		res.FailedBuckets = append(res.FailedBuckets, "min_requirement_sources")
	}

	if policy.MinCodeEvidenceSources > 0 && uniqueCount(node.CodeEvidence) < policy.MinCodeEvidenceSources {
		res.Sufficient = false
		res.FailedBuckets = append(res.FailedBuckets, "min_code_evidence_sources")
	}

	return res
}
