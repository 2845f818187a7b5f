// Package budget implements the budget gate: additive per-verb token
// accounting with a strict threshold comparison.
package budget

import "github.com/mindburn-labs/turnctl/pkg/contracts"

// CostTable resolves a verb's token cost. Implemented by
// config.PolicyProfile.
type CostTable interface {
	CostOf(verb contracts.Verb) int64
}

// Check evaluates whether session is currently blocked, and computes the
// budget status object carried on every response envelope. usedTokens is
// read from the session; it is the caller's responsibility to persist the
// updated value after a successful Charge.
func Check(usedTokens, maxTokens, thresholdTokens int64) contracts.BudgetStatus {
	return contracts.BudgetStatus{
		MaxTokens:       maxTokens,
		UsedTokens:      usedTokens,
		ThresholdTokens: thresholdTokens,
		Blocked:         usedTokens >= thresholdTokens,
	}
}

// Charge returns the new used-token total after charging verb's cost.
// Token accounting is purely additive; it never decreases except by
// session reset.
func Charge(usedTokens int64, costs CostTable, verb contracts.Verb) int64 {
	return usedTokens + costs.CostOf(verb)
}
