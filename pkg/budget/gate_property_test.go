//go:build property
// +build property

package budget_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/mindburn-labs/turnctl/pkg/budget"
	"github.com/mindburn-labs/turnctl/pkg/contracts"
)

type constCosts int64

func (c constCosts) CostOf(contracts.Verb) int64 { return int64(c) }

// TestChargeMonotonicity verifies token accounting never decreases: charging
// any non-negative verb cost against a used-token total only ever grows it.
func TestChargeMonotonicity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("Charge never decreases the used-token total", prop.ForAll(
		func(used int64, cost int64) bool {
			if used < 0 || cost < 0 {
				return true
			}
			next := budget.Charge(used, constCosts(cost), contracts.VerbReadFileLines)
			return next >= used
		},
		gen.Int64Range(0, 1_000_000),
		gen.Int64Range(0, 1_000_000),
	))

	properties.TestingRun(t)
}

// TestCheckBlockedIffAtOrOverThreshold verifies Check's Blocked flag agrees
// exactly with the strict >= threshold comparison for any inputs, matching
// the documented semantics that a session at the threshold is blocked, not
// only one past it.
func TestCheckBlockedIffAtOrOverThreshold(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("Blocked matches usedTokens >= thresholdTokens exactly", prop.ForAll(
		func(used, max, threshold int64) bool {
			status := budget.Check(used, max, threshold)
			return status.Blocked == (used >= threshold)
		},
		gen.Int64Range(0, 1_000_000),
		gen.Int64Range(0, 1_000_000),
		gen.Int64Range(0, 1_000_000),
	))

	properties.TestingRun(t)
}
