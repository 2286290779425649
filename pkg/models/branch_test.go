package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectBranch_FirstMatchWins(t *testing.T) {
	// Two rules both match; the declared order decides.
	rules := []BranchRule{
		{Field: "lead.stage", Operator: OperatorEquals, Value: "hot", NextOrder: 5},
		{Field: "lead.stage", Operator: OperatorExists, NextOrder: 9},
	}
	ctx := BranchContext{Lead: map[string]any{"stage": "hot"}}

	next, ok := SelectBranch(rules, ctx)
	require.True(t, ok)
	assert.Equal(t, 5, next)
}

func TestSelectBranch_NoMatchFallsThrough(t *testing.T) {
	rules := []BranchRule{
		{Field: "lead.stage", Operator: OperatorEquals, Value: "hot", NextOrder: 5},
	}
	ctx := BranchContext{Lead: map[string]any{"stage": "cold"}}

	_, ok := SelectBranch(rules, ctx)
	assert.False(t, ok)
}

func TestSelectBranch_IsPure(t *testing.T) {
	rules := []BranchRule{
		{Field: "output.2.status", Operator: OperatorEquals, Value: "approved", NextOrder: 4},
		{Field: "lead.budget", Operator: OperatorGreaterThan, Value: 100000, NextOrder: 7},
	}
	ctx := BranchContext{
		Lead:      map[string]any{"budget": 250000},
		Outputs:   map[int]map[string]any{2: {"status": "pending"}},
		LastOrder: 2,
	}

	first, okFirst := SelectBranch(rules, ctx)

	// Re-evaluating with identical inputs must yield the identical branch.
	for range 5 {
		next, ok := SelectBranch(rules, ctx)
		assert.Equal(t, okFirst, ok)
		assert.Equal(t, first, next)
	}

	assert.Equal(t, 7, first)
}

func TestSelectBranch_Operators(t *testing.T) {
	ctx := BranchContext{
		Lead: map[string]any{
			"city":   "Porto Alegre",
			"score":  float64(42),
			"source": "referral",
		},
	}

	tests := []struct {
		name    string
		rule    BranchRule
		matched bool
	}{
		{"equals", BranchRule{Field: "lead.source", Operator: OperatorEquals, Value: "referral", NextOrder: 2}, true},
		{"equals numeric coercion", BranchRule{Field: "lead.score", Operator: OperatorEquals, Value: 42, NextOrder: 2}, true},
		{"not equals", BranchRule{Field: "lead.source", Operator: OperatorNotEquals, Value: "ads", NextOrder: 2}, true},
		{"contains", BranchRule{Field: "lead.city", Operator: OperatorContains, Value: "Alegre", NextOrder: 2}, true},
		{"greater than", BranchRule{Field: "lead.score", Operator: OperatorGreaterThan, Value: 40, NextOrder: 2}, true},
		{"greater than fails", BranchRule{Field: "lead.score", Operator: OperatorGreaterThan, Value: 50, NextOrder: 2}, false},
		{"less than", BranchRule{Field: "lead.score", Operator: OperatorLessThan, Value: "50", NextOrder: 2}, true},
		{"exists", BranchRule{Field: "lead.city", Operator: OperatorExists, NextOrder: 2}, true},
		{"exists on missing field", BranchRule{Field: "lead.company", Operator: OperatorExists, NextOrder: 2}, false},
		{"missing field never matches", BranchRule{Field: "lead.company", Operator: OperatorEquals, Value: "", NextOrder: 2}, false},
		{"non-numeric comparison", BranchRule{Field: "lead.city", Operator: OperatorGreaterThan, Value: 10, NextOrder: 2}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := SelectBranch([]BranchRule{tc.rule}, ctx)
			assert.Equal(t, tc.matched, ok)
		})
	}
}

func TestSelectBranch_BareFieldReadsLastOutput(t *testing.T) {
	rules := []BranchRule{
		{Field: "status", Operator: OperatorEquals, Value: "booked", NextOrder: 6},
	}
	ctx := BranchContext{
		Outputs:   map[int]map[string]any{3: {"status": "booked"}},
		LastOrder: 3,
	}

	next, ok := SelectBranch(rules, ctx)
	require.True(t, ok)
	assert.Equal(t, 6, next)
}

func TestSelectBranch_MalformedOutputField(t *testing.T) {
	ctx := BranchContext{Outputs: map[int]map[string]any{1: {"k": "v"}}}

	for _, field := range []string{"output.", "output.x.k", "output.9.k", "output.1"} {
		_, ok := SelectBranch([]BranchRule{{Field: field, Operator: OperatorExists, NextOrder: 2}}, ctx)
		assert.False(t, ok, "field %q should not resolve", field)
	}
}
