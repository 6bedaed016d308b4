package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequest() AspectRequest {
	return AspectRequest{
		GuardClassName:   "ScheduleNeedsQuantity",
		ContextTypeName:  "github.com/roach88/contractweave/internal/demo.ProductionOrder",
		HookedMethodName: "Schedule",
		BeforeExpr:       "self.Quantity > 0",
		AfterExpr:        "self.Start >= pre.Start",
	}
}

func TestAspectIDDeterminism(t *testing.T) {
	id1, err := AspectID(testRequest())
	require.NoError(t, err)

	id2, err := AspectID(testRequest())
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "AspectID must be deterministic")
	assert.Len(t, id1, 64, "SHA-256 hex is 64 characters")
}

func TestAspectIDChangesWithInput(t *testing.T) {
	base := testRequest()

	renamed := base
	renamed.GuardClassName = "Other"

	retargeted := base
	retargeted.HookedMethodName = "AddOperation"

	tightened := base
	tightened.AfterExpr = "self.Start > pre.Start"

	id := MustAspectID(base)
	assert.NotEqual(t, id, MustAspectID(renamed), "guard name is part of identity")
	assert.NotEqual(t, id, MustAspectID(retargeted), "method is part of identity")
	assert.NotEqual(t, id, MustAspectID(tightened), "predicates are part of identity")
}

func TestAspectIDNFCNormalized(t *testing.T) {
	composed := testRequest()
	composed.BeforeExpr = "self.Name != \"caf\u00e9\""

	decomposed := testRequest()
	decomposed.BeforeExpr = "self.Name != \"cafe\u0301\""

	assert.Equal(t, MustAspectID(composed), MustAspectID(decomposed))
}
