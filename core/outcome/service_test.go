package outcome_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obeworks/kurikulum/core"
	"github.com/obeworks/kurikulum/core/outcome"
	"github.com/obeworks/kurikulum/tests"
)

const curriculumID = "kur-2024"

func TestService_CPL(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	cpl, err := env.Outcomes.CreateCPL(ctx, outcome.NewCPL{
		CurriculumID: curriculumID,
		Code:         " cpl-01 ",
		Description:  "Mampu menerapkan pemikiran logis",
		Category:     "sikap",
	}, testutil.Actor)
	require.NoError(t, err)
	assert.Equal(t, "CPL-01", cpl.Code)
	assert.Equal(t, outcome.CategoryAttitude, cpl.Category)
	assert.True(t, cpl.IsActive)

	// same code in the same curriculum
	_, err = env.Outcomes.CreateCPL(ctx, outcome.NewCPL{CurriculumID: curriculumID, Code: "CPL-01", Description: "dup", Category: outcome.CategoryKnowledge}, testutil.Actor)
	assert.True(t, core.IsConflict(err))

	// same code in another curriculum is fine
	testutil.CreateCPL(t, env, "kur-2020", "CPL-01")

	_, err = env.Outcomes.CreateCPL(ctx, outcome.NewCPL{CurriculumID: curriculumID, Code: "bad code!", Description: "x", Category: "unknown"}, testutil.Actor)
	assert.True(t, core.IsValidation(err))

	desc := "Mampu berpikir kritis"
	updated, err := env.Outcomes.UpdateCPL(ctx, cpl.ID, outcome.UpdateCPL{Description: &desc}, testutil.Actor)
	require.NoError(t, err)
	assert.Equal(t, desc, updated.Description)

	list, err := env.Outcomes.QueryCPL(ctx, outcome.CPLQueryFilter{CurriculumID: curriculumID})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestService_BulkCreateCPL(t *testing.T) {
	env := testutil.NewEnv(t)

	report := env.Outcomes.BulkCreateCPL(context.Background(), []outcome.NewCPL{
		{CurriculumID: curriculumID, Code: "CPL-01", Description: "a", Category: outcome.CategoryAttitude},
		{CurriculumID: curriculumID, Code: "CPL-02", Description: "b", Category: outcome.CategoryKnowledge},
		{CurriculumID: curriculumID, Code: "CPL-01", Description: "dup", Category: outcome.CategoryKnowledge},
		{CurriculumID: curriculumID, Code: "CPL-03", Description: "", Category: outcome.CategoryKnowledge},
	}, testutil.Actor)
	assert.Len(t, report.Success, 2)
	require.Len(t, report.Failed, 2)
	assert.Equal(t, "CPL-01", report.Failed[0].Item.Code)
	assert.Equal(t, "CPL-03", report.Failed[1].Item.Code)
}

func TestService_CPMKCardinality(t *testing.T) {
	env := testutil.NewEnv(t, func(conf *core.Config) {
		conf.Grading.MinCPMK = 2
		conf.Grading.MaxCPMK = 3
	})
	ctx := context.Background()
	lead := testutil.CreateUser(t, env, "Lead", "lead@test.id", "lecturer")
	r := testutil.CreateRPS(t, env, "IF101", curriculumID, lead.ID)

	var cpmks []outcome.CPMK
	for i := 1; i <= 3; i++ {
		cpmks = append(cpmks, testutil.CreateCPMK(t, env, r.ID, fmt.Sprintf("CPMK-%d", i)))
	}

	// upper bound
	_, err := env.Outcomes.CreateCPMK(ctx, outcome.NewCPMK{RPSID: r.ID, Code: "CPMK-4", Description: "x"}, testutil.Actor)
	assert.True(t, core.IsConflict(err))

	// lower bound: 3 -> 2 is allowed, 2 -> 1 is not
	require.NoError(t, env.Outcomes.DeleteCPMK(ctx, cpmks[2].ID, testutil.Actor))
	err = env.Outcomes.DeleteCPMK(ctx, cpmks[1].ID, testutil.Actor)
	assert.True(t, core.IsConflict(err))

	list, err := env.Outcomes.QueryCPMK(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	// unknown rps
	_, err = env.Outcomes.CreateCPMK(ctx, outcome.NewCPMK{RPSID: "missing", Code: "CPMK-9", Description: "x"}, testutil.Actor)
	assert.True(t, core.IsNotFound(err))
}

func TestService_CPMKCodeUniqueness(t *testing.T) {
	env := testutil.NewEnv(t)
	lead := testutil.CreateUser(t, env, "Lead", "lead@test.id", "lecturer")
	r := testutil.CreateRPS(t, env, "IF101", curriculumID, lead.ID)
	testutil.CreateCPMK(t, env, r.ID, "CPMK-1")

	_, err := env.Outcomes.CreateCPMK(context.Background(), outcome.NewCPMK{RPSID: r.ID, Code: "cpmk-1", Description: "x"}, testutil.Actor)
	assert.True(t, core.IsConflict(err))
}

func TestService_SubCPMK(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	lead := testutil.CreateUser(t, env, "Lead", "lead@test.id", "lecturer")
	r := testutil.CreateRPS(t, env, "IF101", curriculumID, lead.ID)
	cpmk := testutil.CreateCPMK(t, env, r.ID, "CPMK-1")

	sub, err := env.Outcomes.CreateSubCPMK(ctx, outcome.NewSubCPMK{CPMKID: cpmk.ID, Code: "Sub-CPMK-1.1", Description: "x", Indicator: "ketepatan"}, testutil.Actor)
	require.NoError(t, err)
	_, err = env.Outcomes.CreateSubCPMK(ctx, outcome.NewSubCPMK{CPMKID: cpmk.ID, Code: "sub-cpmk-1.1", Description: "y"}, testutil.Actor)
	assert.True(t, core.IsConflict(err))

	subs, err := env.Outcomes.QuerySubCPMK(ctx, cpmk.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, sub.ID, subs[0].ID)

	require.NoError(t, env.Outcomes.DeleteSubCPMK(ctx, sub.ID, testutil.Actor))
	_, err = env.Outcomes.QuerySubCPMK(ctx, "missing")
	assert.True(t, core.IsNotFound(err))
}

func TestService_Mappings(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	lead := testutil.CreateUser(t, env, "Lead", "lead@test.id", "lecturer")
	r := testutil.CreateRPS(t, env, "IF101", curriculumID, lead.ID)
	cpmk := testutil.CreateCPMK(t, env, r.ID, "CPMK-1")
	cpl := testutil.CreateCPL(t, env, curriculumID, "CPL-01")
	foreign := testutil.CreateCPL(t, env, "kur-2020", "CPL-01")

	m := testutil.CreateMapping(t, env, cpmk.ID, cpl.ID, 60)

	tests := []struct {
		name    string
		n       outcome.NewMapping
		checkFn func(error) bool
	}{
		{name: "duplicate", n: outcome.NewMapping{CPMKID: cpmk.ID, CPLID: cpl.ID, Weight: 10}, checkFn: core.IsConflict},
		{name: "other curriculum", n: outcome.NewMapping{CPMKID: cpmk.ID, CPLID: foreign.ID, Weight: 10}, checkFn: core.IsConflict},
		{name: "unknown cpl", n: outcome.NewMapping{CPMKID: cpmk.ID, CPLID: "missing", Weight: 10}, checkFn: core.IsNotFound},
		{name: "zero weight", n: outcome.NewMapping{CPMKID: cpmk.ID, CPLID: cpl.ID}, checkFn: core.IsValidation},
		{name: "weight above 100", n: outcome.NewMapping{CPMKID: cpmk.ID, CPLID: cpl.ID, Weight: 100.5}, checkFn: core.IsValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Outcomes.CreateMapping(ctx, tt.n, testutil.Actor)
			require.Error(t, err)
			assert.True(t, tt.checkFn(err), "unexpected error: %v", err)
		})
	}

	updated, err := env.Outcomes.UpdateMappingWeight(ctx, m.ID, 40, testutil.Actor)
	require.NoError(t, err)
	assert.Equal(t, 40.0, updated.Weight)

	byCPL, err := env.Outcomes.MappingsByCPL(ctx, cpl.ID)
	require.NoError(t, err)
	require.Len(t, byCPL, 1)
	assert.Equal(t, 40.0, byCPL[0].Weight)

	require.NoError(t, env.Outcomes.DeleteMapping(ctx, m.ID, testutil.Actor))
	byCPMK, err := env.Outcomes.MappingsByCPMK(ctx, cpmk.ID)
	require.NoError(t, err)
	assert.Empty(t, byCPMK)
}
