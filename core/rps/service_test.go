package rps_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obeworks/kurikulum/core"
	"github.com/obeworks/kurikulum/core/rps"
	"github.com/obeworks/kurikulum/storage/database/sqlxrepos"
	"github.com/obeworks/kurikulum/tests"
)

const curriculumID = "kur-2024"

func approve(t *testing.T, env *testutil.Env, a rps.Approval) rps.DecisionResult {
	t.Helper()
	res, err := env.RPS.ProcessApproval(context.Background(), a.ID, rps.ApprovalDecision{Decision: rps.DecisionApproved}, a.ApproverID)
	require.NoError(t, err)
	return res
}

func TestService_Create(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	lead := testutil.CreateUser(t, env, "Lead", "lead@test.id", "lecturer")

	r := testutil.CreateRPS(t, env, "IF101", curriculumID, lead.ID)
	assert.Equal(t, rps.StatusDraft, r.Status)

	v, err := env.RPS.ActiveVersion(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Number)
	assert.True(t, v.IsActive)

	_, err = env.RPS.Create(ctx, rps.NewRPS{CourseCode: "IF102", CurriculumID: curriculumID, Term: "autumn", AcademicYear: "2024/2026", LeadDeveloperID: lead.ID}, testutil.Actor)
	require.Error(t, err)
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 2)

	_, err = env.RPS.Get(ctx, "missing")
	assert.True(t, core.IsNotFound(err))
}

func TestService_ApprovalWorkflow(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	lead := testutil.CreateUser(t, env, "Lead", "lead@test.id", "lecturer")
	approvers, _ := testutil.Approvers(t, env)
	r := testutil.CreateRPS(t, env, "IF101", curriculumID, lead.ID)

	submitted, approvals, err := env.RPS.SubmitForApproval(ctx, r.ID, approvers, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, rps.StatusSubmitted, submitted.Status)
	require.Len(t, approvals, rps.ApprovalLevels)
	for i, a := range approvals {
		assert.Equal(t, i+1, a.Level)
		assert.Equal(t, 1, a.Cycle)
		assert.Equal(t, rps.ApprovalPending, a.Status)
	}

	// cannot edit while under review
	desc := "changed"
	_, _, err = env.RPS.Update(ctx, r.ID, rps.UpdateRPS{Content: &rps.Content{Description: desc}}, lead.ID)
	assert.True(t, core.IsConflict(err))

	// two approvals keep the RPS submitted
	res := approve(t, env, approvals[0])
	assert.False(t, res.StatusChanged())
	res = approve(t, env, approvals[1])
	assert.Equal(t, rps.StatusSubmitted, res.RPS.Status)

	// a processed approval cannot be decided twice
	_, err = env.RPS.ProcessApproval(ctx, approvals[0].ID, rps.ApprovalDecision{Decision: rps.DecisionRejected}, approvals[0].ApproverID)
	assert.True(t, core.IsConflict(err))

	// the last level approves the RPS
	res = approve(t, env, approvals[2])
	assert.True(t, res.StatusChanged())
	assert.Equal(t, rps.StatusSubmitted, res.PreviousStatus)
	assert.Equal(t, rps.StatusApproved, res.RPS.Status)

	got, err := env.RPS.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, rps.StatusApproved, got.Status)
}

func TestService_RejectionInvalidatesCycle(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	lead := testutil.CreateUser(t, env, "Lead", "lead@test.id", "lecturer")
	approvers, _ := testutil.Approvers(t, env)
	r := testutil.CreateRPS(t, env, "IF101", curriculumID, lead.ID)

	_, approvals, err := env.RPS.SubmitForApproval(ctx, r.ID, approvers, lead.ID)
	require.NoError(t, err)

	// level 2 rejects while levels 1 and 3 are still pending
	res, err := env.RPS.ProcessApproval(ctx, approvals[1].ID, rps.ApprovalDecision{Decision: rps.DecisionRejected, Comment: " add references "}, approvals[1].ApproverID)
	require.NoError(t, err)
	assert.Equal(t, rps.StatusRevised, res.RPS.Status)
	assert.Equal(t, "add references", res.Approval.Comment)
	assert.Equal(t, rps.ApprovalRejected, res.Approval.Status)
	require.Len(t, res.Revised, 2)
	for _, a := range res.Revised {
		assert.Contains(t, []string{approvals[0].ID, approvals[2].ID}, a.ID)
		assert.Equal(t, rps.ApprovalRevised, a.Status)
	}

	// the invalidated level can no longer decide
	_, err = env.RPS.ProcessApproval(ctx, approvals[2].ID, rps.ApprovalDecision{Decision: rps.DecisionApproved}, approvals[2].ApproverID)
	assert.True(t, core.IsConflict(err))

	// revised RPS is editable again and resubmission opens a second cycle
	_, v, err := env.RPS.Update(ctx, r.ID, rps.UpdateRPS{Content: &rps.Content{Description: "with references", References: []string{"Buku 1"}}}, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, v.Number)
	assert.False(t, v.IsActive)

	_, second, err := env.RPS.SubmitForApproval(ctx, r.ID, approvers, lead.ID)
	require.NoError(t, err)
	for _, a := range second {
		assert.Equal(t, 2, a.Cycle)
	}
	for _, a := range second {
		res = approve(t, env, a)
	}
	assert.Equal(t, rps.StatusApproved, res.RPS.Status)

	all, err := env.RPS.Approvals(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2*rps.ApprovalLevels)
}

func TestService_ProcessApproval_ArchivedMidReview(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	lead := testutil.CreateUser(t, env, "Lead", "lead@test.id", "lecturer")
	approvers, _ := testutil.Approvers(t, env)
	r := testutil.CreateRPS(t, env, "IF101", curriculumID, lead.ID)

	_, approvals, err := env.RPS.SubmitForApproval(ctx, r.ID, approvers, lead.ID)
	require.NoError(t, err)
	_, err = env.RPS.Archive(ctx, r.ID, testutil.Actor)
	require.NoError(t, err)

	_, err = env.RPS.ProcessApproval(ctx, approvals[0].ID, rps.ApprovalDecision{Decision: rps.DecisionApproved}, approvals[0].ApproverID)
	assert.True(t, core.IsConflict(err))

	_, err = env.RPS.Archive(ctx, r.ID, testutil.Actor)
	assert.True(t, core.IsConflict(err))
}

func TestService_Activate(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	lead := testutil.CreateUser(t, env, "Lead", "lead@test.id", "lecturer")
	approvers, _ := testutil.Approvers(t, env)

	first := testutil.CreateRPS(t, env, "IF101", curriculumID, lead.ID)
	testutil.ApproveRPS(t, env, first.ID, approvers)
	activated, archived, err := env.RPS.Activate(ctx, first.ID, testutil.Actor)
	require.NoError(t, err)
	assert.Equal(t, rps.StatusActive, activated.Status)
	assert.Empty(t, archived)

	// draft cannot be activated
	second := testutil.CreateRPS(t, env, "IF101", curriculumID, lead.ID)
	_, _, err = env.RPS.Activate(ctx, second.ID, testutil.Actor)
	assert.True(t, core.IsConflict(err))

	// activating the new plan archives the previous one of the same course
	testutil.ApproveRPS(t, env, second.ID, approvers)
	activated, archived, err = env.RPS.Activate(ctx, second.ID, testutil.Actor)
	require.NoError(t, err)
	assert.Equal(t, rps.StatusActive, activated.Status)
	require.Len(t, archived, 1)
	assert.Equal(t, first.ID, archived[0].ID)

	actives, err := env.RPS.Query(ctx, rps.QueryFilter{CourseCode: "IF101", Statuses: []rps.Status{rps.StatusActive}})
	require.NoError(t, err)
	require.Len(t, actives, 1)
	assert.Equal(t, second.ID, actives[0].ID)
}

func TestService_SetActiveVersion(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	lead := testutil.CreateUser(t, env, "Lead", "lead@test.id", "lecturer")
	r := testutil.CreateRPS(t, env, "IF101", curriculumID, lead.ID)

	for _, desc := range []string{"v2", "v3"} {
		_, _, err := env.RPS.Update(ctx, r.ID, rps.UpdateRPS{Content: &rps.Content{Description: desc}}, lead.ID)
		require.NoError(t, err)
	}

	v, err := env.RPS.SetActiveVersion(ctx, r.ID, 3, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, v.Number)

	versions, err := env.RPS.Versions(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, versions, 3)
	active := 0
	for _, ver := range versions {
		if ver.IsActive {
			active++
			assert.Equal(t, 3, ver.Number)
		}
	}
	assert.Equal(t, 1, active)

	_, err = env.RPS.SetActiveVersion(ctx, r.ID, 9, lead.ID)
	assert.True(t, core.IsNotFound(err))
}

var errStorage = errors.New("storage unavailable")

// failingRepo breaks one write of the approval workflow after the others went through.
type failingRepo struct {
	rps.Repository
	failApprovals bool
	failStatus    bool
}

func (r failingRepo) CreateApprovals(ctx context.Context, approvals []rps.Approval, exec ...core.DBExecutor) error {
	if r.failApprovals {
		return errStorage
	}
	return r.Repository.CreateApprovals(ctx, approvals, exec...)
}

func (r failingRepo) UpdateRPSStatus(ctx context.Context, id string, status rps.Status, updatedBy string, at time.Time, exec ...core.DBExecutor) error {
	if r.failStatus {
		return errStorage
	}
	return r.Repository.UpdateRPSStatus(ctx, id, status, updatedBy, at, exec...)
}

func newFailingService(env *testutil.Env, repo failingRepo) *rps.Service {
	repo.Repository = sqlxrepos.NewRPSRepository(env.DB)
	return rps.NewService(rps.Deps{DB: env.DB, Repo: repo, Validator: env.Validator, Audit: env.Audit})
}

func TestService_SubmitForApproval_rollback(t *testing.T) {
	tests := []struct {
		name   string
		repo   failingRepo
		revise bool
	}{
		{"approvals insert fails", failingRepo{failApprovals: true}, false},
		{"status update fails", failingRepo{failStatus: true}, false},
		{"status update fails on resubmit", failingRepo{failStatus: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testutil.NewEnv(t)
			ctx := context.Background()
			lead := testutil.CreateUser(t, env, "Lead", "lead@test.id", "lecturer")
			approvers, _ := testutil.Approvers(t, env)
			r := testutil.CreateRPS(t, env, "IF101", curriculumID, lead.ID)

			want := rps.StatusDraft
			var before []rps.Approval
			if tt.revise {
				_, approvals, err := env.RPS.SubmitForApproval(ctx, r.ID, approvers, lead.ID)
				require.NoError(t, err)
				_, err = env.RPS.ProcessApproval(ctx, approvals[0].ID, rps.ApprovalDecision{Decision: rps.DecisionRevised, Comment: "fix week 3"}, approvals[0].ApproverID)
				require.NoError(t, err)
				want = rps.StatusRevised
				before, err = env.RPS.Approvals(ctx, r.ID)
				require.NoError(t, err)
			}

			svc := newFailingService(env, tt.repo)
			_, _, err := svc.SubmitForApproval(ctx, r.ID, approvers, lead.ID)
			assert.ErrorIs(t, err, errStorage)

			got, err := env.RPS.Get(ctx, r.ID)
			require.NoError(t, err)
			assert.Equal(t, want, got.Status)
			approvals, err := env.RPS.Approvals(ctx, r.ID)
			require.NoError(t, err)
			assert.Len(t, approvals, len(before))
		})
	}
}

func TestService_ProcessApproval_rollback(t *testing.T) {
	tests := []struct {
		name     string
		level    int // index of the approval decided by the failing service
		decision rps.Decision
	}{
		{"final approval", 2, rps.DecisionApproved},
		{"rejection", 0, rps.DecisionRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testutil.NewEnv(t)
			ctx := context.Background()
			lead := testutil.CreateUser(t, env, "Lead", "lead@test.id", "lecturer")
			approvers, _ := testutil.Approvers(t, env)
			r := testutil.CreateRPS(t, env, "IF101", curriculumID, lead.ID)
			_, approvals, err := env.RPS.SubmitForApproval(ctx, r.ID, approvers, lead.ID)
			require.NoError(t, err)
			for _, a := range approvals[:tt.level] {
				approve(t, env, a)
			}

			svc := newFailingService(env, failingRepo{failStatus: true})
			target := approvals[tt.level]
			_, err = svc.ProcessApproval(ctx, target.ID, rps.ApprovalDecision{Decision: tt.decision, Comment: "noted"}, target.ApproverID)
			assert.ErrorIs(t, err, errStorage)

			got, err := env.RPS.Get(ctx, r.ID)
			require.NoError(t, err)
			assert.Equal(t, rps.StatusSubmitted, got.Status)
			stored, err := env.RPS.Approvals(ctx, r.ID)
			require.NoError(t, err)
			require.Len(t, stored, rps.ApprovalLevels)
			for i, a := range stored {
				if i < tt.level {
					assert.Equal(t, rps.ApprovalApproved, a.Status)
					continue
				}
				assert.Equal(t, rps.ApprovalPending, a.Status, "level %d", a.Level)
				assert.False(t, a.DecidedAt.Valid)
			}
		})
	}
}
