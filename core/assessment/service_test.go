package assessment_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/obeworks/kurikulum/core"
	"github.com/obeworks/kurikulum/core/achievement"
	"github.com/obeworks/kurikulum/core/assessment"
	"github.com/obeworks/kurikulum/core/outcome"
	"github.com/obeworks/kurikulum/core/rps"
	"github.com/obeworks/kurikulum/storage/database/sqlxrepos"
	"github.com/obeworks/kurikulum/tests"
)

const curriculumID = "kur-2024"

type fixture struct {
	env   *testutil.Env
	lead  string
	rps   rps.RPS
	cpmks []outcome.CPMK
}

func newFixture(t *testing.T) fixture {
	env := testutil.NewEnv(t)
	lead := testutil.CreateUser(t, env, "Lead", "lead@test.id", "lecturer")
	r := testutil.CreateRPS(t, env, "IF101", curriculumID, lead.ID)
	f := fixture{env: env, lead: lead.ID, rps: r}
	for _, code := range []string{"CPMK-1", "CPMK-2", "CPMK-3"} {
		f.cpmks = append(f.cpmks, testutil.CreateCPMK(t, env, r.ID, code))
	}
	return f
}

// approve submits and approves the RPS of the fixture.
func (f fixture) approve(t *testing.T) {
	approvers, _ := testutil.Approvers(t, f.env)
	testutil.ApproveRPS(t, f.env, f.rps.ID, approvers)
}

func TestService_ValidateTemplateWeights(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	env := f.env

	// CPMK-1 and CPMK-3 sum to 100, CPMK-2 to 90
	testutil.CreateTemplate(t, env, f.rps.ID, f.cpmks[0].ID, "tugas", 40)
	testutil.CreateTemplate(t, env, f.rps.ID, f.cpmks[0].ID, "uts", 60)
	testutil.CreateTemplate(t, env, f.rps.ID, f.cpmks[1].ID, "kuis", 30)
	tmpl := testutil.CreateTemplate(t, env, f.rps.ID, f.cpmks[1].ID, "uas", 60)
	testutil.CreateTemplate(t, env, f.rps.ID, f.cpmks[2].ID, "proyek", 100)

	res, err := env.Assessments.ValidateTemplateWeights(ctx, f.rps.ID)
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, f.cpmks[1].ID, res.Errors[0].CPMKID)
	assert.Equal(t, 90.0, res.Errors[0].Total)

	_, err = env.Assessments.UpdateTemplateWeight(ctx, tmpl.ID, 70, testutil.Actor)
	require.NoError(t, err)
	res, err = env.Assessments.ValidateTemplateWeights(ctx, f.rps.ID)
	require.NoError(t, err)
	assert.True(t, res.IsValid)
	assert.Empty(t, res.Errors)

	_, err = env.Assessments.ValidateTemplateWeights(ctx, "missing")
	assert.True(t, core.IsNotFound(err))
}

func TestService_ValidateTemplateWeights_CPMKWithoutTemplates(t *testing.T) {
	f := newFixture(t)
	testutil.CreateTemplate(t, f.env, f.rps.ID, f.cpmks[0].ID, "uas", 100)

	res, err := f.env.Assessments.ValidateTemplateWeights(context.Background(), f.rps.ID)
	require.NoError(t, err)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "CPMK-2", res.Errors[0].CPMKCode)
	assert.Equal(t, "CPMK-3", res.Errors[1].CPMKCode)
}

func TestService_CreateTemplate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	env := f.env
	other := testutil.CreateRPS(t, env, "IF102", curriculumID, f.lead)
	foreign := testutil.CreateCPMK(t, env, other.ID, "CPMK-1")
	testutil.CreateTemplate(t, env, f.rps.ID, f.cpmks[0].ID, "uts", 50)

	tests := []struct {
		name    string
		n       assessment.NewTemplate
		checkFn func(error) bool
	}{
		{name: "duplicate type", n: assessment.NewTemplate{RPSID: f.rps.ID, CPMKID: f.cpmks[0].ID, AssessmentTypeID: "UTS", Weight: 10}, checkFn: core.IsConflict},
		{name: "cpmk of another rps", n: assessment.NewTemplate{RPSID: f.rps.ID, CPMKID: foreign.ID, AssessmentTypeID: "uts", Weight: 10}, checkFn: core.IsConflict},
		{name: "unknown type", n: assessment.NewTemplate{RPSID: f.rps.ID, CPMKID: f.cpmks[0].ID, AssessmentTypeID: "essay", Weight: 10}, checkFn: core.IsNotFound},
		{name: "unknown rps", n: assessment.NewTemplate{RPSID: "missing", CPMKID: f.cpmks[0].ID, AssessmentTypeID: "uts", Weight: 10}, checkFn: core.IsNotFound},
		{name: "weight above 100", n: assessment.NewTemplate{RPSID: f.rps.ID, CPMKID: f.cpmks[0].ID, AssessmentTypeID: "uas", Weight: 101}, checkFn: core.IsValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Assessments.CreateTemplate(ctx, tt.n, testutil.Actor)
			require.Error(t, err)
			assert.True(t, tt.checkFn(err), "unexpected error: %v", err)
		})
	}

	// templates are frozen once the RPS leaves draft
	f.approve(t)
	_, err := env.Assessments.CreateTemplate(ctx, assessment.NewTemplate{RPSID: f.rps.ID, CPMKID: f.cpmks[1].ID, AssessmentTypeID: "uas", Weight: 100}, testutil.Actor)
	assert.True(t, core.IsConflict(err))

	list, err := env.Assessments.Templates(ctx, f.rps.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestService_Thresholds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.env.Assessments

	// no threshold configured passes
	ok, err := svc.MeetsThreshold(ctx, f.rps.ID, "uts", 10)
	require.NoError(t, err)
	assert.True(t, ok)

	th, err := svc.CreateThreshold(ctx, assessment.NewThreshold{RPSID: f.rps.ID, AssessmentTypeID: "uts", MinValue: 70}, testutil.Actor)
	require.NoError(t, err)

	_, err = svc.CreateThreshold(ctx, assessment.NewThreshold{RPSID: f.rps.ID, AssessmentTypeID: "UTS", MinValue: 50}, testutil.Actor)
	require.Error(t, err)
	var ce *core.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "assessment_type_id", ce.Field)

	tests := []struct {
		typeID string
		value  float64
		want   bool
	}{
		{"uts", 69.99, false},
		{"uts", 70, true},
		{"uts", 70.0000000001, true},
		{"uts", 100, true},
		{"UTS", 10, false},
		{" uts ", 10, false},
		{"Uts", 70, true},
	}
	for _, tt := range tests {
		ok, err = svc.MeetsThreshold(ctx, f.rps.ID, tt.typeID, tt.value)
		require.NoError(t, err)
		assert.Equal(t, tt.want, ok, "type %q value %v", tt.typeID, tt.value)
	}

	_, err = svc.UpdateThreshold(ctx, th.ID, 60, testutil.Actor)
	require.NoError(t, err)
	minValue, found, err := svc.ThresholdFor(ctx, f.rps.ID, "uts")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 60.0, minValue)

	_, err = svc.UpdateThreshold(ctx, th.ID, 120, testutil.Actor)
	assert.True(t, core.IsValidation(err))

	require.NoError(t, svc.DeleteThreshold(ctx, th.ID, testutil.Actor))
	_, found, err = svc.ThresholdFor(ctx, f.rps.ID, "uts")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestService_ClassesAndEnrollments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.env.Assessments

	// draft RPS cannot be taught yet
	_, err := svc.CreateClass(ctx, assessment.NewClass{RPSID: f.rps.ID, Name: "IF101-A"}, testutil.Actor)
	assert.True(t, core.IsConflict(err))

	f.approve(t)
	class := testutil.CreateClass(t, f.env, f.rps.ID, "IF101-A")
	student := testutil.CreateUser(t, f.env, "Student", "student@test.id", "student")
	testutil.Enroll(t, f.env, class.ID, student.ID)

	_, err = svc.Enroll(ctx, assessment.NewEnrollment{ClassID: class.ID, StudentID: student.ID}, testutil.Actor)
	assert.True(t, core.IsConflict(err))

	_, err = svc.Enroll(ctx, assessment.NewEnrollment{ClassID: "missing", StudentID: student.ID}, testutil.Actor)
	assert.True(t, core.IsNotFound(err))

	list, err := svc.Enrollments(ctx, class.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].FinalGrade.Valid)
}

func TestService_SubmitScore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	env := f.env
	svc := env.Assessments

	tugas := testutil.CreateTemplate(t, env, f.rps.ID, f.cpmks[0].ID, "tugas", 60)
	f.approve(t)
	class := testutil.CreateClass(t, env, f.rps.ID, "IF101-A")
	other := testutil.CreateClass(t, env, f.rps.ID, "IF101-B")
	student := testutil.CreateUser(t, env, "Student", "student@test.id", "student")
	e := testutil.Enroll(t, env, class.ID, student.ID)

	c1 := testutil.CreateComponent(t, env, class.ID, tugas.ID, "Tugas 1", 100, 60)
	c2 := testutil.CreateComponent(t, env, class.ID, "", "Kuis dadakan", 50, 40)
	foreign := testutil.CreateComponent(t, env, other.ID, "", "Tugas B", 100, 50)

	enrollment := testutil.SubmitScore(t, env, e.ID, c1.ID, 80)
	require.True(t, enrollment.FinalGrade.Valid)
	assert.InDelta(t, 48, enrollment.FinalGrade.Float64, 1e-9)
	assert.Equal(t, "C", enrollment.LetterGrade.String)

	enrollment = testutil.SubmitScore(t, env, e.ID, c2.ID, 45)
	assert.InDelta(t, 84, enrollment.FinalGrade.Float64, 1e-9)
	assert.Equal(t, "A-", enrollment.LetterGrade.String)

	// resubmission overwrites the score
	enrollment = testutil.SubmitScore(t, env, e.ID, c1.ID, 100)
	assert.InDelta(t, 96, enrollment.FinalGrade.Float64, 1e-9)
	scores, err := svc.Scores(ctx, e.ID)
	require.NoError(t, err)
	assert.Len(t, scores, 2)

	tests := []struct {
		name    string
		n       assessment.NewScore
		checkFn func(error) bool
	}{
		{name: "above max score", n: assessment.NewScore{EnrollmentID: e.ID, ComponentID: c2.ID, Raw: 50.5, GradedBy: f.lead}, checkFn: core.IsValidation},
		{name: "negative", n: assessment.NewScore{EnrollmentID: e.ID, ComponentID: c2.ID, Raw: -1, GradedBy: f.lead}, checkFn: core.IsValidation},
		{name: "component of another class", n: assessment.NewScore{EnrollmentID: e.ID, ComponentID: foreign.ID, Raw: 10, GradedBy: f.lead}, checkFn: core.IsConflict},
		{name: "unknown enrollment", n: assessment.NewScore{EnrollmentID: "missing", ComponentID: c2.ID, Raw: 10, GradedBy: f.lead}, checkFn: core.IsNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.SubmitScore(ctx, tt.n)
			require.Error(t, err)
			assert.True(t, tt.checkFn(err), "unexpected error: %v", err)
		})
	}

	// a rejected score leaves the grade untouched
	got, err := svc.GetEnrollment(ctx, e.ID)
	require.NoError(t, err)
	assert.InDelta(t, 96, got.FinalGrade.Float64, 1e-9)
}

var errGradeWrite = errors.New("grade write failed")

// unwritableGrades refuses to store final grades.
type unwritableGrades struct {
	achievement.Repository
}

func (unwritableGrades) SetFinalGrade(context.Context, string, null.Float64, null.String, time.Time, ...core.DBExecutor) error {
	return errGradeWrite
}

func TestService_SubmitScore_rollback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	env := f.env

	tugas := testutil.CreateTemplate(t, env, f.rps.ID, f.cpmks[0].ID, "tugas", 60)
	f.approve(t)
	class := testutil.CreateClass(t, env, f.rps.ID, "IF101-A")
	student := testutil.CreateUser(t, env, "Student", "student@test.id", "student")
	e := testutil.Enroll(t, env, class.ID, student.ID)
	c1 := testutil.CreateComponent(t, env, class.ID, tugas.ID, "Tugas 1", 100, 60)
	c2 := testutil.CreateComponent(t, env, class.ID, "", "Kuis dadakan", 50, 40)
	before := testutil.SubmitScore(t, env, e.ID, c1.ID, 80)

	agg := achievement.NewAggregator(achievement.Deps{
		DB:     env.DB,
		Repo:   unwritableGrades{sqlxrepos.NewAchievementRepository(env.DB)},
		Logger: env.Logger,
	})
	svc := assessment.NewService(assessment.Deps{
		DB:        env.DB,
		Repo:      sqlxrepos.NewAssessmentRepository(env.DB),
		Grades:    agg,
		Validator: env.Validator,
		Audit:     env.Audit,
	})

	tests := []struct {
		name        string
		componentID string
		raw         float64
	}{
		{"overwrite", c1.ID, 100},
		{"new score", c2.ID, 45},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.SubmitScore(ctx, assessment.NewScore{EnrollmentID: e.ID, ComponentID: tt.componentID, Raw: tt.raw, GradedBy: f.lead})
			assert.ErrorIs(t, err, errGradeWrite)

			scores, err := env.Assessments.Scores(ctx, e.ID)
			require.NoError(t, err)
			require.Len(t, scores, 1)
			assert.Equal(t, c1.ID, scores[0].ComponentID)
			assert.Equal(t, 80.0, scores[0].Raw)

			got, err := env.Assessments.GetEnrollment(ctx, e.ID)
			require.NoError(t, err)
			assert.Equal(t, before.FinalGrade, got.FinalGrade)
			assert.Equal(t, before.LetterGrade, got.LetterGrade)
		})
	}
}

func TestService_ComponentChangesRecompute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	env := f.env
	svc := env.Assessments

	f.approve(t)
	class := testutil.CreateClass(t, env, f.rps.ID, "IF101-A")
	student := testutil.CreateUser(t, env, "Student", "student@test.id", "student")
	e := testutil.Enroll(t, env, class.ID, student.ID)
	c1 := testutil.CreateComponent(t, env, class.ID, "", "UTS", 100, 50)
	c2 := testutil.CreateComponent(t, env, class.ID, "", "UAS", 100, 50)
	testutil.SubmitScore(t, env, e.ID, c1.ID, 80)
	testutil.SubmitScore(t, env, e.ID, c2.ID, 60)

	weight := 30.0
	_, err := svc.UpdateComponent(ctx, c1.ID, assessment.UpdateComponent{Weight: &weight}, testutil.Actor)
	require.NoError(t, err)
	got, err := svc.GetEnrollment(ctx, e.ID)
	require.NoError(t, err)
	assert.InDelta(t, 54, got.FinalGrade.Float64, 1e-9) // 24 + 30

	require.NoError(t, svc.DeleteComponent(ctx, c2.ID, testutil.Actor))
	got, err = svc.GetEnrollment(ctx, e.ID)
	require.NoError(t, err)
	assert.InDelta(t, 24, got.FinalGrade.Float64, 1e-9)

	require.NoError(t, svc.DeleteComponent(ctx, c1.ID, testutil.Actor))
	got, err = svc.GetEnrollment(ctx, e.ID)
	require.NoError(t, err)
	assert.False(t, got.FinalGrade.Valid)
	assert.False(t, got.LetterGrade.Valid)
}

func TestService_BulkSubmitScores(t *testing.T) {
	f := newFixture(t)
	env := f.env
	f.approve(t)
	class := testutil.CreateClass(t, env, f.rps.ID, "IF101-A")
	c := testutil.CreateComponent(t, env, class.ID, "", "UTS", 100, 100)
	var items []assessment.NewScore
	for i, email := range []string{"a@test.id", "b@test.id"} {
		s := testutil.CreateUser(t, env, "Student", email, "student")
		e := testutil.Enroll(t, env, class.ID, s.ID)
		items = append(items, assessment.NewScore{EnrollmentID: e.ID, ComponentID: c.ID, Raw: float64(70 + i*10), GradedBy: f.lead})
	}
	items = append(items, assessment.NewScore{EnrollmentID: "missing", ComponentID: c.ID, Raw: 10, GradedBy: f.lead})

	report := env.Assessments.BulkSubmitScores(context.Background(), items)
	assert.Len(t, report.Success, 2)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "missing", report.Failed[0].Item.EnrollmentID)
}
