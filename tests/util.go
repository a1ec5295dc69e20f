// Package testutil sets up sqlite-backed services and seeds entities for tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap/zaptest"

	"github.com/obeworks/kurikulum/apps/di"
	"github.com/obeworks/kurikulum/core"
	"github.com/obeworks/kurikulum/core/assessment"
	"github.com/obeworks/kurikulum/core/outcome"
	"github.com/obeworks/kurikulum/core/rps"
	"github.com/obeworks/kurikulum/core/user"
	appfs "github.com/obeworks/kurikulum/fs"
	emailsvc "github.com/obeworks/kurikulum/services/email"
	logsvc "github.com/obeworks/kurikulum/services/logger"
	"github.com/obeworks/kurikulum/storage/database"
)

// Actor is the actor id recorded by the helpers.
const Actor = "test-actor"

// PrepareDB opens a migrated sqlite database in a temporary directory.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	conf := core.NewTestConfig()
	conf.Database.Path = filepath.Join(t.TempDir(), "kurikulum.db")

	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db.DB, conf.Database.Engine); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

func NewLogger(t *testing.T, conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(zaptest.NewLogger(t), conf)
}

// Env is a fully wired application over a fresh database.
type Env struct {
	Conf   *core.Config
	DB     *sqlx.DB
	Logger core.Logger
	Email  *emailsvc.ConsoleServiceMock
	*di.Container
}

func NewEnv(t *testing.T, configure ...func(conf *core.Config)) *Env {
	t.Helper()
	conf := core.NewTestConfig()
	for _, fn := range configure {
		fn(conf)
	}
	db := PrepareDB(t)
	logger := NewLogger(t, conf)

	if err := core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, true); err != nil {
		t.Fatalf("NewEnv() failed: %v", err)
	}
	email := emailsvc.NewConsoleServiceMock(conf, logger)

	return &Env{
		Conf:   conf,
		DB:     db,
		Logger: logger,
		Email:  email,
		Container: di.NewContainer(di.Options{
			Conf:   conf,
			DB:     db,
			Logger: logger,
			Email:  email,
		}),
	}
}

func CreateUser(t *testing.T, env *Env, name, email string, roles ...string) user.User {
	t.Helper()
	usr, err := env.Users.Create(context.Background(), user.NewUser{Name: name, Email: email, Roles: roles})
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateRPS(t *testing.T, env *Env, courseCode, curriculumID, leadID string) rps.RPS {
	t.Helper()
	r, err := env.RPS.Create(context.Background(), rps.NewRPS{
		CourseCode:      courseCode,
		CurriculumID:    curriculumID,
		Term:            "ganjil",
		AcademicYear:    "2024/2025",
		LeadDeveloperID: leadID,
		Content:         rps.Content{Description: courseCode + " course plan"},
	}, Actor)
	if err != nil {
		t.Fatalf("CreateRPS() failed: %v", err)
	}
	return r
}

// Approvers creates the three reviewers of an approval cycle.
func Approvers(t *testing.T, env *Env) (rps.Approvers, []user.User) {
	t.Helper()
	users := []user.User{
		CreateUser(t, env, "Program Head", "head@test.id", user.RoleProgramHead),
		CreateUser(t, env, "Quality Unit", "quality@test.id", user.RoleQuality),
		CreateUser(t, env, "Dean", "dean@test.id", user.RoleAdmin),
	}
	return rps.Approvers{Level1: users[0].ID, Level2: users[1].ID, Level3: users[2].ID}, users
}

// ApproveRPS submits the RPS and approves every level of the new cycle.
func ApproveRPS(t *testing.T, env *Env, id string, approvers rps.Approvers) rps.RPS {
	t.Helper()
	ctx := context.Background()
	_, approvals, err := env.RPS.SubmitForApproval(ctx, id, approvers, Actor)
	if err != nil {
		t.Fatalf("ApproveRPS() failed: %v", err)
	}
	var res rps.DecisionResult
	for _, a := range approvals {
		res, err = env.RPS.ProcessApproval(ctx, a.ID, rps.ApprovalDecision{Decision: rps.DecisionApproved}, a.ApproverID)
		if err != nil {
			t.Fatalf("ApproveRPS() failed: %v", err)
		}
	}
	return res.RPS
}

func CreateCPL(t *testing.T, env *Env, curriculumID, code string) outcome.CPL {
	t.Helper()
	cpl, err := env.Outcomes.CreateCPL(context.Background(), outcome.NewCPL{
		CurriculumID: curriculumID,
		Code:         code,
		Description:  code + " learning outcome",
		Category:     outcome.CategoryKnowledge,
	}, Actor)
	if err != nil {
		t.Fatalf("CreateCPL() failed: %v", err)
	}
	return cpl
}

func CreateCPMK(t *testing.T, env *Env, rpsID, code string) outcome.CPMK {
	t.Helper()
	cpmk, err := env.Outcomes.CreateCPMK(context.Background(), outcome.NewCPMK{
		RPSID:       rpsID,
		Code:        code,
		Description: code + " course outcome",
	}, Actor)
	if err != nil {
		t.Fatalf("CreateCPMK() failed: %v", err)
	}
	return cpmk
}

func CreateMapping(t *testing.T, env *Env, cpmkID, cplID string, weight float64) outcome.Mapping {
	t.Helper()
	m, err := env.Outcomes.CreateMapping(context.Background(), outcome.NewMapping{CPMKID: cpmkID, CPLID: cplID, Weight: weight}, Actor)
	if err != nil {
		t.Fatalf("CreateMapping() failed: %v", err)
	}
	return m
}

func CreateTemplate(t *testing.T, env *Env, rpsID, cpmkID, typeID string, weight float64) assessment.Template {
	t.Helper()
	tmpl, err := env.Assessments.CreateTemplate(context.Background(), assessment.NewTemplate{
		RPSID:            rpsID,
		CPMKID:           cpmkID,
		AssessmentTypeID: typeID,
		Weight:           weight,
	}, Actor)
	if err != nil {
		t.Fatalf("CreateTemplate() failed: %v", err)
	}
	return tmpl
}

func CreateClass(t *testing.T, env *Env, rpsID, name string) assessment.Class {
	t.Helper()
	class, err := env.Assessments.CreateClass(context.Background(), assessment.NewClass{RPSID: rpsID, Name: name}, Actor)
	if err != nil {
		t.Fatalf("CreateClass() failed: %v", err)
	}
	return class
}

func Enroll(t *testing.T, env *Env, classID, studentID string) assessment.Enrollment {
	t.Helper()
	e, err := env.Assessments.Enroll(context.Background(), assessment.NewEnrollment{ClassID: classID, StudentID: studentID}, Actor)
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
	return e
}

func CreateComponent(t *testing.T, env *Env, classID, templateID, name string, maxScore, weight float64) assessment.Component {
	t.Helper()
	c, err := env.Assessments.CreateComponent(context.Background(), assessment.NewComponent{
		ClassID:    classID,
		TemplateID: templateID,
		Name:       name,
		MaxScore:   maxScore,
		Weight:     weight,
	}, Actor)
	if err != nil {
		t.Fatalf("CreateComponent() failed: %v", err)
	}
	return c
}

func SubmitScore(t *testing.T, env *Env, enrollmentID, componentID string, raw float64) assessment.Enrollment {
	t.Helper()
	_, e, err := env.Assessments.SubmitScore(context.Background(), assessment.NewScore{
		EnrollmentID: enrollmentID,
		ComponentID:  componentID,
		Raw:          raw,
		GradedBy:     Actor,
	})
	if err != nil {
		t.Fatalf("SubmitScore() failed: %v", err)
	}
	return e
}
