// Package di assembles the services of the application around one database handle.
package di

import (
	"time"

	"github.com/obeworks/kurikulum/core"
	"github.com/obeworks/kurikulum/core/achievement"
	"github.com/obeworks/kurikulum/core/assessment"
	"github.com/obeworks/kurikulum/core/curriculum"
	"github.com/obeworks/kurikulum/core/outcome"
	"github.com/obeworks/kurikulum/core/rps"
	"github.com/obeworks/kurikulum/core/user"
	auditsvc "github.com/obeworks/kurikulum/services/audit"
	notifysvc "github.com/obeworks/kurikulum/services/notify"
	"github.com/obeworks/kurikulum/storage/database/sqlxrepos"
)

type Options struct {
	Conf   *core.Config
	DB     core.DB
	Logger core.Logger
	Email  core.EmailService
	Now    func() time.Time // defaults to time.Now
}

// Container holds the wired services; Curriculum is the entry point of callers.
type Container struct {
	Validator   *core.Validator
	Audit       core.AuditSink
	AuditRepo   core.AuditRepository
	Users       *user.Service
	RPS         *rps.Service
	Outcomes    *outcome.Service
	Assessments *assessment.Service
	Achievement *achievement.Aggregator
	Curriculum  *curriculum.Service
}

func NewValidator() *core.Validator {
	v := core.NewValidator()
	rps.InitValidators(v)
	outcome.InitValidators(v)
	user.InitValidators(v)
	return v
}

func NewContainer(opts Options) *Container {
	conf, db := opts.Conf, opts.DB
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	validate := NewValidator()
	auditRepo := sqlxrepos.NewAuditRepository(db)
	audit := auditsvc.NewSink(auditRepo, opts.Logger)

	users := user.NewService(sqlxrepos.NewUserRepository(db), validate)
	rpsSvc := rps.NewService(rps.Deps{
		DB:        db,
		Repo:      sqlxrepos.NewRPSRepository(db),
		Validator: validate,
		Audit:     audit,
		Now:       now,
	})
	outcomes := outcome.NewService(outcome.Deps{
		DB:        db,
		Repo:      sqlxrepos.NewOutcomeRepository(db),
		Validator: validate,
		Audit:     audit,
		MinCPMK:   conf.Grading.MinCPMK,
		MaxCPMK:   conf.Grading.MaxCPMK,
		Now:       now,
	})
	agg := achievement.NewAggregator(achievement.Deps{
		DB:       db,
		Repo:     sqlxrepos.NewAchievementRepository(db),
		Logger:   opts.Logger,
		PassMark: conf.Grading.PassMark,
		Now:      now,
	})
	assessments := assessment.NewService(assessment.Deps{
		DB:        db,
		Repo:      sqlxrepos.NewAssessmentRepository(db),
		Grades:    agg,
		Validator: validate,
		Audit:     audit,
		Now:       now,
	})
	agg.SetThresholds(assessments)

	var notifier core.Notifier
	if opts.Email != nil {
		notifier = notifysvc.NewEmailNotifier(users, opts.Email)
	}
	facade := curriculum.NewService(curriculum.Deps{
		DB:                     db,
		Repo:                   sqlxrepos.NewCurriculumRepository(db),
		RPS:                    rpsSvc,
		Outcomes:               outcomes,
		Assessments:            assessments,
		Achievement:            agg,
		Users:                  users,
		Notifier:               notifier,
		Audit:                  audit,
		Logger:                 opts.Logger,
		Now:                    now,
		EnforceTemplateWeights: conf.Grading.EnforceTemplateWeights,
	})

	return &Container{
		Validator:   validate,
		Audit:       audit,
		AuditRepo:   auditRepo,
		Users:       users,
		RPS:         rpsSvc,
		Outcomes:    outcomes,
		Assessments: assessments,
		Achievement: agg,
		Curriculum:  facade,
	}
}
