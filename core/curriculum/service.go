// Package curriculum composes the RPS, outcome, assessment and achievement services into the
// operations that span several of them.
package curriculum

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/obeworks/kurikulum/core"
	"github.com/obeworks/kurikulum/core/achievement"
	"github.com/obeworks/kurikulum/core/assessment"
	"github.com/obeworks/kurikulum/core/grading"
	"github.com/obeworks/kurikulum/core/outcome"
	"github.com/obeworks/kurikulum/core/rps"
	"github.com/obeworks/kurikulum/core/user"
)

var (
	// errors
	ErrRPSInUse        = errors.New("rps is used by at least one class")
	ErrTemplateWeights = errors.New("assessment template weights are incomplete")
)

type (
	// Repository holds the cascade deletes owned by the orchestration layer.
	Repository interface {
		CountClasses(ctx context.Context, rpsID string, exec ...core.DBExecutor) (int, error)
		DeleteMappingsByRPS(ctx context.Context, rpsID string, exec ...core.DBExecutor) error
		// DeleteTemplatesByRPS removes the templates of the RPS after detaching the components
		// instantiated from them.
		DeleteTemplatesByRPS(ctx context.Context, rpsID string, exec ...core.DBExecutor) error
		DeleteThresholdsByRPS(ctx context.Context, rpsID string, exec ...core.DBExecutor) error
		DeleteSubCPMKByRPS(ctx context.Context, rpsID string, exec ...core.DBExecutor) error
		DeleteCPMKByRPS(ctx context.Context, rpsID string, exec ...core.DBExecutor) error
	}

	Deps struct {
		DB          core.DB
		Repo        Repository
		RPS         *rps.Service
		Outcomes    *outcome.Service
		Assessments *assessment.Service
		Achievement *achievement.Aggregator
		Users       *user.Service
		Notifier    core.Notifier
		Audit       core.AuditSink
		Logger      core.Logger
		Now         func() time.Time

		// EnforceTemplateWeights refuses submission while template weights are invalid.
		EnforceTemplateWeights bool
	}

	// Service is the entry point of callers: it exposes every domain service and runs the
	// operations that need more than one of them.
	Service struct {
		db          core.DB
		repo        Repository
		rps         *rps.Service
		outcomes    *outcome.Service
		assessments *assessment.Service
		achievement *achievement.Aggregator
		users       *user.Service
		notifier    core.Notifier
		audit       core.AuditSink
		logger      core.Logger
		now         func() time.Time

		enforceWeights bool
	}

	// OutcomeReport is the CPMK and CPL attainment of one student in one class.
	OutcomeReport struct {
		Student     *user.User                    `json:"student,omitempty"`
		RPS         rps.RPS                       `json:"rps"`
		FinalGrade  *float64                      `json:"final_grade"`
		LetterGrade grading.Letter                `json:"letter_grade,omitempty"`
		CPMK        []achievement.CPMKAchievement `json:"cpmk"`
		CPL         []achievement.CPLAchievement  `json:"cpl"`
	}
)

func NewService(deps Deps) *Service {
	svc := &Service{
		db:             deps.DB,
		repo:           deps.Repo,
		rps:            deps.RPS,
		outcomes:       deps.Outcomes,
		assessments:    deps.Assessments,
		achievement:    deps.Achievement,
		users:          deps.Users,
		notifier:       deps.Notifier,
		audit:          deps.Audit,
		logger:         deps.Logger,
		now:            deps.Now,
		enforceWeights: deps.EnforceTemplateWeights,
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.audit == nil {
		svc.audit = core.NewNopAuditSink()
	}
	return svc
}

func (svc *Service) RPS() *rps.Service                    { return svc.rps }
func (svc *Service) Outcomes() *outcome.Service           { return svc.outcomes }
func (svc *Service) Assessments() *assessment.Service     { return svc.assessments }
func (svc *Service) Achievement() *achievement.Aggregator { return svc.achievement }
func (svc *Service) Users() *user.Service                 { return svc.users }

// DeleteRPS removes a draft RPS and everything it owns, in one transaction:
// mappings, templates, thresholds, sub-CPMK, CPMK, versions, approvals, then the RPS.
func (svc *Service) DeleteRPS(ctx context.Context, id string, actorID string) error {
	repo := svc.rps.Repo()
	var old rps.RPS
	err := core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if old, err = repo.GetRPS(ctx, id, tx); err != nil {
			return err
		}
		if _, err = rps.Transition(old.Status, rps.ActionDelete); err != nil {
			return err
		}
		classes, err := svc.repo.CountClasses(ctx, id, tx)
		if err != nil {
			return err
		}
		if classes > 0 {
			return core.NewConflictError(ErrRPSInUse)
		}

		steps := []func(context.Context, string, ...core.DBExecutor) error{
			svc.repo.DeleteMappingsByRPS,
			svc.repo.DeleteTemplatesByRPS,
			svc.repo.DeleteThresholdsByRPS,
			svc.repo.DeleteSubCPMKByRPS,
			svc.repo.DeleteCPMKByRPS,
			repo.DeleteVersions,
			repo.DeleteApprovals,
			repo.DeleteRPS,
		}
		for _, step := range steps {
			if err = step(ctx, id, tx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	svc.audit.Record(ctx, core.AuditEntry{Table: "rps", RecordID: id, Action: core.ActionDelete, OldValue: old, ActorID: actorID, At: svc.now().UTC()})
	return nil
}

// SubmitRPS sends an RPS for approval. With template weight enforcement on, submission is
// refused until the templates of every CPMK sum to 100.
func (svc *Service) SubmitRPS(ctx context.Context, id string, approvers rps.Approvers, actorID string) (rps.RPS, []rps.Approval, error) {
	if svc.enforceWeights {
		res, err := svc.assessments.ValidateTemplateWeights(ctx, id)
		if err != nil {
			return rps.RPS{}, nil, err
		}
		if !res.IsValid {
			msgs := make([]string, 0, len(res.Errors))
			for _, e := range res.Errors {
				msgs = append(msgs, e.Message)
			}
			return rps.RPS{}, nil, core.NewConflictError(errors.Wrap(ErrTemplateWeights, strings.Join(msgs, "; ")), "templates")
		}
	}
	return svc.rps.SubmitForApproval(ctx, id, approvers, actorID)
}

// ProcessApproval applies a review decision and notifies the lead developer when it
// approved the RPS or sent it back for revision. Notification failures are only logged.
func (svc *Service) ProcessApproval(ctx context.Context, approvalID string, ad rps.ApprovalDecision, actorID string) (rps.DecisionResult, error) {
	res, err := svc.rps.ProcessApproval(ctx, approvalID, ad, actorID)
	if err != nil {
		return rps.DecisionResult{}, err
	}
	if res.StatusChanged() && svc.notifier != nil {
		notice := core.RPSDecisionNotice{
			RPSID:           res.RPS.ID,
			CourseCode:      res.RPS.CourseCode,
			AcademicYear:    res.RPS.AcademicYear,
			Term:            res.RPS.Term,
			LeadDeveloperID: res.RPS.LeadDeveloperID,
			Status:          res.RPS.Status.String(),
			Decision:        string(ad.Decision),
			Level:           res.Approval.Level,
			Comment:         res.Approval.Comment,
			DecidedBy:       actorID,
			DecidedAt:       res.Approval.DecidedAt.Time,
		}
		if err = svc.notifier.NotifyRPSDecision(ctx, notice); err != nil && svc.logger != nil {
			svc.logger.Error("notifying rps decision", err, map[string]interface{}{"rps_id": res.RPS.ID})
		}
	}
	return res, nil
}

// StudentOutcomeReport lists the attainment of every CPMK of the enrollment's RPS and of
// every CPL reached through their mappings.
func (svc *Service) StudentOutcomeReport(ctx context.Context, enrollmentID, assessmentTypeID string) (OutcomeReport, error) {
	ar, err := svc.achievement.EnrollmentReport(ctx, enrollmentID, assessmentTypeID)
	if err != nil {
		return OutcomeReport{}, err
	}
	r, err := svc.rps.Get(ctx, ar.RPSID)
	if err != nil {
		return OutcomeReport{}, err
	}

	report := OutcomeReport{RPS: r, CPMK: ar.CPMK, CPL: ar.CPL}
	if ar.Enrollment.FinalGrade.Valid {
		grade := ar.Enrollment.FinalGrade.Float64
		report.FinalGrade = &grade
		report.LetterGrade = grading.Letter(ar.Enrollment.LetterGrade.String)
	}
	if svc.users != nil {
		student, err := svc.users.Get(ctx, ar.Enrollment.StudentID)
		switch {
		case err == nil:
			report.Student = &student
		case !core.IsNotFound(err):
			return OutcomeReport{}, err
		}
	}
	return report, nil
}
