package assessment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/obeworks/kurikulum/core"
	"github.com/obeworks/kurikulum/core/rps"
)

const (
	tableClasses     = "classes"
	tableEnrollments = "enrollments"
	tableTemplates   = "assessment_templates"
	tableThresholds  = "thresholds"
	tableComponents  = "assessment_components"
	tableScores      = "scores"
)

var (
	// errors
	ErrTemplateExists   = errors.New("a template for this cpmk and assessment type already exists")
	ErrThresholdExists  = errors.New("a threshold for this assessment type already exists in the rps")
	ErrCPMKNotInRPS     = errors.New("cpmk does not belong to the rps")
	ErrTemplateNotInRPS = errors.New("template does not belong to the rps of the class")
	ErrClassMismatch    = errors.New("component does not belong to the class of the enrollment")
	ErrRPSNotInUse      = errors.New("classes can only be opened for an approved or active rps")
	ErrAlreadyEnrolled  = errors.New("the student is already enrolled in the class")
)

type (
	Repository interface {
		GetAssessmentType(ctx context.Context, id string, exec ...core.DBExecutor) (AssessmentType, error)
		QueryAssessmentTypes(ctx context.Context, exec ...core.DBExecutor) ([]AssessmentType, error)
		// RPSStatus returns the status of an RPS, or a *core.NotFoundError.
		RPSStatus(ctx context.Context, rpsID string, exec ...core.DBExecutor) (rps.Status, error)
		// CPMKRPS returns the RPS owning a CPMK, or a *core.NotFoundError.
		CPMKRPS(ctx context.Context, cpmkID string, exec ...core.DBExecutor) (string, error)

		CreateTemplate(ctx context.Context, t Template, exec ...core.DBExecutor) error
		GetTemplate(ctx context.Context, id string, exec ...core.DBExecutor) (Template, error)
		QueryTemplates(ctx context.Context, rpsID string, exec ...core.DBExecutor) ([]Template, error)
		TemplateExists(ctx context.Context, rpsID, cpmkID, typeID string, exec ...core.DBExecutor) (bool, error)
		UpdateTemplate(ctx context.Context, t Template, exec ...core.DBExecutor) error
		// DeleteTemplate removes a template and detaches the components instantiated from it.
		DeleteTemplate(ctx context.Context, id string, exec ...core.DBExecutor) error
		// TemplateWeightTotals sums template weights per CPMK of the RPS, CPMK without templates included.
		TemplateWeightTotals(ctx context.Context, rpsID string, exec ...core.DBExecutor) ([]CPMKWeight, error)

		CreateThreshold(ctx context.Context, t Threshold, exec ...core.DBExecutor) error
		GetThreshold(ctx context.Context, id string, exec ...core.DBExecutor) (Threshold, error)
		// FindThreshold returns the threshold of (rps, assessment type), or a *core.NotFoundError.
		FindThreshold(ctx context.Context, rpsID, typeID string, exec ...core.DBExecutor) (Threshold, error)
		QueryThresholds(ctx context.Context, rpsID string, exec ...core.DBExecutor) ([]Threshold, error)
		UpdateThreshold(ctx context.Context, t Threshold, exec ...core.DBExecutor) error
		DeleteThreshold(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateClass(ctx context.Context, c Class, exec ...core.DBExecutor) error
		GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (Class, error)
		CreateEnrollment(ctx context.Context, e Enrollment, exec ...core.DBExecutor) error
		GetEnrollment(ctx context.Context, id string, exec ...core.DBExecutor) (Enrollment, error)
		QueryEnrollments(ctx context.Context, classID string, exec ...core.DBExecutor) ([]Enrollment, error)

		CreateComponent(ctx context.Context, c Component, exec ...core.DBExecutor) error
		GetComponent(ctx context.Context, id string, exec ...core.DBExecutor) (Component, error)
		QueryComponents(ctx context.Context, classID string, exec ...core.DBExecutor) ([]Component, error)
		UpdateComponent(ctx context.Context, c Component, exec ...core.DBExecutor) error
		DeleteComponent(ctx context.Context, id string, exec ...core.DBExecutor) error

		GetScore(ctx context.Context, enrollmentID, componentID string, exec ...core.DBExecutor) (Score, error)
		QueryScores(ctx context.Context, enrollmentID string, exec ...core.DBExecutor) ([]Score, error)
		// ScoredEnrollments lists the enrollments holding a score on the component.
		ScoredEnrollments(ctx context.Context, componentID string, exec ...core.DBExecutor) ([]string, error)
		// UpsertScore inserts the score or overwrites the one of the same (enrollment, component).
		UpsertScore(ctx context.Context, s Score, exec ...core.DBExecutor) error
		DeleteScoresByComponent(ctx context.Context, componentID string, exec ...core.DBExecutor) error
	}

	// GradeRecomputer refreshes the final grade of an enrollment within the caller's transaction.
	GradeRecomputer interface {
		RecomputeFinalGrade(ctx context.Context, enrollmentID string, exec ...core.DBExecutor) (Enrollment, error)
	}

	Deps struct {
		DB        core.DB
		Repo      Repository
		Grades    GradeRecomputer
		Validator *core.Validator
		Audit     core.AuditSink
		Now       func() time.Time
	}

	Service struct {
		db       core.DB
		repo     Repository
		grades   GradeRecomputer
		validate *core.Validator
		audit    core.AuditSink
		now      func() time.Time
	}
)

func NewService(deps Deps) *Service {
	svc := &Service{
		db:       deps.DB,
		repo:     deps.Repo,
		grades:   deps.Grades,
		validate: deps.Validator,
		audit:    deps.Audit,
		now:      deps.Now,
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.audit == nil {
		svc.audit = core.NewNopAuditSink()
	}
	return svc
}

func (svc *Service) Repo() Repository {
	return svc.repo
}

func (svc *Service) timestamp() time.Time {
	return svc.now().UTC()
}

func (svc *Service) record(ctx context.Context, table, id, action string, oldValue, newValue interface{}, actorID string) {
	svc.audit.Record(ctx, core.AuditEntry{Table: table, RecordID: id, Action: action, OldValue: oldValue, NewValue: newValue, ActorID: actorID, At: svc.timestamp()})
}

// checkEditable fails unless templates of the RPS may still change.
func (svc *Service) checkEditable(ctx context.Context, rpsID string, exec core.DBExecutor) error {
	status, err := svc.repo.RPSStatus(ctx, rpsID, exec)
	if err != nil {
		return err
	}
	if !rps.CanTransition(status, rps.ActionUpdate) {
		return core.NewTransitionError("rps", status.String(), "edit assessment templates")
	}
	return nil
}

func (svc *Service) AssessmentTypes(ctx context.Context) ([]AssessmentType, error) {
	return svc.repo.QueryAssessmentTypes(ctx)
}

// Classes

// CreateClass opens a class for an approved or active RPS.
func (svc *Service) CreateClass(ctx context.Context, n NewClass, actorID string) (Class, error) {
	n.RPSID = core.CleanString(n.RPSID)
	n.Name = core.CleanString(n.Name)
	if err := svc.validate.Struct(n); err != nil {
		return Class{}, err
	}

	c := Class{ID: uuid.New().String(), RPSID: n.RPSID, Name: n.Name, CreatedAt: svc.timestamp()}
	err := core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		status, err := svc.repo.RPSStatus(ctx, n.RPSID, tx)
		if err != nil {
			return err
		}
		if status != rps.StatusApproved && status != rps.StatusActive {
			return core.NewConflictError(ErrRPSNotInUse, "rps_id")
		}
		return svc.repo.CreateClass(ctx, c, tx)
	})
	if err != nil {
		return Class{}, err
	}
	svc.record(ctx, tableClasses, c.ID, core.ActionCreate, nil, c, actorID)
	return c, nil
}

func (svc *Service) GetClass(ctx context.Context, id string) (Class, error) {
	return svc.repo.GetClass(ctx, id)
}

func (svc *Service) Enroll(ctx context.Context, n NewEnrollment, actorID string) (Enrollment, error) {
	n.ClassID = core.CleanString(n.ClassID)
	n.StudentID = core.CleanString(n.StudentID)
	if err := svc.validate.Struct(n); err != nil {
		return Enrollment{}, err
	}

	e := Enrollment{ID: uuid.New().String(), ClassID: n.ClassID, StudentID: n.StudentID, CreatedAt: svc.timestamp()}
	err := core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if _, err := svc.repo.GetClass(ctx, n.ClassID, tx); err != nil {
			return err
		}
		enrolled, err := svc.repo.QueryEnrollments(ctx, n.ClassID, tx)
		if err != nil {
			return err
		}
		for _, other := range enrolled {
			if other.StudentID == n.StudentID {
				return core.NewConflictError(ErrAlreadyEnrolled, "student_id")
			}
		}
		return svc.repo.CreateEnrollment(ctx, e, tx)
	})
	if err != nil {
		return Enrollment{}, err
	}
	svc.record(ctx, tableEnrollments, e.ID, core.ActionCreate, nil, e, actorID)
	return e, nil
}

func (svc *Service) GetEnrollment(ctx context.Context, id string) (Enrollment, error) {
	return svc.repo.GetEnrollment(ctx, id)
}

func (svc *Service) Enrollments(ctx context.Context, classID string) ([]Enrollment, error) {
	if _, err := svc.repo.GetClass(ctx, classID); err != nil {
		return nil, err
	}
	return svc.repo.QueryEnrollments(ctx, classID)
}

// Templates

func (svc *Service) CreateTemplate(ctx context.Context, n NewTemplate, actorID string) (Template, error) {
	n.RPSID = core.CleanString(n.RPSID)
	n.CPMKID = core.CleanString(n.CPMKID)
	n.AssessmentTypeID = core.CleanString(n.AssessmentTypeID, true /* lower */)
	if err := svc.validate.Struct(n); err != nil {
		return Template{}, err
	}

	now := svc.timestamp()
	t := Template{
		ID:               uuid.New().String(),
		RPSID:            n.RPSID,
		CPMKID:           n.CPMKID,
		AssessmentTypeID: n.AssessmentTypeID,
		Weight:           n.Weight,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	err := core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if err := svc.checkEditable(ctx, n.RPSID, tx); err != nil {
			return err
		}
		owner, err := svc.repo.CPMKRPS(ctx, n.CPMKID, tx)
		if err != nil {
			return err
		}
		if owner != n.RPSID {
			return core.NewConflictError(ErrCPMKNotInRPS, "cpmk_id")
		}
		if _, err = svc.repo.GetAssessmentType(ctx, n.AssessmentTypeID, tx); err != nil {
			return err
		}
		exists, err := svc.repo.TemplateExists(ctx, n.RPSID, n.CPMKID, n.AssessmentTypeID, tx)
		if err != nil {
			return err
		}
		if exists {
			return core.NewConflictError(ErrTemplateExists)
		}
		return svc.repo.CreateTemplate(ctx, t, tx)
	})
	if err != nil {
		return Template{}, err
	}
	svc.record(ctx, tableTemplates, t.ID, core.ActionCreate, nil, t, actorID)
	return t, nil
}

func (svc *Service) Templates(ctx context.Context, rpsID string) ([]Template, error) {
	if _, err := svc.repo.RPSStatus(ctx, rpsID); err != nil {
		return nil, err
	}
	return svc.repo.QueryTemplates(ctx, rpsID)
}

func (svc *Service) UpdateTemplateWeight(ctx context.Context, id string, weight float64, actorID string) (Template, error) {
	if err := svc.validate.Validate.Var(weight, "gte=0,lte=100"); err != nil {
		return Template{}, core.NewFieldError("weight", "must be between 0 and 100")
	}

	var old, t Template
	err := core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if old, err = svc.repo.GetTemplate(ctx, id, tx); err != nil {
			return err
		}
		if err = svc.checkEditable(ctx, old.RPSID, tx); err != nil {
			return err
		}
		t = old
		t.Weight = weight
		t.UpdatedAt = svc.timestamp()
		return svc.repo.UpdateTemplate(ctx, t, tx)
	})
	if err != nil {
		return Template{}, err
	}
	svc.record(ctx, tableTemplates, id, core.ActionUpdate, old, t, actorID)
	return t, nil
}

func (svc *Service) DeleteTemplate(ctx context.Context, id string, actorID string) error {
	var old Template
	err := core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if old, err = svc.repo.GetTemplate(ctx, id, tx); err != nil {
			return err
		}
		if err = svc.checkEditable(ctx, old.RPSID, tx); err != nil {
			return err
		}
		return svc.repo.DeleteTemplate(ctx, id, tx)
	})
	if err != nil {
		return err
	}
	svc.record(ctx, tableTemplates, id, core.ActionDelete, old, nil, actorID)
	return nil
}

// Thresholds

func (svc *Service) CreateThreshold(ctx context.Context, n NewThreshold, actorID string) (Threshold, error) {
	n.RPSID = core.CleanString(n.RPSID)
	n.AssessmentTypeID = core.CleanString(n.AssessmentTypeID, true /* lower */)
	if err := svc.validate.Struct(n); err != nil {
		return Threshold{}, err
	}

	now := svc.timestamp()
	t := Threshold{
		ID:               uuid.New().String(),
		RPSID:            n.RPSID,
		AssessmentTypeID: n.AssessmentTypeID,
		MinValue:         n.MinValue,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	err := core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if _, err := svc.repo.RPSStatus(ctx, n.RPSID, tx); err != nil {
			return err
		}
		if _, err := svc.repo.GetAssessmentType(ctx, n.AssessmentTypeID, tx); err != nil {
			return err
		}
		_, err := svc.repo.FindThreshold(ctx, n.RPSID, n.AssessmentTypeID, tx)
		switch {
		case err == nil:
			return core.NewConflictError(ErrThresholdExists, "assessment_type_id")
		case !core.IsNotFound(err):
			return err
		}
		return svc.repo.CreateThreshold(ctx, t, tx)
	})
	if err != nil {
		return Threshold{}, err
	}
	svc.record(ctx, tableThresholds, t.ID, core.ActionCreate, nil, t, actorID)
	return t, nil
}

func (svc *Service) Thresholds(ctx context.Context, rpsID string) ([]Threshold, error) {
	if _, err := svc.repo.RPSStatus(ctx, rpsID); err != nil {
		return nil, err
	}
	return svc.repo.QueryThresholds(ctx, rpsID)
}

func (svc *Service) UpdateThreshold(ctx context.Context, id string, minValue float64, actorID string) (Threshold, error) {
	if err := svc.validate.Validate.Var(minValue, "gte=0,lte=100"); err != nil {
		return Threshold{}, core.NewFieldError("min_value", "must be between 0 and 100")
	}

	var old, t Threshold
	err := core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if old, err = svc.repo.GetThreshold(ctx, id, tx); err != nil {
			return err
		}
		t = old
		t.MinValue = minValue
		t.UpdatedAt = svc.timestamp()
		return svc.repo.UpdateThreshold(ctx, t, tx)
	})
	if err != nil {
		return Threshold{}, err
	}
	svc.record(ctx, tableThresholds, id, core.ActionUpdate, old, t, actorID)
	return t, nil
}

func (svc *Service) DeleteThreshold(ctx context.Context, id string, actorID string) error {
	old, err := svc.repo.GetThreshold(ctx, id)
	if err != nil {
		return err
	}
	if err = svc.repo.DeleteThreshold(ctx, id); err != nil {
		return err
	}
	svc.record(ctx, tableThresholds, id, core.ActionDelete, old, nil, actorID)
	return nil
}

// ThresholdFor returns the configured minimum of (rps, assessment type); ok is false if none is configured.
func (svc *Service) ThresholdFor(ctx context.Context, rpsID, typeID string) (float64, bool, error) {
	typeID = core.CleanString(typeID, true /* lower */)
	t, err := svc.repo.FindThreshold(ctx, core.CleanString(rpsID), typeID)
	if err != nil {
		if core.IsNotFound(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return t.MinValue, true, nil
}

// MeetsThreshold compares value with the threshold of (rps, assessment type).
// An unconfigured threshold passes.
func (svc *Service) MeetsThreshold(ctx context.Context, rpsID, typeID string, value float64) (bool, error) {
	minValue, ok, err := svc.ThresholdFor(ctx, rpsID, typeID)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return value >= minValue, nil
}
