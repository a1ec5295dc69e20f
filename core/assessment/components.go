package assessment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/obeworks/kurikulum/core"
)

// Components

// CreateComponent adds an assessment to a class. When instantiated from a template,
// the template must belong to the RPS of the class.
func (svc *Service) CreateComponent(ctx context.Context, n NewComponent, actorID string) (Component, error) {
	n.ClassID = core.CleanString(n.ClassID)
	n.TemplateID = core.CleanString(n.TemplateID)
	n.Name = core.CleanString(n.Name)
	if err := svc.validate.Struct(n); err != nil {
		return Component{}, err
	}

	now := svc.timestamp()
	c := Component{
		ID:        uuid.New().String(),
		ClassID:   n.ClassID,
		Name:      n.Name,
		MaxScore:  n.MaxScore,
		Weight:    n.Weight,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if n.TemplateID != "" {
		c.TemplateID = null.StringFrom(n.TemplateID)
	}
	if n.Deadline != nil {
		c.Deadline = null.TimeFrom(n.Deadline.UTC())
	}

	err := core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		class, err := svc.repo.GetClass(ctx, n.ClassID, tx)
		if err != nil {
			return err
		}
		if c.TemplateID.Valid {
			t, err := svc.repo.GetTemplate(ctx, c.TemplateID.String, tx)
			if err != nil {
				return err
			}
			if t.RPSID != class.RPSID {
				return core.NewConflictError(ErrTemplateNotInRPS, "template_id")
			}
		}
		return svc.repo.CreateComponent(ctx, c, tx)
	})
	if err != nil {
		return Component{}, err
	}
	svc.record(ctx, tableComponents, c.ID, core.ActionCreate, nil, c, actorID)
	return c, nil
}

func (svc *Service) Components(ctx context.Context, classID string) ([]Component, error) {
	if _, err := svc.repo.GetClass(ctx, classID); err != nil {
		return nil, err
	}
	return svc.repo.QueryComponents(ctx, classID)
}

// UpdateComponent edits a component. A change of weight or max score recomputes the
// final grade of every enrollment scored on it, in the same transaction.
func (svc *Service) UpdateComponent(ctx context.Context, id string, uc UpdateComponent, actorID string) (Component, error) {
	if uc.Name != nil {
		name := core.CleanString(*uc.Name)
		uc.Name = &name
	}
	if err := svc.validate.Struct(uc); err != nil {
		return Component{}, err
	}

	var old, c Component
	err := core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if old, err = svc.repo.GetComponent(ctx, id, tx); err != nil {
			return err
		}
		c = old
		if uc.Name != nil {
			c.Name = *uc.Name
		}
		if uc.MaxScore != nil {
			c.MaxScore = *uc.MaxScore
		}
		if uc.Weight != nil {
			c.Weight = *uc.Weight
		}
		if uc.Deadline != nil {
			c.Deadline = null.TimeFrom(uc.Deadline.UTC())
		}
		c.UpdatedAt = svc.timestamp()
		if err = svc.repo.UpdateComponent(ctx, c, tx); err != nil {
			return err
		}
		if core.FloatEquals(old.Weight, c.Weight) && core.FloatEquals(old.MaxScore, c.MaxScore) {
			return nil
		}
		return svc.recomputeScored(ctx, id, tx)
	})
	if err != nil {
		return Component{}, err
	}
	svc.record(ctx, tableComponents, id, core.ActionUpdate, old, c, actorID)
	return c, nil
}

// DeleteComponent removes a component with its scores and recomputes the affected final grades.
func (svc *Service) DeleteComponent(ctx context.Context, id string, actorID string) error {
	var old Component
	err := core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if old, err = svc.repo.GetComponent(ctx, id, tx); err != nil {
			return err
		}
		enrollments, err := svc.repo.ScoredEnrollments(ctx, id, tx)
		if err != nil {
			return err
		}
		if err = svc.repo.DeleteScoresByComponent(ctx, id, tx); err != nil {
			return err
		}
		if err = svc.repo.DeleteComponent(ctx, id, tx); err != nil {
			return err
		}
		for _, enrollmentID := range enrollments {
			if _, err = svc.grades.RecomputeFinalGrade(ctx, enrollmentID, tx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	svc.record(ctx, tableComponents, id, core.ActionDelete, old, nil, actorID)
	return nil
}

func (svc *Service) recomputeScored(ctx context.Context, componentID string, tx core.DBExecutor) error {
	enrollments, err := svc.repo.ScoredEnrollments(ctx, componentID, tx)
	if err != nil {
		return err
	}
	for _, enrollmentID := range enrollments {
		if _, err = svc.grades.RecomputeFinalGrade(ctx, enrollmentID, tx); err != nil {
			return err
		}
	}
	return nil
}

// Scores

// SubmitScore records (or overwrites) the score of an enrollment on a component and
// refreshes the enrollment final grade in the same transaction.
func (svc *Service) SubmitScore(ctx context.Context, n NewScore) (Score, Enrollment, error) {
	n.EnrollmentID = core.CleanString(n.EnrollmentID)
	n.ComponentID = core.CleanString(n.ComponentID)
	n.GradedBy = core.CleanString(n.GradedBy)
	if err := svc.validate.Struct(n); err != nil {
		return Score{}, Enrollment{}, err
	}

	var (
		old      Score
		existing bool
		s        Score
		e        Enrollment
	)
	err := core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		enrollment, err := svc.repo.GetEnrollment(ctx, n.EnrollmentID, tx)
		if err != nil {
			return err
		}
		c, err := svc.repo.GetComponent(ctx, n.ComponentID, tx)
		if err != nil {
			return err
		}
		if c.ClassID != enrollment.ClassID {
			return core.NewConflictError(ErrClassMismatch, "component_id")
		}
		if n.Raw > c.MaxScore && !core.FloatEquals(n.Raw, c.MaxScore) {
			return core.NewFieldError("raw", fmt.Sprintf("must not exceed the max score %g", c.MaxScore))
		}

		old, err = svc.repo.GetScore(ctx, n.EnrollmentID, n.ComponentID, tx)
		switch {
		case err == nil:
			existing = true
		case !core.IsNotFound(err):
			return err
		}

		s = Score{
			ID:           uuid.New().String(),
			EnrollmentID: n.EnrollmentID,
			ComponentID:  n.ComponentID,
			Raw:          n.Raw,
			GradedBy:     n.GradedBy,
			GradedAt:     svc.timestamp(),
		}
		if existing {
			s.ID = old.ID
		}
		if err = svc.repo.UpsertScore(ctx, s, tx); err != nil {
			return err
		}
		e, err = svc.grades.RecomputeFinalGrade(ctx, n.EnrollmentID, tx)
		return err
	})
	if err != nil {
		return Score{}, Enrollment{}, err
	}

	if existing {
		svc.record(ctx, tableScores, s.ID, core.ActionUpdate, old, s, n.GradedBy)
	} else {
		svc.record(ctx, tableScores, s.ID, core.ActionCreate, nil, s, n.GradedBy)
	}
	return s, e, nil
}

// BulkSubmitScores submits every item on its own; failures are reported, not fatal.
func (svc *Service) BulkSubmitScores(ctx context.Context, items []NewScore) ScoreReport {
	report := ScoreReport{Success: []Score{}, Failed: []ScoreFailure{}}
	for _, item := range items {
		s, _, err := svc.SubmitScore(ctx, item)
		if err != nil {
			report.Failed = append(report.Failed, ScoreFailure{Item: item, Error: err.Error()})
			continue
		}
		report.Success = append(report.Success, s)
	}
	return report
}

func (svc *Service) Scores(ctx context.Context, enrollmentID string) ([]Score, error) {
	if _, err := svc.repo.GetEnrollment(ctx, enrollmentID); err != nil {
		return nil, err
	}
	return svc.repo.QueryScores(ctx, enrollmentID)
}
