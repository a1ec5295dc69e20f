package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/obeworks/kurikulum/core"
	"github.com/obeworks/kurikulum/core/assessment"
	"github.com/obeworks/kurikulum/core/rps"
)

const (
	templateColumns   = `id, rps_id, cpmk_id, assessment_type_id, weight, created_at, updated_at`
	thresholdColumns  = `id, rps_id, assessment_type_id, min_value, created_at, updated_at`
	classColumns      = `id, rps_id, name, created_at`
	enrollmentColumns = `id, class_id, student_id, final_grade, letter_grade, graded_at, created_at`
	componentColumns  = `id, class_id, template_id, name, max_score, weight, deadline, created_at, updated_at`
	scoreColumns      = `id, enrollment_id, component_id, raw, graded_by, graded_at`
)

type assessmentRepository struct {
	baseRepository
}

var _ assessment.Repository = (*assessmentRepository)(nil) // interface compliance check

func NewAssessmentRepository(db core.DBExecutor) *assessmentRepository {
	return &assessmentRepository{baseRepository{db: db}}
}

func (repo assessmentRepository) GetAssessmentType(ctx context.Context, id string, exec ...core.DBExecutor) (assessment.AssessmentType, error) {
	var t assessment.AssessmentType
	if err := get(ctx, repo.getExec(exec), &t, `SELECT id, code, name FROM assessment_types WHERE id = ?`, id); err != nil {
		return assessment.AssessmentType{}, trapNoRowsErr(err, "assessment type", id)
	}
	return t, nil
}

func (repo assessmentRepository) QueryAssessmentTypes(ctx context.Context, exec ...core.DBExecutor) ([]assessment.AssessmentType, error) {
	list := make([]assessment.AssessmentType, 0)
	if err := selectAll(ctx, repo.getExec(exec), &list, `SELECT id, code, name FROM assessment_types ORDER BY code`); err != nil {
		return nil, errors.Wrap(err, "querying assessment types")
	}
	return list, nil
}

func (repo assessmentRepository) RPSStatus(ctx context.Context, rpsID string, exec ...core.DBExecutor) (rps.Status, error) {
	var status rps.Status
	if err := get(ctx, repo.getExec(exec), &status, `SELECT status FROM rps WHERE id = ?`, rpsID); err != nil {
		return "", trapNoRowsErr(err, "rps", rpsID)
	}
	return status, nil
}

func (repo assessmentRepository) CPMKRPS(ctx context.Context, cpmkID string, exec ...core.DBExecutor) (string, error) {
	var rpsID string
	if err := get(ctx, repo.getExec(exec), &rpsID, `SELECT rps_id FROM cpmk WHERE id = ?`, cpmkID); err != nil {
		return "", trapNoRowsErr(err, "cpmk", cpmkID)
	}
	return rpsID, nil
}

// Templates

func (repo assessmentRepository) CreateTemplate(ctx context.Context, t assessment.Template, exec ...core.DBExecutor) error {
	q := `INSERT INTO assessment_templates (` + templateColumns + `)
		VALUES (:id, :rps_id, :cpmk_id, :assessment_type_id, :weight, :created_at, :updated_at)`
	return mapWriteErr(insert(ctx, repo.getExec(exec), q, t), "inserting assessment template", assessment.ErrTemplateExists)
}

func (repo assessmentRepository) GetTemplate(ctx context.Context, id string, exec ...core.DBExecutor) (assessment.Template, error) {
	var t assessment.Template
	if err := get(ctx, repo.getExec(exec), &t, `SELECT `+templateColumns+` FROM assessment_templates WHERE id = ?`, id); err != nil {
		return assessment.Template{}, trapNoRowsErr(err, "assessment template", id)
	}
	return t, nil
}

func (repo assessmentRepository) QueryTemplates(ctx context.Context, rpsID string, exec ...core.DBExecutor) ([]assessment.Template, error) {
	list := make([]assessment.Template, 0)
	q := `SELECT ` + templateColumns + ` FROM assessment_templates WHERE rps_id = ? ORDER BY cpmk_id, assessment_type_id`
	if err := selectAll(ctx, repo.getExec(exec), &list, q, rpsID); err != nil {
		return nil, errors.Wrap(err, "querying assessment templates")
	}
	return list, nil
}

func (repo assessmentRepository) TemplateExists(ctx context.Context, rpsID, cpmkID, typeID string, exec ...core.DBExecutor) (bool, error) {
	q := `SELECT id FROM assessment_templates WHERE rps_id = ? AND cpmk_id = ? AND assessment_type_id = ?`
	found, err := exists(ctx, repo.getExec(exec), q, rpsID, cpmkID, typeID)
	return found, errors.Wrap(err, "checking assessment template")
}

func (repo assessmentRepository) UpdateTemplate(ctx context.Context, t assessment.Template, exec ...core.DBExecutor) error {
	q := `UPDATE assessment_templates SET weight = :weight, updated_at = :updated_at WHERE id = :id`
	if err := updateOne(ctx, repo.getExec(exec), q, t, "assessment template", t.ID); err != nil {
		return errors.Wrap(err, "updating assessment template")
	}
	return nil
}

func (repo assessmentRepository) DeleteTemplate(ctx context.Context, id string, exec ...core.DBExecutor) error {
	e := repo.getExec(exec)
	if _, err := execute(ctx, e, `UPDATE assessment_components SET template_id = NULL WHERE template_id = ?`, id); err != nil {
		return errors.Wrap(err, "detaching assessment components")
	}
	return deleteOne(ctx, e, `DELETE FROM assessment_templates WHERE id = ?`, "assessment template", id)
}

func (repo assessmentRepository) TemplateWeightTotals(ctx context.Context, rpsID string, exec ...core.DBExecutor) ([]assessment.CPMKWeight, error) {
	q := `SELECT m.id AS cpmk_id, m.code AS cpmk_code, COALESCE(SUM(t.weight), 0) AS total, COUNT(t.id) AS templates
		FROM cpmk m
		LEFT JOIN assessment_templates t ON t.cpmk_id = m.id AND t.rps_id = m.rps_id
		WHERE m.rps_id = ?
		GROUP BY m.id, m.code
		ORDER BY m.code`
	list := make([]assessment.CPMKWeight, 0)
	if err := selectAll(ctx, repo.getExec(exec), &list, q, rpsID); err != nil {
		return nil, errors.Wrap(err, "summing template weights")
	}
	return list, nil
}

// Thresholds

func (repo assessmentRepository) CreateThreshold(ctx context.Context, t assessment.Threshold, exec ...core.DBExecutor) error {
	q := `INSERT INTO thresholds (` + thresholdColumns + `)
		VALUES (:id, :rps_id, :assessment_type_id, :min_value, :created_at, :updated_at)`
	return mapWriteErr(insert(ctx, repo.getExec(exec), q, t), "inserting threshold", assessment.ErrThresholdExists)
}

func (repo assessmentRepository) GetThreshold(ctx context.Context, id string, exec ...core.DBExecutor) (assessment.Threshold, error) {
	var t assessment.Threshold
	if err := get(ctx, repo.getExec(exec), &t, `SELECT `+thresholdColumns+` FROM thresholds WHERE id = ?`, id); err != nil {
		return assessment.Threshold{}, trapNoRowsErr(err, "threshold", id)
	}
	return t, nil
}

func (repo assessmentRepository) FindThreshold(ctx context.Context, rpsID, typeID string, exec ...core.DBExecutor) (assessment.Threshold, error) {
	var t assessment.Threshold
	q := `SELECT ` + thresholdColumns + ` FROM thresholds WHERE rps_id = ? AND assessment_type_id = ?`
	if err := get(ctx, repo.getExec(exec), &t, q, rpsID, typeID); err != nil {
		return assessment.Threshold{}, trapNoRowsErr(err, "threshold", typeID)
	}
	return t, nil
}

func (repo assessmentRepository) QueryThresholds(ctx context.Context, rpsID string, exec ...core.DBExecutor) ([]assessment.Threshold, error) {
	list := make([]assessment.Threshold, 0)
	q := `SELECT ` + thresholdColumns + ` FROM thresholds WHERE rps_id = ? ORDER BY assessment_type_id`
	if err := selectAll(ctx, repo.getExec(exec), &list, q, rpsID); err != nil {
		return nil, errors.Wrap(err, "querying thresholds")
	}
	return list, nil
}

func (repo assessmentRepository) UpdateThreshold(ctx context.Context, t assessment.Threshold, exec ...core.DBExecutor) error {
	q := `UPDATE thresholds SET min_value = :min_value, updated_at = :updated_at WHERE id = :id`
	if err := updateOne(ctx, repo.getExec(exec), q, t, "threshold", t.ID); err != nil {
		return errors.Wrap(err, "updating threshold")
	}
	return nil
}

func (repo assessmentRepository) DeleteThreshold(ctx context.Context, id string, exec ...core.DBExecutor) error {
	return deleteOne(ctx, repo.getExec(exec), `DELETE FROM thresholds WHERE id = ?`, "threshold", id)
}

// Classes & enrollments

func (repo assessmentRepository) CreateClass(ctx context.Context, c assessment.Class, exec ...core.DBExecutor) error {
	q := `INSERT INTO classes (` + classColumns + `) VALUES (:id, :rps_id, :name, :created_at)`
	if err := insert(ctx, repo.getExec(exec), q, c); err != nil {
		return errors.Wrap(err, "inserting class")
	}
	return nil
}

func getClass(ctx context.Context, exec core.DBExecutor, id string) (assessment.Class, error) {
	var c assessment.Class
	if err := get(ctx, exec, &c, `SELECT `+classColumns+` FROM classes WHERE id = ?`, id); err != nil {
		return assessment.Class{}, trapNoRowsErr(err, "class", id)
	}
	return c, nil
}

func (repo assessmentRepository) GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (assessment.Class, error) {
	return getClass(ctx, repo.getExec(exec), id)
}

func (repo assessmentRepository) CreateEnrollment(ctx context.Context, e assessment.Enrollment, exec ...core.DBExecutor) error {
	q := `INSERT INTO enrollments (` + enrollmentColumns + `)
		VALUES (:id, :class_id, :student_id, :final_grade, :letter_grade, :graded_at, :created_at)`
	return mapWriteErr(insert(ctx, repo.getExec(exec), q, e), "inserting enrollment", assessment.ErrAlreadyEnrolled)
}

func getEnrollment(ctx context.Context, exec core.DBExecutor, id string) (assessment.Enrollment, error) {
	var e assessment.Enrollment
	if err := get(ctx, exec, &e, `SELECT `+enrollmentColumns+` FROM enrollments WHERE id = ?`, id); err != nil {
		return assessment.Enrollment{}, trapNoRowsErr(err, "enrollment", id)
	}
	return e, nil
}

func queryEnrollments(ctx context.Context, exec core.DBExecutor, classID string) ([]assessment.Enrollment, error) {
	list := make([]assessment.Enrollment, 0)
	q := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE class_id = ? ORDER BY student_id`
	if err := selectAll(ctx, exec, &list, q, classID); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	return list, nil
}

func (repo assessmentRepository) GetEnrollment(ctx context.Context, id string, exec ...core.DBExecutor) (assessment.Enrollment, error) {
	return getEnrollment(ctx, repo.getExec(exec), id)
}

func (repo assessmentRepository) QueryEnrollments(ctx context.Context, classID string, exec ...core.DBExecutor) ([]assessment.Enrollment, error) {
	return queryEnrollments(ctx, repo.getExec(exec), classID)
}

// Components

func (repo assessmentRepository) CreateComponent(ctx context.Context, c assessment.Component, exec ...core.DBExecutor) error {
	q := `INSERT INTO assessment_components (` + componentColumns + `)
		VALUES (:id, :class_id, :template_id, :name, :max_score, :weight, :deadline, :created_at, :updated_at)`
	if err := insert(ctx, repo.getExec(exec), q, c); err != nil {
		return errors.Wrap(err, "inserting assessment component")
	}
	return nil
}

func (repo assessmentRepository) GetComponent(ctx context.Context, id string, exec ...core.DBExecutor) (assessment.Component, error) {
	var c assessment.Component
	if err := get(ctx, repo.getExec(exec), &c, `SELECT `+componentColumns+` FROM assessment_components WHERE id = ?`, id); err != nil {
		return assessment.Component{}, trapNoRowsErr(err, "assessment component", id)
	}
	return c, nil
}

func (repo assessmentRepository) QueryComponents(ctx context.Context, classID string, exec ...core.DBExecutor) ([]assessment.Component, error) {
	list := make([]assessment.Component, 0)
	q := `SELECT ` + componentColumns + ` FROM assessment_components WHERE class_id = ? ORDER BY created_at, name`
	if err := selectAll(ctx, repo.getExec(exec), &list, q, classID); err != nil {
		return nil, errors.Wrap(err, "querying assessment components")
	}
	return list, nil
}

func (repo assessmentRepository) UpdateComponent(ctx context.Context, c assessment.Component, exec ...core.DBExecutor) error {
	q := `UPDATE assessment_components SET name = :name, max_score = :max_score, weight = :weight, deadline = :deadline,
		updated_at = :updated_at WHERE id = :id`
	if err := updateOne(ctx, repo.getExec(exec), q, c, "assessment component", c.ID); err != nil {
		return errors.Wrap(err, "updating assessment component")
	}
	return nil
}

func (repo assessmentRepository) DeleteComponent(ctx context.Context, id string, exec ...core.DBExecutor) error {
	return deleteOne(ctx, repo.getExec(exec), `DELETE FROM assessment_components WHERE id = ?`, "assessment component", id)
}

// Scores

func (repo assessmentRepository) GetScore(ctx context.Context, enrollmentID, componentID string, exec ...core.DBExecutor) (assessment.Score, error) {
	var s assessment.Score
	q := `SELECT ` + scoreColumns + ` FROM scores WHERE enrollment_id = ? AND component_id = ?`
	if err := get(ctx, repo.getExec(exec), &s, q, enrollmentID, componentID); err != nil {
		return assessment.Score{}, trapNoRowsErr(err, "score", componentID)
	}
	return s, nil
}

func (repo assessmentRepository) QueryScores(ctx context.Context, enrollmentID string, exec ...core.DBExecutor) ([]assessment.Score, error) {
	list := make([]assessment.Score, 0)
	q := `SELECT ` + scoreColumns + ` FROM scores WHERE enrollment_id = ? ORDER BY graded_at, id`
	if err := selectAll(ctx, repo.getExec(exec), &list, q, enrollmentID); err != nil {
		return nil, errors.Wrap(err, "querying scores")
	}
	return list, nil
}

func (repo assessmentRepository) ScoredEnrollments(ctx context.Context, componentID string, exec ...core.DBExecutor) ([]string, error) {
	ids := make([]string, 0)
	if err := selectAll(ctx, repo.getExec(exec), &ids, `SELECT enrollment_id FROM scores WHERE component_id = ? ORDER BY enrollment_id`, componentID); err != nil {
		return nil, errors.Wrap(err, "querying scored enrollments")
	}
	return ids, nil
}

func (repo assessmentRepository) UpsertScore(ctx context.Context, s assessment.Score, exec ...core.DBExecutor) error {
	q := `INSERT INTO scores (` + scoreColumns + `) VALUES (:id, :enrollment_id, :component_id, :raw, :graded_by, :graded_at)
		ON CONFLICT (enrollment_id, component_id)
		DO UPDATE SET raw = excluded.raw, graded_by = excluded.graded_by, graded_at = excluded.graded_at`
	if err := insert(ctx, repo.getExec(exec), q, s); err != nil {
		return errors.Wrap(err, "upserting score")
	}
	return nil
}

func (repo assessmentRepository) DeleteScoresByComponent(ctx context.Context, componentID string, exec ...core.DBExecutor) error {
	if _, err := execute(ctx, repo.getExec(exec), `DELETE FROM scores WHERE component_id = ?`, componentID); err != nil {
		return errors.Wrap(err, "deleting scores")
	}
	return nil
}
