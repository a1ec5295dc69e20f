package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/obeworks/kurikulum/core"
	"github.com/obeworks/kurikulum/core/achievement"
	"github.com/obeworks/kurikulum/core/assessment"
	"github.com/obeworks/kurikulum/core/outcome"
)

type achievementRepository struct {
	baseRepository
}

var _ achievement.Repository = (*achievementRepository)(nil) // interface compliance check

func NewAchievementRepository(db core.DBExecutor) *achievementRepository {
	return &achievementRepository{baseRepository{db: db}}
}

func (repo achievementRepository) GetEnrollment(ctx context.Context, id string, exec ...core.DBExecutor) (assessment.Enrollment, error) {
	return getEnrollment(ctx, repo.getExec(exec), id)
}

func (repo achievementRepository) QueryEnrollments(ctx context.Context, classID string, exec ...core.DBExecutor) ([]assessment.Enrollment, error) {
	return queryEnrollments(ctx, repo.getExec(exec), classID)
}

func (repo achievementRepository) GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (assessment.Class, error) {
	return getClass(ctx, repo.getExec(exec), id)
}

func (repo achievementRepository) EnrollmentRPS(ctx context.Context, enrollmentID string, exec ...core.DBExecutor) (string, error) {
	var rpsID string
	q := `SELECT c.rps_id FROM enrollments e JOIN classes c ON c.id = e.class_id WHERE e.id = ?`
	if err := get(ctx, repo.getExec(exec), &rpsID, q, enrollmentID); err != nil {
		return "", trapNoRowsErr(err, "enrollment", enrollmentID)
	}
	return rpsID, nil
}

func (repo achievementRepository) ScoredComponents(ctx context.Context, enrollmentID string, exec ...core.DBExecutor) ([]assessment.ScoredComponent, error) {
	q := `SELECT c.id AS component_id, t.cpmk_id AS cpmk_id, s.raw AS raw, c.max_score AS max_score, c.weight AS weight
		FROM scores s
		JOIN assessment_components c ON c.id = s.component_id
		LEFT JOIN assessment_templates t ON t.id = c.template_id
		WHERE s.enrollment_id = ?
		ORDER BY c.created_at, c.id`
	list := make([]assessment.ScoredComponent, 0)
	if err := selectAll(ctx, repo.getExec(exec), &list, q, enrollmentID); err != nil {
		return nil, errors.Wrap(err, "querying scored components")
	}
	return list, nil
}

func (repo achievementRepository) SetFinalGrade(ctx context.Context, enrollmentID string, grade null.Float64, letter null.String, at time.Time, exec ...core.DBExecutor) error {
	gradedAt := null.NewTime(at, grade.Valid)
	res, err := execute(ctx, repo.getExec(exec), `UPDATE enrollments SET final_grade = ?, letter_grade = ?, graded_at = ? WHERE id = ?`,
		grade, letter, gradedAt, enrollmentID)
	if err != nil {
		return errors.Wrap(err, "storing final grade")
	}
	return checkAffected(res, "enrollment", enrollmentID)
}

func (repo achievementRepository) GetCPL(ctx context.Context, id string, exec ...core.DBExecutor) (outcome.CPL, error) {
	return getCPL(ctx, repo.getExec(exec), id)
}

func (repo achievementRepository) GetCPMK(ctx context.Context, id string, exec ...core.DBExecutor) (outcome.CPMK, error) {
	return getCPMK(ctx, repo.getExec(exec), id)
}

func (repo achievementRepository) QueryCPMK(ctx context.Context, rpsID string, exec ...core.DBExecutor) ([]outcome.CPMK, error) {
	return queryCPMK(ctx, repo.getExec(exec), rpsID)
}

func (repo achievementRepository) MappingsByCPL(ctx context.Context, cplID string, exec ...core.DBExecutor) ([]outcome.Mapping, error) {
	return queryMappings(ctx, repo.getExec(exec), "cpl_id", cplID)
}

func (repo achievementRepository) MappingsByRPS(ctx context.Context, rpsID string, exec ...core.DBExecutor) ([]outcome.Mapping, error) {
	q := `SELECT m.id, m.cpmk_id, m.cpl_id, m.weight, m.created_at, m.updated_at
		FROM cpmk_cpl m JOIN cpmk c ON c.id = m.cpmk_id
		WHERE c.rps_id = ?
		ORDER BY m.cpl_id, c.ord, c.code`
	list := make([]outcome.Mapping, 0)
	if err := selectAll(ctx, repo.getExec(exec), &list, q, rpsID); err != nil {
		return nil, errors.Wrap(err, "querying rps mappings")
	}
	return list, nil
}

func (repo achievementRepository) ClassGradeStats(ctx context.Context, classID string, exec ...core.DBExecutor) (achievement.GradeStats, error) {
	q := `SELECT COUNT(*) AS enrolled, COUNT(final_grade) AS graded, AVG(final_grade) AS average,
		MIN(final_grade) AS min_grade, MAX(final_grade) AS max_grade
		FROM enrollments WHERE class_id = ?`
	var stats achievement.GradeStats
	if err := get(ctx, repo.getExec(exec), &stats, q, classID); err != nil {
		return achievement.GradeStats{}, errors.Wrap(err, "aggregating final grades")
	}
	return stats, nil
}

func (repo achievementRepository) LetterDistribution(ctx context.Context, classID string, exec ...core.DBExecutor) ([]achievement.LetterCount, error) {
	q := `SELECT letter_grade, COUNT(*) AS count FROM enrollments
		WHERE class_id = ? AND letter_grade IS NOT NULL
		GROUP BY letter_grade`
	list := make([]achievement.LetterCount, 0)
	if err := selectAll(ctx, repo.getExec(exec), &list, q, classID); err != nil {
		return nil, errors.Wrap(err, "counting letter grades")
	}
	return list, nil
}
