package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/obeworks/kurikulum/core"
	"github.com/obeworks/kurikulum/core/curriculum"
)

type curriculumRepository struct {
	baseRepository
}

var _ curriculum.Repository = (*curriculumRepository)(nil) // interface compliance check

func NewCurriculumRepository(db core.DBExecutor) *curriculumRepository {
	return &curriculumRepository{baseRepository{db: db}}
}

func (repo curriculumRepository) CountClasses(ctx context.Context, rpsID string, exec ...core.DBExecutor) (int, error) {
	var n int
	if err := get(ctx, repo.getExec(exec), &n, `SELECT COUNT(*) FROM classes WHERE rps_id = ?`, rpsID); err != nil {
		return 0, errors.Wrap(err, "counting classes")
	}
	return n, nil
}

func (repo curriculumRepository) run(ctx context.Context, exec []core.DBExecutor, msg, query, rpsID string) error {
	if _, err := execute(ctx, repo.getExec(exec), query, rpsID); err != nil {
		return errors.Wrap(err, msg)
	}
	return nil
}

func (repo curriculumRepository) DeleteMappingsByRPS(ctx context.Context, rpsID string, exec ...core.DBExecutor) error {
	return repo.run(ctx, exec, "deleting rps mappings",
		`DELETE FROM cpmk_cpl WHERE cpmk_id IN (SELECT id FROM cpmk WHERE rps_id = ?)`, rpsID)
}

func (repo curriculumRepository) DeleteTemplatesByRPS(ctx context.Context, rpsID string, exec ...core.DBExecutor) error {
	err := repo.run(ctx, exec, "detaching assessment components",
		`UPDATE assessment_components SET template_id = NULL
		WHERE template_id IN (SELECT id FROM assessment_templates WHERE rps_id = ?)`, rpsID)
	if err != nil {
		return err
	}
	return repo.run(ctx, exec, "deleting rps templates", `DELETE FROM assessment_templates WHERE rps_id = ?`, rpsID)
}

func (repo curriculumRepository) DeleteThresholdsByRPS(ctx context.Context, rpsID string, exec ...core.DBExecutor) error {
	return repo.run(ctx, exec, "deleting rps thresholds", `DELETE FROM thresholds WHERE rps_id = ?`, rpsID)
}

func (repo curriculumRepository) DeleteSubCPMKByRPS(ctx context.Context, rpsID string, exec ...core.DBExecutor) error {
	return repo.run(ctx, exec, "deleting rps sub-cpmk",
		`DELETE FROM sub_cpmk WHERE cpmk_id IN (SELECT id FROM cpmk WHERE rps_id = ?)`, rpsID)
}

func (repo curriculumRepository) DeleteCPMKByRPS(ctx context.Context, rpsID string, exec ...core.DBExecutor) error {
	return repo.run(ctx, exec, "deleting rps cpmk", `DELETE FROM cpmk WHERE rps_id = ?`, rpsID)
}
