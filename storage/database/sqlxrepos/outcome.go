package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/obeworks/kurikulum/core"
	"github.com/obeworks/kurikulum/core/outcome"
)

const (
	cplColumns     = `id, curriculum_id, code, description, category, ord, is_active, created_at, updated_at`
	cpmkColumns    = `id, rps_id, code, description, ord, created_at, updated_at`
	subCPMKColumns = `id, cpmk_id, code, description, indicator, ord, created_at, updated_at`
	mappingColumns = `id, cpmk_id, cpl_id, weight, created_at, updated_at`
)

type outcomeRepository struct {
	baseRepository
}

var _ outcome.Repository = (*outcomeRepository)(nil) // interface compliance check

func NewOutcomeRepository(db core.DBExecutor) *outcomeRepository {
	return &outcomeRepository{baseRepository{db: db}}
}

// CPL

func (repo outcomeRepository) CreateCPL(ctx context.Context, cpl outcome.CPL, exec ...core.DBExecutor) error {
	q := `INSERT INTO cpl (` + cplColumns + `) VALUES (:id, :curriculum_id, :code, :description, :category, :ord,
		:is_active, :created_at, :updated_at)`
	return mapWriteErr(insert(ctx, repo.getExec(exec), q, cpl), "inserting cpl", outcome.ErrCPLCodeExists)
}

func getCPL(ctx context.Context, exec core.DBExecutor, id string) (outcome.CPL, error) {
	var cpl outcome.CPL
	if err := get(ctx, exec, &cpl, `SELECT `+cplColumns+` FROM cpl WHERE id = ?`, id); err != nil {
		return outcome.CPL{}, trapNoRowsErr(err, "cpl", id)
	}
	return cpl, nil
}

func (repo outcomeRepository) GetCPL(ctx context.Context, id string, exec ...core.DBExecutor) (outcome.CPL, error) {
	return getCPL(ctx, repo.getExec(exec), id)
}

func (repo outcomeRepository) QueryCPL(ctx context.Context, filter outcome.CPLQueryFilter, exec ...core.DBExecutor) ([]outcome.CPL, error) {
	var where whereClause
	if filter.CurriculumID != "" {
		where.add("curriculum_id = ?", filter.CurriculumID)
	}
	if filter.Category != "" {
		where.add("category = ?", filter.Category)
	}
	if filter.ActiveOnly {
		where.add("is_active = ?", true)
	}

	list := make([]outcome.CPL, 0)
	q := `SELECT ` + cplColumns + ` FROM cpl` + where.String() + ` ORDER BY curriculum_id, ord, code`
	if err := selectAll(ctx, repo.getExec(exec), &list, q, where.args...); err != nil {
		return nil, errors.Wrap(err, "querying cpl")
	}
	return list, nil
}

func (repo outcomeRepository) UpdateCPL(ctx context.Context, cpl outcome.CPL, exec ...core.DBExecutor) error {
	q := `UPDATE cpl SET code = :code, description = :description, category = :category, ord = :ord,
		is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	return mapWriteErr(updateOne(ctx, repo.getExec(exec), q, cpl, "cpl", cpl.ID), "updating cpl", outcome.ErrCPLCodeExists)
}

func (repo outcomeRepository) DeleteCPL(ctx context.Context, id string, exec ...core.DBExecutor) error {
	return deleteOne(ctx, repo.getExec(exec), `DELETE FROM cpl WHERE id = ?`, "cpl", id)
}

func (repo outcomeRepository) CPLCodeExists(ctx context.Context, curriculumID, code, excludeID string, exec ...core.DBExecutor) (bool, error) {
	found, err := exists(ctx, repo.getExec(exec), `SELECT id FROM cpl WHERE curriculum_id = ? AND code = ? AND id <> ?`, curriculumID, code, excludeID)
	return found, errors.Wrap(err, "checking cpl code")
}

// CPMK

func (repo outcomeRepository) RPSCurriculum(ctx context.Context, rpsID string, exec ...core.DBExecutor) (string, error) {
	var curriculumID string
	if err := get(ctx, repo.getExec(exec), &curriculumID, `SELECT curriculum_id FROM rps WHERE id = ?`, rpsID); err != nil {
		return "", trapNoRowsErr(err, "rps", rpsID)
	}
	return curriculumID, nil
}

func (repo outcomeRepository) CreateCPMK(ctx context.Context, cpmk outcome.CPMK, exec ...core.DBExecutor) error {
	q := `INSERT INTO cpmk (` + cpmkColumns + `) VALUES (:id, :rps_id, :code, :description, :ord, :created_at, :updated_at)`
	return mapWriteErr(insert(ctx, repo.getExec(exec), q, cpmk), "inserting cpmk", outcome.ErrCPMKCodeExists)
}

func getCPMK(ctx context.Context, exec core.DBExecutor, id string) (outcome.CPMK, error) {
	var cpmk outcome.CPMK
	if err := get(ctx, exec, &cpmk, `SELECT `+cpmkColumns+` FROM cpmk WHERE id = ?`, id); err != nil {
		return outcome.CPMK{}, trapNoRowsErr(err, "cpmk", id)
	}
	return cpmk, nil
}

func queryCPMK(ctx context.Context, exec core.DBExecutor, rpsID string) ([]outcome.CPMK, error) {
	list := make([]outcome.CPMK, 0)
	if err := selectAll(ctx, exec, &list, `SELECT `+cpmkColumns+` FROM cpmk WHERE rps_id = ? ORDER BY ord, code`, rpsID); err != nil {
		return nil, errors.Wrap(err, "querying cpmk")
	}
	return list, nil
}

func (repo outcomeRepository) GetCPMK(ctx context.Context, id string, exec ...core.DBExecutor) (outcome.CPMK, error) {
	return getCPMK(ctx, repo.getExec(exec), id)
}

func (repo outcomeRepository) QueryCPMK(ctx context.Context, rpsID string, exec ...core.DBExecutor) ([]outcome.CPMK, error) {
	return queryCPMK(ctx, repo.getExec(exec), rpsID)
}

func (repo outcomeRepository) UpdateCPMK(ctx context.Context, cpmk outcome.CPMK, exec ...core.DBExecutor) error {
	q := `UPDATE cpmk SET code = :code, description = :description, ord = :ord, updated_at = :updated_at WHERE id = :id`
	return mapWriteErr(updateOne(ctx, repo.getExec(exec), q, cpmk, "cpmk", cpmk.ID), "updating cpmk", outcome.ErrCPMKCodeExists)
}

func (repo outcomeRepository) DeleteCPMK(ctx context.Context, id string, exec ...core.DBExecutor) error {
	return deleteOne(ctx, repo.getExec(exec), `DELETE FROM cpmk WHERE id = ?`, "cpmk", id)
}

func (repo outcomeRepository) CountCPMK(ctx context.Context, rpsID string, exec ...core.DBExecutor) (int, error) {
	var n int
	if err := get(ctx, repo.getExec(exec), &n, `SELECT COUNT(*) FROM cpmk WHERE rps_id = ?`, rpsID); err != nil {
		return 0, errors.Wrap(err, "counting cpmk")
	}
	return n, nil
}

func (repo outcomeRepository) CPMKCodeExists(ctx context.Context, rpsID, code, excludeID string, exec ...core.DBExecutor) (bool, error) {
	found, err := exists(ctx, repo.getExec(exec), `SELECT id FROM cpmk WHERE rps_id = ? AND code = ? AND id <> ?`, rpsID, code, excludeID)
	return found, errors.Wrap(err, "checking cpmk code")
}

// Sub-CPMK

func (repo outcomeRepository) CreateSubCPMK(ctx context.Context, sub outcome.SubCPMK, exec ...core.DBExecutor) error {
	q := `INSERT INTO sub_cpmk (` + subCPMKColumns + `) VALUES (:id, :cpmk_id, :code, :description, :indicator, :ord,
		:created_at, :updated_at)`
	return mapWriteErr(insert(ctx, repo.getExec(exec), q, sub), "inserting sub-cpmk", outcome.ErrSubCPMKCodeExists)
}

func (repo outcomeRepository) GetSubCPMK(ctx context.Context, id string, exec ...core.DBExecutor) (outcome.SubCPMK, error) {
	var sub outcome.SubCPMK
	if err := get(ctx, repo.getExec(exec), &sub, `SELECT `+subCPMKColumns+` FROM sub_cpmk WHERE id = ?`, id); err != nil {
		return outcome.SubCPMK{}, trapNoRowsErr(err, "sub-cpmk", id)
	}
	return sub, nil
}

func (repo outcomeRepository) QuerySubCPMK(ctx context.Context, cpmkID string, exec ...core.DBExecutor) ([]outcome.SubCPMK, error) {
	list := make([]outcome.SubCPMK, 0)
	q := `SELECT ` + subCPMKColumns + ` FROM sub_cpmk WHERE cpmk_id = ? ORDER BY ord, code`
	if err := selectAll(ctx, repo.getExec(exec), &list, q, cpmkID); err != nil {
		return nil, errors.Wrap(err, "querying sub-cpmk")
	}
	return list, nil
}

func (repo outcomeRepository) SubCPMKCodeExists(ctx context.Context, cpmkID, code string, exec ...core.DBExecutor) (bool, error) {
	found, err := exists(ctx, repo.getExec(exec), `SELECT id FROM sub_cpmk WHERE cpmk_id = ? AND code = ?`, cpmkID, code)
	return found, errors.Wrap(err, "checking sub-cpmk code")
}

func (repo outcomeRepository) DeleteSubCPMK(ctx context.Context, id string, exec ...core.DBExecutor) error {
	return deleteOne(ctx, repo.getExec(exec), `DELETE FROM sub_cpmk WHERE id = ?`, "sub-cpmk", id)
}

func (repo outcomeRepository) DeleteSubCPMKByCPMK(ctx context.Context, cpmkID string, exec ...core.DBExecutor) error {
	if _, err := execute(ctx, repo.getExec(exec), `DELETE FROM sub_cpmk WHERE cpmk_id = ?`, cpmkID); err != nil {
		return errors.Wrap(err, "deleting sub-cpmk")
	}
	return nil
}

// Mappings

func (repo outcomeRepository) CreateMapping(ctx context.Context, m outcome.Mapping, exec ...core.DBExecutor) error {
	q := `INSERT INTO cpmk_cpl (` + mappingColumns + `) VALUES (:id, :cpmk_id, :cpl_id, :weight, :created_at, :updated_at)`
	return mapWriteErr(insert(ctx, repo.getExec(exec), q, m), "inserting cpmk-cpl mapping", outcome.ErrMappingExists)
}

func (repo outcomeRepository) GetMapping(ctx context.Context, id string, exec ...core.DBExecutor) (outcome.Mapping, error) {
	var m outcome.Mapping
	if err := get(ctx, repo.getExec(exec), &m, `SELECT `+mappingColumns+` FROM cpmk_cpl WHERE id = ?`, id); err != nil {
		return outcome.Mapping{}, trapNoRowsErr(err, "cpmk-cpl mapping", id)
	}
	return m, nil
}

func (repo outcomeRepository) MappingExists(ctx context.Context, cpmkID, cplID string, exec ...core.DBExecutor) (bool, error) {
	found, err := exists(ctx, repo.getExec(exec), `SELECT id FROM cpmk_cpl WHERE cpmk_id = ? AND cpl_id = ?`, cpmkID, cplID)
	return found, errors.Wrap(err, "checking cpmk-cpl mapping")
}

func queryMappings(ctx context.Context, exec core.DBExecutor, column, id string) ([]outcome.Mapping, error) {
	list := make([]outcome.Mapping, 0)
	q := `SELECT ` + mappingColumns + ` FROM cpmk_cpl WHERE ` + column + ` = ? ORDER BY created_at, id`
	if err := selectAll(ctx, exec, &list, q, id); err != nil {
		return nil, errors.Wrap(err, "querying cpmk-cpl mappings")
	}
	return list, nil
}

func (repo outcomeRepository) QueryMappingsByCPMK(ctx context.Context, cpmkID string, exec ...core.DBExecutor) ([]outcome.Mapping, error) {
	return queryMappings(ctx, repo.getExec(exec), "cpmk_id", cpmkID)
}

func (repo outcomeRepository) QueryMappingsByCPL(ctx context.Context, cplID string, exec ...core.DBExecutor) ([]outcome.Mapping, error) {
	return queryMappings(ctx, repo.getExec(exec), "cpl_id", cplID)
}

func (repo outcomeRepository) UpdateMapping(ctx context.Context, m outcome.Mapping, exec ...core.DBExecutor) error {
	q := `UPDATE cpmk_cpl SET weight = :weight, updated_at = :updated_at WHERE id = :id`
	if err := updateOne(ctx, repo.getExec(exec), q, m, "cpmk-cpl mapping", m.ID); err != nil {
		return errors.Wrap(err, "updating cpmk-cpl mapping")
	}
	return nil
}

func (repo outcomeRepository) DeleteMapping(ctx context.Context, id string, exec ...core.DBExecutor) error {
	return deleteOne(ctx, repo.getExec(exec), `DELETE FROM cpmk_cpl WHERE id = ?`, "cpmk-cpl mapping", id)
}

func (repo outcomeRepository) DeleteMappingsByCPMK(ctx context.Context, cpmkID string, exec ...core.DBExecutor) error {
	if _, err := execute(ctx, repo.getExec(exec), `DELETE FROM cpmk_cpl WHERE cpmk_id = ?`, cpmkID); err != nil {
		return errors.Wrap(err, "deleting cpmk-cpl mappings")
	}
	return nil
}

func (repo outcomeRepository) DeleteMappingsByCPL(ctx context.Context, cplID string, exec ...core.DBExecutor) error {
	if _, err := execute(ctx, repo.getExec(exec), `DELETE FROM cpmk_cpl WHERE cpl_id = ?`, cplID); err != nil {
		return errors.Wrap(err, "deleting cpmk-cpl mappings")
	}
	return nil
}

func (repo outcomeRepository) DeleteTemplatesByCPMK(ctx context.Context, cpmkID string, exec ...core.DBExecutor) error {
	e := repo.getExec(exec)
	q := `UPDATE assessment_components SET template_id = NULL
		WHERE template_id IN (SELECT id FROM assessment_templates WHERE cpmk_id = ?)`
	if _, err := execute(ctx, e, q, cpmkID); err != nil {
		return errors.Wrap(err, "detaching assessment components")
	}
	if _, err := execute(ctx, e, `DELETE FROM assessment_templates WHERE cpmk_id = ?`, cpmkID); err != nil {
		return errors.Wrap(err, "deleting assessment templates")
	}
	return nil
}
