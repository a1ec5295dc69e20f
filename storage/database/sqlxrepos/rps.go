package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/obeworks/kurikulum/core"
	"github.com/obeworks/kurikulum/core/rps"
)

var errVersionExists = errors.New("this rps version already exists")

const rpsColumns = `id, course_code, curriculum_id, term, academic_year, status, lead_developer_id, content,
	created_by, updated_by, created_at, updated_at`

type rpsRepository struct {
	baseRepository
}

var _ rps.Repository = (*rpsRepository)(nil) // interface compliance check

func NewRPSRepository(db core.DBExecutor) *rpsRepository {
	return &rpsRepository{baseRepository{db: db}}
}

func (repo rpsRepository) CreateRPS(ctx context.Context, r rps.RPS, exec ...core.DBExecutor) error {
	q := `INSERT INTO rps (` + rpsColumns + `) VALUES (:id, :course_code, :curriculum_id, :term, :academic_year, :status,
		:lead_developer_id, :content, :created_by, :updated_by, :created_at, :updated_at)`
	if err := insert(ctx, repo.getExec(exec), q, r); err != nil {
		return errors.Wrap(err, "inserting rps")
	}
	return nil
}

func (repo rpsRepository) GetRPS(ctx context.Context, id string, exec ...core.DBExecutor) (rps.RPS, error) {
	var r rps.RPS
	if err := get(ctx, repo.getExec(exec), &r, `SELECT `+rpsColumns+` FROM rps WHERE id = ?`, id); err != nil {
		return rps.RPS{}, trapNoRowsErr(err, "rps", id)
	}
	return r, nil
}

func (repo rpsRepository) QueryRPS(ctx context.Context, filter rps.QueryFilter, exec ...core.DBExecutor) ([]rps.RPS, error) {
	var where whereClause
	if filter.CourseCode != "" {
		where.add("course_code = ?", filter.CourseCode)
	}
	if filter.CurriculumID != "" {
		where.add("curriculum_id = ?", filter.CurriculumID)
	}
	q := `SELECT ` + rpsColumns + ` FROM rps` + where.String()
	args := where.args
	if len(filter.Statuses) > 0 {
		kw := " WHERE "
		if len(where.conds) > 0 {
			kw = " AND "
		}
		var err error
		if q, args, err = sqlx.In(q+kw+"status IN (?)", append(args, filter.Statuses)...); err != nil {
			return nil, errors.Wrap(err, "building rps query")
		}
	}

	list := make([]rps.RPS, 0)
	if err := selectAll(ctx, repo.getExec(exec), &list, q+" ORDER BY course_code, academic_year, created_at", args...); err != nil {
		return nil, errors.Wrap(err, "querying rps")
	}
	return list, nil
}

func (repo rpsRepository) UpdateRPS(ctx context.Context, r rps.RPS, exec ...core.DBExecutor) error {
	q := `UPDATE rps SET term = :term, academic_year = :academic_year, lead_developer_id = :lead_developer_id,
		content = :content, updated_by = :updated_by, updated_at = :updated_at WHERE id = :id`
	if err := updateOne(ctx, repo.getExec(exec), q, r, "rps", r.ID); err != nil {
		return errors.Wrap(err, "updating rps")
	}
	return nil
}

func (repo rpsRepository) UpdateRPSStatus(ctx context.Context, id string, status rps.Status, updatedBy string, at time.Time, exec ...core.DBExecutor) error {
	res, err := execute(ctx, repo.getExec(exec), `UPDATE rps SET status = ?, updated_by = ?, updated_at = ? WHERE id = ?`, status, updatedBy, at, id)
	if err != nil {
		return errors.Wrap(err, "updating rps status")
	}
	return checkAffected(res, "rps", id)
}

func (repo rpsRepository) QueryActiveRPS(ctx context.Context, courseCode, curriculumID string, exec ...core.DBExecutor) ([]rps.RPS, error) {
	list := make([]rps.RPS, 0)
	q := `SELECT ` + rpsColumns + ` FROM rps WHERE course_code = ? AND curriculum_id = ? AND status = ?`
	if err := selectAll(ctx, repo.getExec(exec), &list, q, courseCode, curriculumID, rps.StatusActive); err != nil {
		return nil, errors.Wrap(err, "querying active rps")
	}
	return list, nil
}

func (repo rpsRepository) DeleteRPS(ctx context.Context, id string, exec ...core.DBExecutor) error {
	return deleteOne(ctx, repo.getExec(exec), `DELETE FROM rps WHERE id = ?`, "rps", id)
}

// Versions

const versionColumns = `id, rps_id, version, status, snapshot, created_by, is_active, created_at`

func (repo rpsRepository) CreateVersion(ctx context.Context, v rps.Version, exec ...core.DBExecutor) error {
	q := `INSERT INTO rps_versions (` + versionColumns + `)
		VALUES (:id, :rps_id, :version, :status, :snapshot, :created_by, :is_active, :created_at)`
	return mapWriteErr(insert(ctx, repo.getExec(exec), q, v), "inserting rps version", errVersionExists)
}

func (repo rpsRepository) GetVersion(ctx context.Context, rpsID string, number int, exec ...core.DBExecutor) (rps.Version, error) {
	var v rps.Version
	q := `SELECT ` + versionColumns + ` FROM rps_versions WHERE rps_id = ? AND version = ?`
	if err := get(ctx, repo.getExec(exec), &v, q, rpsID, number); err != nil {
		return rps.Version{}, trapNoRowsErr(err, "rps version", rpsID)
	}
	return v, nil
}

func (repo rpsRepository) GetActiveVersion(ctx context.Context, rpsID string, exec ...core.DBExecutor) (rps.Version, error) {
	var v rps.Version
	q := `SELECT ` + versionColumns + ` FROM rps_versions WHERE rps_id = ? AND is_active = ?`
	if err := get(ctx, repo.getExec(exec), &v, q, rpsID, true); err != nil {
		return rps.Version{}, trapNoRowsErr(err, "active rps version", rpsID)
	}
	return v, nil
}

func (repo rpsRepository) QueryVersions(ctx context.Context, rpsID string, exec ...core.DBExecutor) ([]rps.Version, error) {
	list := make([]rps.Version, 0)
	q := `SELECT ` + versionColumns + ` FROM rps_versions WHERE rps_id = ? ORDER BY version`
	if err := selectAll(ctx, repo.getExec(exec), &list, q, rpsID); err != nil {
		return nil, errors.Wrap(err, "querying rps versions")
	}
	return list, nil
}

func (repo rpsRepository) MaxVersion(ctx context.Context, rpsID string, exec ...core.DBExecutor) (int, error) {
	var n int
	if err := get(ctx, repo.getExec(exec), &n, `SELECT COALESCE(MAX(version), 0) FROM rps_versions WHERE rps_id = ?`, rpsID); err != nil {
		return 0, errors.Wrap(err, "reading last rps version")
	}
	return n, nil
}

func (repo rpsRepository) SetActiveVersion(ctx context.Context, rpsID string, number int, exec ...core.DBExecutor) error {
	e := repo.getExec(exec)
	if _, err := execute(ctx, e, `UPDATE rps_versions SET is_active = ? WHERE rps_id = ? AND version <> ?`, false, rpsID, number); err != nil {
		return errors.Wrap(err, "demoting rps versions")
	}
	res, err := execute(ctx, e, `UPDATE rps_versions SET is_active = ? WHERE rps_id = ? AND version = ?`, true, rpsID, number)
	if err != nil {
		return errors.Wrap(err, "activating rps version")
	}
	return checkAffected(res, "rps version", rpsID)
}

func (repo rpsRepository) DeleteVersions(ctx context.Context, rpsID string, exec ...core.DBExecutor) error {
	if _, err := execute(ctx, repo.getExec(exec), `DELETE FROM rps_versions WHERE rps_id = ?`, rpsID); err != nil {
		return errors.Wrap(err, "deleting rps versions")
	}
	return nil
}

// Approvals

const approvalColumns = `id, rps_id, cycle, approver_id, level, status, comment, decided_at, created_at`

func (repo rpsRepository) CreateApprovals(ctx context.Context, approvals []rps.Approval, exec ...core.DBExecutor) error {
	q := `INSERT INTO rps_approvals (` + approvalColumns + `)
		VALUES (:id, :rps_id, :cycle, :approver_id, :level, :status, :comment, :decided_at, :created_at)`
	e := repo.getExec(exec)
	for _, a := range approvals {
		if err := insert(ctx, e, q, a); err != nil {
			return errors.Wrap(err, "inserting rps approval")
		}
	}
	return nil
}

func (repo rpsRepository) GetApproval(ctx context.Context, id string, exec ...core.DBExecutor) (rps.Approval, error) {
	var a rps.Approval
	if err := get(ctx, repo.getExec(exec), &a, `SELECT `+approvalColumns+` FROM rps_approvals WHERE id = ?`, id); err != nil {
		return rps.Approval{}, trapNoRowsErr(err, "rps approval", id)
	}
	return a, nil
}

func (repo rpsRepository) QueryApprovals(ctx context.Context, rpsID string, cycle int, exec ...core.DBExecutor) ([]rps.Approval, error) {
	q := `SELECT ` + approvalColumns + ` FROM rps_approvals WHERE rps_id = ?`
	args := []interface{}{rpsID}
	if cycle > 0 {
		q += ` AND cycle = ?`
		args = append(args, cycle)
	}

	list := make([]rps.Approval, 0)
	if err := selectAll(ctx, repo.getExec(exec), &list, q+` ORDER BY cycle, level`, args...); err != nil {
		return nil, errors.Wrap(err, "querying rps approvals")
	}
	return list, nil
}

func (repo rpsRepository) MaxApprovalCycle(ctx context.Context, rpsID string, exec ...core.DBExecutor) (int, error) {
	var n int
	if err := get(ctx, repo.getExec(exec), &n, `SELECT COALESCE(MAX(cycle), 0) FROM rps_approvals WHERE rps_id = ?`, rpsID); err != nil {
		return 0, errors.Wrap(err, "reading last approval cycle")
	}
	return n, nil
}

func (repo rpsRepository) UpdateApproval(ctx context.Context, a rps.Approval, exec ...core.DBExecutor) error {
	q := `UPDATE rps_approvals SET status = :status, comment = :comment, decided_at = :decided_at WHERE id = :id`
	if err := updateOne(ctx, repo.getExec(exec), q, a, "rps approval", a.ID); err != nil {
		return errors.Wrap(err, "updating rps approval")
	}
	return nil
}

func (repo rpsRepository) DeleteApprovals(ctx context.Context, rpsID string, exec ...core.DBExecutor) error {
	if _, err := execute(ctx, repo.getExec(exec), `DELETE FROM rps_approvals WHERE rps_id = ?`, rpsID); err != nil {
		return errors.Wrap(err, "deleting rps approvals")
	}
	return nil
}
