package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/obeworks/kurikulum/core"
)

const auditColumns = `id, table_name, record_id, action, old_value, new_value, actor_id, created_at`

type auditRepository struct {
	baseRepository
}

var _ core.AuditRepository = (*auditRepository)(nil) // interface compliance check

func NewAuditRepository(db core.DBExecutor) *auditRepository {
	return &auditRepository{baseRepository{db: db}}
}

func (repo auditRepository) CreateAuditLogs(ctx context.Context, logs []core.AuditLog, exec ...core.DBExecutor) error {
	q := `INSERT INTO audit_logs (` + auditColumns + `)
		VALUES (:id, :table_name, :record_id, :action, :old_value, :new_value, :actor_id, :created_at)`
	e := repo.getExec(exec)
	for _, l := range logs {
		if err := insert(ctx, e, q, l); err != nil {
			return errors.Wrap(err, "inserting audit log")
		}
	}
	return nil
}

func (repo auditRepository) QueryAuditLogs(ctx context.Context, table, recordID string, exec ...core.DBExecutor) ([]core.AuditLog, error) {
	list := make([]core.AuditLog, 0)
	q := `SELECT ` + auditColumns + ` FROM audit_logs WHERE table_name = ? AND record_id = ? ORDER BY created_at, id`
	if err := selectAll(ctx, repo.getExec(exec), &list, q, table, recordID); err != nil {
		return nil, errors.Wrap(err, "querying audit logs")
	}
	return list, nil
}
