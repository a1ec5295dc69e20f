package core

import (
	"context"
	"time"

	"github.com/volatiletech/null/v8"
)

// Audit actions
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

type (
	AuditEntry struct {
		Table    string
		RecordID string
		Action   string
		OldValue interface{}
		NewValue interface{}
		ActorID  string
		At       time.Time // UTC
	}

	// AuditSink records successful mutations. Recording is best effort: implementations
	// report their own failures and never fail the audited operation.
	AuditSink interface {
		Record(ctx context.Context, entries ...AuditEntry)
	}

	nopAuditSink struct{}
)

func NewNopAuditSink() AuditSink { return nopAuditSink{} }

func (nopAuditSink) Record(context.Context, ...AuditEntry) {}

// AuditLog is a persisted AuditEntry; values are stored as JSON.
type AuditLog struct {
	ID        string      `db:"id" json:"id"`
	Table     string      `db:"table_name" json:"table"`
	RecordID  string      `db:"record_id" json:"record_id"`
	Action    string      `db:"action" json:"action"`
	OldValue  null.String `db:"old_value" json:"old_value"`
	NewValue  null.String `db:"new_value" json:"new_value"`
	ActorID   string      `db:"actor_id" json:"actor_id"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"` // UTC
}

type AuditRepository interface {
	CreateAuditLogs(ctx context.Context, logs []AuditLog, exec ...DBExecutor) error
	// QueryAuditLogs lists the logs of a record, oldest first.
	QueryAuditLogs(ctx context.Context, table, recordID string, exec ...DBExecutor) ([]AuditLog, error)
}
