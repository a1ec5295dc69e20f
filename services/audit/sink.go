// Package auditsvc persists audit entries as JSON snapshots.
package auditsvc

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/obeworks/kurikulum/core"
)

type Sink struct {
	repo   core.AuditRepository
	logger core.Logger
}

var _ core.AuditSink = (*Sink)(nil)

func NewSink(repo core.AuditRepository, logger core.Logger) *Sink {
	return &Sink{repo: repo, logger: logger}
}

// Record writes the entries; failures are logged and swallowed.
func (s *Sink) Record(ctx context.Context, entries ...core.AuditEntry) {
	if len(entries) == 0 {
		return
	}
	logs := make([]core.AuditLog, 0, len(entries))
	for _, e := range entries {
		l, err := toLog(e)
		if err != nil {
			s.logger.Warn("encoding audit entry", err, map[string]interface{}{"table": e.Table, "record_id": e.RecordID})
			continue
		}
		logs = append(logs, l)
	}
	if err := s.repo.CreateAuditLogs(ctx, logs); err != nil {
		s.logger.Error("recording audit logs", err, map[string]interface{}{"count": len(logs)})
	}
}

func toLog(e core.AuditEntry) (core.AuditLog, error) {
	oldValue, err := encode(e.OldValue)
	if err != nil {
		return core.AuditLog{}, err
	}
	newValue, err := encode(e.NewValue)
	if err != nil {
		return core.AuditLog{}, err
	}
	return core.AuditLog{
		ID:        uuid.New().String(),
		Table:     e.Table,
		RecordID:  e.RecordID,
		Action:    e.Action,
		OldValue:  oldValue,
		NewValue:  newValue,
		ActorID:   e.ActorID,
		CreatedAt: e.At.UTC(),
	}, nil
}

func encode(v interface{}) (null.String, error) {
	if v == nil {
		return null.String{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return null.String{}, errors.Wrap(err, "marshalling audit value")
	}
	return null.StringFrom(string(b)), nil
}
