package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obeworks/kurikulum/core"
	"github.com/obeworks/kurikulum/storage/database"
	"github.com/obeworks/kurikulum/tests"
)

var errDuplicate = errors.New("duplicate")

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain", err: errors.New("boom"), want: false},
		{name: "pq unique", err: &pq.Error{Code: "23505"}, want: true},
		{name: "pq wrapped", err: errors.Wrap(&pq.Error{Code: "23505"}, "inserting"), want: true},
		{name: "pq foreign key", err: &pq.Error{Code: "23503"}, want: false},
		{name: "pgx unique", err: &pgconn.PgError{Code: "23505"}, want: true},
		{name: "pgx other", err: &pgconn.PgError{Code: "42P01"}, want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, database.IsUniqueViolation(tc.err))
		})
	}
}

func TestIsUniqueViolation_sqlite(t *testing.T) {
	db := testutil.PrepareDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	q := `INSERT INTO users (id, name, email, roles, is_active, created_at, updated_at) VALUES (?, ?, ?, '', TRUE, ?, ?)`
	_, err := db.ExecContext(ctx, q, "u1", "Ani", "ani@kampus.ac.id", now, now)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, q, "u2", "Ani", "ani@kampus.ac.id", now, now)
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err), "unique email")

	_, err = db.ExecContext(ctx, q, "u1", "Budi", "budi@kampus.ac.id", now, now)
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err), "primary key")

	_, err = db.ExecContext(ctx, `INSERT INTO missing_table (id) VALUES (1)`)
	require.Error(t, err)
	assert.False(t, database.IsUniqueViolation(err))
}

func TestMapError(t *testing.T) {
	assert.NoError(t, database.MapError(nil, "inserting", errDuplicate))

	err := database.MapError(&pq.Error{Code: "23505"}, "inserting", errDuplicate)
	var cerr *core.ConflictError
	require.ErrorAs(t, err, &cerr)
	assert.ErrorIs(t, err, errDuplicate)
	assert.Equal(t, core.KindConflict, core.Classify(err))

	cause := errors.New("connection reset")
	err = database.MapError(cause, "inserting", errDuplicate)
	assert.ErrorIs(t, err, cause)
	assert.EqualError(t, err, "inserting: connection reset")
	assert.Equal(t, core.KindInternal, core.Classify(err))
}
