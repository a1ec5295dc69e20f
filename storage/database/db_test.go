package database

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obeworks/kurikulum/core"
)

func TestPostgresURL(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Database.Engine = EnginePostgres
	conf.Database.Host = "db.local"
	conf.Database.Port = "5433"
	conf.Database.User = "app"
	conf.Database.Password = "secret"
	conf.Database.AdminUser = "postgres"
	conf.Database.AdminPassword = "root"

	tests := []struct {
		name       string
		admin      bool
		disableTLS bool
		wantUser   string
		wantSSL    string
	}{
		{name: "app", wantUser: "app", wantSSL: "require"},
		{name: "admin", admin: true, wantUser: "postgres", wantSSL: "require"},
		{name: "no tls", disableTLS: true, wantUser: "app", wantSSL: "disable"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			conf.Database.DisableTLS = tc.disableTLS
			u, err := url.Parse(postgresURL("kurikulum", tc.admin, conf))
			require.NoError(t, err)
			assert.Equal(t, "postgres", u.Scheme)
			assert.Equal(t, "db.local:5433", u.Host)
			assert.Equal(t, "/kurikulum", u.Path)
			assert.Equal(t, tc.wantUser, u.User.Username())
			assert.Equal(t, tc.wantSSL, u.Query().Get("sslmode"))
			assert.Equal(t, "utc", u.Query().Get("timezone"))
		})
	}
}

func TestDialect(t *testing.T) {
	assert.Equal(t, "sqlite3", Dialect(EngineSQLite))
	assert.Equal(t, "postgres", Dialect(EnginePostgres))
	assert.Equal(t, "postgres", Dialect(EnginePgx))
}

func TestOpen_unsupportedEngine(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Database.Engine = "oracle"
	_, err := Open(conf)
	assert.Error(t, err)
}
