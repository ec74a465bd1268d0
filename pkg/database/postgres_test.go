package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolConfig_Defaults(t *testing.T) {
	cfg := &Config{URL: "host=localhost port=5432 user=studio dbname=studio_console sslmode=disable"}

	pc, err := cfg.poolConfig()
	require.NoError(t, err)

	assert.Equal(t, int32(25), pc.MaxConns)
	assert.Equal(t, time.Hour, pc.MaxConnLifetime)
	assert.Equal(t, 30*time.Minute, pc.MaxConnIdleTime)
	assert.Equal(t, "studio-console", pc.ConnConfig.RuntimeParams["application_name"])
	assert.NotContains(t, pc.ConnConfig.RuntimeParams, "statement_timeout")
}

func TestPoolConfig_Overrides(t *testing.T) {
	cfg := &Config{
		URL:              "postgres://studio@localhost:5432/studio_console?sslmode=disable",
		MaxConnections:   5,
		MaxConnLifetime:  10 * time.Minute,
		MaxConnIdleTime:  time.Minute,
		StatementTimeout: 2500 * time.Millisecond,
		ApplicationName:  "studio-console-migrate",
	}

	pc, err := cfg.poolConfig()
	require.NoError(t, err)

	assert.Equal(t, int32(5), pc.MaxConns)
	assert.Equal(t, 10*time.Minute, pc.MaxConnLifetime)
	assert.Equal(t, time.Minute, pc.MaxConnIdleTime)
	assert.Equal(t, "studio-console-migrate", pc.ConnConfig.RuntimeParams["application_name"])
	assert.Equal(t, "2500", pc.ConnConfig.RuntimeParams["statement_timeout"])
}

func TestPoolConfig_URLApplicationNameWins(t *testing.T) {
	cfg := &Config{URL: "postgres://studio@localhost/studio_console?application_name=ops"}

	pc, err := cfg.poolConfig()
	require.NoError(t, err)

	assert.Equal(t, "ops", pc.ConnConfig.RuntimeParams["application_name"])
}

func TestPoolConfig_BadURL(t *testing.T) {
	_, err := (&Config{URL: "postgres://%zz"}).poolConfig()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse database URL")
}
