package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvDefaults(t *testing.T) {
	t.Setenv("UOW_DB", "")
	t.Setenv("UOW_PG_DSN", "")

	cfg, err := LoadEnv()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Driver)
	assert.Empty(t, cfg.DB)
	assert.False(t, cfg.Verbose)
}

func TestLoadEnvValues(t *testing.T) {
	t.Setenv("UOW_DB", "/tmp/uow.db")
	t.Setenv("UOW_DRIVER", "postgres")
	t.Setenv("UOW_PG_DSN", "postgres://localhost/uow")
	t.Setenv("UOW_VERBOSE", "1")

	cfg, err := LoadEnv()
	require.NoError(t, err)
	assert.Equal(t, EnvConfig{
		DB:      "/tmp/uow.db",
		Driver:  "postgres",
		PGDSN:   "postgres://localhost/uow",
		Verbose: true,
	}, cfg)
}

func TestLoadEnvInvalidBool(t *testing.T) {
	t.Setenv("UOW_VERBOSE", "loud")

	_, err := LoadEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env")
}

func TestRunOptionsApplyEnv(t *testing.T) {
	opts := &RunOptions{RootOptions: &RootOptions{Env: EnvConfig{DB: "env.db", PGDSN: "dsn"}}}
	opts.applyEnv()
	assert.Equal(t, "env.db", opts.Database)
	assert.Equal(t, "sqlite", opts.Driver)
	assert.Equal(t, "dsn", opts.DSN)

	opts = &RunOptions{RootOptions: &RootOptions{Env: EnvConfig{DB: "env.db"}}, Database: "flag.db"}
	opts.applyEnv()
	assert.Equal(t, "flag.db", opts.Database)
}
