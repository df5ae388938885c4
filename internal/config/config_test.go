package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DB_DATABASE", "cmdb")
	t.Setenv("DB_APP_USER", "app")
	t.Setenv("AUTHZ_URL", "http://authorizer:9010")
	t.Setenv("AUTHZ_CLIENT_ID", "client")
	t.Setenv("ENV_FILE", "")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "mysql", cfg.DBType)
	assert.Equal(t, CascadeModeTransaction, cfg.CascadeMode)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "app", cfg.DBReadUser, "reader pool falls back to app credentials")
	assert.Equal(t, cfg.DBAppConnectionLimit, cfg.DBReadConnectionLimit)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(name, []byte("DB_DATABASE=fromfile\nCASCADE_MODE=SAGA\n"), 0o600))

	t.Setenv("DB_APP_USER", "app")
	t.Setenv("AUTHZ_URL", "http://authorizer:9010")
	t.Setenv("AUTHZ_CLIENT_ID", "client")
	t.Setenv("DB_DATABASE", "")
	t.Setenv("CASCADE_MODE", "")
	t.Setenv("ENV_FILE", name)
	// godotenv does not override set variables, so clear them first
	require.NoError(t, os.Unsetenv("DB_DATABASE"))
	require.NoError(t, os.Unsetenv("CASCADE_MODE"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "fromfile", cfg.DBDatabase)
	assert.Equal(t, CascadeModeSaga, cfg.CascadeMode)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			DBType:        "mysql",
			DBDatabase:    "cmdb",
			DBAppUser:     "app",
			AuthzURL:      "http://authorizer",
			AuthzClientID: "client",
			CascadeMode:   CascadeModeTransaction,
		}
	}

	require.NoError(t, valid().Validate())

	cfg := valid()
	cfg.DBDatabase = ""
	assert.ErrorContains(t, cfg.Validate(), "DB_DATABASE")

	cfg = valid()
	cfg.DBAppUser = ""
	assert.ErrorContains(t, cfg.Validate(), "DB_APP_USER")

	cfg.DBType = "sqlite-pure"
	assert.NoError(t, cfg.Validate(), "sqlite needs no user")

	cfg = valid()
	cfg.CascadeMode = "eventual"
	assert.ErrorContains(t, cfg.Validate(), "CASCADE_MODE")

	cfg = valid()
	cfg.AuthzClientID = ""
	assert.ErrorContains(t, cfg.Validate(), "AUTHZ_CLIENT_ID")
}

func TestGetEnvAsInt(t *testing.T) {
	t.Setenv("CMDB_TEST_INT", "12")
	assert.Equal(t, 12, getEnvAsInt("CMDB_TEST_INT", 3))

	t.Setenv("CMDB_TEST_INT", "twelve")
	assert.Equal(t, 3, getEnvAsInt("CMDB_TEST_INT", 3))
}
