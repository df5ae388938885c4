package database

import (
	"path/filepath"
	"testing"

	"github.com/localnerve/jam-build-cmdb/internal/config"
	"github.com/localnerve/jam-build-cmdb/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func TestDialectorNames(t *testing.T) {
	cases := map[string]string{
		"mysql":       "mysql",
		"mariadb":     "mysql",
		"postgres":    "postgres",
		"sqlite":      "sqlite",
		"sqlite-pure": "sqlite",
		"sqlserver":   "sqlserver",
	}
	for dbType, want := range cases {
		cfg := &config.Config{DBType: dbType, DBHost: "db", DBPort: "3306", DBDatabase: "cmdb"}
		d, err := Dialector(cfg, Credentials{User: "u", Password: "p"})
		require.NoError(t, err, dbType)
		assert.Equal(t, want, d.Name(), dbType)
	}

	_, err := Dialector(&config.Config{DBType: "oracle"}, Credentials{})
	assert.ErrorContains(t, err, "unsupported database type")
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, logger.Silent, LogLevel("silent"))
	assert.Equal(t, logger.Error, LogLevel("ERROR"))
	assert.Equal(t, logger.Info, LogLevel("info"))
	assert.Equal(t, logger.Warn, LogLevel(""))
}

func TestConnectAndMigratePureSQLite(t *testing.T) {
	cfg := &config.Config{
		DBType:               "sqlite-pure",
		DBDatabase:           filepath.Join(t.TempDir(), "cmdb.db"),
		DBAppConnectionLimit: 5,
		DBLogLevel:           "silent",
	}

	db, err := Connect(cfg)
	require.NoError(t, err)
	defer Close(db)

	require.NoError(t, AutoMigrate(db))
	for _, m := range models.All() {
		assert.True(t, db.Migrator().HasTable(m), "%T", m)
	}

	reader, err := ConnectReader(cfg)
	require.NoError(t, err)
	defer Close(reader)
	assert.True(t, reader.Migrator().HasTable(&models.Collection{}))
}
