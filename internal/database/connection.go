// connection.go
//
// Collaborative item catalog data service for jam-build
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of jam-build-cmdb.
// jam-build-cmdb is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// jam-build-cmdb is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with jam-build-cmdb.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package database

import (
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	puresqlite "github.com/glebarez/sqlite"
	gosqlmysql "github.com/go-sql-driver/mysql"
	"github.com/localnerve/jam-build-cmdb/internal/config"
	"github.com/localnerve/jam-build-cmdb/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Credentials selects the user/password/limit triple a pool connects with
type Credentials struct {
	User            string
	Password        string
	ConnectionLimit int
}

// AppCredentials are the read-write credentials of the application pool
func AppCredentials(cfg *config.Config) Credentials {
	return Credentials{User: cfg.DBAppUser, Password: cfg.DBAppPassword, ConnectionLimit: cfg.DBAppConnectionLimit}
}

// ReadCredentials are the credentials of the query pool
func ReadCredentials(cfg *config.Config) Credentials {
	return Credentials{User: cfg.DBReadUser, Password: cfg.DBReadPassword, ConnectionLimit: cfg.DBReadConnectionLimit}
}

// Dialector builds the GORM dialector for the configured DB_TYPE
func Dialector(cfg *config.Config, creds Credentials) (gorm.Dialector, error) {
	switch cfg.DBType {
	case "mysql", "mariadb":
		mc := gosqlmysql.NewConfig()
		mc.User = creds.User
		mc.Passwd = creds.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(cfg.DBHost, cfg.DBPort)
		mc.DBName = cfg.DBDatabase
		mc.ParseTime = true
		mc.Loc = time.UTC
		mc.Params = map[string]string{"charset": "utf8mb4"}
		return mysql.Open(mc.FormatDSN()), nil

	case "postgres", "postgresql":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			cfg.DBHost,
			creds.User,
			creds.Password,
			cfg.DBDatabase,
			cfg.DBPort,
		)
		return postgres.Open(dsn), nil

	case "sqlite":
		// For SQLite, DBDatabase is the file path (cgo driver)
		return sqlite.Open(withParams(cfg.DBDatabase, "_busy_timeout=5000")), nil

	case "sqlite-pure":
		// Same file layout, no cgo
		return puresqlite.Open(withParams(cfg.DBDatabase, "_pragma=busy_timeout(5000)")), nil

	case "sqlserver", "mssql":
		dsn := fmt.Sprintf("sqlserver://%s:%s@%s:%s?database=%s",
			creds.User,
			creds.Password,
			cfg.DBHost,
			cfg.DBPort,
			cfg.DBDatabase,
		)
		return sqlserver.Open(dsn), nil
	}
	return nil, fmt.Errorf("unsupported database type: %s", cfg.DBType)
}

// withParams appends driver params unless the path already carries its own
func withParams(path, params string) string {
	if strings.Contains(path, "?") || path == ":memory:" {
		return path
	}
	return path + "?" + params
}

// LogLevel maps DB_LOG_LEVEL onto the GORM logger level
func LogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	}
	return logger.Warn
}

// Connect establishes the read-write application connection
func Connect(cfg *config.Config) (*gorm.DB, error) {
	return open(cfg, AppCredentials(cfg), "app")
}

// ConnectReader establishes the query connection (with different credentials)
func ConnectReader(cfg *config.Config) (*gorm.DB, error) {
	return open(cfg, ReadCredentials(cfg), "reader")
}

func open(cfg *config.Config, creds Credentials, name string) (*gorm.DB, error) {
	dialector, err := Dialector(cfg, creds)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.Default.LogMode(LogLevel(cfg.DBLogLevel)),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", name, err)
	}

	// Get underlying SQL DB for connection pool configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying SQL DB: %w", err)
	}

	limit := creds.ConnectionLimit
	if cfg.IsSQLite() || limit < 1 {
		// A single writer avoids SQLITE_BUSY under concurrent requests
		limit = 1
	}
	sqlDB.SetMaxOpenConns(limit)
	sqlDB.SetMaxIdleConns(max(limit/2, 1))

	log.Printf("Connected to %s %s database: %s", cfg.DBType, name, cfg.DBDatabase)

	return db, nil
}

// AutoMigrate runs automatic migrations for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(models.All()...)
}

// Close closes the database connection
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
