package export

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	// Blind import support for sqlite3 used by the sqlite3 dialect.
	_ "github.com/mattn/go-sqlite3"
)

// DBConfig describes how to reach the signal store.
type DBConfig struct {
	Dialect string

	// SQLite
	SQLiteFile string

	// MySQL
	MySQLServer       string
	MySQLUser         string
	MySQLPasswordFile string
	MySQLDBName       string

	// Postgres, either a postgres:// URL or a key=value connection string.
	PostgresDSN string
}

// DSN builds the data source name for the configured dialect.
func (c *DBConfig) DSN() (string, error) {
	switch c.Dialect {
	case DialectSQLite:
		return c.SQLiteFile, nil
	case DialectMySQL:
		var pass string
		if c.MySQLPasswordFile != "" {
			raw, err := os.ReadFile(c.MySQLPasswordFile)
			if err != nil {
				return "", fmt.Errorf("unable to read MySQL password file %q: %w", c.MySQLPasswordFile, err)
			}
			pass = strings.TrimSpace(string(raw))
		}
		cfg := mysql.Config{
			User:                 c.MySQLUser,
			Passwd:               pass,
			Net:                  "tcp",
			Addr:                 c.MySQLServer,
			DBName:               c.MySQLDBName,
			AllowNativePasswords: true,
		}
		return cfg.FormatDSN(), nil
	case DialectPostgres:
		if strings.HasPrefix(c.PostgresDSN, "postgres://") || strings.HasPrefix(c.PostgresDSN, "postgresql://") {
			return pq.ParseURL(c.PostgresDSN)
		}
		return c.PostgresDSN, nil
	}
	return "", fmt.Errorf("%q is not a supported DB dialect, pick one of: %s, %s, %s", c.Dialect, DialectSQLite, DialectMySQL, DialectPostgres)
}

// OpenDB opens the signal store. The dialect names double as driver names.
func OpenDB(c *DBConfig) (*sql.DB, error) {
	dsn, err := c.DSN()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(c.Dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open %s DB: %w", c.Dialect, err)
	}
	if c.Dialect != DialectSQLite {
		db.SetConnMaxLifetime(3 * time.Minute)
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
	}
	return db, nil
}
