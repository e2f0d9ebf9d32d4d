package export

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/golang/glog"

	"github.com/hb9tf/rfmonitor/sdr"
)

const (
	sqlRecordCountInfo = 1000

	DialectSQLite   = "sqlite3"
	DialectMySQL    = "mysql"
	DialectPostgres = "postgres"

	sqliteCreateTableTmpl = `CREATE TABLE IF NOT EXISTS signals (
		ID          TEXT NOT NULL PRIMARY KEY,
		Identifier  TEXT NOT NULL,
		Source      TEXT NOT NULL,
		Freq        INTEGER,
		Threshold   REAL,
		Location    TEXT,
		StartTime   INTEGER,
		EndTime     INTEGER,
		Peak        REAL
	);`
	mysqlCreateTableTmpl = `CREATE TABLE IF NOT EXISTS signals (
		ID          VARCHAR(36) NOT NULL PRIMARY KEY,
		Identifier  VARCHAR(255) NOT NULL,
		Source      VARCHAR(64) NOT NULL,
		Freq        BIGINT,
		Threshold   DOUBLE,
		Location    VARCHAR(16),
		StartTime   BIGINT,
		EndTime     BIGINT,
		Peak        DOUBLE
	);`
	postgresCreateTableTmpl = `CREATE TABLE IF NOT EXISTS signals (
		ID          TEXT NOT NULL PRIMARY KEY,
		Identifier  TEXT NOT NULL,
		Source      TEXT NOT NULL,
		Freq        BIGINT,
		Threshold   DOUBLE PRECISION,
		Location    TEXT,
		StartTime   BIGINT,
		EndTime     BIGINT,
		Peak        DOUBLE PRECISION
	);`
	sqlInsertRecordTmpl = `INSERT INTO signals (
		ID,
		Identifier,
		Source,
		Freq,
		Threshold,
		Location,
		StartTime,
		EndTime,
		Peak
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`
)

var createTableTmpls = map[string]string{
	DialectSQLite:   sqliteCreateTableTmpl,
	DialectMySQL:    mysqlCreateTableTmpl,
	DialectPostgres: postgresCreateTableTmpl,
}

// Rebind rewrites ? placeholders into the form the dialect expects.
func Rebind(dialect, query string) string {
	if dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQL stores records in a "signals" table.
type SQL struct {
	DB      *sql.DB
	Dialect string
}

// CreateTable creates the signals table if it doesn't exist yet.
func (s *SQL) CreateTable(ctx context.Context) error {
	tmpl, ok := createTableTmpls[s.Dialect]
	if !ok {
		return fmt.Errorf("unsupported SQL dialect %q", s.Dialect)
	}
	if _, err := s.DB.ExecContext(ctx, tmpl); err != nil {
		return err
	}
	return nil
}

func (s *SQL) Write(ctx context.Context, records <-chan sdr.Record) error {
	if err := s.CreateTable(ctx); err != nil {
		return fmt.Errorf("unable to create table: %w", err)
	}

	statement, err := s.DB.PrepareContext(ctx, Rebind(s.Dialect, sqlInsertRecordTmpl))
	if err != nil {
		return fmt.Errorf("unable to prepare insert: %w", err)
	}
	defer statement.Close()

	counts := newCounts()
	for r := range records {
		if _, err := statement.ExecContext(ctx, r.ID, r.Identifier, r.Source, r.Freq, r.Threshold, r.Location, r.Start.UnixMilli(), r.End.UnixMilli(), r.Peak); err != nil {
			counts.failed()
			glog.Warningf("error storing in %s DB: %s\n", s.Dialect, err)
			continue
		}
		if counts.succeeded(sqlRecordCountInfo) {
			glog.Infof("Signal export counts: %+v\n", counts)
		}
	}

	return nil
}
