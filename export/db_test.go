package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDBConfigDSN(t *testing.T) {
	dsn, err := (&DBConfig{Dialect: DialectSQLite, SQLiteFile: "/tmp/rfmonitor"}).DSN()
	require.NoError(t, err)
	require.Equal(t, "/tmp/rfmonitor", dsn)

	passFile := filepath.Join(t.TempDir(), "pass")
	require.NoError(t, os.WriteFile(passFile, []byte("secret\n"), 0o600))
	dsn, err = (&DBConfig{
		Dialect:           DialectMySQL,
		MySQLServer:       "127.0.0.1:3306",
		MySQLUser:         "rf",
		MySQLPasswordFile: passFile,
		MySQLDBName:       "rfmonitor",
	}).DSN()
	require.NoError(t, err)
	require.Contains(t, dsn, "rf:secret@tcp(127.0.0.1:3306)/rfmonitor")

	dsn, err = (&DBConfig{Dialect: DialectPostgres, PostgresDSN: "postgres://rf:secret@db:5432/rfmonitor"}).DSN()
	require.NoError(t, err)
	require.Contains(t, dsn, "dbname=rfmonitor")
	require.Contains(t, dsn, "host=db")

	dsn, err = (&DBConfig{Dialect: DialectPostgres, PostgresDSN: "host=db dbname=rfmonitor"}).DSN()
	require.NoError(t, err)
	require.Equal(t, "host=db dbname=rfmonitor", dsn)

	_, err = (&DBConfig{Dialect: DialectMySQL, MySQLPasswordFile: filepath.Join(t.TempDir(), "missing")}).DSN()
	require.Error(t, err)

	_, err = (&DBConfig{Dialect: "oracle"}).DSN()
	require.ErrorContains(t, err, "not a supported")
}
