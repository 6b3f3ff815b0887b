package destination

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	_ "github.com/sijms/go-ora/v2"
	_ "modernc.org/sqlite"

	"FREDflow/internal/model"
)

func init() {
	// go-ora uses :name placeholders and is unknown to sqlx.
	sqlx.BindDriver("oracle", sqlx.NAMED)
}

// Dialect captures what differs between destination databases.
type Dialect interface {
	DriverName() string
	Descriptor() model.Descriptor
	PingQuery() string
	PingOK(v any) bool
	// Call runs a merge routine inside tx and returns the affected-row count.
	Call(ctx context.Context, tx *sqlx.Tx, r Routine, seriesID, date string, value decimal.Decimal) (int64, error)
	IsUndefinedTable(err error) bool
	// Prepare creates whatever schema the pipeline owns on this database.
	Prepare(ctx context.Context, db *sqlx.DB) error
}

// DialectFor returns the dialect registered for a driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "oracle":
		return oracleDialect{}, nil
	case "postgres", "pgx":
		return postgresDialect{}, nil
	case "sqlite":
		return sqliteDialect{now: time.Now}, nil
	}
	return nil, fmt.Errorf("unsupported destination driver %q", driver)
}

type oracleDialect struct{}

func (oracleDialect) DriverName() string { return "oracle" }

func (oracleDialect) Descriptor() model.Descriptor {
	return model.Descriptor{Kind: "ODB", Title: "Oracle DB"}
}

func (oracleDialect) PingQuery() string { return "SELECT * FROM dual" }

// PingOK checks for the DUMMY column default of X.
func (oracleDialect) PingOK(v any) bool {
	switch s := v.(type) {
	case string:
		return s == "X"
	case []byte:
		return string(s) == "X"
	}
	return false
}

func (oracleDialect) Call(ctx context.Context, tx *sqlx.Tx, r Routine, seriesID, date string, value decimal.Decimal) (int64, error) {
	var n int64
	stmt := fmt.Sprintf("BEGIN :1 := %s(:2, :3, :4); END;", r)
	if _, err := tx.ExecContext(ctx, stmt, sql.Out{Dest: &n}, seriesID, date, value.String()); err != nil {
		return 0, err
	}
	return n, nil
}

func (oracleDialect) IsUndefinedTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "ORA-00942")
}

func (oracleDialect) Prepare(context.Context, *sqlx.DB) error { return nil }

type postgresDialect struct{}

func (postgresDialect) DriverName() string { return "pgx" }

func (postgresDialect) Descriptor() model.Descriptor {
	return model.Descriptor{Kind: "PDB", Title: "PostgreSQL DB"}
}

func (postgresDialect) PingQuery() string { return "SELECT 1" }

func (postgresDialect) PingOK(v any) bool { return isOne(v) }

func (postgresDialect) Call(ctx context.Context, tx *sqlx.Tx, r Routine, seriesID, date string, value decimal.Decimal) (int64, error) {
	var n int64
	stmt := fmt.Sprintf("SELECT %s($1, $2, $3)", r)
	if err := tx.QueryRowxContext(ctx, stmt, seriesID, date, value.String()).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (postgresDialect) IsUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}

func (postgresDialect) Prepare(context.Context, *sqlx.DB) error { return nil }

// sqliteDialect has no stored routines; the three merge routines are
// emulated with an insert-or-update into a per-series table created on demand.
type sqliteDialect struct {
	now func() time.Time
}

func (sqliteDialect) DriverName() string { return "sqlite" }

func (sqliteDialect) Descriptor() model.Descriptor {
	return model.Descriptor{Kind: "SDB", Title: "SQLite DB"}
}

func (sqliteDialect) PingQuery() string { return "SELECT 1" }

func (sqliteDialect) PingOK(v any) bool { return isOne(v) }

func (d sqliteDialect) Call(ctx context.Context, tx *sqlx.Tx, r Routine, seriesID, date string, value decimal.Decimal) (int64, error) {
	day, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", r, err)
	}
	create := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		release_date TEXT PRIMARY KEY,
		period       TEXT NOT NULL,
		value        TEXT NOT NULL, -- exact decimal text
		updated_at   TIMESTAMP NOT NULL
	)`, seriesID)
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return 0, err
	}
	upsert := fmt.Sprintf(`INSERT INTO %s (release_date, period, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(release_date) DO UPDATE SET
			period = excluded.period,
			value = excluded.value,
			updated_at = excluded.updated_at`, seriesID)
	res, err := tx.ExecContext(ctx, upsert,
		date, model.Period(r.Granularity(), day), value.String(), d.now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (sqliteDialect) IsUndefinedTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

func (sqliteDialect) Prepare(ctx context.Context, db *sqlx.DB) error {
	stmts := []string{
		"PRAGMA journal_mode=WAL",
		`CREATE TABLE IF NOT EXISTS ` + LogTable + ` (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			fred_series  TEXT NOT NULL,
			row_tally    INTEGER NOT NULL DEFAULT 0,
			start_tstamp TIMESTAMP NOT NULL,
			stop_tstamp  TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fredflow_logs_series ON ` + LogTable + `(fred_series, stop_tstamp)`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:20], err)
		}
	}
	return nil
}

func isOne(v any) bool {
	switch n := v.(type) {
	case int64:
		return n == 1
	case int32:
		return n == 1
	case int:
		return n == 1
	case []byte:
		return string(n) == "1"
	case string:
		return n == "1"
	}
	return false
}
