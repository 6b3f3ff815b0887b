package destination

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"FREDflow/internal/model"
)

// SQLDestination is a Destination backed by database/sql.
type SQLDestination struct {
	name    string
	db      *sqlx.DB
	dialect Dialect
}

// NewSQLDestination wraps an open handle. Idle connections are not kept, so
// every query or session dials its own connection and releases it afterwards.
func NewSQLDestination(ctx context.Context, name string, db *sqlx.DB, dialect Dialect) (*SQLDestination, error) {
	db.SetMaxIdleConns(0)
	if err := dialect.Prepare(ctx, db); err != nil {
		return nil, fmt.Errorf("prepare %s: %w", name, err)
	}
	return &SQLDestination{name: name, db: db, dialect: dialect}, nil
}

func (d *SQLDestination) Name() string { return d.name }

func (d *SQLDestination) Descriptor() model.Descriptor { return d.dialect.Descriptor() }

func (d *SQLDestination) Bookmark(ctx context.Context, seriesID string) (*time.Time, error) {
	if err := checkID(seriesID); err != nil {
		return nil, err
	}
	var v any
	err := d.db.QueryRowxContext(ctx, "SELECT MAX(release_date) FROM "+seriesID).Scan(&v)
	if err != nil {
		if d.dialect.IsUndefinedTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("bookmark %s: %w", seriesID, err)
	}
	return parseDate(v)
}

func (d *SQLDestination) Count(ctx context.Context, seriesID string) (int64, error) {
	if err := checkID(seriesID); err != nil {
		return 0, err
	}
	var n int64
	if err := d.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+seriesID); err != nil {
		if d.dialect.IsUndefinedTable(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("count %s: %w", seriesID, err)
	}
	return n, nil
}

func (d *SQLDestination) Ping(ctx context.Context) (bool, error) {
	var v any
	if err := d.db.QueryRowxContext(ctx, d.dialect.PingQuery()).Scan(&v); err != nil {
		return false, fmt.Errorf("ping %s: %w", d.name, err)
	}
	return d.dialect.PingOK(v), nil
}

func (d *SQLDestination) Open(ctx context.Context) (Session, error) {
	conn, err := d.db.Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", d.name, err)
	}
	return &sqlSession{
		conn:     conn,
		dialect:  d.dialect,
		insert:   d.db.Rebind(insertLogSQL),
		closeLog: d.db.Rebind(closeLogSQL),
	}, nil
}

func (d *SQLDestination) Close() error { return d.db.Close() }

const insertLogSQL = `INSERT INTO ` + LogTable + ` (fred_series, row_tally, start_tstamp) VALUES (?, ?, ?)`

const closeLogSQL = `UPDATE ` + LogTable + ` SET row_tally = ?, stop_tstamp = ?
	WHERE fred_series = ? AND stop_tstamp IS NULL
	AND start_tstamp = (SELECT MAX(start_tstamp) FROM ` + LogTable + ` WHERE fred_series = ? AND stop_tstamp IS NULL)`

type sqlSession struct {
	conn     *sqlx.Conn
	dialect  Dialect
	insert   string
	closeLog string
}

func (s *sqlSession) OpenLog(ctx context.Context, seriesID string, start time.Time) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, s.insert, seriesID, 0, start.UTC())
		return err
	})
}

func (s *sqlSession) Merge(ctx context.Context, r Routine, seriesID, date string, value decimal.Decimal) (int64, error) {
	if err := checkID(seriesID); err != nil {
		return 0, err
	}
	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	n, err := s.dialect.Call(ctx, tx, r, seriesID, date, value)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	if n <= 0 {
		return n, tx.Rollback()
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *sqlSession) CloseLog(ctx context.Context, seriesID string, tally int, stop time.Time) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, s.closeLog, tally, stop.UTC(), seriesID, seriesID)
		return err
	})
}

func (s *sqlSession) Close() error { return s.conn.Close() }

func (s *sqlSession) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// parseDate normalises a MAX(release_date) value from any driver.
func parseDate(v any) (*time.Time, error) {
	var s string
	switch t := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return &d, nil
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return nil, fmt.Errorf("unexpected bookmark type %T", v)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if len(s) > len(model.DateLayout) {
		s = s[:len(model.DateLayout)]
	}
	d, err := time.Parse(model.DateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("parse bookmark %q: %w", s, err)
	}
	return &d, nil
}
