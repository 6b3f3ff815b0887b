package destination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"FREDflow/internal/model"
)

// LogTable records one row per (series, destination, run).
const LogTable = "fredflow_logs"

// ErrInvalidIdentifier is returned when a series id cannot be used as a table name.
var ErrInvalidIdentifier = errors.New("invalid series identifier")

// Routine is the name of a destination-side merge procedure.
type Routine string

const (
	RoutineDaily     Routine = "UPSERT_DAY_FRED_SERIES"
	RoutineMonthly   Routine = "UPSERT_MON_FRED_SERIES"
	RoutineQuarterly Routine = "UPSERT_QTR_FRED_SERIES"
)

// RoutineFor selects the merge procedure for a granularity.
func RoutineFor(g model.Granularity) (Routine, bool) {
	switch g {
	case model.Daily:
		return RoutineDaily, true
	case model.Monthly:
		return RoutineMonthly, true
	case model.Quarterly:
		return RoutineQuarterly, true
	}
	return "", false
}

// Granularity is the inverse of RoutineFor.
func (r Routine) Granularity() model.Granularity {
	switch r {
	case RoutineMonthly:
		return model.Monthly
	case RoutineQuarterly:
		return model.Quarterly
	default:
		return model.Daily
	}
}

// Destination is a database that series are merged into.
type Destination interface {
	Name() string
	Descriptor() model.Descriptor
	// Bookmark returns the latest committed release date of the series, or
	// nil when its table is empty or missing.
	Bookmark(ctx context.Context, seriesID string) (*time.Time, error)
	// Count returns the number of stored rows of the series.
	Count(ctx context.Context, seriesID string) (int64, error)
	// Ping runs the liveness query.
	Ping(ctx context.Context) (bool, error)
	// Open starts a connection-scoped session for one upsert call.
	Open(ctx context.Context) (Session, error)
	Close() error
}

// Session holds one connection. Every method commits its own work.
type Session interface {
	// OpenLog inserts an open run log entry with a zero tally.
	OpenLog(ctx context.Context, seriesID string, start time.Time) error
	// Merge calls the routine for one observation in its own transaction and
	// returns the affected-row count. The transaction is committed only when
	// the count is positive.
	Merge(ctx context.Context, r Routine, seriesID, date string, value decimal.Decimal) (int64, error)
	// CloseLog sets the tally and stop time of the newest open entry.
	CloseLog(ctx context.Context, seriesID string, tally int, stop time.Time) error
	Close() error
}

func checkID(id string) error {
	if !model.ValidID(id) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}
	return nil
}
