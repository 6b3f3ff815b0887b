package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of observation dates.
const DateLayout = "2006-01-02"

// Observation is a single dated value of a series.
type Observation struct {
	Date  time.Time
	Value decimal.Decimal
}

// DateString formats the observation date as YYYY-MM-DD.
func (o Observation) DateString() string {
	return o.Date.Format(DateLayout)
}

// Period returns the reporting period label of a date for the given
// granularity: 2024-03-15, 2024-03 or 2024-Q1.
func Period(g Granularity, d time.Time) string {
	switch g {
	case Monthly:
		return d.Format("2006-01")
	case Quarterly:
		q := (int(d.Month())-1)/3 + 1
		return d.Format("2006") + "-Q" + string(rune('0'+q))
	default:
		return d.Format(DateLayout)
	}
}
