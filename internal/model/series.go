package model

import (
	"fmt"
	"regexp"
	"strings"
)

// Granularity is the reporting frequency of a series.
type Granularity string

const (
	Daily     Granularity = "DAILY"
	Monthly   Granularity = "MONTHLY"
	Quarterly Granularity = "QUARTERLY"
)

// ParseGranularity normalises a registry value. Unknown values are kept as-is
// so they can be reported when the series is merged.
func ParseGranularity(s string) Granularity {
	return Granularity(strings.ToUpper(strings.TrimSpace(s)))
}

// Valid reports whether g is one of the known granularities.
func (g Granularity) Valid() bool {
	switch g {
	case Daily, Monthly, Quarterly:
		return true
	}
	return false
}

// Descriptor is the fixed kind/title pair of a pipeline object.
type Descriptor struct {
	Kind  string
	Title string
}

func (d Descriptor) String() string { return fmt.Sprintf("%s (%s)", d.Title, d.Kind) }

// SeriesDescriptor describes every FRED series.
var SeriesDescriptor = Descriptor{Kind: "FRS", Title: "FRED Series"}

// Series is a tracked time series as declared in the registry.
type Series struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Granularity Granularity `json:"granularity"`
	Lookback    int         `json:"lookback"` // days
}

func (s Series) Descriptor() Descriptor { return SeriesDescriptor }

func (s Series) String() string {
	return fmt.Sprintf("%s %q granularity=%s lookback=%d", s.ID, s.Name, s.Granularity, s.Lookback)
}

var identifier = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// ValidID reports whether id can be used verbatim as a SQL table name.
func ValidID(id string) bool {
	return len(id) <= 128 && identifier.MatchString(id)
}
