package config

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"FREDflow/internal/model"
)

// File names inside the config directory.
const (
	CredentialsFile  = "fredflow_config.csv"
	SeriesFile       = "fred_series.csv"
	DestinationsFile = "destinations.csv"
)

// ErrMissingAPIKey is returned when no api_key row exists in the credentials file.
var ErrMissingAPIKey = errors.New("api_key not found")

// Destination holds the connection parameters of one database target.
type Destination struct {
	User     string
	Password string
	Host     string // file path for sqlite
	Port     int
	SID      string // service identifier
	Name     string // display name
	Driver   string // oracle, postgres or sqlite
}

// Registry is everything loaded from the CSV configuration files.
type Registry struct {
	APIKey       string
	Series       []model.Series
	Destinations []Destination
}

// LoadRegistry reads the credentials, series and destination files from dir.
// An apiKey override, when non-empty, takes precedence over the credentials file.
func LoadRegistry(dir, apiKey string) (*Registry, error) {
	reg := &Registry{APIKey: apiKey}
	if reg.APIKey == "" {
		key, err := LoadAPIKey(filepath.Join(dir, CredentialsFile))
		if err != nil {
			return nil, err
		}
		reg.APIKey = key
	}

	series, err := LoadSeries(filepath.Join(dir, SeriesFile))
	if err != nil {
		return nil, err
	}
	reg.Series = series

	dests, err := LoadDestinations(filepath.Join(dir, DestinationsFile))
	if err != nil {
		return nil, err
	}
	reg.Destinations = dests
	return reg, nil
}

// LoadAPIKey returns the value of the api_key row.
func LoadAPIKey(path string) (string, error) {
	rows, err := readCSV(path)
	if err != nil {
		return "", err
	}
	for _, row := range rows {
		if len(row) >= 2 && strings.TrimSpace(row[0]) == "api_key" {
			if key := strings.TrimSpace(row[1]); key != "" {
				return key, nil
			}
		}
	}
	return "", fmt.Errorf("%s: %w", path, ErrMissingAPIKey)
}

// LoadSeries parses the series registry: code, name, granularity, lookback.
func LoadSeries(path string) ([]model.Series, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(rows))
	series := make([]model.Series, 0, len(rows))
	for i, row := range rows {
		line := i + 2
		if len(row) < 4 {
			return nil, fmt.Errorf("%s:%d: expected 4 columns, got %d", path, line, len(row))
		}
		id := strings.TrimSpace(row[0])
		if !model.ValidID(id) {
			return nil, fmt.Errorf("%s:%d: invalid series code %q", path, line, id)
		}
		if seen[id] {
			return nil, fmt.Errorf("%s:%d: duplicate series code %q", path, line, id)
		}
		seen[id] = true
		lookback, err := strconv.Atoi(strings.TrimSpace(row[3]))
		if err != nil || lookback < 0 {
			return nil, fmt.Errorf("%s:%d: lookback must be a non-negative integer, got %q", path, line, row[3])
		}
		series = append(series, model.Series{
			ID:          id,
			Name:        strings.TrimSpace(row[1]),
			Granularity: model.ParseGranularity(row[2]),
			Lookback:    lookback,
		})
	}
	return series, nil
}

// LoadDestinations parses: user, password, host, port, sid, name[, driver].
func LoadDestinations(path string) ([]Destination, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	dests := make([]Destination, 0, len(rows))
	for i, row := range rows {
		line := i + 2
		if len(row) < 6 {
			return nil, fmt.Errorf("%s:%d: expected at least 6 columns, got %d", path, line, len(row))
		}
		d := Destination{
			User:     strings.TrimSpace(row[0]),
			Password: strings.TrimSpace(row[1]),
			Host:     strings.TrimSpace(row[2]),
			SID:      strings.TrimSpace(row[4]),
			Name:     strings.TrimSpace(row[5]),
			Driver:   "oracle",
		}
		if len(row) > 6 && strings.TrimSpace(row[6]) != "" {
			d.Driver = strings.ToLower(strings.TrimSpace(row[6]))
		}
		if port := strings.TrimSpace(row[3]); port != "" {
			p, err := strconv.Atoi(port)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: invalid port %q", path, line, port)
			}
			d.Port = p
		}
		if d.Name == "" {
			d.Name = d.Host
		}
		dests = append(dests, d)
	}
	return dests, nil
}

// readCSV returns all records after the header row.
func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.Comment = '#'

	if _, err := r.Read(); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return rows, nil
}
