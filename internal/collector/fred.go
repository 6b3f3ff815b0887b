package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"FREDflow/internal/model"
)

// pageLimit is the maximum page size the FRED API accepts.
const pageLimit = 100000

// FRED allows 120 requests per minute per API key.
const (
	requestsPerMinute = 120
	requestBurst      = 4
)

// APIError is an error reported in a FRED response body.
type APIError struct {
	Status  int
	Code    int    `json:"error_code"`
	Message string `json:"error_message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("fred api error %d (http %d): %s", e.Code, e.Status, e.Message)
}

// FREDProvider implements Provider using the FRED REST API.
type FREDProvider struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	Limiter *rate.Limiter // paces page requests; nil disables pacing
}

// NewFREDProvider creates a new provider with optional proxy support.
func NewFREDProvider(baseURL, apiKey, proxyURL string) *FREDProvider {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &FREDProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		Limiter: rate.NewLimiter(rate.Every(time.Minute/requestsPerMinute), requestBurst),
	}
}

func (p *FREDProvider) Name() string { return "fred" }

// fredPage is the JSON shape of series/observations.
type fredPage struct {
	Count        int `json:"count"`
	Offset       int `json:"offset"`
	Limit        int `json:"limit"`
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

// Observations returns every observation of the series in ascending date order.
func (p *FREDProvider) Observations(ctx context.Context, seriesID string) ([]RawObservation, error) {
	var out []RawObservation
	offset := 0
	for {
		page, err := p.fetchPage(ctx, seriesID, offset)
		if err != nil {
			return nil, err
		}
		for _, o := range page.Observations {
			d, err := time.Parse(model.DateLayout, o.Date)
			if err != nil {
				return nil, fmt.Errorf("fred: bad date %q for %s: %w", o.Date, seriesID, err)
			}
			out = append(out, RawObservation{Date: d, Value: o.Value})
		}
		offset += len(page.Observations)
		if len(page.Observations) == 0 || offset >= page.Count {
			break
		}
	}
	// Ensure chronological order
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (p *FREDProvider) fetchPage(ctx context.Context, seriesID string, offset int) (*fredPage, error) {
	q := url.Values{}
	q.Set("series_id", seriesID)
	q.Set("api_key", p.APIKey)
	q.Set("file_type", "json")
	q.Set("sort_order", "asc")
	q.Set("limit", strconv.Itoa(pageLimit))
	q.Set("offset", strconv.Itoa(offset))
	endpoint := p.BaseURL + "/series/observations?" + q.Encode()

	if p.Limiter != nil {
		if err := p.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("fred rate limit %s: %w", seriesID, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fred fetch %s: %w", seriesID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fred read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(body, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = string(body)
		}
		return nil, apiErr
	}

	var page fredPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("fred decode: %w", err)
	}
	return &page, nil
}
