package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestFREDProvider_Observations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/series/observations", r.URL.Path)
		assert.Equal(t, "UNRATE", r.URL.Query().Get("series_id"))
		assert.Equal(t, "k", r.URL.Query().Get("api_key"))
		assert.Equal(t, "json", r.URL.Query().Get("file_type"))
		fmt.Fprint(w, `{"count":3,"offset":0,"limit":100000,"observations":[
			{"date":"2024-01-03","value":"3.8"},
			{"date":"2024-01-01","value":"3.7"},
			{"date":"2024-01-02","value":"."}]}`)
	}))
	defer srv.Close()

	p := NewFREDProvider(srv.URL, "k", "")
	obs, err := p.Observations(context.Background(), "UNRATE")
	require.NoError(t, err)
	require.Len(t, obs, 3)
	assert.Equal(t, "2024-01-01", obs[0].Date.Format("2006-01-02"))
	assert.Equal(t, "3.7", obs[0].Value)
	assert.Equal(t, ".", obs[1].Value)
	assert.Equal(t, "2024-01-03", obs[2].Date.Format("2006-01-02"))
}

func TestFREDProvider_Paginates(t *testing.T) {
	var offsets []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		off := r.URL.Query().Get("offset")
		offsets = append(offsets, off)
		n, _ := strconv.Atoi(off)
		if n == 0 {
			fmt.Fprint(w, `{"count":2,"offset":0,"observations":[{"date":"2024-01-01","value":"1"}]}`)
			return
		}
		fmt.Fprint(w, `{"count":2,"offset":1,"observations":[{"date":"2024-01-02","value":"2"}]}`)
	}))
	defer srv.Close()

	obs, err := NewFREDProvider(srv.URL, "k", "").Observations(context.Background(), "DFF")
	require.NoError(t, err)
	assert.Len(t, obs, 2)
	assert.Equal(t, []string{"0", "1"}, offsets)
}

func TestFREDProvider_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error_code":400,"error_message":"Bad Request.  The series does not exist."}`)
	}))
	defer srv.Close()

	_, err := NewFREDProvider(srv.URL, "k", "").Observations(context.Background(), "NOPE")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 400, apiErr.Code)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, apiErr.Error(), "does not exist")
}

func TestFREDProvider_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewFREDProvider(srv.URL, "k", "").Observations(context.Background(), "GDP")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Contains(t, apiErr.Message, "upstream down")
}

func TestFREDProvider_BadDate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"count":1,"observations":[{"date":"01/02/2024","value":"1"}]}`)
	}))
	defer srv.Close()

	_, err := NewFREDProvider(srv.URL, "k", "").Observations(context.Background(), "GDP")
	require.Error(t, err)
}

func TestFREDProvider_WaitsOnLimiter(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, `{"count":1,"observations":[{"date":"2024-01-01","value":"1"}]}`)
	}))
	defer srv.Close()

	p := NewFREDProvider(srv.URL, "k", "")
	p.Limiter = rate.NewLimiter(rate.Every(time.Hour), 1)

	_, err := p.Observations(context.Background(), "GDP")
	require.NoError(t, err)

	// the only token is spent, so the next page request cannot fit the deadline
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = p.Observations(ctx, "GDP")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
	assert.Equal(t, int32(1), hits.Load())
}
