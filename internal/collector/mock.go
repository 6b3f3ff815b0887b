package collector

import (
	"context"
	"sync"
)

// MockProvider returns fixed data for development and testing.
type MockProvider struct {
	mu     sync.Mutex
	Data   map[string][]RawObservation
	Errors map[string]error
	Calls  []string
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Observations(_ context.Context, seriesID string) ([]RawObservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, seriesID)
	if err := m.Errors[seriesID]; err != nil {
		return nil, err
	}
	return m.Data[seriesID], nil
}
