package ml

import "sync"

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu           sync.Mutex
	modelsLoaded float64
	loadFailures map[string]int
	latencies    []float64
	timeouts     int
}

func (m *MockMetrics) ModelsLoadedSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelsLoaded = v
}

func (m *MockMetrics) ModelLoadFailuresInc(condition string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadFailures == nil {
		m.loadFailures = make(map[string]int)
	}
	m.loadFailures[condition]++
}

func (m *MockMetrics) InferenceLatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies = append(m.latencies, v)
}

func (m *MockMetrics) InferenceTimeoutsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeouts++
}

func (m *MockMetrics) failuresFor(condition string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadFailures[condition]
}

func (m *MockMetrics) loaded() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.modelsLoaded
}
