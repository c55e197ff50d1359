package metrics

import (
	"sort"
	"sync"
	"time"
)

const maxSamples = 1000

type Metrics struct {
	mutex            sync.RWMutex
	requests         map[string]int64
	selections       map[string]int64
	responseTimes    map[string][]time.Duration
	statusCodes      map[string]map[int]int64
	healthStatus     map[string]bool
	breakers         map[string]*BreakerMetrics
	validationErrors map[string]int64
	configVersion    uint64
	configReloads    int64
	startTime        time.Time
}

type Snapshot struct {
	TotalRequests    int64                      `json:"total_requests"`
	Uptime           time.Duration              `json:"uptime"`
	Strategy         string                     `json:"strategy"`
	Instances        map[string]InstanceMetrics `json:"instances"`
	Breakers         map[string]BreakerMetrics  `json:"breakers"`
	Dependencies     map[string]bool            `json:"dependencies"`
	ValidationErrors map[string]int64           `json:"validation_errors"`
	ConfigVersion    uint64                     `json:"config_version"`
	ConfigReloads    int64                      `json:"config_reloads"`
}

type InstanceMetrics struct {
	Requests    int64         `json:"requests"`
	Selections  int64         `json:"selections"`
	AvgResponse time.Duration `json:"avg_response"`
	P50Response time.Duration `json:"p50_response"`
	P95Response time.Duration `json:"p95_response"`
	P99Response time.Duration `json:"p99_response"`
	StatusCodes map[int]int64 `json:"status_codes"`
}

type BreakerMetrics struct {
	State       string `json:"state"`
	Transitions int64  `json:"transitions"`
	Fallbacks   int64  `json:"fallbacks"`
}

func (m *Metrics) IncrementRequests(instance string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.requests[instance]++
}

func (m *Metrics) RecordInstanceSelection(instance string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.selections[instance]++
}

func (m *Metrics) RecordResponse(instance string, duration time.Duration, statusCode int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.responseTimes[instance] = append(m.responseTimes[instance], duration)

	if len(m.responseTimes[instance]) > maxSamples {
		m.responseTimes[instance] = m.responseTimes[instance][1:]
	}

	if m.statusCodes[instance] == nil {
		m.statusCodes[instance] = make(map[int]int64)
	}
	m.statusCodes[instance][statusCode]++
}

func (m *Metrics) UpdateHealthStatus(dependency string, healthy bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.healthStatus[dependency] = healthy
}

func (m *Metrics) breaker(name string) *BreakerMetrics {
	b, ok := m.breakers[name]
	if !ok {
		b = &BreakerMetrics{}
		m.breakers[name] = b
	}
	return b
}

func (m *Metrics) RecordBreakerState(name, state string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	b := m.breaker(name)
	if b.State != "" && b.State != state {
		b.Transitions++
	}
	b.State = state
}

func (m *Metrics) RecordFallback(name string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.breaker(name).Fallbacks++
}

func (m *Metrics) RecordValidationFailure(route string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.validationErrors[route]++
}

// RecordConfigVersion counts a reload and keeps the highest version seen.
func (m *Metrics) RecordConfigVersion(version uint64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.configReloads++
	if version > m.configVersion {
		m.configVersion = version
	}
}

func (m *Metrics) Snapshot(strategy string) Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Uptime:           time.Since(m.startTime),
		Strategy:         strategy,
		Instances:        make(map[string]InstanceMetrics),
		Breakers:         make(map[string]BreakerMetrics, len(m.breakers)),
		Dependencies:     make(map[string]bool, len(m.healthStatus)),
		ValidationErrors: make(map[string]int64, len(m.validationErrors)),
		ConfigVersion:    m.configVersion,
		ConfigReloads:    m.configReloads,
	}

	// Collect all instance ids seen by any counter
	all := make(map[string]bool)
	for id := range m.requests {
		all[id] = true
	}
	for id := range m.selections {
		all[id] = true
	}
	for id := range m.responseTimes {
		all[id] = true
	}

	for id := range all {
		snap.TotalRequests += m.requests[id]

		im := InstanceMetrics{
			Requests:    m.requests[id],
			Selections:  m.selections[id],
			StatusCodes: make(map[int]int64, len(m.statusCodes[id])),
		}
		for code, n := range m.statusCodes[id] {
			im.StatusCodes[code] = n
		}

		durations := m.responseTimes[id]
		if len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			im.AvgResponse = average(sorted)
			im.P50Response = percentile(sorted, 0.50)
			im.P95Response = percentile(sorted, 0.95)
			im.P99Response = percentile(sorted, 0.99)
		}

		snap.Instances[id] = im
	}

	for name, b := range m.breakers {
		snap.Breakers[name] = *b
	}
	for name, healthy := range m.healthStatus {
		snap.Dependencies[name] = healthy
	}
	for route, n := range m.validationErrors {
		snap.ValidationErrors[route] = n
	}

	return snap
}

func NewMetrics() *Metrics {
	return &Metrics{
		requests:         make(map[string]int64),
		selections:       make(map[string]int64),
		responseTimes:    make(map[string][]time.Duration),
		statusCodes:      make(map[string]map[int]int64),
		healthStatus:     make(map[string]bool),
		breakers:         make(map[string]*BreakerMetrics),
		validationErrors: make(map[string]int64),
		startTime:        time.Now(),
	}
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
