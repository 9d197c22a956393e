package dispatcher

import (
	"sort"
	"sync"
	"time"
)

// Metrics counts dispatches per method. It is safe for concurrent use.
type Metrics struct {
	mu      sync.Mutex
	methods map[string]*MethodStats
	unknown map[string]uint64
	panics  uint64
}

// MethodStats summarizes the dispatches of one method.
type MethodStats struct {
	Name      string
	Calls     uint64
	Failures  uint64
	Total     time.Duration
	Max       time.Duration
	LastError string
}

// Mean returns the mean handler duration.
func (s MethodStats) Mean() time.Duration {
	if s.Calls == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Calls)
}

// FailureRate returns the fraction of calls that failed, in [0, 1].
func (s MethodStats) FailureRate() float64 {
	if s.Calls == 0 {
		return 0
	}
	return float64(s.Failures) / float64(s.Calls)
}

// NewMetrics creates an empty collector.
func NewMetrics() *Metrics {
	return &Metrics{
		methods: make(map[string]*MethodStats),
		unknown: make(map[string]uint64),
	}
}

// RecordDispatch records a dispatch that reached a handler. err is the
// handler's failure, or nil.
func (m *Metrics) RecordDispatch(method string, d time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.methods[method]
	if s == nil {
		s = &MethodStats{Name: method}
		m.methods[method] = s
	}
	s.Calls++
	s.Total += d
	s.Max = max(s.Max, d)
	if err != nil {
		s.Failures++
		s.LastError = err.Error()
	}
}

// RecordPanic counts a recovered handler panic. The failed dispatch itself
// is recorded by RecordDispatch.
func (m *Metrics) RecordPanic() {
	m.mu.Lock()
	m.panics++
	m.mu.Unlock()
}

// RecordUnknown records a call to a method missing from the table.
func (m *Metrics) RecordUnknown(method string) {
	m.mu.Lock()
	m.unknown[method]++
	m.mu.Unlock()
}

// Method returns the stats of one method.
func (m *Metrics) Method(name string) (MethodStats, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.methods[name]
	if !ok {
		return MethodStats{}, false
	}
	return *s, true
}

// Summary is a point-in-time copy of everything collected.
type Summary struct {
	Dispatches uint64
	Failures   uint64
	Panics     uint64
	Total      time.Duration

	// Methods is ordered by call count, then name.
	Methods []MethodStats

	// Unknown counts calls per unknown method name.
	Unknown map[string]uint64
}

// Mean returns the mean handler duration across all methods.
func (s Summary) Mean() time.Duration {
	if s.Dispatches == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Dispatches)
}

// UnknownCalls returns the number of calls to unknown methods.
func (s Summary) UnknownCalls() uint64 {
	var n uint64
	for _, c := range s.Unknown {
		n += c
	}
	return n
}

// Summary returns a copy of the collected metrics.
func (m *Metrics) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	sum := Summary{
		Panics:  m.panics,
		Methods: make([]MethodStats, 0, len(m.methods)),
		Unknown: make(map[string]uint64, len(m.unknown)),
	}
	for _, s := range m.methods {
		sum.Dispatches += s.Calls
		sum.Failures += s.Failures
		sum.Total += s.Total
		sum.Methods = append(sum.Methods, *s)
	}
	for name, n := range m.unknown {
		sum.Unknown[name] = n
	}

	sort.Slice(sum.Methods, func(i, j int) bool {
		a, b := sum.Methods[i], sum.Methods[j]
		if a.Calls != b.Calls {
			return a.Calls > b.Calls
		}
		return a.Name < b.Name
	})
	return sum
}
