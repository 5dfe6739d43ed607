package snapshot

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Hobrus/svcexporter.git/internal/app/exporter/probe"
)

// Snapshot is the merged view served to scrapers. A published Snapshot is
// never modified; callers must treat its maps as read-only.
type Snapshot struct {
	Metrics    map[string]float64
	Statuses   map[string]bool
	Attributes map[string]float64

	// LastSuccess is zero until the first successful probe.
	LastSuccess       time.Time
	LastCheckDuration time.Duration
	SuccessCount      uint64
	LastError         string
}

// Targets returns the target names in lexical order.
func (s *Snapshot) Targets() []string {
	out := make([]string, 0, len(s.Statuses))
	for name := range s.Statuses {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Running counts targets that are up.
func (s *Snapshot) Running() int {
	n := 0
	for _, up := range s.Statuses {
		if up {
			n++
		}
	}
	return n
}

// Store publishes snapshots through an atomic pointer. Reads never block;
// writes copy the current snapshot, apply the change and swap it in.
type Store struct {
	writeMu sync.Mutex
	current atomic.Pointer[Snapshot]
}

// New returns a store whose initial snapshot carries every described gauge
// at its default value.
func New(defaults []probe.GaugeDesc) *Store {
	metrics := make(map[string]float64, len(defaults))
	for _, d := range defaults {
		metrics[d.Name] = d.Default
	}
	s := &Store{}
	s.current.Store(&Snapshot{
		Metrics:    metrics,
		Statuses:   map[string]bool{},
		Attributes: map[string]float64{},
	})
	return s
}

// Load returns the current snapshot.
func (s *Store) Load() *Snapshot {
	return s.current.Load()
}

// Replace merges a successful reading. Reported metrics overwrite their
// previous values, unreported ones are kept. A reading with targets replaces
// the target set; every target gets an attribute (0 when missing).
func (s *Store) Replace(r probe.Reading, at time.Time, took time.Duration) *Snapshot {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	prev := s.current.Load()
	next := &Snapshot{
		Metrics:           make(map[string]float64, len(prev.Metrics)+len(r.Metrics)),
		Statuses:          prev.Statuses,
		Attributes:        prev.Attributes,
		LastSuccess:       at,
		LastCheckDuration: took,
		SuccessCount:      prev.SuccessCount + 1,
	}
	for k, v := range prev.Metrics {
		next.Metrics[k] = v
	}
	for k, v := range r.Metrics {
		next.Metrics[k] = v
	}

	if r.Statuses != nil {
		next.Statuses = make(map[string]bool, len(r.Statuses))
		next.Attributes = make(map[string]float64, len(r.Statuses))
		for name, up := range r.Statuses {
			next.Statuses[name] = up
			next.Attributes[name] = r.Attributes[name]
		}
	}

	s.current.Store(next)
	return next
}

// RecordFailure keeps all values and counters and only updates the error and
// the check duration.
func (s *Store) RecordFailure(err error, took time.Duration) *Snapshot {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := *s.current.Load()
	next.LastError = err.Error()
	next.LastCheckDuration = took

	s.current.Store(&next)
	return &next
}
