// Package dhcp6stats collects runtime counters for one client run and
// exports them as JSON or CSV, for operators who want a record of what a
// run did beyond the log lines.
package dhcp6stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"
)

// Counters is a thread-safe accumulator for one client's lifetime.
type Counters struct {
	mu sync.RWMutex

	startTime time.Time
	iface     string
	version   string

	stateTransitions map[string]int64
	exchangesBegun   map[string]int64
	bindCount        int64
	symptomCount     int64
}

// Snapshot is a mutex-free copy of Counters for export.
type Snapshot struct {
	StartTime time.Time `json:"start_time"`
	Uptime    float64   `json:"uptime_seconds"`
	Interface string    `json:"interface"`
	Version   string    `json:"version"`

	StateTransitions map[string]int64 `json:"state_transitions"`
	ExchangesBegun   map[string]int64 `json:"exchanges_begun"`
	BindCount        int64            `json:"bind_count"`
	SymptomCount     int64            `json:"symptom_count"`

	MemoryUsageMB  uint64 `json:"memory_usage_mb"`
	GoroutineCount int    `json:"goroutine_count"`
}

// New starts a Counters for the named interface.
func New(iface, version string) *Counters {
	return &Counters{
		startTime:        time.Now(),
		iface:            iface,
		version:          version,
		stateTransitions: make(map[string]int64),
		exchangesBegun:   make(map[string]int64),
	}
}

// RecordTransition counts one entry into state and, when the client just
// became bound, one bind.
func (c *Counters) RecordTransition(state string, justBound bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateTransitions[state]++
	if isExchangeEntry(state) {
		c.exchangesBegun[state]++
	}
	if justBound {
		c.bindCount++
	}
}

// RecordSymptom counts one retry-threshold-reached notification.
func (c *Counters) RecordSymptom() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.symptomCount++
}

func isExchangeEntry(state string) bool {
	switch state {
	case "Solicit", "Request", "Renew", "Rebind", "Confirm", "Decline", "Inform", "Release":
		return true
	default:
		return false
	}
}

func (c *Counters) snapshot() Snapshot {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	s := Snapshot{
		StartTime:        c.startTime,
		Uptime:           time.Since(c.startTime).Seconds(),
		Interface:        c.iface,
		Version:          c.version,
		BindCount:        c.bindCount,
		SymptomCount:     c.symptomCount,
		MemoryUsageMB:    m.Alloc / 1024 / 1024,
		GoroutineCount:   runtime.NumGoroutine(),
		StateTransitions: make(map[string]int64, len(c.stateTransitions)),
		ExchangesBegun:   make(map[string]int64, len(c.exchangesBegun)),
	}
	for k, v := range c.stateTransitions {
		s.StateTransitions[k] = v
	}
	for k, v := range c.exchangesBegun {
		s.ExchangesBegun[k] = v
	}
	return s
}

// GetSnapshot returns a thread-safe copy of the current counters.
func (c *Counters) GetSnapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot()
}

// ExportJSON writes the current counters to filename as indented JSON.
func (c *Counters) ExportJSON(filename string) error {
	c.mu.RLock()
	snap := c.snapshot()
	c.mu.RUnlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("dhcp6stats: marshal: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("dhcp6stats: write %s: %w", filename, err)
	}
	return nil
}

// ExportCSV writes the current counters to filename as metric,value,category
// rows.
func (c *Counters) ExportCSV(filename string) error {
	c.mu.RLock()
	snap := c.snapshot()
	c.mu.RUnlock()

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("dhcp6stats: create %s: %w", filename, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	if err := w.Write([]string{"metric", "value", "category"}); err != nil {
		return fmt.Errorf("dhcp6stats: write header: %w", err)
	}
	rows := [][3]string{
		{"Start Time", snap.StartTime.Format(time.RFC3339), "General"},
		{"Uptime (seconds)", fmt.Sprintf("%.0f", snap.Uptime), "General"},
		{"Interface", snap.Interface, "General"},
		{"Version", snap.Version, "General"},
		{"Bind Count", fmt.Sprintf("%d", snap.BindCount), "Lease"},
		{"Symptom Count", fmt.Sprintf("%d", snap.SymptomCount), "Lease"},
		{"Memory Usage (MB)", fmt.Sprintf("%d", snap.MemoryUsageMB), "System"},
		{"Goroutine Count", fmt.Sprintf("%d", snap.GoroutineCount), "System"},
	}
	for _, r := range rows {
		if err := w.Write(r[:]); err != nil {
			return fmt.Errorf("dhcp6stats: write row: %w", err)
		}
	}
	for state, count := range snap.StateTransitions {
		if err := w.Write([]string{"State Transitions (" + state + ")", fmt.Sprintf("%d", count), "States"}); err != nil {
			return fmt.Errorf("dhcp6stats: write row: %w", err)
		}
	}
	for state, count := range snap.ExchangesBegun {
		if err := w.Write([]string{"Exchanges Begun (" + state + ")", fmt.Sprintf("%d", count), "Exchanges"}); err != nil {
			return fmt.Errorf("dhcp6stats: write row: %w", err)
		}
	}
	return nil
}

// String returns a short human-readable summary.
func (c *Counters) String() string {
	snap := c.GetSnapshot()
	return fmt.Sprintf(
		"Uptime: %.0fs  Binds: %d  Symptoms: %d  Goroutines: %d\n",
		snap.Uptime, snap.BindCount, snap.SymptomCount, snap.GoroutineCount,
	)
}
