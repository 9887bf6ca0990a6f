// Package stats holds the run counters. RunStats is not safe for concurrent use:
// the admission coordinator is its only writer.
package stats

import "github.com/Sriram-PR/img-rotator/pkg/models"

// Counts is one row of the run summary
type Counts struct {
	Available    int `json:"available"`
	Attempted    int `json:"attempted"`
	InFlight     int `json:"in_flight"`
	Processed    int `json:"processed"`
	FailedFetch  int `json:"failed_to_fetch"`
	FailedRotate int `json:"failed_to_rotate"`
	FailedStore  int `json:"failed_to_store"`
	Skipped      int `json:"skipped"`
}

// Failed sums the per-stage failure counters
func (c Counts) Failed() int {
	return c.FailedFetch + c.FailedRotate + c.FailedStore
}

func (c *Counts) complete(status models.ImageStatus) {
	c.InFlight--
	switch status {
	case models.Processed:
		c.Processed++
	case models.FailedToFetch:
		c.FailedFetch++
	case models.FailedToRotate:
		c.FailedRotate++
	case models.FailedToStore:
		c.FailedStore++
	}
}

// SiteCounts pairs a site hostname with its counters
type SiteCounts struct {
	Site string `json:"site"`
	Counts
}

// Snapshot is an immutable copy of RunStats for reporting
type Snapshot struct {
	Quota int          `json:"quota"`
	Sites []SiteCounts `json:"sites"`
	Total Counts       `json:"total"`
}

// RunStats aggregates per-site and total counters for one run
type RunStats struct {
	quota   int
	order   []string
	sites   map[string]*Counts
	total   Counts
	metrics *Metrics
}

// New creates RunStats. metrics may be nil.
func New(quota int, metrics *Metrics) *RunStats {
	if metrics != nil {
		metrics.quota.Set(float64(quota))
	}
	return &RunStats{quota: quota, sites: make(map[string]*Counts), metrics: metrics}
}

func (s *RunStats) site(name string) *Counts {
	c, ok := s.sites[name]
	if !ok {
		c = &Counts{}
		s.sites[name] = c
		s.order = append(s.order, name)
	}
	return c
}

// AddSite registers a site in report order with its candidate count. A site with no
// candidates (fetch or parse failure) still gets a row.
func (s *RunStats) AddSite(name string, available int) {
	s.site(name).Available += available
	s.total.Available += available
	if s.metrics != nil {
		s.metrics.available.WithLabelValues(name).Add(float64(available))
	}
}

// Admit records a candidate handed to a worker
func (s *RunStats) Admit(site string) {
	c := s.site(site)
	c.Attempted++
	c.InFlight++
	s.total.Attempted++
	s.total.InFlight++
	if s.metrics != nil {
		s.metrics.inFlight.Inc()
	}
}

// Complete applies a terminal status returned by a worker
func (s *RunStats) Complete(site string, status models.ImageStatus) {
	s.site(site).complete(status)
	s.total.complete(status)
	if s.metrics != nil {
		s.metrics.inFlight.Dec()
		s.metrics.images.WithLabelValues(site, status.String()).Inc()
	}
}

// Skip records a candidate already processed by an earlier run
func (s *RunStats) Skip(site string) {
	s.site(site).Skipped++
	s.total.Skipped++
	if s.metrics != nil {
		s.metrics.skipped.WithLabelValues(site).Inc()
	}
}

// Processed returns the total processed count
func (s *RunStats) Processed() int { return s.total.Processed }

// InFlight returns the total in-flight count
func (s *RunStats) InFlight() int { return s.total.InFlight }

// Quota returns the run target
func (s *RunStats) Quota() int { return s.quota }

// Site returns the counters of one site, zero if unknown
func (s *RunStats) Site(name string) Counts {
	if c, ok := s.sites[name]; ok {
		return *c
	}
	return Counts{}
}

// Total returns the run-wide counters
func (s *RunStats) Total() Counts { return s.total }

// Snapshot copies the counters in site registration order
func (s *RunStats) Snapshot() Snapshot {
	snap := Snapshot{Quota: s.quota, Total: s.total, Sites: make([]SiteCounts, 0, len(s.order))}
	for _, name := range s.order {
		snap.Sites = append(snap.Sites, SiteCounts{Site: name, Counts: *s.sites[name]})
	}
	return snap
}
