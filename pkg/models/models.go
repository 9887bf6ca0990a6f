package models

import (
	"net/url"
	"time"
)

// Site is one listed source webpage
type Site struct {
	URL      string   // As listed in the site file
	FinalURL *url.URL // After redirects, nil until fetched
}

// Hostname returns the output directory name for the site, preferring the post-redirect host
func (s Site) Hostname() string {
	if s.FinalURL != nil && s.FinalURL.Hostname() != "" {
		return s.FinalURL.Hostname()
	}
	if u, err := url.Parse(s.URL); err == nil {
		return u.Hostname()
	}
	return ""
}

// Candidate is an image URL discovered on a site, not yet admitted for processing
type Candidate struct {
	Site    string // Listed site URL, the report key
	Dirname string // Site hostname, output subdirectory
	URL     string // Absolute image URL without fragment
}

// CandidateGroup is the ordered candidate list discovered on one site
type CandidateGroup struct {
	Site    string
	Dirname string
	URLs    []string
}

// ImageRecord is the unit of work once a candidate is admitted
type ImageRecord struct {
	ID        int64 // Durable row id, 0 when no durable store is configured
	Site      string // Listed site the candidate came from
	URL       string
	Dirname   string // Site hostname, output subdirectory
	Filename  string // Deterministic filename derived from URL
	Status    ImageStatus
	Err       error // Last failure, nil unless Status is failed
	CreatedAt time.Time
}

// PersistedRow mirrors an ImageRecord in the durable status table
type PersistedRow struct {
	ID        int64  `json:"id"`
	URL       string `json:"url"`
	Dirname   string `json:"dirname"`
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at"` // Unix seconds
	RunID     string `json:"run_id"`
}

// NewPersistedRow converts a record for storage under the given run id
func NewPersistedRow(rec *ImageRecord, runID string) PersistedRow {
	return PersistedRow{
		ID:        rec.ID,
		URL:       rec.URL,
		Dirname:   rec.Dirname,
		Filename:  rec.Filename,
		Status:    rec.Status.String(),
		CreatedAt: rec.CreatedAt.Unix(),
		RunID:     runID,
	}
}
