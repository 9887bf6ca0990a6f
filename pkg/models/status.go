package models

import "fmt"

// StatusKind is the top-level state of an image record
type StatusKind int

const (
	StatusNotProcessed StatusKind = iota // Admitted, work not finished
	StatusProcessed                      // Rotated image stored
	StatusFailed                         // A pipeline stage failed, see Stage
)

// Stage names the pipeline step a failure happened in
type Stage string

const (
	StageNone   Stage = ""
	StageFetch  Stage = "fetch"
	StageRotate Stage = "rotate"
	StageStore  Stage = "store"
)

// ImageStatus is a tagged status value. Stage is only meaningful when Kind is StatusFailed.
type ImageStatus struct {
	Kind  StatusKind
	Stage Stage
}

var (
	NotProcessed   = ImageStatus{Kind: StatusNotProcessed}
	Processed      = ImageStatus{Kind: StatusProcessed}
	FailedToFetch  = Failed(StageFetch)
	FailedToRotate = Failed(StageRotate)
	FailedToStore  = Failed(StageStore)
)

// Failed builds the failure status for a stage
func Failed(stage Stage) ImageStatus {
	return ImageStatus{Kind: StatusFailed, Stage: stage}
}

// String implements fmt.Stringer and is also the persisted form
func (s ImageStatus) String() string {
	switch s.Kind {
	case StatusNotProcessed:
		return "not-processed"
	case StatusProcessed:
		return "processed"
	case StatusFailed:
		return "failed-to-" + string(s.Stage)
	}
	return "unknown"
}

// IsTerminal reports whether no further transition can happen
func (s ImageStatus) IsTerminal() bool {
	return s.Kind == StatusProcessed || s.Kind == StatusFailed
}

// IsValid returns true if the status is one of the known values
func (s ImageStatus) IsValid() bool {
	switch s.Kind {
	case StatusNotProcessed, StatusProcessed:
		return s.Stage == StageNone
	case StatusFailed:
		return s.Stage == StageFetch || s.Stage == StageRotate || s.Stage == StageStore
	}
	return false
}

// ParseImageStatus is the inverse of ImageStatus.String
func ParseImageStatus(raw string) (ImageStatus, error) {
	for _, s := range []ImageStatus{NotProcessed, Processed, FailedToFetch, FailedToRotate, FailedToStore} {
		if s.String() == raw {
			return s, nil
		}
	}
	return ImageStatus{}, fmt.Errorf("unknown image status %q", raw)
}
