package sweep

import (
	"time"
)

// Action is what a sweep did with one path
type Action string

const (
	ActionDelete Action = "DELETE"
	ActionDryRun Action = "DRY_RUN"
	ActionSkip   Action = "SKIP"
	ActionError  Action = "ERROR"
)

const (
	ObjectFile     = "file"
	ObjectEmptyDir = "empty_directory"
	ObjectDir      = "directory"
)

const (
	ReasonSuffixMatch = "suffix_match"
	ReasonEmptyDir    = "empty_after_sweep"
	ReasonNotEmpty    = "not_empty"
	ReasonUnreadable  = "unreadable_directory"
)

// Outcome records the fate of a single path touched by a sweep.
// Paths the sweep only looked at (non-matching files, non-empty directories)
// produce no outcome.
type Outcome struct {
	Path       string
	ObjectType string
	Action     Action
	Size       int64
	Reason     string
	Err        error
	At         time.Time
}

// Removed reports whether the path is gone, or would be in a dry run
func (o Outcome) Removed() bool {
	return o.Action == ActionDelete || o.Action == ActionDryRun
}

// ErrorMessage returns the error text or "" for successful outcomes
func (o Outcome) ErrorMessage() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Result summarizes one Clean call
type Result struct {
	RunID        string
	Root         string
	Suffix       string
	DryRun       bool
	Outcomes     []Outcome
	FilesDeleted int
	DirsDeleted  int
	BytesFreed   int64
	Errors       int
	Skipped      int
	Duration     time.Duration
}

func (r *Result) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Action {
	case ActionDelete, ActionDryRun:
		if o.ObjectType == ObjectFile {
			r.FilesDeleted++
			r.BytesFreed += o.Size
		} else {
			r.DirsDeleted++
		}
	case ActionSkip:
		r.Skipped++
	case ActionError:
		r.Errors++
	}
}

// Failed returns the outcomes whose deletion was attempted and failed
func (r *Result) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Action == ActionError {
			out = append(out, o)
		}
	}
	return out
}

// OK reports whether every attempted deletion succeeded
func (r *Result) OK() bool {
	return r.Errors == 0
}
