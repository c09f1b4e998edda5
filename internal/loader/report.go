package loader

import (
	"errors"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/dataset"
)

// Stage is the furthest step a dataset reached. For a failed dataset it is
// the step that failed.
type Stage string

const (
	StageCreate  Stage = "create"
	StageFetch   Stage = "fetch"
	StageAdd     Stage = "add"
	StageDone    Stage = "done"
	StageSkipped Stage = "skipped"
)

// Run statuses.
const (
	StatusOK      = "ok"
	StatusPartial = "partial"
	StatusFailed  = "failed"
	StatusAborted = "aborted"
)

type Result struct {
	Collection dataset.CollectionID `json:"collection"`
	SourceFile string               `json:"source_file"`
	Stage      Stage                `json:"stage"`
	Created    bool                 `json:"created"`
	Documents  int                  `json:"documents"`
	Duration   time.Duration        `json:"-"`
	DurationMs int64                `json:"duration_ms"`
	Err        error                `json:"-"`
	Error      string               `json:"error,omitempty"`
}

func (r Result) OK() bool { return r.Err == nil && r.Stage == StageDone }

func (r *Result) fail(stage Stage, err error) {
	r.Stage = stage
	r.Err = err
	r.Error = err.Error()
}

// Report summarises one SyncAll run. Results follow descriptor order.
type Report struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Results    []Result  `json:"results"`
	Aborted    bool      `json:"aborted"`
	FailFast   bool      `json:"fail_fast"`
}

func (r *Report) count(match func(Result) bool) int {
	n := 0
	for _, res := range r.Results {
		if match(res) {
			n++
		}
	}
	return n
}

func (r *Report) Succeeded() int { return r.count(Result.OK) }

func (r *Report) Failed() int {
	return r.count(func(res Result) bool { return res.Err != nil || (res.Error != "" && res.Stage != StageDone) })
}

func (r *Report) Skipped() int {
	return r.count(func(res Result) bool { return res.Stage == StageSkipped })
}

func (r *Report) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// Err joins the per-dataset errors, or returns nil when every dataset
// loaded.
func (r *Report) Err() error {
	errs := make([]error, 0)
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return errors.Join(errs...)
}

func (r *Report) Status() string {
	failed := r.Failed()
	switch {
	case r.Aborted:
		return StatusAborted
	case failed == 0:
		return StatusOK
	case failed == len(r.Results):
		return StatusFailed
	default:
		return StatusPartial
	}
}
