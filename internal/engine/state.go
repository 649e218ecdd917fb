package engine

import (
	"time"

	"github.com/systmms/landdsync/internal/config"
)

// State is a step of the sync state machine.
type State string

const (
	StateIdle                 State = "idle"
	StateAcquiringCredentials State = "acquiring_credentials"
	StateFetchingSource       State = "fetching_source"
	StateMappingAndPublishing State = "mapping_and_publishing"
	StateCompleted            State = "completed"
	StateFailed               State = "failed"
)

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Report summarizes one run. Counters describe the last attempt.
type Report struct {
	Mode        config.Mode
	State       State
	Transitions []State
	Attempts    int

	Pages     int
	Published int
	Skipped   int
	Excluded  int
	Batches   int

	WindowStart string
	WindowEnd   string

	StartedAt  time.Time
	FinishedAt time.Time
	Err        error
}

func (r *Report) resetCounters() {
	r.Pages = 0
	r.Published = 0
	r.Skipped = 0
	r.Excluded = 0
	r.Batches = 0
	r.WindowStart = ""
	r.WindowEnd = ""
}
