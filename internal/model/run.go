package model

import "time"

// Phase names a collection phase.
type Phase string

const (
	PhaseDates    Phase = "dates"
	PhaseActivity Phase = "activity"
)

// RunStatus represents the state of a collection run in the ledger.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusComplete  RunStatus = "complete"
	RunStatusExhausted RunStatus = "exhausted"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one invocation of the collection pipeline.
type Run struct {
	ID         string     `json:"id"`
	OutDir     string     `json:"out_dir"`
	Status     RunStatus  `json:"status"`
	Summary    string     `json:"summary,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// SkipRecord describes an entry that a phase left out.
type SkipRecord struct {
	ID        string     `json:"id"`
	RunID     string     `json:"run_id"`
	URL       string     `json:"url"`
	UID       string     `json:"uid"`
	Phase     Phase      `json:"phase"`
	Reason    SkipReason `json:"reason"`
	Error     string     `json:"error,omitempty"`
	ErrorType string     `json:"error_type,omitempty"` // "transient" or "permanent"
	CreatedAt time.Time  `json:"created_at"`
}
