package models

// StateOverview summarizes the snapshots currently on disk for one run.
type StateOverview struct {
	Symbol     string                    `json:"symbol"`
	ModelKey   string                    `json:"model_key"`
	States     map[string]*StateSnapshot `json:"states"`
	LatestStep string                    `json:"latest_step"`
	Progress   int                       `json:"progress"`
	Complete   bool                      `json:"complete"`
}

// StateEvent types emitted by StreamStates.
const (
	EventState    = "state"
	EventComplete = "complete"
	EventTimeout  = "timeout"
)

// StateEvent is one progress update from a state stream.
type StateEvent struct {
	Type     string         `json:"type"`
	Step     string         `json:"step,omitempty"`
	Progress int            `json:"progress"`
	Snapshot *StateSnapshot `json:"snapshot,omitempty"`
	Message  string         `json:"message,omitempty"`
}
