// ABOUTME: Progress events emitted by batch refinement
// ABOUTME: One event per unit number in the requested range
package models

// BatchEventStatus is the per-unit outcome inside a batch
type BatchEventStatus string

const (
	BatchSkipped   BatchEventStatus = "skipped"
	BatchCompleted BatchEventStatus = "completed"
	BatchFailed    BatchEventStatus = "failed"
)

// BatchEvent reports what happened to one unit of a batch
type BatchEvent struct {
	UnitNumber int              `json:"unit_number"`
	UnitID     string           `json:"unit_id,omitempty"`
	Status     BatchEventStatus `json:"status"`
	Reason     string           `json:"reason,omitempty"`
	Error      string           `json:"error,omitempty"`
	Result     *RefineResult    `json:"result,omitempty"`
}

// BatchSummary tallies a finished batch
type BatchSummary struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Add counts one event
func (s *BatchSummary) Add(ev BatchEvent) {
	s.Total++
	switch ev.Status {
	case BatchCompleted:
		s.Completed++
	case BatchFailed:
		s.Failed++
	case BatchSkipped:
		s.Skipped++
	}
}
