package coordinator

// Stats is a read-only snapshot of coordinator load.
type Stats struct {
	Active       int          `json:"active"`
	Queued       int          `json:"queued"`
	Debouncing   int          `json:"debouncing"`
	ActiveByKind map[Kind]int `json:"active_by_kind"`
	QueuedByKind map[Kind]int `json:"queued_by_kind"`
}
