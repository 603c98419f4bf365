package game

// TableStatus represents where a table is in its lifecycle
type TableStatus string

const (
	StatusInProgress TableStatus = "IN_PROGRESS"
	StatusCompleted  TableStatus = "COMPLETED"
	StatusSuspended  TableStatus = "SUSPENDED"
)

// statusOf derives the table status from a snapshot.
func statusOf(snap Snapshot) TableStatus {
	if snap.Match.GameOver {
		return StatusCompleted
	}
	return StatusInProgress
}
