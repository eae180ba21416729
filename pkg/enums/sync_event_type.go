package enums

// SyncEventType identifies the well-defined points in the sync state
// machine at which observers are notified.
type SyncEventType string

const (
	SyncEventStart    SyncEventType = "sync_start"
	SyncEventConflict SyncEventType = "sync_conflict"
	SyncEventComplete SyncEventType = "sync_complete"
	SyncEventError    SyncEventType = "sync_error"
)

// String implements fmt.Stringer.
func (s SyncEventType) String() string {
	return string(s)
}
