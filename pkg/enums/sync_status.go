package enums

import "fmt"

// SyncStatus tracks one synchronization attempt through its state machine.
// conflict is transient: attempts always conclude as synced or failed.
type SyncStatus string

const (
	SyncStatusIdle     SyncStatus = "idle"
	SyncStatusSyncing  SyncStatus = "syncing"
	SyncStatusSynced   SyncStatus = "synced"
	SyncStatusConflict SyncStatus = "conflict"
	SyncStatusFailed   SyncStatus = "failed"
)

var validSyncStatuses = []SyncStatus{
	SyncStatusIdle,
	SyncStatusSyncing,
	SyncStatusSynced,
	SyncStatusConflict,
	SyncStatusFailed,
}

// String implements fmt.Stringer.
func (s SyncStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SyncStatus.
func (s SyncStatus) IsValid() bool {
	for _, candidate := range validSyncStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// Terminal reports whether the status concludes a sync attempt.
func (s SyncStatus) Terminal() bool {
	return s == SyncStatusSynced || s == SyncStatusFailed
}

// ParseSyncStatus converts raw input into a SyncStatus.
func ParseSyncStatus(value string) (SyncStatus, error) {
	for _, candidate := range validSyncStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sync status %q", value)
}
