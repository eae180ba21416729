package sync

import (
	"time"

	"github.com/storefront-kit/cartengine/internal/cart"
	"github.com/storefront-kit/cartengine/pkg/enums"
)

// Conflict describes one divergence found while merging. Conflicts are
// reported to the caller and observers, never persisted.
type Conflict struct {
	ItemKey     string `json:"item_key"`
	LocalValue  any    `json:"local_value"`
	ServerValue any    `json:"server_value"`
	Message     string `json:"message"`
	Suggestion  string `json:"suggestion"`
}

// ChangeSummary counts what the merge changed relative to the local cart.
type ChangeSummary struct {
	ItemsAdded     int `json:"items_added"`
	ItemsUpdated   int `json:"items_updated"`
	ItemsRemoved   int `json:"items_removed"`
	CouponsAdded   int `json:"coupons_added"`
	CouponsRemoved int `json:"coupons_removed"`
}

// Result reports one concluded sync attempt.
type Result struct {
	Success    bool             `json:"success"`
	Status     enums.SyncStatus `json:"status"`
	Conflicts  []Conflict       `json:"conflicts,omitempty"`
	MergedCart *cart.Cart       `json:"merged_cart,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
	Changes    ChangeSummary    `json:"changes"`
}

// Event is delivered synchronously to registered observers at the
// well-defined points of the sync state machine. Each event is
// delivered at most once, in listener registration order.
type Event struct {
	Type     enums.SyncEventType
	Status   enums.SyncStatus
	Conflict *Conflict
	Result   *Result
	Err      error
	At       time.Time
}

// Listener observes sync lifecycle events.
type Listener func(Event)
