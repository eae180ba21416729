// Package sync reconciles a local cart with the server-held cart for
// the same authenticated identity, and manages the offline action queue
// replayed when connectivity returns.
package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"sync/atomic"
	"time"

	"github.com/storefront-kit/cartengine/internal/cart"
	"github.com/storefront-kit/cartengine/internal/totals"
	"github.com/storefront-kit/cartengine/pkg/auth"
	"github.com/storefront-kit/cartengine/pkg/config"
	"github.com/storefront-kit/cartengine/pkg/enums"
	pkgerrors "github.com/storefront-kit/cartengine/pkg/errors"
	"github.com/storefront-kit/cartengine/pkg/logger"
	"github.com/storefront-kit/cartengine/pkg/metrics"
)

// ServerStore is the sync transport collaborator: the remote endpoint
// holding the server-side cart per identity.
type ServerStore interface {
	// GetServerCart returns the server-held cart, or (nil, nil) when the
	// identity has none yet.
	GetServerCart(ctx context.Context, identity auth.Identity) (*cart.Cart, error)
	PutServerCart(ctx context.Context, identity auth.Identity, c *cart.Cart) error
}

// Manager runs the merge protocol. Sync attempts on one manager are
// serialized by an internal mutex; concurrent attempts from different
// devices remain last-write-wins, which the idempotent merge policies
// make convergent.
type Manager struct {
	server  ServerStore
	calc    *totals.Calculator
	policy  enums.ConflictPolicy
	logg    *logger.Logger
	metrics *metrics.SyncMetrics
	now     func() time.Time

	mu     gosync.Mutex
	status enums.SyncStatus

	obsMu     gosync.Mutex
	listeners []Listener

	queue     *ActionQueue
	connected atomic.Bool
}

// NewManager builds a sync manager with the given resolution policy and
// offline queue bounds.
func NewManager(server ServerStore, calc *totals.Calculator, policy enums.ConflictPolicy, queueCfg config.QueueConfig, logg *logger.Logger, m *metrics.SyncMetrics) (*Manager, error) {
	if server == nil {
		return nil, fmt.Errorf("server store required")
	}
	if calc == nil {
		return nil, fmt.Errorf("totals calculator required")
	}
	if !policy.IsValid() {
		policy = enums.ConflictPolicyMergeSmart
	}
	mgr := &Manager{
		server:  server,
		calc:    calc,
		policy:  policy,
		logg:    logg,
		metrics: m,
		now:     time.Now,
		status:  enums.SyncStatusIdle,
		queue:   NewActionQueue(queueCfg),
	}
	mgr.connected.Store(true)
	return mgr, nil
}

// Status returns the state of the most recent sync attempt.
func (m *Manager) Status() enums.SyncStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Register adds an observer. Listeners are invoked synchronously, in
// registration order, at most once per event.
func (m *Manager) Register(l Listener) {
	if l == nil {
		return
	}
	m.obsMu.Lock()
	defer m.obsMu.Unlock()
	m.listeners = append(m.listeners, l)
}

func (m *Manager) notify(event Event) {
	m.obsMu.Lock()
	listeners := make([]Listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.obsMu.Unlock()

	for _, l := range listeners {
		l(event)
	}
}

// SetConnected flips the connectivity signal consulted by callers
// deciding between immediate execution and the offline queue.
func (m *Manager) SetConnected(connected bool) {
	m.connected.Store(connected)
}

// Connected reports the current connectivity signal.
func (m *Manager) Connected() bool {
	return m.connected.Load()
}

// Defer queues a cart-affecting action for replay once connectivity
// returns.
func (m *Manager) Defer(kind string, run func(context.Context) error) string {
	id := m.queue.Enqueue(kind, run)
	m.metrics.SetQueueDepth(m.queue.Len())
	return id
}

// QueueDepth returns the number of actions awaiting replay.
func (m *Manager) QueueDepth() int {
	return m.queue.Len()
}

// Replay drains the offline queue in order.
func (m *Manager) Replay(ctx context.Context) error {
	err := m.queue.Replay(ctx)
	m.metrics.SetQueueDepth(m.queue.Len())
	return err
}

// Sync runs one synchronization attempt and returns its result. The
// local cart is never mutated: the merged snapshot is a new value, and
// any failure leaves local state untouched.
func (m *Manager) Sync(ctx context.Context, local *cart.Cart, identity auth.Identity) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	started := m.now()
	m.status = enums.SyncStatusSyncing
	m.notify(Event{Type: enums.SyncEventStart, Status: enums.SyncStatusSyncing, At: started})

	result, err := m.attempt(ctx, local, identity)
	if err != nil {
		m.status = enums.SyncStatusFailed
		m.metrics.ObserveAttempt(enums.SyncStatusFailed.String(), m.now().Sub(started))
		m.notify(Event{Type: enums.SyncEventError, Status: enums.SyncStatusFailed, Err: err, At: m.now()})
		if m.logg != nil {
			m.logg.Error(ctx, "cart sync failed", err)
		}
		return &Result{Success: false, Status: enums.SyncStatusFailed, Timestamp: m.now()}, err
	}

	m.status = enums.SyncStatusSynced
	m.metrics.ObserveAttempt(enums.SyncStatusSynced.String(), m.now().Sub(started))
	m.metrics.AddConflicts(len(result.Conflicts))
	m.notify(Event{Type: enums.SyncEventComplete, Status: enums.SyncStatusSynced, Result: result, At: m.now()})
	return result, nil
}

func (m *Manager) attempt(ctx context.Context, local *cart.Cart, identity auth.Identity) (*Result, error) {
	if !identity.Authenticated {
		return nil, pkgerrors.New(pkgerrors.CodeSyncAuth, "sync requires an authenticated identity")
	}
	if local == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "local cart is required")
	}

	server, err := m.server.GetServerCart(ctx, identity)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeSync, err, "fetch server cart")
	}

	var (
		merged    *cart.Cart
		conflicts []Conflict
		changes   ChangeSummary
	)
	if server == nil {
		// No server cart yet: upload the local cart verbatim.
		merged = local.Clone()
	} else {
		merged, conflicts, changes = m.merge(local, server)
		// conflict is a transient sub-state: it is entered, observed,
		// and resolved within the same attempt.
		if len(conflicts) > 0 {
			m.status = enums.SyncStatusConflict
			for i := range conflicts {
				m.notify(Event{Type: enums.SyncEventConflict, Status: enums.SyncStatusConflict, Conflict: &conflicts[i], At: m.now()})
			}
		}
	}

	merged.CustomerID = identity.UserID
	merged.Totals = m.calc.Calculate(totals.Input{
		Items:           merged.Items,
		Coupons:         merged.Coupons,
		ShippingMethods: merged.ShippingMethods,
		Fees:            merged.Fees,
	})
	merged.Touch(m.now())

	if err := m.server.PutServerCart(ctx, identity, merged); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeSync, err, "upload merged cart")
	}

	return &Result{
		Success:    true,
		Status:     enums.SyncStatusSynced,
		Conflicts:  conflicts,
		MergedCart: merged,
		Timestamp:  m.now(),
		Changes:    changes,
	}, nil
}

// merge reconciles the two carts item-by-item and coupon-by-coupon.
// Local items win ties because local writes always precede a sync;
// server-only entries are additions from another device.
func (m *Manager) merge(local, server *cart.Cart) (*cart.Cart, []Conflict, ChangeSummary) {
	merged := local.Clone()
	var conflicts []Conflict
	var changes ChangeSummary

	serverItems := make(map[string]*cart.Item, len(server.Items))
	for i := range server.Items {
		serverItems[server.Items[i].Key] = &server.Items[i]
	}

	for i := range merged.Items {
		item := &merged.Items[i]
		remote, ok := serverItems[item.Key]
		if !ok {
			continue
		}
		if remote.Quantity != item.Quantity {
			resolved := resolveQuantity(m.policy, item.Quantity, remote.Quantity)
			conflicts = append(conflicts, Conflict{
				ItemKey:     item.Key,
				LocalValue:  item.Quantity,
				ServerValue: remote.Quantity,
				Message:     fmt.Sprintf("quantity differs: local %d, server %d", item.Quantity, remote.Quantity),
				Suggestion:  fmt.Sprintf("policy %s keeps quantity %d", m.policy, resolved),
			})
			if resolved != item.Quantity {
				changes.ItemsUpdated++
			}
			item.Quantity = resolved
			item.Recalculate()
		}
	}

	localKeys := make(map[string]struct{}, len(merged.Items))
	for i := range merged.Items {
		localKeys[merged.Items[i].Key] = struct{}{}
	}
	for i := range server.Items {
		if _, ok := localKeys[server.Items[i].Key]; ok {
			continue
		}
		merged.Items = append(merged.Items, server.Items[i].Clone())
		changes.ItemsAdded++
	}

	// Coupons: union of both sides, local entries taking precedence on
	// conflicting fields.
	for i := range server.Coupons {
		if merged.FindCoupon(server.Coupons[i].Code) >= 0 {
			continue
		}
		merged.Coupons = append(merged.Coupons, server.Coupons[i].Clone())
		changes.CouponsAdded++
	}

	return merged, conflicts, changes
}

// resolveQuantity applies the configured policy to one diverging line.
// prompt_user resolves like merge_smart: the merge never suspends.
func resolveQuantity(policy enums.ConflictPolicy, local, server int) int {
	switch policy {
	case enums.ConflictPolicyLocalWins:
		return local
	case enums.ConflictPolicyServerWins:
		return server
	case enums.ConflictPolicyMergeQuantities:
		return local + server
	default:
		if server > local {
			return server
		}
		return local
	}
}
