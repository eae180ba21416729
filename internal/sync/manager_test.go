package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/storefront-kit/cartengine/internal/cart"
	"github.com/storefront-kit/cartengine/internal/totals"
	"github.com/storefront-kit/cartengine/pkg/auth"
	"github.com/storefront-kit/cartengine/pkg/config"
	"github.com/storefront-kit/cartengine/pkg/enums"
	pkgerrors "github.com/storefront-kit/cartengine/pkg/errors"
)

type stubServer struct {
	cart    *cart.Cart
	getErr  error
	putErr  error
	putSeen *cart.Cart
}

func (s *stubServer) GetServerCart(ctx context.Context, identity auth.Identity) (*cart.Cart, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.cart, nil
}

func (s *stubServer) PutServerCart(ctx context.Context, identity auth.Identity, c *cart.Cart) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.putSeen = c
	return nil
}

func authedUser() auth.Identity {
	return auth.Identity{Authenticated: true, UserID: "user-1"}
}

func newManager(t *testing.T, server ServerStore, policy enums.ConflictPolicy) *Manager {
	t.Helper()
	calc, err := totals.NewCalculator(config.TaxConfig{Enabled: false, RoundAtSubtotal: true, Country: "US"})
	if err != nil {
		t.Fatalf("calculator: %v", err)
	}
	mgr, err := NewManager(server, calc, policy, config.QueueConfig{MaxSize: 10, MaxRetries: 2}, nil, nil)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	return mgr
}

func lineItem(t *testing.T, productID string, qty int, price string) cart.Item {
	t.Helper()
	p, err := decimal.NewFromString(price)
	if err != nil {
		t.Fatalf("parsing %q: %v", price, err)
	}
	item := cart.Item{
		Key:          cart.ItemKey(productID, "", nil),
		ProductID:    productID,
		Quantity:     qty,
		Price:        p,
		RegularPrice: p,
	}
	item.Recalculate()
	return item
}

func cartOf(t *testing.T, session string, items ...cart.Item) *cart.Cart {
	t.Helper()
	c := cart.New(session, time.Now())
	c.Items = items
	return c
}

func TestSyncRequiresAuthentication(t *testing.T) {
	t.Parallel()

	mgr := newManager(t, &stubServer{}, enums.ConflictPolicyMergeSmart)
	local := cartOf(t, "s-1", lineItem(t, "p-1", 1, "10.00"))

	result, err := mgr.Sync(context.Background(), local, auth.Identity{})
	if err == nil {
		t.Fatal("expected error for anonymous identity")
	}
	if pkgerrors.Retryable(err) {
		t.Fatal("missing auth is non-retryable")
	}
	if result.Success || result.Status != enums.SyncStatusFailed {
		t.Fatalf("unexpected result: %+v", result)
	}
	if mgr.Status() != enums.SyncStatusFailed {
		t.Fatalf("unexpected status: %s", mgr.Status())
	}
}

func TestSyncUploadsLocalWhenServerEmpty(t *testing.T) {
	t.Parallel()

	server := &stubServer{}
	mgr := newManager(t, server, enums.ConflictPolicyMergeSmart)
	local := cartOf(t, "s-1", lineItem(t, "p-1", 2, "10.00"))

	result, err := mgr.Sync(context.Background(), local, authedUser())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success || result.Status != enums.SyncStatusSynced {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(result.Conflicts) != 0 {
		t.Fatalf("expected zero conflicts, got %+v", result.Conflicts)
	}
	if server.putSeen == nil || len(server.putSeen.Items) != 1 {
		t.Fatal("expected local cart uploaded verbatim")
	}
	if server.putSeen.CustomerID != "user-1" {
		t.Fatalf("merged cart should carry the identity, got %q", server.putSeen.CustomerID)
	}
}

func TestMergeConvergencePerPolicy(t *testing.T) {
	t.Parallel()

	cases := []struct {
		policy enums.ConflictPolicy
		want   int
	}{
		{enums.ConflictPolicyMergeSmart, 5},
		{enums.ConflictPolicyMergeQuantities, 7},
		{enums.ConflictPolicyLocalWins, 2},
		{enums.ConflictPolicyServerWins, 5},
		{enums.ConflictPolicyPromptUser, 5},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.policy.String(), func(t *testing.T) {
			t.Parallel()

			server := &stubServer{cart: cartOf(t, "s-other", lineItem(t, "p-1", 5, "10.00"))}
			mgr := newManager(t, server, tc.policy)
			local := cartOf(t, "s-1", lineItem(t, "p-1", 2, "10.00"))

			result, err := mgr.Sync(context.Background(), local, authedUser())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(result.Conflicts) != 1 {
				t.Fatalf("expected one recorded conflict, got %+v", result.Conflicts)
			}
			if got := result.MergedCart.Items[0].Quantity; got != tc.want {
				t.Fatalf("policy %s resolved to %d, want %d", tc.policy, got, tc.want)
			}
			// Local cart is never mutated by a sync.
			if local.Items[0].Quantity != 2 {
				t.Fatalf("local cart mutated: %d", local.Items[0].Quantity)
			}
		})
	}
}

func TestMergeEqualQuantitiesKeepLocalWithoutConflict(t *testing.T) {
	t.Parallel()

	server := &stubServer{cart: cartOf(t, "s-2", lineItem(t, "p-1", 3, "10.00"))}
	mgr := newManager(t, server, enums.ConflictPolicyMergeSmart)
	local := cartOf(t, "s-1", lineItem(t, "p-1", 3, "10.00"))

	result, err := mgr.Sync(context.Background(), local, authedUser())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Conflicts) != 0 {
		t.Fatalf("equal quantities are not a conflict: %+v", result.Conflicts)
	}
}

func TestMergeAppendsServerOnlyItemsAndCoupons(t *testing.T) {
	t.Parallel()

	serverCart := cartOf(t, "s-2",
		lineItem(t, "p-1", 1, "10.00"),
		lineItem(t, "p-9", 4, "3.00"),
	)
	five := decimal.NewFromInt(5)
	serverCart.Coupons = []cart.AppliedCoupon{{Code: "REMOTE5", DiscountType: enums.DiscountTypeFixedCart, Amount: five}}
	server := &stubServer{cart: serverCart}
	mgr := newManager(t, server, enums.ConflictPolicyMergeSmart)

	local := cartOf(t, "s-1", lineItem(t, "p-1", 1, "10.00"))
	local.Coupons = []cart.AppliedCoupon{{Code: "LOCAL1", DiscountType: enums.DiscountTypeFixedCart, Amount: five}}

	result, err := mgr.Sync(context.Background(), local, authedUser())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	merged := result.MergedCart
	if len(merged.Items) != 2 {
		t.Fatalf("expected server-only item appended, got %d items", len(merged.Items))
	}
	if merged.Items[1].ProductID != "p-9" {
		t.Fatalf("server-only items append after local ones, got %+v", merged.Items)
	}
	if len(merged.Coupons) != 2 {
		t.Fatalf("expected coupon union, got %+v", merged.Coupons)
	}
	if result.Changes.ItemsAdded != 1 || result.Changes.CouponsAdded != 1 {
		t.Fatalf("unexpected change summary: %+v", result.Changes)
	}
}

func TestSyncFetchFailureIsRetryableAndLeavesLocalUntouched(t *testing.T) {
	t.Parallel()

	server := &stubServer{getErr: errors.New("gateway timeout")}
	mgr := newManager(t, server, enums.ConflictPolicyMergeSmart)
	local := cartOf(t, "s-1", lineItem(t, "p-1", 2, "10.00"))

	_, err := mgr.Sync(context.Background(), local, authedUser())
	if err == nil {
		t.Fatal("expected transport error")
	}
	if !pkgerrors.Retryable(err) {
		t.Fatal("transport failures are retryable")
	}
	if local.Items[0].Quantity != 2 || local.CustomerID != "" {
		t.Fatal("local cart must be untouched after a failed sync")
	}
}

func TestSyncUploadFailure(t *testing.T) {
	t.Parallel()

	server := &stubServer{
		cart:   cartOf(t, "s-2", lineItem(t, "p-1", 5, "10.00")),
		putErr: errors.New("connection reset"),
	}
	mgr := newManager(t, server, enums.ConflictPolicyMergeSmart)
	local := cartOf(t, "s-1", lineItem(t, "p-1", 2, "10.00"))

	result, err := mgr.Sync(context.Background(), local, authedUser())
	if err == nil {
		t.Fatal("expected upload error")
	}
	if result.Success {
		t.Fatal("failed upload must not report success")
	}
	if local.Items[0].Quantity != 2 {
		t.Fatal("local cart must be untouched")
	}
}

func TestObserversReceiveEventsInRegistrationOrder(t *testing.T) {
	t.Parallel()

	server := &stubServer{cart: cartOf(t, "s-2", lineItem(t, "p-1", 5, "10.00"))}
	mgr := newManager(t, server, enums.ConflictPolicyMergeSmart)

	var order []string
	mgr.Register(func(e Event) { order = append(order, "first:"+string(e.Type)) })
	mgr.Register(func(e Event) { order = append(order, "second:"+string(e.Type)) })

	local := cartOf(t, "s-1", lineItem(t, "p-1", 2, "10.00"))
	if _, err := mgr.Sync(context.Background(), local, authedUser()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"first:sync_start", "second:sync_start",
		"first:sync_conflict", "second:sync_conflict",
		"first:sync_complete", "second:sync_complete",
	}
	if len(order) != len(want) {
		t.Fatalf("expected %d deliveries, got %v", len(want), order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("delivery %d: got %s, want %s (full: %v)", i, order[i], want[i], order)
		}
	}
}

func TestSyncErrorEventDelivered(t *testing.T) {
	t.Parallel()

	server := &stubServer{getErr: errors.New("down")}
	mgr := newManager(t, server, enums.ConflictPolicyMergeSmart)

	var sawError bool
	mgr.Register(func(e Event) {
		if e.Type == enums.SyncEventError && e.Err != nil {
			sawError = true
		}
	})

	local := cartOf(t, "s-1", lineItem(t, "p-1", 1, "10.00"))
	_, _ = mgr.Sync(context.Background(), local, authedUser())

	if !sawError {
		t.Fatal("expected sync_error event")
	}
}

func TestMergedTotalsAreRecomputed(t *testing.T) {
	t.Parallel()

	server := &stubServer{cart: cartOf(t, "s-2", lineItem(t, "p-1", 5, "10.00"))}
	mgr := newManager(t, server, enums.ConflictPolicyMergeQuantities)
	local := cartOf(t, "s-1", lineItem(t, "p-1", 2, "10.00"))

	result, err := mgr.Sync(context.Background(), local, authedUser())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 7 x 10.00
	if result.MergedCart.Totals.Total.StringFixed(2) != "70.00" {
		t.Fatalf("merged totals not recomputed: %s", result.MergedCart.Totals.Total)
	}
}
