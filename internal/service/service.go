// Package service is the thin orchestrator over the cart engine. It
// owns the authoritative in-memory cart for one session, composes the
// totals calculator, validation engine and sync manager, and talks to
// the persistence and catalog collaborators. Callers are expected to
// serialize mutating operations: each mutation reads then writes the
// full snapshot, so two in-flight mutations against the same session
// lose updates.
package service

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/storefront-kit/cartengine/internal/cart"
	"github.com/storefront-kit/cartengine/internal/catalog"
	"github.com/storefront-kit/cartengine/internal/persistence"
	cartsync "github.com/storefront-kit/cartengine/internal/sync"
	"github.com/storefront-kit/cartengine/internal/totals"
	"github.com/storefront-kit/cartengine/internal/validation"
	"github.com/storefront-kit/cartengine/pkg/auth"
	"github.com/storefront-kit/cartengine/pkg/config"
	"github.com/storefront-kit/cartengine/pkg/enums"
	pkgerrors "github.com/storefront-kit/cartengine/pkg/errors"
	"github.com/storefront-kit/cartengine/pkg/logger"
)

// Service exposes the public cart operations. Every method returns an
// explicit error for domain conditions; collaborator panics are caught
// at this boundary and converted into internal errors.
type Service interface {
	GetCart(ctx context.Context) (*cart.Cart, error)
	AddItem(ctx context.Context, input AddItemInput) (*cart.Cart, error)
	UpdateItemQuantity(ctx context.Context, key string, quantity int) (*cart.Cart, error)
	RemoveItem(ctx context.Context, key string) (*cart.Cart, error)
	ClearCart(ctx context.Context) (*cart.Cart, error)
	ApplyCoupon(ctx context.Context, code string) (*cart.Cart, error)
	RemoveCoupon(ctx context.Context, code string) (*cart.Cart, error)
	ValidateCart(ctx context.Context) (*validation.Result, error)
	SyncWithServer(ctx context.Context) (*cartsync.Result, error)
	SetOnline(ctx context.Context, online bool) error
	EnableSync()
	DisableSync()
	Close()
}

// AddItemInput captures one add-to-cart request. When Replace is set
// the requested quantity overwrites an existing line instead of being
// added to it.
type AddItemInput struct {
	ProductID   string
	VariationID string
	Quantity    int
	Attributes  map[string]string
	Replace     bool
}

type service struct {
	products catalog.ProductReader
	coupons  catalog.CouponReader
	store    persistence.CartStore
	calc     *totals.Calculator
	engine   *validation.Engine
	sync     *cartsync.Manager
	identity auth.Provider
	limits   config.LimitsConfig
	interval time.Duration
	logg     *logger.Logger
	now      func() time.Time

	sessionID string

	// snapMu guards only the current-snapshot pointer so the background
	// sync loop can borrow it. It does not serialize mutations.
	snapMu  gosync.Mutex
	current *cart.Cart

	bgMu   gosync.Mutex
	bgStop chan struct{}
	bgDone chan struct{}
}

// Params bundles the collaborators New wires into a service session.
type Params struct {
	SessionID string
	Products  catalog.ProductReader
	Coupons   catalog.CouponReader
	Store     persistence.CartStore
	Calc      *totals.Calculator
	Engine    *validation.Engine
	Sync      *cartsync.Manager
	Identity  auth.Provider
	Limits    config.LimitsConfig
	Interval  time.Duration
	Logger    *logger.Logger
}

// New builds a cart service for one session.
func New(p Params) (Service, error) {
	if p.Products == nil {
		return nil, fmt.Errorf("product reader required")
	}
	if p.Coupons == nil {
		return nil, fmt.Errorf("coupon reader required")
	}
	if p.Store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if p.Calc == nil {
		return nil, fmt.Errorf("totals calculator required")
	}
	if p.Engine == nil {
		return nil, fmt.Errorf("validation engine required")
	}
	if p.Sync == nil {
		return nil, fmt.Errorf("sync manager required")
	}
	if p.Identity == nil {
		p.Identity = auth.ContextProvider{}
	}
	if p.SessionID == "" {
		p.SessionID = uuid.NewString()
	}
	if p.Interval <= 0 {
		p.Interval = 30 * time.Second
	}
	return &service{
		products:  p.Products,
		coupons:   p.Coupons,
		store:     p.Store,
		calc:      p.Calc,
		engine:    p.Engine,
		sync:      p.Sync,
		identity:  p.Identity,
		limits:    p.Limits,
		interval:  p.Interval,
		logg:      p.Logger,
		now:       time.Now,
		sessionID: p.SessionID,
	}, nil
}

// recoverGuard converts collaborator panics into internal errors so
// callers never see a thrown failure.
func recoverGuard(err *error) {
	if rec := recover(); rec != nil {
		*err = pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("cart operation panicked: %v", rec))
	}
}

// loadCurrent returns the working cart, reading the persisted snapshot
// on first use and falling back to a fresh cart.
func (s *service) loadCurrent(ctx context.Context) (*cart.Cart, error) {
	s.snapMu.Lock()
	cur := s.current
	s.snapMu.Unlock()
	if cur != nil {
		return cur, nil
	}

	loaded, err := s.store.Load(ctx, s.sessionID)
	if err != nil {
		return nil, err
	}
	if loaded == nil {
		loaded = cart.New(s.sessionID, s.now())
	}

	s.snapMu.Lock()
	s.current = loaded
	s.snapMu.Unlock()
	return loaded, nil
}

// adopt recomputes derived fields on the mutated clone, persists it and
// swaps it in as the working cart. The in-memory cart stays
// authoritative even when the save fails; the persistence error is
// surfaced so the caller can retry.
func (s *service) adopt(ctx context.Context, mutated *cart.Cart) error {
	mutated.Totals = s.calc.Calculate(totals.Input{
		Items:           mutated.Items,
		Coupons:         mutated.Coupons,
		ShippingMethods: mutated.ShippingMethods,
		Fees:            mutated.Fees,
	})
	mutated.Touch(s.now())

	s.snapMu.Lock()
	s.current = mutated
	s.snapMu.Unlock()

	if err := s.store.Save(ctx, mutated); err != nil {
		if s.logg != nil {
			s.logg.Error(s.logg.WithSessionID(ctx, s.sessionID), "cart save failed", err)
		}
		return err
	}
	return nil
}

func (s *service) GetCart(ctx context.Context) (c *cart.Cart, err error) {
	defer recoverGuard(&err)
	cur, err := s.loadCurrent(ctx)
	if err != nil {
		return nil, err
	}
	return cur.Clone(), nil
}

func (s *service) AddItem(ctx context.Context, input AddItemInput) (c *cart.Cart, err error) {
	defer recoverGuard(&err)
	if input.ProductID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	cur, err := s.loadCurrent(ctx)
	if err != nil {
		return nil, err
	}

	product, err := s.fetchProduct(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if product.HasVariations && input.VariationID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product requires a variation selection")
	}

	key := cart.ItemKey(input.ProductID, input.VariationID, input.Attributes)
	idx := cur.FindItem(key)

	quantity := input.Quantity
	if idx >= 0 && !input.Replace {
		// Same key means same line: merge quantities, never duplicate.
		quantity += cur.Items[idx].Quantity
	}

	if err := s.checkAvailability(product, quantity); err != nil {
		return nil, err
	}
	if s.limits.MaxQuantityPerItem > 0 && quantity > s.limits.MaxQuantityPerItem {
		return nil, pkgerrors.New(pkgerrors.CodeLimit,
			fmt.Sprintf("quantity %d exceeds the per-item cap of %d", quantity, s.limits.MaxQuantityPerItem))
	}
	if idx < 0 && s.limits.MaxItems > 0 && len(cur.Items)+1 > s.limits.MaxItems {
		return nil, pkgerrors.New(pkgerrors.CodeLimit,
			fmt.Sprintf("cart cannot hold more than %d lines", s.limits.MaxItems))
	}

	next := cur.Clone()
	if idx >= 0 {
		next.Items[idx].Quantity = quantity
		next.Items[idx].Recalculate()
	} else {
		next.Items = append(next.Items, newItem(key, input, product, quantity))
	}

	if err := s.adopt(ctx, next); err != nil {
		return next.Clone(), err
	}
	return next.Clone(), nil
}

func (s *service) UpdateItemQuantity(ctx context.Context, key string, quantity int) (c *cart.Cart, err error) {
	defer recoverGuard(&err)
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, key)
	}

	cur, err := s.loadCurrent(ctx)
	if err != nil {
		return nil, err
	}
	idx := cur.FindItem(key)
	if idx < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	if s.limits.MaxQuantityPerItem > 0 && quantity > s.limits.MaxQuantityPerItem {
		return nil, pkgerrors.New(pkgerrors.CodeLimit,
			fmt.Sprintf("quantity %d exceeds the per-item cap of %d", quantity, s.limits.MaxQuantityPerItem))
	}

	next := cur.Clone()
	next.Items[idx].Quantity = quantity
	next.Items[idx].Recalculate()

	if err := s.adopt(ctx, next); err != nil {
		return next.Clone(), err
	}
	return next.Clone(), nil
}

func (s *service) RemoveItem(ctx context.Context, key string) (c *cart.Cart, err error) {
	defer recoverGuard(&err)
	cur, err := s.loadCurrent(ctx)
	if err != nil {
		return nil, err
	}
	idx := cur.FindItem(key)
	if idx < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}

	next := cur.Clone()
	next.RemoveItemAt(idx)

	if err := s.adopt(ctx, next); err != nil {
		return next.Clone(), err
	}
	return next.Clone(), nil
}

func (s *service) ClearCart(ctx context.Context) (c *cart.Cart, err error) {
	defer recoverGuard(&err)
	fresh := cart.New(s.sessionID, s.now())

	s.snapMu.Lock()
	s.current = fresh
	s.snapMu.Unlock()

	if err := s.store.Clear(ctx, s.sessionID); err != nil {
		return fresh.Clone(), err
	}
	return fresh.Clone(), nil
}

func (s *service) ApplyCoupon(ctx context.Context, code string) (c *cart.Cart, err error) {
	defer recoverGuard(&err)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}

	cur, err := s.loadCurrent(ctx)
	if err != nil {
		return nil, err
	}
	if cur.FindCoupon(code) >= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeCoupon, fmt.Sprintf("coupon %s is already applied", code))
	}

	coupon, err := s.coupons.FetchCoupon(ctx, code)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("coupon %s not found", code))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch coupon")
	}
	if coupon.Expired(s.now()) {
		return nil, pkgerrors.New(pkgerrors.CodeCoupon, fmt.Sprintf("coupon %s has expired", code))
	}
	if coupon.UsageExhausted() {
		return nil, pkgerrors.New(pkgerrors.CodeCoupon, fmt.Sprintf("coupon %s has reached its usage limit", code))
	}
	if coupon.IndividualUse && len(cur.Coupons) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeCoupon,
			fmt.Sprintf("coupon %s cannot be combined with other coupons", code))
	}
	for i := range cur.Coupons {
		if cur.Coupons[i].IndividualUse {
			return nil, pkgerrors.New(pkgerrors.CodeCoupon,
				fmt.Sprintf("coupon %s is for individual use only", cur.Coupons[i].Code))
		}
	}
	if coupon.MinimumAmount != nil {
		subtotal := s.calc.Calculate(totals.Input{Items: cur.Items}).Subtotal
		if subtotal.LessThan(*coupon.MinimumAmount) {
			return nil, pkgerrors.New(pkgerrors.CodeCoupon,
				fmt.Sprintf("cart subtotal %s is below the coupon minimum %s",
					subtotal.StringFixed(2), coupon.MinimumAmount.StringFixed(2)))
		}
	}

	next := cur.Clone()
	next.Coupons = append(next.Coupons, cart.CouponFromCatalog(coupon))

	if err := s.adopt(ctx, next); err != nil {
		return next.Clone(), err
	}
	return next.Clone(), nil
}

func (s *service) RemoveCoupon(ctx context.Context, code string) (c *cart.Cart, err error) {
	defer recoverGuard(&err)
	cur, err := s.loadCurrent(ctx)
	if err != nil {
		return nil, err
	}
	idx := cur.FindCoupon(code)
	if idx < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("coupon %s is not applied", code))
	}

	next := cur.Clone()
	next.Coupons = append(next.Coupons[:idx], next.Coupons[idx+1:]...)

	if err := s.adopt(ctx, next); err != nil {
		return next.Clone(), err
	}
	return next.Clone(), nil
}

func (s *service) ValidateCart(ctx context.Context) (r *validation.Result, err error) {
	defer recoverGuard(&err)
	cur, err := s.loadCurrent(ctx)
	if err != nil {
		return nil, err
	}
	return s.engine.Validate(ctx, cur), nil
}

// SyncWithServer reconciles the working cart with the server-held cart
// for the current identity. While offline the attempt is queued for
// replay instead of being tried immediately.
func (s *service) SyncWithServer(ctx context.Context) (r *cartsync.Result, err error) {
	defer recoverGuard(&err)

	if !s.sync.Connected() {
		s.sync.Defer("sync", func(replayCtx context.Context) error {
			_, replayErr := s.syncNow(replayCtx)
			return replayErr
		})
		return nil, pkgerrors.New(pkgerrors.CodeSync, "offline: sync queued for replay")
	}
	return s.syncNow(ctx)
}

func (s *service) syncNow(ctx context.Context) (*cartsync.Result, error) {
	cur, err := s.loadCurrent(ctx)
	if err != nil {
		return nil, err
	}
	identity := s.identity.Identity(ctx)

	result, err := s.sync.Sync(ctx, cur, identity)
	if err != nil {
		return result, err
	}

	// Both sides converge: the merged snapshot becomes the working cart.
	merged := result.MergedCart.Clone()
	merged.SessionID = s.sessionID
	if saveErr := s.adoptMerged(ctx, merged); saveErr != nil {
		return result, saveErr
	}
	return result, nil
}

// adoptMerged swaps in a merged snapshot without recomputing totals;
// the sync manager already recomputed them on the merged items.
func (s *service) adoptMerged(ctx context.Context, merged *cart.Cart) error {
	s.snapMu.Lock()
	s.current = merged
	s.snapMu.Unlock()
	return s.store.Save(ctx, merged)
}

// SetOnline flips the connectivity signal. Coming back online replays
// the offline queue in order.
func (s *service) SetOnline(ctx context.Context, online bool) (err error) {
	defer recoverGuard(&err)
	wasOnline := s.sync.Connected()
	s.sync.SetConnected(online)
	if online && !wasOnline {
		return s.sync.Replay(ctx)
	}
	return nil
}

func (s *service) fetchProduct(ctx context.Context, productID string) (*catalog.Product, error) {
	product, err := s.products.FetchProduct(ctx, productID)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", productID))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch product")
	}
	if !product.Status.Purchasable() {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s is not available", productID))
	}
	return product, nil
}

func (s *service) checkAvailability(product *catalog.Product, quantity int) error {
	switch {
	case product.StockStatus == enums.StockStatusOutOfStock:
		return pkgerrors.New(pkgerrors.CodeStock, fmt.Sprintf("%s is out of stock", product.Name))
	case product.ManagedStock() && *product.StockQuantity < quantity && !product.Backorders:
		return pkgerrors.New(pkgerrors.CodeStock,
			fmt.Sprintf("only %d of %s available", *product.StockQuantity, product.Name))
	}
	return nil
}

// newItem snapshots current catalog truth into a cart line so later
// validation can detect drift.
func newItem(key string, input AddItemInput, product *catalog.Product, quantity int) cart.Item {
	item := cart.Item{
		Key:           key,
		ProductID:     input.ProductID,
		VariationID:   input.VariationID,
		Name:          product.Name,
		Quantity:      quantity,
		Price:         product.EffectivePrice(),
		RegularPrice:  product.RegularPrice,
		StockStatus:   product.StockStatus,
		Backorders:    product.Backorders,
		StockQuantity: product.StockQuantity,
		MinQuantity:   product.MinQuantity,
		MaxQuantity:   product.MaxQuantity,
		QuantityStep:  product.QuantityStep,
	}
	if input.Attributes != nil {
		item.Attributes = make(map[string]string, len(input.Attributes))
		for k, v := range input.Attributes {
			item.Attributes[k] = v
		}
	}
	if product.SalePrice != nil {
		sale := *product.SalePrice
		item.SalePrice = &sale
	}
	item.Recalculate()
	return item
}
