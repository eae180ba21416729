package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/storefront-kit/cartengine/internal/cart"
	"github.com/storefront-kit/cartengine/pkg/db"
	"github.com/storefront-kit/cartengine/pkg/db/models"
	pkgerrors "github.com/storefront-kit/cartengine/pkg/errors"
)

// DatabaseStore persists cart snapshots through GORM. With the sqlite
// driver it serves as the device-local durable store; with postgres it
// backs a shared deployment.
type DatabaseStore struct {
	client *db.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewDatabaseStore builds a database-backed cart store.
func NewDatabaseStore(client *db.Client, ttl time.Duration) (*DatabaseStore, error) {
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "database client is required")
	}
	return &DatabaseStore{client: client, ttl: ttl, now: time.Now}, nil
}

func (s *DatabaseStore) Save(ctx context.Context, c *cart.Cart) error {
	if c == nil || c.SessionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart with a session id is required")
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "encoding cart snapshot")
	}
	record := models.CartSnapshot{
		SessionID:  c.SessionID,
		CustomerID: c.CustomerID,
		Payload:    string(payload),
		ItemCount:  c.ItemCount(),
	}
	if s.ttl > 0 {
		record.ExpiresAt = s.now().Add(s.ttl)
	}
	result := s.client.DB().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"customer_id", "payload", "item_count", "expires_at", "updated_at"}),
		}).
		Create(&record)
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, result.Error, "saving cart snapshot")
	}
	return nil
}

func (s *DatabaseStore) Load(ctx context.Context, sessionID string) (*cart.Cart, error) {
	var record models.CartSnapshot
	err := s.client.DB().WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "loading cart snapshot")
	}
	if !record.ExpiresAt.IsZero() && s.now().After(record.ExpiresAt) {
		_ = s.Clear(ctx, sessionID)
		return nil, nil
	}
	var c cart.Cart
	if err := json.Unmarshal([]byte(record.Payload), &c); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "decoding cart snapshot")
	}
	return &c, nil
}

func (s *DatabaseStore) Clear(ctx context.Context, sessionID string) error {
	result := s.client.DB().WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&models.CartSnapshot{})
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, result.Error, "clearing cart snapshot")
	}
	return nil
}
