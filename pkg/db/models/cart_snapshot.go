package models

import (
	"time"
)

// CartSnapshot is one session's persisted cart, stored as a JSON
// document alongside a few queryable columns.
type CartSnapshot struct {
	SessionID  string    `gorm:"column:session_id;primaryKey"`
	CustomerID string    `gorm:"column:customer_id;index"`
	Payload    string    `gorm:"column:payload;type:text;not null"`
	ItemCount  int       `gorm:"column:item_count;not null;default:0"`
	ExpiresAt  time.Time `gorm:"column:expires_at"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName overrides the default pluralization.
func (CartSnapshot) TableName() string {
	return "cart_snapshots"
}
