package models

import (
	"time"

	"github.com/lib/pq"
)

// ServerCart is the authoritative per-customer cart held by a shared
// deployment. ItemKeys and CouponCodes are denormalized from the JSON
// payload so cross-device contents can be queried without decoding.
type ServerCart struct {
	CustomerID  string         `gorm:"column:customer_id;primaryKey"`
	Payload     string         `gorm:"column:payload;type:text;not null"`
	ItemKeys    pq.StringArray `gorm:"column:item_keys;type:text[]"`
	CouponCodes pq.StringArray `gorm:"column:coupon_codes;type:text[]"`
	ItemCount   int            `gorm:"column:item_count;not null;default:0"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName overrides the default pluralization.
func (ServerCart) TableName() string {
	return "server_carts"
}
