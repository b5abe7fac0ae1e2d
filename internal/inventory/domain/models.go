// Package domain contains persistence models for inventory items and the
// append-only stock movement log.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// MovementKind classifies a stock movement.
type MovementKind string

const (
	MovementKindSale         MovementKind = "SALE"
	MovementKindSaleReversal MovementKind = "SALE_REVERSAL"
	MovementKindAdjustment   MovementKind = "ADJUSTMENT"
)

// Item is a stocked product. QuantityOnHand is a materialized sum of the
// movement log and may go negative; overselling is tracked, not blocked.
type Item struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	CompanyID      snowflake.ID    `gorm:"not null;index;uniqueIndex:ux_items_company_sku,priority:1" json:"company_id"`
	SKU            string          `gorm:"type:text;not null;uniqueIndex:ux_items_company_sku,priority:2" json:"sku"`
	Name           string          `gorm:"not null" json:"name"`
	UnitPrice      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"unit_price"`
	QuantityOnHand decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"quantity_on_hand"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Item) TableName() string { return "items" }

// StockMovement is an append-only audit record of a quantity change. Rows are
// never mutated or deleted; a cancellation writes an exactly offsetting
// reversal movement.
type StockMovement struct {
	ID         snowflake.ID    `gorm:"primaryKey" json:"id"`
	CompanyID  snowflake.ID    `gorm:"not null;index" json:"company_id"`
	ItemID     snowflake.ID    `gorm:"not null;index" json:"item_id"`
	Quantity   decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"quantity"`
	Kind       MovementKind    `gorm:"type:text;not null" json:"kind"`
	RefType    string          `gorm:"type:text;not null" json:"ref_type"`
	RefID      snowflake.ID    `gorm:"not null;index" json:"ref_id"`
	Note       string          `gorm:"type:text" json:"note,omitempty"`
	OccurredAt time.Time       `gorm:"not null" json:"occurred_at"`
	CreatedAt  time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (StockMovement) TableName() string { return "stock_movements" }
