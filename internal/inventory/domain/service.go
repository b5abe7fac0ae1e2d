package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreateItemRequest struct {
	SKU       string
	Name      string
	UnitPrice decimal.Decimal
}

type AdjustStockRequest struct {
	ItemID   string
	Quantity decimal.Decimal
	Note     string
}

type ListMovementsRequest struct {
	ItemID string
}

// RebuildResult reports drift found when recomputing an item's quantity on
// hand from its movement log.
type RebuildResult struct {
	ItemID       snowflake.ID    `json:"item_id"`
	Stored       decimal.Decimal `json:"stored"`
	Recomputed   decimal.Decimal `json:"recomputed"`
	Drift        decimal.Decimal `json:"drift"`
	DriftPresent bool            `json:"drift_present"`
}

type Service interface {
	CreateItem(ctx context.Context, req CreateItemRequest) (Item, error)
	GetItem(ctx context.Context, id string) (Item, error)
	ListItems(ctx context.Context) ([]Item, error)
	AdjustStock(ctx context.Context, req AdjustStockRequest) (Item, error)
	ListMovements(ctx context.Context, req ListMovementsRequest) ([]StockMovement, error)

	// ApplyMovementTx inserts a movement and applies its delta to the item's
	// quantity on hand inside the caller's transaction. It is the only way
	// quantity_on_hand changes.
	ApplyMovementTx(ctx context.Context, tx *gorm.DB, mv StockMovement) error

	// RebuildQuantityOnHand recomputes the materialized quantity from the
	// movement log and repairs any drift.
	RebuildQuantityOnHand(ctx context.Context, itemID string) (RebuildResult, error)
}

var (
	ErrInvalidCompany  = errors.New("invalid_company")
	ErrInvalidSKU      = errors.New("invalid_sku")
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidPrice    = errors.New("invalid_price")
	ErrInvalidQuantity = errors.New("invalid_quantity")
	ErrInvalidID       = errors.New("invalid_id")
	ErrNotFound        = errors.New("not_found")
)
