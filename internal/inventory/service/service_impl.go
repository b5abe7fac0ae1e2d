package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/ledgerline/internal/companyctx"
	inventorydomain "github.com/smallbiznis/ledgerline/internal/inventory/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func NewService(p Params) inventorydomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("inventory.service"),
		genID: p.GenID,
	}
}

func (s *Service) CreateItem(ctx context.Context, req inventorydomain.CreateItemRequest) (inventorydomain.Item, error) {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return inventorydomain.Item{}, err
	}

	sku := strings.TrimSpace(req.SKU)
	if sku == "" {
		return inventorydomain.Item{}, inventorydomain.ErrInvalidSKU
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return inventorydomain.Item{}, inventorydomain.ErrInvalidName
	}
	if req.UnitPrice.IsNegative() {
		return inventorydomain.Item{}, inventorydomain.ErrInvalidPrice
	}

	now := time.Now().UTC()
	item := inventorydomain.Item{
		ID:        s.genID.Generate(),
		CompanyID: companyID,
		SKU:       sku,
		Name:      name,
		UnitPrice: req.UnitPrice,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
		return inventorydomain.Item{}, err
	}

	s.log.Info("item created", zap.String("item_id", item.ID.String()), zap.String("sku", sku))
	return item, nil
}

func (s *Service) GetItem(ctx context.Context, id string) (inventorydomain.Item, error) {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return inventorydomain.Item{}, err
	}

	itemID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return inventorydomain.Item{}, inventorydomain.ErrInvalidID
	}

	item, err := s.findItem(ctx, s.db, companyID, itemID)
	if err != nil {
		return inventorydomain.Item{}, err
	}
	if item == nil {
		return inventorydomain.Item{}, inventorydomain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) ListItems(ctx context.Context) ([]inventorydomain.Item, error) {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var items []inventorydomain.Item
	err = s.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("sku asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Service) AdjustStock(ctx context.Context, req inventorydomain.AdjustStockRequest) (inventorydomain.Item, error) {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return inventorydomain.Item{}, err
	}

	itemID, err := snowflake.ParseString(strings.TrimSpace(req.ItemID))
	if err != nil {
		return inventorydomain.Item{}, inventorydomain.ErrInvalidID
	}
	if req.Quantity.IsZero() {
		return inventorydomain.Item{}, inventorydomain.ErrInvalidQuantity
	}

	var updated inventorydomain.Item
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.findItem(ctx, tx, companyID, itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return inventorydomain.ErrNotFound
		}

		mv := inventorydomain.StockMovement{
			ID:         s.genID.Generate(),
			CompanyID:  companyID,
			ItemID:     itemID,
			Quantity:   req.Quantity,
			Kind:       inventorydomain.MovementKindAdjustment,
			RefType:    "adjustment",
			RefID:      itemID,
			Note:       strings.TrimSpace(req.Note),
			OccurredAt: time.Now().UTC(),
		}
		if err := s.ApplyMovementTx(ctx, tx, mv); err != nil {
			return err
		}

		after, err := s.findItem(ctx, tx, companyID, itemID)
		if err != nil {
			return err
		}
		updated = *after
		return nil
	})
	if err != nil {
		return inventorydomain.Item{}, err
	}
	return updated, nil
}

func (s *Service) ListMovements(ctx context.Context, req inventorydomain.ListMovementsRequest) ([]inventorydomain.StockMovement, error) {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	stmt := s.db.WithContext(ctx).
		Where("company_id = ?", companyID)
	if strings.TrimSpace(req.ItemID) != "" {
		itemID, err := snowflake.ParseString(strings.TrimSpace(req.ItemID))
		if err != nil {
			return nil, inventorydomain.ErrInvalidID
		}
		stmt = stmt.Where("item_id = ?", itemID)
	}

	var movements []inventorydomain.StockMovement
	if err := stmt.Order("id desc").Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}

// ApplyMovementTx appends to the movement log and applies the delta as a
// server-side relative update so concurrent writers never lose increments.
func (s *Service) ApplyMovementTx(ctx context.Context, tx *gorm.DB, mv inventorydomain.StockMovement) error {
	if mv.ID == 0 {
		mv.ID = s.genID.Generate()
	}
	if mv.OccurredAt.IsZero() {
		mv.OccurredAt = time.Now().UTC()
	}
	mv.CreatedAt = time.Now().UTC()

	if err := tx.WithContext(ctx).Create(&mv).Error; err != nil {
		return err
	}

	result := tx.WithContext(ctx).Exec(
		`UPDATE items
		 SET quantity_on_hand = quantity_on_hand + ?, updated_at = ?
		 WHERE company_id = ? AND id = ?`,
		mv.Quantity,
		time.Now().UTC(),
		mv.CompanyID,
		mv.ItemID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return inventorydomain.ErrNotFound
	}
	return nil
}

func (s *Service) RebuildQuantityOnHand(ctx context.Context, id string) (inventorydomain.RebuildResult, error) {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return inventorydomain.RebuildResult{}, err
	}

	itemID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return inventorydomain.RebuildResult{}, inventorydomain.ErrInvalidID
	}

	var result inventorydomain.RebuildResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.findItem(ctx, tx, companyID, itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return inventorydomain.ErrNotFound
		}

		var recomputed decimal.NullDecimal
		if err := tx.WithContext(ctx).Raw(
			`SELECT SUM(quantity) FROM stock_movements WHERE company_id = ? AND item_id = ?`,
			companyID,
			itemID,
		).Scan(&recomputed).Error; err != nil {
			return err
		}

		total := decimal.Zero
		if recomputed.Valid {
			total = recomputed.Decimal
		}

		result = inventorydomain.RebuildResult{
			ItemID:       itemID,
			Stored:       item.QuantityOnHand,
			Recomputed:   total,
			Drift:        item.QuantityOnHand.Sub(total),
			DriftPresent: !item.QuantityOnHand.Equal(total),
		}

		if !result.DriftPresent {
			return nil
		}

		s.log.Warn("quantity on hand drift repaired",
			zap.String("item_id", itemID.String()),
			zap.String("stored", result.Stored.String()),
			zap.String("recomputed", result.Recomputed.String()),
		)
		return tx.WithContext(ctx).Exec(
			`UPDATE items SET quantity_on_hand = ?, updated_at = ? WHERE company_id = ? AND id = ?`,
			total,
			time.Now().UTC(),
			companyID,
			itemID,
		).Error
	})
	if err != nil {
		return inventorydomain.RebuildResult{}, err
	}
	return result, nil
}

func (s *Service) findItem(ctx context.Context, tx *gorm.DB, companyID, itemID snowflake.ID) (*inventorydomain.Item, error) {
	var item inventorydomain.Item
	err := tx.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, itemID).
		First(&item).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (s *Service) companyIDFromContext(ctx context.Context) (snowflake.ID, error) {
	companyID, ok := companyctx.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return 0, inventorydomain.ErrInvalidCompany
	}
	return companyID, nil
}
