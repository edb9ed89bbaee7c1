package models

import (
	"context"
	"errors"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Item is a stock-keeping unit. Quantities on hand are always kept in the
// item's base unit; StandardCost is the per-base-unit valuation applied to
// produced outputs.
type Item struct {
	ID           int             `gorm:"primaryKey" json:"id"`
	BusinessId   string          `gorm:"size:30;index" json:"businessId"`
	Sku          string          `gorm:"size:50" json:"sku"`
	Name         string          `gorm:"size:255" json:"name"`
	UnitId       int             `json:"unitId"`
	Unit         *ProductUnit    `json:"unit,omitempty"`
	StandardCost decimal.Decimal `gorm:"type:decimal(20,4)" json:"standardCost"`
	IsActive     *bool           `gorm:"default:true" json:"isActive"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

func (i Item) GetBusinessId() string {
	return i.BusinessId
}

func (i Item) GetId() string {
	return strconv.Itoa(i.ID)
}

func (i Item) GetCursorValue() string {
	return i.Name
}

func (i Item) CleanRedisItems(businessId string) error {
	return config.RemoveRedisKey("Items:" + businessId)
}

type NewItem struct {
	Sku          string          `json:"sku" validate:"required,max=50"`
	Name         string          `json:"name" validate:"required,max=255"`
	UnitId       int             `json:"unitId" validate:"required"`
	StandardCost decimal.Decimal `json:"standardCost"`
	IsActive     *bool           `json:"isActive"`
}

func (input *NewItem) validate(ctx context.Context, businessId string, id int) error {
	if err := validate.Struct(input); err != nil {
		return err
	}
	if err := utils.ValidateUnique[Item](ctx, businessId, "sku", input.Sku, id); err != nil {
		return errors.New("item sku already exists")
	}
	if err := utils.ValidateResourceId[ProductUnit](ctx, businessId, input.UnitId); err != nil {
		return errors.New("invalid product unit id")
	}
	if input.StandardCost.IsNegative() {
		return errors.New("standard cost cannot be negative")
	}
	return nil
}

func CreateItem(ctx context.Context, input *NewItem) (*Item, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	businessId, err := requireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	item := Item{
		BusinessId:   businessId,
		Sku:          input.Sku,
		Name:         input.Name,
		UnitId:       input.UnitId,
		StandardCost: input.StandardCost,
		IsActive:     input.IsActive,
	}
	if item.IsActive == nil {
		item.IsActive = utils.NewTrue()
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&item).Error; err != nil {
			return err
		}
		// every item starts with its base packaging (factor 1)
		base := ItemPackaging{
			BusinessId:       businessId,
			ItemId:           item.ID,
			Name:             "Base",
			ConversionFactor: decimal.NewFromInt(1),
			IsBase:           utils.NewTrue(),
			IsActive:         utils.NewTrue(),
		}
		return tx.Create(&base).Error
	})
	if err != nil {
		config.LogError(logger, "models", "CreateItem", "create", input, err)
		return nil, err
	}
	if err := item.CleanRedisItems(businessId); err != nil {
		config.LogError(logger, "models", "CreateItem", "redis evict", businessId, err)
	}
	return utils.FetchModel[Item](ctx, businessId, item.ID, "Unit")
}

func UpdateItem(ctx context.Context, id int, input *NewItem) (*Item, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	businessId, err := requireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	item, err := utils.FetchModel[Item](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	if item.UnitId != input.UnitId {
		// switching the base unit would silently re-denominate every balance
		count, err := utils.ResourceCountWhere[StockBalance](ctx, businessId, "item_id = ? AND qty <> 0", id)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, errors.New("cannot change unit of an item with stock on hand")
		}
	}

	updates := map[string]interface{}{
		"sku":           input.Sku,
		"name":          input.Name,
		"unit_id":       input.UnitId,
		"standard_cost": input.StandardCost,
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if err := db.WithContext(ctx).Model(item).Updates(updates).Error; err != nil {
		config.LogError(logger, "models", "UpdateItem", "update", id, err)
		return nil, err
	}
	if err := utils.RemoveRedisItem[Item](id); err != nil {
		config.LogError(logger, "models", "UpdateItem", "redis evict", id, err)
	}
	if err := item.CleanRedisItems(businessId); err != nil {
		config.LogError(logger, "models", "UpdateItem", "redis list evict", businessId, err)
	}
	return utils.FetchModel[Item](ctx, businessId, id, "Unit")
}

func DeleteItem(ctx context.Context, id int) (*Item, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	businessId, err := requireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	item, err := utils.FetchModel[Item](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	count, err := utils.ResourceCountWhere[StockBalance](ctx, businessId, "item_id = ? AND qty <> 0", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("cannot delete an item with stock on hand")
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("business_id = ? AND item_id = ?", businessId, id).
			Delete(&ItemPackaging{}).Error; err != nil {
			return err
		}
		return tx.Delete(item).Error
	})
	if err != nil {
		config.LogError(logger, "models", "DeleteItem", "delete", id, err)
		return nil, err
	}
	if err := utils.RemoveRedisItem[Item](id); err != nil {
		config.LogError(logger, "models", "DeleteItem", "redis evict", id, err)
	}
	if err := item.CleanRedisItems(businessId); err != nil {
		config.LogError(logger, "models", "DeleteItem", "redis list evict", businessId, err)
	}
	return item, nil
}

func GetItem(ctx context.Context, id int) (*Item, error) {
	businessId, err := requireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	return GetResource[Item](ctx, businessId, id)
}

func PaginateItems(ctx context.Context, limit int, after *string, activeOnly bool, search *string) (*Connection[Item], error) {
	db := config.GetDB()

	businessId, err := requireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	query := db.Model(&Item{}).Where("business_id = ?", businessId)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	if search != nil && *search != "" {
		pattern := "%" + *search + "%"
		query = query.Where("name LIKE ? OR sku LIKE ?", pattern, pattern)
	}
	return FetchPageCompositeCursor[Item](ctx, query, "name", limit, after)
}

func ToggleActiveItem(ctx context.Context, id int, isActive bool) (*Item, error) {
	businessId, err := requireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	return ToggleActiveModel[Item](ctx, businessId, id, isActive)
}
