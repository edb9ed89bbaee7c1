package models

import (
	"context"
	"errors"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/shopspring/decimal"
)

// ItemPackaging is a package-level unit for an item (box of 12, pallet of
// 480). ConversionFactor is the number of base units one package holds; the
// base packaging always has factor 1.
type ItemPackaging struct {
	ID               int             `gorm:"primaryKey" json:"id"`
	BusinessId       string          `gorm:"size:30;index" json:"businessId"`
	ItemId           int             `gorm:"index" json:"itemId"`
	Item             *Item           `json:"item,omitempty"`
	Name             string          `gorm:"size:100" json:"name"`
	Barcode          string          `gorm:"size:64" json:"barcode"`
	ConversionFactor decimal.Decimal `gorm:"type:decimal(20,4)" json:"conversionFactor"`
	IsBase           *bool           `gorm:"default:false" json:"isBase"`
	IsActive         *bool           `gorm:"default:true" json:"isActive"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

func (p ItemPackaging) GetBusinessId() string {
	return p.BusinessId
}

func (p ItemPackaging) GetId() string {
	return strconv.Itoa(p.ID)
}

func (p ItemPackaging) GetCursorValue() string {
	return p.Name
}

func (p ItemPackaging) CleanRedisItems(businessId string) error {
	return config.RemoveRedisKey("ItemPackagings:" + businessId)
}

type NewItemPackaging struct {
	ItemId           int             `json:"itemId" validate:"required"`
	Name             string          `json:"name" validate:"required,max=100"`
	Barcode          string          `json:"barcode" validate:"max=64"`
	ConversionFactor decimal.Decimal `json:"conversionFactor"`
	IsActive         *bool           `json:"isActive"`
}

func (input *NewItemPackaging) validate(ctx context.Context, businessId string) error {
	if err := validate.Struct(input); err != nil {
		return err
	}
	if err := utils.ValidateResourceId[Item](ctx, businessId, input.ItemId); err != nil {
		return errors.New("invalid item id")
	}
	if !input.ConversionFactor.IsPositive() {
		return errors.New("conversion factor must be greater than zero")
	}
	return nil
}

func CreateItemPackaging(ctx context.Context, input *NewItemPackaging) (*ItemPackaging, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	businessId, err := requireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, businessId); err != nil {
		return nil, err
	}

	packaging := ItemPackaging{
		BusinessId:       businessId,
		ItemId:           input.ItemId,
		Name:             input.Name,
		Barcode:          input.Barcode,
		ConversionFactor: input.ConversionFactor,
		IsBase:           utils.NewFalse(),
		IsActive:         input.IsActive,
	}
	if packaging.IsActive == nil {
		packaging.IsActive = utils.NewTrue()
	}
	if err := db.WithContext(ctx).Create(&packaging).Error; err != nil {
		config.LogError(logger, "models", "CreateItemPackaging", "create", input, err)
		return nil, err
	}
	if err := packaging.CleanRedisItems(businessId); err != nil {
		config.LogError(logger, "models", "CreateItemPackaging", "redis evict", businessId, err)
	}
	return &packaging, nil
}

func UpdateItemPackaging(ctx context.Context, id int, input *NewItemPackaging) (*ItemPackaging, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	businessId, err := requireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, businessId); err != nil {
		return nil, err
	}

	packaging, err := utils.FetchModel[ItemPackaging](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	if packaging.IsBase != nil && *packaging.IsBase {
		// the base packaging anchors the conversion chain at factor 1
		if !input.ConversionFactor.Equal(decimal.NewFromInt(1)) || input.ItemId != packaging.ItemId {
			return nil, errors.New("base packaging cannot be modified")
		}
	}

	updates := map[string]interface{}{
		"name":              input.Name,
		"barcode":           input.Barcode,
		"conversion_factor": input.ConversionFactor,
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if err := db.WithContext(ctx).Model(packaging).Updates(updates).Error; err != nil {
		config.LogError(logger, "models", "UpdateItemPackaging", "update", id, err)
		return nil, err
	}
	if err := utils.RemoveRedisItem[ItemPackaging](id); err != nil {
		config.LogError(logger, "models", "UpdateItemPackaging", "redis evict", id, err)
	}
	if err := packaging.CleanRedisItems(businessId); err != nil {
		config.LogError(logger, "models", "UpdateItemPackaging", "redis list evict", businessId, err)
	}
	return utils.FetchModel[ItemPackaging](ctx, businessId, id)
}

func DeleteItemPackaging(ctx context.Context, id int) (*ItemPackaging, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	businessId, err := requireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	packaging, err := utils.FetchModel[ItemPackaging](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	if packaging.IsBase != nil && *packaging.IsBase {
		return nil, errors.New("base packaging cannot be deleted")
	}
	if err := db.WithContext(ctx).Delete(packaging).Error; err != nil {
		config.LogError(logger, "models", "DeleteItemPackaging", "delete", id, err)
		return nil, err
	}
	if err := utils.RemoveRedisItem[ItemPackaging](id); err != nil {
		config.LogError(logger, "models", "DeleteItemPackaging", "redis evict", id, err)
	}
	if err := packaging.CleanRedisItems(businessId); err != nil {
		config.LogError(logger, "models", "DeleteItemPackaging", "redis list evict", businessId, err)
	}
	return packaging, nil
}

func GetItemPackaging(ctx context.Context, id int) (*ItemPackaging, error) {
	businessId, err := requireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	return GetResource[ItemPackaging](ctx, businessId, id)
}

// GetItemPackagings lists every packaging of one item, base first.
func GetItemPackagings(ctx context.Context, itemId int) ([]*ItemPackaging, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	businessId, err := requireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	var packagings []*ItemPackaging
	err = db.WithContext(ctx).
		Where("business_id = ? AND item_id = ?", businessId, itemId).
		Order("is_base DESC, conversion_factor ASC").
		Find(&packagings).Error
	if err != nil {
		config.LogError(logger, "models", "GetItemPackagings", "find", itemId, err)
		return nil, err
	}
	return packagings, nil
}
