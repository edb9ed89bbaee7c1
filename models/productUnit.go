package models

import (
	"context"
	"errors"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
)

// ProductUnit is a base unit of measure (pcs, kg, l). All stock quantities
// are stored in an item's base unit; packagings convert into it.
type ProductUnit struct {
	ID           int       `gorm:"primaryKey" json:"id"`
	BusinessId   string    `gorm:"size:30;index" json:"businessId"`
	Name         string    `gorm:"size:100" json:"name"`
	Abbreviation string    `gorm:"size:20" json:"abbreviation"`
	Precision    Precision `gorm:"size:1;default:0" json:"precision"`
	IsActive     *bool     `gorm:"default:true" json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (u ProductUnit) GetBusinessId() string {
	return u.BusinessId
}

func (u ProductUnit) GetId() string {
	return strconv.Itoa(u.ID)
}

func (u ProductUnit) GetCursorValue() string {
	return u.Name
}

func (u ProductUnit) CleanRedisItems(businessId string) error {
	return config.RemoveRedisKey("ProductUnits:" + businessId)
}

type NewProductUnit struct {
	Name         string    `json:"name" validate:"required,max=100"`
	Abbreviation string    `json:"abbreviation" validate:"required,max=20"`
	Precision    Precision `json:"precision"`
	IsActive     *bool     `json:"isActive"`
}

func (input *NewProductUnit) validate(ctx context.Context, businessId string, id int) error {
	if err := validate.Struct(input); err != nil {
		return err
	}
	if err := utils.ValidateUnique[ProductUnit](ctx, businessId, "name", input.Name, id); err != nil {
		return errors.New("product unit name already exists")
	}
	return nil
}

func CreateProductUnit(ctx context.Context, input *NewProductUnit) (*ProductUnit, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	businessId, err := requireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	unit := ProductUnit{
		BusinessId:   businessId,
		Name:         input.Name,
		Abbreviation: input.Abbreviation,
		Precision:    input.Precision,
		IsActive:     input.IsActive,
	}
	if unit.Precision == "" {
		unit.Precision = PrecisionZero
	}
	if unit.IsActive == nil {
		unit.IsActive = utils.NewTrue()
	}

	if err := db.WithContext(ctx).Create(&unit).Error; err != nil {
		config.LogError(logger, "models", "CreateProductUnit", "create", input, err)
		return nil, err
	}
	if err := unit.CleanRedisItems(businessId); err != nil {
		config.LogError(logger, "models", "CreateProductUnit", "redis evict", businessId, err)
	}
	return &unit, nil
}

func UpdateProductUnit(ctx context.Context, id int, input *NewProductUnit) (*ProductUnit, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	businessId, err := requireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	unit, err := utils.FetchModel[ProductUnit](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"name":         input.Name,
		"abbreviation": input.Abbreviation,
	}
	if input.Precision != "" {
		updates["precision"] = input.Precision
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}

	if err := db.WithContext(ctx).Model(unit).Updates(updates).Error; err != nil {
		config.LogError(logger, "models", "UpdateProductUnit", "update", id, err)
		return nil, err
	}
	if err := utils.RemoveRedisItem[ProductUnit](id); err != nil {
		config.LogError(logger, "models", "UpdateProductUnit", "redis evict", id, err)
	}
	if err := unit.CleanRedisItems(businessId); err != nil {
		config.LogError(logger, "models", "UpdateProductUnit", "redis list evict", businessId, err)
	}
	return utils.FetchModel[ProductUnit](ctx, businessId, id)
}

func DeleteProductUnit(ctx context.Context, id int) (*ProductUnit, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	businessId, err := requireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	unit, err := utils.FetchModel[ProductUnit](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	count, err := utils.ResourceCountWhere[Item](ctx, businessId, "unit_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("product unit is in use by items")
	}

	if err := db.WithContext(ctx).Delete(unit).Error; err != nil {
		config.LogError(logger, "models", "DeleteProductUnit", "delete", id, err)
		return nil, err
	}
	if err := utils.RemoveRedisItem[ProductUnit](id); err != nil {
		config.LogError(logger, "models", "DeleteProductUnit", "redis evict", id, err)
	}
	if err := unit.CleanRedisItems(businessId); err != nil {
		config.LogError(logger, "models", "DeleteProductUnit", "redis list evict", businessId, err)
	}
	return unit, nil
}

func GetProductUnit(ctx context.Context, id int) (*ProductUnit, error) {
	businessId, err := requireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	return GetResource[ProductUnit](ctx, businessId, id)
}

func PaginateProductUnits(ctx context.Context, limit int, after *string, activeOnly bool) (*Connection[ProductUnit], error) {
	db := config.GetDB()

	businessId, err := requireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	query := db.Model(&ProductUnit{}).Where("business_id = ?", businessId)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	return FetchPageCompositeCursor[ProductUnit](ctx, query, "name", limit, after)
}

func ToggleActiveProductUnit(ctx context.Context, id int, isActive bool) (*ProductUnit, error) {
	businessId, err := requireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	return ToggleActiveModel[ProductUnit](ctx, businessId, id, isActive)
}
