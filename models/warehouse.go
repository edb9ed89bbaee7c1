package models

import (
	"context"
	"errors"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"gorm.io/gorm"
)

// Warehouse is a physical stock-holding site. Every warehouse owns a default
// storage location plus a virtual waste location used for cost-only waste
// postings.
type Warehouse struct {
	ID         int       `gorm:"primaryKey" json:"id"`
	BusinessId string    `gorm:"size:30;index" json:"businessId"`
	Name       string    `gorm:"size:100" json:"name"`
	Address    string    `gorm:"size:255" json:"address"`
	IsActive   *bool     `gorm:"default:true" json:"isActive"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`

	StorageLocations []StorageLocation `json:"storageLocations,omitempty"`
}

func (w Warehouse) GetBusinessId() string {
	return w.BusinessId
}

func (w Warehouse) GetId() string {
	return strconv.Itoa(w.ID)
}

func (w Warehouse) GetCursorValue() string {
	return w.Name
}

type NewWarehouse struct {
	Name     string `json:"name" validate:"required,max=100"`
	Address  string `json:"address" validate:"max=255"`
	IsActive *bool  `json:"isActive"`
}

func (input *NewWarehouse) validate(ctx context.Context, businessId string, id int) error {
	if err := validate.Struct(input); err != nil {
		return err
	}
	if err := utils.ValidateUnique[Warehouse](ctx, businessId, "name", input.Name, id); err != nil {
		return errors.New("warehouse name already exists")
	}
	return nil
}

func CreateWarehouse(ctx context.Context, input *NewWarehouse) (*Warehouse, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	businessId, err := requireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	warehouse := Warehouse{
		BusinessId: businessId,
		Name:       input.Name,
		Address:    input.Address,
		IsActive:   input.IsActive,
	}
	if warehouse.IsActive == nil {
		warehouse.IsActive = utils.NewTrue()
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&warehouse).Error; err != nil {
			return err
		}
		locations := []StorageLocation{
			{
				BusinessId:      businessId,
				WarehouseId:     warehouse.ID,
				Name:            "Default",
				IsDefault:       utils.NewTrue(),
				IsWasteLocation: utils.NewFalse(),
				IsActive:        utils.NewTrue(),
			},
			{
				BusinessId:      businessId,
				WarehouseId:     warehouse.ID,
				Name:            "Waste",
				IsDefault:       utils.NewFalse(),
				IsWasteLocation: utils.NewTrue(),
				IsActive:        utils.NewTrue(),
			},
		}
		return tx.Create(&locations).Error
	})
	if err != nil {
		config.LogError(logger, "models", "CreateWarehouse", "create", input, err)
		return nil, err
	}
	return utils.FetchModel[Warehouse](ctx, businessId, warehouse.ID, "StorageLocations")
}

func UpdateWarehouse(ctx context.Context, id int, input *NewWarehouse) (*Warehouse, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	businessId, err := requireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	warehouse, err := utils.FetchModel[Warehouse](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{
		"name":    input.Name,
		"address": input.Address,
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if err := db.WithContext(ctx).Model(warehouse).Updates(updates).Error; err != nil {
		config.LogError(logger, "models", "UpdateWarehouse", "update", id, err)
		return nil, err
	}
	return utils.FetchModel[Warehouse](ctx, businessId, id, "StorageLocations")
}

func DeleteWarehouse(ctx context.Context, id int) (*Warehouse, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	businessId, err := requireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	warehouse, err := utils.FetchModel[Warehouse](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	count, err := utils.ResourceCountWhere[StockBalance](ctx, businessId, "warehouse_id = ? AND qty <> 0", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("cannot delete a warehouse with stock on hand")
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("business_id = ? AND warehouse_id = ?", businessId, id).
			Delete(&StorageLocation{}).Error; err != nil {
			return err
		}
		return tx.Delete(warehouse).Error
	})
	if err != nil {
		config.LogError(logger, "models", "DeleteWarehouse", "delete", id, err)
		return nil, err
	}
	return warehouse, nil
}

func GetWarehouse(ctx context.Context, id int) (*Warehouse, error) {
	businessId, err := requireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	return utils.FetchModel[Warehouse](ctx, businessId, id, "StorageLocations")
}

func PaginateWarehouses(ctx context.Context, limit int, after *string) (*Connection[Warehouse], error) {
	db := config.GetDB()

	businessId, err := requireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	query := db.Model(&Warehouse{}).Where("business_id = ?", businessId)
	return FetchPageCompositeCursor[Warehouse](ctx, query, "name", limit, after)
}
