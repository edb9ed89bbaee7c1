package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"gorm.io/gorm"
)

// StorageLocation is a bin or zone inside a warehouse. A location flagged
// IsWasteLocation never holds real stock: waste postings against it carry
// cost only and leave quantities untouched.
type StorageLocation struct {
	ID              int       `gorm:"primaryKey" json:"id"`
	BusinessId      string    `gorm:"size:30;index" json:"businessId"`
	WarehouseId     int       `gorm:"index" json:"warehouseId"`
	Name            string    `gorm:"size:100" json:"name"`
	IsDefault       *bool     `gorm:"default:false" json:"isDefault"`
	IsWasteLocation *bool     `gorm:"default:false" json:"isWasteLocation"`
	IsActive        *bool     `gorm:"default:true" json:"isActive"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (l StorageLocation) GetBusinessId() string {
	return l.BusinessId
}

type NewStorageLocation struct {
	WarehouseId int    `json:"warehouseId" validate:"required"`
	Name        string `json:"name" validate:"required,max=100"`
	IsActive    *bool  `json:"isActive"`
}

func CreateStorageLocation(ctx context.Context, input *NewStorageLocation) (*StorageLocation, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	businessId, err := requireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[Warehouse](ctx, businessId, input.WarehouseId); err != nil {
		return nil, errors.New("invalid warehouse id")
	}

	location := StorageLocation{
		BusinessId:      businessId,
		WarehouseId:     input.WarehouseId,
		Name:            input.Name,
		IsDefault:       utils.NewFalse(),
		IsWasteLocation: utils.NewFalse(),
		IsActive:        input.IsActive,
	}
	if location.IsActive == nil {
		location.IsActive = utils.NewTrue()
	}
	if err := db.WithContext(ctx).Create(&location).Error; err != nil {
		config.LogError(logger, "models", "CreateStorageLocation", "create", input, err)
		return nil, err
	}
	return &location, nil
}

func DeleteStorageLocation(ctx context.Context, id int) (*StorageLocation, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	businessId, err := requireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	location, err := utils.FetchModel[StorageLocation](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	if location.IsDefault != nil && *location.IsDefault {
		return nil, errors.New("default location cannot be deleted")
	}
	if location.IsWasteLocation != nil && *location.IsWasteLocation {
		return nil, errors.New("waste location cannot be deleted")
	}

	count, err := utils.ResourceCountWhere[StockLocationBalance](ctx, businessId, "location_id = ? AND qty <> 0", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("cannot delete a location with stock on hand")
	}

	if err := db.WithContext(ctx).Delete(location).Error; err != nil {
		config.LogError(logger, "models", "DeleteStorageLocation", "delete", id, err)
		return nil, err
	}
	return location, nil
}

// DefaultStorageLocation resolves the receiving location of a warehouse.
func DefaultStorageLocation(tx *gorm.DB, businessId string, warehouseId int) (*StorageLocation, error) {
	var location StorageLocation
	err := tx.Where("business_id = ? AND warehouse_id = ? AND is_default = ?", businessId, warehouseId, true).
		First(&location).Error
	if err != nil {
		return nil, err
	}
	return &location, nil
}

// WasteStorageLocation resolves the virtual waste location of a warehouse.
func WasteStorageLocation(tx *gorm.DB, businessId string, warehouseId int) (*StorageLocation, error) {
	var location StorageLocation
	err := tx.Where("business_id = ? AND warehouse_id = ? AND is_waste_location = ?", businessId, warehouseId, true).
		First(&location).Error
	if err != nil {
		return nil, err
	}
	return &location, nil
}
