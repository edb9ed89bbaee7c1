package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Business is one tenant. Its uuid id scopes every other table.
type Business struct {
	ID        string    `gorm:"primaryKey;size:30" json:"id"`
	Name      string    `gorm:"size:100" json:"name"`
	Timezone  string    `gorm:"size:50;default:Asia/Yangon" json:"timezone"`
	IsActive  *bool     `gorm:"default:true" json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type NewBusiness struct {
	Name     string `json:"name" validate:"required,max=100"`
	Timezone string `json:"timezone" validate:"max=50"`
}

// CreateBusiness provisions a tenant with its first warehouse so stock
// operations work out of the box.
func CreateBusiness(ctx context.Context, input *NewBusiness) (*Business, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	business := Business{
		ID:       uuid.NewString()[:30],
		Name:     input.Name,
		Timezone: input.Timezone,
		IsActive: utils.NewTrue(),
	}
	if business.Timezone == "" {
		business.Timezone = "Asia/Yangon"
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&business).Error; err != nil {
			return err
		}
		warehouse := Warehouse{
			BusinessId: business.ID,
			Name:       "Main Warehouse",
			IsActive:   utils.NewTrue(),
		}
		if err := tx.Create(&warehouse).Error; err != nil {
			return err
		}
		locations := []StorageLocation{
			{
				BusinessId:      business.ID,
				WarehouseId:     warehouse.ID,
				Name:            "Default",
				IsDefault:       utils.NewTrue(),
				IsWasteLocation: utils.NewFalse(),
				IsActive:        utils.NewTrue(),
			},
			{
				BusinessId:      business.ID,
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
		config.LogError(logger, "models", "CreateBusiness", "create", input, err)
		return nil, err
	}
	return &business, nil
}

func GetBusiness(ctx context.Context, id string) (*Business, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	var business Business
	err := db.WithContext(ctx).Where("id = ?", id).First(&business).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		config.LogError(logger, "models", "GetBusiness", "first", id, err)
		return nil, err
	}
	return &business, nil
}
