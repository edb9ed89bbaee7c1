package models

import (
	"gorm.io/gorm"
)

// Migrate creates or updates every table of the schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Business{},
		&User{},
		&ProductUnit{},
		&Item{},
		&ItemPackaging{},
		&Warehouse{},
		&StorageLocation{},
		&StockBalance{},
		&StockLocationBalance{},
		&StockTransaction{},
		&StockTransactionItem{},
		&TransformationTemplate{},
		&TransformationTemplateInput{},
		&TransformationTemplateOutput{},
		&TransformationOrder{},
		&TransformationOrderInput{},
		&TransformationOrderOutput{},
		&TransformationLineage{},
	)
}
