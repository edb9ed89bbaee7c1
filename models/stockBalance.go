package models

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockBalance is the on-hand quantity and value of one item in one
// warehouse, denominated in the item's base unit. UnitCost is derived:
// TotalValue / Qty (moving average).
type StockBalance struct {
	ID          int             `gorm:"primaryKey" json:"id"`
	BusinessId  string          `gorm:"size:30;index:idx_stock_balance,unique" json:"businessId"`
	ItemId      int             `gorm:"index:idx_stock_balance,unique" json:"itemId"`
	WarehouseId int             `gorm:"index:idx_stock_balance,unique" json:"warehouseId"`
	Qty         decimal.Decimal `gorm:"type:decimal(20,4)" json:"qty"`
	TotalValue  decimal.Decimal `gorm:"type:decimal(20,4)" json:"totalValue"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func (b StockBalance) GetBusinessId() string {
	return b.BusinessId
}

func (b StockBalance) GetId() string {
	return strconv.Itoa(b.ID)
}

// UnitCost is the moving-average cost per base unit, zero when empty.
func (b StockBalance) UnitCost() decimal.Decimal {
	if b.Qty.IsZero() {
		return decimal.Zero
	}
	return b.TotalValue.Div(b.Qty)
}

// StockLocationBalance tracks the same quantity at bin granularity.
type StockLocationBalance struct {
	ID         int             `gorm:"primaryKey" json:"id"`
	BusinessId string          `gorm:"size:30;index:idx_stock_location_balance,unique" json:"businessId"`
	ItemId     int             `gorm:"index:idx_stock_location_balance,unique" json:"itemId"`
	LocationId int             `gorm:"index:idx_stock_location_balance,unique" json:"locationId"`
	Qty        decimal.Decimal `gorm:"type:decimal(20,4)" json:"qty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

func (b StockLocationBalance) GetBusinessId() string {
	return b.BusinessId
}

// FirstOrCreateStockBalance fetches the warehouse balance row under a FOR
// UPDATE lock, inserting a zero row if none exists yet. Must run inside a
// transaction.
func FirstOrCreateStockBalance(tx *gorm.DB, businessId string, itemId int, warehouseId int) (*StockBalance, error) {
	var balance StockBalance
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND item_id = ? AND warehouse_id = ?", businessId, itemId, warehouseId).
		First(&balance).Error
	if err == nil {
		return &balance, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	balance = StockBalance{
		BusinessId:  businessId,
		ItemId:      itemId,
		WarehouseId: warehouseId,
		Qty:         decimal.Zero,
		TotalValue:  decimal.Zero,
	}
	if err := tx.Create(&balance).Error; err != nil {
		return nil, err
	}
	// re-read under lock so concurrent creators serialize on the row
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", balance.ID).
		First(&balance).Error
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

func firstOrCreateStockLocationBalance(tx *gorm.DB, businessId string, itemId int, locationId int) (*StockLocationBalance, error) {
	var balance StockLocationBalance
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND item_id = ? AND location_id = ?", businessId, itemId, locationId).
		First(&balance).Error
	if err == nil {
		return &balance, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	balance = StockLocationBalance{
		BusinessId: businessId,
		ItemId:     itemId,
		LocationId: locationId,
		Qty:        decimal.Zero,
	}
	if err := tx.Create(&balance).Error; err != nil {
		return nil, err
	}
	return &balance, nil
}

// GetAvailableStock reads the unlocked on-hand quantity of an item in a
// warehouse. Missing balance rows read as zero.
func GetAvailableStock(tx *gorm.DB, businessId string, itemId int, warehouseId int) (decimal.Decimal, error) {
	var balance StockBalance
	err := tx.Where("business_id = ? AND item_id = ? AND warehouse_id = ?", businessId, itemId, warehouseId).
		First(&balance).Error
	if err == gorm.ErrRecordNotFound {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return balance.Qty, nil
}

// StockMovementResult captures the balance snapshot around one movement and
// feeds the ledger line.
type StockMovementResult struct {
	UnitCost    decimal.Decimal
	TotalCost   decimal.Decimal
	QtyBefore   decimal.Decimal
	QtyAfter    decimal.Decimal
	ValueBefore decimal.Decimal
	ValueAfter  decimal.Decimal
}

// ApplyStockOut consumes qty base units costed at unitCost (the item's
// standard cost for transformation inputs). The caller must have verified
// availability; a short row here returns gorm.ErrInvalidData so the workflow
// can surface insufficient stock.
func ApplyStockOut(tx *gorm.DB, businessId string, itemId int, warehouseId int, locationId int, qty decimal.Decimal, unitCost decimal.Decimal) (*StockMovementResult, error) {
	balance, err := FirstOrCreateStockBalance(tx, businessId, itemId, warehouseId)
	if err != nil {
		return nil, err
	}
	if balance.Qty.LessThan(qty) {
		return nil, gorm.ErrInvalidData
	}

	totalCost := unitCost.Mul(qty)

	result := StockMovementResult{
		UnitCost:    unitCost,
		TotalCost:   totalCost,
		QtyBefore:   balance.Qty,
		ValueBefore: balance.TotalValue,
	}

	balance.Qty = balance.Qty.Sub(qty)
	balance.TotalValue = balance.TotalValue.Sub(totalCost)
	result.QtyAfter = balance.Qty
	result.ValueAfter = balance.TotalValue

	err = tx.Model(balance).Updates(map[string]interface{}{
		"qty":         balance.Qty,
		"total_value": balance.TotalValue,
	}).Error
	if err != nil {
		return nil, err
	}

	if locationId != 0 {
		locBalance, err := firstOrCreateStockLocationBalance(tx, businessId, itemId, locationId)
		if err != nil {
			return nil, err
		}
		err = tx.Model(locBalance).Update("qty", locBalance.Qty.Sub(qty)).Error
		if err != nil {
			return nil, err
		}
	}
	return &result, nil
}

// ApplyStockIn receives qty base units carrying totalCost of value.
func ApplyStockIn(tx *gorm.DB, businessId string, itemId int, warehouseId int, locationId int, qty decimal.Decimal, totalCost decimal.Decimal) (*StockMovementResult, error) {
	balance, err := FirstOrCreateStockBalance(tx, businessId, itemId, warehouseId)
	if err != nil {
		return nil, err
	}

	result := StockMovementResult{
		TotalCost:   totalCost,
		QtyBefore:   balance.Qty,
		ValueBefore: balance.TotalValue,
	}
	if !qty.IsZero() {
		result.UnitCost = totalCost.Div(qty)
	}

	balance.Qty = balance.Qty.Add(qty)
	balance.TotalValue = balance.TotalValue.Add(totalCost)
	result.QtyAfter = balance.Qty
	result.ValueAfter = balance.TotalValue

	err = tx.Model(balance).Updates(map[string]interface{}{
		"qty":         balance.Qty,
		"total_value": balance.TotalValue,
	}).Error
	if err != nil {
		return nil, err
	}

	if locationId != 0 {
		locBalance, err := firstOrCreateStockLocationBalance(tx, businessId, itemId, locationId)
		if err != nil {
			return nil, err
		}
		err = tx.Model(locBalance).Update("qty", locBalance.Qty.Add(qty)).Error
		if err != nil {
			return nil, err
		}
	}
	return &result, nil
}
