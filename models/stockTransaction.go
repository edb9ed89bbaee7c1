package models

import (
	"context"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockTransaction is one posting in the append-only stock ledger. Rows are
// never updated or deleted after creation; corrections post new entries.
type StockTransaction struct {
	ID            int                     `gorm:"primaryKey" json:"id"`
	BusinessId    string                  `gorm:"size:30;index" json:"businessId"`
	Type          StockTransactionType    `gorm:"size:10" json:"type"`
	Purpose       StockTransactionPurpose `gorm:"size:10;default:normal" json:"purpose"`
	WarehouseId   int                     `gorm:"index" json:"warehouseId"`
	LocationId    int                     `json:"locationId"`
	ReferenceType string                  `gorm:"size:50;index:idx_stock_txn_reference" json:"referenceType"`
	ReferenceId   int                     `gorm:"index:idx_stock_txn_reference" json:"referenceId"`
	Description   string                  `gorm:"size:255" json:"description"`
	PostedAt      time.Time               `json:"postedAt"`
	PostedBy      int                     `json:"postedBy"`
	CreatedAt     time.Time               `json:"createdAt"`

	Items []StockTransactionItem `json:"items,omitempty"`
}

func (t StockTransaction) GetBusinessId() string {
	return t.BusinessId
}

func (t StockTransaction) GetId() string {
	return strconv.Itoa(t.ID)
}

// StockTransactionItem is one line of a posting, with the balance snapshot
// taken at write time so history reads never need recomputation.
type StockTransactionItem struct {
	ID                 int             `gorm:"primaryKey" json:"id"`
	StockTransactionId int             `gorm:"index" json:"stockTransactionId"`
	BusinessId         string          `gorm:"size:30;index" json:"businessId"`
	ItemId             int             `gorm:"index" json:"itemId"`
	Qty                decimal.Decimal `gorm:"type:decimal(20,4)" json:"qty"`
	UnitCost           decimal.Decimal `gorm:"type:decimal(20,4)" json:"unitCost"`
	TotalCost          decimal.Decimal `gorm:"type:decimal(20,4)" json:"totalCost"`
	QtyBefore          decimal.Decimal `gorm:"type:decimal(20,4)" json:"qtyBefore"`
	QtyAfter           decimal.Decimal `gorm:"type:decimal(20,4)" json:"qtyAfter"`
	ValueBefore        decimal.Decimal `gorm:"type:decimal(20,4)" json:"valueBefore"`
	ValueAfter         decimal.Decimal `gorm:"type:decimal(20,4)" json:"valueAfter"`
	CreatedAt          time.Time       `json:"createdAt"`
}

func (i StockTransactionItem) GetBusinessId() string {
	return i.BusinessId
}

// NewStockTransactionItem is one line handed to CreateStockTransaction by
// the workflows, snapshot already filled from the balance mutation.
type NewStockTransactionItem struct {
	ItemId   int
	Qty      decimal.Decimal
	Movement StockMovementResult
}

// CreateStockTransaction posts one ledger entry with its lines inside the
// caller's transaction.
func CreateStockTransaction(tx *gorm.DB, businessId string, txnType StockTransactionType, purpose StockTransactionPurpose, warehouseId int, locationId int, referenceType string, referenceId int, description string, postedBy int, lines []NewStockTransactionItem) (*StockTransaction, error) {
	transaction := StockTransaction{
		BusinessId:    businessId,
		Type:          txnType,
		Purpose:       purpose,
		WarehouseId:   warehouseId,
		LocationId:    locationId,
		ReferenceType: referenceType,
		ReferenceId:   referenceId,
		Description:   description,
		PostedAt:      time.Now().UTC(),
		PostedBy:      postedBy,
	}
	if err := tx.Create(&transaction).Error; err != nil {
		return nil, err
	}

	items := make([]StockTransactionItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, StockTransactionItem{
			StockTransactionId: transaction.ID,
			BusinessId:         businessId,
			ItemId:             line.ItemId,
			Qty:                line.Qty,
			UnitCost:           line.Movement.UnitCost,
			TotalCost:          line.Movement.TotalCost,
			QtyBefore:          line.Movement.QtyBefore,
			QtyAfter:           line.Movement.QtyAfter,
			ValueBefore:        line.Movement.ValueBefore,
			ValueAfter:         line.Movement.ValueAfter,
		})
	}
	if len(items) > 0 {
		if err := tx.Create(&items).Error; err != nil {
			return nil, err
		}
		transaction.Items = items
	}
	return &transaction, nil
}

// GetStockTransactionsByReference lists the ledger entries posted for one
// document, oldest first.
func GetStockTransactionsByReference(ctx context.Context, referenceType string, referenceId int) ([]*StockTransaction, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	businessId, err := requireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	var transactions []*StockTransaction
	err = db.WithContext(ctx).
		Where("business_id = ? AND reference_type = ? AND reference_id = ?", businessId, referenceType, referenceId).
		Preload("Items").
		Order("id ASC").
		Find(&transactions).Error
	if err != nil {
		config.LogError(logger, "models", "GetStockTransactionsByReference", "find", referenceId, err)
		return nil, err
	}
	return transactions, nil
}

// PaginateStockTransactions pages the ledger for one warehouse, newest last.
func PaginateStockTransactions(ctx context.Context, warehouseId int, limit int, after *string) (*Connection[StockTransaction], error) {
	db := config.GetDB()

	businessId, err := requireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	query := db.Model(&StockTransaction{}).Where("business_id = ?", businessId)
	if warehouseId != 0 {
		query = query.Where("warehouse_id = ?", warehouseId)
	}
	query = query.Preload("Items")
	return FetchPageCursor[StockTransaction](ctx, query, limit, after)
}
