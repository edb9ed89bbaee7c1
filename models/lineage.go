package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransformationLineage is one N x M attribution edge between an input line
// and an output line of a single execution. Append-only.
type TransformationLineage struct {
	ID             int             `gorm:"primaryKey" json:"id"`
	BusinessId     string          `gorm:"size:30;index" json:"businessId"`
	OrderId        int             `gorm:"index" json:"orderId"`
	InputLineId    int             `gorm:"index" json:"inputLineId"`
	OutputLineId   int             `gorm:"index" json:"outputLineId"`
	InputItemId    int             `json:"inputItemId"`
	OutputItemId   int             `json:"outputItemId"`
	ConsumedQty    decimal.Decimal `gorm:"type:decimal(20,4)" json:"consumedQty"`
	ProducedQty    decimal.Decimal `gorm:"type:decimal(20,4)" json:"producedQty"`
	CostAttributed decimal.Decimal `gorm:"type:decimal(20,4)" json:"costAttributed"`
	CreatedAt      time.Time       `json:"createdAt"`
}

func (l TransformationLineage) GetBusinessId() string {
	return l.BusinessId
}

// CreateTransformationLineages inserts the edges of one execution inside the
// caller's transaction.
func CreateTransformationLineages(tx *gorm.DB, edges []TransformationLineage) error {
	if len(edges) == 0 {
		return nil
	}
	return tx.Create(&edges).Error
}

// GetTransformationLineage lists the edges recorded for one order.
func GetTransformationLineage(ctx context.Context, orderId int) ([]*TransformationLineage, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	businessId, err := requireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	var edges []*TransformationLineage
	err = db.WithContext(ctx).
		Where("business_id = ? AND order_id = ?", businessId, orderId).
		Order("input_line_id ASC, output_line_id ASC").
		Find(&edges).Error
	if err != nil {
		config.LogError(logger, "models", "GetTransformationLineage", "find", orderId, err)
		return nil, err
	}
	return edges, nil
}
