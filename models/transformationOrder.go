package models

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransformationOrder instructs the engine to consume its input lines from
// the source warehouse and produce its output lines. Cost figures are filled
// in at execution time.
type TransformationOrder struct {
	ID              int                       `gorm:"primaryKey" json:"id"`
	BusinessId      string                    `gorm:"size:30;index" json:"businessId"`
	OrderNo         string                    `gorm:"size:30;index" json:"orderNo"`
	TemplateId      int                       `gorm:"index" json:"templateId"`
	Template        *TransformationTemplate   `json:"template,omitempty"`
	WarehouseId     int                       `gorm:"index" json:"warehouseId"`
	Warehouse       *Warehouse                `json:"warehouse,omitempty"`
	Status          TransformationOrderStatus `gorm:"size:20;default:Draft" json:"status"`
	PlannedQty      decimal.Decimal           `gorm:"type:decimal(20,4)" json:"plannedQty"`
	ActualQty       decimal.Decimal           `gorm:"type:decimal(20,4)" json:"actualQty"`
	TotalInputCost  decimal.Decimal           `gorm:"type:decimal(20,4)" json:"totalInputCost"`
	TotalOutputCost decimal.Decimal           `gorm:"type:decimal(20,4)" json:"totalOutputCost"`
	CostVariance    decimal.Decimal           `gorm:"type:decimal(20,4)" json:"costVariance"`
	Notes           string                    `gorm:"size:255" json:"notes"`
	ExecutedAt      *time.Time                `json:"executedAt"`
	CompletedAt     *time.Time                `json:"completedAt"`
	CreatedBy       int                       `json:"createdBy"`
	CreatedAt       time.Time                 `json:"createdAt"`
	UpdatedAt       time.Time                 `json:"updatedAt"`

	Inputs  []TransformationOrderInput  `gorm:"foreignKey:OrderId" json:"inputs,omitempty"`
	Outputs []TransformationOrderOutput `gorm:"foreignKey:OrderId" json:"outputs,omitempty"`
}

func (o TransformationOrder) GetBusinessId() string {
	return o.BusinessId
}

func (o TransformationOrder) GetId() string {
	return strconv.Itoa(o.ID)
}

func (o TransformationOrder) GetCursorValue() string {
	return o.OrderNo
}

// TransformationOrderInput is one consumption line. Consumed quantity, unit
// cost and the ledger link are written during execution.
type TransformationOrderInput struct {
	ID                 int             `gorm:"primaryKey" json:"id"`
	OrderId            int             `gorm:"index" json:"orderId"`
	BusinessId         string          `gorm:"size:30;index" json:"businessId"`
	ItemId             int             `json:"itemId"`
	Item               *Item           `json:"item,omitempty"`
	PlannedQty         decimal.Decimal `gorm:"type:decimal(20,4)" json:"plannedQty"`
	ConsumedQty        decimal.Decimal `gorm:"type:decimal(20,4)" json:"consumedQty"`
	UnitCost           decimal.Decimal `gorm:"type:decimal(20,4)" json:"unitCost"`
	TotalCost          decimal.Decimal `gorm:"type:decimal(20,4)" json:"totalCost"`
	StockTransactionId *int            `json:"stockTransactionId"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

func (i TransformationOrderInput) GetBusinessId() string {
	return i.BusinessId
}

// TransformationOrderOutput is one production line. Scrap lines never carry
// allocated cost; waste quantity is cost-accounting only.
type TransformationOrderOutput struct {
	ID                 int             `gorm:"primaryKey" json:"id"`
	OrderId            int             `gorm:"index" json:"orderId"`
	BusinessId         string          `gorm:"size:30;index" json:"businessId"`
	ItemId             int             `json:"itemId"`
	Item               *Item           `json:"item,omitempty"`
	PlannedQty         decimal.Decimal `gorm:"type:decimal(20,4)" json:"plannedQty"`
	IsScrap            *bool           `gorm:"default:false" json:"isScrap"`
	ProducedQty        decimal.Decimal `gorm:"type:decimal(20,4)" json:"producedQty"`
	WastedQty          decimal.Decimal `gorm:"type:decimal(20,4)" json:"wastedQty"`
	WasteReason        string          `gorm:"size:255" json:"wasteReason"`
	AllocatedUnitCost  decimal.Decimal `gorm:"type:decimal(20,4)" json:"allocatedUnitCost"`
	AllocatedCost      decimal.Decimal `gorm:"type:decimal(20,4)" json:"allocatedCost"`
	StockTransactionId *int            `json:"stockTransactionId"`
	WasteTransactionId *int            `json:"wasteTransactionId"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

func (o TransformationOrderOutput) GetBusinessId() string {
	return o.BusinessId
}

type NewTransformationOrder struct {
	TemplateId  int             `json:"templateId" validate:"required"`
	WarehouseId int             `json:"warehouseId" validate:"required"`
	PlannedQty  decimal.Decimal `json:"plannedQty"`
	Notes       string          `json:"notes" validate:"max=255"`
}

func (input *NewTransformationOrder) validate(ctx context.Context, businessId string) (*TransformationTemplate, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	if !input.PlannedQty.IsPositive() {
		return nil, errors.New("planned quantity must be greater than zero")
	}
	if err := utils.ValidateResourceId[Warehouse](ctx, businessId, input.WarehouseId); err != nil {
		return nil, errors.New("invalid warehouse id")
	}
	template, err := utils.FetchModel[TransformationTemplate](ctx, businessId, input.TemplateId, "Inputs", "Outputs")
	if err != nil {
		return nil, errors.New("invalid template id")
	}
	if template.IsActive == nil || !*template.IsActive {
		return nil, errors.New("template is inactive")
	}
	if len(template.Inputs) == 0 || len(template.Outputs) == 0 {
		return nil, errors.New("template has no input or output lines")
	}
	return template, nil
}

// CreateTransformationOrder instantiates a Draft order from a template,
// scaling every line quantity by PlannedQty and bumping the template's usage
// counter in the same transaction.
func CreateTransformationOrder(ctx context.Context, input *NewTransformationOrder) (*TransformationOrder, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	businessId, err := requireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	template, err := input.validate(ctx, businessId)
	if err != nil {
		return nil, err
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	order := TransformationOrder{
		BusinessId:  businessId,
		TemplateId:  input.TemplateId,
		WarehouseId: input.WarehouseId,
		Status:      TransformationOrderStatusDraft,
		PlannedQty:  input.PlannedQty,
		Notes:       input.Notes,
		CreatedBy:   userId,
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		if err := tx.Model(&order).Update("order_no", fmt.Sprintf("TRF-%06d", order.ID)).Error; err != nil {
			return err
		}

		inputs := make([]TransformationOrderInput, 0, len(template.Inputs))
		for _, line := range template.Inputs {
			inputs = append(inputs, TransformationOrderInput{
				OrderId:    order.ID,
				BusinessId: businessId,
				ItemId:     line.ItemId,
				PlannedQty: line.Qty.Mul(input.PlannedQty),
			})
		}
		if err := tx.Create(&inputs).Error; err != nil {
			return err
		}

		outputs := make([]TransformationOrderOutput, 0, len(template.Outputs))
		for _, line := range template.Outputs {
			isScrap := line.IsScrap
			if isScrap == nil {
				isScrap = utils.NewFalse()
			}
			outputs = append(outputs, TransformationOrderOutput{
				OrderId:    order.ID,
				BusinessId: businessId,
				ItemId:     line.ItemId,
				PlannedQty: line.Qty.Mul(input.PlannedQty),
				IsScrap:    isScrap,
			})
		}
		if err := tx.Create(&outputs).Error; err != nil {
			return err
		}

		return IncrementTemplateUsage(tx, businessId, input.TemplateId)
	})
	if err != nil {
		config.LogError(logger, "models", "CreateTransformationOrder", "create", input, err)
		return nil, err
	}
	return GetTransformationOrder(ctx, order.ID)
}

// ChangeTransformationOrderStatus moves the order along the lifecycle graph
// after checking the transition table.
func ChangeTransformationOrderStatus(ctx context.Context, id int, toStatus TransformationOrderStatus) (*TransformationOrder, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	businessId, err := requireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	if toStatus == TransformationOrderStatusCompleted {
		return nil, errors.New("orders are completed by execution, not by a status change")
	}

	order, err := utils.FetchModel[TransformationOrder](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransition(toStatus) {
		return nil, fmt.Errorf("cannot transition order from %s to %s", order.Status, toStatus)
	}

	result := db.WithContext(ctx).Model(&TransformationOrder{}).
		Where("business_id = ? AND id = ? AND status = ?", businessId, id, order.Status).
		Update("status", toStatus)
	if result.Error != nil {
		config.LogError(logger, "models", "ChangeTransformationOrderStatus", "update status", id, result.Error)
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		// lost the race to a concurrent transition
		return nil, errors.New("order status changed concurrently, retry")
	}
	return GetTransformationOrder(ctx, id)
}

// UpdateTransformationOrder rescales a Draft order against a new planned
// quantity. Past Draft only the notes remain editable.
func UpdateTransformationOrder(ctx context.Context, id int, plannedQty decimal.Decimal, notes string) (*TransformationOrder, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	businessId, err := requireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	order, err := utils.FetchModel[TransformationOrder](ctx, businessId, id, "Inputs", "Outputs")
	if err != nil {
		return nil, err
	}
	if order.Status != TransformationOrderStatusDraft {
		if config.StrictOrderImmutability() || !plannedQty.Equal(order.PlannedQty) {
			return nil, errors.New("only draft orders can be modified")
		}
		// past Draft only the notes remain editable
		if err := db.WithContext(ctx).Model(order).Update("notes", notes).Error; err != nil {
			config.LogError(logger, "models", "UpdateTransformationOrder", "update notes", id, err)
			return nil, err
		}
		return GetTransformationOrder(ctx, id)
	}
	if !plannedQty.IsPositive() {
		return nil, errors.New("planned quantity must be greater than zero")
	}

	// rescale the copied template lines against the new planned quantity
	ratio := plannedQty.Div(order.PlannedQty)
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(order).Updates(map[string]interface{}{
			"planned_qty": plannedQty,
			"notes":       notes,
		}).Error; err != nil {
			return err
		}
		for _, line := range order.Inputs {
			if err := tx.Model(&TransformationOrderInput{}).Where("id = ?", line.ID).
				Update("planned_qty", line.PlannedQty.Mul(ratio)).Error; err != nil {
				return err
			}
		}
		for _, line := range order.Outputs {
			if err := tx.Model(&TransformationOrderOutput{}).Where("id = ?", line.ID).
				Update("planned_qty", line.PlannedQty.Mul(ratio)).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		config.LogError(logger, "models", "UpdateTransformationOrder", "update", id, err)
		return nil, err
	}
	return GetTransformationOrder(ctx, id)
}

func DeleteTransformationOrder(ctx context.Context, id int) (*TransformationOrder, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	businessId, err := requireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	order, err := utils.FetchModel[TransformationOrder](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	if order.Status != TransformationOrderStatusDraft {
		return nil, errors.New("only draft orders can be deleted")
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&TransformationOrderInput{}).Error; err != nil {
			return err
		}
		if err := tx.Where("order_id = ?", id).Delete(&TransformationOrderOutput{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&TransformationTemplate{}).
			Where("business_id = ? AND id = ? AND usage_count > 0", businessId, order.TemplateId).
			Update("usage_count", gorm.Expr("usage_count - 1")).Error; err != nil {
			return err
		}
		return tx.Delete(order).Error
	})
	if err != nil {
		config.LogError(logger, "models", "DeleteTransformationOrder", "delete", id, err)
		return nil, err
	}
	return order, nil
}

func GetTransformationOrder(ctx context.Context, id int) (*TransformationOrder, error) {
	businessId, err := requireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	return utils.FetchModel[TransformationOrder](ctx, businessId, id,
		"Inputs", "Inputs.Item", "Inputs.Item.Unit",
		"Outputs", "Outputs.Item", "Outputs.Item.Unit",
		"Warehouse", "Template")
}

func PaginateTransformationOrders(ctx context.Context, limit int, after *string, status *TransformationOrderStatus, warehouseId int) (*Connection[TransformationOrder], error) {
	db := config.GetDB()

	businessId, err := requireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	query := db.Model(&TransformationOrder{}).Where("business_id = ?", businessId)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	if warehouseId != 0 {
		query = query.Where("warehouse_id = ?", warehouseId)
	}
	query = query.Preload("Inputs").Preload("Outputs")
	return FetchPageCompositeCursor[TransformationOrder](ctx, query, "order_no", limit, after)
}
