package workflow

import (
	"context"
	"errors"
	"fmt"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/models"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/shopspring/decimal"
)

// TemplateValidation reports whether a template can back a new order.
type TemplateValidation struct {
	TemplateId int    `json:"templateId"`
	Valid      bool   `json:"valid"`
	Reason     string `json:"reason,omitempty"`
}

// ValidateTemplate checks existence, active flag, and that the template has
// at least one input and one output line.
func ValidateTemplate(ctx context.Context, templateId int) (*TemplateValidation, error) {
	result := &TemplateValidation{TemplateId: templateId}

	template, err := models.GetTransformationTemplate(ctx, templateId)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			result.Reason = "template not found"
			return result, nil
		}
		return nil, err
	}
	if template.IsActive == nil || !*template.IsActive {
		result.Reason = "template is inactive"
		return result, nil
	}
	if len(template.Inputs) == 0 {
		result.Reason = "template has no input lines"
		return result, nil
	}
	if len(template.Outputs) == 0 {
		result.Reason = "template has no output lines"
		return result, nil
	}
	result.Valid = true
	return result, nil
}

// StockShortfall is one under-stocked input line of an availability check.
type StockShortfall struct {
	ItemId    int             `json:"itemId"`
	Sku       string          `json:"sku"`
	Name      string          `json:"name"`
	Required  decimal.Decimal `json:"required"`
	Available decimal.Decimal `json:"available"`
}

// StockAvailability is the outcome of a pre-flight availability check.
type StockAvailability struct {
	OrderId    int              `json:"orderId"`
	Sufficient bool             `json:"sufficient"`
	Shortfalls []StockShortfall `json:"shortfalls"`
}

// ValidateStockAvailability checks every input line of an order against the
// source warehouse and returns the full shortfall list rather than stopping
// at the first gap. Read-only.
func ValidateStockAvailability(ctx context.Context, orderId int) (*StockAvailability, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	order, err := models.GetTransformationOrder(ctx, orderId)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	result := &StockAvailability{
		OrderId:    orderId,
		Sufficient: true,
		Shortfalls: []StockShortfall{},
	}
	for _, line := range order.Inputs {
		required := line.PlannedQty
		available, err := models.GetAvailableStock(db.WithContext(ctx), businessId, line.ItemId, order.WarehouseId)
		if err != nil {
			config.LogError(logger, "validation.go", "ValidateStockAvailability", "GetAvailableStock", line.ItemId, err)
			return nil, err
		}
		if available.LessThan(required) {
			result.Sufficient = false
			shortfall := StockShortfall{
				ItemId:    line.ItemId,
				Required:  required,
				Available: available,
			}
			if line.Item != nil {
				shortfall.Sku = line.Item.Sku
				shortfall.Name = line.Item.Name
			}
			result.Shortfalls = append(result.Shortfalls, shortfall)
		}
	}
	return result, nil
}

// StateTransitionValidation reports whether a proposed lifecycle move is
// allowed, always echoing the current status.
type StateTransitionValidation struct {
	OrderId       int                              `json:"orderId"`
	CurrentStatus models.TransformationOrderStatus `json:"currentStatus"`
	ToStatus      models.TransformationOrderStatus `json:"toStatus"`
	Allowed       bool                             `json:"allowed"`
	Reason        string                           `json:"reason,omitempty"`
}

// ValidateStateTransition checks a proposed status change against the fixed
// state graph without applying it.
func ValidateStateTransition(ctx context.Context, orderId int, toStatus models.TransformationOrderStatus) (*StateTransitionValidation, error) {
	order, err := models.GetTransformationOrder(ctx, orderId)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	result := &StateTransitionValidation{
		OrderId:       orderId,
		CurrentStatus: order.Status,
		ToStatus:      toStatus,
	}
	if !toStatus.IsValid() {
		result.Reason = fmt.Sprintf("%s is not a valid status", toStatus)
		return result, nil
	}
	if !order.Status.CanTransition(toStatus) {
		result.Reason = fmt.Sprintf("cannot transition from %s to %s", order.Status, toStatus)
		return result, nil
	}
	result.Allowed = true
	return result, nil
}

// TemplateLock reports whether a template's structure is frozen.
type TemplateLock struct {
	TemplateId int  `json:"templateId"`
	Locked     bool `json:"locked"`
	UsageCount int  `json:"usageCount"`
}

// CheckTemplateLock returns the lock flag and usage count of a template. A
// non-zero usage count freezes structural edits.
func CheckTemplateLock(ctx context.Context, templateId int) (*TemplateLock, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	template, err := utils.FetchModel[models.TransformationTemplate](ctx, businessId, templateId)
	if err != nil {
		return nil, err
	}
	return &TemplateLock{
		TemplateId: templateId,
		Locked:     template.IsLocked(),
		UsageCount: template.UsageCount,
	}, nil
}
