package models

import (
	"context"
	"errors"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransformationTemplate is a reusable recipe: which items a transformation
// consumes and which it produces, per single run. UsageCount locks the
// structure once orders reference it.
type TransformationTemplate struct {
	ID         int       `gorm:"primaryKey" json:"id"`
	BusinessId string    `gorm:"size:30;index" json:"businessId"`
	Name       string    `gorm:"size:100" json:"name"`
	UsageCount int       `gorm:"default:0" json:"usageCount"`
	IsActive   *bool     `gorm:"default:true" json:"isActive"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`

	Inputs  []TransformationTemplateInput  `gorm:"foreignKey:TemplateId" json:"inputs,omitempty"`
	Outputs []TransformationTemplateOutput `gorm:"foreignKey:TemplateId" json:"outputs,omitempty"`
}

func (t TransformationTemplate) GetBusinessId() string {
	return t.BusinessId
}

func (t TransformationTemplate) GetId() string {
	return strconv.Itoa(t.ID)
}

func (t TransformationTemplate) GetCursorValue() string {
	return t.Name
}

// IsLocked reports whether structural edits are blocked.
func (t TransformationTemplate) IsLocked() bool {
	return t.UsageCount > 0
}

type TransformationTemplateInput struct {
	ID         int             `gorm:"primaryKey" json:"id"`
	TemplateId int             `gorm:"index" json:"templateId"`
	BusinessId string          `gorm:"size:30;index" json:"businessId"`
	ItemId     int             `json:"itemId"`
	Item       *Item           `json:"item,omitempty"`
	Qty        decimal.Decimal `gorm:"type:decimal(20,4)" json:"qty"`
}

func (i TransformationTemplateInput) GetBusinessId() string {
	return i.BusinessId
}

type TransformationTemplateOutput struct {
	ID         int             `gorm:"primaryKey" json:"id"`
	TemplateId int             `gorm:"index" json:"templateId"`
	BusinessId string          `gorm:"size:30;index" json:"businessId"`
	ItemId     int             `json:"itemId"`
	Item       *Item           `json:"item,omitempty"`
	Qty        decimal.Decimal `gorm:"type:decimal(20,4)" json:"qty"`
	IsScrap    *bool           `gorm:"default:false" json:"isScrap"`
}

func (o TransformationTemplateOutput) GetBusinessId() string {
	return o.BusinessId
}

type NewTransformationTemplateLine struct {
	ItemId  int             `json:"itemId" validate:"required"`
	Qty     decimal.Decimal `json:"qty"`
	IsScrap *bool           `json:"isScrap"`
}

type NewTransformationTemplate struct {
	Name     string                          `json:"name" validate:"required,max=100"`
	IsActive *bool                           `json:"isActive"`
	Inputs   []NewTransformationTemplateLine `json:"inputs" validate:"required,min=1,dive"`
	Outputs  []NewTransformationTemplateLine `json:"outputs" validate:"required,min=1,dive"`
}

func (input *NewTransformationTemplate) validate(ctx context.Context, businessId string, id int) error {
	if err := validate.Struct(input); err != nil {
		return err
	}
	if err := utils.ValidateUnique[TransformationTemplate](ctx, businessId, "name", input.Name, id); err != nil {
		return errors.New("transformation template name already exists")
	}
	itemIds := make([]int, 0, len(input.Inputs)+len(input.Outputs))
	for _, line := range input.Inputs {
		if !line.Qty.IsPositive() {
			return errors.New("input line quantity must be greater than zero")
		}
		itemIds = append(itemIds, line.ItemId)
	}
	for _, line := range input.Outputs {
		if !line.Qty.IsPositive() {
			return errors.New("output line quantity must be greater than zero")
		}
		itemIds = append(itemIds, line.ItemId)
	}
	if err := utils.ValidateResourcesId[Item](ctx, businessId, utils.UniqueSlice(itemIds)); err != nil {
		return errors.New("invalid item id on template line")
	}
	return nil
}

func CreateTransformationTemplate(ctx context.Context, input *NewTransformationTemplate) (*TransformationTemplate, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	businessId, err := requireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	template := TransformationTemplate{
		BusinessId: businessId,
		Name:       input.Name,
		IsActive:   input.IsActive,
	}
	if template.IsActive == nil {
		template.IsActive = utils.NewTrue()
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&template).Error; err != nil {
			return err
		}
		return createTemplateLines(tx, businessId, template.ID, input)
	})
	if err != nil {
		config.LogError(logger, "models", "CreateTransformationTemplate", "create", input, err)
		return nil, err
	}
	return GetTransformationTemplate(ctx, template.ID)
}

func createTemplateLines(tx *gorm.DB, businessId string, templateId int, input *NewTransformationTemplate) error {
	inputs := make([]TransformationTemplateInput, 0, len(input.Inputs))
	for _, line := range input.Inputs {
		inputs = append(inputs, TransformationTemplateInput{
			TemplateId: templateId,
			BusinessId: businessId,
			ItemId:     line.ItemId,
			Qty:        line.Qty,
		})
	}
	if err := tx.Create(&inputs).Error; err != nil {
		return err
	}
	outputs := make([]TransformationTemplateOutput, 0, len(input.Outputs))
	for _, line := range input.Outputs {
		isScrap := line.IsScrap
		if isScrap == nil {
			isScrap = utils.NewFalse()
		}
		outputs = append(outputs, TransformationTemplateOutput{
			TemplateId: templateId,
			BusinessId: businessId,
			ItemId:     line.ItemId,
			Qty:        line.Qty,
			IsScrap:    isScrap,
		})
	}
	return tx.Create(&outputs).Error
}

// UpdateTransformationTemplate replaces the template's lines. Rejected once
// the template has been used by an order; only the name and active flag stay
// editable after that.
func UpdateTransformationTemplate(ctx context.Context, id int, input *NewTransformationTemplate) (*TransformationTemplate, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	businessId, err := requireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	template, err := utils.FetchModel[TransformationTemplate](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	if template.IsLocked() {
		return nil, errors.New("template is locked: it has been used by transformation orders")
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"name": input.Name}
		if input.IsActive != nil {
			updates["is_active"] = *input.IsActive
		}
		if err := tx.Model(template).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.Where("template_id = ?", id).Delete(&TransformationTemplateInput{}).Error; err != nil {
			return err
		}
		if err := tx.Where("template_id = ?", id).Delete(&TransformationTemplateOutput{}).Error; err != nil {
			return err
		}
		return createTemplateLines(tx, businessId, id, input)
	})
	if err != nil {
		config.LogError(logger, "models", "UpdateTransformationTemplate", "update", id, err)
		return nil, err
	}
	return GetTransformationTemplate(ctx, id)
}

// RenameTransformationTemplate updates the non-structural fields, allowed
// even on a locked template.
func RenameTransformationTemplate(ctx context.Context, id int, name string, isActive *bool) (*TransformationTemplate, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	businessId, err := requireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateUnique[TransformationTemplate](ctx, businessId, "name", name, id); err != nil {
		return nil, errors.New("transformation template name already exists")
	}
	template, err := utils.FetchModel[TransformationTemplate](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{"name": name}
	if isActive != nil {
		updates["is_active"] = *isActive
	}
	if err := db.WithContext(ctx).Model(template).Updates(updates).Error; err != nil {
		config.LogError(logger, "models", "RenameTransformationTemplate", "update", id, err)
		return nil, err
	}
	return GetTransformationTemplate(ctx, id)
}

func DeleteTransformationTemplate(ctx context.Context, id int) (*TransformationTemplate, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	businessId, err := requireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	template, err := utils.FetchModel[TransformationTemplate](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	if template.IsLocked() {
		return nil, errors.New("template is locked: it has been used by transformation orders")
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("template_id = ?", id).Delete(&TransformationTemplateInput{}).Error; err != nil {
			return err
		}
		if err := tx.Where("template_id = ?", id).Delete(&TransformationTemplateOutput{}).Error; err != nil {
			return err
		}
		return tx.Delete(template).Error
	})
	if err != nil {
		config.LogError(logger, "models", "DeleteTransformationTemplate", "delete", id, err)
		return nil, err
	}
	return template, nil
}

func GetTransformationTemplate(ctx context.Context, id int) (*TransformationTemplate, error) {
	businessId, err := requireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	return utils.FetchModel[TransformationTemplate](ctx, businessId, id, "Inputs", "Inputs.Item", "Outputs", "Outputs.Item")
}

func PaginateTransformationTemplates(ctx context.Context, limit int, after *string, activeOnly bool) (*Connection[TransformationTemplate], error) {
	db := config.GetDB()

	businessId, err := requireBusinessId(ctx)
	if err != nil {
		return nil, err
	}
	query := db.Model(&TransformationTemplate{}).Where("business_id = ?", businessId)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	return FetchPageCompositeCursor[TransformationTemplate](ctx, query, "name", limit, after)
}

// IncrementTemplateUsage bumps the usage counter inside the caller's
// transaction. The raw increment keeps concurrent order creations from
// losing counts.
func IncrementTemplateUsage(tx *gorm.DB, businessId string, templateId int) error {
	result := tx.Model(&TransformationTemplate{}).
		Where("business_id = ? AND id = ?", businessId, templateId).
		Update("usage_count", gorm.Expr("usage_count + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}
