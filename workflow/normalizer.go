package workflow

import (
	"context"
	"errors"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/models"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/shopspring/decimal"
)

// NormalizedQuantity is the result of one package-to-base-unit conversion,
// with the metadata audit trails need.
type NormalizedQuantity struct {
	ItemId           int             `json:"itemId"`
	InputQty         decimal.Decimal `json:"inputQty"`
	NormalizedQty    decimal.Decimal `json:"normalizedQty"`
	ConversionFactor decimal.Decimal `json:"conversionFactor"`
	PackagingId      int             `json:"packagingId"`
	PackagingName    string          `json:"packagingName"`
	BasePackagingId  int             `json:"basePackagingId"`
	BaseUnitName     string          `json:"baseUnitName"`
}

// NormalizeQuantity converts inputQty of an item, counted in the given
// packaging, into base units. packagingId zero means the item's base
// packaging (factor 1). Exact decimal multiplication, no rounding.
func NormalizeQuantity(ctx context.Context, itemId int, packagingId int, inputQty decimal.Decimal) (*NormalizedQuantity, error) {
	if inputQty.IsNegative() {
		return nil, &InvalidQuantityError{Qty: inputQty}
	}
	item, packagings, err := loadItemForNormalization(ctx, itemId)
	if err != nil {
		return nil, err
	}
	return normalizeItemQuantity(item, packagings, packagingId, inputQty)
}

// loadItemForNormalization fetches the item, its unit, and its packagings in
// one pass, mapping a missing row onto the domain sentinel.
func loadItemForNormalization(ctx context.Context, itemId int) (*models.Item, []*models.ItemPackaging, error) {
	item, err := models.GetItem(ctx, itemId)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, nil, ErrItemNotFound
		}
		return nil, nil, err
	}
	if item.Unit == nil && item.UnitId != 0 {
		if unit, err := models.GetProductUnit(ctx, item.UnitId); err == nil {
			item.Unit = unit
		}
	}
	packagings, err := models.GetItemPackagings(ctx, itemId)
	if err != nil {
		return nil, nil, err
	}
	return item, packagings, nil
}

// normalizeItemQuantity is the conversion core. No database access; the
// caller supplies the item and its packagings.
func normalizeItemQuantity(item *models.Item, packagings []*models.ItemPackaging, packagingId int, inputQty decimal.Decimal) (*NormalizedQuantity, error) {
	if inputQty.IsNegative() {
		return nil, &InvalidQuantityError{Qty: inputQty}
	}
	if item.IsActive == nil || !*item.IsActive {
		return nil, &InactiveItemError{ItemId: item.ID, Sku: item.Sku}
	}

	var base *models.ItemPackaging
	for i := range packagings {
		if packagings[i].IsBase != nil && *packagings[i].IsBase {
			base = packagings[i]
			break
		}
	}
	if base == nil {
		return nil, ErrMissingUnitOfMeasure
	}

	selected := base
	if packagingId != 0 && packagingId != base.ID {
		selected = nil
		for i := range packagings {
			if packagings[i].ID == packagingId {
				selected = packagings[i]
				break
			}
		}
		if selected == nil {
			return nil, &InvalidPackageError{ItemId: item.ID, PackagingId: packagingId, Reason: "not found for item"}
		}
		if selected.IsActive == nil || !*selected.IsActive {
			return nil, &InvalidPackageError{ItemId: item.ID, PackagingId: packagingId, Reason: "inactive"}
		}
	}

	factor := selected.ConversionFactor
	if !factor.IsPositive() {
		return nil, &InvalidConversionFactorError{PackagingId: selected.ID, Factor: factor}
	}

	unitName := ""
	if item.Unit != nil {
		unitName = item.Unit.Name
	}

	return &NormalizedQuantity{
		ItemId:           item.ID,
		InputQty:         inputQty,
		NormalizedQty:    inputQty.Mul(factor),
		ConversionFactor: factor,
		PackagingId:      selected.ID,
		PackagingName:    selected.Name,
		BasePackagingId:  base.ID,
		BaseUnitName:     unitName,
	}, nil
}

// NormalizeBatchLine is one line of a batch normalization request.
type NormalizeBatchLine struct {
	ItemId      int             `json:"itemId" validate:"required"`
	PackagingId int             `json:"packagingId"`
	Qty         decimal.Decimal `json:"qty"`
}

// NormalizedBatchLine extends the single result with the line's cost at the
// item's standard cost.
type NormalizedBatchLine struct {
	NormalizedQuantity
	UnitCost  decimal.Decimal `json:"unitCost"`
	TotalCost decimal.Decimal `json:"totalCost"`
}

// NormalizeBatch normalizes every line or none: the first failing line
// aborts the whole batch with its error.
func NormalizeBatch(ctx context.Context, lines []NormalizeBatchLine) ([]NormalizedBatchLine, error) {
	logger := config.GetLogger()

	results := make([]NormalizedBatchLine, 0, len(lines))
	for _, line := range lines {
		item, packagings, err := loadItemForNormalization(ctx, line.ItemId)
		if err != nil {
			config.LogError(logger, "normalizer.go", "NormalizeBatch", "load item", line, err)
			return nil, err
		}
		normalized, err := normalizeItemQuantity(item, packagings, line.PackagingId, line.Qty)
		if err != nil {
			config.LogError(logger, "normalizer.go", "NormalizeBatch", "normalize", line, err)
			return nil, err
		}
		results = append(results, NormalizedBatchLine{
			NormalizedQuantity: *normalized,
			UnitCost:           item.StandardCost,
			TotalCost:          normalized.NormalizedQty.Mul(item.StandardCost),
		})
	}
	return results, nil
}

// DenormalizedQuantity expresses a base quantity in package units for
// display. Never feeds back into stock math.
type DenormalizedQuantity struct {
	PackageQty   decimal.Decimal `json:"packageQty"`
	WholePackets decimal.Decimal `json:"wholePackets"`
	RemainderQty decimal.Decimal `json:"remainderQty"`
}

// DenormalizeQuantity is the inverse helper: baseQty expressed in packages
// of the given factor, with the whole-package count and base-unit remainder.
func DenormalizeQuantity(baseQty decimal.Decimal, conversionFactor decimal.Decimal) (*DenormalizedQuantity, error) {
	if !conversionFactor.IsPositive() {
		return nil, &InvalidConversionFactorError{Factor: conversionFactor}
	}
	if baseQty.IsNegative() {
		return nil, &InvalidQuantityError{Qty: baseQty}
	}
	packageQty := baseQty.Div(conversionFactor)
	whole := packageQty.Floor()
	remainder := baseQty.Sub(whole.Mul(conversionFactor))
	return &DenormalizedQuantity{
		PackageQty:   packageQty,
		WholePackets: whole,
		RemainderQty: remainder,
	}, nil
}
