package reports

import (
	"context"
	"errors"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/models"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/shopspring/decimal"
)

type StockSummaryResponse struct {
	ItemId        int             `json:"ItemId"`
	Sku           string          `json:"Sku"`
	ItemName      string          `json:"ItemName"`
	WarehouseId   int             `json:"WarehouseId"`
	WarehouseName string          `json:"WarehouseName"`
	UnitName      string          `json:"UnitName"`
	Qty           decimal.Decimal `json:"Qty"`
	TotalValue    decimal.Decimal `json:"TotalValue"`
}

// GetStockSummaryReport lists on-hand quantity and value per item and
// warehouse.
func GetStockSummaryReport(ctx context.Context, warehouseId *int) ([]*StockSummaryResponse, error) {

	sqlT := `
SELECT
    sb.item_id,
    items.sku,
    items.name AS item_name,
    sb.warehouse_id,
    w.name AS warehouse_name,
    pu.name AS unit_name,
    sb.qty,
    sb.total_value
FROM
    stock_balances AS sb
        LEFT JOIN
    items ON items.id = sb.item_id
        LEFT JOIN
    warehouses AS w ON w.id = sb.warehouse_id
        LEFT JOIN
    product_units AS pu ON pu.id = items.unit_id
WHERE
    sb.business_id = @businessId
        {{- if .warehouseId }} AND sb.warehouse_id = @warehouseId {{- end }}
ORDER BY items.name ASC;
`

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if warehouseId != nil && *warehouseId != 0 {
		if err := utils.ValidateResourceId[models.Warehouse](ctx, businessId, *warehouseId); err != nil {
			return nil, errors.New("warehouse not found")
		}
	}

	sql, err := utils.ExecTemplate(sqlT, map[string]interface{}{
		"warehouseId": utils.DereferencePtr(warehouseId),
	})
	if err != nil {
		return nil, err
	}

	var records []*StockSummaryResponse
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql, map[string]interface{}{
		"businessId":  businessId,
		"warehouseId": warehouseId,
	}).Scan(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
