package reports

import (
	"context"
	"errors"
	"fmt"
	"io"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

type TransformationCostResponse struct {
	OrderId         int             `json:"OrderId"`
	OrderNo         string          `json:"OrderNo"`
	TemplateName    string          `json:"TemplateName"`
	WarehouseName   string          `json:"WarehouseName"`
	Status          string          `json:"Status"`
	TotalInputCost  decimal.Decimal `json:"TotalInputCost"`
	TotalOutputCost decimal.Decimal `json:"TotalOutputCost"`
	CostVariance    decimal.Decimal `json:"CostVariance"`
	ActualQty       decimal.Decimal `json:"ActualQty"`
}

// GetTransformationCostReport lists completed orders with their cost
// figures, newest first. CostVariance is the waste cost of each run.
func GetTransformationCostReport(ctx context.Context, warehouseId *int) ([]*TransformationCostResponse, error) {

	sqlT := `
SELECT
    tro.id AS order_id,
    tro.order_no,
    tt.name AS template_name,
    w.name AS warehouse_name,
    tro.status,
    tro.total_input_cost,
    tro.total_output_cost,
    tro.cost_variance,
    tro.actual_qty
FROM
    transformation_orders AS tro
        LEFT JOIN
    transformation_templates AS tt ON tt.id = tro.template_id
        LEFT JOIN
    warehouses AS w ON w.id = tro.warehouse_id
WHERE
    tro.business_id = @businessId
        AND tro.status = 'Completed'
        {{- if .warehouseId }} AND tro.warehouse_id = @warehouseId {{- end }}
ORDER BY tro.completed_at DESC;
`

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	sql, err := utils.ExecTemplate(sqlT, map[string]interface{}{
		"warehouseId": utils.DereferencePtr(warehouseId),
	})
	if err != nil {
		return nil, err
	}

	var records []*TransformationCostResponse
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql, map[string]interface{}{
		"businessId":  businessId,
		"warehouseId": warehouseId,
	}).Scan(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// ExportTransformationCostReport streams the report as an xlsx workbook.
func ExportTransformationCostReport(ctx context.Context, w io.Writer, warehouseId *int) error {
	records, err := GetTransformationCostReport(ctx, warehouseId)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	if _, err := f.NewSheet("Sheet1"); err != nil {
		return err
	}

	// Add headers
	f.SetCellValue("Sheet1", "A1", "OrderNo")
	f.SetCellValue("Sheet1", "B1", "Template")
	f.SetCellValue("Sheet1", "C1", "Warehouse")
	f.SetCellValue("Sheet1", "D1", "ActualQty")
	f.SetCellValue("Sheet1", "E1", "InputCost")
	f.SetCellValue("Sheet1", "F1", "OutputCost")
	f.SetCellValue("Sheet1", "G1", "WasteCost")

	// Add data
	for i, d := range records {
		row := fmt.Sprint(i + 2)
		f.SetCellValue("Sheet1", "A"+row, d.OrderNo)
		f.SetCellValue("Sheet1", "B"+row, d.TemplateName)
		f.SetCellValue("Sheet1", "C"+row, d.WarehouseName)
		f.SetCellValue("Sheet1", "D"+row, d.ActualQty.String())
		f.SetCellValue("Sheet1", "E"+row, d.TotalInputCost.String())
		f.SetCellValue("Sheet1", "F"+row, d.TotalOutputCost.String())
		f.SetCellValue("Sheet1", "G"+row, d.CostVariance.String())
	}

	return f.Write(w)
}
