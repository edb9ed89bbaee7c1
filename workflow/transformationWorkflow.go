package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/models"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const transformationReferenceType = "TransformationOrder"

// ExecutionInputLine carries the consumed quantity for one order input line.
type ExecutionInputLine struct {
	LineId      int             `json:"lineId" validate:"required"`
	ConsumedQty decimal.Decimal `json:"consumedQty"`
}

// ExecutionOutputLine carries the produced and wasted quantities for one
// order output line.
type ExecutionOutputLine struct {
	LineId      int             `json:"lineId" validate:"required"`
	ProducedQty decimal.Decimal `json:"producedQty"`
	WastedQty   decimal.Decimal `json:"wastedQty"`
	WasteReason string          `json:"wasteReason"`
}

// ExecutionData is the per-line payload of one execute call. Lines omitted
// from the payload fall back to their planned quantities.
type ExecutionData struct {
	Inputs     []ExecutionInputLine  `json:"inputs"`
	Outputs    []ExecutionOutputLine `json:"outputs"`
	ExecutedAt *time.Time            `json:"executedAt"`
}

// ExecutionResult returns the ledger entries one execution created, split by
// role.
type ExecutionResult struct {
	Order                *models.TransformationOrder `json:"order"`
	InputTransactionIds  []int                       `json:"inputTransactionIds"`
	OutputTransactionIds []int                       `json:"outputTransactionIds"`
	WasteTransactionIds  []int                       `json:"wasteTransactionIds"`
}

// ExecuteTransformationOrder runs a Preparing order to completion: consumes
// the input lines from the source warehouse, produces the output lines,
// allocates input cost proportionally across outputs, posts waste as
// cost-only ledger entries, and records input-output lineage. All stock and
// order mutations commit atomically; a failure anywhere leaves the order in
// Preparing with no stock altered. Waste posting alone is best-effort: its
// failure is logged and swallowed.
func ExecuteTransformationOrder(ctx context.Context, orderId int, userId int, data *ExecutionData) (*ExecutionResult, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := utils.BusinessLock(ctx, businessId, "transformation", "transformationWorkflow.go", "ExecuteTransformationOrder"); err != nil {
		return nil, err
	}

	var result *ExecutionResult
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireStockPostingLock(tx, businessId); err != nil {
			config.LogError(logger, "transformationWorkflow.go", "ExecuteTransformationOrder", "AcquireStockPostingLock", businessId, err)
			return err
		}
		defer ReleaseStockPostingLock(tx, businessId)

		executed, err := executeTransformationOrder(tx, logger, businessId, orderId, userId, data)
		if err != nil {
			return err
		}
		result = executed
		return nil
	})
	if err != nil {
		return nil, err
	}

	order, err := models.GetTransformationOrder(ctx, orderId)
	if err != nil {
		config.LogError(logger, "transformationWorkflow.go", "ExecuteTransformationOrder", "reload order", orderId, err)
		return nil, err
	}
	result.Order = order
	return result, nil
}

func executeTransformationOrder(tx *gorm.DB, logger *logrus.Logger, businessId string, orderId int, userId int, data *ExecutionData) (*ExecutionResult, error) {
	if data == nil {
		data = &ExecutionData{}
	}

	// load the order and its lines under a row lock
	var order models.TransformationOrder
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND id = ?", businessId, orderId).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		config.LogError(logger, "transformationWorkflow.go", "executeTransformationOrder", "load order", orderId, err)
		return nil, err
	}
	if order.Status != models.TransformationOrderStatusPreparing {
		return nil, &InvalidStateError{OrderId: orderId, Current: order.Status, Wanted: models.TransformationOrderStatusPreparing}
	}
	if err := tx.Where("order_id = ?", orderId).Order("id ASC").Find(&order.Inputs).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("order_id = ?", orderId).Order("id ASC").Find(&order.Outputs).Error; err != nil {
		return nil, err
	}

	// resolve the movement location and the virtual waste location up front
	defaultLocation, err := models.DefaultStorageLocation(tx, businessId, order.WarehouseId)
	if err != nil {
		config.LogError(logger, "transformationWorkflow.go", "executeTransformationOrder", "DefaultStorageLocation", order.WarehouseId, err)
		return nil, err
	}
	wasteLocation, err := models.WasteStorageLocation(tx, businessId, order.WarehouseId)
	if err != nil {
		config.LogError(logger, "transformationWorkflow.go", "executeTransformationOrder", "WasteStorageLocation", order.WarehouseId, err)
		return nil, err
	}

	// index the order's own lines; payload may only reference these
	inputLines := make(map[int]*models.TransformationOrderInput, len(order.Inputs))
	for i := range order.Inputs {
		inputLines[order.Inputs[i].ID] = &order.Inputs[i]
	}
	outputLines := make(map[int]*models.TransformationOrderOutput, len(order.Outputs))
	for i := range order.Outputs {
		outputLines[order.Outputs[i].ID] = &order.Outputs[i]
	}

	consumedByLine := make(map[int]decimal.Decimal, len(order.Inputs))
	for _, line := range data.Inputs {
		if _, ok := inputLines[line.LineId]; !ok {
			return nil, &InvalidLineReferenceError{OrderId: orderId, LineId: line.LineId, Kind: "input"}
		}
		if line.ConsumedQty.IsNegative() {
			return nil, &InvalidQuantityError{Qty: line.ConsumedQty}
		}
		consumedByLine[line.LineId] = line.ConsumedQty
	}
	producedByLine := make(map[int]ExecutionOutputLine, len(order.Outputs))
	for _, line := range data.Outputs {
		if _, ok := outputLines[line.LineId]; !ok {
			return nil, &InvalidLineReferenceError{OrderId: orderId, LineId: line.LineId, Kind: "output"}
		}
		if line.ProducedQty.IsNegative() {
			return nil, &InvalidQuantityError{Qty: line.ProducedQty}
		}
		if line.WastedQty.IsNegative() {
			return nil, &InvalidQuantityError{Qty: line.WastedQty}
		}
		producedByLine[line.LineId] = line
	}

	// every touched item must resolve a base unit before any mutation
	items, err := loadOrderItems(tx, businessId, &order)
	if err != nil {
		return nil, err
	}

	// actual quantity is what the outputs really produced
	actualQty := decimal.Zero
	for i := range order.Outputs {
		line := &order.Outputs[i]
		produced := line.PlannedQty
		if exec, ok := producedByLine[line.ID]; ok {
			produced = exec.ProducedQty
		}
		actualQty = actualQty.Add(produced)
	}

	executedAt := time.Now().UTC()
	if data.ExecutedAt != nil {
		executedAt = data.ExecutedAt.UTC()
	}

	// optimistic status flip, guarded so concurrent executors lose cleanly
	flip := tx.Model(&models.TransformationOrder{}).
		Where("business_id = ? AND id = ? AND status = ?", businessId, orderId, models.TransformationOrderStatusPreparing).
		Updates(map[string]interface{}{
			"status":       models.TransformationOrderStatusCompleted,
			"actual_qty":   actualQty,
			"executed_at":  executedAt,
			"completed_at": time.Now().UTC(),
		})
	if flip.Error != nil {
		config.LogError(logger, "transformationWorkflow.go", "executeTransformationOrder", "status flip", orderId, flip.Error)
		return nil, flip.Error
	}
	if flip.RowsAffected == 0 {
		return nil, &InvalidStateError{OrderId: orderId, Current: order.Status, Wanted: models.TransformationOrderStatusPreparing}
	}

	result := &ExecutionResult{
		InputTransactionIds:  []int{},
		OutputTransactionIds: []int{},
		WasteTransactionIds:  []int{},
	}

	// consume inputs, accumulating the allocator's view of each line
	allocationInputs := make([]AllocationInput, 0, len(order.Inputs))
	for i := range order.Inputs {
		line := &order.Inputs[i]
		consumed := line.PlannedQty
		if qty, ok := consumedByLine[line.ID]; ok {
			consumed = qty
		}
		item := items[line.ItemId]

		available, err := models.GetAvailableStock(tx, businessId, line.ItemId, order.WarehouseId)
		if err != nil {
			config.LogError(logger, "transformationWorkflow.go", "executeTransformationOrder > Consume", "GetAvailableStock", line.ItemId, err)
			return nil, err
		}
		if available.LessThan(consumed) {
			return nil, &InsufficientStockError{
				ItemId:    line.ItemId,
				Sku:       item.Sku,
				Name:      item.Name,
				Required:  consumed,
				Available: available,
			}
		}

		movement, err := models.ApplyStockOut(tx, businessId, line.ItemId, order.WarehouseId, defaultLocation.ID, consumed, item.StandardCost)
		if err != nil {
			config.LogError(logger, "transformationWorkflow.go", "executeTransformationOrder > Consume", "ApplyStockOut", line.ItemId, err)
			return nil, err
		}

		txn, err := models.CreateStockTransaction(tx, businessId,
			models.StockTransactionTypeOut, models.StockTransactionPurposeNormal,
			order.WarehouseId, defaultLocation.ID,
			transformationReferenceType, orderId,
			fmt.Sprintf("Consumed by %s", order.OrderNo), userId,
			[]models.NewStockTransactionItem{{ItemId: line.ItemId, Qty: consumed, Movement: *movement}})
		if err != nil {
			config.LogError(logger, "transformationWorkflow.go", "executeTransformationOrder > Consume", "CreateStockTransaction", line.ItemId, err)
			return nil, &TransactionCreationFailedError{Stage: "input consumption", Err: err}
		}

		err = tx.Model(line).Updates(map[string]interface{}{
			"consumed_qty":         consumed,
			"unit_cost":            item.StandardCost,
			"total_cost":           movement.TotalCost,
			"stock_transaction_id": txn.ID,
		}).Error
		if err != nil {
			config.LogError(logger, "transformationWorkflow.go", "executeTransformationOrder > Consume", "update input line", line.ID, err)
			return nil, err
		}

		result.InputTransactionIds = append(result.InputTransactionIds, txn.ID)
		allocationInputs = append(allocationInputs, AllocationInput{
			LineId:    line.ID,
			ItemId:    line.ItemId,
			Qty:       consumed,
			TotalCost: movement.TotalCost,
		})
	}

	// allocate cost across outputs; total input cost is now fully known
	allocationOutputs := make([]AllocationOutput, 0, len(order.Outputs))
	wasteReasons := make(map[int]string, len(order.Outputs))
	for i := range order.Outputs {
		line := &order.Outputs[i]
		produced := line.PlannedQty
		wasted := decimal.Zero
		if exec, ok := producedByLine[line.ID]; ok {
			produced = exec.ProducedQty
			wasted = exec.WastedQty
			wasteReasons[line.ID] = exec.WasteReason
		}
		allocationOutputs = append(allocationOutputs, AllocationOutput{
			LineId:      line.ID,
			ItemId:      line.ItemId,
			ProducedQty: produced,
			WastedQty:   wasted,
			IsScrap:     line.IsScrap != nil && *line.IsScrap,
		})
	}
	allocation := AllocateTransformationCosts(allocationInputs, allocationOutputs)

	// produce outputs
	for _, out := range allocation.Outputs {
		line := outputLines[out.LineId]

		movement, err := models.ApplyStockIn(tx, businessId, out.ItemId, order.WarehouseId, defaultLocation.ID, out.ProducedQty, out.AllocatedCost)
		if err != nil {
			config.LogError(logger, "transformationWorkflow.go", "executeTransformationOrder > Produce", "ApplyStockIn", out.ItemId, err)
			return nil, err
		}

		txn, err := models.CreateStockTransaction(tx, businessId,
			models.StockTransactionTypeIn, models.StockTransactionPurposeNormal,
			order.WarehouseId, defaultLocation.ID,
			transformationReferenceType, orderId,
			fmt.Sprintf("Produced by %s", order.OrderNo), userId,
			[]models.NewStockTransactionItem{{ItemId: out.ItemId, Qty: out.ProducedQty, Movement: *movement}})
		if err != nil {
			config.LogError(logger, "transformationWorkflow.go", "executeTransformationOrder > Produce", "CreateStockTransaction", out.ItemId, err)
			return nil, &TransactionCreationFailedError{Stage: "output production", Err: err}
		}

		err = tx.Model(line).Updates(map[string]interface{}{
			"produced_qty":         out.ProducedQty,
			"wasted_qty":           out.WastedQty,
			"waste_reason":         wasteReasons[out.LineId],
			"allocated_unit_cost":  out.UnitCost,
			"allocated_cost":       out.AllocatedCost,
			"stock_transaction_id": txn.ID,
		}).Error
		if err != nil {
			config.LogError(logger, "transformationWorkflow.go", "executeTransformationOrder > Produce", "update output line", out.LineId, err)
			return nil, err
		}
		result.OutputTransactionIds = append(result.OutputTransactionIds, txn.ID)
	}

	// waste postings are cost-only and best-effort; a failure here is logged
	// and the execution carries on
	for _, out := range allocation.Outputs {
		if !out.WastedQty.IsPositive() {
			continue
		}
		savepoint := fmt.Sprintf("waste_%d", out.LineId)
		tx.SavePoint(savepoint)

		description := fmt.Sprintf("Waste from %s", order.OrderNo)
		if reason := wasteReasons[out.LineId]; reason != "" {
			description = fmt.Sprintf("%s: %s", description, reason)
		}
		wasteTxn, err := models.CreateStockTransaction(tx, businessId,
			models.StockTransactionTypeOut, models.StockTransactionPurposeWaste,
			order.WarehouseId, wasteLocation.ID,
			transformationReferenceType, orderId,
			description, userId,
			[]models.NewStockTransactionItem{{
				ItemId: out.ItemId,
				Qty:    out.WastedQty,
				Movement: models.StockMovementResult{
					UnitCost:  allocation.CostPerUnit,
					TotalCost: out.WasteCost,
				},
			}})
		if err != nil {
			config.LogError(logger, "transformationWorkflow.go", "executeTransformationOrder > Waste", "CreateStockTransaction", out.LineId, err)
			tx.RollbackTo(savepoint)
			continue
		}
		if err := tx.Model(outputLines[out.LineId]).Update("waste_transaction_id", wasteTxn.ID).Error; err != nil {
			config.LogError(logger, "transformationWorkflow.go", "executeTransformationOrder > Waste", "update output line", out.LineId, err)
			tx.RollbackTo(savepoint)
			continue
		}
		result.WasteTransactionIds = append(result.WasteTransactionIds, wasteTxn.ID)
	}

	// lineage edges, after both sides of every pair exist
	edges := make([]models.TransformationLineage, 0, len(allocation.Edges))
	for _, edge := range allocation.Edges {
		edges = append(edges, models.TransformationLineage{
			BusinessId:     businessId,
			OrderId:        orderId,
			InputLineId:    edge.InputLineId,
			OutputLineId:   edge.OutputLineId,
			InputItemId:    edge.InputItemId,
			OutputItemId:   edge.OutputItemId,
			ConsumedQty:    edge.ConsumedQty,
			ProducedQty:    edge.ProducedQty,
			CostAttributed: edge.CostAttributed,
		})
	}
	if err := models.CreateTransformationLineages(tx, edges); err != nil {
		config.LogError(logger, "transformationWorkflow.go", "executeTransformationOrder > Lineage", "CreateTransformationLineages", orderId, err)
		return nil, err
	}

	// finalize order costs
	err = tx.Model(&models.TransformationOrder{}).
		Where("business_id = ? AND id = ?", businessId, orderId).
		Updates(map[string]interface{}{
			"total_input_cost":  allocation.TotalInputCost,
			"total_output_cost": allocation.TotalOutputCost,
			"cost_variance":     allocation.TotalWasteCost,
		}).Error
	if err != nil {
		config.LogError(logger, "transformationWorkflow.go", "executeTransformationOrder > Finalize", "update order costs", orderId, err)
		return nil, err
	}

	return result, nil
}

// loadOrderItems fetches every item the order touches and verifies each one
// is active and resolves a base unit. Fails before any mutation.
func loadOrderItems(tx *gorm.DB, businessId string, order *models.TransformationOrder) (map[int]*models.Item, error) {
	itemIds := make([]int, 0, len(order.Inputs)+len(order.Outputs))
	for _, line := range order.Inputs {
		itemIds = append(itemIds, line.ItemId)
	}
	for _, line := range order.Outputs {
		itemIds = append(itemIds, line.ItemId)
	}
	itemIds = utils.UniqueSlice(itemIds)

	var items []*models.Item
	err := tx.Where("business_id = ? AND id IN ?", businessId, itemIds).Find(&items).Error
	if err != nil {
		return nil, err
	}
	byId := make(map[int]*models.Item, len(items))
	for _, item := range items {
		if item.IsActive == nil || !*item.IsActive {
			return nil, &InactiveItemError{ItemId: item.ID, Sku: item.Sku}
		}
		if item.UnitId == 0 {
			return nil, ErrMissingUnitOfMeasure
		}
		byId[item.ID] = item
	}
	for _, id := range itemIds {
		if _, ok := byId[id]; !ok {
			return nil, ErrItemNotFound
		}
	}

	var baseCounts []struct {
		ItemId int
		Cnt    int
	}
	err = tx.Model(&models.ItemPackaging{}).
		Select("item_id as item_id, count(*) as cnt").
		Where("business_id = ? AND item_id IN ? AND is_base = ?", businessId, itemIds, true).
		Group("item_id").
		Scan(&baseCounts).Error
	if err != nil {
		return nil, err
	}
	withBase := make(map[int]bool, len(baseCounts))
	for _, row := range baseCounts {
		if row.Cnt > 0 {
			withBase[row.ItemId] = true
		}
	}
	for _, id := range itemIds {
		if !withBase[id] {
			return nil, ErrMissingUnitOfMeasure
		}
	}
	return byId, nil
}
