package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/models"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"bitbucket.org/mmdatafocus/factory_backend/workflow"
	"github.com/shopspring/decimal"
)

func TestExecuteTransformationOrderUpdatesStockAndCosts(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	// Wire env for config.Connect* helpers.
	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "factory_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	if db == nil {
		t.Fatalf("db is nil after ConnectDatabaseWithRetry")
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUsernameInContext(ctx, "test@local")

	biz, err := models.CreateBusiness(ctx, &models.NewBusiness{Name: "Test Factory"})
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	ctx = utils.SetBusinessIdInContext(ctx, biz.ID)

	var warehouse models.Warehouse
	if err := db.WithContext(ctx).Where("business_id = ? AND name = ?", biz.ID, "Main Warehouse").First(&warehouse).Error; err != nil {
		t.Fatalf("fetch main warehouse: %v", err)
	}

	unit, err := models.CreateProductUnit(ctx, &models.NewProductUnit{Name: "Pcs", Abbreviation: "pc", Precision: models.PrecisionZero})
	if err != nil {
		t.Fatalf("CreateProductUnit: %v", err)
	}

	// item X: the input, standard cost 2.00, 100 on hand
	itemX, err := models.CreateItem(ctx, &models.NewItem{
		Sku:          "X-001",
		Name:         "Raw Material X",
		UnitId:       unit.ID,
		StandardCost: decimal.RequireFromString("2.00"),
	})
	if err != nil {
		t.Fatalf("CreateItem X: %v", err)
	}
	itemY, err := models.CreateItem(ctx, &models.NewItem{
		Sku:    "Y-001",
		Name:   "Product Y",
		UnitId: unit.ID,
	})
	if err != nil {
		t.Fatalf("CreateItem Y: %v", err)
	}
	itemZ, err := models.CreateItem(ctx, &models.NewItem{
		Sku:    "Z-001",
		Name:   "Product Z",
		UnitId: unit.ID,
	})
	if err != nil {
		t.Fatalf("CreateItem Z: %v", err)
	}

	// a BOX12 packaging for X to exercise the normalizer path
	boxPackaging, err := models.CreateItemPackaging(ctx, &models.NewItemPackaging{
		ItemId:           itemX.ID,
		Name:             "BOX12",
		ConversionFactor: decimal.RequireFromString("12"),
	})
	if err != nil {
		t.Fatalf("CreateItemPackaging: %v", err)
	}
	normalized, err := workflow.NormalizeQuantity(ctx, itemX.ID, boxPackaging.ID, decimal.RequireFromString("3"))
	if err != nil {
		t.Fatalf("NormalizeQuantity: %v", err)
	}
	if !normalized.NormalizedQty.Equal(decimal.RequireFromString("36")) {
		t.Fatalf("normalized qty = %s, want 36", normalized.NormalizedQty)
	}

	// seed 100 units of X at standard cost
	seedStock(t, ctx, biz.ID, itemX.ID, warehouse.ID, "100", "200.00")

	template, err := models.CreateTransformationTemplate(ctx, &models.NewTransformationTemplate{
		Name: "Split X into Y and Z",
		Inputs: []models.NewTransformationTemplateLine{
			{ItemId: itemX.ID, Qty: decimal.RequireFromString("36")},
		},
		Outputs: []models.NewTransformationTemplateLine{
			{ItemId: itemY.ID, Qty: decimal.RequireFromString("30")},
			{ItemId: itemZ.ID, Qty: decimal.RequireFromString("10")},
		},
	})
	if err != nil {
		t.Fatalf("CreateTransformationTemplate: %v", err)
	}

	order, err := models.CreateTransformationOrder(ctx, &models.NewTransformationOrder{
		TemplateId:  template.ID,
		WarehouseId: warehouse.ID,
		PlannedQty:  decimal.RequireFromString("1"),
	})
	if err != nil {
		t.Fatalf("CreateTransformationOrder: %v", err)
	}
	if order.Status != models.TransformationOrderStatusDraft {
		t.Fatalf("new order status = %s, want Draft", order.Status)
	}

	// template is now locked
	lock, err := workflow.CheckTemplateLock(ctx, template.ID)
	if err != nil {
		t.Fatalf("CheckTemplateLock: %v", err)
	}
	if !lock.Locked || lock.UsageCount != 1 {
		t.Fatalf("template lock = %+v, want locked with usage 1", lock)
	}

	// executing a Draft order must be rejected with the current state attached
	if _, err := workflow.ExecuteTransformationOrder(ctx, order.ID, 1, nil); err == nil {
		t.Fatal("expected InvalidState executing a Draft order")
	}

	order, err = models.ChangeTransformationOrderStatus(ctx, order.ID, models.TransformationOrderStatusPreparing)
	if err != nil {
		t.Fatalf("ChangeTransformationOrderStatus: %v", err)
	}

	availability, err := workflow.ValidateStockAvailability(ctx, order.ID)
	if err != nil {
		t.Fatalf("ValidateStockAvailability: %v", err)
	}
	if !availability.Sufficient {
		t.Fatalf("availability = %+v, want sufficient", availability)
	}

	// a negative wasted quantity is rejected carrying the offending value
	_, err = workflow.ExecuteTransformationOrder(ctx, order.ID, 1, &workflow.ExecutionData{
		Outputs: []workflow.ExecutionOutputLine{
			{LineId: order.Outputs[0].ID, ProducedQty: order.Outputs[0].PlannedQty, WastedQty: decimal.RequireFromString("-2")},
		},
	})
	var badQty *workflow.InvalidQuantityError
	if !errors.As(err, &badQty) {
		t.Fatalf("negative wasted qty: error = %v, want InvalidQuantityError", err)
	}
	if !badQty.Qty.Equal(decimal.RequireFromString("-2")) {
		t.Errorf("error qty = %s, want -2", badQty.Qty)
	}

	result, err := workflow.ExecuteTransformationOrder(ctx, order.ID, 1, nil)
	if err != nil {
		t.Fatalf("ExecuteTransformationOrder: %v", err)
	}
	if len(result.InputTransactionIds) != 1 || len(result.OutputTransactionIds) != 2 || len(result.WasteTransactionIds) != 0 {
		t.Fatalf("transaction ids = %d/%d/%d, want 1/2/0",
			len(result.InputTransactionIds), len(result.OutputTransactionIds), len(result.WasteTransactionIds))
	}

	executed := result.Order
	if executed.Status != models.TransformationOrderStatusCompleted {
		t.Errorf("status = %s, want Completed", executed.Status)
	}
	if !executed.TotalInputCost.Equal(decimal.RequireFromString("72")) {
		t.Errorf("total input cost = %s, want 72", executed.TotalInputCost)
	}
	if !executed.TotalOutputCost.Equal(decimal.RequireFromString("72")) {
		t.Errorf("total output cost = %s, want 72", executed.TotalOutputCost)
	}
	if !executed.CostVariance.IsZero() {
		t.Errorf("cost variance = %s, want 0", executed.CostVariance)
	}
	for _, line := range executed.Outputs {
		switch line.ItemId {
		case itemY.ID:
			if !line.AllocatedCost.Equal(decimal.RequireFromString("54")) {
				t.Errorf("Y allocated cost = %s, want 54", line.AllocatedCost)
			}
		case itemZ.ID:
			if !line.AllocatedCost.Equal(decimal.RequireFromString("18")) {
				t.Errorf("Z allocated cost = %s, want 18", line.AllocatedCost)
			}
		}
	}

	// stock: X drops to 64, Y and Z receive their produced quantities
	assertStock(t, ctx, biz.ID, itemX.ID, warehouse.ID, "64")
	assertStock(t, ctx, biz.ID, itemY.ID, warehouse.ID, "30")
	assertStock(t, ctx, biz.ID, itemZ.ID, warehouse.ID, "10")

	// lineage: 2 edges (1 input x 2 outputs) summing to the allocated costs
	edges, err := models.GetTransformationLineage(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetTransformationLineage: %v", err)
	}
	if len(edges) != 2 {
		t.Fatalf("lineage edges = %d, want 2", len(edges))
	}
	lineageTotal := decimal.Zero
	for _, edge := range edges {
		lineageTotal = lineageTotal.Add(edge.CostAttributed)
	}
	if !lineageTotal.Equal(decimal.RequireFromString("72")) {
		t.Errorf("lineage total = %s, want 72", lineageTotal)
	}

	// a second execute must fail InvalidState, leaving stock untouched
	if _, err := workflow.ExecuteTransformationOrder(ctx, order.ID, 1, nil); err == nil {
		t.Fatal("expected InvalidState on double execution")
	}
	assertStock(t, ctx, biz.ID, itemX.ID, warehouse.ID, "64")
}

func TestExecuteTransformationOrderInsufficientStockLeavesPreparing(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "factory_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ctx = utils.SetUserIdInContext(ctx, 1)
	biz, err := models.CreateBusiness(ctx, &models.NewBusiness{Name: "Short Factory"})
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	ctx = utils.SetBusinessIdInContext(ctx, biz.ID)

	var warehouse models.Warehouse
	if err := db.WithContext(ctx).Where("business_id = ? AND name = ?", biz.ID, "Main Warehouse").First(&warehouse).Error; err != nil {
		t.Fatalf("fetch main warehouse: %v", err)
	}

	unit, err := models.CreateProductUnit(ctx, &models.NewProductUnit{Name: "Kg", Abbreviation: "kg", Precision: models.PrecisionTwo})
	if err != nil {
		t.Fatalf("CreateProductUnit: %v", err)
	}
	input, err := models.CreateItem(ctx, &models.NewItem{
		Sku: "IN-1", Name: "Scarce Input", UnitId: unit.ID,
		StandardCost: decimal.RequireFromString("5"),
	})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	output, err := models.CreateItem(ctx, &models.NewItem{Sku: "OUT-1", Name: "Output", UnitId: unit.ID})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	// only 5 on hand, order needs 10
	seedStock(t, ctx, biz.ID, input.ID, warehouse.ID, "5", "25")

	template, err := models.CreateTransformationTemplate(ctx, &models.NewTransformationTemplate{
		Name: "Short Recipe",
		Inputs: []models.NewTransformationTemplateLine{
			{ItemId: input.ID, Qty: decimal.RequireFromString("10")},
		},
		Outputs: []models.NewTransformationTemplateLine{
			{ItemId: output.ID, Qty: decimal.RequireFromString("8")},
		},
	})
	if err != nil {
		t.Fatalf("CreateTransformationTemplate: %v", err)
	}
	order, err := models.CreateTransformationOrder(ctx, &models.NewTransformationOrder{
		TemplateId:  template.ID,
		WarehouseId: warehouse.ID,
		PlannedQty:  decimal.RequireFromString("1"),
	})
	if err != nil {
		t.Fatalf("CreateTransformationOrder: %v", err)
	}
	if _, err := models.ChangeTransformationOrderStatus(ctx, order.ID, models.TransformationOrderStatusPreparing); err != nil {
		t.Fatalf("ChangeTransformationOrderStatus: %v", err)
	}

	// a deactivated item blocks both normalization and execution
	if _, err := models.ToggleActiveItem(ctx, input.ID, false); err != nil {
		t.Fatalf("ToggleActiveItem: %v", err)
	}
	var inactive *workflow.InactiveItemError
	if _, err := workflow.NormalizeQuantity(ctx, input.ID, 0, decimal.RequireFromString("1")); !errors.As(err, &inactive) {
		t.Fatalf("normalize inactive item: error = %v, want InactiveItemError", err)
	}
	if _, err := workflow.ExecuteTransformationOrder(ctx, order.ID, 1, nil); !errors.As(err, &inactive) {
		t.Fatalf("execute with inactive item: error = %v, want InactiveItemError", err)
	}
	blocked, err := models.GetTransformationOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetTransformationOrder: %v", err)
	}
	if blocked.Status != models.TransformationOrderStatusPreparing {
		t.Errorf("status after inactive-item rejection = %s, want Preparing", blocked.Status)
	}
	if _, err := models.ToggleActiveItem(ctx, input.ID, true); err != nil {
		t.Fatalf("ToggleActiveItem: %v", err)
	}

	// pre-flight reports the full shortfall list
	availability, err := workflow.ValidateStockAvailability(ctx, order.ID)
	if err != nil {
		t.Fatalf("ValidateStockAvailability: %v", err)
	}
	if availability.Sufficient || len(availability.Shortfalls) != 1 {
		t.Fatalf("availability = %+v, want one shortfall", availability)
	}
	if !availability.Shortfalls[0].Available.Equal(decimal.RequireFromString("5")) {
		t.Errorf("shortfall available = %s, want 5", availability.Shortfalls[0].Available)
	}

	_, err = workflow.ExecuteTransformationOrder(ctx, order.ID, 1, nil)
	if err == nil {
		t.Fatal("expected InsufficientStock")
	}
	var insufficient *workflow.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("error = %v, want InsufficientStockError", err)
	}
	if !insufficient.Required.Equal(decimal.RequireFromString("10")) || !insufficient.Available.Equal(decimal.RequireFromString("5")) {
		t.Errorf("insufficient payload = %+v", insufficient)
	}

	// nothing committed: order stays Preparing, stock untouched, no ledger rows
	reloaded, err := models.GetTransformationOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetTransformationOrder: %v", err)
	}
	if reloaded.Status != models.TransformationOrderStatusPreparing {
		t.Errorf("status = %s, want Preparing", reloaded.Status)
	}
	assertStock(t, ctx, biz.ID, input.ID, warehouse.ID, "5")
	txns, err := models.GetStockTransactionsByReference(ctx, "TransformationOrder", order.ID)
	if err != nil {
		t.Fatalf("GetStockTransactionsByReference: %v", err)
	}
	if len(txns) != 0 {
		t.Errorf("ledger rows = %d, want 0", len(txns))
	}
}

func seedStock(t *testing.T, ctx context.Context, businessId string, itemId int, warehouseId int, qty string, value string) {
	t.Helper()
	db := config.GetDB()
	balance := models.StockBalance{
		BusinessId:  businessId,
		ItemId:      itemId,
		WarehouseId: warehouseId,
		Qty:         decimal.RequireFromString(qty),
		TotalValue:  decimal.RequireFromString(value),
	}
	if err := db.WithContext(ctx).Create(&balance).Error; err != nil {
		t.Fatalf("seed stock: %v", err)
	}
}

func assertStock(t *testing.T, ctx context.Context, businessId string, itemId int, warehouseId int, want string) {
	t.Helper()
	db := config.GetDB()
	qty, err := models.GetAvailableStock(db.WithContext(ctx), businessId, itemId, warehouseId)
	if err != nil {
		t.Fatalf("GetAvailableStock: %v", err)
	}
	if !qty.Equal(decimal.RequireFromString(want)) {
		t.Errorf("stock for item %d = %s, want %s", itemId, qty, want)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("factory-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("factory-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=factory_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
