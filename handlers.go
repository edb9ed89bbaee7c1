package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"bitbucket.org/mmdatafocus/factory_backend/middlewares"
	"bitbucket.org/mmdatafocus/factory_backend/models"
	"bitbucket.org/mmdatafocus/factory_backend/models/reports"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"bitbucket.org/mmdatafocus/factory_backend/workflow"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func registerRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/signin", signinHandler)
		auth.POST("/signout", signoutHandler)
	}

	api := r.Group("/api/v1")
	api.Use(middlewares.RequireAuth())
	{
		api.POST("/product-units", createProductUnitHandler)
		api.GET("/product-units", paginateProductUnitsHandler)
		api.GET("/product-units/:id", getProductUnitHandler)
		api.PUT("/product-units/:id", updateProductUnitHandler)
		api.DELETE("/product-units/:id", deleteProductUnitHandler)
		api.POST("/product-units/:id/toggle-active", toggleProductUnitHandler)

		api.POST("/items", createItemHandler)
		api.GET("/items", paginateItemsHandler)
		api.GET("/items/:id", getItemHandler)
		api.PUT("/items/:id", updateItemHandler)
		api.DELETE("/items/:id", deleteItemHandler)
		api.POST("/items/:id/toggle-active", toggleItemHandler)
		api.GET("/items/:id/packagings", getItemPackagingsHandler)

		api.POST("/packagings", createItemPackagingHandler)
		api.GET("/packagings/:id", getItemPackagingHandler)
		api.PUT("/packagings/:id", updateItemPackagingHandler)
		api.DELETE("/packagings/:id", deleteItemPackagingHandler)

		api.POST("/warehouses", createWarehouseHandler)
		api.GET("/warehouses", paginateWarehousesHandler)
		api.GET("/warehouses/:id", getWarehouseHandler)
		api.PUT("/warehouses/:id", updateWarehouseHandler)
		api.DELETE("/warehouses/:id", deleteWarehouseHandler)

		api.POST("/storage-locations", createStorageLocationHandler)
		api.DELETE("/storage-locations/:id", deleteStorageLocationHandler)

		api.POST("/templates", createTemplateHandler)
		api.GET("/templates", paginateTemplatesHandler)
		api.GET("/templates/:id", getTemplateHandler)
		api.PUT("/templates/:id", updateTemplateHandler)
		api.PUT("/templates/:id/name", renameTemplateHandler)
		api.DELETE("/templates/:id", deleteTemplateHandler)
		api.GET("/templates/:id/validate", validateTemplateHandler)
		api.GET("/templates/:id/lock", templateLockHandler)

		api.POST("/orders", createOrderHandler)
		api.GET("/orders", paginateOrdersHandler)
		api.GET("/orders/:id", getOrderHandler)
		api.PUT("/orders/:id", updateOrderHandler)
		api.DELETE("/orders/:id", deleteOrderHandler)
		api.POST("/orders/:id/status", changeOrderStatusHandler)
		api.POST("/orders/:id/execute", executeOrderHandler)
		api.GET("/orders/:id/stock-availability", stockAvailabilityHandler)
		api.GET("/orders/:id/transition-check", transitionCheckHandler)
		api.GET("/orders/:id/transactions", orderTransactionsHandler)
		api.GET("/orders/:id/lineage", orderLineageHandler)

		api.POST("/normalize", normalizeHandler)
		api.POST("/normalize/batch", normalizeBatchHandler)
		api.POST("/denormalize", denormalizeHandler)

		api.GET("/stock-transactions", paginateStockTransactionsHandler)

		api.GET("/reports/transformation-cost", transformationCostReportHandler)
		api.GET("/reports/transformation-cost/export", transformationCostExportHandler)
		api.GET("/reports/stock-summary", stockSummaryReportHandler)
	}
}

// respondError maps domain errors onto HTTP statuses so clients can branch
// without parsing messages.
func respondError(c *gin.Context, err error) {
	var stateErr *workflow.InvalidStateError
	var inactiveErr *workflow.InactiveItemError
	var lineErr *workflow.InvalidLineReferenceError
	var pkgErr *workflow.InvalidPackageError
	var factorErr *workflow.InvalidConversionFactorError
	var qtyErr *workflow.InvalidQuantityError
	var stockErr *workflow.InsufficientStockError
	var validationErrs validator.ValidationErrors

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound),
		errors.Is(err, workflow.ErrOrderNotFound),
		errors.Is(err, workflow.ErrItemNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":     stockErr.Error(),
			"itemId":    stockErr.ItemId,
			"sku":       stockErr.Sku,
			"required":  stockErr.Required,
			"available": stockErr.Available,
		})
	case errors.As(err, &stateErr),
		errors.As(err, &inactiveErr),
		errors.As(err, &lineErr),
		errors.As(err, &pkgErr),
		errors.As(err, &factorErr),
		errors.As(err, &qtyErr),
		errors.Is(err, workflow.ErrMissingUnitOfMeasure):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.As(err, &validationErrs):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		// Model validations surface as plain errors; treat them as client
		// faults rather than masking everything behind 500.
		msg := err.Error()
		if strings.Contains(msg, "record not found") {
			c.JSON(http.StatusNotFound, gin.H{"error": msg})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
	}
}

func paramId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func queryLimit(c *gin.Context) int {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	return limit
}

func queryAfter(c *gin.Context) *string {
	after := c.Query("after")
	if after == "" {
		return nil
	}
	return &after
}

func queryWarehouseId(c *gin.Context) *int {
	raw := c.Query("warehouseId")
	if raw == "" {
		return nil
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return nil
	}
	return &id
}

// ---- auth ----

func signinHandler(c *gin.Context) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	token, user, err := models.Signin(c.Request.Context(), body.Username, body.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
			"name":     user.Name,
			"role":     user.Role,
		},
	})
}

func signoutHandler(c *gin.Context) {
	if err := models.Signout(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ---- product units ----

func createProductUnitHandler(c *gin.Context) {
	var input models.NewProductUnit
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	unit, err := models.CreateProductUnit(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, unit)
}

func paginateProductUnitsHandler(c *gin.Context) {
	activeOnly := c.Query("activeOnly") == "true"
	page, err := models.PaginateProductUnits(c.Request.Context(), queryLimit(c), queryAfter(c), activeOnly)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func getProductUnitHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	unit, err := models.GetProductUnit(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, unit)
}

func updateProductUnitHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	var input models.NewProductUnit
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	unit, err := models.UpdateProductUnit(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, unit)
}

func deleteProductUnitHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	unit, err := models.DeleteProductUnit(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, unit)
}

func toggleProductUnitHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	var body struct {
		IsActive bool `json:"isActive"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	unit, err := models.ToggleActiveProductUnit(c.Request.Context(), id, body.IsActive)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, unit)
}

// ---- items ----

func createItemHandler(c *gin.Context) {
	var input models.NewItem
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	item, err := models.CreateItem(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func paginateItemsHandler(c *gin.Context) {
	activeOnly := c.Query("activeOnly") == "true"
	var search *string
	if s := c.Query("search"); s != "" {
		search = &s
	}
	page, err := models.PaginateItems(c.Request.Context(), queryLimit(c), queryAfter(c), activeOnly, search)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func getItemHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	item, err := models.GetItem(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func updateItemHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	var input models.NewItem
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	item, err := models.UpdateItem(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func deleteItemHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	item, err := models.DeleteItem(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func toggleItemHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	var body struct {
		IsActive bool `json:"isActive"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	item, err := models.ToggleActiveItem(c.Request.Context(), id, body.IsActive)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func getItemPackagingsHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	packagings, err := models.GetItemPackagings(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, packagings)
}

// ---- packagings ----

func createItemPackagingHandler(c *gin.Context) {
	var input models.NewItemPackaging
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	packaging, err := models.CreateItemPackaging(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, packaging)
}

func getItemPackagingHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	packaging, err := models.GetItemPackaging(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, packaging)
}

func updateItemPackagingHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	var input models.NewItemPackaging
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	packaging, err := models.UpdateItemPackaging(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, packaging)
}

func deleteItemPackagingHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	packaging, err := models.DeleteItemPackaging(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, packaging)
}

// ---- warehouses ----

func createWarehouseHandler(c *gin.Context) {
	var input models.NewWarehouse
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	warehouse, err := models.CreateWarehouse(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, warehouse)
}

func paginateWarehousesHandler(c *gin.Context) {
	page, err := models.PaginateWarehouses(c.Request.Context(), queryLimit(c), queryAfter(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func getWarehouseHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	warehouse, err := models.GetWarehouse(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, warehouse)
}

func updateWarehouseHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	var input models.NewWarehouse
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	warehouse, err := models.UpdateWarehouse(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, warehouse)
}

func deleteWarehouseHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	warehouse, err := models.DeleteWarehouse(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, warehouse)
}

// ---- storage locations ----

func createStorageLocationHandler(c *gin.Context) {
	var input models.NewStorageLocation
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	location, err := models.CreateStorageLocation(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, location)
}

func deleteStorageLocationHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	location, err := models.DeleteStorageLocation(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, location)
}

// ---- templates ----

func createTemplateHandler(c *gin.Context) {
	var input models.NewTransformationTemplate
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	template, err := models.CreateTransformationTemplate(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, template)
}

func paginateTemplatesHandler(c *gin.Context) {
	activeOnly := c.Query("activeOnly") == "true"
	page, err := models.PaginateTransformationTemplates(c.Request.Context(), queryLimit(c), queryAfter(c), activeOnly)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func getTemplateHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	template, err := models.GetTransformationTemplate(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, template)
}

func updateTemplateHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	var input models.NewTransformationTemplate
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	template, err := models.UpdateTransformationTemplate(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, template)
}

func renameTemplateHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	var body struct {
		Name     string `json:"name"`
		IsActive *bool  `json:"isActive"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	template, err := models.RenameTransformationTemplate(c.Request.Context(), id, body.Name, body.IsActive)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, template)
}

func deleteTemplateHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	template, err := models.DeleteTransformationTemplate(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, template)
}

func validateTemplateHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	result, err := workflow.ValidateTemplate(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func templateLockHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	result, err := workflow.CheckTemplateLock(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ---- orders ----

func createOrderHandler(c *gin.Context) {
	var input models.NewTransformationOrder
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	order, err := models.CreateTransformationOrder(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func paginateOrdersHandler(c *gin.Context) {
	var status *models.TransformationOrderStatus
	if raw := c.Query("status"); raw != "" {
		parsed, err := models.ParseTransformationOrderStatus(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		status = &parsed
	}
	warehouseId := 0
	if wid := queryWarehouseId(c); wid != nil {
		warehouseId = *wid
	}
	page, err := models.PaginateTransformationOrders(c.Request.Context(), queryLimit(c), queryAfter(c), status, warehouseId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func getOrderHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	order, err := models.GetTransformationOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func updateOrderHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	var body struct {
		PlannedQty decimal.Decimal `json:"plannedQty"`
		Notes      string          `json:"notes"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	order, err := models.UpdateTransformationOrder(c.Request.Context(), id, body.PlannedQty, body.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func deleteOrderHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	order, err := models.DeleteTransformationOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func changeOrderStatusHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	toStatus, err := models.ParseTransformationOrderStatus(body.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	order, err := models.ChangeTransformationOrderStatus(c.Request.Context(), id, toStatus)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func executeOrderHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	var data workflow.ExecutionData
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userId, _ := utils.GetUserIdFromContext(c.Request.Context())
	result, err := workflow.ExecuteTransformationOrder(c.Request.Context(), id, userId, &data)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func stockAvailabilityHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	result, err := workflow.ValidateStockAvailability(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func transitionCheckHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	toStatus, err := models.ParseTransformationOrderStatus(c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := workflow.ValidateStateTransition(c.Request.Context(), id, toStatus)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func orderTransactionsHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	transactions, err := models.GetStockTransactionsByReference(c.Request.Context(), "TransformationOrder", id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, transactions)
}

func orderLineageHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	lineage, err := models.GetTransformationLineage(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lineage)
}

// ---- normalization ----

func normalizeHandler(c *gin.Context) {
	var body struct {
		ItemId      int             `json:"itemId"`
		PackagingId int             `json:"packagingId"`
		Qty         decimal.Decimal `json:"qty"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := workflow.NormalizeQuantity(c.Request.Context(), body.ItemId, body.PackagingId, body.Qty)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func normalizeBatchHandler(c *gin.Context) {
	var body struct {
		Lines []workflow.NormalizeBatchLine `json:"lines"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	results, err := workflow.NormalizeBatch(c.Request.Context(), body.Lines)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lines": results})
}

func denormalizeHandler(c *gin.Context) {
	var body struct {
		BaseQty          decimal.Decimal `json:"baseQty"`
		ConversionFactor decimal.Decimal `json:"conversionFactor"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := workflow.DenormalizeQuantity(body.BaseQty, body.ConversionFactor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ---- stock transactions ----

func paginateStockTransactionsHandler(c *gin.Context) {
	warehouseId := 0
	if wid := queryWarehouseId(c); wid != nil {
		warehouseId = *wid
	}
	page, err := models.PaginateStockTransactions(c.Request.Context(), warehouseId, queryLimit(c), queryAfter(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// ---- reports ----

func transformationCostReportHandler(c *gin.Context) {
	rows, err := reports.GetTransformationCostReport(c.Request.Context(), queryWarehouseId(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func transformationCostExportHandler(c *gin.Context) {
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", `attachment; filename="transformation-cost-report.xlsx"`)
	if err := reports.ExportTransformationCostReport(c.Request.Context(), c.Writer, queryWarehouseId(c)); err != nil {
		c.Status(http.StatusInternalServerError)
	}
}

func stockSummaryReportHandler(c *gin.Context) {
	rows, err := reports.GetStockSummaryReport(c.Request.Context(), queryWarehouseId(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}
