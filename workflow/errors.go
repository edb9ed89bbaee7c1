package workflow

import (
	"errors"
	"fmt"

	"bitbucket.org/mmdatafocus/factory_backend/models"
	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound        = errors.New("transformation order not found")
	ErrItemNotFound         = errors.New("item not found")
	ErrMissingUnitOfMeasure = errors.New("item has no resolvable base unit")
)

// InvalidStateError rejects an action attempted in the wrong lifecycle
// stage, carrying the current status for caller diagnostics.
type InvalidStateError struct {
	OrderId int
	Current models.TransformationOrderStatus
	Wanted  models.TransformationOrderStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("order %d is %s, expected %s", e.OrderId, e.Current, e.Wanted)
}

// InvalidLineReferenceError flags an execution payload line id that does not
// belong to the order.
type InvalidLineReferenceError struct {
	OrderId int
	LineId  int
	Kind    string
}

func (e *InvalidLineReferenceError) Error() string {
	return fmt.Sprintf("order %d has no %s line %d", e.OrderId, e.Kind, e.LineId)
}

// InactiveItemError rejects a deactivated item on any transacting path.
type InactiveItemError struct {
	ItemId int
	Sku    string
}

func (e *InactiveItemError) Error() string {
	return fmt.Sprintf("item %d (%s) is inactive and cannot be transacted", e.ItemId, e.Sku)
}

// InvalidPackageError flags a packaging that is missing, inactive, or owned
// by a different item.
type InvalidPackageError struct {
	ItemId      int
	PackagingId int
	Reason      string
}

func (e *InvalidPackageError) Error() string {
	return fmt.Sprintf("packaging %d is not usable for item %d: %s", e.PackagingId, e.ItemId, e.Reason)
}

// InvalidConversionFactorError flags a non-positive conversion factor.
type InvalidConversionFactorError struct {
	PackagingId int
	Factor      decimal.Decimal
}

func (e *InvalidConversionFactorError) Error() string {
	return fmt.Sprintf("packaging %d has invalid conversion factor %s", e.PackagingId, e.Factor)
}

// InvalidQuantityError flags a negative input quantity.
type InvalidQuantityError struct {
	Qty decimal.Decimal
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity %s is invalid: must be non-negative", e.Qty)
}

// InsufficientStockError reports a consumption that would drive a balance
// negative.
type InsufficientStockError struct {
	ItemId    int
	Sku       string
	Name      string
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %s (%s): required %s, available %s", e.Sku, e.Name, e.Required, e.Available)
}

// TransactionCreationFailedError wraps a persistence failure on a stock
// ledger insert.
type TransactionCreationFailedError struct {
	Stage string
	Err   error
}

func (e *TransactionCreationFailedError) Error() string {
	return fmt.Sprintf("stock transaction creation failed at %s: %v", e.Stage, e.Err)
}

func (e *TransactionCreationFailedError) Unwrap() error {
	return e.Err
}
