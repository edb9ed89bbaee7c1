package models

import (
	"fmt"
	"strconv"
)

type Precision string

const (
	PrecisionZero  Precision = "0"
	PrecisionOne   Precision = "1"
	PrecisionTwo   Precision = "2"
	PrecisionThree Precision = "3"
	PrecisionFour  Precision = "4"
)

func (p Precision) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(string(p))), nil
}

func (p *Precision) UnmarshalJSON(b []byte) error {
	str, err := strconv.Unquote(string(b))
	if err != nil {
		return err
	}
	switch Precision(str) {
	case PrecisionZero, PrecisionOne, PrecisionTwo, PrecisionThree, PrecisionFour:
		*p = Precision(str)
	case "":
		*p = PrecisionZero
	default:
		return fmt.Errorf("%s is not a valid Precision", str)
	}
	return nil
}

// TransformationOrderStatus is the lifecycle state of a transformation order.
//
// Draft -> Preparing -> Completed
// Cancelled is reachable from any non-terminal state.
type TransformationOrderStatus string

const (
	TransformationOrderStatusDraft     TransformationOrderStatus = "Draft"
	TransformationOrderStatusPreparing TransformationOrderStatus = "Preparing"
	TransformationOrderStatusCompleted TransformationOrderStatus = "Completed"
	TransformationOrderStatusCancelled TransformationOrderStatus = "Cancelled"
)

// transformationOrderTransitions is the closed transition table. Status checks
// go through CanTransition rather than ad-hoc string comparisons.
var transformationOrderTransitions = map[TransformationOrderStatus][]TransformationOrderStatus{
	TransformationOrderStatusDraft:     {TransformationOrderStatusPreparing, TransformationOrderStatusCancelled},
	TransformationOrderStatusPreparing: {TransformationOrderStatusCompleted, TransformationOrderStatusCancelled},
	TransformationOrderStatusCompleted: {},
	TransformationOrderStatusCancelled: {},
}

func (s TransformationOrderStatus) IsValid() bool {
	_, ok := transformationOrderTransitions[s]
	return ok
}

func (s TransformationOrderStatus) IsTerminal() bool {
	next, ok := transformationOrderTransitions[s]
	return ok && len(next) == 0
}

// CanTransition reports whether from -> to is an allowed lifecycle move.
func (s TransformationOrderStatus) CanTransition(to TransformationOrderStatus) bool {
	for _, allowed := range transformationOrderTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

func ParseTransformationOrderStatus(str string) (TransformationOrderStatus, error) {
	s := TransformationOrderStatus(str)
	if !s.IsValid() {
		return "", fmt.Errorf("%s is not a valid TransformationOrderStatus", str)
	}
	return s, nil
}

// StockTransactionType is the movement direction of a ledger entry.
type StockTransactionType string

const (
	StockTransactionTypeIn  StockTransactionType = "in"
	StockTransactionTypeOut StockTransactionType = "out"
)

// StockTransactionPurpose distinguishes real stock movements from
// cost-accounting-only postings (waste against the virtual waste location).
type StockTransactionPurpose string

const (
	StockTransactionPurposeNormal StockTransactionPurpose = "normal"
	StockTransactionPurposeWaste  StockTransactionPurpose = "waste"
)

type UserRole string

const (
	UserRoleOwner UserRole = "Owner"
	UserRoleStaff UserRole = "Staff"
)
