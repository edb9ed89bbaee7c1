package workflow

import (
	"github.com/shopspring/decimal"
)

// AllocationInput is one consumed input line as seen by the allocator.
type AllocationInput struct {
	LineId    int
	ItemId    int
	Qty       decimal.Decimal
	TotalCost decimal.Decimal
}

// AllocationOutput is one output line before allocation.
type AllocationOutput struct {
	LineId      int
	ItemId      int
	ProducedQty decimal.Decimal
	WastedQty   decimal.Decimal
	IsScrap     bool
}

// AllocatedOutput carries the per-line allocation result.
type AllocatedOutput struct {
	AllocationOutput
	UnitCost      decimal.Decimal
	AllocatedCost decimal.Decimal
	WasteCost     decimal.Decimal
}

// LineageEdge is one (input, output) cost attribution.
type LineageEdge struct {
	InputLineId    int
	OutputLineId   int
	InputItemId    int
	OutputItemId   int
	ConsumedQty    decimal.Decimal
	ProducedQty    decimal.Decimal
	CostAttributed decimal.Decimal
}

// AllocationResult is the full outcome of one cost allocation.
type AllocationResult struct {
	TotalInputCost  decimal.Decimal
	TotalOutputCost decimal.Decimal
	TotalWasteCost  decimal.Decimal
	CostPerUnit     decimal.Decimal
	Outputs         []AllocatedOutput
	Edges           []LineageEdge
}

// AllocateTransformationCosts spreads the total input cost across output
// lines proportionally to produced base quantity. Scrap lines always
// allocate zero regardless of quantity; wasted quantity on any line draws
// cost at the per-unit rate but yields no stock, so it lands in
// TotalWasteCost.
// Lineage edges attribute each output's cost back to every input in
// proportion to that input's share of the total input cost.
func AllocateTransformationCosts(inputs []AllocationInput, outputs []AllocationOutput) AllocationResult {
	result := AllocationResult{
		TotalInputCost:  decimal.Zero,
		TotalOutputCost: decimal.Zero,
		TotalWasteCost:  decimal.Zero,
		CostPerUnit:     decimal.Zero,
	}
	for _, in := range inputs {
		result.TotalInputCost = result.TotalInputCost.Add(in.TotalCost)
	}

	totalOutputBaseQty := decimal.Zero
	for _, out := range outputs {
		totalOutputBaseQty = totalOutputBaseQty.Add(out.ProducedQty).Add(out.WastedQty)
	}
	if totalOutputBaseQty.IsPositive() {
		result.CostPerUnit = result.TotalInputCost.Div(totalOutputBaseQty)
	}

	result.Outputs = make([]AllocatedOutput, 0, len(outputs))
	for _, out := range outputs {
		allocated := AllocatedOutput{
			AllocationOutput: out,
			UnitCost:         result.CostPerUnit,
			AllocatedCost:    decimal.Zero,
			WasteCost:        result.CostPerUnit.Mul(out.WastedQty),
		}
		if out.IsScrap {
			allocated.UnitCost = decimal.Zero
		} else {
			allocated.AllocatedCost = result.CostPerUnit.Mul(out.ProducedQty)
		}
		result.TotalOutputCost = result.TotalOutputCost.Add(allocated.AllocatedCost)
		result.TotalWasteCost = result.TotalWasteCost.Add(allocated.WasteCost)
		result.Outputs = append(result.Outputs, allocated)
	}

	// N x M edges; each input's attribution share is its fraction of the
	// total input cost, independent of physical item flow
	result.Edges = make([]LineageEdge, 0, len(inputs)*len(outputs))
	for _, in := range inputs {
		share := decimal.Zero
		if result.TotalInputCost.IsPositive() {
			share = in.TotalCost.Div(result.TotalInputCost)
		}
		for _, out := range result.Outputs {
			result.Edges = append(result.Edges, LineageEdge{
				InputLineId:    in.LineId,
				OutputLineId:   out.LineId,
				InputItemId:    in.ItemId,
				OutputItemId:   out.ItemId,
				ConsumedQty:    in.Qty,
				ProducedQty:    out.ProducedQty,
				CostAttributed: out.AllocatedCost.Mul(share),
			})
		}
	}
	return result
}
