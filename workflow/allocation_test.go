package workflow

import (
	"testing"

	"github.com/shopspring/decimal"
)

// NOTE: These tests are intentionally DB-free. They validate the allocation
// math the execution engine relies on: proportional spread, scrap exclusion,
// waste costing, and lineage attribution sums.

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestAllocate_ProportionalSpread(t *testing.T) {
	// one input of 36 units at 2.00, outputs 30 + 10
	inputs := []AllocationInput{
		{LineId: 1, ItemId: 10, Qty: dec("36"), TotalCost: dec("72.00")},
	}
	outputs := []AllocationOutput{
		{LineId: 11, ItemId: 20, ProducedQty: dec("30")},
		{LineId: 12, ItemId: 21, ProducedQty: dec("10")},
	}

	result := AllocateTransformationCosts(inputs, outputs)

	if !result.TotalInputCost.Equal(dec("72.00")) {
		t.Fatalf("total input cost = %s, want 72.00", result.TotalInputCost)
	}
	if !result.CostPerUnit.Equal(dec("1.80")) {
		t.Fatalf("cost per unit = %s, want 1.80", result.CostPerUnit)
	}
	if !result.Outputs[0].AllocatedCost.Equal(dec("54.00")) {
		t.Errorf("first output allocated = %s, want 54.00", result.Outputs[0].AllocatedCost)
	}
	if !result.Outputs[1].AllocatedCost.Equal(dec("18.00")) {
		t.Errorf("second output allocated = %s, want 18.00", result.Outputs[1].AllocatedCost)
	}
	if !result.TotalOutputCost.Equal(dec("72.00")) {
		t.Errorf("total output cost = %s, want 72.00", result.TotalOutputCost)
	}
	if !result.TotalWasteCost.IsZero() {
		t.Errorf("waste cost = %s, want 0", result.TotalWasteCost)
	}
}

func TestAllocate_ScrapCarriesNoCost(t *testing.T) {
	inputs := []AllocationInput{
		{LineId: 1, ItemId: 10, Qty: dec("100"), TotalCost: dec("100")},
	}
	outputs := []AllocationOutput{
		{LineId: 11, ItemId: 20, ProducedQty: dec("80")},
		{LineId: 12, ItemId: 21, ProducedQty: dec("20"), IsScrap: true},
	}

	result := AllocateTransformationCosts(inputs, outputs)

	if !result.Outputs[1].AllocatedCost.IsZero() {
		t.Errorf("scrap allocated cost = %s, want 0", result.Outputs[1].AllocatedCost)
	}
	if !result.Outputs[1].UnitCost.IsZero() {
		t.Errorf("scrap unit cost = %s, want 0", result.Outputs[1].UnitCost)
	}
	// non-scrap line still allocates at the shared per-unit rate
	if !result.Outputs[0].AllocatedCost.Equal(dec("80")) {
		t.Errorf("non-scrap allocated cost = %s, want 80", result.Outputs[0].AllocatedCost)
	}
}

func TestAllocate_WasteDrawsCostWithoutStock(t *testing.T) {
	inputs := []AllocationInput{
		{LineId: 1, ItemId: 10, Qty: dec("50"), TotalCost: dec("100")},
	}
	outputs := []AllocationOutput{
		{LineId: 11, ItemId: 20, ProducedQty: dec("40"), WastedQty: dec("10")},
	}

	result := AllocateTransformationCosts(inputs, outputs)

	// denominator includes the wasted quantity
	if !result.CostPerUnit.Equal(dec("2")) {
		t.Fatalf("cost per unit = %s, want 2", result.CostPerUnit)
	}
	if !result.Outputs[0].AllocatedCost.Equal(dec("80")) {
		t.Errorf("allocated cost = %s, want 80", result.Outputs[0].AllocatedCost)
	}
	if !result.Outputs[0].WasteCost.Equal(dec("20")) {
		t.Errorf("waste cost = %s, want 20", result.Outputs[0].WasteCost)
	}
	// cost conservation: output + waste == input
	total := result.TotalOutputCost.Add(result.TotalWasteCost)
	if !total.Equal(result.TotalInputCost) {
		t.Errorf("output %s + waste %s != input %s", result.TotalOutputCost, result.TotalWasteCost, result.TotalInputCost)
	}
}

func TestAllocate_ZeroOutputQuantity(t *testing.T) {
	inputs := []AllocationInput{
		{LineId: 1, ItemId: 10, Qty: dec("5"), TotalCost: dec("10")},
	}
	outputs := []AllocationOutput{
		{LineId: 11, ItemId: 20},
	}

	result := AllocateTransformationCosts(inputs, outputs)

	if !result.CostPerUnit.IsZero() {
		t.Errorf("cost per unit = %s, want 0 on zero denominator", result.CostPerUnit)
	}
	if !result.Outputs[0].AllocatedCost.IsZero() {
		t.Errorf("allocated cost = %s, want 0", result.Outputs[0].AllocatedCost)
	}
}

func TestAllocate_LineageSumsToAllocatedCost(t *testing.T) {
	inputs := []AllocationInput{
		{LineId: 1, ItemId: 10, Qty: dec("30"), TotalCost: dec("60")},
		{LineId: 2, ItemId: 11, Qty: dec("20"), TotalCost: dec("40")},
	}
	outputs := []AllocationOutput{
		{LineId: 11, ItemId: 20, ProducedQty: dec("25")},
		{LineId: 12, ItemId: 21, ProducedQty: dec("25")},
	}

	result := AllocateTransformationCosts(inputs, outputs)

	if len(result.Edges) != 4 {
		t.Fatalf("edge count = %d, want 4", len(result.Edges))
	}

	byOutput := map[int]decimal.Decimal{}
	for _, edge := range result.Edges {
		sum, ok := byOutput[edge.OutputLineId]
		if !ok {
			sum = decimal.Zero
		}
		byOutput[edge.OutputLineId] = sum.Add(edge.CostAttributed)
	}
	for _, out := range result.Outputs {
		if !byOutput[out.LineId].Equal(out.AllocatedCost) {
			t.Errorf("lineage sum for line %d = %s, want %s", out.LineId, byOutput[out.LineId], out.AllocatedCost)
		}
	}

	// input shares: 60% and 40% of each output's cost
	for _, edge := range result.Edges {
		var wantShare decimal.Decimal
		if edge.InputLineId == 1 {
			wantShare = dec("0.6")
		} else {
			wantShare = dec("0.4")
		}
		var out AllocatedOutput
		for _, o := range result.Outputs {
			if o.LineId == edge.OutputLineId {
				out = o
			}
		}
		want := out.AllocatedCost.Mul(wantShare)
		if !edge.CostAttributed.Equal(want) {
			t.Errorf("edge (%d,%d) attributed = %s, want %s", edge.InputLineId, edge.OutputLineId, edge.CostAttributed, want)
		}
	}
}

func TestAllocate_NoInputs(t *testing.T) {
	outputs := []AllocationOutput{
		{LineId: 11, ItemId: 20, ProducedQty: dec("10")},
	}
	result := AllocateTransformationCosts(nil, outputs)
	if !result.TotalInputCost.IsZero() || !result.TotalOutputCost.IsZero() {
		t.Errorf("expected zero costs with no inputs, got input %s output %s", result.TotalInputCost, result.TotalOutputCost)
	}
	if len(result.Edges) != 0 {
		t.Errorf("edge count = %d, want 0", len(result.Edges))
	}
}
