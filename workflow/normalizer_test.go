package workflow

import (
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/factory_backend/models"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/shopspring/decimal"
)

func TestDenormalize_WholeAndRemainder(t *testing.T) {
	cases := []struct {
		name      string
		baseQty   string
		factor    string
		whole     string
		remainder string
	}{
		{"exact packages", "36", "12", "3", "0"},
		{"with remainder", "40", "12", "3", "4"},
		{"less than one package", "5", "12", "0", "5"},
		{"zero quantity", "0", "12", "0", "0"},
		{"fractional factor", "2.5", "0.5", "5", "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := DenormalizeQuantity(dec(tc.baseQty), dec(tc.factor))
			if err != nil {
				t.Fatal(err)
			}
			if !result.WholePackets.Equal(dec(tc.whole)) {
				t.Errorf("whole packets = %s, want %s", result.WholePackets, tc.whole)
			}
			if !result.RemainderQty.Equal(dec(tc.remainder)) {
				t.Errorf("remainder = %s, want %s", result.RemainderQty, tc.remainder)
			}
		})
	}
}

func TestDenormalize_RoundTripsNormalize(t *testing.T) {
	// normalize 3 packages of 12 then denormalize back
	factor := dec("12")
	inputQty := dec("3")
	normalized := inputQty.Mul(factor)
	if !normalized.Equal(dec("36")) {
		t.Fatalf("normalized = %s, want 36", normalized)
	}
	result, err := DenormalizeQuantity(normalized, factor)
	if err != nil {
		t.Fatal(err)
	}
	if !result.PackageQty.Equal(inputQty) {
		t.Errorf("package qty = %s, want %s", result.PackageQty, inputQty)
	}
}

func TestDenormalize_RejectsBadArguments(t *testing.T) {
	if _, err := DenormalizeQuantity(dec("10"), decimal.Zero); err == nil {
		t.Error("expected error for zero conversion factor")
	}
	if _, err := DenormalizeQuantity(dec("10"), dec("-2")); err == nil {
		t.Error("expected error for negative conversion factor")
	}
	if _, err := DenormalizeQuantity(dec("-1"), dec("12")); err == nil {
		t.Error("expected error for negative base quantity")
	}
}

// catalog fixture for the conversion core: one active item with a base
// packaging (factor 1) and a BOX12 variant.
func normalizerFixture() (*models.Item, []*models.ItemPackaging) {
	item := &models.Item{
		ID:           1,
		Sku:          "RAW-X",
		Name:         "Raw Material X",
		UnitId:       1,
		Unit:         &models.ProductUnit{ID: 1, Name: "Pieces"},
		StandardCost: dec("2.00"),
		IsActive:     utils.NewTrue(),
	}
	packagings := []*models.ItemPackaging{
		{ID: 10, ItemId: 1, Name: "Base", ConversionFactor: dec("1"), IsBase: utils.NewTrue(), IsActive: utils.NewTrue()},
		{ID: 11, ItemId: 1, Name: "BOX12", ConversionFactor: dec("12"), IsBase: utils.NewFalse(), IsActive: utils.NewTrue()},
	}
	return item, packagings
}

func TestNormalize_Linearity(t *testing.T) {
	item, packagings := normalizerFixture()

	q1, q2 := dec("3"), dec("4.5")
	n1, err := normalizeItemQuantity(item, packagings, 11, q1)
	if err != nil {
		t.Fatal(err)
	}
	n2, err := normalizeItemQuantity(item, packagings, 11, q2)
	if err != nil {
		t.Fatal(err)
	}
	sum, err := normalizeItemQuantity(item, packagings, 11, q1.Add(q2))
	if err != nil {
		t.Fatal(err)
	}
	if !n1.NormalizedQty.Add(n2.NormalizedQty).Equal(sum.NormalizedQty) {
		t.Errorf("normalize(%s)+normalize(%s) = %s, want %s",
			q1, q2, n1.NormalizedQty.Add(n2.NormalizedQty), sum.NormalizedQty)
	}
	if !n1.NormalizedQty.Equal(dec("36")) {
		t.Errorf("normalized qty = %s, want 36", n1.NormalizedQty)
	}
}

func TestNormalize_BasePackagingDefault(t *testing.T) {
	item, packagings := normalizerFixture()

	// packaging id zero selects the base packaging, factor 1
	result, err := normalizeItemQuantity(item, packagings, 0, dec("7"))
	if err != nil {
		t.Fatal(err)
	}
	if result.PackagingId != 10 {
		t.Errorf("packaging id = %d, want base 10", result.PackagingId)
	}
	if !result.NormalizedQty.Equal(dec("7")) {
		t.Errorf("normalized qty = %s, want 7", result.NormalizedQty)
	}
	if result.BaseUnitName != "Pieces" {
		t.Errorf("base unit name = %q, want Pieces", result.BaseUnitName)
	}
}

func TestNormalize_RejectsNegativeQuantity(t *testing.T) {
	item, packagings := normalizerFixture()

	_, err := normalizeItemQuantity(item, packagings, 11, dec("-1"))
	var qtyErr *InvalidQuantityError
	if !errors.As(err, &qtyErr) {
		t.Fatalf("error = %v, want InvalidQuantityError", err)
	}
	if !qtyErr.Qty.Equal(dec("-1")) {
		t.Errorf("error qty = %s, want -1", qtyErr.Qty)
	}
}

func TestNormalize_RejectsInactiveItem(t *testing.T) {
	item, packagings := normalizerFixture()
	item.IsActive = utils.NewFalse()

	_, err := normalizeItemQuantity(item, packagings, 11, dec("3"))
	var inactiveErr *InactiveItemError
	if !errors.As(err, &inactiveErr) {
		t.Fatalf("error = %v, want InactiveItemError", err)
	}
	if inactiveErr.ItemId != 1 || inactiveErr.Sku != "RAW-X" {
		t.Errorf("error payload = %+v, want item 1 RAW-X", inactiveErr)
	}
}

func TestNormalize_RejectsBadPackaging(t *testing.T) {
	item, packagings := normalizerFixture()

	var pkgErr *InvalidPackageError
	if _, err := normalizeItemQuantity(item, packagings, 99, dec("3")); !errors.As(err, &pkgErr) {
		t.Errorf("unknown packaging: error = %v, want InvalidPackageError", err)
	}

	packagings[1].IsActive = utils.NewFalse()
	if _, err := normalizeItemQuantity(item, packagings, 11, dec("3")); !errors.As(err, &pkgErr) {
		t.Errorf("inactive packaging: error = %v, want InvalidPackageError", err)
	}
}

func TestNormalize_RejectsMissingBaseAndBadFactor(t *testing.T) {
	item, packagings := normalizerFixture()

	if _, err := normalizeItemQuantity(item, packagings[1:], 11, dec("3")); !errors.Is(err, ErrMissingUnitOfMeasure) {
		t.Errorf("no base packaging: error = %v, want ErrMissingUnitOfMeasure", err)
	}

	packagings[1].ConversionFactor = decimal.Zero
	var factorErr *InvalidConversionFactorError
	if _, err := normalizeItemQuantity(item, packagings, 11, dec("3")); !errors.As(err, &factorErr) {
		t.Errorf("zero factor: error = %v, want InvalidConversionFactorError", err)
	}
}
