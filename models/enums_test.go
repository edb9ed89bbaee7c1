package models

import "testing"

func TestTransformationOrderStatusTransitions(t *testing.T) {
	cases := []struct {
		from    TransformationOrderStatus
		to      TransformationOrderStatus
		allowed bool
	}{
		{TransformationOrderStatusDraft, TransformationOrderStatusPreparing, true},
		{TransformationOrderStatusDraft, TransformationOrderStatusCancelled, true},
		{TransformationOrderStatusDraft, TransformationOrderStatusCompleted, false},
		{TransformationOrderStatusPreparing, TransformationOrderStatusCompleted, true},
		{TransformationOrderStatusPreparing, TransformationOrderStatusCancelled, true},
		{TransformationOrderStatusPreparing, TransformationOrderStatusDraft, false},
		{TransformationOrderStatusCompleted, TransformationOrderStatusCancelled, false},
		{TransformationOrderStatusCompleted, TransformationOrderStatusPreparing, false},
		{TransformationOrderStatusCancelled, TransformationOrderStatusDraft, false},
		{TransformationOrderStatusCancelled, TransformationOrderStatusPreparing, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.allowed {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}

func TestTransformationOrderStatusTerminal(t *testing.T) {
	if TransformationOrderStatusDraft.IsTerminal() || TransformationOrderStatusPreparing.IsTerminal() {
		t.Error("Draft and Preparing must not be terminal")
	}
	if !TransformationOrderStatusCompleted.IsTerminal() || !TransformationOrderStatusCancelled.IsTerminal() {
		t.Error("Completed and Cancelled must be terminal")
	}
}

func TestParseTransformationOrderStatus(t *testing.T) {
	if _, err := ParseTransformationOrderStatus("Preparing"); err != nil {
		t.Errorf("valid status rejected: %v", err)
	}
	if _, err := ParseTransformationOrderStatus("Shipped"); err == nil {
		t.Error("unknown status accepted")
	}
}
