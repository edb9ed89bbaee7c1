package models

import "testing"

func TestCursorRoundTrip(t *testing.T) {
	cursor := EncodeCursor("42")
	id, err := DecodeCursor(cursor)
	if err != nil {
		t.Fatal(err)
	}
	if id != "42" {
		t.Errorf("decoded id = %q, want 42", id)
	}
}

func TestCompositeCursorRoundTrip(t *testing.T) {
	cursor := EncodeCompositeCursor("Widget", "7")
	value, id, err := DecodeCompositeCursor(cursor)
	if err != nil {
		t.Fatal(err)
	}
	if value != "Widget" || id != "7" {
		t.Errorf("decoded (%q,%q), want (Widget,7)", value, id)
	}
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	if _, err := DecodeCursor("not-base64!!"); err == nil {
		t.Error("expected error for invalid base64")
	}
	if _, _, err := DecodeCompositeCursor(EncodeCursor("no-separator")); err == nil {
		t.Error("expected error for cursor without separator")
	}
}
