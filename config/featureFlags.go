package config

import (
	"os"
	"strings"
)

// StrictOrderImmutability enables guardrails for executed transformation
// orders: a Completed order cannot be edited; it must be cancelled via a new
// compensating order.
//
// Set via env:
// - STRICT_ORDER_IMMUTABLE=true
func StrictOrderImmutability() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("STRICT_ORDER_IMMUTABLE")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
