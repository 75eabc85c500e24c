// Package currency provides the currency code value type used across the wallet.
//
// Balances and transfer amounts are always integers in the smallest unit of
// their currency (e.g. cents for USD); the code only identifies the unit, it
// never carries conversion semantics.
package currency

// Code is a 3-letter ISO 4217 currency code (e.g. "USD", "EUR").
type Code string

// Common currency codes.
const (
	USD Code = "USD"
	EUR Code = "EUR"
	GBP Code = "GBP"
	JPY Code = "JPY"
)

// DefaultCode is the currency assumed when a request omits one.
const DefaultCode = USD

// IsValid checks that the code is three uppercase ASCII letters.
func (c Code) IsValid() bool {
	if len(c) != 3 {
		return false
	}
	return c[0] >= 'A' && c[0] <= 'Z' &&
		c[1] >= 'A' && c[1] <= 'Z' &&
		c[2] >= 'A' && c[2] <= 'Z'
}

// String returns the string representation of the currency code.
func (c Code) String() string {
	return string(c)
}
