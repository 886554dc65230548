package common

import "fmt"

const (
	SOLDecimals = 9 // SOL has 9 decimals (lamports)
)

// LamportsToSOL converts lamports to SOL string without float precision loss
func LamportsToSOL(lamports uint64) string {
	return formatWithDecimals(lamports, SOLDecimals)
}

// FormatUSD formats a subscription amount with fixed 2-decimal display.
// Display only - pipeline logic passes amounts through untouched.
func FormatUSD(amount float64) string {
	return fmt.Sprintf("%.2f", amount)
}

// TruncateKey shortens a base58 public key for display: "Ghos...9xQz"
func TruncateKey(key string) string {
	if len(key) <= 10 {
		return key
	}
	return key[:6] + "..." + key[len(key)-4:]
}

// formatWithDecimals converts integer to decimal string by inserting decimal point
// Example: formatWithDecimals(24981836, 9) = "0.024981836"
func formatWithDecimals(value uint64, decimals int) string {
	s := fmt.Sprintf("%d", value)

	// Pad with leading zeros if needed
	for len(s) <= decimals {
		s = "0" + s
	}

	// Insert decimal point
	pos := len(s) - decimals
	return s[:pos] + "." + s[pos:]
}
