// Package utils provides small, generic helper functions used across
// different layers of the sync core. These utilities are independent of
// domain or business logic.
package utils

import "strconv"

// AtoiDefault converts a string to an int using strconv.Atoi.
// If the string is empty or cannot be parsed as an integer,
// it returns the provided default value instead. Useful for optional
// numeric values carried as text, such as link-speed hint headers.
//
// Example:
//
//	kbps := utils.AtoiDefault(resp.Header.Get("X-Link-Speed-Kbps"), 0)
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}
