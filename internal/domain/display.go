package domain

import "strings"

const displayCodeLength = 6

// DisplayCode shortens an order id into the code shown to customers, e.g. "#K3ZQ9T".
func DisplayCode(orderID string) string {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return ""
	}
	if idx := strings.LastIndex(id, "_"); idx >= 0 && idx < len(id)-1 {
		id = id[idx+1:]
	}
	if len(id) > displayCodeLength {
		id = id[len(id)-displayCodeLength:]
	}
	return "#" + strings.ToUpper(id)
}

// MatchesDisplayCode reports whether query (with or without the leading '#') identifies the
// order, case-insensitively.
func MatchesDisplayCode(orderID, query string) bool {
	q := strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(query), "#"))
	if q == "" {
		return false
	}
	return strings.TrimPrefix(DisplayCode(orderID), "#") == q
}
