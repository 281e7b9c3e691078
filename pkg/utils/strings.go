package utils

import (
	"strconv"
	"strings"
)

// NormalizeQuery trims the text and collapses inner whitespace.
// e.g. "  iphone   case " -> "iphone case"
func NormalizeQuery(input string) string {
	return strings.Join(strings.Fields(input), " ")
}

// ParseInt parses a string to int with a fallback default value
func ParseInt(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return val
}
