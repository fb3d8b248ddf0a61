package utils

import "github.com/microcosm-cc/bluemonday"

var sanitizer = bluemonday.UGCPolicy()

// Sanitize cleans operator-supplied HTML (the intake notice) to prevent XSS attacks.
func Sanitize(input string) string {
	return sanitizer.Sanitize(input)
}
