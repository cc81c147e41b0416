package utils

import "github.com/microcosm-cc/bluemonday"

var (
	ugcSanitizer   = bluemonday.UGCPolicy()
	plainSanitizer = bluemonday.StrictPolicy()
)

// Sanitize cleans user-generated HTML content to prevent XSS attacks. Used for
// suggestion descriptions and comment bodies, which may carry markup.
func Sanitize(input string) string {
	return ugcSanitizer.Sanitize(input)
}

// SanitizePlain strips all markup. Used for titles and usernames, which are
// rendered as plain text.
func SanitizePlain(input string) string {
	return plainSanitizer.Sanitize(input)
}
