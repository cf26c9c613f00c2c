// Package validate holds the pure validation and sanitization functions
// applied to customer-supplied order data before it is stored or submitted.
package validate

import (
	"regexp"
	"strings"
)

// Patterns stripped from free-form text. Matching is conservative: anything
// that looks like active content is removed, not escaped.
var (
	scriptBlockRe  = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	activeTagRe    = regexp.MustCompile(`(?i)</?(script|iframe|object|embed)[^>]*>`)
	uriSchemeRe    = regexp.MustCompile(`(?i)(javascript|data)\s*:`)
	eventHandlerRe = regexp.MustCompile(`(?i)\bon[a-z]+\s*=`)
)

// SanitizeInput strips script/iframe/object/embed tags, javascript: and
// data: URI schemes, and inline event-handler attributes, then trims
// surrounding whitespace.
func SanitizeInput(s string) string {
	s = scriptBlockRe.ReplaceAllString(s, "")
	s = activeTagRe.ReplaceAllString(s, "")
	s = uriSchemeRe.ReplaceAllString(s, "")
	s = eventHandlerRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
