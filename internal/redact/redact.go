// Package redact applies a best-effort masking pass to chunk content
// before it is sent to the model. It is a courtesy filter, not a security
// boundary.
package redact

import "regexp"

var (
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

	// Phone-shaped digit runs: optional country code, separators, 7-11 digits.
	phoneRe = regexp.MustCompile(`\+?\d{1,3}[\s.\-]?\(?\d{2,4}\)?[\s.\-]?\d{3,4}[\s.\-]?\d{3,4}`)

	// Long unbroken digit runs resembling card or account numbers.
	digitRunRe = regexp.MustCompile(`\d{12,19}`)
)

// Mask replaces email addresses, phone-shaped digit runs and long digit
// runs with fixed placeholders.
func Mask(text string) string {
	masked := emailRe.ReplaceAllString(text, "[email]")
	masked = digitRunRe.ReplaceAllString(masked, "[number]")
	masked = phoneRe.ReplaceAllString(masked, "[phone]")
	return masked
}
