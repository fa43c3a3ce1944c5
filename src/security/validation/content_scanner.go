package validation

import (
	"fmt"
	"regexp"

	"github.com/username/finwatch/src/logger"
)

var (
	// Common XSS vectors. Contextual output encoding is the primary defense.
	xssPatternsRegex = regexp.MustCompile(
		`(?i)<script|onerror=|onmouseover=|onfocus=|onload=|javascript:|vbscript:|<iframe|<object|<embed|<applet|<style|<link|<img\s+src\s*=\s*['"]?\s*(javascript|data):`,
	)
	// Formula injection characters at the start of a string
	formulaInjectionPrefixRegex = regexp.MustCompile(`^[=+\-@\t\r]`)
)

func truncateForLog(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}

// CheckXSSPatterns rejects free text carrying obvious script vectors.
func CheckXSSPatterns(s, fieldName, contextID string) error {
	if xssPatternsRegex.MatchString(s) {
		errMsg := fmt.Sprintf("potential XSS pattern detected in field '%s'", fieldName)
		logger.L.Warn(errMsg, "contextID", contextID, "contentPreview", truncateForLog(s, 50))
		return fmt.Errorf("%w: %s", ErrValidationFailed, errMsg)
	}
	return nil
}

// ValidateFreeText runs the checks shared by every user-entered label:
// required, bounded, no script vectors. It returns the cleaned text.
func ValidateFreeText(s, fieldName, contextID string, maxLength int) (string, error) {
	if err := CheckXSSPatterns(s, fieldName, contextID); err != nil {
		return "", err
	}
	cleaned := CleanText(s)
	if err := ValidateStringNotEmpty(cleaned, fieldName); err != nil {
		return "", err
	}
	if err := ValidateStringMaxLength(cleaned, maxLength, fieldName); err != nil {
		return "", err
	}
	return cleaned, nil
}
