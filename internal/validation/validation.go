// Package validation checks codes and issuance fields supplied by devices and browsers
package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// Confusable holds characters left out of codes because they are easily misread
const Confusable = "B8G6I1l0OQDS5Z2"

// Charset contains the characters codes are drawn from
var Charset = buildCharset()

func buildCharset() string {
	var b strings.Builder
	for _, r := range [][2]rune{{'a', 'z'}, {'A', 'Z'}, {'0', '9'}} {
		for c := r[0]; c <= r[1]; c++ {
			if !strings.ContainsRune(Confusable, c) {
				b.WriteRune(c)
			}
		}
	}
	return b.String()
}

// ValidationError reports a rejected field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Field is a named value checked by Required
type Field struct {
	Name  string
	Value string
}

// Required returns an error naming the first empty field
func Required(fields ...Field) error {
	for _, f := range fields {
		if strings.TrimSpace(f.Value) == "" {
			return &ValidationError{Field: f.Name, Message: "parameter is required"}
		}
	}
	return nil
}

// ValidateEndpointURL checks that raw is an absolute http or https URL
func ValidateEndpointURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return &ValidationError{Field: field, Message: "must be a valid URL"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ValidationError{Field: field, Message: "must use http or https"}
	}
	if u.Host == "" {
		return &ValidationError{Field: field, Message: "must be an absolute URL"}
	}
	return nil
}

// ValidateUserCode checks length and charset of a user code. Codes are case sensitive.
func ValidateUserCode(code string, length int) error {
	if len(code) != length {
		return &ValidationError{
			Field:   "code",
			Message: fmt.Sprintf("length must be exactly %d characters", length),
		}
	}
	for _, c := range code {
		if !strings.ContainsRune(Charset, c) {
			return &ValidationError{
				Field:   "code",
				Message: fmt.Sprintf("character %q is not allowed", c),
			}
		}
	}
	return nil
}

// NormalizeCode strips whitespace a user may have typed or pasted around a code
func NormalizeCode(code string) string {
	return strings.Join(strings.Fields(code), "")
}
