package validation

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Input limits accepted by the service.
const (
	MaxClassifierNameLength = 256
	MaxClassNameLength      = 256
	MaxCustomerIDLength     = 128
	MaxURLLength            = 2048
)

// ValidateClassifierName checks the name of a new classifier.
func ValidateClassifierName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("classifier name cannot be empty")
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("classifier name must be valid UTF-8")
	}
	if n := utf8.RuneCountInString(name); n > MaxClassifierNameLength {
		return fmt.Errorf("classifier name exceeds maximum length of %d characters (got %d)", MaxClassifierNameLength, n)
	}
	return nil
}

// ValidateClassName checks a class name used to build a
// "<class>_positive_examples" form field.
func ValidateClassName(class string) error {
	if class == "" {
		return fmt.Errorf("class name cannot be empty")
	}
	if !utf8.ValidString(class) {
		return fmt.Errorf("class name must be valid UTF-8")
	}
	if n := utf8.RuneCountInString(class); n > MaxClassNameLength {
		return fmt.Errorf("class name exceeds maximum length of %d characters (got %d)", MaxClassNameLength, n)
	}
	for _, r := range class {
		if unicode.IsSpace(r) || r == '"' || unicode.IsControl(r) {
			return fmt.Errorf("invalid class name %q: contains %q", class, r)
		}
	}
	return nil
}

// ParseThreshold parses a minimum score between 0 and 1.
func ParseThreshold(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid threshold: %w", err)
	}
	if v < 0 || v > 1 {
		return 0, fmt.Errorf("invalid threshold: must be between 0 and 1, got %v", v)
	}
	return v, nil
}

// ValidateCustomerID checks a customer ID for user data deletion.
func ValidateCustomerID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("customer ID cannot be empty")
	}
	if n := utf8.RuneCountInString(id); n > MaxCustomerIDLength {
		return fmt.Errorf("customer ID exceeds maximum length of %d characters (got %d)", MaxCustomerIDLength, n)
	}
	return nil
}
