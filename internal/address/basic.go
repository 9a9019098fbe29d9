package address

import (
	"context"
	"regexp"
	"strings"
)

var usZIP = regexp.MustCompile(`^\d{5}(-\d{4})?$`)

// BasicValidator performs basic format validation without external API calls.
// Checks for required fields and basic format rules (e.g., ZIP code format).
type BasicValidator struct{}

// NewBasicValidator creates a new basic address validator.
func NewBasicValidator() Validator {
	return &BasicValidator{}
}

// Validate performs required-field checks and normalizes casing of
// state and country codes.
func (v *BasicValidator) Validate(ctx context.Context, addr Address) (*ValidationResult, error) {
	normalized := addr
	normalized.State = strings.ToUpper(strings.TrimSpace(addr.State))
	normalized.Country = strings.ToUpper(strings.TrimSpace(addr.Country))
	normalized.PostalCode = strings.TrimSpace(addr.PostalCode)
	if normalized.Country == "" {
		normalized.Country = "US"
	}

	var errs []ValidationError
	required := map[string]string{
		"full_name":     normalized.FullName,
		"address_line1": normalized.AddressLine1,
		"city":          normalized.City,
		"state":         normalized.State,
		"postal_code":   normalized.PostalCode,
	}
	for _, field := range []string{"full_name", "address_line1", "city", "state", "postal_code"} {
		if strings.TrimSpace(required[field]) == "" {
			errs = append(errs, ValidationError{Field: field, Message: "is required"})
		}
	}

	if normalized.Country == "US" && normalized.PostalCode != "" && !usZIP.MatchString(normalized.PostalCode) {
		errs = append(errs, ValidationError{Field: "postal_code", Message: "must be a 5 or 9 digit ZIP code"})
	}

	return &ValidationResult{
		IsValid:           len(errs) == 0,
		NormalizedAddress: &normalized,
		Errors:            errs,
	}, nil
}
