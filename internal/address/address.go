package address

import (
	"context"

	"github.com/google/uuid"
)

// Book resolves a user's saved address records. The identity collaborator
// owns the records; the commerce core only reads them to take snapshots.
type Book interface {
	// GetAddress returns the address with the given ID owned by userID.
	// Implementations return ErrAddressNotFound when no such record exists.
	GetAddress(ctx context.Context, userID, addressID uuid.UUID) (*Address, error)
}

// Validator defines the interface for address validation.
type Validator interface {
	// Validate checks if an address is complete and well-formed.
	// Returns normalized address if validation succeeds.
	Validate(ctx context.Context, addr Address) (*ValidationResult, error)
}

// Address represents a physical address for shipping or billing.
// The JSON form is what gets snapshotted onto orders and payments.
type Address struct {
	Type         string `json:"type,omitempty"` // "shipping" or "billing"
	FullName     string `json:"full_name"`
	Company      string `json:"company,omitempty"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
	Phone        string `json:"phone,omitempty"`
}

// ValidationResult contains the outcome of address validation.
type ValidationResult struct {
	IsValid           bool
	NormalizedAddress *Address
	Errors            []ValidationError
	Warnings          []string
}

// ValidationError represents a specific validation error.
type ValidationError struct {
	Field   string
	Message string
}
