package service

import (
	"errors"

	"github.com/dukerupert/motorworks/internal/domain"
	"github.com/dukerupert/motorworks/internal/repository"
)

// Validation errors - use domain.EINVALID
var (
	ErrValidation             = &domain.Error{Code: domain.EINVALID, Reason: domain.ReasonValidation, Message: "Request validation failed"}
	ErrCartOwnerRequired      = &domain.Error{Code: domain.EINVALID, Reason: "CART_OWNER_REQUIRED", Message: "Cart needs exactly one of a user or a session"}
	ErrInvalidItemRef         = &domain.Error{Code: domain.EINVALID, Reason: "INVALID_ITEM_REF", Message: "Cart item must reference exactly one product or service"}
	ErrTrackingNumberRequired = &domain.Error{Code: domain.EINVALID, Reason: "TRACKING_NUMBER_REQUIRED", Message: "A tracking number is required to ship an order"}
	ErrInvalidDateRange       = &domain.Error{Code: domain.EINVALID, Reason: "INVALID_DATE_RANGE", Message: "Date range is empty or too long"}
	ErrPaymentTargetRequired  = &domain.Error{Code: domain.EINVALID, Reason: "PAYMENT_TARGET_REQUIRED", Message: "Payment must reference exactly one order or booking"}
	ErrUnknownShippingMethod  = &domain.Error{Code: domain.EINVALID, Reason: "UNKNOWN_SHIPPING_METHOD", Message: "Shipping method is not supported"}
)

// Not-found errors for records the core only reads.
var (
	ErrSlotBlockNotFound = &domain.Error{Code: domain.ENOTFOUND, Reason: "SLOT_BLOCK_NOT_FOUND", Message: "Slot block not found"}
)

// notFound maps repository.ErrNoRows to the given sentinel and wraps any
// other storage error so it never reaches callers verbatim.
func notFound(err error, sentinel *domain.Error, op string) error {
	if errors.Is(err, repository.ErrNoRows) {
		return sentinel.With(op, nil)
	}
	return domain.Internal(err, op, "storage request failed")
}

// internal wraps a storage error unless it already carries a domain code.
func internal(err error, op, message string) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return err
	}
	return domain.Internal(err, op, message)
}
