package domain

// Symbolic failure reasons. These are stable and surfaced to callers
// alongside the HTTP-class Code.
const (
	// Validation
	ReasonValidation          = "VALIDATION_FAILED"
	ReasonEmptyCart           = "EMPTY_CART"
	ReasonMissingShippingAddr = "MISSING_SHIPPING_ADDRESS"
	ReasonMissingBillingAddr  = "MISSING_BILLING_ADDRESS"
	ReasonInvalidAddress      = "INVALID_ADDRESS"
	ReasonInvalidQuantity     = "INVALID_QUANTITY"
	ReasonInvalidBookingDate  = "INVALID_BOOKING_DATE"
	ReasonInvalidAddOn        = "INVALID_ADD_ON"
	ReasonInvalidRefundAmount = "INVALID_REFUND_AMOUNT"
	ReasonInvalidAmount       = "INVALID_PAYMENT_AMOUNT"
	ReasonUnknownProvider     = "UNKNOWN_PROVIDER"
	ReasonInvalidSignature    = "INVALID_WEBHOOK_SIGNATURE"

	// Conflict
	ReasonInsufficientStock = "INSUFFICIENT_STOCK"
	ReasonItemUnavailable   = "ITEM_UNAVAILABLE"
	ReasonSlotUnavailable   = "TIME_SLOT_UNAVAILABLE"
	ReasonNumberCollision   = "NUMBER_COLLISION"
	ReasonPaymentExists     = "PAYMENT_EXISTS"
	ReasonConcurrentUpdate  = "CONCURRENT_UPDATE"

	// State
	ReasonInvalidTransition   = "INVALID_STATUS_TRANSITION"
	ReasonOrderNotCancellable = "ORDER_NOT_CANCELLABLE"
	ReasonBookingNotCancel    = "BOOKING_CANNOT_BE_CANCELLED"
	ReasonPaymentCompleted    = "PAYMENT_ALREADY_COMPLETED"
	ReasonTargetCancelled     = "TARGET_CANCELLED"

	// Not found
	ReasonNotFound         = "NOT_FOUND"
	ReasonCartNotFound     = "CART_NOT_FOUND"
	ReasonCartItemNotFound = "CART_ITEM_NOT_FOUND"
	ReasonOrderNotFound    = "ORDER_NOT_FOUND"
	ReasonBookingNotFound  = "BOOKING_NOT_FOUND"
	ReasonPaymentNotFound  = "PAYMENT_NOT_FOUND"
	ReasonProductNotFound  = "PRODUCT_NOT_FOUND"
	ReasonServiceNotFound  = "SERVICE_NOT_FOUND"

	// External
	ReasonProviderFailure = "PROVIDER_FAILURE"
)

// Sentinel errors shared by the workflows. Wrap with (*Error).With to add
// the operation and itemized details; errors.Is still matches.
var (
	ErrInvalidStatusTransition = &Error{Code: EINVALID, Reason: ReasonInvalidTransition, Message: "Status transition is not allowed"}
	ErrInsufficientStock       = &Error{Code: ECONFLICT, Reason: ReasonInsufficientStock, Message: "Insufficient stock for one or more items"}
	ErrItemUnavailable         = &Error{Code: ECONFLICT, Reason: ReasonItemUnavailable, Message: "One or more items are no longer available"}
	ErrTimeSlotUnavailable     = &Error{Code: ECONFLICT, Reason: ReasonSlotUnavailable, Message: "The requested time slot is not available"}
	ErrNumberCollision         = &Error{Code: ECONFLICT, Reason: ReasonNumberCollision, Message: "Could not allocate a unique reference number"}
	ErrConcurrentUpdate        = &Error{Code: ECONFLICT, Reason: ReasonConcurrentUpdate, Message: "Resource was modified concurrently; re-fetch and retry"}

	ErrCartNotFound     = &Error{Code: ENOTFOUND, Reason: ReasonCartNotFound, Message: "Cart not found"}
	ErrCartItemNotFound = &Error{Code: ENOTFOUND, Reason: ReasonCartItemNotFound, Message: "Cart item not found"}
	ErrOrderNotFound    = &Error{Code: ENOTFOUND, Reason: ReasonOrderNotFound, Message: "Order not found"}
	ErrBookingNotFound  = &Error{Code: ENOTFOUND, Reason: ReasonBookingNotFound, Message: "Booking not found"}
	ErrPaymentNotFound  = &Error{Code: ENOTFOUND, Reason: ReasonPaymentNotFound, Message: "Payment not found"}
	ErrProductNotFound  = &Error{Code: ENOTFOUND, Reason: ReasonProductNotFound, Message: "Product not found"}
	ErrServiceNotFound  = &Error{Code: ENOTFOUND, Reason: ReasonServiceNotFound, Message: "Service not found"}
)

var (
	ErrEmptyCart               = &Error{Code: EINVALID, Reason: ReasonEmptyCart, Message: "Cart has no purchasable items"}
	ErrMissingShippingAddress  = &Error{Code: EINVALID, Reason: ReasonMissingShippingAddr, Message: "Shipping address not found"}
	ErrMissingBillingAddress   = &Error{Code: EINVALID, Reason: ReasonMissingBillingAddr, Message: "Billing address not found"}
	ErrInvalidAddress          = &Error{Code: EINVALID, Reason: ReasonInvalidAddress, Message: "Address is incomplete or malformed"}
	ErrInvalidQuantity         = &Error{Code: EINVALID, Reason: ReasonInvalidQuantity, Message: "Quantity must be greater than 0"}
	ErrInvalidBookingDate      = &Error{Code: EINVALID, Reason: ReasonInvalidBookingDate, Message: "Booking date is outside the allowed booking window"}
	ErrInvalidAddOn            = &Error{Code: EINVALID, Reason: ReasonInvalidAddOn, Message: "Add-on does not belong to this service"}
	ErrInvalidRefundAmount     = &Error{Code: EINVALID, Reason: ReasonInvalidRefundAmount, Message: "Refund amount exceeds the refundable balance"}
	ErrInvalidPaymentAmount    = &Error{Code: EINVALID, Reason: ReasonInvalidAmount, Message: "Payment amount must be positive and not exceed the total due"}
	ErrUnknownProvider         = &Error{Code: EINVALID, Reason: ReasonUnknownProvider, Message: "Payment provider is not configured"}
	ErrInvalidWebhookSignature = &Error{Code: EINVALID, Reason: ReasonInvalidSignature, Message: "Webhook signature verification failed"}
	ErrPaymentExists           = &Error{Code: ECONFLICT, Reason: ReasonPaymentExists, Message: "A payment already exists for this order or booking"}
	ErrOrderNotCancellable     = &Error{Code: ECONFLICT, Reason: ReasonOrderNotCancellable, Message: "Order can no longer be cancelled"}
	ErrBookingNotCancellable   = &Error{Code: ECONFLICT, Reason: ReasonBookingNotCancel, Message: "Booking can no longer be cancelled"}
	ErrPaymentAlreadyCompleted = &Error{Code: ECONFLICT, Reason: ReasonPaymentCompleted, Message: "Payment has already completed"}
	ErrTargetCancelled         = &Error{Code: ECONFLICT, Reason: ReasonTargetCancelled, Message: "Order or booking has been cancelled"}
	ErrProviderFailure         = &Error{Code: EPAYMENT, Reason: ReasonProviderFailure, Message: "Payment provider request failed"}
)
