package address

import "errors"

// ErrAddressNotFound is returned by Book implementations for unknown or
// foreign address records.
var ErrAddressNotFound = errors.New("address: not found")
