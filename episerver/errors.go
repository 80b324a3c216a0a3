package episerver

import "errors"

// ErrNotFound is returned (wrapped) when a market site has no record under the requested ID.
var ErrNotFound = errors.New("record not found")
