// backend/src/services/errors.go
package services

import "errors"

// Service-level error categories. Handlers translate these into HTTP status
// codes; anything else surfaces as an internal error with a generic message.
var (
	ErrNotFound  = errors.New("resource not found")
	ErrForbidden = errors.New("forbidden")
)
