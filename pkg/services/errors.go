// Package services implements the application services behind the HTTP
// handlers: template and lead management plus tenant-level workflow stats.
package services

import "errors"

// ErrValidation marks requests that are structurally invalid. Handlers map
// it to 400.
var ErrValidation = errors.New("validation failed")

// IsValidationError checks if an error indicates an invalid request.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}
