package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Authentication errors
	ErrInvalidState   = fmt.Errorf("invalid authorization state")
	ErrTokenExchange  = fmt.Errorf("token exchange failed")
	ErrRefreshFailed  = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken = fmt.Errorf("no refresh token available")

	// API and service errors
	ErrAPIRequest      = fmt.Errorf("API request failed")
	ErrScanNotFound    = fmt.Errorf("scan not found")
	ErrStorageDisabled = fmt.Errorf("storage disabled")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
