package services

import "errors"

// Sentinel errors returned by the service layer. Controllers map these onto
// HTTP status codes and response envelopes.
var (
	ErrDuplicateUsername  = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrNotFound           = errors.New("record not found")
	ErrUnauthenticated    = errors.New("not authenticated")
	ErrValidation         = errors.New("validation failed")
)
