package storage

import "errors"

// Common storage errors
var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
	ErrBuiltIn       = errors.New("built-in record cannot be deleted")
	ErrInvalidKey    = errors.New("invalid API key")
	ErrKeyRevoked    = errors.New("API key revoked")
)
