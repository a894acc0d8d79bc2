package model

import "errors"

var (
	// ErrNotFound resource id unknown to the registry
	ErrNotFound = errors.New("resource not found")

	// ErrStoreUnavailable I/O failure or timeout talking to the backing store
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrMalformedRecord stored config/metrics present but unparsable
	ErrMalformedRecord = errors.New("malformed record")

	// ErrInvalidConfig resource configuration rejected before persisting
	ErrInvalidConfig = errors.New("invalid resource config")
)
