package domain

import "errors"

// Provider failures collapse into two coarse categories so callers can
// decide between "credentials are wrong" and "try again later", plus a
// not-found for UID lookups.
var (
	ErrAuth       = errors.New("exchange authentication failed")
	ErrConnection = errors.New("exchange connection failed")
	ErrNotFound   = errors.New("event not found")
	ErrReadOnly   = errors.New("calendar is read-only")
)

func IsAuthError(err error) bool       { return errors.Is(err, ErrAuth) }
func IsConnectionError(err error) bool { return errors.Is(err, ErrConnection) }
func IsNotFound(err error) bool        { return errors.Is(err, ErrNotFound) }
