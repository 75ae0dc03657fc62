package shared

import (
	"errors"

	"github.com/Xanitokills/Backend-Elant-sub000/internal/platform/httpx"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure. Unknown users, inactive
	// users and wrong passwords share it.
	ErrInvalidCredentials = httpx.NewError(httpx.ErrUnauthorized, "invalid email or password")
	// ErrStoreFailure marks an identity or grant store that failed or timed out.
	ErrStoreFailure = errors.New("store failure")
)
