package identity

import "errors"

// ErrUnknownOrInactivePrincipal is returned when no active user row matches.
// Deactivated and non-existent accounts share it.
var ErrUnknownOrInactivePrincipal = errors.New("identity: unknown or inactive principal")

// Principal is an active user joined with its primary role label.
type Principal struct {
	ID      int64
	Name    string
	Email   string
	RoleID  int64
	Role    string
	RoleIDs []int64
}
