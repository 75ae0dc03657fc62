package gate

import (
	"errors"
	"net/http"

	"github.com/Xanitokills/Backend-Elant-sub000/internal/identity"
	"github.com/Xanitokills/Backend-Elant-sub000/internal/platform/httpx"
	"github.com/Xanitokills/Backend-Elant-sub000/internal/rbac"
	"github.com/Xanitokills/Backend-Elant-sub000/internal/shared"
	"github.com/Xanitokills/Backend-Elant-sub000/internal/token"
)

// ErrPermissionDenied is returned when the evaluator denies the resource.
var ErrPermissionDenied = httpx.NewError(httpx.ErrForbidden, MsgPermissionDenied)

// Messages returned in the {"message": ...} body.
const (
	MsgMissingToken     = "missing bearer token"
	MsgInvalidToken     = "invalid token"
	MsgExpiredToken     = "token expired"
	MsgUnknownPrincipal = "user not found or inactive"
	MsgPermissionDenied = "no permission for this resource"
	MsgInternal         = "internal server error"
)

// StatusFor maps a gate failure to its HTTP status and client message. Server
// side failures share one generic message.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, token.ErrMissingToken):
		return http.StatusUnauthorized, MsgMissingToken
	case errors.Is(err, token.ErrExpiredToken):
		return http.StatusUnauthorized, MsgExpiredToken
	case errors.Is(err, token.ErrInvalidToken):
		return http.StatusUnauthorized, MsgInvalidToken
	case errors.Is(err, identity.ErrUnknownOrInactivePrincipal):
		return http.StatusUnauthorized, MsgUnknownPrincipal
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden, MsgPermissionDenied
	case errors.Is(err, token.ErrMissingSecret),
		errors.Is(err, rbac.ErrMisconfiguredRoute),
		errors.Is(err, shared.ErrStoreFailure):
		return http.StatusInternalServerError, MsgInternal
	default:
		return http.StatusInternalServerError, MsgInternal
	}
}
