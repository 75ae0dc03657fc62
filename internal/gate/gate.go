// Package gate composes token verification, identity resolution and permission
// evaluation into HTTP middleware guarding protected routes.
package gate

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Xanitokills/Backend-Elant-sub000/internal/identity"
	"github.com/Xanitokills/Backend-Elant-sub000/internal/observability"
	"github.com/Xanitokills/Backend-Elant-sub000/internal/platform/httpx"
	"github.com/Xanitokills/Backend-Elant-sub000/internal/rbac"
	"github.com/Xanitokills/Backend-Elant-sub000/internal/shared"
	"github.com/Xanitokills/Backend-Elant-sub000/internal/token"
)

// Stage names a step of the admission pipeline.
type Stage string

const (
	StageVerify    Stage = "verify"
	StageResolve   Stage = "resolve"
	StageAuthorize Stage = "authorize"
)

// Verifier checks a raw bearer token.
type Verifier interface {
	Verify(raw string) (*token.Claims, error)
}

// Resolver loads the active principal behind a verified token.
type Resolver interface {
	Resolve(ctx context.Context, id int64) (identity.Principal, error)
}

// Authorizer decides whether a principal may use a resource.
type Authorizer interface {
	Authorize(ctx context.Context, principalID int64, res rbac.Resource) (rbac.Decision, error)
}

// Config collects gate dependencies.
type Config struct {
	Verifier   Verifier
	Resolver   Resolver
	Authorizer Authorizer
	Logger     *slog.Logger
	Metrics    *observability.Metrics
}

// Gate guards protected routes.
type Gate struct {
	verifier   Verifier
	resolver   Resolver
	authorizer Authorizer
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// New constructs a Gate.
func New(cfg Config) *Gate {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		verifier:   cfg.Verifier,
		resolver:   cfg.Resolver,
		authorizer: cfg.Authorizer,
		logger:     logger,
		metrics:    cfg.Metrics,
	}
}

var _ rbac.Guard = (*Gate)(nil)

// Authenticate verifies the bearer token, resolves the principal and attaches
// it to the request context. Routes behind it without Require perform no
// fine-grained authorization.
func (g *Gate) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, stage, err := g.admit(r)
		if err != nil {
			g.reject(w, r, stage, err, 0, nil)
			return
		}
		g.metrics.ObserveGate(string(StageResolve), "pass")
		next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), p)))
	})
}

// Require admits the request only when the attached principal is granted res.
// It must run behind Authenticate.
func (g *Gate) Require(res rbac.Resource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := shared.PrincipalFromContext(r.Context())
			if !ok {
				g.reject(w, r, StageAuthorize, rbac.ErrMisconfiguredRoute, 0, res)
				return
			}
			if err := g.authorize(r.Context(), p, res); err != nil {
				g.reject(w, r, StageAuthorize, err, p.ID, res)
				return
			}
			g.metrics.ObserveGate(string(StageAuthorize), "pass")
			next.ServeHTTP(w, r)
		})
	}
}

// Protect runs Authenticate and Require(res) in sequence for a single handler.
func (g *Gate) Protect(res rbac.Resource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return g.Authenticate(g.Require(res)(next))
	}
}

// admit runs verify then resolve, stopping at the first failure.
func (g *Gate) admit(r *http.Request) (shared.Principal, Stage, error) {
	raw, err := bearerToken(r)
	if err != nil {
		return shared.Principal{}, StageVerify, err
	}
	claims, err := g.verifier.Verify(raw)
	if err != nil {
		return shared.Principal{}, StageVerify, err
	}
	p, err := g.resolver.Resolve(r.Context(), claims.PrincipalID)
	if err != nil {
		return shared.Principal{}, StageResolve, err
	}
	if claims.Role != "" && claims.Role != p.Role {
		g.logger.Debug("token role differs from stored role",
			slog.Int64("principal_id", p.ID),
			slog.String("token_role", claims.Role),
			slog.String("stored_role", p.Role))
	}
	return shared.Principal{ID: p.ID, Email: p.Email, Name: p.Name, Role: p.Role}, StageResolve, nil
}

func (g *Gate) authorize(ctx context.Context, p shared.Principal, res rbac.Resource) error {
	if !rbac.Valid(res) {
		return rbac.ErrMisconfiguredRoute
	}
	d, err := g.authorizer.Authorize(ctx, p.ID, res)
	if err != nil {
		return err
	}
	if d != rbac.Allow {
		return ErrPermissionDenied
	}
	return nil
}

func (g *Gate) reject(w http.ResponseWriter, r *http.Request, stage Stage, err error, principalID int64, res rbac.Resource) {
	status, message := StatusFor(err)
	attrs := []any{
		slog.String("stage", string(stage)),
		slog.String("route", routeOf(r)),
		slog.Int("status", status),
		slog.Any("error", err),
	}
	if principalID > 0 {
		attrs = append(attrs, slog.Int64("principal_id", principalID))
	}
	if res != nil {
		attrs = append(attrs, slog.String("resource", res.String()))
	}
	if status >= http.StatusInternalServerError {
		g.logger.Error("gate rejected request", attrs...)
	} else {
		g.logger.Info("gate rejected request", attrs...)
	}
	g.metrics.ObserveGate(string(stage), strings.ToLower(http.StatusText(status)))
	httpx.Message(w, status, message)
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", token.ErrMissingToken
	}
	scheme, value, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", token.ErrMissingToken
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", token.ErrMissingToken
	}
	return value, nil
}

func routeOf(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
