// Package admin gates the DLQ control plane. A caller passes only when its
// bearer token resolves to a user whose stored role is super_admin; every
// other outcome looks the same from the outside.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"transbot-ops/internal/common/logging"
)

// RoleSuperAdmin is the only role allowed through the guard.
const RoleSuperAdmin = "super_admin"

// ErrNotAuthorized is the single error Authorize returns. Causes are logged,
// never exposed.
var ErrNotAuthorized = errors.New("not_authorized")

// Principal is an authorized caller.
type Principal struct {
	UserID string
	Role   string
}

// IdentityProvider turns a bearer token into a user id.
type IdentityProvider interface {
	Identify(ctx context.Context, token string) (string, error)
}

// RoleStore looks up a user's role. storage.Storage implements it.
type RoleStore interface {
	GetUserRole(ctx context.Context, userID string) (string, error)
}

type Guard struct {
	identity IdentityProvider
	roles    RoleStore
	logger   logging.Logger
}

func NewGuard(identity IdentityProvider, roles RoleStore, logger logging.Logger) *Guard {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Guard{
		identity: identity,
		roles:    roles,
		logger:   logger.WithFields(logging.Field{Key: "component", Value: "admin_guard"}),
	}
}

// Authorize checks an Authorization header value.
func (g *Guard) Authorize(ctx context.Context, authorization string) (*Principal, error) {
	token, ok := bearerToken(authorization)
	if !ok {
		return nil, g.deny(ctx, "missing bearer token", nil)
	}

	userID, err := g.identity.Identify(ctx, token)
	if err != nil || userID == "" {
		return nil, g.deny(ctx, "identity lookup failed", err)
	}

	role, err := g.roles.GetUserRole(ctx, userID)
	if err != nil {
		return nil, g.deny(ctx, "role lookup failed", err, logging.Field{Key: "user_id", Value: userID})
	}
	if role != RoleSuperAdmin {
		return nil, g.deny(ctx, "insufficient role", nil,
			logging.Field{Key: "user_id", Value: userID},
			logging.Field{Key: "role", Value: role},
		)
	}

	return &Principal{UserID: userID, Role: role}, nil
}

func (g *Guard) deny(ctx context.Context, why string, cause error, fields ...logging.Field) error {
	fields = append(fields, logging.Field{Key: "cause", Value: why})
	if cause != nil {
		fields = append(fields, logging.Err(cause))
	}
	g.logger.WithContext(ctx).Warn("Admin request denied", fields...)
	return ErrNotAuthorized
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

type principalKey struct{}

// Middleware answers 403 {"ok":false,"error":"not_authorized"} for any
// unauthorized request and stores the principal on the context otherwise.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := g.Authorize(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": false, "error": ErrNotAuthorized.Error()})
			return
		}

		ctx := context.WithValue(r.Context(), principalKey{}, principal)
		ctx = logging.ContextWithUserID(ctx, principal.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// PrincipalFromContext returns the principal stored by Middleware.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok
}
