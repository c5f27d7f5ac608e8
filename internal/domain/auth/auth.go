// Package auth carries the resolved caller identity into domain services.
//
// Transport code resolves a Principal once per request and passes it
// explicitly into every service call; services check it before doing any
// work.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"slices"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/apperr"
)

// Role is a coarse permission level.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleAdmin    Role = "ADMIN"
)

// ParseRole converts a stored role string into a Role.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleCustomer, RoleAdmin:
		return r, nil
	default:
		return "", errors.Errorf("unknown role %q", s)
	}
}

// Principal is the authenticated caller. The zero value is anonymous.
type Principal struct {
	UserID int64
	Name   string
	Roles  []Role
}

// Anonymous reports whether the principal carries no identity.
func (p Principal) Anonymous() bool {
	return p.UserID == 0
}

// HasRole reports whether the principal was granted r.
func (p Principal) HasRole(r Role) bool {
	return slices.Contains(p.Roles, r)
}

// RequireUser fails unless the principal is an authenticated user of any role.
func (p Principal) RequireUser() error {
	if p.Anonymous() {
		return apperr.Unauthorized("authentication required")
	}
	return nil
}

// RequireAdmin fails unless the principal holds RoleAdmin.
func (p Principal) RequireAdmin() error {
	if err := p.RequireUser(); err != nil {
		return err
	}
	if !p.HasRole(RoleAdmin) {
		return apperr.Forbidden("admin role required")
	}
	return nil
}

// ErrKeyNotFound is returned when no active API key matches a hash.
var ErrKeyNotFound = apperr.Unauthorized("invalid api key")

// APIKeyInfo holds the identity bound to a stored API key.
type APIKeyInfo struct {
	ID       int64
	KeyHash  string
	UserID   int64
	UserName string
	Role     Role
}

// Principal converts the key owner into a Principal.
func (i *APIKeyInfo) Principal() Principal {
	roles := []Role{i.Role}
	if i.Role == RoleAdmin {
		roles = append(roles, RoleCustomer)
	}
	return Principal{UserID: i.UserID, Name: i.UserName, Roles: roles}
}

// HashKey returns the hex HMAC-SHA256 of a raw API key under pepper. Only
// this hash is ever stored.
func HashKey(pepper []byte, key string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// Repository provides lookup of active API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored in ctx, or the anonymous principal.
func FromContext(ctx context.Context) Principal {
	p, _ := ctx.Value(principalKey{}).(Principal)
	return p
}
