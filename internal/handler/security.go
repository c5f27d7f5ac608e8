package handler

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
)

// SecurityHandler authenticates API requests via HMAC-SHA256 hashed API
// keys and resolves the caller into an auth.Principal.
type SecurityHandler struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewSecurityHandler creates a SecurityHandler with the given API key
// repository and HMAC pepper.
func NewSecurityHandler(apikeys auth.Repository, pepper []byte) *SecurityHandler {
	return &SecurityHandler{
		apikeys: apikeys,
		pepper:  pepper,
	}
}

// HandleAPIKey hashes the presented key, looks it up and compares the
// stored hash in constant time.
func (s *SecurityHandler) HandleAPIKey(ctx context.Context, key string) (auth.Principal, error) {
	hash := auth.HashKey(s.pepper, key)

	info, err := s.apikeys.FindByHash(ctx, hash)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindUnauthorized {
			return auth.Principal{}, auth.ErrKeyNotFound
		}
		return auth.Principal{}, errors.Wrap(err, "find api key")
	}
	if subtle.ConstantTimeCompare([]byte(hash), []byte(info.KeyHash)) != 1 {
		return auth.Principal{}, auth.ErrKeyNotFound
	}
	return info.Principal(), nil
}

// Middleware stores the caller's principal in the request context. Requests
// without a key proceed anonymously; a key that does not resolve is
// rejected with 401.
func (s *SecurityHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := apiKeyFromRequest(r)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}

		p, err := s.HandleAPIKey(r.Context(), key)
		if err != nil {
			writeError(w, r, err)
			return
		}

		ctx := auth.WithPrincipal(r.Context(), p)
		ctx = zctx.With(ctx, zap.Int64("user_id", p.UserID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// apiKeyFromRequest reads the key from the api_key header or a bearer
// Authorization header.
func apiKeyFromRequest(r *http.Request) string {
	if key := r.Header.Get("api_key"); key != "" {
		return key
	}
	if key, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(key)
	}
	return ""
}
