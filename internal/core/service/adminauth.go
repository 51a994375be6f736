package service

import (
	"crypto/sha256"
	"strings"
	"sync"

	"github.com/mtaadao/mtaa-realtime/internal/core/domain"
	"github.com/mtaadao/mtaa-realtime/pkg/token"
)

// AdminAuthenticator checks admin API keys against an Argon2id hash.
// An empty hash disables the admin API.
type AdminAuthenticator struct {
	hash string
}

// NewAdminAuthenticator creates an authenticator for the encoded hash.
func NewAdminAuthenticator(hash string) *AdminAuthenticator {
	return &AdminAuthenticator{hash: strings.TrimSpace(hash)}
}

// Enabled reports whether an admin key is configured.
func (a *AdminAuthenticator) Enabled() bool {
	return a.hash != ""
}

// Verify checks key.
func (a *AdminAuthenticator) Verify(key string) error {
	if !a.Enabled() {
		return domain.ErrAdminDisabled
	}
	if key == "" {
		return domain.ErrAuthRequired
	}
	if !token.Verify(key, a.hash) {
		return domain.ErrAdminKeyInvalid
	}
	return nil
}

// ServiceAuthenticator checks the key platform services present on the
// business API. The admin key is accepted too so operators can use the
// same routes. With neither hash configured the business API is closed.
type ServiceAuthenticator struct {
	hash  string
	admin *AdminAuthenticator

	// verified holds digests of keys that already passed Argon2id.
	verified sync.Map
}

// NewServiceAuthenticator creates an authenticator for the service key hash.
// admin may be nil.
func NewServiceAuthenticator(hash string, admin *AdminAuthenticator) *ServiceAuthenticator {
	return &ServiceAuthenticator{hash: strings.TrimSpace(hash), admin: admin}
}

// Enabled reports whether any key can open the business API. A nil
// authenticator is closed.
func (a *ServiceAuthenticator) Enabled() bool {
	if a == nil {
		return false
	}
	return a.hash != "" || (a.admin != nil && a.admin.Enabled())
}

// Verify checks key against the service hash, then the admin hash.
func (a *ServiceAuthenticator) Verify(key string) error {
	if !a.Enabled() {
		return domain.ErrServiceDisabled
	}
	if key == "" {
		return domain.ErrAuthRequired
	}

	digest := sha256.Sum256([]byte(key))
	if _, ok := a.verified.Load(digest); ok {
		return nil
	}

	ok := a.hash != "" && token.Verify(key, a.hash)
	if !ok && a.admin != nil && a.admin.Enabled() {
		ok = a.admin.Verify(key) == nil
	}
	if !ok {
		return domain.ErrServiceKeyInvalid
	}
	a.verified.Store(digest, struct{}{})
	return nil
}
