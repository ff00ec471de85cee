package auth

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultRevocationListSize = 8192

// TokenRevocationStore keeps revoked bearer tokens in memory until their
// natural expiration. A token only needs to stay in the set for its remaining
// lifetime, after that the signature check rejects it anyway.
type TokenRevocationStore interface {
	Revoke(ctx context.Context, tokenString string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenString string) (bool, error)
}

type inMemoryTokenRevocationStore struct {
	cache *expirable.LRU[string, time.Time]
}

func NewInMemoryTokenRevocationStore(maxTokenLifetime time.Duration) TokenRevocationStore {
	return &inMemoryTokenRevocationStore{
		cache: expirable.NewLRU[string, time.Time](defaultRevocationListSize, nil, maxTokenLifetime),
	}
}

func (s *inMemoryTokenRevocationStore) Revoke(ctx context.Context, tokenString string, expiresAt time.Time) error {
	s.cache.Add(tokenString, expiresAt)
	return nil
}

func (s *inMemoryTokenRevocationStore) IsRevoked(ctx context.Context, tokenString string) (bool, error) {
	expiresAt, found := s.cache.Get(tokenString)
	if !found {
		return false, nil
	}

	// The cache TTL is an upper bound, entries for short-lived tokens fall
	// out of the revocation set as soon as the token itself expires.
	if time.Now().After(expiresAt) {
		s.cache.Remove(tokenString)
		return false, nil
	}

	return true, nil
}

var _ TokenRevocationStore = (*inMemoryTokenRevocationStore)(nil)
