package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultOTPTTL    = 5 * time.Minute
	defaultOTPLength = 6
	otpStoreSize     = 8192
)

// OTPStore issues short-lived one-time passwords keyed by email. A code can
// be consumed exactly once; issuing a new code replaces any outstanding one.
type OTPStore interface {
	Issue(ctx context.Context, email string) (string, error)
	Consume(ctx context.Context, email, code string) (bool, error)
}

type inMemoryOTPStore struct {
	cache *expirable.LRU[string, string]
}

func NewInMemoryOTPStore(ttl time.Duration) OTPStore {
	if ttl <= 0 {
		ttl = defaultOTPTTL
	}
	return &inMemoryOTPStore{
		cache: expirable.NewLRU[string, string](otpStoreSize, nil, ttl),
	}
}

func (s *inMemoryOTPStore) Issue(ctx context.Context, email string) (string, error) {
	code, err := generateOTPCode(defaultOTPLength)
	if err != nil {
		return "", fmt.Errorf("generating one-time password: %w", err)
	}

	s.cache.Add(email, code)
	return code, nil
}

func (s *inMemoryOTPStore) Consume(ctx context.Context, email, code string) (bool, error) {
	stored, found := s.cache.Get(email)
	if !found {
		return false, nil
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return false, nil
	}

	s.cache.Remove(email)
	return true, nil
}

func generateOTPCode(length int) (string, error) {
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}

var _ OTPStore = (*inMemoryOTPStore)(nil)
