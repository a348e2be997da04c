// Package nonce issues the single-use values sent as OAuth2 state.
package nonce

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-secure-stdlib/nonceutil"
)

// DefaultValidity leaves room for identity provider logins with a second
// factor or a registration detour.
const DefaultValidity = 10 * time.Minute

const tidyInterval = time.Minute

var ErrNotRedeemable = errors.New("nonce is unknown, expired or already redeemed")

type Options struct {
	Validity time.Duration
}

// Nonce is an issued value and the time after which it is no longer
// redeemable.
type Nonce struct {
	Value     string
	ExpiresAt time.Time
}

type Service interface {
	Issue() (*Nonce, error)
	Redeem(value string) error
}

type memoryService struct {
	nonces   nonceutil.NonceService
	mux      sync.Mutex
	lastTidy time.Time
}

// NewMemoryService keeps redeemed nonces in process memory until they
// expire. Nonces issued before a restart cannot be redeemed afterwards.
func NewMemoryService(opts Options) (Service, error) {
	validity := opts.Validity
	if validity == 0 {
		validity = DefaultValidity
	}
	if validity < 0 {
		return nil, fmt.Errorf("nonce validity must be positive, got %s", validity)
	}

	nonces := nonceutil.NewNonceServiceWithValidity(validity)
	if err := nonces.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize nonce service: %w", err)
	}
	return &memoryService{nonces: nonces, lastTidy: time.Now()}, nil
}

func (s *memoryService) Issue() (*Nonce, error) {
	s.tidy()
	value, expiresAt, err := s.nonces.Get()
	if err != nil {
		return nil, fmt.Errorf("issue nonce: %w", err)
	}
	return &Nonce{Value: value, ExpiresAt: expiresAt}, nil
}

func (s *memoryService) Redeem(value string) error {
	if !s.nonces.Redeem(value) {
		return ErrNotRedeemable
	}
	return nil
}

// tidy frees the bookkeeping of expired nonces at most once per interval.
func (s *memoryService) tidy() {
	s.mux.Lock()
	defer s.mux.Unlock()
	if time.Since(s.lastTidy) < tidyInterval {
		return
	}
	s.lastTidy = time.Now()
	s.nonces.Tidy()
}
