// Package oauthstate issues and verifies the signed state parameter carried
// through third-party OAuth redirects.
package oauthstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const DefaultTTL = 15 * time.Minute

var ErrInvalidState = errors.New("invalid oauth state")

type Provider string

const (
	ProviderGitHub Provider = "github"
	ProviderVercel Provider = "vercel"
	ProviderStripe Provider = "stripe"
)

// Payload 는 콜백에서 복원되는 값입니다. StoreID 는 없을 수 있습니다.
type Payload struct {
	UserID   uuid.UUID
	StoreID  uuid.UUID
	Provider Provider
	Nonce    string
}

// NonceStore 가 있으면 state 는 한 번만 사용할 수 있습니다.
type NonceStore interface {
	Remember(ctx context.Context, nonce string, ttl time.Duration) error
	Consume(ctx context.Context, nonce string) (bool, error)
}

type claims struct {
	UID   string `json:"uid"`
	SID   string `json:"sid,omitempty"`
	Prv   string `json:"prv"`
	Nonce string `json:"nonce"`
	jwt.RegisteredClaims
}

type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	nonces NonceStore
}

type Option func(*Signer)

func WithTTL(ttl time.Duration) Option { return func(s *Signer) { s.ttl = ttl } }

func WithClock(now func() time.Time) Option { return func(s *Signer) { s.now = now } }

func WithNonceStore(store NonceStore) Option { return func(s *Signer) { s.nonces = store } }

func NewSigner(secret string, opts ...Option) *Signer {
	s := &Signer{secret: []byte(secret), ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Signer) Sign(ctx context.Context, p Payload) (string, error) {
	if p.Nonce == "" {
		p.Nonce = uuid.NewString()
	}
	now := s.now()

	c := claims{
		UID:   p.UserID.String(),
		Prv:   string(p.Provider),
		Nonce: p.Nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	if p.StoreID != uuid.Nil {
		c.SID = p.StoreID.String()
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign state: %w", err)
	}

	if s.nonces != nil {
		if err := s.nonces.Remember(ctx, p.Nonce, s.ttl); err != nil {
			return "", fmt.Errorf("remember state nonce: %w", err)
		}
	}
	return token, nil
}

// Verify 는 서명, 만료, 공급자 일치, nonce 1회성을 확인합니다.
// 검증 실패는 모두 ErrInvalidState 로 돌려줍니다.
func (s *Signer) Verify(ctx context.Context, raw string, provider Provider) (*Payload, error) {
	if raw == "" {
		return nil, ErrInvalidState
	}

	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	if Provider(c.Prv) != provider {
		return nil, fmt.Errorf("%w: provider mismatch", ErrInvalidState)
	}

	userID, err := uuid.Parse(c.UID)
	if err != nil {
		return nil, fmt.Errorf("%w: bad user id", ErrInvalidState)
	}
	p := &Payload{UserID: userID, Provider: provider, Nonce: c.Nonce}
	if c.SID != "" {
		if p.StoreID, err = uuid.Parse(c.SID); err != nil {
			return nil, fmt.Errorf("%w: bad store id", ErrInvalidState)
		}
	}

	if s.nonces != nil {
		ok, err := s.nonces.Consume(ctx, c.Nonce)
		if err != nil {
			return nil, fmt.Errorf("consume state nonce: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: state already used", ErrInvalidState)
		}
	}
	return p, nil
}
