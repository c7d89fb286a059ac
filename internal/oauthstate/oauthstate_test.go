package oauthstate

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryNonces map[string]bool

func (m memoryNonces) Remember(_ context.Context, nonce string, _ time.Duration) error {
	m[nonce] = true
	return nil
}

func (m memoryNonces) Consume(_ context.Context, nonce string) (bool, error) {
	ok := m[nonce]
	delete(m, nonce)
	return ok, nil
}

func TestSignVerify_RoundTrip(t *testing.T) {
	signer := NewSigner("state-secret")
	ctx := context.Background()
	userID, storeID := uuid.New(), uuid.New()

	token, err := signer.Sign(ctx, Payload{UserID: userID, StoreID: storeID, Provider: ProviderGitHub})
	require.NoError(t, err)

	p, err := signer.Verify(ctx, token, ProviderGitHub)
	require.NoError(t, err)
	assert.Equal(t, userID, p.UserID)
	assert.Equal(t, storeID, p.StoreID)
	assert.NotEmpty(t, p.Nonce)
}

func TestVerify_WithoutStore(t *testing.T) {
	signer := NewSigner("state-secret")
	token, err := signer.Sign(context.Background(), Payload{UserID: uuid.New(), Provider: ProviderVercel})
	require.NoError(t, err)

	p, err := signer.Verify(context.Background(), token, ProviderVercel)
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, p.StoreID)
}

func TestVerify_Rejects(t *testing.T) {
	ctx := context.Background()
	signer := NewSigner("state-secret")
	token, err := signer.Sign(ctx, Payload{UserID: uuid.New(), Provider: ProviderGitHub})
	require.NoError(t, err)

	other, err := signer.Sign(ctx, Payload{UserID: uuid.New(), Provider: ProviderGitHub})
	require.NoError(t, err)
	parts, otherParts := strings.Split(token, "."), strings.Split(other, ".")
	tampered := parts[0] + "." + otherParts[1] + "." + parts[2]

	legacy := base64.StdEncoding.EncodeToString([]byte(`{"userId":"u1","storeId":"s1"}`))

	cases := map[string]struct {
		signer   *Signer
		raw      string
		provider Provider
	}{
		"empty":             {signer, "", ProviderGitHub},
		"not a token":       {signer, "{not json", ProviderGitHub},
		"unsigned json":     {signer, legacy, ProviderGitHub},
		"provider mismatch": {signer, token, ProviderVercel},
		"wrong secret":      {NewSigner("other"), token, ProviderGitHub},
		"tampered":          {signer, tampered, ProviderGitHub},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := tc.signer.Verify(ctx, tc.raw, tc.provider)
			assert.ErrorIs(t, err, ErrInvalidState)
		})
	}
}

func TestVerify_Expired(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	signer := NewSigner("state-secret", WithClock(clock))

	token, err := signer.Sign(context.Background(), Payload{UserID: uuid.New(), Provider: ProviderStripe})
	require.NoError(t, err)

	now = now.Add(DefaultTTL + time.Minute)
	_, err = signer.Verify(context.Background(), token, ProviderStripe)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestVerify_NonceIsSingleUse(t *testing.T) {
	nonces := memoryNonces{}
	signer := NewSigner("state-secret", WithNonceStore(nonces))
	ctx := context.Background()

	token, err := signer.Sign(ctx, Payload{UserID: uuid.New(), Provider: ProviderGitHub})
	require.NoError(t, err)
	assert.Len(t, nonces, 1)

	_, err = signer.Verify(ctx, token, ProviderGitHub)
	require.NoError(t, err)

	_, err = signer.Verify(ctx, token, ProviderGitHub)
	assert.ErrorIs(t, err, ErrInvalidState)
}
