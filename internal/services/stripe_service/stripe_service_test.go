package stripeservice

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"testing"
	"time"

	"gosovereign/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"
)

const whsec = "whsec_test"

func newTestService() *StripeService {
	return NewStripeService(Options{SecretKey: "sk_test_x", WebhookSecret: whsec, ConnectClientID: "ca_123"}, zap.NewNop())
}

func TestCreateCheckoutSession(t *testing.T) {
	svc := newTestService()

	var got *stripe.CheckoutSessionParams
	svc.newSession = func(p *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		got = p
		return &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil
	}

	sess, err := svc.CreateCheckoutSession(context.Background(), CheckoutParams{
		Plan:        "starter",
		Variant:     "landing-b",
		AmountCents: 14900,
		Currency:    "usd",
		ProductName: "GoSovereign Starter",
		UserID:      "user-1",
		Email:       "owner@shop.io",
		SuccessURL:  "https://app.example/success",
		CancelURL:   "https://app.example/pricing",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", sess.ID)

	assert.Equal(t, "payment", *got.Mode)
	assert.Equal(t, int64(14900), *got.LineItems[0].PriceData.UnitAmount)
	assert.Equal(t, "owner@shop.io", *got.CustomerEmail)
	assert.Equal(t, "starter", got.Metadata["plan"])
	assert.Equal(t, "landing-b", got.Metadata["variant"])
	assert.Equal(t, "user-1", got.Metadata["user_id"])
}

func TestCreateCheckoutSession_Anonymous(t *testing.T) {
	svc := newTestService()

	var got *stripe.CheckoutSessionParams
	svc.newSession = func(p *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		got = p
		return &stripe.CheckoutSession{ID: "cs_test_2"}, nil
	}

	_, err := svc.CreateCheckoutSession(context.Background(), CheckoutParams{Plan: "pro", AmountCents: 29900, Currency: "usd"})
	require.NoError(t, err)
	assert.Nil(t, got.CustomerEmail)
	_, hasUser := got.Metadata["user_id"]
	assert.False(t, hasUser)
}

func TestCreateCheckoutSession_Error(t *testing.T) {
	svc := newTestService()
	svc.newSession = func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		return nil, &stripe.Error{Msg: "Invalid API Key provided"}
	}

	_, err := svc.CreateCheckoutSession(context.Background(), CheckoutParams{Plan: "pro"})
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
	assert.Equal(t, "stripe: Invalid API Key provided", apperr.PublicMessage(err))
}

func TestExchangeConnectCode(t *testing.T) {
	svc := newTestService()
	svc.exchangeToken = func(p *stripe.OAuthTokenParams) (*stripe.OAuthToken, error) {
		if *p.Code != "ac_good" {
			return nil, errors.New("invalid_grant")
		}
		return &stripe.OAuthToken{StripeUserID: "acct_123"}, nil
	}

	acct, err := svc.ExchangeConnectCode(context.Background(), "ac_good")
	require.NoError(t, err)
	assert.Equal(t, "acct_123", acct)

	_, err = svc.ExchangeConnectCode(context.Background(), "ac_bad")
	assert.Equal(t, "token_exchange_failed", apperr.CodeOf(err, ""))
}

func TestConnectAuthorizeURL(t *testing.T) {
	svc := newTestService()
	raw := svc.ConnectAuthorizeURL("signed", "https://app.example/api/auth/stripe/callback")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "connect.stripe.com", u.Host)
	assert.Equal(t, "ca_123", u.Query().Get("client_id"))
	assert.Equal(t, "signed", u.Query().Get("state"))
	assert.Equal(t, "read_write", u.Query().Get("scope"))
}

func TestConstructEvent(t *testing.T) {
	svc := newTestService()
	payload, err := json.Marshal(map[string]any{
		"id":     "evt_1",
		"object": "event",
		"type":   "checkout.session.completed",
		"data": map[string]any{"object": map[string]any{
			"id":             "cs_test_1",
			"object":         "checkout.session",
			"amount_total":   14900,
			"currency":       "usd",
			"payment_status": "paid",
			"metadata":       map[string]string{"plan": "starter", "user_id": "u1"},
		}},
	})
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: whsec, Timestamp: time.Now()})

	evt, err := svc.ConstructEvent(signed.Payload, signed.Header)
	require.NoError(t, err)
	assert.Equal(t, stripe.EventTypeCheckoutSessionCompleted, evt.Type)

	sess, err := CheckoutSessionFromEvent(evt)
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", sess.ID)
	assert.Equal(t, "starter", sess.Metadata["plan"])
	assert.Equal(t, int64(14900), sess.AmountTotal)

	_, err = svc.ConstructEvent(payload, "t=1,v1=deadbeef")
	assert.Equal(t, "invalid_signature", apperr.CodeOf(err, ""))
}
