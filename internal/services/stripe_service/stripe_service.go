package stripeservice

import (
	"context"
	"encoding/json"
	"fmt"

	"gosovereign/internal/apperr"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/oauth"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"
)

type Options struct {
	SecretKey       string
	WebhookSecret   string
	ConnectClientID string
}

type CheckoutParams struct {
	Plan        string
	Variant     string
	AmountCents int64
	Currency    string
	ProductName string
	Description string
	UserID      string // 비로그인이면 빈 값
	Email       string
	SuccessURL  string
	CancelURL   string
}

type StripeService struct {
	webhookSecret   string
	connectClientID string
	newSession      func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	exchangeToken   func(*stripe.OAuthTokenParams) (*stripe.OAuthToken, error)
	logger          *zap.Logger
}

func NewStripeService(opts Options, logger *zap.Logger) *StripeService {
	stripe.Key = opts.SecretKey
	return &StripeService{
		webhookSecret:   opts.WebhookSecret,
		connectClientID: opts.ConnectClientID,
		newSession:      session.New,
		exchangeToken:   oauth.New,
		logger:          logger,
	}
}

// CreateCheckoutSession 은 일회성 결제 세션을 만듭니다. 메타데이터로 plan/variant/user_id 를 넘깁니다.
func (s *StripeService) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(p.Currency),
					UnitAmount: stripe.Int64(p.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(p.ProductName),
						Description: stripe.String(p.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("plan", p.Plan)
	params.AddMetadata("variant", p.Variant)
	if p.UserID != "" {
		params.AddMetadata("user_id", p.UserID)
		params.ClientReferenceID = stripe.String(p.UserID)
	}
	if p.Email != "" {
		params.CustomerEmail = stripe.String(p.Email)
	}

	sess, err := s.newSession(params)
	if err != nil {
		s.logger.Error("stripe checkout session failed", zap.String("plan", p.Plan), zap.Error(err))
		return nil, apperr.Upstream("checkout_failed", stripeMessage(err), err)
	}
	return sess, nil
}

func (s *StripeService) ConnectAuthorizeURL(state, redirectURI string) string {
	return oauth.AuthorizeURL(&stripe.AuthorizeURLParams{
		ClientID:     stripe.String(s.connectClientID),
		RedirectURI:  stripe.String(redirectURI),
		ResponseType: stripe.String("code"),
		Scope:        stripe.String(string(stripe.OAuthScopeTypeReadWrite)),
		State:        stripe.String(state),
	})
}

// ExchangeConnectCode 는 연결된 Stripe 계정 ID(acct_...)를 돌려줍니다.
func (s *StripeService) ExchangeConnectCode(ctx context.Context, code string) (string, error) {
	params := &stripe.OAuthTokenParams{
		GrantType: stripe.String("authorization_code"),
		Code:      stripe.String(code),
	}
	params.Context = ctx

	token, err := s.exchangeToken(params)
	if err != nil {
		return "", apperr.Upstream("token_exchange_failed", stripeMessage(err), err)
	}
	if token.StripeUserID == "" {
		return "", apperr.Upstream("token_exchange_failed", "stripe: missing connected account id", nil)
	}
	return token.StripeUserID, nil
}

// ConstructEvent 는 Stripe-Signature 헤더를 검증합니다.
func (s *StripeService) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	evt, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, apperr.Validation("invalid_signature", "invalid stripe signature")
	}
	return evt, nil
}

// CheckoutSessionFromEvent decodes the session object of a checkout.session.* event.
func CheckoutSessionFromEvent(evt stripe.Event) (*stripe.CheckoutSession, error) {
	if evt.Data == nil {
		return nil, apperr.Validation("invalid_event", "event has no data")
	}
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(evt.Data.Raw, &sess); err != nil {
		return nil, apperr.Validation("invalid_event", fmt.Sprintf("decode checkout session: %v", err))
	}
	return &sess, nil
}

func stripeMessage(err error) string {
	if se, ok := err.(*stripe.Error); ok && se.Msg != "" {
		return "stripe: " + se.Msg
	}
	return "stripe request failed"
}
