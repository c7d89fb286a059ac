package checkoutservice

import (
	"context"
	"strings"
	"time"

	"gosovereign/internal/apperr"
	"gosovereign/internal/events"
	"gosovereign/internal/models"
	"gosovereign/internal/pricing"
	stripeservice "gosovereign/internal/services/stripe_service"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"
)

type PaymentClient interface {
	CreateCheckoutSession(ctx context.Context, p stripeservice.CheckoutParams) (*stripe.CheckoutSession, error)
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
}

type UserStore interface {
	FetchUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
	FetchUserByEmail(ctx context.Context, email string) (*models.User, error)
	MarkPaid(ctx context.Context, userID uuid.UUID, tier, stripeCustomerID string, paidAt time.Time) error
}

type PurchaseRecorder interface {
	RecordPurchase(ctx context.Context, p *models.Purchase) (bool, error)
	FetchBySession(ctx context.Context, sessionID string) (*models.Purchase, error)
}

type Deps struct {
	Stripe    PaymentClient
	Users     UserStore
	Purchases PurchaseRecorder
	Events    events.Publisher
	Catalog   pricing.Catalog
	AppURL    string
	Now       func() time.Time
	Logger    *zap.Logger
}

type CheckoutService struct {
	Deps
}

func NewCheckoutService(deps Deps) *CheckoutService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Events == nil {
		deps.Events = events.NopPublisher{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &CheckoutService{Deps: deps}
}

type CreateSessionParams struct {
	Plan    string
	Variant string
	UserID  *uuid.UUID // 비로그인 결제면 nil
}

type SessionResult struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
}

// CreateSession 가격은 요청 시점의 카탈로그로 정합니다.
func (s *CheckoutService) CreateSession(ctx context.Context, params CreateSessionParams) (*SessionResult, error) {
	quote, err := s.Catalog.Quote(strings.ToLower(strings.TrimSpace(params.Plan)), s.Now())
	if err != nil {
		return nil, apperr.Validation("invalid_plan", "unknown plan")
	}

	p := stripeservice.CheckoutParams{
		Plan:        string(quote.Plan.Tier),
		Variant:     params.Variant,
		AmountCents: quote.AmountCents,
		Currency:    quote.Currency,
		ProductName: quote.Plan.Name,
		Description: quote.Plan.Description,
		SuccessURL:  s.AppURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:   s.AppURL + "/pricing?canceled=1",
	}
	if params.UserID != nil {
		user, err := s.Users.FetchUserByID(ctx, *params.UserID)
		if err != nil {
			return nil, err
		}
		p.UserID = user.ID.String()
		p.Email = user.Email
	}

	sess, err := s.Stripe.CreateCheckoutSession(ctx, p)
	if err != nil {
		return nil, err
	}
	return &SessionResult{URL: sess.URL, SessionID: sess.ID}, nil
}

const (
	SessionStatusPaid    = "paid"
	SessionStatusPending = "pending"
)

type SessionStatusResult struct {
	SessionID   string `json:"sessionId"`
	Status      string `json:"status"`
	Plan        string `json:"plan,omitempty"`
	AmountCents int64  `json:"amount,omitempty"`
	Currency    string `json:"currency,omitempty"`
}

// SessionStatus 는 결제 완료 페이지가 웹훅 반영 여부를 확인할 때 씁니다.
// 웹훅이 아직 도착하지 않았으면 pending 입니다.
func (s *CheckoutService) SessionStatus(ctx context.Context, sessionID string) (*SessionStatusResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, apperr.Validation("missing_session", "session_id is required")
	}

	purchase, err := s.Purchases.FetchBySession(ctx, sessionID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return &SessionStatusResult{SessionID: sessionID, Status: SessionStatusPending}, nil
		}
		return nil, err
	}
	return &SessionStatusResult{
		SessionID:   sessionID,
		Status:      SessionStatusPaid,
		Plan:        purchase.Plan,
		AmountCents: purchase.Amount,
		Currency:    purchase.Currency,
	}, nil
}

// HandleWebhook 는 checkout.session.completed 만 처리하고 나머지 이벤트는 무시합니다.
// 같은 세션이 다시 배달되면 Purchase 는 새로 생기지 않고 이벤트도 다시 발행하지 않습니다.
func (s *CheckoutService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	evt, err := s.Stripe.ConstructEvent(payload, signature)
	if err != nil {
		return err
	}
	if evt.Type != stripe.EventTypeCheckoutSessionCompleted {
		s.Logger.Debug("stripe event ignored", zap.String("type", string(evt.Type)))
		return nil
	}

	sess, err := stripeservice.CheckoutSessionFromEvent(evt)
	if err != nil {
		return err
	}
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		s.Logger.Info("checkout session not paid", zap.String("session_id", sess.ID), zap.String("payment_status", string(sess.PaymentStatus)))
		return nil
	}

	plan := sess.Metadata["plan"]
	tier, err := pricing.ParseTier(plan)
	if err != nil {
		s.Logger.Warn("checkout session with unknown plan", zap.String("session_id", sess.ID), zap.String("plan", plan))
		return nil
	}

	email := sessionEmail(sess)
	paidAt := s.Now()
	customerID := ""
	if sess.Customer != nil {
		customerID = sess.Customer.ID
	}

	user, err := s.resolveUser(ctx, sess.Metadata["user_id"], email)
	if err != nil {
		return err
	}

	purchase := &models.Purchase{
		Email:                   email,
		Plan:                    string(tier),
		Variant:                 sess.Metadata["variant"],
		Amount:                  sess.AmountTotal,
		Currency:                string(sess.Currency),
		Status:                  models.PurchaseStatusPaid,
		StripeCheckoutSessionID: sess.ID,
	}
	if user != nil {
		if err := s.Users.MarkPaid(ctx, user.ID, string(tier), customerID, paidAt); err != nil {
			return err
		}
		purchase.UserID = &user.ID
	}

	created, err := s.Purchases.RecordPurchase(ctx, purchase)
	if err != nil {
		return err
	}
	if !created {
		s.Logger.Info("duplicate checkout webhook", zap.String("session_id", sess.ID))
		return nil
	}

	evtOut := events.PurchaseEvent{
		TransactionID: sess.ID,
		UserEmail:     email,
		Provider:      "stripe",
		ProductID:     string(tier),
		Variant:       purchase.Variant,
		AmountCents:   purchase.Amount,
		Currency:      purchase.Currency,
		PaidAt:        paidAt.UTC().Format(time.RFC3339),
	}
	if user != nil {
		evtOut.UserID = user.ID.String()
	}
	// 알림용 이벤트라 실패해도 웹훅은 성공으로 응답합니다.
	if err := s.Events.PublishPurchase(ctx, evtOut); err != nil {
		s.Logger.Warn("purchase event publish failed", zap.String("session_id", sess.ID), zap.Error(err))
	}
	return nil
}

// resolveUser 는 metadata 의 user_id 를 먼저 보고, 없으면 이메일로 찾습니다.
// 둘 다 없으면 nil 을 돌려주고 구매 기록만 남깁니다.
func (s *CheckoutService) resolveUser(ctx context.Context, rawID, email string) (*models.User, error) {
	if id, err := uuid.Parse(rawID); err == nil {
		user, err := s.Users.FetchUserByID(ctx, id)
		if err == nil {
			return user, nil
		}
		if apperr.KindOf(err) != apperr.KindNotFound {
			return nil, err
		}
	}
	if email == "" {
		return nil, nil
	}
	user, err := s.Users.FetchUserByEmail(ctx, email)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

func sessionEmail(sess *stripe.CheckoutSession) string {
	if sess.CustomerDetails != nil && sess.CustomerDetails.Email != "" {
		return strings.ToLower(sess.CustomerDetails.Email)
	}
	return strings.ToLower(sess.CustomerEmail)
}
