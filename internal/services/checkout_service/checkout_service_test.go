package checkoutservice

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"gosovereign/internal/apperr"
	"gosovereign/internal/events"
	"gosovereign/internal/models"
	"gosovereign/internal/pricing"
	stripeservice "gosovereign/internal/services/stripe_service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeStripe 는 서명 검증 없이 payload 를 그대로 이벤트로 읽습니다.
type fakeStripe struct {
	params *stripeservice.CheckoutParams
	err    error
}

func (f *fakeStripe) CreateCheckoutSession(_ context.Context, p stripeservice.CheckoutParams) (*stripe.CheckoutSession, error) {
	f.params = &p
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil
}

func (f *fakeStripe) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	if signature != "valid" {
		return stripe.Event{}, apperr.Validation("invalid_signature", "invalid stripe signature")
	}
	var evt stripe.Event
	err := json.Unmarshal(payload, &evt)
	return evt, err
}

type fakeUsers struct {
	byID    map[uuid.UUID]*models.User
	paid    map[uuid.UUID]string
	paidErr error
}

func (f *fakeUsers) FetchUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, apperr.NotFound("user_not_found", "user not found")
}

func (f *fakeUsers) FetchUserByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, apperr.NotFound("user_not_found", "user not found")
}

func (f *fakeUsers) MarkPaid(_ context.Context, id uuid.UUID, tier, _ string, _ time.Time) error {
	if f.paidErr != nil {
		return f.paidErr
	}
	f.paid[id] = tier
	return nil
}

type fakePurchases struct {
	bySession map[string]*models.Purchase
	fetchErr  error
}

func (f *fakePurchases) FetchBySession(_ context.Context, sessionID string) (*models.Purchase, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	p, ok := f.bySession[sessionID]
	if !ok {
		return nil, apperr.NotFound("purchase_not_found", "purchase not found")
	}
	return p, nil
}

func (f *fakePurchases) RecordPurchase(_ context.Context, p *models.Purchase) (bool, error) {
	if _, ok := f.bySession[p.StripeCheckoutSessionID]; ok {
		return false, nil
	}
	f.bySession[p.StripeCheckoutSessionID] = p
	return true, nil
}

type fakePublisher struct {
	published []events.PurchaseEvent
	err       error
}

func (f *fakePublisher) PublishPurchase(_ context.Context, evt events.PurchaseEvent) error {
	f.published = append(f.published, evt)
	return f.err
}

func (f *fakePublisher) Close() error { return nil }

type fixture struct {
	svc       *CheckoutService
	stripe    *fakeStripe
	users     *fakeUsers
	purchases *fakePurchases
	publisher *fakePublisher
	user      *models.User
}

func newFixture(t *testing.T, discountEndsAt time.Time) *fixture {
	t.Helper()
	user := &models.User{ID: uuid.New(), Email: "owner@shop.io"}
	f := &fixture{
		stripe:    &fakeStripe{},
		users:     &fakeUsers{byID: map[uuid.UUID]*models.User{user.ID: user}, paid: map[uuid.UUID]string{}},
		purchases: &fakePurchases{bySession: map[string]*models.Purchase{}},
		publisher: &fakePublisher{},
		user:      user,
	}
	f.svc = NewCheckoutService(Deps{
		Stripe:    f.stripe,
		Users:     f.users,
		Purchases: f.purchases,
		Events:    f.publisher,
		Catalog:   pricing.DefaultCatalog(discountEndsAt, time.Time{}),
		AppURL:    "https://app.gosovereign.io",
		Now:       func() time.Time { return fixedNow },
		Logger:    zap.NewNop(),
	})
	return f
}

func completedEvent(t *testing.T, session map[string]any) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"id":     "evt_1",
		"object": "event",
		"type":   "checkout.session.completed",
		"data":   map[string]any{"object": session},
	})
	require.NoError(t, err)
	return b
}

func paidSession(metadata map[string]string) map[string]any {
	return map[string]any{
		"id":               "cs_test_1",
		"object":           "checkout.session",
		"payment_status":   "paid",
		"amount_total":     14900,
		"currency":         "usd",
		"customer":         "cus_1",
		"metadata":         metadata,
		"customer_details": map[string]any{"email": "Owner@Shop.io"},
	}
}

func TestCreateSession(t *testing.T) {
	t.Run("unknown plan", func(t *testing.T) {
		f := newFixture(t, time.Time{})
		_, err := f.svc.CreateSession(context.Background(), CreateSessionParams{Plan: "enterprise"})
		assert.Equal(t, "invalid_plan", apperr.CodeOf(err, ""))
		assert.Nil(t, f.stripe.params)
	})

	t.Run("anonymous regular price", func(t *testing.T) {
		f := newFixture(t, time.Time{})
		res, err := f.svc.CreateSession(context.Background(), CreateSessionParams{Plan: "Starter", Variant: "monthly"})
		require.NoError(t, err)

		assert.Equal(t, "cs_test_1", res.SessionID)
		assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", res.URL)
		assert.Equal(t, int64(14900), f.stripe.params.AmountCents)
		assert.Equal(t, "starter", f.stripe.params.Plan)
		assert.Empty(t, f.stripe.params.UserID)
		assert.Empty(t, f.stripe.params.Email)
	})

	t.Run("authenticated discounted", func(t *testing.T) {
		f := newFixture(t, fixedNow.Add(time.Hour))
		_, err := f.svc.CreateSession(context.Background(), CreateSessionParams{Plan: "pro", UserID: &f.user.ID})
		require.NoError(t, err)

		assert.Equal(t, int64(19900), f.stripe.params.AmountCents)
		assert.Equal(t, f.user.ID.String(), f.stripe.params.UserID)
		assert.Equal(t, "owner@shop.io", f.stripe.params.Email)
	})

	t.Run("stripe failure", func(t *testing.T) {
		f := newFixture(t, time.Time{})
		f.stripe.err = apperr.Upstream("checkout_failed", "stripe: boom", nil)
		_, err := f.svc.CreateSession(context.Background(), CreateSessionParams{Plan: "hosted"})
		assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
	})
}

func TestHandleWebhook_CompletedIsIdempotent(t *testing.T) {
	f := newFixture(t, time.Time{})
	payload := completedEvent(t, paidSession(map[string]string{
		"plan":    "starter",
		"variant": "monthly",
		"user_id": f.user.ID.String(),
	}))

	require.NoError(t, f.svc.HandleWebhook(context.Background(), payload, "valid"))
	require.NoError(t, f.svc.HandleWebhook(context.Background(), payload, "valid"))

	assert.Equal(t, "starter", f.users.paid[f.user.ID])
	require.Len(t, f.purchases.bySession, 1)
	p := f.purchases.bySession["cs_test_1"]
	assert.Equal(t, int64(14900), p.Amount)
	assert.Equal(t, "owner@shop.io", p.Email)
	require.NotNil(t, p.UserID)
	assert.Equal(t, f.user.ID, *p.UserID)

	require.Len(t, f.publisher.published, 1)
	evt := f.publisher.published[0]
	assert.Equal(t, "cs_test_1", evt.TransactionID)
	assert.Equal(t, f.user.ID.String(), evt.UserID)
	assert.Equal(t, "2026-03-01T12:00:00Z", evt.PaidAt)
}

func TestHandleWebhook_FallsBackToEmail(t *testing.T) {
	f := newFixture(t, time.Time{})
	payload := completedEvent(t, paidSession(map[string]string{"plan": "pro"}))

	require.NoError(t, f.svc.HandleWebhook(context.Background(), payload, "valid"))
	assert.Equal(t, "pro", f.users.paid[f.user.ID])
}

func TestHandleWebhook_UnknownBuyerStillRecorded(t *testing.T) {
	f := newFixture(t, time.Time{})
	session := paidSession(map[string]string{"plan": "hosted"})
	session["customer_details"] = map[string]any{"email": "stranger@shop.io"}

	require.NoError(t, f.svc.HandleWebhook(context.Background(), completedEvent(t, session), "valid"))
	assert.Empty(t, f.users.paid)
	require.Len(t, f.purchases.bySession, 1)
	assert.Nil(t, f.purchases.bySession["cs_test_1"].UserID)
}

func TestHandleWebhook_Ignored(t *testing.T) {
	f := newFixture(t, time.Time{})

	other, err := json.Marshal(map[string]any{"id": "evt_2", "type": "payment_intent.created", "data": map[string]any{"object": map[string]any{}}})
	require.NoError(t, err)
	require.NoError(t, f.svc.HandleWebhook(context.Background(), other, "valid"))

	unpaid := paidSession(map[string]string{"plan": "starter"})
	unpaid["payment_status"] = "unpaid"
	require.NoError(t, f.svc.HandleWebhook(context.Background(), completedEvent(t, unpaid), "valid"))

	assert.Empty(t, f.purchases.bySession)
	assert.Empty(t, f.publisher.published)
}

func TestHandleWebhook_Errors(t *testing.T) {
	f := newFixture(t, time.Time{})
	payload := completedEvent(t, paidSession(map[string]string{"plan": "starter", "user_id": f.user.ID.String()}))

	err := f.svc.HandleWebhook(context.Background(), payload, "forged")
	assert.Equal(t, "invalid_signature", apperr.CodeOf(err, ""))

	f.users.paidErr = apperr.Persistence("write failed", errors.New("read only"))
	err = f.svc.HandleWebhook(context.Background(), payload, "valid")
	assert.Equal(t, apperr.KindPersistence, apperr.KindOf(err))
	assert.Empty(t, f.purchases.bySession)

	// 발행 실패는 웹훅 실패가 아님
	f.users.paidErr = nil
	f.publisher.err = errors.New("broker down")
	require.NoError(t, f.svc.HandleWebhook(context.Background(), payload, "valid"))
	assert.Len(t, f.purchases.bySession, 1)
}

func TestSessionStatus(t *testing.T) {
	f := newFixture(t, time.Time{})
	ctx := context.Background()

	res, err := f.svc.SessionStatus(ctx, "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, SessionStatusPending, res.Status)
	assert.Empty(t, res.Plan)

	payload := completedEvent(t, paidSession(map[string]string{"plan": "starter", "user_id": f.user.ID.String()}))
	require.NoError(t, f.svc.HandleWebhook(ctx, payload, "valid"))

	res, err = f.svc.SessionStatus(ctx, " cs_test_1 ")
	require.NoError(t, err)
	assert.Equal(t, SessionStatusPaid, res.Status)
	assert.Equal(t, "cs_test_1", res.SessionID)
	assert.Equal(t, "starter", res.Plan)
	assert.Equal(t, int64(14900), res.AmountCents)

	_, err = f.svc.SessionStatus(ctx, "")
	assert.Equal(t, "missing_session", apperr.CodeOf(err, ""))

	f.purchases.fetchErr = apperr.Persistence("결제 조회 실패", errors.New("db down"))
	_, err = f.svc.SessionStatus(ctx, "cs_test_1")
	assert.Equal(t, apperr.KindPersistence, apperr.KindOf(err))
}
