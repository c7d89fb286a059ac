package connectservice

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"gosovereign/internal/apperr"
	"gosovereign/internal/models"
	"gosovereign/internal/oauthstate"
	logservice "gosovereign/internal/services/log_service"
	vercelservice "gosovereign/internal/services/vercel_service"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FlowState 는 OAuth 연결 흐름의 단계입니다.
// initiated -> code_received -> token_exchanged -> token_persisted -> done, 실패 시 error
type FlowState string

const (
	StateInitiated      FlowState = "initiated"
	StateCodeReceived   FlowState = "code_received"
	StateTokenExchanged FlowState = "token_exchanged"
	StateTokenPersisted FlowState = "token_persisted"
	StateDone           FlowState = "done"
	StateError          FlowState = "error"
)

// 브라우저 리다이렉트에 실리는 에러 코드
const (
	CodeInvalidState        = "invalid_state"
	CodeAccessDenied        = "access_denied"
	CodeMissingCode         = "missing_code"
	CodeTokenExchangeFailed = "token_exchange_failed"
	CodeTokenStorageFailed  = "token_storage_failed"
)

var (
	ErrTokenExchangeFailed = errors.New("token exchange failed")
	ErrTokenStorageFailed  = errors.New("token storage failed")
)

const dashboardPath = "/dashboard/deploy"

type GitHubClient interface {
	AuthorizeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (string, error)
	GetUserLogin(ctx context.Context, token string) (string, error)
}

type VercelClient interface {
	AuthorizeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*vercelservice.Token, error)
}

type StripeClient interface {
	ConnectAuthorizeURL(state, redirectURI string) string
	ExchangeConnectCode(ctx context.Context, code string) (string, error)
}

type UserStore interface {
	SaveGitHubToken(ctx context.Context, userID uuid.UUID, token, username string) error
	SaveVercelToken(ctx context.Context, userID uuid.UUID, token, teamID string) error
}

type StoreStore interface {
	FetchOwnedStore(ctx context.Context, userID, storeID uuid.UUID) (*models.Store, error)
	SetStripeAccount(ctx context.Context, storeID uuid.UUID, accountID string) error
}

type LogAppender interface {
	Append(ctx context.Context, e logservice.Entry)
}

type Deps struct {
	Signer *oauthstate.Signer
	GitHub GitHubClient
	Vercel VercelClient
	Stripe StripeClient
	Users  UserStore
	Stores StoreStore
	Logs   LogAppender
	AppURL string // NEXT_PUBLIC_APP_URL
	Logger *zap.Logger
}

type ConnectService struct {
	Deps
}

func NewConnectService(deps Deps) *ConnectService {
	return &ConnectService{Deps: deps}
}

type CallbackParams struct {
	Code          string
	State         string
	ProviderError string // 공급자가 ?error= 로 돌려준 값
}

// Begin 은 서명된 state 를 만들고 공급자 인가 화면 주소를 돌려줍니다.
// 모든 연결은 스토어 단위로 기록되므로 storeID 가 필요합니다.
func (s *ConnectService) Begin(ctx context.Context, provider oauthstate.Provider, userID, storeID uuid.UUID) (string, error) {
	if storeID == uuid.Nil {
		return "", apperr.Validation("missing_store", "storeId is required to connect "+string(provider))
	}
	if _, err := s.Stores.FetchOwnedStore(ctx, userID, storeID); err != nil {
		return "", err
	}

	state, err := s.Signer.Sign(ctx, oauthstate.Payload{UserID: userID, StoreID: storeID, Provider: provider})
	if err != nil {
		return "", apperr.Persistence("state 생성 실패", err)
	}

	s.log(ctx, storeID, provider, StateInitiated, models.LogStatusStarted, "")

	switch provider {
	case oauthstate.ProviderGitHub:
		return s.GitHub.AuthorizeURL(state), nil
	case oauthstate.ProviderVercel:
		return s.Vercel.AuthorizeURL(state), nil
	case oauthstate.ProviderStripe:
		return s.Stripe.ConnectAuthorizeURL(state, s.CallbackURL(provider)), nil
	}
	return "", apperr.Validation("unknown_provider", "unknown provider")
}

func (s *ConnectService) CallbackURL(provider oauthstate.Provider) string {
	return s.AppURL + "/api/auth/" + string(provider) + "/callback"
}

// HandleCallback 은 항상 리다이렉트 주소를 돌려줍니다. err 는 서버 로그용입니다.
func (s *ConnectService) HandleCallback(ctx context.Context, provider oauthstate.Provider, p CallbackParams) (string, error) {
	payload, err := s.Signer.Verify(ctx, p.State, provider)
	if err != nil {
		return s.failure(CodeInvalidState), err
	}
	storeID := payload.StoreID
	if storeID == uuid.Nil {
		return s.failure(CodeInvalidState), fmt.Errorf("%w: state without store", oauthstate.ErrInvalidState)
	}

	if p.ProviderError != "" {
		s.log(ctx, storeID, provider, StateError, models.LogStatusFailed, "provider returned "+p.ProviderError)
		return s.failure(CodeAccessDenied), fmt.Errorf("%s authorization denied: %s", provider, p.ProviderError)
	}
	if p.Code == "" {
		s.log(ctx, storeID, provider, StateError, models.LogStatusFailed, "missing code")
		return s.failure(CodeMissingCode), fmt.Errorf("%s callback without code", provider)
	}
	s.log(ctx, storeID, provider, StateCodeReceived, models.LogStatusStarted, "")

	var persist func() error
	switch provider {
	case oauthstate.ProviderGitHub:
		token, errEx := s.GitHub.ExchangeCode(ctx, p.Code)
		var login string
		if errEx == nil {
			login, errEx = s.GitHub.GetUserLogin(ctx, token)
		}
		err = errEx
		persist = func() error { return s.Users.SaveGitHubToken(ctx, payload.UserID, token, login) }

	case oauthstate.ProviderVercel:
		token, errEx := s.Vercel.ExchangeCode(ctx, p.Code)
		err = errEx
		persist = func() error { return s.Users.SaveVercelToken(ctx, payload.UserID, token.AccessToken, token.TeamID) }

	case oauthstate.ProviderStripe:
		accountID, errEx := s.Stripe.ExchangeConnectCode(ctx, p.Code)
		err = errEx
		persist = func() error { return s.Stores.SetStripeAccount(ctx, storeID, accountID) }

	default:
		return s.failure(CodeInvalidState), fmt.Errorf("%w: unknown provider", oauthstate.ErrInvalidState)
	}

	if err != nil {
		s.log(ctx, storeID, provider, StateError, models.LogStatusFailed, apperr.PublicMessage(err))
		return s.failure(CodeTokenExchangeFailed), fmt.Errorf("%w: %v", ErrTokenExchangeFailed, err)
	}
	s.log(ctx, storeID, provider, StateTokenExchanged, models.LogStatusStarted, "")

	if err := persist(); err != nil {
		s.log(ctx, storeID, provider, StateError, models.LogStatusFailed, "token storage failed")
		return s.failure(CodeTokenStorageFailed), fmt.Errorf("%w: %v", ErrTokenStorageFailed, err)
	}
	s.log(ctx, storeID, provider, StateTokenPersisted, models.LogStatusStarted, "")
	s.log(ctx, storeID, provider, StateDone, models.LogStatusSuccess, "")

	s.Logger.Info("oauth connected",
		zap.String("provider", string(provider)),
		zap.String("user_id", payload.UserID.String()),
	)
	return s.success(provider, storeID), nil
}

func (s *ConnectService) success(provider oauthstate.Provider, storeID uuid.UUID) string {
	q := url.Values{}
	q.Set(string(provider), "connected")
	q.Set("storeId", storeID.String())
	return s.AppURL + dashboardPath + "?" + q.Encode()
}

func (s *ConnectService) failure(code string) string {
	q := url.Values{}
	q.Set("error", code)
	return s.AppURL + dashboardPath + "?" + q.Encode()
}

func (s *ConnectService) log(ctx context.Context, storeID uuid.UUID, provider oauthstate.Provider, state FlowState, status models.EnumLogStatus, msg string) {
	s.Logs.Append(ctx, logservice.Entry{
		StoreID:  storeID,
		Step:     stepFor(provider),
		Status:   status,
		Message:  msg,
		Metadata: map[string]any{"provider": string(provider), "state": string(state)},
	})
}

func stepFor(provider oauthstate.Provider) string {
	switch provider {
	case oauthstate.ProviderGitHub:
		return logservice.StepGitHubOAuth
	case oauthstate.ProviderVercel:
		return logservice.StepVercelOAuth
	default:
		return logservice.StepStripeConnect
	}
}
