package deployservice

import (
	"context"
	"strconv"
	"time"

	"gosovereign/internal/apperr"
	"gosovereign/internal/models"
	"gosovereign/internal/pricing"
	githubservice "gosovereign/internal/services/github_service"
	"gosovereign/internal/services/hosting"
	logservice "gosovereign/internal/services/log_service"
	storeservice "gosovereign/internal/services/store_service"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 폴링 응답에서 쓰는 상태값. 나머지는 공급자의 readyState 를 그대로 씁니다.
const StatusNotStarted = "not_started"

type UserReader interface {
	FetchUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

type StoreRepo interface {
	FetchOwnedStore(ctx context.Context, userID, storeID uuid.UUID) (*models.Store, error)
	MarkPending(ctx context.Context, storeID uuid.UUID, update storeservice.PendingUpdate) error
	MarkDeployed(ctx context.Context, storeID uuid.UUID, url string, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, storeID uuid.UUID) (bool, error)
}

type RepoProvisioner interface {
	ProvisionRepository(ctx context.Context, token, username, storeName string) (*githubservice.ProvisionResult, error)
}

type LogStore interface {
	Append(ctx context.Context, e logservice.Entry)
	ListStoreLogs(ctx context.Context, storeID uuid.UUID) ([]models.DeploymentLog, error)
}

type Deps struct {
	Users     UserReader
	Stores    StoreRepo
	Repos     RepoProvisioner
	Providers map[models.EnumHostingProvider]hosting.Provider
	Logs      LogStore

	HostedEnabled bool
	RootDomain    string
	APIURL        string
	Now           func() time.Time
	Logger        *zap.Logger
}

type DeployService struct {
	Deps
}

func NewDeployService(deps Deps) *DeployService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &DeployService{Deps: deps}
}

type TriggerResult struct {
	StoreID      uuid.UUID                  `json:"storeId"`
	Status       models.EnumStoreStatus     `json:"status"`
	Provider     models.EnumHostingProvider `json:"provider"`
	DeploymentID string                     `json:"deploymentId"`
	RepoFullName string                     `json:"repoFullName"`
	RepoURL      string                     `json:"repoUrl"`
	URL          string                     `json:"url,omitempty"`
}

type StatusResult struct {
	Status string `json:"status"`
	URL    string `json:"url,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Trigger 저장소 준비 -> 공급자 배포 생성 -> 스토어 pending 전이.
// pending 으로 옮기기 전 단계에서 실패하면 스토어는 draft 로 남아 다시 시도할 수 있습니다.
func (s *DeployService) Trigger(ctx context.Context, userID, storeID uuid.UUID) (*TriggerResult, error) {
	store, err := s.Stores.FetchOwnedStore(ctx, userID, storeID)
	if err != nil {
		return nil, err
	}
	if store.Status != models.StoreStatusDraft {
		return nil, apperr.Conflict("invalid_status", "deployment already started for this store")
	}

	user, err := s.Users.FetchUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.HasPaid {
		return nil, apperr.PaymentRequired("a paid plan is required to deploy")
	}
	if !user.GitHubConnected() {
		return nil, apperr.Validation("github_not_connected", "connect your GitHub account first")
	}

	tier := pricing.Tier(user.PaymentTier)
	providerName := s.selectProvider(tier)
	provider, ok := s.Providers[providerName]
	if !ok {
		return nil, apperr.Upstream("provider_unavailable", "hosting provider is not configured", nil)
	}
	creds := hosting.Credentials{}
	if providerName == models.HostingVercel {
		if !user.VercelConnected() {
			return nil, apperr.Validation("vercel_not_connected", "connect your Vercel account first")
		}
		creds = hosting.Credentials{Token: user.VercelAccessToken, TeamID: user.VercelTeamID}
	}

	// 1. 저장소
	s.log(ctx, store.ID, logservice.StepRepositoryProvision, models.LogStatusStarted, "", nil)
	provisioned, err := s.Repos.ProvisionRepository(ctx, user.GitHubAccessToken, user.GitHubUsername, store.Name)
	if err != nil {
		s.log(ctx, store.ID, logservice.StepRepositoryProvision, models.LogStatusFailed, apperr.PublicMessage(err), nil)
		return nil, err
	}
	repo := provisioned.Repository
	s.log(ctx, store.ID, logservice.StepRepositoryProvision, models.LogStatusSuccess, "", map[string]any{
		"repo":   repo.FullName,
		"reused": provisioned.Reused,
	})

	// 2. 배포 생성
	s.log(ctx, store.ID, logservice.StepDeploymentTrigger, models.LogStatusStarted, "", map[string]any{"provider": string(providerName)})
	res, err := provider.Deploy(ctx, hosting.Request{
		StoreID:       store.ID,
		StoreName:     store.Name,
		Subdomain:     store.Subdomain,
		Host:          store.Host(s.RootDomain),
		RepoID:        repo.ID,
		RepoFullName:  repo.FullName,
		DefaultBranch: repo.DefaultBranch,
		Env:           BuildEnv(store, tier, s.APIURL),
		Credentials:   creds,
	})
	if err != nil {
		s.log(ctx, store.ID, logservice.StepDeploymentTrigger, models.LogStatusFailed, apperr.PublicMessage(err), nil)
		s.Logger.Error("deployment trigger failed", zap.String("store_id", store.ID.String()), zap.Error(err))
		if _, ok := apperr.As(err); !ok {
			err = apperr.Upstream("deployment_failed", "deployment could not be created", err)
		}
		return nil, err
	}
	s.log(ctx, store.ID, logservice.StepProjectSetup, models.LogStatusSuccess, "", map[string]any{"project_id": res.ProjectID})

	// 3. 상태 전이 (draft 인 경우에만)
	if err := s.Stores.MarkPending(ctx, store.ID, storeservice.PendingUpdate{
		Provider:     providerName,
		RepoFullName: repo.FullName,
		RepoURL:      repo.HTMLURL,
		ProjectID:    res.ProjectID,
		DeploymentID: res.DeploymentID,
	}); err != nil {
		return nil, err
	}
	s.log(ctx, store.ID, logservice.StepDeploymentTrigger, models.LogStatusSuccess, "", map[string]any{"deployment_id": res.DeploymentID})

	return &TriggerResult{
		StoreID:      store.ID,
		Status:       models.StoreStatusPending,
		Provider:     providerName,
		DeploymentID: res.DeploymentID,
		RepoFullName: repo.FullName,
		RepoURL:      repo.HTMLURL,
		URL:          res.URL,
	}, nil
}

func (s *DeployService) selectProvider(tier pricing.Tier) models.EnumHostingProvider {
	if tier == pricing.TierHosted && s.HostedEnabled {
		if _, ok := s.Providers[models.HostingKubernetes]; ok {
			return models.HostingKubernetes
		}
	}
	return models.HostingVercel
}

// PollStatus 는 pending 인 경우에만 공급자에 질의합니다.
// deployed/failed 는 저장된 값으로 바로 응답합니다.
func (s *DeployService) PollStatus(ctx context.Context, userID, storeID uuid.UUID) (*StatusResult, error) {
	store, err := s.Stores.FetchOwnedStore(ctx, userID, storeID)
	if err != nil {
		return nil, err
	}

	if res := storedResult(store); res != nil {
		return res, nil
	}

	providerName := store.HostingProvider
	if providerName == "" {
		providerName = models.HostingVercel
	}
	provider, ok := s.Providers[providerName]
	if !ok {
		return nil, apperr.Upstream("provider_unavailable", "hosting provider is not configured", nil)
	}

	creds := hosting.Credentials{}
	if providerName == models.HostingVercel {
		user, err := s.Users.FetchUserByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !user.VercelConnected() {
			return nil, apperr.Validation("vercel_not_connected", "connect your Vercel account first")
		}
		creds = hosting.Credentials{Token: user.VercelAccessToken, TeamID: user.VercelTeamID}
	}

	st, err := provider.Status(ctx, store.VercelDeploymentID, creds)
	if err != nil {
		if _, ok := apperr.As(err); !ok {
			err = apperr.Upstream("status_check_failed", "deployment status is unavailable", err)
		}
		return nil, err
	}

	switch {
	case st.State == hosting.StateReady:
		url := st.URL
		if url == "" {
			url = "https://" + store.Host(s.RootDomain)
		}
		changed, err := s.Stores.MarkDeployed(ctx, store.ID, url, s.Now())
		if err != nil {
			return nil, err
		}
		if !changed {
			return s.reread(ctx, userID, storeID, st)
		}
		s.log(ctx, store.ID, logservice.StepDeploymentComplete, models.LogStatusSuccess, "", map[string]any{"url": url})
		return &StatusResult{Status: string(hosting.StateReady), URL: url}, nil

	case st.State.Failed():
		changed, err := s.Stores.MarkFailed(ctx, store.ID)
		if err != nil {
			return nil, err
		}
		if !changed {
			return s.reread(ctx, userID, storeID, st)
		}
		s.log(ctx, store.ID, logservice.StepDeploymentComplete, models.LogStatusFailed, st.Message, map[string]any{"state": string(st.State)})
		msg := st.Message
		if msg == "" {
			msg = "deployment failed"
		}
		return &StatusResult{Status: string(st.State), Error: msg}, nil
	}

	return &StatusResult{Status: string(st.State)}, nil
}

// reread 는 다른 요청이 먼저 상태를 바꿨을 때 저장된 값으로 응답합니다.
func (s *DeployService) reread(ctx context.Context, userID, storeID uuid.UUID, st *hosting.Status) (*StatusResult, error) {
	store, err := s.Stores.FetchOwnedStore(ctx, userID, storeID)
	if err != nil {
		return nil, err
	}
	if res := storedResult(store); res != nil {
		return res, nil
	}
	return &StatusResult{Status: string(st.State)}, nil
}

// storedResult 는 공급자에 묻지 않고 답할 수 있는 상태면 결과를, pending 이면 nil 을 돌려줍니다.
func storedResult(store *models.Store) *StatusResult {
	switch store.Status {
	case models.StoreStatusDraft:
		return &StatusResult{Status: StatusNotStarted}
	case models.StoreStatusDeployed:
		return &StatusResult{Status: string(hosting.StateReady), URL: store.DeploymentURL}
	case models.StoreStatusFailed:
		return &StatusResult{Status: string(hosting.StateError), Error: "deployment failed"}
	}
	return nil
}

func (s *DeployService) ListLogs(ctx context.Context, userID, storeID uuid.UUID) ([]models.DeploymentLog, error) {
	if _, err := s.Stores.FetchOwnedStore(ctx, userID, storeID); err != nil {
		return nil, err
	}
	return s.Logs.ListStoreLogs(ctx, storeID)
}

func (s *DeployService) log(ctx context.Context, storeID uuid.UUID, step string, status models.EnumLogStatus, msg string, meta map[string]any) {
	s.Logs.Append(ctx, logservice.Entry{StoreID: storeID, Step: step, Status: status, Message: msg, Metadata: meta})
}

// BuildEnv 는 배포된 스토어에 주입할 환경 변수입니다.
func BuildEnv(store *models.Store, tier pricing.Tier, apiURL string) map[string]string {
	f := pricing.FeaturesFor(tier)
	return map[string]string{
		"NEXT_PUBLIC_STORE_ID":                 store.ID.String(),
		"NEXT_PUBLIC_STORE_NAME":               store.Name,
		"NEXT_PUBLIC_STORE_SUBDOMAIN":          store.Subdomain,
		"NEXT_PUBLIC_BRAND_COLOR":              store.BrandColor,
		"NEXT_PUBLIC_TIER":                     string(tier),
		"NEXT_PUBLIC_API_URL":                  apiURL,
		"NEXT_PUBLIC_FEATURE_CUSTOM_DOMAIN":    strconv.FormatBool(f.CustomDomain),
		"NEXT_PUBLIC_FEATURE_ANALYTICS":        strconv.FormatBool(f.Analytics),
		"NEXT_PUBLIC_FEATURE_STRIPE_CONNECT":   strconv.FormatBool(f.StripeConnect),
		"NEXT_PUBLIC_FEATURE_PRIORITY_SUPPORT": strconv.FormatBool(f.PrioritySupport),
	}
}
