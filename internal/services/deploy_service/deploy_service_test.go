package deployservice

import (
	"context"
	"errors"
	"testing"
	"time"

	"gosovereign/internal/apperr"
	"gosovereign/internal/models"
	"gosovereign/internal/pricing"
	githubservice "gosovereign/internal/services/github_service"
	"gosovereign/internal/services/hosting"
	logservice "gosovereign/internal/services/log_service"
	storeservice "gosovereign/internal/services/store_service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeUsers struct {
	user *models.User
}

func (f *fakeUsers) FetchUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if f.user == nil || f.user.ID != id {
		return nil, apperr.NotFound("user_not_found", "user not found")
	}
	u := *f.user
	return &u, nil
}

type fakeStores struct {
	store    *models.Store
	pending  *storeservice.PendingUpdate
	deployed int
	failed   int
	// 상태 전이 직전에 다른 요청이 끼어든 상황을 흉내냄
	beforeTransition func(*models.Store)
}

func (f *fakeStores) FetchOwnedStore(_ context.Context, userID, storeID uuid.UUID) (*models.Store, error) {
	if f.store == nil || f.store.ID != storeID || f.store.UserID != userID {
		return nil, apperr.NotFound("store_not_found", "store not found")
	}
	s := *f.store
	return &s, nil
}

func (f *fakeStores) MarkPending(_ context.Context, _ uuid.UUID, u storeservice.PendingUpdate) error {
	if f.store.Status != models.StoreStatusDraft {
		return apperr.Conflict("invalid_status", "store is not in draft status")
	}
	f.pending = &u
	f.store.Status = models.StoreStatusPending
	f.store.VercelDeploymentID = u.DeploymentID
	f.store.HostingProvider = u.Provider
	return nil
}

func (f *fakeStores) MarkDeployed(_ context.Context, _ uuid.UUID, url string, _ time.Time) (bool, error) {
	if f.beforeTransition != nil {
		f.beforeTransition(f.store)
	}
	if f.store.Status != models.StoreStatusPending {
		return false, nil
	}
	f.deployed++
	f.store.Status = models.StoreStatusDeployed
	f.store.DeploymentURL = url
	return true, nil
}

func (f *fakeStores) MarkFailed(_ context.Context, _ uuid.UUID) (bool, error) {
	if f.beforeTransition != nil {
		f.beforeTransition(f.store)
	}
	if f.store.Status != models.StoreStatusPending {
		return false, nil
	}
	f.failed++
	f.store.Status = models.StoreStatusFailed
	return true, nil
}

type fakeRepos struct {
	calls int
	err   error
}

func (f *fakeRepos) ProvisionRepository(_ context.Context, token, username, storeName string) (*githubservice.ProvisionResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &githubservice.ProvisionResult{Repository: &githubservice.Repository{
		ID:            42,
		FullName:      username + "/cafe-del-mar-store",
		HTMLURL:       "https://github.com/" + username + "/cafe-del-mar-store",
		Private:       true,
		DefaultBranch: "main",
	}}, nil
}

type fakeProvider struct {
	req       *hosting.Request
	deployErr error
	status    *hosting.Status
	statusN   int
}

func (f *fakeProvider) Deploy(_ context.Context, req hosting.Request) (*hosting.Result, error) {
	f.req = &req
	if f.deployErr != nil {
		return nil, f.deployErr
	}
	return &hosting.Result{ProjectID: "prj_1", DeploymentID: "dpl_1", URL: "https://cafe.vercel.app"}, nil
}

func (f *fakeProvider) Status(_ context.Context, _ string, _ hosting.Credentials) (*hosting.Status, error) {
	f.statusN++
	return f.status, nil
}

type fakeLogs struct {
	entries []logservice.Entry
}

func (f *fakeLogs) Append(_ context.Context, e logservice.Entry) {
	f.entries = append(f.entries, e)
}

func (f *fakeLogs) ListStoreLogs(_ context.Context, storeID uuid.UUID) ([]models.DeploymentLog, error) {
	var out []models.DeploymentLog
	for _, e := range f.entries {
		out = append(out, models.DeploymentLog{StoreID: e.StoreID, Step: e.Step, Status: e.Status})
	}
	return out, nil
}

func (f *fakeLogs) steps() []string {
	var out []string
	for _, e := range f.entries {
		out = append(out, e.Step+":"+string(e.Status))
	}
	return out
}

type fixture struct {
	svc     *DeployService
	user    *models.User
	stores  *fakeStores
	repos   *fakeRepos
	vercel  *fakeProvider
	k8s     *fakeProvider
	logs    *fakeLogs
	userID  uuid.UUID
	storeID uuid.UUID
}

func newFixture(t *testing.T, hostedEnabled bool) *fixture {
	t.Helper()
	userID, storeID := uuid.New(), uuid.New()
	user := &models.User{
		ID:                userID,
		HasPaid:           true,
		PaymentTier:       string(pricing.TierStarter),
		GitHubAccessToken: "gho_abc",
		GitHubUsername:    "octocat",
		VercelAccessToken: "vt_abc",
		VercelTeamID:      "team_1",
	}
	f := &fixture{
		user:    user,
		stores:  &fakeStores{store: &models.Store{ID: storeID, UserID: userID, Name: "Café Del Mar", Subdomain: "cafe-del-mar", BrandColor: "#112233", Status: models.StoreStatusDraft}},
		repos:   &fakeRepos{},
		vercel:  &fakeProvider{},
		k8s:     &fakeProvider{},
		logs:    &fakeLogs{},
		userID:  userID,
		storeID: storeID,
	}
	f.svc = NewDeployService(Deps{
		Users:  &fakeUsers{user: user},
		Stores: f.stores,
		Repos:  f.repos,
		Providers: map[models.EnumHostingProvider]hosting.Provider{
			models.HostingVercel:     f.vercel,
			models.HostingKubernetes: f.k8s,
		},
		Logs:          f.logs,
		HostedEnabled: hostedEnabled,
		RootDomain:    "gosovereign.store",
		APIURL:        "https://app.gosovereign.io",
		Now:           func() time.Time { return fixedNow },
		Logger:        zap.NewNop(),
	})
	return f
}

func TestTrigger_VercelHappyPath(t *testing.T) {
	f := newFixture(t, false)

	res, err := f.svc.Trigger(context.Background(), f.userID, f.storeID)
	require.NoError(t, err)

	assert.Equal(t, models.StoreStatusPending, res.Status)
	assert.Equal(t, models.HostingVercel, res.Provider)
	assert.Equal(t, "dpl_1", res.DeploymentID)
	assert.Equal(t, "octocat/cafe-del-mar-store", res.RepoFullName)

	require.NotNil(t, f.vercel.req)
	assert.Equal(t, "cafe-del-mar.gosovereign.store", f.vercel.req.Host)
	assert.Equal(t, int64(42), f.vercel.req.RepoID)
	assert.Equal(t, hosting.Credentials{Token: "vt_abc", TeamID: "team_1"}, f.vercel.req.Credentials)

	require.NotNil(t, f.stores.pending)
	assert.Equal(t, "prj_1", f.stores.pending.ProjectID)
	assert.Equal(t, "dpl_1", f.stores.pending.DeploymentID)

	assert.Equal(t, []string{
		"repository_provision:started",
		"repository_provision:success",
		"deployment_trigger:started",
		"project_setup:success",
		"deployment_trigger:success",
	}, f.logs.steps())
}

func TestTrigger_Preconditions(t *testing.T) {
	t.Run("not draft", func(t *testing.T) {
		f := newFixture(t, false)
		f.stores.store.Status = models.StoreStatusPending
		_, err := f.svc.Trigger(context.Background(), f.userID, f.storeID)
		assert.Equal(t, "invalid_status", apperr.CodeOf(err, ""))
	})

	t.Run("unpaid", func(t *testing.T) {
		f := newFixture(t, false)
		f.user.HasPaid = false
		_, err := f.svc.Trigger(context.Background(), f.userID, f.storeID)
		assert.Equal(t, apperr.KindPaymentRequired, apperr.KindOf(err))
	})

	t.Run("github missing", func(t *testing.T) {
		f := newFixture(t, false)
		f.user.GitHubAccessToken = ""
		_, err := f.svc.Trigger(context.Background(), f.userID, f.storeID)
		assert.Equal(t, "github_not_connected", apperr.CodeOf(err, ""))
	})

	t.Run("vercel missing", func(t *testing.T) {
		f := newFixture(t, false)
		f.user.VercelAccessToken = ""
		_, err := f.svc.Trigger(context.Background(), f.userID, f.storeID)
		assert.Equal(t, "vercel_not_connected", apperr.CodeOf(err, ""))
		assert.Zero(t, f.repos.calls)
	})

	t.Run("foreign store", func(t *testing.T) {
		f := newFixture(t, false)
		_, err := f.svc.Trigger(context.Background(), uuid.New(), f.storeID)
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	})
}

func TestTrigger_HostedTierUsesKubernetes(t *testing.T) {
	f := newFixture(t, true)
	f.user.PaymentTier = string(pricing.TierHosted)
	f.user.VercelAccessToken = ""

	res, err := f.svc.Trigger(context.Background(), f.userID, f.storeID)
	require.NoError(t, err)

	assert.Equal(t, models.HostingKubernetes, res.Provider)
	assert.Nil(t, f.vercel.req)
	require.NotNil(t, f.k8s.req)
	assert.Equal(t, "true", f.k8s.req.Env["NEXT_PUBLIC_FEATURE_PRIORITY_SUPPORT"])
}

func TestTrigger_HostedTierFallsBackToVercelWhenDisabled(t *testing.T) {
	f := newFixture(t, false)
	f.user.PaymentTier = string(pricing.TierHosted)

	res, err := f.svc.Trigger(context.Background(), f.userID, f.storeID)
	require.NoError(t, err)
	assert.Equal(t, models.HostingVercel, res.Provider)
}

func TestTrigger_FailureLeavesDraft(t *testing.T) {
	f := newFixture(t, false)
	f.vercel.deployErr = errors.New("boom")

	_, err := f.svc.Trigger(context.Background(), f.userID, f.storeID)
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
	assert.Equal(t, models.StoreStatusDraft, f.stores.store.Status)
	assert.Contains(t, f.logs.steps(), "deployment_trigger:failed")

	f.repos.err = apperr.Upstream("repo_generation_failed", "template not found", nil)
	_, err = f.svc.Trigger(context.Background(), f.userID, f.storeID)
	assert.Equal(t, "repo_generation_failed", apperr.CodeOf(err, ""))
	assert.Contains(t, f.logs.steps(), "repository_provision:failed")
}

func TestPollStatus_Transitions(t *testing.T) {
	t.Run("draft", func(t *testing.T) {
		f := newFixture(t, false)
		res, err := f.svc.PollStatus(context.Background(), f.userID, f.storeID)
		require.NoError(t, err)
		assert.Equal(t, StatusNotStarted, res.Status)
		assert.Zero(t, f.vercel.statusN)
	})

	t.Run("building keeps pending", func(t *testing.T) {
		f := newFixture(t, false)
		f.stores.store.Status = models.StoreStatusPending
		f.vercel.status = &hosting.Status{State: hosting.StateBuilding}

		res, err := f.svc.PollStatus(context.Background(), f.userID, f.storeID)
		require.NoError(t, err)
		assert.Equal(t, "BUILDING", res.Status)
		assert.Equal(t, models.StoreStatusPending, f.stores.store.Status)
	})

	t.Run("ready then short-circuit", func(t *testing.T) {
		f := newFixture(t, false)
		f.stores.store.Status = models.StoreStatusPending
		f.vercel.status = &hosting.Status{State: hosting.StateReady, URL: "https://cafe.vercel.app"}

		res, err := f.svc.PollStatus(context.Background(), f.userID, f.storeID)
		require.NoError(t, err)
		assert.Equal(t, "READY", res.Status)
		assert.Equal(t, "https://cafe.vercel.app", res.URL)
		assert.Equal(t, 1, f.stores.deployed)

		res, err = f.svc.PollStatus(context.Background(), f.userID, f.storeID)
		require.NoError(t, err)
		assert.Equal(t, "READY", res.Status)
		assert.Equal(t, 1, f.vercel.statusN)
		assert.Contains(t, f.logs.steps(), "deployment_complete:success")
	})

	t.Run("error marks failed", func(t *testing.T) {
		f := newFixture(t, false)
		f.stores.store.Status = models.StoreStatusPending
		f.vercel.status = &hosting.Status{State: hosting.StateError, Message: "Build failed"}

		res, err := f.svc.PollStatus(context.Background(), f.userID, f.storeID)
		require.NoError(t, err)
		assert.Equal(t, "ERROR", res.Status)
		assert.Equal(t, "Build failed", res.Error)
		assert.Empty(t, res.URL)
		assert.Equal(t, models.StoreStatusFailed, f.stores.store.Status)
		assert.Empty(t, f.stores.store.DeploymentURL)
		assert.Equal(t, 1, f.stores.failed)
		assert.Contains(t, f.logs.steps(), "deployment_complete:failed")
	})

	t.Run("ready after another poll failed the store", func(t *testing.T) {
		f := newFixture(t, false)
		f.stores.store.Status = models.StoreStatusPending
		f.stores.beforeTransition = func(s *models.Store) { s.Status = models.StoreStatusFailed }
		f.vercel.status = &hosting.Status{State: hosting.StateReady, URL: "https://cafe.vercel.app"}

		res, err := f.svc.PollStatus(context.Background(), f.userID, f.storeID)
		require.NoError(t, err)
		assert.Equal(t, "ERROR", res.Status)
		assert.Empty(t, res.URL)
		assert.Zero(t, f.stores.deployed)
		assert.NotContains(t, f.logs.steps(), "deployment_complete:success")
	})

	t.Run("error after another poll deployed the store", func(t *testing.T) {
		f := newFixture(t, false)
		f.stores.store.Status = models.StoreStatusPending
		f.stores.beforeTransition = func(s *models.Store) {
			s.Status = models.StoreStatusDeployed
			s.DeploymentURL = "https://cafe.gosovereign.store"
		}
		f.vercel.status = &hosting.Status{State: hosting.StateError}

		res, err := f.svc.PollStatus(context.Background(), f.userID, f.storeID)
		require.NoError(t, err)
		assert.Equal(t, "READY", res.Status)
		assert.Equal(t, "https://cafe.gosovereign.store", res.URL)
		assert.Zero(t, f.stores.failed)
		assert.Empty(t, f.logs.steps())
	})

	t.Run("canceled marks failed", func(t *testing.T) {
		f := newFixture(t, false)
		f.stores.store.Status = models.StoreStatusPending
		f.vercel.status = &hosting.Status{State: hosting.StateCanceled}

		res, err := f.svc.PollStatus(context.Background(), f.userID, f.storeID)
		require.NoError(t, err)
		assert.Equal(t, "CANCELED", res.Status)
		assert.Empty(t, res.URL)
		assert.Equal(t, models.StoreStatusFailed, f.stores.store.Status)

		res, err = f.svc.PollStatus(context.Background(), f.userID, f.storeID)
		require.NoError(t, err)
		assert.Equal(t, "ERROR", res.Status)
		assert.Equal(t, 1, f.vercel.statusN)
	})

	t.Run("kubernetes store ignores vercel token", func(t *testing.T) {
		f := newFixture(t, true)
		f.user.VercelAccessToken = ""
		f.stores.store.Status = models.StoreStatusPending
		f.stores.store.HostingProvider = models.HostingKubernetes
		f.k8s.status = &hosting.Status{State: hosting.StateReady}

		res, err := f.svc.PollStatus(context.Background(), f.userID, f.storeID)
		require.NoError(t, err)
		assert.Equal(t, "https://cafe-del-mar.gosovereign.store", res.URL)
	})
}

func TestListLogs_RequiresOwnership(t *testing.T) {
	f := newFixture(t, false)
	f.logs.Append(context.Background(), logservice.Entry{StoreID: f.storeID, Step: logservice.StepGitHubOAuth, Status: models.LogStatusSuccess})

	_, err := f.svc.ListLogs(context.Background(), uuid.New(), f.storeID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	logs, err := f.svc.ListLogs(context.Background(), f.userID, f.storeID)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestBuildEnv(t *testing.T) {
	store := &models.Store{ID: uuid.New(), Name: "Shop", Subdomain: "shop", BrandColor: "#000000"}

	env := BuildEnv(store, pricing.TierStarter, "https://app.gosovereign.io")
	assert.Equal(t, "shop", env["NEXT_PUBLIC_STORE_SUBDOMAIN"])
	assert.Equal(t, "starter", env["NEXT_PUBLIC_TIER"])
	assert.Equal(t, "false", env["NEXT_PUBLIC_FEATURE_ANALYTICS"])

	env = BuildEnv(store, pricing.TierPro, "")
	assert.Equal(t, "true", env["NEXT_PUBLIC_FEATURE_ANALYTICS"])
	assert.Equal(t, "false", env["NEXT_PUBLIC_FEATURE_PRIORITY_SUPPORT"])
}
