package vercelservice

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"gosovereign/internal/apperr"
	"gosovereign/internal/services/hosting"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	DefaultAPIURL  = "https://api.vercel.com"
	integrationURL = "https://vercel.com/integrations/%s/new"
)

type Options struct {
	ClientID        string
	ClientSecret    string
	RedirectURL     string
	IntegrationSlug string
	APIURL          string
}

// Token 은 OAuth 교환 결과입니다. TeamID 는 개인 계정이면 비어 있습니다.
type Token struct {
	AccessToken string
	TeamID      string
}

type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Deployment struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	ReadyState   string `json:"readyState"`
	ErrorMessage string `json:"errorMessage"`
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type envVar struct {
	Key    string   `json:"key"`
	Value  string   `json:"value"`
	Type   string   `json:"type"`
	Target []string `json:"target"`
}

type VercelService struct {
	oauth           *oauth2.Config
	client          *resty.Client
	integrationSlug string
	logger          *zap.Logger
}

var _ hosting.Provider = (*VercelService)(nil)

func NewVercelService(opts Options, logger *zap.Logger) *VercelService {
	if opts.APIURL == "" {
		opts.APIURL = DefaultAPIURL
	}
	base := strings.TrimRight(opts.APIURL, "/")

	return &VercelService{
		oauth: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURL,
			Endpoint: oauth2.Endpoint{
				TokenURL:  base + "/v2/oauth/access_token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		client: resty.New().
			SetBaseURL(base).
			SetTimeout(30*time.Second).
			SetHeader("Content-Type", "application/json"),
		integrationSlug: opts.IntegrationSlug,
		logger:          logger,
	}
}

// AuthorizeURL 은 Vercel integration 설치 화면 주소입니다.
func (s *VercelService) AuthorizeURL(state string) string {
	return fmt.Sprintf(integrationURL, url.PathEscape(s.integrationSlug)) + "?state=" + url.QueryEscape(state)
}

func (s *VercelService) ExchangeCode(ctx context.Context, code string) (*Token, error) {
	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, apperr.Upstream("token_exchange_failed", "vercel token exchange failed", err)
	}

	t := &Token{AccessToken: token.AccessToken}
	if teamID, ok := token.Extra("team_id").(string); ok {
		t.TeamID = teamID
	}
	return t, nil
}

func (s *VercelService) request(ctx context.Context, creds hosting.Credentials) *resty.Request {
	r := s.client.R().SetContext(ctx).SetAuthToken(creds.Token)
	if creds.TeamID != "" {
		r.SetQueryParam("teamId", creds.TeamID)
	}
	return r
}

// EnsureProject 는 프로젝트를 만들고, 이미 있으면(409) 기존 프로젝트를 조회해서 씁니다.
func (s *VercelService) EnsureProject(ctx context.Context, creds hosting.Credentials, name, repoFullName string) (*Project, error) {
	var project Project
	var apiErr apiError
	resp, err := s.request(ctx, creds).
		SetBody(map[string]any{
			"name":      name,
			"framework": "nextjs",
			"gitRepository": map[string]string{
				"type": "github",
				"repo": repoFullName,
			},
		}).
		SetResult(&project).
		SetError(&apiErr).
		Post("/v10/projects")
	if err != nil {
		return nil, apperr.Upstream("vercel_unreachable", "vercel is unreachable", err)
	}

	if resp.StatusCode() == http.StatusConflict {
		return s.GetProject(ctx, creds, name)
	}
	if resp.IsError() {
		return nil, apperr.Upstream("project_setup_failed", providerMessage(apiErr, resp), nil)
	}
	return &project, nil
}

func (s *VercelService) GetProject(ctx context.Context, creds hosting.Credentials, idOrName string) (*Project, error) {
	var project Project
	var apiErr apiError
	resp, err := s.request(ctx, creds).
		SetPathParam("project", idOrName).
		SetResult(&project).
		SetError(&apiErr).
		Get("/v9/projects/{project}")
	if err != nil {
		return nil, apperr.Upstream("vercel_unreachable", "vercel is unreachable", err)
	}
	if resp.IsError() {
		return nil, apperr.Upstream("project_setup_failed", providerMessage(apiErr, resp), nil)
	}
	return &project, nil
}

// UpsertEnv 는 production/preview 대상 환경 변수를 덮어씁니다.
func (s *VercelService) UpsertEnv(ctx context.Context, creds hosting.Credentials, projectID string, env map[string]string) error {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	vars := make([]envVar, 0, len(keys))
	for _, k := range keys {
		vars = append(vars, envVar{Key: k, Value: env[k], Type: "plain", Target: []string{"production", "preview"}})
	}

	var apiErr apiError
	resp, err := s.request(ctx, creds).
		SetPathParam("project", projectID).
		SetQueryParam("upsert", "true").
		SetBody(vars).
		SetError(&apiErr).
		Post("/v10/projects/{project}/env")
	if err != nil {
		return apperr.Upstream("vercel_unreachable", "vercel is unreachable", err)
	}
	if resp.IsError() {
		return apperr.Upstream("project_setup_failed", providerMessage(apiErr, resp), nil)
	}
	return nil
}

// AddDomain 은 이미 연결된 도메인(409)을 성공으로 봅니다.
func (s *VercelService) AddDomain(ctx context.Context, creds hosting.Credentials, projectID, domain string) error {
	var apiErr apiError
	resp, err := s.request(ctx, creds).
		SetPathParam("project", projectID).
		SetBody(map[string]string{"name": domain}).
		SetError(&apiErr).
		Post("/v10/projects/{project}/domains")
	if err != nil {
		return apperr.Upstream("vercel_unreachable", "vercel is unreachable", err)
	}
	if resp.StatusCode() == http.StatusConflict {
		return nil
	}
	if resp.IsError() {
		return apperr.Upstream("domain_setup_failed", providerMessage(apiErr, resp), nil)
	}
	return nil
}

func (s *VercelService) CreateDeployment(ctx context.Context, creds hosting.Credentials, project *Project, repoID int64, ref string) (*Deployment, error) {
	if ref == "" {
		ref = "main"
	}

	var dep Deployment
	var apiErr apiError
	resp, err := s.request(ctx, creds).
		SetBody(map[string]any{
			"name":    project.Name,
			"project": project.ID,
			"target":  "production",
			"gitSource": map[string]any{
				"type":   "github",
				"repoId": repoID,
				"ref":    ref,
			},
		}).
		SetResult(&dep).
		SetError(&apiErr).
		Post("/v13/deployments")
	if err != nil {
		return nil, apperr.Upstream("vercel_unreachable", "vercel is unreachable", err)
	}
	if resp.IsError() {
		return nil, apperr.Upstream("deployment_failed", providerMessage(apiErr, resp), nil)
	}
	return &dep, nil
}

func (s *VercelService) GetDeployment(ctx context.Context, creds hosting.Credentials, deploymentID string) (*Deployment, error) {
	var dep Deployment
	var apiErr apiError
	resp, err := s.request(ctx, creds).
		SetPathParam("id", deploymentID).
		SetResult(&dep).
		SetError(&apiErr).
		Get("/v13/deployments/{id}")
	if err != nil {
		return nil, apperr.Upstream("vercel_unreachable", "vercel is unreachable", err)
	}
	if resp.IsError() {
		return nil, apperr.Upstream("status_check_failed", providerMessage(apiErr, resp), nil)
	}
	return &dep, nil
}

// Deploy 프로젝트 준비 -> 환경 변수 -> 도메인 -> 배포 생성 순서로 진행합니다.
func (s *VercelService) Deploy(ctx context.Context, req hosting.Request) (*hosting.Result, error) {
	creds := req.Credentials
	projectName := req.RepoFullName[strings.LastIndex(req.RepoFullName, "/")+1:]

	project, err := s.EnsureProject(ctx, creds, projectName, req.RepoFullName)
	if err != nil {
		return nil, err
	}
	if err := s.UpsertEnv(ctx, creds, project.ID, req.Env); err != nil {
		return nil, err
	}
	if req.Host != "" {
		if err := s.AddDomain(ctx, creds, project.ID, req.Host); err != nil {
			return nil, err
		}
	}

	dep, err := s.CreateDeployment(ctx, creds, project, req.RepoID, req.DefaultBranch)
	if err != nil {
		return nil, err
	}

	s.logger.Info("vercel deployment created",
		zap.String("store_id", req.StoreID.String()),
		zap.String("project_id", project.ID),
		zap.String("deployment_id", dep.ID),
	)
	return &hosting.Result{ProjectID: project.ID, DeploymentID: dep.ID, URL: httpsURL(dep.URL)}, nil
}

func (s *VercelService) Status(ctx context.Context, deploymentID string, creds hosting.Credentials) (*hosting.Status, error) {
	dep, err := s.GetDeployment(ctx, creds, deploymentID)
	if err != nil {
		return nil, err
	}
	return &hosting.Status{
		State:   hosting.ReadyState(dep.ReadyState),
		URL:     httpsURL(dep.URL),
		Message: dep.ErrorMessage,
	}, nil
}

func httpsURL(host string) string {
	if host == "" || strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	return "https://" + host
}

func providerMessage(apiErr apiError, resp *resty.Response) string {
	if apiErr.Error.Message != "" {
		return "vercel: " + apiErr.Error.Message
	}
	return fmt.Sprintf("vercel: unexpected status %d", resp.StatusCode())
}
