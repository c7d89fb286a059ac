package githubservice

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gosovereign/internal/apperr"
	"gosovereign/internal/slug"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	DefaultAPIURL   = "https://api.github.com"
	DefaultOAuthURL = "https://github.com"
)

type Options struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	TemplateRepo string // owner/name
	APIURL       string
	OAuthURL     string
}

type Repository struct {
	ID            int64  `json:"id"`
	FullName      string `json:"full_name"`
	HTMLURL       string `json:"html_url"`
	Private       bool   `json:"private"`
	DefaultBranch string `json:"default_branch"`
}

type User struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

type apiError struct {
	Message string `json:"message"`
}

// ProvisionResult 는 재실행 시 Reused=true 로 같은 저장소를 돌려줍니다.
type ProvisionResult struct {
	Repository *Repository
	Reused     bool
}

type GitHubService struct {
	oauth        *oauth2.Config
	client       *resty.Client
	templateRepo string
	logger       *zap.Logger
}

func NewGitHubService(opts Options, logger *zap.Logger) *GitHubService {
	if opts.APIURL == "" {
		opts.APIURL = DefaultAPIURL
	}
	if opts.OAuthURL == "" {
		opts.OAuthURL = DefaultOAuthURL
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.APIURL, "/")).
		SetTimeout(15*time.Second).
		SetHeader("Accept", "application/vnd.github+json").
		SetHeader("X-GitHub-Api-Version", "2022-11-28")

	return &GitHubService{
		oauth: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURL,
			Scopes:       []string{"repo", "read:user"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  opts.OAuthURL + "/login/oauth/authorize",
				TokenURL: opts.OAuthURL + "/login/oauth/access_token",
			},
		},
		client:       client,
		templateRepo: opts.TemplateRepo,
		logger:       logger,
	}
}

func (s *GitHubService) AuthorizeURL(state string) string {
	return s.oauth.AuthCodeURL(state)
}

// ExchangeCode 는 인가 코드를 액세스 토큰으로 바꿉니다. 응답의 error 필드도 실패로 취급합니다.
func (s *GitHubService) ExchangeCode(ctx context.Context, code string) (string, error) {
	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return "", apperr.Upstream("token_exchange_failed", "github token exchange failed", err)
	}
	return token.AccessToken, nil
}

func (s *GitHubService) GetUser(ctx context.Context, token string) (*User, error) {
	var user User
	var apiErr apiError
	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(&user).
		SetError(&apiErr).
		Get("/user")
	if err != nil {
		return nil, apperr.Upstream("github_unreachable", "github is unreachable", err)
	}
	if resp.IsError() {
		return nil, apperr.Upstream("github_error", providerMessage(apiErr, resp), nil)
	}
	return &user, nil
}

func (s *GitHubService) GetUserLogin(ctx context.Context, token string) (string, error) {
	user, err := s.GetUser(ctx, token)
	if err != nil {
		return "", err
	}
	return user.Login, nil
}

// GetRepository returns nil without error when the repository does not exist.
func (s *GitHubService) GetRepository(ctx context.Context, token, owner, name string) (*Repository, error) {
	var repo Repository
	var apiErr apiError
	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetPathParams(map[string]string{"owner": owner, "repo": name}).
		SetResult(&repo).
		SetError(&apiErr).
		Get("/repos/{owner}/{repo}")
	if err != nil {
		return nil, apperr.Upstream("github_unreachable", "github is unreachable", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if resp.IsError() {
		return nil, apperr.Upstream("github_error", providerMessage(apiErr, resp), nil)
	}
	return &repo, nil
}

func (s *GitHubService) GenerateFromTemplate(ctx context.Context, token, owner, name, description string) (*Repository, error) {
	templateOwner, templateName, ok := strings.Cut(s.templateRepo, "/")
	if !ok {
		return nil, apperr.Upstream("template_misconfigured", "template repository is not configured", nil)
	}

	var repo Repository
	var apiErr apiError
	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetPathParams(map[string]string{"owner": templateOwner, "repo": templateName}).
		SetBody(map[string]any{
			"owner":                owner,
			"name":                 name,
			"description":          description,
			"private":              true,
			"include_all_branches": false,
		}).
		SetResult(&repo).
		SetError(&apiErr).
		Post("/repos/{owner}/{repo}/generate")
	if err != nil {
		return nil, apperr.Upstream("github_unreachable", "github is unreachable", err)
	}
	if resp.IsError() {
		return nil, apperr.Upstream("repo_generation_failed", providerMessage(apiErr, resp), nil)
	}
	return &repo, nil
}

// ProvisionRepository 는 <slug>-store 저장소를 재사용하거나 템플릿에서 새로 만듭니다.
// 재시도는 하지 않습니다.
func (s *GitHubService) ProvisionRepository(ctx context.Context, token, username, storeName string) (*ProvisionResult, error) {
	name := slug.RepoName(storeName)

	existing, err := s.GetRepository(ctx, token, username, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.logger.Info("github repository reused", zap.String("repo", existing.FullName))
		return &ProvisionResult{Repository: existing, Reused: true}, nil
	}

	repo, err := s.GenerateFromTemplate(ctx, token, username, name, fmt.Sprintf("%s storefront", storeName))
	if err != nil {
		s.logger.Error("github repository generation failed",
			zap.String("owner", username),
			zap.String("repo", name),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("github repository generated", zap.String("repo", repo.FullName))
	return &ProvisionResult{Repository: repo}, nil
}

func providerMessage(apiErr apiError, resp *resty.Response) string {
	if apiErr.Message != "" {
		return "github: " + apiErr.Message
	}
	return fmt.Sprintf("github: unexpected status %d", resp.StatusCode())
}
