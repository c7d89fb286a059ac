package controllers

import (
	"context"
	"net/http"
	"net/url"

	"gosovereign/internal/apperr"
	"gosovereign/internal/middleware"
	"gosovereign/internal/oauthstate"
	connectservice "gosovereign/internal/services/connect_service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Connector interface {
	Begin(ctx context.Context, provider oauthstate.Provider, userID, storeID uuid.UUID) (string, error)
	HandleCallback(ctx context.Context, provider oauthstate.Provider, p connectservice.CallbackParams) (string, error)
}

// ConnectController 는 브라우저 리다이렉트 흐름이라 JSON 에러를 쓰지 않습니다.
type ConnectController struct {
	connector Connector
	appURL    string
	jwtSecret string
	logger    *zap.Logger
}

func NewConnectController(connector Connector, appURL, jwtSecret string, logger *zap.Logger) *ConnectController {
	return &ConnectController{connector: connector, appURL: appURL, jwtSecret: jwtSecret, logger: logger}
}

var connectProviders = []oauthstate.Provider{
	oauthstate.ProviderGitHub,
	oauthstate.ProviderVercel,
	oauthstate.ProviderStripe,
}

func (cc *ConnectController) RegisterRoutes(r *gin.RouterGroup) {
	deploy := r.Group("/deploy", middleware.OptionalAuth(cc.jwtSecret))
	auth := r.Group("/auth")
	for _, p := range connectProviders {
		deploy.GET("/"+string(p), cc.begin(p))
		auth.GET("/"+string(p)+"/callback", cc.callback(p))
	}
}

func (cc *ConnectController) begin(provider oauthstate.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			c.Redirect(http.StatusFound, cc.appURL+"/login?next="+url.QueryEscape("/dashboard/deploy"))
			return
		}

		raw := c.Query("storeId")
		if raw == "" {
			c.Redirect(http.StatusFound, cc.failure("missing_store"))
			return
		}
		storeID, err := uuid.Parse(raw)
		if err != nil {
			c.Redirect(http.StatusFound, cc.failure("invalid_store_id"))
			return
		}

		target, err := cc.connector.Begin(c.Request.Context(), provider, userID, storeID)
		if err != nil {
			cc.logger.Warn("oauth begin failed", zap.String("provider", string(provider)), zap.Error(err))
			c.Redirect(http.StatusFound, cc.failure(apperr.CodeOf(err, "internal_error")))
			return
		}
		c.Redirect(http.StatusFound, target)
	}
}

func (cc *ConnectController) callback(provider oauthstate.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		target, err := cc.connector.HandleCallback(c.Request.Context(), provider, connectservice.CallbackParams{
			Code:          c.Query("code"),
			State:         c.Query("state"),
			ProviderError: c.Query("error"),
		})
		if err != nil {
			cc.logger.Warn("oauth callback failed", zap.String("provider", string(provider)), zap.Error(err))
		}
		c.Redirect(http.StatusFound, target)
	}
}

func (cc *ConnectController) failure(code string) string {
	return cc.appURL + "/dashboard/deploy?" + url.Values{"error": {code}}.Encode()
}
