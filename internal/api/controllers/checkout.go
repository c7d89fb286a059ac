package controllers

import (
	"context"
	"io"
	"net/http"

	"gosovereign/internal/middleware"
	checkoutservice "gosovereign/internal/services/checkout_service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxWebhookBody = 64 << 10

type Checkout interface {
	CreateSession(ctx context.Context, params checkoutservice.CreateSessionParams) (*checkoutservice.SessionResult, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
	SessionStatus(ctx context.Context, sessionID string) (*checkoutservice.SessionStatusResult, error)
}

type CheckoutController struct {
	checkout  Checkout
	jwtSecret string
	logger    *zap.Logger
}

func NewCheckoutController(checkout Checkout, jwtSecret string, logger *zap.Logger) *CheckoutController {
	return &CheckoutController{checkout: checkout, jwtSecret: jwtSecret, logger: logger}
}

func (cc *CheckoutController) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/checkout", middleware.OptionalAuth(cc.jwtSecret), cc.CreateSession)
	r.GET("/checkout/session", cc.SessionStatus)
	r.POST("/webhooks/stripe", cc.Webhook)
}

type checkoutRequest struct {
	Plan    string `json:"plan" binding:"required"`
	Variant string `json:"variant"`
}

func (cc *CheckoutController) CreateSession(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "plan is required", "code": "invalid_plan"})
		return
	}

	params := checkoutservice.CreateSessionParams{Plan: req.Plan, Variant: req.Variant}
	if userID, ok := middleware.UserID(c); ok {
		params.UserID = &userID
	}

	res, err := cc.checkout.CreateSession(c.Request.Context(), params)
	if err != nil {
		respondError(c, cc.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Webhook 서명 검증에 원본 바이트가 필요하므로 바인딩하지 않고 그대로 읽습니다.
func (cc *CheckoutController) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
		return
	}

	if err := cc.checkout.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		respondError(c, cc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// SessionStatus GET /api/checkout/session?session_id=
func (cc *CheckoutController) SessionStatus(c *gin.Context) {
	res, err := cc.checkout.SessionStatus(c.Request.Context(), c.Query("session_id"))
	if err != nil {
		respondError(c, cc.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
