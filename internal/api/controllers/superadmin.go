package controllers

import (
	"context"
	"net/http"

	"gosovereign/internal/middleware"
	adminservice "gosovereign/internal/services/admin_service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type StoreAdmin interface {
	ResetPassword(ctx context.Context, storeID uuid.UUID) (*adminservice.ResetResult, error)
	SetPassword(ctx context.Context, storeID uuid.UUID, password string) error
}

type SuperAdminController struct {
	admin  StoreAdmin
	apiKey string
	logger *zap.Logger
}

func NewSuperAdminController(admin StoreAdmin, apiKey string, logger *zap.Logger) *SuperAdminController {
	return &SuperAdminController{admin: admin, apiKey: apiKey, logger: logger}
}

func (s *SuperAdminController) RegisterRoutes(r *gin.RouterGroup) {
	sa := r.Group("/superadmin", middleware.SuperAdminGuard(s.apiKey))
	sa.POST("/stores/:id/reset-password", s.ResetPassword)
	sa.POST("/stores/:id/set-password", s.SetPassword)
}

func (s *SuperAdminController) ResetPassword(c *gin.Context) {
	storeID, err := parseStoreID(c.Param("id"))
	if err != nil {
		respondError(c, s.logger, err)
		return
	}

	res, err := s.admin.ResetPassword(c.Request.Context(), storeID)
	if err != nil {
		respondError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type setPasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

func (s *SuperAdminController) SetPassword(c *gin.Context) {
	storeID, err := parseStoreID(c.Param("id"))
	if err != nil {
		respondError(c, s.logger, err)
		return
	}

	var req setPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password is required"})
		return
	}

	if err := s.admin.SetPassword(c.Request.Context(), storeID, req.Password); err != nil {
		respondError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
