package controllers

import (
	"context"
	"net/http"
	"time"

	"gosovereign/internal/middleware"
	"gosovereign/internal/models"
	userservice "gosovereign/internal/services/user_service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AccountService interface {
	CreateUser(ctx context.Context, params userservice.CreateUserParams) (*models.User, error)
	AuthenticateUser(ctx context.Context, email, password string) (*models.User, error)
	FetchUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

type AuthController struct {
	users     AccountService
	jwtSecret string
	now       func() time.Time
	logger    *zap.Logger
}

func NewAuthController(users AccountService, jwtSecret string, logger *zap.Logger) *AuthController {
	return &AuthController{users: users, jwtSecret: jwtSecret, now: time.Now, logger: logger}
}

func (a *AuthController) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	auth.POST("/signup", a.Signup)
	auth.POST("/login", a.Login)
	auth.POST("/logout", a.Logout)
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (a *AuthController) Signup(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	user, err := a.users.CreateUser(c.Request.Context(), userservice.CreateUserParams{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, a.logger, err)
		return
	}

	if !a.startSession(c, user.ID) {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

func (a *AuthController) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	user, err := a.users.AuthenticateUser(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, a.logger, err)
		return
	}

	if !a.startSession(c, user.ID) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (a *AuthController) Logout(c *gin.Context) {
	middleware.ClearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (a *AuthController) startSession(c *gin.Context, userID uuid.UUID) bool {
	token, err := middleware.IssueSession(a.jwtSecret, userID, a.now())
	if err != nil {
		a.logger.Error("session token signing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return false
	}
	middleware.SetSessionCookie(c, token)
	return true
}
