package controllers

import (
	"net/http"

	"gosovereign/internal/middleware"
	"gosovereign/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type UserController struct {
	users     AccountService
	jwtSecret string
	logger    *zap.Logger
}

func NewUserController(users AccountService, jwtSecret string, logger *zap.Logger) *UserController {
	return &UserController{users: users, jwtSecret: jwtSecret, logger: logger}
}

// RegisterRoutes /api/users
func (u *UserController) RegisterRoutes(r *gin.RouterGroup) {
	users := r.Group("/users", middleware.AuthGuard(u.jwtSecret))
	users.GET("/me", u.GetMe)
}

type meResponse struct {
	*models.User
	GitHubConnected bool `json:"githubConnected"`
	VercelConnected bool `json:"vercelConnected"`
}

func (u *UserController) GetMe(c *gin.Context) {
	user, err := u.users.FetchUserByID(c.Request.Context(), mustUser(c))
	if err != nil {
		respondError(c, u.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": meResponse{
		User:            user,
		GitHubConnected: user.GitHubConnected(),
		VercelConnected: user.VercelConnected(),
	}})
}
