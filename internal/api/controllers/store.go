package controllers

import (
	"context"
	"net/http"

	"gosovereign/internal/middleware"
	"gosovereign/internal/models"
	"gosovereign/internal/slug"
	storeservice "gosovereign/internal/services/store_service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type StoreManager interface {
	CreateStore(ctx context.Context, params storeservice.CreateStoreParams) (*models.Store, error)
	FetchUserStores(ctx context.Context, userID uuid.UUID) ([]models.Store, error)
	FetchOwnedStore(ctx context.Context, userID, storeID uuid.UUID) (*models.Store, error)
	SubdomainExists(ctx context.Context, subdomain string) (bool, error)
}

type StoreController struct {
	stores    StoreManager
	jwtSecret string
	logger    *zap.Logger
}

func NewStoreController(stores StoreManager, jwtSecret string, logger *zap.Logger) *StoreController {
	return &StoreController{stores: stores, jwtSecret: jwtSecret, logger: logger}
}

func (s *StoreController) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/subdomain/check", s.CheckSubdomain)

	stores := r.Group("/stores", middleware.AuthGuard(s.jwtSecret))
	stores.POST("", s.CreateStore)
	stores.GET("", s.ListStores)
	stores.GET("/:id", s.GetStore)
}

type createStoreRequest struct {
	Name       string `json:"name" binding:"required"`
	Subdomain  string `json:"subdomain"`
	BrandColor string `json:"brandColor"`
}

func (s *StoreController) CreateStore(c *gin.Context) {
	var req createStoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "store name is required"})
		return
	}

	store, err := s.stores.CreateStore(c.Request.Context(), storeservice.CreateStoreParams{
		UserID:     mustUser(c),
		Name:       req.Name,
		Subdomain:  req.Subdomain,
		BrandColor: req.BrandColor,
	})
	if err != nil {
		respondError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"store": store})
}

func (s *StoreController) ListStores(c *gin.Context) {
	stores, err := s.stores.FetchUserStores(c.Request.Context(), mustUser(c))
	if err != nil {
		respondError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stores": stores})
}

func (s *StoreController) GetStore(c *gin.Context) {
	storeID, err := parseStoreID(c.Param("id"))
	if err != nil {
		respondError(c, s.logger, err)
		return
	}

	store, err := s.stores.FetchOwnedStore(c.Request.Context(), mustUser(c), storeID)
	if err != nil {
		respondError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"store": store})
}

// CheckSubdomain 은 안내용입니다. 최종 판정은 스토어 생성 시 unique index 가 합니다.
func (s *StoreController) CheckSubdomain(c *gin.Context) {
	subdomain, code := slug.CheckSubdomain(c.Query("subdomain"))
	if code != "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"available": false,
			"subdomain": subdomain,
			"error":     slug.Message(code),
		})
		return
	}

	exists, err := s.stores.SubdomainExists(c.Request.Context(), subdomain)
	if err != nil {
		respondError(c, s.logger, err)
		return
	}

	resp := gin.H{"available": !exists, "subdomain": subdomain}
	if exists {
		resp["error"] = "This subdomain is already taken"
	}
	c.JSON(http.StatusOK, resp)
}
