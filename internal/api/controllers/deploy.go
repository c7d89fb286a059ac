package controllers

import (
	"context"
	"net/http"

	"gosovereign/internal/middleware"
	"gosovereign/internal/models"
	deployservice "gosovereign/internal/services/deploy_service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Deployer interface {
	Trigger(ctx context.Context, userID, storeID uuid.UUID) (*deployservice.TriggerResult, error)
	PollStatus(ctx context.Context, userID, storeID uuid.UUID) (*deployservice.StatusResult, error)
	ListLogs(ctx context.Context, userID, storeID uuid.UUID) ([]models.DeploymentLog, error)
}

type DeployController struct {
	deployer  Deployer
	jwtSecret string
	logger    *zap.Logger
}

func NewDeployController(deployer Deployer, jwtSecret string, logger *zap.Logger) *DeployController {
	return &DeployController{deployer: deployer, jwtSecret: jwtSecret, logger: logger}
}

func (d *DeployController) RegisterRoutes(r *gin.RouterGroup) {
	deploy := r.Group("/deploy", middleware.AuthGuard(d.jwtSecret))
	deploy.POST("/trigger", d.Trigger)
	deploy.GET("/status", d.Status)
	deploy.GET("/logs", d.Logs)
}

type triggerRequest struct {
	StoreID string `json:"storeId" binding:"required"`
}

func (d *DeployController) Trigger(c *gin.Context) {
	var req triggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "storeId is required"})
		return
	}
	storeID, err := parseStoreID(req.StoreID)
	if err != nil {
		respondError(c, d.logger, err)
		return
	}

	res, err := d.deployer.Trigger(c.Request.Context(), mustUser(c), storeID)
	if err != nil {
		respondError(c, d.logger, err)
		return
	}
	c.JSON(http.StatusAccepted, res)
}

// Status 는 클라이언트가 주기적으로 호출합니다. 서버는 스케줄러를 두지 않습니다.
func (d *DeployController) Status(c *gin.Context) {
	storeID, err := parseStoreID(c.Query("storeId"))
	if err != nil {
		respondError(c, d.logger, err)
		return
	}

	res, err := d.deployer.PollStatus(c.Request.Context(), mustUser(c), storeID)
	if err != nil {
		respondError(c, d.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (d *DeployController) Logs(c *gin.Context) {
	storeID, err := parseStoreID(c.Query("storeId"))
	if err != nil {
		respondError(c, d.logger, err)
		return
	}

	logs, err := d.deployer.ListLogs(c.Request.Context(), mustUser(c), storeID)
	if err != nil {
		respondError(c, d.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}
