package logservice

import (
	"context"

	"gosovereign/internal/apperr"
	"gosovereign/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 배포 단계 이름
const (
	StepGitHubOAuth         = "github_oauth"
	StepVercelOAuth         = "vercel_oauth"
	StepStripeConnect       = "stripe_connect"
	StepRepositoryProvision = "repository_provision"
	StepProjectSetup        = "project_setup"
	StepDeploymentTrigger   = "deployment_trigger"
	StepDeploymentComplete  = "deployment_complete"
)

type Entry struct {
	StoreID  uuid.UUID
	Step     string
	Status   models.EnumLogStatus
	Message  string
	Metadata map[string]any
}

type LogService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewLogService(db *gorm.DB, logger *zap.Logger) *LogService {
	return &LogService{db: db, logger: logger}
}

// Append 는 감사 로그를 남깁니다. 실패해도 호출자의 흐름은 멈추지 않습니다.
func (s *LogService) Append(ctx context.Context, e Entry) {
	if e.StoreID == uuid.Nil {
		s.logger.Warn("deployment log without store dropped", zap.String("step", e.Step))
		return
	}

	row := models.DeploymentLog{
		StoreID: e.StoreID,
		Step:    e.Step,
		Status:  e.Status,
		Message: e.Message,
	}
	if len(e.Metadata) > 0 {
		row.Metadata = datatypes.JSONMap(e.Metadata)
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		s.logger.Warn("deployment log insert failed",
			zap.String("store_id", e.StoreID.String()),
			zap.String("step", e.Step),
			zap.Error(err),
		)
	}
}

// ListStoreLogs 는 기록된 순서(snowflake ID 순)대로 반환합니다.
func (s *LogService) ListStoreLogs(ctx context.Context, storeID uuid.UUID) ([]models.DeploymentLog, error) {
	var logs []models.DeploymentLog
	if err := s.db.WithContext(ctx).Where("store_id = ?", storeID).Order("id").Find(&logs).Error; err != nil {
		return nil, apperr.Persistence("배포 로그 조회 실패", err)
	}
	return logs, nil
}
