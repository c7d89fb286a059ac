package storeservice

import (
	"gosovereign/internal/models"

	"github.com/google/uuid"
)

type CreateStoreParams struct {
	UserID     uuid.UUID
	Name       string
	Subdomain  string // 비어 있으면 Name 에서 생성
	BrandColor string
}

// PendingUpdate 는 배포 트리거가 성공한 뒤 스토어에 기록할 값입니다.
type PendingUpdate struct {
	Provider     models.EnumHostingProvider
	RepoFullName string
	RepoURL      string
	ProjectID    string
	DeploymentID string
}
