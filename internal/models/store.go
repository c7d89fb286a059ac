package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EnumStoreStatus string

// 상태는 앞으로만 진행합니다: draft -> pending -> deployed | failed
const (
	StoreStatusDraft    EnumStoreStatus = "draft"
	StoreStatusPending  EnumStoreStatus = "pending"
	StoreStatusDeployed EnumStoreStatus = "deployed"
	StoreStatusFailed   EnumStoreStatus = "failed"
)

type EnumHostingProvider string

const (
	HostingVercel     EnumHostingProvider = "vercel"
	HostingKubernetes EnumHostingProvider = "kubernetes"
)

// Store 구조체는 고객을 위해 프로비저닝된 스토어프론트 정보를 추적합니다.
type Store struct {
	ID                  uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID              uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index" json:"userId"` // 소유한 사용자의 ID
	Name                string              `gorm:"column:name;not null" json:"name"`
	Subdomain           string              `gorm:"column:subdomain;not null;uniqueIndex" json:"subdomain"` // 전역 유일
	BrandColor          string              `gorm:"column:brand_color" json:"brandColor,omitempty"`
	Status              EnumStoreStatus     `gorm:"column:status;not null;default:draft" json:"status"`
	HostingProvider     EnumHostingProvider `gorm:"column:hosting_provider" json:"hostingProvider,omitempty"`
	RepoFullName        string              `gorm:"column:repo_full_name" json:"repoFullName,omitempty"`
	RepoURL             string              `gorm:"column:repo_url" json:"repoUrl,omitempty"`
	VercelProjectID     string              `gorm:"column:vercel_project_id" json:"-"`
	VercelDeploymentID  string              `gorm:"column:vercel_deployment_id" json:"deploymentId,omitempty"`
	DeploymentURL       string              `gorm:"column:deployment_url" json:"deploymentUrl,omitempty"`
	DeployedAt          *time.Time          `gorm:"column:deployed_at" json:"deployedAt,omitempty"`
	StripeAccountID     string              `gorm:"column:stripe_account_id" json:"stripeAccountId,omitempty"`
	AdminPasswordHash   string              `gorm:"column:admin_password_hash" json:"-"`
	AdminResetTokenHash string              `gorm:"column:admin_reset_token_hash" json:"-"`
	AdminResetExpiresAt *time.Time          `gorm:"column:admin_reset_expires_at" json:"-"`
	CreatedAt           time.Time           `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt           time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (s *Store) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Host 는 스토어의 공개 호스트명입니다 (예: cafe-del-mar.gosovereign.store).
func (s *Store) Host(rootDomain string) string {
	return s.Subdomain + "." + rootDomain
}
