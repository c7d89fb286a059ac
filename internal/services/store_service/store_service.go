package storeservice

import (
	"context"
	"errors"
	"strings"
	"time"

	"gosovereign/internal/apperr"
	"gosovereign/internal/models"
	"gosovereign/internal/pricing"
	"gosovereign/internal/slug"
	"gosovereign/internal/validator"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type StoreService struct {
	db      *gorm.DB
	catalog pricing.Catalog
	now     func() time.Time
}

func NewStoreService(db *gorm.DB, catalog pricing.Catalog, now func() time.Time) *StoreService {
	if now == nil {
		now = time.Now
	}
	return &StoreService{db: db, catalog: catalog, now: now}
}

// CreateStore 는 draft 상태의 스토어를 만듭니다.
// 서브도메인 중복은 사전 조회가 아니라 unique index 위반으로만 판단합니다.
func (s *StoreService) CreateStore(ctx context.Context, params CreateStoreParams) (*models.Store, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, apperr.Validation("invalid_name", "store name is required")
	}
	if err := validator.ValidateBrandColor(params.BrandColor); err != nil {
		return nil, apperr.Validation("invalid_brand_color", err.Error())
	}

	raw := params.Subdomain
	if strings.TrimSpace(raw) == "" {
		raw = slug.Slugify(name)
	}
	subdomain, code := slug.CheckSubdomain(raw)
	if code != "" {
		return nil, apperr.Validation(code, slug.Message(code))
	}

	count, err := s.CountUserStores(ctx, params.UserID)
	if err != nil {
		return nil, err
	}
	if max := s.catalog.MaxStores(s.now()); count >= int64(max) {
		return nil, apperr.Conflict("store_limit_reached", "store limit reached for this account")
	}

	store := models.Store{
		UserID:     params.UserID,
		Name:       name,
		Subdomain:  subdomain,
		BrandColor: params.BrandColor,
		Status:     models.StoreStatusDraft,
	}
	if err := s.db.WithContext(ctx).Create(&store).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("subdomain_taken", "this subdomain is already taken")
		}
		return nil, apperr.Persistence("스토어 생성 실패", err)
	}

	return &store, nil
}

func (s *StoreService) CountUserStores(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Store{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return 0, apperr.Persistence("스토어 개수 조회 실패", err)
	}
	return count, nil
}

func (s *StoreService) FetchUserStores(ctx context.Context, userID uuid.UUID) ([]models.Store, error) {
	var stores []models.Store

	//유저 ID로 스토어 찾기
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at").Find(&stores).Error; err != nil {
		return nil, apperr.Persistence("스토어 목록 조회 실패", err)
	}
	return stores, nil
}

// FetchOwnedStore 는 소유자가 다르면 존재하지 않는 것과 똑같이 응답합니다.
func (s *StoreService) FetchOwnedStore(ctx context.Context, userID, storeID uuid.UUID) (*models.Store, error) {
	return s.first(ctx, "id = ? AND user_id = ?", storeID, userID)
}

func (s *StoreService) FetchStore(ctx context.Context, storeID uuid.UUID) (*models.Store, error) {
	return s.first(ctx, "id = ?", storeID)
}

func (s *StoreService) first(ctx context.Context, query string, args ...any) (*models.Store, error) {
	var store models.Store
	if err := s.db.WithContext(ctx).Where(query, args...).First(&store).Error; err != nil {
		//하나의 행도 발견 못하면, 다음과 같은 에러를 내뱉음 Gorm
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("store_not_found", "store not found")
		}
		return nil, apperr.Persistence("스토어 조회 실패", err)
	}
	return &store, nil
}

// SubdomainExists 는 안내용 조회입니다. 실제 중복 판정은 CreateStore 의 insert 가 합니다.
func (s *StoreService) SubdomainExists(ctx context.Context, subdomain string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Store{}).Where("subdomain = ?", subdomain).Count(&count).Error; err != nil {
		return false, apperr.Persistence("서브도메인 조회 실패", err)
	}
	return count > 0, nil
}

func (s *StoreService) SetStripeAccount(ctx context.Context, storeID uuid.UUID, accountID string) error {
	res := s.db.WithContext(ctx).Model(&models.Store{}).Where("id = ?", storeID).Update("stripe_account_id", accountID)
	if res.Error != nil {
		return apperr.Persistence("stripe 계정 저장 실패", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("store_not_found", "store not found")
	}
	return nil
}

// MarkPending 은 draft 인 스토어만 pending 으로 옮깁니다.
func (s *StoreService) MarkPending(ctx context.Context, storeID uuid.UUID, update PendingUpdate) error {
	res := s.db.WithContext(ctx).Model(&models.Store{}).
		Where("id = ? AND status = ?", storeID, models.StoreStatusDraft).
		Updates(map[string]any{
			"status":               models.StoreStatusPending,
			"hosting_provider":     update.Provider,
			"repo_full_name":       update.RepoFullName,
			"repo_url":             update.RepoURL,
			"vercel_project_id":    update.ProjectID,
			"vercel_deployment_id": update.DeploymentID,
		})
	if res.Error != nil {
		return apperr.Persistence("배포 상태 저장 실패", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict("invalid_status", "store is not in draft status")
	}
	return nil
}

// MarkDeployed 와 MarkFailed 는 pending 에서만 전이합니다.
// 반환값은 이번 호출이 실제로 상태를 바꿨는지 여부입니다.
func (s *StoreService) MarkDeployed(ctx context.Context, storeID uuid.UUID, url string, at time.Time) (bool, error) {
	return s.transition(ctx, storeID, map[string]any{
		"status":         models.StoreStatusDeployed,
		"deployment_url": url,
		"deployed_at":    at,
	})
}

func (s *StoreService) MarkFailed(ctx context.Context, storeID uuid.UUID) (bool, error) {
	return s.transition(ctx, storeID, map[string]any{
		"status": models.StoreStatusFailed,
	})
}

func (s *StoreService) transition(ctx context.Context, storeID uuid.UUID, fields map[string]any) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Store{}).
		Where("id = ? AND status = ?", storeID, models.StoreStatusPending).
		Updates(fields)
	if res.Error != nil {
		return false, apperr.Persistence("배포 상태 업데이트 실패", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *StoreService) SetAdminResetToken(ctx context.Context, storeID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	return s.update(ctx, storeID, map[string]any{
		"admin_reset_token_hash": tokenHash,
		"admin_reset_expires_at": expiresAt,
	})
}

// SetAdminPassword 는 비밀번호를 바꾸고 남아있는 재설정 토큰을 무효화합니다.
func (s *StoreService) SetAdminPassword(ctx context.Context, storeID uuid.UUID, passwordHash string) error {
	return s.update(ctx, storeID, map[string]any{
		"admin_password_hash":    passwordHash,
		"admin_reset_token_hash": "",
		"admin_reset_expires_at": nil,
	})
}

func (s *StoreService) update(ctx context.Context, storeID uuid.UUID, fields map[string]any) error {
	res := s.db.WithContext(ctx).Model(&models.Store{}).Where("id = ?", storeID).Updates(fields)
	if res.Error != nil {
		return apperr.Persistence("스토어 업데이트 실패", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("store_not_found", "store not found")
	}
	return nil
}
