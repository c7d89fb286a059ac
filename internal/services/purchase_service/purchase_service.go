package purchaseservice

import (
	"context"
	"errors"

	"gosovereign/internal/apperr"
	"gosovereign/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PurchaseService struct {
	db *gorm.DB
}

func NewPurchaseService(db *gorm.DB) *PurchaseService {
	return &PurchaseService{db: db}
}

// RecordPurchase 는 checkout 세션 ID 기준으로 한 번만 기록합니다.
// 웹훅이 재전송되면 created=false 를 돌려줍니다.
func (s *PurchaseService) RecordPurchase(ctx context.Context, p *models.Purchase) (bool, error) {
	if p.StripeCheckoutSessionID == "" {
		return false, apperr.Validation("missing_session", "checkout session id is required")
	}
	if p.Status == "" {
		p.Status = models.PurchaseStatusPaid
	}

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "stripe_checkout_session_id"}},
			DoNothing: true,
		}).
		Create(p)
	if res.Error != nil {
		return false, apperr.Persistence("결제 기록 실패", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *PurchaseService) FetchBySession(ctx context.Context, sessionID string) (*models.Purchase, error) {
	var p models.Purchase
	if err := s.db.WithContext(ctx).Where("stripe_checkout_session_id = ?", sessionID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("purchase_not_found", "purchase not found")
		}
		return nil, apperr.Persistence("결제 조회 실패", err)
	}
	return &p, nil
}
