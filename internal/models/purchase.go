package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EnumPurchaseStatus string

const (
	PurchaseStatusPaid EnumPurchaseStatus = "paid"
)

type Purchase struct {
	ID                      uuid.UUID          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID                  *uuid.UUID         `gorm:"column:user_id;type:uuid;index" json:"userId,omitempty"` // 비로그인 결제면 nil
	Email                   string             `gorm:"column:email" json:"email,omitempty"`
	Plan                    string             `gorm:"column:plan;not null" json:"plan"`
	Variant                 string             `gorm:"column:variant" json:"variant,omitempty"`
	Amount                  int64              `gorm:"column:amount;not null" json:"amount"` // cents
	Currency                string             `gorm:"column:currency;not null;default:usd" json:"currency"`
	Status                  EnumPurchaseStatus `gorm:"column:status;not null" json:"status"`
	StripeCheckoutSessionID string             `gorm:"column:stripe_checkout_session_id;not null;uniqueIndex" json:"stripeCheckoutSessionId"`
	CreatedAt               time.Time          `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (p *Purchase) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
