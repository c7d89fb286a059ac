package models

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// User 구조체는 가입한 고객을 나타냅니다. PK Column name : id
// OAuth 토큰은 공급자별로 독립적이며 비어 있을 수 있습니다 (평문 저장, 운영시 암호화 필요).
type User struct {
	ID                 uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Email              string     `gorm:"column:email;uniqueIndex;not null" json:"email"`
	PasswordHash       string     `gorm:"column:password_hash;not null" json:"-"`
	GitHubAccessToken  string     `gorm:"column:github_access_token" json:"-"`
	GitHubUsername     string     `gorm:"column:github_username" json:"githubUsername,omitempty"`
	VercelAccessToken  string     `gorm:"column:vercel_access_token" json:"-"`
	VercelTeamID       string     `gorm:"column:vercel_team_id" json:"-"`
	StripeCustomerID   string     `gorm:"column:stripe_customer_id" json:"-"`
	HasPaid            bool       `gorm:"column:has_paid;not null;default:false" json:"hasPaid"`
	PaymentTier        string     `gorm:"column:payment_tier" json:"paymentTier,omitempty"`
	PaidAt             *time.Time `gorm:"column:paid_at" json:"paidAt,omitempty"`
	CreatedAt          time.Time  `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
	Stores             []Store    `gorm:"foreignKey:UserID" json:"-"` // 사용자가 소유한 스토어 목록
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (u *User) GitHubConnected() bool {
	return u.GitHubAccessToken != "" && u.GitHubUsername != ""
}

func (u *User) VercelConnected() bool {
	return u.VercelAccessToken != ""
}

// HashPassword 함수는 평문 비밀번호를 bcrypt 알고리즘을 사용하여 해시화합니다.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword 함수는 입력된 비밀번호가 저장된 해시와 일치하는지 확인합니다.
func (u *User) CheckPassword(password string) bool {
	return CheckPasswordHash(u.PasswordHash, password)
}

func CheckPasswordHash(hash, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
