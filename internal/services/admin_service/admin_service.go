package adminservice

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"time"

	"gosovereign/internal/apperr"
	"gosovereign/internal/mailer"
	"gosovereign/internal/models"
	"gosovereign/internal/validator"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultResetTTL = time.Hour

type StoreStore interface {
	FetchStore(ctx context.Context, storeID uuid.UUID) (*models.Store, error)
	SetAdminResetToken(ctx context.Context, storeID uuid.UUID, tokenHash string, expiresAt time.Time) error
	SetAdminPassword(ctx context.Context, storeID uuid.UUID, passwordHash string) error
}

type UserReader interface {
	FetchUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

type Deps struct {
	Stores     StoreStore
	Users      UserReader
	Mailer     mailer.Sender
	RootDomain string
	ResetTTL   time.Duration
	Now        func() time.Time
	Logger     *zap.Logger
}

type AdminService struct {
	Deps
}

func NewAdminService(deps Deps) *AdminService {
	if deps.ResetTTL <= 0 {
		deps.ResetTTL = DefaultResetTTL
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Mailer == nil {
		deps.Mailer = mailer.NopSender{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &AdminService{Deps: deps}
}

type ResetResult struct {
	Success   bool      `json:"success"`
	ResetURL  string    `json:"resetUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ResetPassword 는 스토어 관리자 비밀번호 재설정 링크를 발급합니다.
// DB 에는 토큰의 SHA-256 해시만 저장합니다.
func (s *AdminService) ResetPassword(ctx context.Context, storeID uuid.UUID) (*ResetResult, error) {
	store, err := s.Stores.FetchStore(ctx, storeID)
	if err != nil {
		return nil, err
	}

	token, err := newResetToken()
	if err != nil {
		return nil, fmt.Errorf("generate reset token: %w", err)
	}
	expiresAt := s.Now().Add(s.ResetTTL).UTC()

	if err := s.Stores.SetAdminResetToken(ctx, store.ID, HashToken(token), expiresAt); err != nil {
		return nil, err
	}

	resetURL := "https://" + store.Host(s.RootDomain) + "/admin/reset-password?token=" + url.QueryEscape(token)
	s.notifyOwner(ctx, store, resetURL, expiresAt)

	s.Logger.Info("store admin reset issued", zap.String("store_id", store.ID.String()), zap.Time("expires_at", expiresAt))
	return &ResetResult{Success: true, ResetURL: resetURL, ExpiresAt: expiresAt}, nil
}

// 메일 발송은 best-effort 입니다. 링크는 응답으로도 돌려줍니다.
func (s *AdminService) notifyOwner(ctx context.Context, store *models.Store, resetURL string, expiresAt time.Time) {
	owner, err := s.Users.FetchUserByID(ctx, store.UserID)
	if err != nil {
		s.Logger.Warn("reset mail skipped: owner lookup failed", zap.String("store_id", store.ID.String()), zap.Error(err))
		return
	}

	body := fmt.Sprintf("A password reset was requested for the admin of %q.\n\nReset link: %s\n\nThis link expires at %s.\n",
		store.Name, resetURL, expiresAt.Format(time.RFC1123))
	if err := s.Mailer.Send(ctx, owner.Email, "Reset your store admin password", body); err != nil {
		s.Logger.Warn("reset mail failed", zap.String("store_id", store.ID.String()), zap.Error(err))
	}
}

func (s *AdminService) SetPassword(ctx context.Context, storeID uuid.UUID, password string) error {
	if err := validator.ValidatePassword(password); err != nil {
		return apperr.Validation("invalid_password", err.Error())
	}

	hash, err := models.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	if err := s.Stores.SetAdminPassword(ctx, storeID, hash); err != nil {
		return err
	}

	s.Logger.Info("store admin password set", zap.String("store_id", storeID.String()))
	return nil
}

func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func newResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
