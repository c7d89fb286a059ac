package userservice

import (
	"context"
	"errors"
	"strings"
	"time"

	"gosovereign/internal/apperr"
	"gosovereign/internal/models"
	"gosovereign/internal/validator"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

type CreateUserParams struct {
	Email    string
	Password string
}

// CreateUser 는 이메일/비밀번호로 계정을 만듭니다. 비밀번호 해시는 응답 전에 지웁니다.
func (s *UserService) CreateUser(ctx context.Context, params CreateUserParams) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))
	if err := validator.ValidateEmail(email); err != nil {
		return nil, apperr.Validation("invalid_email", err.Error())
	}
	if err := validator.ValidatePassword(params.Password); err != nil {
		return nil, apperr.Validation("invalid_password", err.Error())
	}

	hashedPassword, err := models.HashPassword(params.Password)
	if err != nil {
		return nil, apperr.Persistence("비밀번호 해싱 실패", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hashedPassword,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("email_taken", "an account with this email already exists")
		}
		return nil, apperr.Persistence("유저 생성 실패", err)
	}

	user.PasswordHash = ""
	return user, nil
}

// AuthenticateUser 함수는 이메일과 비밀번호를 받아 유저를 인증하고 반환합니다.
func (s *UserService) AuthenticateUser(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.FetchUserByEmail(ctx, email)
	if err != nil {
		// 계정 존재 여부를 노출하지 않음
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.Unauthorized("invalid email or password")
		}
		return nil, err
	}

	// 비밀번호 확인
	if !user.CheckPassword(password) {
		return nil, apperr.Unauthorized("invalid email or password")
	}

	user.PasswordHash = ""
	return user, nil
}

func (s *UserService) FetchUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user_not_found", "user not found")
		}
		return nil, apperr.Persistence("유저 조회 실패", err)
	}
	return &user, nil
}

func (s *UserService) FetchUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user_not_found", "user not found")
		}
		return nil, apperr.Persistence("유저 조회 실패", err)
	}
	return &user, nil
}

// SaveGitHubToken 은 GitHub 토큰과 사용자명을 유저 행에 기록합니다.
func (s *UserService) SaveGitHubToken(ctx context.Context, userID uuid.UUID, token, username string) error {
	return s.update(ctx, userID, map[string]any{
		"github_access_token": token,
		"github_username":     username,
	})
}

func (s *UserService) SaveVercelToken(ctx context.Context, userID uuid.UUID, token, teamID string) error {
	return s.update(ctx, userID, map[string]any{
		"vercel_access_token": token,
		"vercel_team_id":      teamID,
	})
}

// MarkPaid 는 결제 완료를 기록합니다. 결제 웹훅에서만 호출됩니다.
func (s *UserService) MarkPaid(ctx context.Context, userID uuid.UUID, tier, stripeCustomerID string, paidAt time.Time) error {
	fields := map[string]any{
		"has_paid":     true,
		"payment_tier": tier,
		"paid_at":      paidAt,
	}
	if stripeCustomerID != "" {
		fields["stripe_customer_id"] = stripeCustomerID
	}
	return s.update(ctx, userID, fields)
}

func (s *UserService) update(ctx context.Context, userID uuid.UUID, fields map[string]any) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(fields)
	if res.Error != nil {
		return apperr.Persistence("유저 업데이트 실패", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("user_not_found", "user not found")
	}
	return nil
}
