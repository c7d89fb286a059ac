package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	CookieName    = "authorization"
	ContextUserID = "user_id"
	SessionTTL    = 24 * time.Hour
	bearerPrefix  = "Bearer "
	sessionIssuer = "gosovereign"
)

var ErrInvalidSession = errors.New("invalid session token")

type sessionClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// IssueSession 은 로그인 쿠키에 들어갈 HS256 토큰을 만듭니다.
func IssueSession(secret string, userID uuid.UUID, now time.Time) (string, error) {
	claims := sessionClaims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func ParseSession(secret, raw string) (uuid.UUID, error) {
	var claims sessionClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired(), jwt.WithIssuer(sessionIssuer))
	if err != nil || !token.Valid {
		return uuid.Nil, ErrInvalidSession
	}

	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, ErrInvalidSession
	}
	return id, nil
}

// SetSessionCookie 값은 "Bearer <jwt>" 형식입니다.
func SetSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, bearerPrefix+token, int(SessionTTL.Seconds()), "/", "", true, true)
}

func ClearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, "", -1, "/", "", true, true)
}

// 쿠키가 우선이고, 없으면 Authorization 헤더를 봅니다.
func rawToken(c *gin.Context) (string, bool) {
	value, err := c.Cookie(CookieName)
	if err != nil || value == "" {
		value = c.GetHeader("Authorization")
	}
	if !strings.HasPrefix(value, bearerPrefix) {
		return "", false
	}
	return strings.TrimPrefix(value, bearerPrefix), true
}

func AuthGuard(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := rawToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		userID, err := ParseSession(secret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired session"})
			return
		}

		c.Set(ContextUserID, userID)
		c.Next()
	}
}

// OptionalAuth 는 유효한 세션이 있으면 user_id 를 넣고, 없어도 통과시킵니다.
func OptionalAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString, ok := rawToken(c); ok {
			if userID, err := ParseSession(secret, tokenString); err == nil {
				c.Set(ContextUserID, userID)
			}
		}
		c.Next()
	}
}

// UserID 는 AuthGuard/OptionalAuth 가 넣어둔 사용자 ID 를 꺼냅니다.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
