package controllers

import (
	"gosovereign/internal/apperr"
	"gosovereign/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// respondError 는 apperr 종류에 맞는 상태코드로 {"error": ...} 를 씁니다.
// 5xx 의 상세 원인은 응답에 싣지 않고 로그로만 남깁니다.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status := apperr.HTTPStatus(err)
	body := gin.H{"error": apperr.PublicMessage(err)}
	if status < 500 {
		if code := apperr.CodeOf(err, ""); code != "" {
			body["code"] = code
		}
	} else {
		logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.JSON(status, body)
}

// mustUser 는 AuthGuard 뒤에서만 호출합니다.
func mustUser(c *gin.Context) uuid.UUID {
	id, _ := middleware.UserID(c)
	return id
}

func parseStoreID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid_store_id", "storeId must be a valid id")
	}
	return id, nil
}
