package middleware

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// screenEngine 은 요청 경로에 대한 규칙 기반 검사기입니다.
// API 경로는 고정 세그먼트와 UUID 뿐이라 경로만 검사합니다. 쿼리에는 OAuth code/state 가 실립니다.
type screenEngine struct {
	pathTraversal        *regexp.Regexp
	sqlInjectionPatterns []*regexp.Regexp
	xssPatterns          []*regexp.Regexp
	obfuscationPatterns  []*regexp.Regexp
}

func newScreenEngine() *screenEngine {
	return &screenEngine{
		// 상위 디렉토리 접근 시도
		pathTraversal: regexp.MustCompile(`(\.\.(\/|\\)|\.\.$)`),
		sqlInjectionPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(union\s+select|select\s+.*\s+from|insert\s+into|delete\s+from|drop\s+table|update\s+.*\s+set)`),
			regexp.MustCompile(`(--|\#|\/\*|\*\/|;|'|")`),
		},
		xssPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(<script|<\/script>|<iframe|<object|<embed|<img)`),
			regexp.MustCompile(`(?i)(javascript:|vbscript:|data:text\/html)`),
		},
		obfuscationPatterns: []*regexp.Regexp{
			regexp.MustCompile(`[^\x20-\x7E]{5,}`), // 연속된 비출력 문자
			regexp.MustCompile(`(?i)(eval\(|exec\(|shell_exec|passthru)`),
		},
	}
}

// Analyze 반환: 안전 여부, 차단 사유
func (se *screenEngine) Analyze(path string) (bool, string) {
	if se.pathTraversal.MatchString(path) {
		return false, "path traversal detected"
	}
	for _, pattern := range se.sqlInjectionPatterns {
		if pattern.MatchString(path) {
			return false, "sql injection detected"
		}
	}
	for _, pattern := range se.xssPatterns {
		if pattern.MatchString(path) {
			return false, "xss detected"
		}
	}
	for _, pattern := range se.obfuscationPatterns {
		if pattern.MatchString(path) {
			return false, "suspicious payload detected"
		}
	}
	return true, ""
}

// RequestScreen 은 의심스러운 경로의 요청을 라우팅 전에 403 으로 끊습니다.
func RequestScreen(logger *zap.Logger) gin.HandlerFunc {
	engine := newScreenEngine()
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if ok, reason := engine.Analyze(path); !ok {
			logger.Warn("request blocked",
				zap.String("ip", c.ClientIP()),
				zap.String("method", c.Request.Method),
				zap.String("path", path),
				zap.String("user_agent", c.Request.UserAgent()),
				zap.String("reason", reason),
			)
			c.Header("X-Block-Reason", reason)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "request blocked"})
			return
		}
		c.Next()
	}
}
