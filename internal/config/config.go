package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config 구조체는 애플리케이션 설정을 저장합니다.
// 모든 값은 환경 변수에서만 읽습니다 (다른 설정 포맷 없음).
type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`          // 서버가 실행될 포트
	GinMode  string `env:"GIN_MODE" envDefault:"release"`   // Gin 모드 (debug/release)
	AppURL   string `env:"NEXT_PUBLIC_APP_URL" envDefault:"http://localhost:3000"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogDev   bool   `env:"LOG_DEV"`
	LogDir   string `env:"LOG_DIR"`                       // 비어 있으면 stdout 만 사용
	NodeID   int64  `env:"SNOWFLAKE_NODE" envDefault:"1"` // 배포 로그 ID 용, 인스턴스마다 달라야 함

	DatabaseURL string `env:"DATABASE_URL"` // 설정되면 DB_* 보다 우선
	DB_Name     string `env:"DB_NAME" envDefault:"postgres"`
	DB_User     string `env:"DB_USER" envDefault:"postgres"`
	DB_Password string `env:"DB_PASSWORD" envDefault:"postgres"`
	DB_Host     string `env:"DB_HOST" envDefault:"localhost"`
	DB_Port     string `env:"DB_PORT" envDefault:"5432"`

	JWTSecret        string `env:"JWT_SECRET"`
	StateSecret      string `env:"OAUTH_STATE_SECRET"`
	SuperAdminAPIKey string `env:"SUPER_ADMIN_API_KEY"`

	GitHubClientID     string `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `env:"GITHUB_CLIENT_SECRET"`
	GitHubTemplateRepo string `env:"GITHUB_TEMPLATE_REPO" envDefault:"gosovereign/store-template"`
	GitHubAPIURL       string `env:"GITHUB_API_URL" envDefault:"https://api.github.com"`

	VercelClientID        string `env:"VERCEL_CLIENT_ID"`
	VercelClientSecret    string `env:"VERCEL_CLIENT_SECRET"`
	VercelIntegrationSlug string `env:"VERCEL_INTEGRATION_SLUG" envDefault:"gosovereign"`
	VercelAPIURL          string `env:"VERCEL_API_URL" envDefault:"https://api.vercel.com"`

	StripeSecretKey       string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret   string `env:"STRIPE_WEBHOOK_SECRET"`
	StripeConnectClientID string `env:"STRIPE_CONNECT_CLIENT_ID"`

	StoreRootDomain string    `env:"STORE_ROOT_DOMAIN" envDefault:"gosovereign.store"`
	DiscountEndsAt  time.Time `env:"DISCOUNT_ENDS_AT"` // RFC3339, zero 이면 할인 없음
	BogoEndsAt      time.Time `env:"BOGO_ENDS_AT"`     // RFC3339, zero 이면 프로모션 없음

	RedisURL    string `env:"REDIS_URL"`
	KafkaBroker string `env:"KAFKA_BROKER"`
	KafkaTopic  string `env:"KAFKA_TOPIC" envDefault:"successful_payments"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     string `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	MailFrom     string `env:"MAIL_FROM"`

	// hosted 요금제용 쿠버네티스 배포 설정
	HostedEnabled     bool   `env:"HOSTED_ENABLED"`
	HostedManifestDir string `env:"HOSTED_MANIFEST_DIR" envDefault:"yaml-data/store-app"`
	HostedImage       string `env:"HOSTED_IMAGE" envDefault:"ghcr.io/gosovereign/store-template:latest"`
	KubeTokenPath     string `env:"KUBE_TOKEN_PATH" envDefault:"/mnt/secrets/token"`
}

// Load 함수는 환경 변수에서 설정을 읽어 Config 구조체를 반환합니다.
func Load() (*Config, error) {
	// .env 파일 로드 (로컬 개발 환경용)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (로컬 .env 파일 없음 - 환경 변수 사용)")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// DSN 은 gorm postgres 드라이버에 넘길 접속 문자열을 만듭니다.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		c.DB_Host, c.DB_User, c.DB_Password, c.DB_Name, c.DB_Port)
}

func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != "" && c.MailFrom != ""
}
