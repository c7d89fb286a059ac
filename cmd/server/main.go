package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gosovereign/internal/api/controllers"
	"gosovereign/internal/api/routes"
	"gosovereign/internal/cache"
	"gosovereign/internal/config"
	"gosovereign/internal/db"
	"gosovereign/internal/events"
	"gosovereign/internal/logger"
	"gosovereign/internal/mailer"
	"gosovereign/internal/models"
	"gosovereign/internal/oauthstate"
	"gosovereign/internal/pricing"
	adminservice "gosovereign/internal/services/admin_service"
	checkoutservice "gosovereign/internal/services/checkout_service"
	connectservice "gosovereign/internal/services/connect_service"
	deployservice "gosovereign/internal/services/deploy_service"
	githubservice "gosovereign/internal/services/github_service"
	"gosovereign/internal/services/hosting"
	"gosovereign/internal/services/k8s_service"
	logservice "gosovereign/internal/services/log_service"
	purchaseservice "gosovereign/internal/services/purchase_service"
	storeservice "gosovereign/internal/services/store_service"
	stripeservice "gosovereign/internal/services/stripe_service"
	userservice "gosovereign/internal/services/user_service"
	vercelservice "gosovereign/internal/services/vercel_service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// 1. 설정 로드 (Configuration)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	lg, err := logger.Init(logger.Config{Level: cfg.LogLevel, Dev: cfg.LogDev, Dir: cfg.LogDir})
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	if err := run(cfg, lg); err != nil {
		lg.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, lg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gin.SetMode(cfg.GinMode)

	if err := models.SetLogNode(cfg.NodeID); err != nil {
		return fmt.Errorf("snowflake node %d: %w", cfg.NodeID, err)
	}

	// 2. 데이터베이스 초기화 (Database Initialization)
	database, err := db.Open(cfg.DSN(), lg)
	if err != nil {
		return err
	}
	sqlDB, err := database.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	checks := []controllers.HealthCheck{{Name: "database", Check: sqlDB.PingContext}}

	// 3. 선택적 연동 (Redis, Kafka, SMTP, Kubernetes) - 변수가 비어 있으면 끕니다
	stateSecret := cfg.StateSecret
	if stateSecret == "" {
		stateSecret = cfg.JWTSecret
	}
	signerOpts := []oauthstate.Option{}
	if cfg.RedisURL != "" {
		client, err := cache.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer client.Close()
		nonces := cache.NewRedisNonceStore(client)
		signerOpts = append(signerOpts, oauthstate.WithNonceStore(nonces))
		checks = append(checks, controllers.HealthCheck{Name: "redis", Check: nonces.Ping})
		lg.Info("redis nonce store enabled")
	}
	signer := oauthstate.NewSigner(stateSecret, signerOpts...)

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.KafkaBroker != "" {
		publisher = events.NewKafkaPublisher(cfg.KafkaBroker, cfg.KafkaTopic, lg)
		lg.Info("kafka purchase events enabled", zap.String("topic", cfg.KafkaTopic))
	}
	defer publisher.Close()

	var sender mailer.Sender = mailer.NopSender{}
	if cfg.SMTPEnabled() {
		sender = mailer.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom)
	}

	// 4. 서비스 초기화 (Services)
	catalog := pricing.DefaultCatalog(cfg.DiscountEndsAt, cfg.BogoEndsAt)
	userService := userservice.NewUserService(database)
	storeService := storeservice.NewStoreService(database, catalog, time.Now)
	logService := logservice.NewLogService(database, lg)
	purchaseService := purchaseservice.NewPurchaseService(database)

	githubService := githubservice.NewGitHubService(githubservice.Options{
		ClientID:     cfg.GitHubClientID,
		ClientSecret: cfg.GitHubClientSecret,
		RedirectURL:  cfg.AppURL + "/api/auth/github/callback",
		TemplateRepo: cfg.GitHubTemplateRepo,
		APIURL:       cfg.GitHubAPIURL,
	}, lg)
	vercelService := vercelservice.NewVercelService(vercelservice.Options{
		ClientID:        cfg.VercelClientID,
		ClientSecret:    cfg.VercelClientSecret,
		RedirectURL:     cfg.AppURL + "/api/auth/vercel/callback",
		IntegrationSlug: cfg.VercelIntegrationSlug,
		APIURL:          cfg.VercelAPIURL,
	}, lg)
	stripeService := stripeservice.NewStripeService(stripeservice.Options{
		SecretKey:       cfg.StripeSecretKey,
		WebhookSecret:   cfg.StripeWebhookSecret,
		ConnectClientID: cfg.StripeConnectClientID,
	}, lg)

	providers := map[models.EnumHostingProvider]hosting.Provider{
		models.HostingVercel: vercelService,
	}
	if cfg.HostedEnabled {
		// K8sService는 hosted 요금제 스토어의 쿠버네티스 리소스 제어를 담당합니다.
		k8sService, err := k8s_service.NewK8sService(k8s_service.Options{
			TokenPath:   cfg.KubeTokenPath,
			ManifestDir: cfg.HostedManifestDir,
			Image:       cfg.HostedImage,
		}, lg)
		if err != nil {
			return fmt.Errorf("k8s: %w", err)
		}
		providers[models.HostingKubernetes] = k8sService
		checks = append(checks, controllers.HealthCheck{Name: "kubernetes", Check: func(ctx context.Context) error {
			_, err := k8sService.CheckConnectivity(ctx)
			return err
		}})
	}

	connectService := connectservice.NewConnectService(connectservice.Deps{
		Signer: signer,
		GitHub: githubService,
		Vercel: vercelService,
		Stripe: stripeService,
		Users:  userService,
		Stores: storeService,
		Logs:   logService,
		AppURL: cfg.AppURL,
		Logger: lg,
	})
	deployService := deployservice.NewDeployService(deployservice.Deps{
		Users:         userService,
		Stores:        storeService,
		Repos:         githubService,
		Providers:     providers,
		Logs:          logService,
		HostedEnabled: cfg.HostedEnabled,
		RootDomain:    cfg.StoreRootDomain,
		APIURL:        cfg.AppURL,
		Logger:        lg,
	})
	checkoutService := checkoutservice.NewCheckoutService(checkoutservice.Deps{
		Stripe:    stripeService,
		Users:     userService,
		Purchases: purchaseService,
		Events:    publisher,
		Catalog:   catalog,
		AppURL:    cfg.AppURL,
		Logger:    lg,
	})
	adminService := adminservice.NewAdminService(adminservice.Deps{
		Stores:     storeService,
		Users:      userService,
		Mailer:     sender,
		RootDomain: cfg.StoreRootDomain,
		Logger:     lg,
	})

	// 5. 라우터 설정 (Router)
	r := routes.SetupRouter(lg, routes.Controllers{
		Health:     controllers.NewHealthController(checks...),
		Auth:       controllers.NewAuthController(userService, cfg.JWTSecret, lg),
		User:       controllers.NewUserController(userService, cfg.JWTSecret, lg),
		Store:      controllers.NewStoreController(storeService, cfg.JWTSecret, lg),
		Connect:    controllers.NewConnectController(connectService, cfg.AppURL, cfg.JWTSecret, lg),
		Deploy:     controllers.NewDeployController(deployService, cfg.JWTSecret, lg),
		Checkout:   controllers.NewCheckoutController(checkoutService, cfg.JWTSecret, lg),
		SuperAdmin: controllers.NewSuperAdminController(adminService, cfg.SuperAdminAPIKey, lg),
	})

	// 6. 서버 시작 (Start Server)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		lg.Info("Starting server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	lg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
