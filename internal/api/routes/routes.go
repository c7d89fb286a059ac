package routes

import (
	controllers "gosovereign/internal/api/controllers"
	"gosovereign/internal/middleware"

	gin "github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Controllers struct {
	Health     *controllers.HealthController
	Auth       *controllers.AuthController
	User       *controllers.UserController
	Store      *controllers.StoreController
	Connect    *controllers.ConnectController
	Deploy     *controllers.DeployController
	Checkout   *controllers.CheckoutController
	SuperAdmin *controllers.SuperAdminController
}

func SetupRouter(logger *zap.Logger, c Controllers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger), middleware.RequestScreen(logger))

	// Health Check
	c.Health.RegisterRoutes(r.Group("/"))

	// API Group
	api := r.Group("/api")
	c.Auth.RegisterRoutes(api)
	c.User.RegisterRoutes(api)
	c.Store.RegisterRoutes(api)
	c.Connect.RegisterRoutes(api)
	c.Deploy.RegisterRoutes(api)
	c.Checkout.RegisterRoutes(api)
	c.SuperAdmin.RegisterRoutes(api)

	return r
}
