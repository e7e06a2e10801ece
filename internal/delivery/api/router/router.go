// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"showup/config"
	"showup/internal/delivery/api/middleware"
	"showup/internal/delivery/api/router/handler"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	AuthHandler       *handler.AuthHandler
	OnboardingHandler *handler.OnboardingHandler
	DiscoveryHandler  *handler.DiscoveryHandler
	PaymentHandler    *handler.PaymentHandler
	ChallengeHandler  *handler.ChallengeHandler
	DeviceHandler     *handler.DeviceHandler
	WaitlistHandler   *handler.WaitlistHandler
	OpsHandler        *handler.OpsHandler
	AuthMiddleware    *middleware.AuthMiddleware
	Config            *config.Config
}

// router holds all the handlers that need to be registered.
type router struct {
	authHandler       *handler.AuthHandler
	onboardingHandler *handler.OnboardingHandler
	discoveryHandler  *handler.DiscoveryHandler
	paymentHandler    *handler.PaymentHandler
	challengeHandler  *handler.ChallengeHandler
	deviceHandler     *handler.DeviceHandler
	waitlistHandler   *handler.WaitlistHandler
	opsHandler        *handler.OpsHandler
	authMiddleware    *middleware.AuthMiddleware
	config            *config.Config
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		authHandler:       params.AuthHandler,
		onboardingHandler: params.OnboardingHandler,
		discoveryHandler:  params.DiscoveryHandler,
		paymentHandler:    params.PaymentHandler,
		challengeHandler:  params.ChallengeHandler,
		deviceHandler:     params.DeviceHandler,
		waitlistHandler:   params.WaitlistHandler,
		opsHandler:        params.OpsHandler,
		authMiddleware:    params.AuthMiddleware,
		config:            params.Config,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	// Health check endpoint
	e.GET("/health", handler.HealthCheck)

	api := e.Group("/api")
	requireAuth := r.authMiddleware.Authenticate

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", r.authHandler.Register)
		authGroup.POST("/login", r.authHandler.Login)
		authGroup.POST("/refresh", r.authHandler.Refresh)
		authGroup.POST("/logout", r.authHandler.Logout)
		authGroup.GET("/me", r.authHandler.Me, requireAuth)
	}

	onboardingGroup := api.Group("/onboarding", requireAuth)
	{
		onboardingGroup.GET("/session", r.onboardingHandler.GetSession)
		onboardingGroup.PATCH("/session", r.onboardingHandler.UpdateSession)
		onboardingGroup.DELETE("/session", r.onboardingHandler.AbandonSession)
		onboardingGroup.POST("/terms", r.onboardingHandler.AcceptTerms)
		onboardingGroup.POST("/complete", r.onboardingHandler.Complete)

		onboardingGroup.POST("/ai-chat", r.discoveryHandler.SendMessage)
		onboardingGroup.PUT("/ai-chat", r.discoveryHandler.SelectSuggestion)
		onboardingGroup.GET("/ai-chat/:id", r.discoveryHandler.GetConversation)
	}

	// Session details and the webhook are reached without a bearer token.
	paymentsGroup := api.Group("/payments")
	{
		paymentsGroup.POST("/checkout", r.paymentHandler.Checkout, requireAuth)
		paymentsGroup.GET("/session", r.paymentHandler.SessionDetails)
		paymentsGroup.POST("/webhook", r.paymentHandler.Webhook)
		paymentsGroup.POST("/test-payment", r.paymentHandler.SimulatePayment, requireAuth)
		paymentsGroup.GET("/test-payment", r.paymentHandler.TestModeStatus)
	}

	challengesGroup := api.Group("/challenges", requireAuth)
	{
		challengesGroup.GET("", r.challengeHandler.List)
		challengesGroup.GET("/:id", r.challengeHandler.Get)
		challengesGroup.GET("/:id/invite-qr", r.challengeHandler.InviteQR)
	}

	devicesGroup := api.Group("/devices", requireAuth)
	{
		devicesGroup.POST("", r.deviceHandler.RegisterDevice)
		devicesGroup.GET("", r.deviceHandler.GetUserDevices)
		devicesGroup.DELETE("/:id", r.deviceHandler.DeactivateDevice)
	}

	api.POST("/waitlist", r.waitlistHandler.Join)
}

func (r *router) RegisterTestRoutes(e *echo.Echo) {
	// Operator routes - only enabled when configured
	if r.config.TestRoutes != nil && r.config.TestRoutes.Enabled {
		opsGroup := e.Group("/ops")
		opsGroup.GET("/onboarding/metrics", r.opsHandler.OnboardingMetrics)
		opsGroup.GET("/wallet", r.opsHandler.Wallet)
	}
}
