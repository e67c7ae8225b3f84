package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/sumire/todoshare/internal/changefeed"
	"github.com/sumire/todoshare/internal/service"
)

// Services are the backend operations exposed over HTTP.
type Services struct {
	Auth          *service.AuthService
	Tasks         *service.TaskService
	Sharing       *service.SharingService
	Notifications *service.NotificationService
	Profiles      *service.ProfileService
	Feed          changefeed.Subscriber
}

// NewRouter builds the echo instance with middleware and every /api/v1 route.
func NewRouter(svc Services, allowedOrigins []string, logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewAppValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(logger)

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(RequestLogger(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderContentType},
		ExposeHeaders:    []string{echo.HeaderXRequestID},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	e.GET("/health", func(c echo.Context) error {
		return JSON(c, http.StatusOK, map[string]string{"status": "ok"})
	})

	authHandler := NewAuthHandler(svc.Auth)
	taskHandler := NewTaskHandler(svc.Tasks, svc.Sharing)
	notificationHandler := NewNotificationHandler(svc.Notifications)
	profileHandler := NewProfileHandler(svc.Profiles)
	eventsHandler := NewEventsHandler(svc.Feed, logger)

	api := e.Group("/api/v1")

	// Auth routes (public)
	auth := api.Group("/auth")
	auth.POST("/signup", authHandler.SignUp)
	auth.POST("/signin", authHandler.SignIn)
	auth.POST("/refresh", authHandler.Refresh)
	auth.GET("/google", authHandler.GoogleRedirect)
	auth.GET("/google/callback", authHandler.GoogleCallback)
	auth.GET("/github", authHandler.GitHubRedirect)
	auth.GET("/github/callback", authHandler.GitHubCallback)

	// Protected routes
	protected := api.Group("", JWTAuth(svc.Auth))
	protected.GET("/auth/me", authHandler.Me)
	protected.POST("/auth/signout", authHandler.SignOut)

	protected.POST("/profiles", profileHandler.Create)
	protected.GET("/profiles", profileHandler.FindByEmail)

	protected.GET("/todos", taskHandler.List)
	protected.POST("/todos", taskHandler.Create)
	protected.PATCH("/todos/:id", taskHandler.Update)
	protected.DELETE("/todos/:id", taskHandler.Delete)
	protected.PUT("/todos/:id/completed", taskHandler.SetCompleted)
	protected.POST("/todos/:id/share", taskHandler.Share)

	protected.GET("/notifications", notificationHandler.List)
	protected.GET("/notifications/unread_count", notificationHandler.UnreadCount)
	protected.POST("/notifications/read", notificationHandler.MarkAllRead)
	protected.POST("/notifications/:id/read", notificationHandler.MarkRead)

	protected.GET("/events", eventsHandler.Stream)

	return e
}
