package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dcastano/framevault-backend/api/controllers"
	"github.com/dcastano/framevault-backend/api/middleware"
	"github.com/dcastano/framevault-backend/internal/auth"
	"github.com/dcastano/framevault-backend/internal/library"
	"github.com/dcastano/framevault-backend/internal/notifications"
	"github.com/dcastano/framevault-backend/internal/users"
	"github.com/dcastano/framevault-backend/pkg/auth/session"
	"github.com/dcastano/framevault-backend/pkg/config"
	"github.com/dcastano/framevault-backend/pkg/db"
	"github.com/dcastano/framevault-backend/pkg/logger"
	"github.com/dcastano/framevault-backend/pkg/redis"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessionManager sessionManager,
	authService auth.Service,
	registerService auth.RegisterService,
	libraryService *library.Service,
	notificationsService notifications.Service,
	usersRepo *users.Repository,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
		r.Post("/validate", controllers.PublicValidate(logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(authService, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg)).Post("/register", controllers.AuthRegister(registerService, authService, logg))
		r.Post("/logout", controllers.AuthLogout(sessionManager, cfg.JWT, logg))
		r.Post("/refresh", controllers.AuthRefresh(sessionManager, cfg.JWT, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessionManager, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/v1/me", func(r chi.Router) {
			r.Get("/", controllers.MeProfile(usersRepo, logg))
			r.Get("/storage", controllers.MeStorage(libraryService, logg))
		})

		r.Route("/v1/albums", func(r chi.Router) {
			r.Get("/", controllers.AlbumList(libraryService, logg))
			r.Post("/", controllers.AlbumCreate(libraryService, logg))
			r.Get("/{albumID}", controllers.AlbumContents(libraryService, logg))
			r.Patch("/{albumID}", controllers.AlbumRename(libraryService, logg))
			r.Delete("/{albumID}", controllers.AlbumDelete(libraryService, logg))
		})

		r.Route("/v1/uploads", func(r chi.Router) {
			r.Post("/init", controllers.UploadInit(libraryService, logg))
			r.Post("/complete", controllers.UploadComplete(libraryService, logg))
		})

		r.Route("/v1/media", func(r chi.Router) {
			r.Post("/move", controllers.MediaMove(libraryService, logg))
			r.Post("/delete", controllers.MediaDelete(libraryService, logg))
			r.Post("/download-urls", controllers.MediaDownloadURLs(libraryService, logg))
		})

		r.Route("/v1/notifications", func(r chi.Router) {
			r.Get("/", controllers.NotificationList(notificationsService, logg))
			r.Post("/{notificationID}/read", controllers.NotificationMarkRead(notificationsService, logg))
			r.Post("/read-all", controllers.NotificationMarkAllRead(notificationsService, logg))
		})

		r.Route("/v1/tags", func(r chi.Router) {
			r.Get("/", controllers.TagList(libraryService, logg))
			r.Post("/share", controllers.TagShare(libraryService, logg))
			r.Post("/{index}/accept", controllers.TagAccept(libraryService, logg))
			r.Post("/{index}/reject", controllers.TagReject(libraryService, logg))
		})
	})

	return r
}
