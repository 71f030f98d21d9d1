package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/groceryplus/admin-console/internal/http/handler"
	"github.com/groceryplus/admin-console/internal/http/middleware"
	"github.com/groceryplus/admin-console/internal/http/response"
)

const maxBodyBytes = 16 << 20

type Dependencies struct {
	SessionHandler    *handler.SessionHandler
	ResourceHandler   *handler.ResourceHandler
	Sessions          middleware.SessionReader
	LoginRoute        string
	LoginRateLimitRPM int
	LoginRateLimiter  LoginRateLimiterFunc
	Readiness         ReadinessFunc
	EditorRoles       []string
	EnableOTelHTTP    bool
}

type LoginRateLimiterFunc func(http.Handler) http.Handler

// ReadinessFunc reports whether the console can serve requests, typically
// by probing its durable store.
type ReadinessFunc func(ctx context.Context) error

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.BodyLimit(maxBodyBytes))

	loginLimiter := dep.LoginRateLimiter
	if loginLimiter == nil {
		loginLimiter = middleware.NewRateLimiter("session.login", dep.LoginRateLimitRPM, time.Minute).Middleware()
	}
	editorRoles := dep.EditorRoles
	if len(editorRoles) == 0 {
		editorRoles = []string{"admin"}
	}

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
			return
		}
		if err := dep.Readiness(r.Context()); err != nil {
			response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "console is not ready", map[string]string{"error": err.Error()})
			return
		}
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/session", func(r chi.Router) {
			r.Get("/", dep.SessionHandler.Get)
			r.With(loginLimiter).Post("/login", dep.SessionHandler.Login)
			r.With(loginLimiter).Post("/register", dep.SessionHandler.Register)
			r.With(loginLimiter).Post("/forgot-password", dep.SessionHandler.ForgotPassword)
			r.Post("/logout", dep.SessionHandler.Logout)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(dep.Sessions, dep.LoginRoute))
			editor := middleware.RequireRole(dep.Sessions, editorRoles...)
			h := dep.ResourceHandler

			r.Route("/products", func(r chi.Router) {
				r.Get("/", h.ListProducts)
				r.With(editor).Post("/", h.CreateProduct)
				r.Get("/{id}", h.GetProduct)
				r.With(editor).Put("/{id}", h.UpdateProduct)
				r.With(editor).Delete("/{id}", h.DeleteProduct)
			})
			r.Route("/categories", func(r chi.Router) {
				r.Get("/", h.ListCategories)
				r.With(editor).Post("/", h.CreateCategory)
				r.Get("/{id}", h.GetCategory)
				r.With(editor).Put("/{id}", h.UpdateCategory)
				r.With(editor).Delete("/{id}", h.DeleteCategory)
			})
			r.Route("/banners", func(r chi.Router) {
				r.Get("/", h.ListBanners)
				r.With(editor).Post("/", h.CreateBanner)
				r.Get("/{id}", h.GetBanner)
				r.With(editor).Put("/{id}", h.UpdateBanner)
				r.With(editor).Delete("/{id}", h.DeleteBanner)
			})
			r.Get("/orders", h.ListOrders)
			r.Get("/orders/{id}", h.GetOrder)
			r.Get("/dashboard", h.Dashboard)
			r.Get("/profile", h.Profile)
			r.Get("/gallery", h.ListGallery)
			r.With(editor).Post("/gallery", h.UploadGallery)
			r.Get("/gallery/thumbnail", h.Thumbnail)
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
