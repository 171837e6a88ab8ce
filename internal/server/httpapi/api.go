// Package httpapi exposes the session and product services over HTTP.
package httpapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/dmitrijs2005/gophstore/internal/logging"
	"github.com/dmitrijs2005/gophstore/internal/server/models"
	"github.com/dmitrijs2005/gophstore/internal/server/services"
)

type Sessions interface {
	Signup(ctx context.Context, in services.SignupInput) (*services.AuthResult, error)
	Login(ctx context.Context, email, password string) (*services.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, userID int64, refreshToken string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ValidateResetToken(ctx context.Context, token string) (services.ResetCheck, error)
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
	Authenticate(ctx context.Context, header string) (*models.User, error)
	Me(ctx context.Context, userID int64) (*models.User, error)
}

type Products interface {
	Create(ctx context.Context, userID int64, in services.ProductInput) (*models.Product, error)
	Get(ctx context.Context, userID, id int64) (*models.Product, error)
	List(ctx context.Context, userID int64, q services.ProductQuery) (*services.ProductPage, error)
	Update(ctx context.Context, userID, id int64, in services.ProductInput) (*models.Product, error)
	Delete(ctx context.Context, userID, id int64) error
	ImageUploadURL(ctx context.Context, userID, id int64) (string, string, error)
	ImageURL(ctx context.Context, userID, id int64) (string, error)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// API holds the HTTP handlers.
type API struct {
	sessions Sessions
	products Products
	store    Pinger
	limiter  *RateLimiter
	log      logging.Logger
}

// New builds the API. limiter may be nil to disable rate limiting.
func New(sessions Sessions, products Products, store Pinger, limiter *RateLimiter, log logging.Logger) *API {
	return &API{
		sessions: sessions,
		products: products,
		store:    store,
		limiter:  limiter,
		log:      log.With("module", "http_api"),
	}
}

// Router wires every route onto a fresh echo instance.
func (a *API) Router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(a.log)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(a.log))
	e.Use(middleware.BodyLimit("1M"))

	e.GET("/healthz", a.health)

	limited := a.limiter.Middleware()

	auth := e.Group("/auth")
	auth.POST("/signup", a.signup)
	auth.POST("/login", a.login, limited)
	auth.POST("/refresh", a.refresh)
	auth.POST("/logout", a.logout, a.requireUser)
	auth.POST("/password-reset", a.requestReset, limited)
	auth.GET("/password-reset/validate/:token", a.validateReset)
	auth.POST("/password-reset/confirm", a.confirmReset, limited)
	auth.GET("/me", a.me, a.requireUser)
	auth.POST("/me", a.me, a.requireUser)

	products := e.Group("/products", a.requireUser)
	products.GET("", a.listProducts)
	products.POST("", a.createProduct)
	products.GET("/:id", a.getProduct)
	products.PUT("/:id", a.updateProduct)
	products.DELETE("/:id", a.deleteProduct)
	products.POST("/:id/image/upload-url", a.productImageUploadURL)
	products.GET("/:id/image/url", a.productImageURL)

	return e
}

func (a *API) health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()

	if err := a.store.Ping(ctx); err != nil {
		a.log.Warn(ctx, "health check failed", "error", err)
		return c.JSON(http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
	}
	return c.JSON(http.StatusOK, healthResponse{Status: "ok"})
}
