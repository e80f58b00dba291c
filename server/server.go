package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"goflare.io/loyalty/handlers"
)

type Server struct {
	echo     *echo.Echo
	setup    sync.Once
	Identity handlers.IdentityHandler
	User     handlers.UserHandler
	Webhook  handlers.WebhookHandler
}

func NewServer(
	Identity handlers.IdentityHandler,
	User handlers.UserHandler,
	Webhook handlers.WebhookHandler,
) *Server {
	return &Server{
		echo:     echo.New(),
		Identity: Identity,
		User:     User,
		Webhook:  Webhook,
	}
}

// Handler returns the routed echo instance.
func (s *Server) Handler() http.Handler {
	s.setup.Do(func() {
		s.registerMiddlewares()
		s.registerRoutes()
	})
	return s.echo
}

// Start registers middlewares and routes and listens on address until the
// server is shut down.
func (s *Server) Start(address string) error {
	s.Handler()
	return s.echo.Start(address)
}

// Run serves on address until SIGINT or SIGTERM, then gives in-flight
// requests five seconds to finish.
func (s *Server) Run(address string) error {

	go func() {
		if err := s.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.echo.Logger.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.echo.Shutdown(ctx)
}

func (s *Server) registerMiddlewares() {
	s.echo.HideBanner = true
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
}

func (s *Server) registerRoutes() {

	s.echo.GET("/healthz", handlers.Health)

	s.echo.POST("/identity/link", s.Identity.Link)
	s.echo.POST("/identity/phone-changed", s.Identity.PhoneChanged)

	s.echo.GET("/users/:id/coupons", s.User.ListCoupons)
	s.echo.GET("/users/:id/savings", s.User.GetSavings)

	s.echo.POST("/webhook/stripe", s.Webhook.HandleStripeWebhook)
}
