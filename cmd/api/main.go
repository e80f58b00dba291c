package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"goflare.io/loyalty"
	"goflare.io/loyalty/config"
	"goflare.io/loyalty/server"
)

type application struct {
	config  *config.Config
	logger  *zap.Logger
	loyalty loyalty.Loyalty
	server  *server.Server
}

func newApplication(config *config.Config, logger *zap.Logger, loyalty loyalty.Loyalty, server *server.Server) *application {
	return &application{
		config:  config,
		logger:  logger,
		loyalty: loyalty,
		server:  server,
	}
}

func main() {

	app, cleanup, err := InitializeApplication()
	if err != nil {
		log.Fatal(err)
		return
	}
	defer cleanup()
	defer func() { _ = app.logger.Sync() }()
	defer app.loyalty.Close()

	if app.config.Stripe.SecretKey != "" {
		go func() {
			if _, err := app.loyalty.SyncCouponCatalog(context.Background()); err != nil {
				app.logger.Warn("coupon catalog sync failed", zap.Error(err))
			}
		}()
	}

	app.logger.Info("loyalty service listening", zap.String("address", app.config.App.Port))
	if err = app.server.Run(app.config.App.Port); err != nil {
		app.logger.Error("server shutdown failed", zap.Error(err))
	}

}
