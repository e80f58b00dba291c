//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"goflare.io/loyalty"
	"goflare.io/loyalty/config"
	"goflare.io/loyalty/coupon"
	"goflare.io/loyalty/entitlement"
	"goflare.io/loyalty/event"
	"goflare.io/loyalty/handlers"
	"goflare.io/loyalty/identity"
	"goflare.io/loyalty/link"
	"goflare.io/loyalty/savings"
	"goflare.io/loyalty/server"
)

func InitializeApplication() (*application, func(), error) {

	wire.Build(
		config.ProvideApplicationConfig,
		config.NewLogger,
		config.ProvideLocation,
		config.ProvideDocumentStore,
		config.ProvideEmber,
		config.ProvideIgnite,
		config.ProvideNATS,
		config.ProvideCouponRepository,
		config.ProvideCouponLookup,
		config.ProvideSavingsOptions,
		identity.NewRepository,
		identity.NewService,
		link.NewRepository,
		link.NewService,
		entitlement.NewRepository,
		entitlement.NewService,
		coupon.NewAggregator,
		coupon.NewService,
		savings.NewRepository,
		savings.NewService,
		event.NewRepository,
		event.NewService,
		loyalty.NewReconciler,
		handlers.NewIdentityHandler,
		handlers.NewUserHandler,
		handlers.NewWebhookHandler,
		server.NewServer,
		newApplication,
	)

	return &application{}, nil, nil
}
