// README: API gateway; registers HTTP routes and delegates to module services.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"colis/internal/http/handlers"
	"colis/internal/http/middleware"
	"colis/internal/infra"
	"colis/internal/modules/dispatch"
	"colis/internal/modules/geofence"
	"colis/internal/modules/order"
	"colis/internal/modules/pricing"
	"colis/internal/modules/wallet"
)

type RouterDeps struct {
	Order    *order.Service
	Dispatch *dispatch.Service
	Pricing  *pricing.Service
	Wallet   *wallet.Service
	Geofence *geofence.Service
	Verifier infra.TokenVerifier
	Log      *zap.Logger
}

func NewRouter(deps RouterDeps) http.Handler {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	r := gin.New()
	r.Use(middleware.Recovery(deps.Log))
	r.Use(middleware.Logging(deps.Log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api")
	api.Use(middleware.Auth(deps.Verifier))

	orderHandler := handlers.NewOrderHandler(deps.Order)
	api.POST("/orders", orderHandler.Create)
	api.GET("/orders/:id", orderHandler.Get)
	api.GET("/orders/:id/history", orderHandler.History)
	api.POST("/orders/:id/cancel", orderHandler.Cancel)
	api.POST("/orders/:id/rate", orderHandler.Rate)

	courierHandler := handlers.NewCourierHandler(deps.Dispatch, deps.Order, deps.Geofence)
	api.POST("/couriers/orders/:id/accept", courierHandler.Accept)
	api.POST("/couriers/orders/:id/pickup", courierHandler.Pickup)
	api.POST("/couriers/orders/:id/deliver", courierHandler.Deliver)
	api.PUT("/couriers/availability", courierHandler.SetAvailability)
	api.PUT("/couriers/position", courierHandler.UpdatePosition)
	api.GET("/admin/orders/:id/candidates", courierHandler.Candidates)

	pricingHandler := handlers.NewPricingHandler(deps.Pricing, deps.Geofence)
	api.POST("/pricing/quote", pricingHandler.Quote)
	api.POST("/promos/preview", pricingHandler.PreviewPromo)

	walletHandler := handlers.NewWalletHandler(deps.Wallet)
	api.GET("/couriers/wallet", walletHandler.Get)
	api.POST("/couriers/withdrawals", walletHandler.CreateWithdrawal)
	api.POST("/admin/withdrawals/:id/approve", walletHandler.Approve)
	api.POST("/admin/withdrawals/:id/reject", walletHandler.Reject)
	api.POST("/admin/withdrawals/:id/complete", walletHandler.Complete)

	return r
}
