// README: Pricing handlers: fare quotes and promo preview.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"colis/internal/http/middleware"
	"colis/internal/modules/geofence"
	"colis/internal/modules/pricing"
	"colis/internal/types"
)

type PricingHandler struct {
	pricing  *pricing.Service
	geofence *geofence.Service
}

func NewPricingHandler(p *pricing.Service, g *geofence.Service) *PricingHandler {
	return &PricingHandler{pricing: p, geofence: g}
}

type quoteReq struct {
	ZoneID      string  `json:"zone_id"`
	DistanceKm  float64 `json:"distance_km"`
	PackageSize string  `json:"package_size"`
	PickupLat   float64 `json:"pickup_lat"`
	PickupLng   float64 `json:"pickup_lng"`
}

// Quote prices a prospective delivery without creating anything. The surge
// multiplier is resolved from the pickup point when one is given.
func (h *PricingHandler) Quote(c *gin.Context) {
	var req quoteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ZoneID == "" {
		writeError(c, http.StatusBadRequest, "missing zone_id")
		return
	}
	surge := 1.0
	if req.PickupLat != 0 || req.PickupLng != 0 {
		m, err := h.geofence.SurgeMultiplier(c.Request.Context(), types.Point{Lat: req.PickupLat, Lng: req.PickupLng})
		if err != nil {
			writeDomainError(c, err)
			return
		}
		surge = m
	}
	fare, err := h.pricing.Quote(c.Request.Context(), types.ID(req.ZoneID), req.DistanceKm, pricing.PackageSize(req.PackageSize), surge)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"zone_id":          req.ZoneID,
		"distance_km":      fare.DistanceKm,
		"base_price":       fare.BasePrice.String(),
		"distance_price":   fare.DistancePrice.String(),
		"surcharge":        fare.Surcharge.String(),
		"total":            fare.Total.String(),
		"commission":       fare.Commission.String(),
		"courier_earnings": fare.CourierEarnings.String(),
	})
}

type promoPreviewReq struct {
	Code        string `json:"code"`
	ZoneID      string `json:"zone_id"`
	OrderAmount string `json:"order_amount"`
	DeliveryFee string `json:"delivery_fee"`
}

// PreviewPromo validates a code and reports the discount it would grant,
// without consuming a use.
func (h *PricingHandler) PreviewPromo(c *gin.Context) {
	var req promoPreviewReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	amount, err := types.ParseMoney(req.OrderAmount)
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid order_amount")
		return
	}
	fee := types.NewMoney(0)
	if req.DeliveryFee != "" {
		if fee, err = types.ParseMoney(req.DeliveryFee); err != nil {
			writeError(c, http.StatusBadRequest, "invalid delivery_fee")
			return
		}
	}
	discount, err := h.pricing.PreviewPromo(c.Request.Context(), pricing.PromoCommand{
		Code:        req.Code,
		ClientID:    types.ID(middleware.CallerUID(c)),
		ZoneID:      types.ID(req.ZoneID),
		OrderAmount: amount,
		DeliveryFee: fee,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"code": req.Code, "discount": discount.String()})
}
