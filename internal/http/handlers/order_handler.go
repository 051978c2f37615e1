// README: Order handlers for create/get/history/cancel/rate.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"colis/internal/http/middleware"
	"colis/internal/modules/order"
	"colis/internal/modules/pricing"
	"colis/internal/modules/rating"
	"colis/internal/types"
)

type OrderHandler struct {
	order *order.Service
}

func NewOrderHandler(svc *order.Service) *OrderHandler {
	return &OrderHandler{order: svc}
}

type contactReq struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type createOrderReq struct {
	ZoneID         string     `json:"zone_id"`
	PickupLat      float64    `json:"pickup_lat"`
	PickupLng      float64    `json:"pickup_lng"`
	DropoffLat     float64    `json:"dropoff_lat"`
	DropoffLng     float64    `json:"dropoff_lng"`
	PickupAddress  string     `json:"pickup_address"`
	DropoffAddress string     `json:"dropoff_address"`
	Sender         contactReq `json:"sender"`
	Recipient      contactReq `json:"recipient"`
	PackageSize    string     `json:"package_size"`
	PackageNote    string     `json:"package_note"`
	PromoCode      string     `json:"promo_code"`
}

func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ZoneID == "" {
		writeError(c, http.StatusBadRequest, "missing zone_id")
		return
	}
	clientID := types.ID(middleware.CallerUID(c))
	o, err := h.order.Create(c.Request.Context(), order.CreateCommand{
		ClientID:       clientID,
		ZoneID:         types.ID(req.ZoneID),
		Pickup:         types.Point{Lat: req.PickupLat, Lng: req.PickupLng},
		Dropoff:        types.Point{Lat: req.DropoffLat, Lng: req.DropoffLng},
		PickupAddress:  req.PickupAddress,
		DropoffAddress: req.DropoffAddress,
		Sender:         order.Contact{Name: req.Sender.Name, Phone: req.Sender.Phone},
		Recipient:      order.Contact{Name: req.Recipient.Name, Phone: req.Recipient.Phone},
		PackageSize:    pricing.PackageSize(req.PackageSize),
		PackageNote:    req.PackageNote,
		PromoCode:      req.PromoCode,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, orderResponse(o, true))
}

func (h *OrderHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing order id")
		return
	}
	o, err := h.order.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	// The confirmation code is only disclosed to the ordering client; the
	// courier obtains it from the recipient at the door.
	withCode := middleware.CallerUID(c) == string(o.ClientID)
	writeJSON(c, http.StatusOK, orderResponse(o, withCode))
}

func (h *OrderHandler) History(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing order id")
		return
	}
	recs, err := h.order.History(c.Request.Context(), types.ID(id))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]gin.H, 0, len(recs))
	for _, r := range recs {
		out = append(out, gin.H{
			"from_status": r.FromStatus,
			"to_status":   r.ToStatus,
			"actor_type":  r.ActorType,
			"created_at":  r.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(c, http.StatusOK, gin.H{"order_id": id, "history": out})
}

type cancelOrderReq struct {
	Reason string `json:"reason"`
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing order id")
		return
	}
	var req cancelOrderReq
	_ = c.ShouldBindJSON(&req)

	o, err := h.order.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	actorID := types.ID(middleware.CallerUID(c))
	actorType := middleware.CallerRole(c)
	if actorType == "" {
		actorType = "client"
	}
	// Only the ordering client, the assigned courier, or the back office may
	// cancel.
	if actorType != "admin" && actorID != o.ClientID &&
		(o.CourierID == nil || *o.CourierID != actorID) {
		writeError(c, http.StatusForbidden, "forbidden: not a party to this order")
		return
	}
	err = h.order.Cancel(c.Request.Context(), order.CancelCommand{
		OrderID:   o.ID,
		ActorType: actorType,
		ActorID:   &actorID,
		Reason:    req.Reason,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"order_id": id, "status": order.StatusCancelled})
}

type rateOrderReq struct {
	Score  int      `json:"score"`
	Review string   `json:"review"`
	Tags   []string `json:"tags"`
}

func (h *OrderHandler) Rate(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing order id")
		return
	}
	var req rateOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	o, err := h.order.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	// The courier rates the client, anyone else must be the ordering client
	// rating the courier.
	callerID := types.ID(middleware.CallerUID(c))
	direction := rating.ClientToCourier
	if middleware.CallerRole(c) == "courier" {
		direction = rating.CourierToClient
		if o.CourierID == nil || *o.CourierID != callerID {
			writeError(c, http.StatusForbidden, "forbidden: order assigned to another courier")
			return
		}
	} else if callerID != o.ClientID {
		writeError(c, http.StatusForbidden, "forbidden: not the ordering client")
		return
	}
	err = h.order.Rate(c.Request.Context(), order.RateCommand{
		OrderID:   o.ID,
		Direction: direction,
		Score:     req.Score,
		Review:    req.Review,
		Tags:      req.Tags,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"order_id": id, "score": req.Score})
}

func orderResponse(o *order.Order, withCode bool) gin.H {
	resp := gin.H{
		"order_id":        o.ID,
		"number":          o.Number,
		"status":          o.Status,
		"zone_id":         o.ZoneID,
		"pickup_address":  o.PickupAddress,
		"dropoff_address": o.DropoffAddress,
		"package_size":    o.PackageSize,
		"distance_km":     o.DistanceKm,
		"fare": gin.H{
			"base_price":       o.Fare.BasePrice.String(),
			"distance_price":   o.Fare.DistancePrice.String(),
			"surcharge":        o.Fare.Surcharge.String(),
			"discount":         o.Fare.Discount.String(),
			"total":            o.Fare.Total.String(),
			"commission":       o.Fare.Commission.String(),
			"courier_earnings": o.Fare.CourierEarnings.String(),
		},
		"created_at": o.CreatedAt.Format(time.RFC3339),
	}
	if o.CourierID != nil {
		resp["courier_id"] = *o.CourierID
	}
	if withCode {
		resp["confirmation_code"] = o.ConfirmationCode
	}
	return resp
}
