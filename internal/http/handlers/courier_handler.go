// README: Courier-side handlers: claim, pickup, deliver, availability,
// position reporting with geofence tracking.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"colis/internal/http/middleware"
	"colis/internal/modules/dispatch"
	"colis/internal/modules/geofence"
	"colis/internal/modules/order"
	"colis/internal/types"
)

type CourierHandler struct {
	dispatch *dispatch.Service
	order    *order.Service
	geofence *geofence.Service
}

func NewCourierHandler(d *dispatch.Service, o *order.Service, g *geofence.Service) *CourierHandler {
	return &CourierHandler{dispatch: d, order: o, geofence: g}
}

func courierCaller(c *gin.Context) (types.ID, bool) {
	if middleware.CallerRole(c) != "courier" {
		writeError(c, http.StatusForbidden, "forbidden: courier role required")
		return "", false
	}
	return types.ID(middleware.CallerUID(c)), true
}

// Accept claims a pending order for the authenticated courier.
func (h *CourierHandler) Accept(c *gin.Context) {
	courierID, ok := courierCaller(c)
	if !ok {
		return
	}
	orderID := c.Param("id")
	if orderID == "" {
		writeError(c, http.StatusBadRequest, "missing order id")
		return
	}
	err := h.dispatch.Assign(c.Request.Context(), dispatch.AssignCommand{
		OrderID:   types.ID(orderID),
		CourierID: courierID,
		ActorType: "courier",
		ActorID:   &courierID,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"order_id": orderID, "status": order.StatusAssigned})
}

type positionReq struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (h *CourierHandler) Pickup(c *gin.Context) {
	courierID, ok := courierCaller(c)
	if !ok {
		return
	}
	orderID := c.Param("id")
	var req positionReq
	_ = c.ShouldBindJSON(&req)

	o, err := h.order.Get(c.Request.Context(), types.ID(orderID))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if o.CourierID == nil || *o.CourierID != courierID {
		writeError(c, http.StatusForbidden, "forbidden: order assigned to another courier")
		return
	}
	pos := &types.Point{Lat: req.Lat, Lng: req.Lng}
	if err := h.order.Pickup(c.Request.Context(), order.PickupCommand{OrderID: o.ID, Position: pos}); err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"order_id": orderID, "status": order.StatusPickedUp})
}

type deliverReq struct {
	ConfirmationCode string  `json:"confirmation_code"`
	Lat              float64 `json:"lat"`
	Lng              float64 `json:"lng"`
}

func (h *CourierHandler) Deliver(c *gin.Context) {
	courierID, ok := courierCaller(c)
	if !ok {
		return
	}
	orderID := c.Param("id")
	var req deliverReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	o, err := h.order.Get(c.Request.Context(), types.ID(orderID))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if o.CourierID == nil || *o.CourierID != courierID {
		writeError(c, http.StatusForbidden, "forbidden: order assigned to another courier")
		return
	}
	err = h.order.Deliver(c.Request.Context(), order.DeliverCommand{
		OrderID:          o.ID,
		ConfirmationCode: req.ConfirmationCode,
		Position:         &types.Point{Lat: req.Lat, Lng: req.Lng},
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"order_id": orderID, "status": order.StatusDelivered})
}

type availabilityReq struct {
	Available bool `json:"available"`
}

func (h *CourierHandler) SetAvailability(c *gin.Context) {
	courierID, ok := courierCaller(c)
	if !ok {
		return
	}
	var req availabilityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.dispatch.SetAvailability(c.Request.Context(), courierID, req.Available); err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"courier_id": courierID, "available": req.Available})
}

type updatePositionReq struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	OrderID string  `json:"order_id"`
}

// UpdatePosition refreshes the courier's GEO index entry and, when an order
// is in flight, runs geofence tracking against the current leg.
func (h *CourierHandler) UpdatePosition(c *gin.Context) {
	courierID, ok := courierCaller(c)
	if !ok {
		return
	}
	var req updatePositionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	pos := types.Point{Lat: req.Lat, Lng: req.Lng}
	if err := h.dispatch.UpdatePosition(c.Request.Context(), courierID, pos); err != nil {
		writeDomainError(c, err)
		return
	}

	resp := gin.H{"courier_id": courierID}
	if req.OrderID != "" {
		alerts, err := h.trackOrder(c, courierID, types.ID(req.OrderID), pos)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		if len(alerts) > 0 {
			kinds := make([]geofence.AlertType, 0, len(alerts))
			for _, a := range alerts {
				kinds = append(kinds, a.Type)
			}
			resp["alerts"] = kinds
		}
	}
	writeJSON(c, http.StatusOK, resp)
}

// Candidates lists couriers near an order's pickup point, for the back
// office dispatch view.
func (h *CourierHandler) Candidates(c *gin.Context) {
	if _, ok := adminCaller(c); !ok {
		return
	}
	o, err := h.order.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	cands, err := h.dispatch.Candidates(c.Request.Context(), o.Pickup, 0, 0)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]gin.H, 0, len(cands))
	for _, cd := range cands {
		out = append(out, gin.H{"courier_id": cd.CourierID, "distance_km": cd.DistanceKm})
	}
	writeJSON(c, http.StatusOK, gin.H{"order_id": o.ID, "candidates": out})
}

// trackOrder maps the order's status to the active leg: heading to pickup
// while assigned, heading to dropoff after pickup.
func (h *CourierHandler) trackOrder(c *gin.Context, courierID, orderID types.ID, pos types.Point) ([]geofence.Alert, error) {
	o, err := h.order.Get(c.Request.Context(), orderID)
	if err != nil {
		return nil, err
	}
	if o.CourierID == nil || *o.CourierID != courierID {
		return nil, nil
	}

	var target types.Point
	var phase geofence.AlertType
	switch o.Status {
	case order.StatusAssigned:
		target, phase = o.Pickup, geofence.AlertProximityPickup
	case order.StatusPickedUp:
		target, phase = o.Dropoff, geofence.AlertProximityDelivery
	default:
		return nil, nil
	}
	return h.geofence.TrackPosition(c.Request.Context(), geofence.TrackCommand{
		OrderID:   o.ID,
		CourierID: courierID,
		Position:  pos,
		Target:    target,
		Phase:     phase,
	})
}
