// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"colis/internal/modules/dispatch"
	"colis/internal/modules/geofence"
	"colis/internal/modules/order"
	"colis/internal/modules/pricing"
	"colis/internal/modules/rating"
	"colis/internal/modules/wallet"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeDomainError maps sentinel errors across modules to HTTP status codes:
// 404 for missing entities, 409 for state conflicts and lost races, 422 for
// business-rule rejections, 400 for malformed input.
func writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, wallet.ErrNotFound),
		errors.Is(err, wallet.ErrWalletNotFound),
		errors.Is(err, dispatch.ErrCourierNotFound),
		errors.Is(err, pricing.ErrZoneNotFound),
		errors.Is(err, pricing.ErrPromoNotFound):
		writeError(c, http.StatusNotFound, err.Error())

	case errors.Is(err, order.ErrInvalidState),
		errors.Is(err, order.ErrConflict),
		errors.Is(err, order.ErrAlreadyRated),
		errors.Is(err, order.ErrNotDelivered),
		errors.Is(err, wallet.ErrInvalidState),
		errors.Is(err, wallet.ErrConflict),
		errors.Is(err, dispatch.ErrCourierBusy),
		errors.Is(err, dispatch.ErrOrderTaken):
		writeError(c, http.StatusConflict, err.Error())

	case errors.Is(err, order.ErrBadConfirmationCode),
		errors.Is(err, wallet.ErrInsufficientFunds),
		errors.Is(err, dispatch.ErrCourierIneligible),
		errors.Is(err, geofence.ErrRestrictedZone),
		errors.Is(err, pricing.ErrZoneInactive),
		errors.Is(err, pricing.ErrPromoExpired),
		errors.Is(err, pricing.ErrPromoExhausted),
		errors.Is(err, pricing.ErrPromoAlreadyUsed),
		errors.Is(err, pricing.ErrPromoNotFirst),
		errors.Is(err, pricing.ErrPromoBelowMin),
		errors.Is(err, pricing.ErrPromoZoneExcluded):
		writeError(c, http.StatusUnprocessableEntity, err.Error())

	case errors.Is(err, order.ErrBadRequest),
		errors.Is(err, wallet.ErrBadAmount),
		errors.Is(err, pricing.ErrBadDistance),
		errors.Is(err, rating.ErrBadScore):
		writeError(c, http.StatusBadRequest, err.Error())

	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
