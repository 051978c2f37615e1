// README: Wallet and withdrawal handlers; courier endpoints plus the admin
// review flow.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"colis/internal/http/middleware"
	"colis/internal/modules/wallet"
	"colis/internal/types"
)

type WalletHandler struct {
	wallet *wallet.Service
}

func NewWalletHandler(svc *wallet.Service) *WalletHandler {
	return &WalletHandler{wallet: svc}
}

func (h *WalletHandler) Get(c *gin.Context) {
	courierID, ok := courierCaller(c)
	if !ok {
		return
	}
	w, err := h.wallet.Wallet(c.Request.Context(), courierID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"courier_id":      w.CourierID,
		"balance":         w.Balance.String(),
		"pending_balance": w.PendingBalance.String(),
		"total_earned":    w.TotalEarned.String(),
		"total_withdrawn": w.TotalWithdrawn.String(),
	})
}

type createWithdrawalReq struct {
	Amount string `json:"amount"`
	Method string `json:"method"`
	Phone  string `json:"phone"`
}

func (h *WalletHandler) CreateWithdrawal(c *gin.Context) {
	courierID, ok := courierCaller(c)
	if !ok {
		return
	}
	var req createWithdrawalReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	amount, err := types.ParseMoney(req.Amount)
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid amount")
		return
	}
	w, err := h.wallet.CreateWithdrawal(c.Request.Context(), wallet.CreateWithdrawalCommand{
		CourierID: courierID,
		Amount:    amount,
		Method:    wallet.PayoutMethod(req.Method),
		Phone:     req.Phone,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, withdrawalResponse(w))
}

func adminCaller(c *gin.Context) (types.ID, bool) {
	if middleware.CallerRole(c) != "admin" {
		writeError(c, http.StatusForbidden, "forbidden: admin role required")
		return "", false
	}
	return types.ID(middleware.CallerUID(c)), true
}

type reviewReq struct {
	Reason string `json:"reason"`
}

func (h *WalletHandler) Approve(c *gin.Context) {
	adminID, ok := adminCaller(c)
	if !ok {
		return
	}
	var req reviewReq
	_ = c.ShouldBindJSON(&req)
	err := h.wallet.Approve(c.Request.Context(), wallet.ReviewCommand{
		WithdrawalID: types.ID(c.Param("id")),
		AdminID:      adminID,
		Reason:       req.Reason,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"withdrawal_id": c.Param("id"), "status": wallet.StatusApproved})
}

func (h *WalletHandler) Reject(c *gin.Context) {
	adminID, ok := adminCaller(c)
	if !ok {
		return
	}
	var req reviewReq
	_ = c.ShouldBindJSON(&req)
	err := h.wallet.Reject(c.Request.Context(), wallet.ReviewCommand{
		WithdrawalID: types.ID(c.Param("id")),
		AdminID:      adminID,
		Reason:       req.Reason,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"withdrawal_id": c.Param("id"), "status": wallet.StatusRejected})
}

type completeReq struct {
	Reference string `json:"reference"`
}

func (h *WalletHandler) Complete(c *gin.Context) {
	if _, ok := adminCaller(c); !ok {
		return
	}
	var req completeReq
	_ = c.ShouldBindJSON(&req)
	err := h.wallet.Complete(c.Request.Context(), wallet.CompleteCommand{
		WithdrawalID: types.ID(c.Param("id")),
		Reference:    req.Reference,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"withdrawal_id": c.Param("id"), "status": wallet.StatusCompleted})
}

func withdrawalResponse(w *wallet.Withdrawal) gin.H {
	return gin.H{
		"withdrawal_id": w.ID,
		"courier_id":    w.CourierID,
		"amount":        w.Amount.String(),
		"status":        w.Status,
		"method":        w.Method,
		"created_at":    w.CreatedAt.Format(time.RFC3339),
	}
}
