package handlers

import (
	"errors"
	"net/http"
	"time"

	"slotbook/services/reservation"
	"slotbook/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ReservationHandler exposes the reservation manager over HTTP.
type ReservationHandler struct {
	svc    reservation.Service
	logger *zap.Logger
}

func NewReservationHandler(svc reservation.Service, logger *zap.Logger) *ReservationHandler {
	return &ReservationHandler{svc: svc, logger: logger}
}

// ReserveHandler creates a hold and its checkout session. Retries with the
// same Idempotency-Key replay the original result.
func (h *ReservationHandler) ReserveHandler(c *gin.Context) {
	var input struct {
		ResourceID     string    `json:"resourceId"`
		HolderIdentity string    `json:"holderIdentity"`
		StartTime      time.Time `json:"startTime"`
		EndTime        time.Time `json:"endTime"`
		AmountMinor    int64     `json:"amountMinor"`
		Currency       string    `json:"currency"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid input", err.Error())
		return
	}

	result, err := h.svc.Reserve(c.Request.Context(), reservation.ReserveRequest{
		ResourceID:     input.ResourceID,
		HolderIdentity: input.HolderIdentity,
		StartTime:      input.StartTime,
		EndTime:        input.EndTime,
		AmountMinor:    input.AmountMinor,
		Currency:       input.Currency,
		IdempotencyKey: c.GetHeader("Idempotency-Key"),
	})
	if err != nil {
		h.writeReserveError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *ReservationHandler) writeReserveError(c *gin.Context, err error) {
	var conflict *reservation.ConflictError
	if errors.As(err, &conflict) {
		// The client needs the conflicting interval to pick another slot.
		c.JSON(http.StatusConflict, gin.H{
			"error":      "slot already held",
			"resourceId": conflict.ResourceID,
			"heldBy":     conflict.Holder,
			"startTime":  conflict.StartTime,
			"endTime":    conflict.EndTime,
		})
		return
	}
	if reservation.IsValidation(err) {
		utils.JSONError(c, http.StatusUnprocessableEntity, "invalid reservation request", err.Error())
		return
	}
	var upstream *reservation.UpstreamError
	if errors.As(err, &upstream) {
		// Nothing was committed; the client may retry with the same key.
		utils.JSONError(c, http.StatusBadGateway, "reservation temporarily unavailable", "retry with the same Idempotency-Key")
		return
	}
	h.logger.Error("reserve failed", zap.Error(err))
	utils.JSONError(c, http.StatusInternalServerError, "reservation failed", "")
}

// GetHoldHandler returns a hold so clients can poll while payment settles.
func (h *ReservationHandler) GetHoldHandler(c *gin.Context) {
	hold, err := h.svc.GetHold(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.JSONError(c, http.StatusNotFound, "hold not found", c.Param("id"))
		return
	}
	c.JSON(http.StatusOK, hold)
}

// CancelHoldHandler releases a hold at the holder's request.
func (h *ReservationHandler) CancelHoldHandler(c *gin.Context) {
	holder := c.GetHeader("X-Holder-Identity")
	if holder == "" {
		utils.JSONError(c, http.StatusBadRequest, "missing holder identity", "set X-Holder-Identity")
		return
	}

	err := h.svc.Cancel(c.Request.Context(), c.Param("id"), holder)
	if err != nil {
		if reservation.IsNotFound(err) {
			utils.JSONError(c, http.StatusNotFound, "hold not found", c.Param("id"))
			return
		}
		utils.JSONError(c, http.StatusBadGateway, "cancellation failed", "retry later")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}
