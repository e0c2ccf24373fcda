package handlers

import (
	"net/http"

	"slotbook/services/reconciler"
	"slotbook/services/reservation"
	"slotbook/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminHandler exposes operator recovery surfaces: force-reconcile for a
// specific session and a manual sweep trigger.
type AdminHandler struct {
	reconciler   reconciler.Service
	reservations reservation.Service
	logger       *zap.Logger
}

func NewAdminHandler(rec reconciler.Service, res reservation.Service, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{reconciler: rec, reservations: res, logger: logger}
}

// ForceReconcileHandler replays the state a checkout session is in at the
// processor.
func (h *AdminHandler) ForceReconcileHandler(c *gin.Context) {
	sessionID := c.Param("sessionID")
	if err := h.reconciler.ForceReconcile(c.Request.Context(), sessionID); err != nil {
		if reservation.IsNotFound(err) {
			utils.JSONError(c, http.StatusNotFound, "session not found", sessionID)
			return
		}
		h.logger.Error("force reconcile failed", zap.String("sessionID", sessionID), zap.Error(err))
		utils.JSONError(c, http.StatusBadGateway, "reconcile failed", "retry later")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reconciled", "sessionID": sessionID})
}

// SweepHandler runs one expiration sweep immediately.
func (h *AdminHandler) SweepHandler(c *gin.Context) {
	released, err := h.reservations.Sweep(c.Request.Context())
	if err != nil {
		h.logger.Error("manual sweep failed", zap.Error(err))
		utils.JSONError(c, http.StatusBadGateway, "sweep failed", "retry later")
		return
	}
	c.JSON(http.StatusOK, gin.H{"released": released})
}
