// internal/handler/status_handler.go
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"myo-recorder/internal/utils"
)

// StatusHandler serves the acquisition status API
type StatusHandler struct {
	status StatusProvider
	logger *utils.ServiceLogger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(status StatusProvider, logger *zap.Logger) *StatusHandler {
	return &StatusHandler{
		status: status,
		logger: utils.NewServiceLogger(logger, "status-handler"),
	}
}

// RegisterRoutes registers status routes
func (h *StatusHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/status", h.GetStatus)
	router.GET("/device", h.GetDevice)
}

// GetStatus returns the acquisition status
func (h *StatusHandler) GetStatus(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Acquisition status retrieved", h.status.Status())
}

// GetDevice returns what the session knows about the device
func (h *StatusHandler) GetDevice(c *gin.Context) {
	info := h.status.DeviceInfo()
	if info == nil {
		utils.ErrorResponse(c, http.StatusNotFound, "No device information", nil)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Device information retrieved", info)
}
