// internal/handler/health_handler.go
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"myo-recorder/internal/config"
	"myo-recorder/internal/model"
	"myo-recorder/internal/utils"
	"myo-recorder/pkg/driver"
)

// StatusProvider exposes the acquisition state to the API
type StatusProvider interface {
	Status() model.AcquisitionStatus
	DeviceInfo() *driver.DeviceInfo
}

// HealthHandler handles health and status requests
type HealthHandler struct {
	status    StatusProvider
	config    *config.Config
	logger    *utils.ServiceLogger
	startTime time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(status StatusProvider, config *config.Config, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		status:    status,
		config:    config,
		logger:    utils.NewServiceLogger(logger, "health-handler"),
		startTime: time.Now(),
	}
}

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/health", h.HealthCheck)
	router.GET("/ready", h.ReadinessCheck)
	router.GET("/live", h.LivenessCheck)
}

// HealthCheck reports the acquisition loop and device link. The service
// is unhealthy once the loop has terminated.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	status := h.status.Status()

	health := &HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   h.config.App.Name,
		Version:   h.config.App.Version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    make(map[string]CheckResult),
	}

	acquisition := CheckResult{
		Status: "healthy",
		Data: map[string]interface{}{
			"state":        status.State,
			"epoch_count":  status.EpochCount,
			"total_rows":   status.TotalRows,
			"fault_streak": status.FaultStreak,
		},
	}
	if !status.State.IsActive() {
		acquisition.Status = "unhealthy"
		acquisition.Message = "acquisition loop terminated"
		health.Status = "unhealthy"
	} else if status.State == model.AcquisitionFaulted {
		acquisition.Status = "degraded"
		acquisition.Message = status.LastError
		health.Status = "degraded"
	}
	health.Checks["acquisition"] = acquisition

	device := CheckResult{
		Status: "healthy",
		Data:   map[string]interface{}{"connection_state": status.ConnectionState},
	}
	if status.ConnectionState != model.ConnectionConnected {
		device.Status = "degraded"
		device.Message = "device not connected"
	}
	health.Checks["device"] = device

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, health)
}

// ReadinessCheck is ready while rows are being recorded
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	status := h.status.Status()
	if status.State != model.AcquisitionStreaming {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "acquisition is " + string(status.State),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

// LivenessCheck reports that the process responds
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckResult represents individual check result
type CheckResult struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}
