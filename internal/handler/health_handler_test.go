package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"myo-recorder/internal/config"
	"myo-recorder/internal/model"
	"myo-recorder/pkg/driver"
)

type stubStatus struct {
	mu     sync.Mutex
	status model.AcquisitionStatus
	device *driver.DeviceInfo
}

func (s *stubStatus) Status() model.AcquisitionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *stubStatus) DeviceInfo() *driver.DeviceInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device
}

func newTestEngine(status StatusProvider) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	cfg := &config.Config{App: config.AppConfig{Name: "myo-recorder", Version: "test"}}

	NewHealthHandler(status, cfg, zap.NewNop()).RegisterRoutes(engine.Group(""))
	NewStatusHandler(status, zap.NewNop()).RegisterRoutes(engine.Group("/api/v1"))
	return engine
}

func serve(engine *gin.Engine, path string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, path, nil))
	return recorder
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		state      model.AcquisitionState
		connection model.ConnectionState
		wantCode   int
		wantStatus string
	}{
		{"streaming", model.AcquisitionStreaming, model.ConnectionConnected, http.StatusOK, "healthy"},
		{"faulted", model.AcquisitionFaulted, model.ConnectionFaulted, http.StatusOK, "degraded"},
		{"terminated", model.AcquisitionTerminated, model.ConnectionDisconnected, http.StatusServiceUnavailable, "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(&stubStatus{status: model.AcquisitionStatus{
				State:           tt.state,
				ConnectionState: tt.connection,
			}})

			recorder := serve(engine, "/health")
			if recorder.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d", recorder.Code, tt.wantCode)
			}

			var health HealthResponse
			if err := json.Unmarshal(recorder.Body.Bytes(), &health); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if health.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", health.Status, tt.wantStatus)
			}
			if _, ok := health.Checks["acquisition"]; !ok {
				t.Error("missing acquisition check")
			}
			if health.Service != "myo-recorder" {
				t.Errorf("service = %q", health.Service)
			}
		})
	}
}

func TestReadinessFollowsStreaming(t *testing.T) {
	status := &stubStatus{status: model.AcquisitionStatus{State: model.AcquisitionConnecting}}
	engine := newTestEngine(status)

	if code := serve(engine, "/ready").Code; code != http.StatusServiceUnavailable {
		t.Errorf("connecting: code = %d, want 503", code)
	}

	status.mu.Lock()
	status.status.State = model.AcquisitionStreaming
	status.mu.Unlock()

	if code := serve(engine, "/ready").Code; code != http.StatusOK {
		t.Errorf("streaming: code = %d, want 200", code)
	}
	if code := serve(engine, "/live").Code; code != http.StatusOK {
		t.Errorf("live: code = %d, want 200", code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	engine := newTestEngine(&stubStatus{status: model.AcquisitionStatus{
		State:      model.AcquisitionStreaming,
		EpochCount: 2,
		TotalRows:  150,
	}})

	recorder := serve(engine, "/api/v1/status")
	if recorder.Code != http.StatusOK {
		t.Fatalf("code = %d", recorder.Code)
	}

	var body struct {
		Success bool                    `json:"success"`
		Data    model.AcquisitionStatus `json:"data"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.Data.EpochCount != 2 || body.Data.TotalRows != 150 {
		t.Errorf("body = %+v", body)
	}
}

func TestDeviceEndpoint(t *testing.T) {
	status := &stubStatus{}
	engine := newTestEngine(status)

	if code := serve(engine, "/api/v1/device").Code; code != http.StatusNotFound {
		t.Errorf("no device: code = %d, want 404", code)
	}

	status.mu.Lock()
	status.device = &driver.DeviceInfo{
		Kind:      "myo",
		Transport: &driver.TransportStats{Name: "/dev/ttyACM0", Open: true, BytesRead: 512},
	}
	status.mu.Unlock()

	recorder := serve(engine, "/api/v1/device")
	if recorder.Code != http.StatusOK {
		t.Fatalf("device: code = %d, want 200", recorder.Code)
	}

	var body struct {
		Data driver.DeviceInfo `json:"data"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Transport == nil || body.Data.Transport.BytesRead != 512 {
		t.Errorf("transport = %+v", body.Data.Transport)
	}
}
