package server

import (
	"net/http"
	"time"

	"github.com/arvoh/hass2vpp/internal/core/domain"
	"github.com/arvoh/hass2vpp/pkg/vpp"

	"github.com/carlmjohnson/versioninfo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/status", s.StatusHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

type bridgeStatus struct {
	Healthy        bool                 `json:"healthy"`
	HomeAssistant  bool                 `json:"home_assistant"`
	VPPMQTT        bool                 `json:"vpp_mqtt"`
	Telemetry      bool                 `json:"telemetry"`
	Version        string               `json:"version"`
	LastWorkMode   *vpp.WorkModeCommand `json:"last_workmode,omitempty"`
	LastWorkModeAt *time.Time           `json:"last_workmode_at,omitempty"`
}

func (s *Server) StatusHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.BridgeStatusRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "status: FAIL")
	}
	response, ok := res.(domain.BridgeStatusResponse)
	if !ok {
		return c.String(http.StatusServiceUnavailable, "status: FAIL")
	}

	status := bridgeStatus{
		Healthy:       response.Healthy,
		HomeAssistant: response.HassHealthy,
		VPPMQTT:       response.VPPMQTTHealthy,
		Telemetry:     response.TelemetryHealthy,
		Version:       versioninfo.Short(),
		LastWorkMode:  response.LastWorkMode,
	}
	if !response.LastWorkModeAt.IsZero() {
		at := response.LastWorkModeAt
		status.LastWorkModeAt = &at
	}

	code := http.StatusOK
	if !response.Healthy {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}
