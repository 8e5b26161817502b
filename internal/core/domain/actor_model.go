package domain

import (
	"time"

	"github.com/arvoh/hass2vpp/pkg/vpp"
)

const (
	ACTOR_ID_MASTER    = "master"
	ACTOR_ID_HASS      = "hass"
	ACTOR_ID_VPP_MQTT  = "vppmqtt"
	ACTOR_ID_TELEMETRY = "telemetry"
)

// SourceInfo describes the data source behind the telemetry records.
type SourceInfo struct {
	Model        string
	RootDeviceId string
	EntityCount  int
}

type GetSourceInfoRequest struct {
	ActorRequestMixIn
}

type GetSourceInfoResponse struct {
	ActorResponseMixIn
	Info *SourceInfo
}

type GetEnergyDataRequest struct {
	ActorRequestMixIn
}

type GetEnergyDataResponse struct {
	ActorResponseMixIn
	Energy *vpp.EnergyData
}

type GetMetricsDataRequest struct {
	ActorRequestMixIn
}

type GetMetricsDataResponse struct {
	ActorResponseMixIn
	Metrics *vpp.MetricsData
}

// PublishTelemetryRequest asks the MQTT adapter to publish one telemetry
// event right away instead of waiting for the event stream.
type PublishTelemetryRequest struct {
	ActorRequestMixIn
	Event any
}

type PublishTelemetryResponse struct {
	ActorResponseMixIn
}

type BridgeStatusRequest struct {
	ActorRequestMixIn
}

type BridgeStatusResponse struct {
	ActorResponseMixIn
	Healthy          bool
	HassHealthy      bool
	VPPMQTTHealthy   bool
	TelemetryHealthy bool
	LastWorkMode     *vpp.WorkModeCommand
	LastWorkModeAt   time.Time
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
