package domain

import (
	"time"

	"github.com/arvoh/hass2vpp/pkg/vpp"
)

// Events published on the actor system event stream. The MQTT adapter
// subscribes and turns them into VPP messages; other subscribers may watch
// them for free.

type EnergyTelemetryEvent struct {
	Energy vpp.EnergyData
}

type MetricsTelemetryEvent struct {
	Metrics vpp.MetricsData
}

// WorkModeUpdateEvent signals a WORKMODE command received from the VPP
// service. The bridge stores and surfaces it; it does not actuate it.
type WorkModeUpdateEvent struct {
	Command    vpp.WorkModeCommand
	ReceivedAt time.Time
}

// BridgeStateUpdateEvent reflects the availability of the data source while
// the bridge process itself is still up.
type BridgeStateUpdateEvent struct {
	Online bool
}
