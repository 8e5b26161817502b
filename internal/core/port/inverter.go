package port

import (
	"github.com/arvoh/hass2vpp/internal/core/domain"
	"github.com/arvoh/hass2vpp/pkg/vpp"
)

// InverterDataSource assembles telemetry records from current platform
// state. Record generation never fails; missing readings degrade to
// defaults.
type InverterDataSource interface {
	Info() domain.SourceInfo
	EnergyData() vpp.EnergyData
	MetricsData() vpp.MetricsData
}
