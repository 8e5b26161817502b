package util

import (
	"github.com/arvoh/hass2vpp/internal/config"
	"github.com/arvoh/hass2vpp/internal/hass"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		HomeAssistant: config.HomeAssistantConfig{
			URL:   "http://localhost:8123",
			Token: "test-token",
		},
		Inverter: config.InverterConfig{
			Model:    "huawei",
			DeviceId: hass.TestRootDeviceId,
		},
		VPPMQTT: config.VPPMQTTConfig{
			Host:      "localhost",
			Port:      1883,
			BaseTopic: "vpp",
			UnitId:    "unit-test-1",
		},
		Telemetry: config.TelemetryConfig{
			EnergyIntervalMillis:  10000,
			MetricsIntervalMillis: 5000,
		},
		Port: 8080,
	}
}
