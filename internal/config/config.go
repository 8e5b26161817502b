package config

import (
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel      zapcore.Level
	HomeAssistant HomeAssistantConfig `mapstructure:"home_assistant"`
	Inverter      InverterConfig      `mapstructure:"inverter"`
	VPPMQTT       VPPMQTTConfig       `mapstructure:"vpp_mqtt"`
	Telemetry     TelemetryConfig     `mapstructure:"telemetry"`
	Port          uint                `mapstructure:"port"`
	HttpLog       bool                `mapstructure:"http_log"`
}

type HomeAssistantConfig struct {
	URL   string
	Token string
}

type InverterConfig struct {
	Model    string
	DeviceId string `mapstructure:"device_id"`
}

type VPPMQTTConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	BaseTopic string `mapstructure:"base_topic"`
	UnitId    string `mapstructure:"unit_id"`
}

type TelemetryConfig struct {
	EnergyIntervalMillis  uint32 `mapstructure:"energy_interval_millis"`
	MetricsIntervalMillis uint32 `mapstructure:"metrics_interval_millis"`
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
