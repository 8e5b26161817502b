package vpp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkModeCommandTopicParse(t *testing.T) {

	assert := assert.New(t)

	baseTopic := "loremTopic"
	topic := "loremTopic/unit_42/workmode"
	r := workModeCommandExtractor(baseTopic)
	matches := r.FindAllStringSubmatch(topic, 1)

	assert.Equal(matches[0][1], "unit_42", "unit extract")
}

func TestWorkModeCommandTopicParseFail(t *testing.T) {

	assert := assert.New(t)

	baseTopic := "loremTopic"
	topic := "loremTopic/unit_42/energy"
	r := workModeCommandExtractor(baseTopic)
	matches := r.FindAllStringSubmatch(topic, 1)

	assert.Equal(len(matches), 0, "no matches")
}

func TestTopics(t *testing.T) {

	assert := assert.New(t)

	c := CreateMQTTClient(Options{
		Host:      "localhost",
		Port:      1883,
		BaseTopic: "vpp",
		UnitId:    "unit_42",
	}, MQTTOptsFromOptions(Options{
		Host:      "localhost",
		Port:      1883,
		BaseTopic: "vpp",
		UnitId:    "unit_42",
	}), nil, nil)

	assert.Equal("vpp/unit_42/energy", c.EnergyTopic())
	assert.Equal("vpp/unit_42/metrics", c.MetricsTopic())
	assert.Equal("vpp/unit_42/workmode", c.WorkModeTopic())
	assert.Equal("vpp/unit_42/bridge/state", c.BridgeStateTopic())
}

func TestEnergyDataJSONFieldNames(t *testing.T) {

	assert := assert.New(t)

	payload, err := json.Marshal(EnergyData{
		Power:     [3]float64{-100, -200, -300},
		Frequency: 50.02,
	})
	assert.NoError(err)

	var decoded map[string]any
	assert.NoError(json.Unmarshal(payload, &decoded))
	for _, key := range []string{"Power", "Today", "Total", "Current", "Voltage", "Frequency"} {
		assert.Contains(decoded, key)
	}
}

func TestMetricsDataJSONFieldNames(t *testing.T) {

	assert := assert.New(t)

	payload, err := json.Marshal(MetricsData{
		BatterySOC:     88,
		InverterStatus: 2,
	})
	assert.NoError(err)

	var decoded map[string]any
	assert.NoError(json.Unmarshal(payload, &decoded))
	for _, key := range []string{
		"PvPower", "PvVoltage", "PvCurrent", "LoadPower", "LoadCurrent",
		"BatteryPower", "BatteryCurrent", "BatteryVoltage", "BatterySOC",
		"BatteryTemperature", "InverterStatus", "InverterTemperature",
		"AlarmCodes", "GridExportLimit",
	} {
		assert.Contains(decoded, key)
	}
}

func TestWorkModeCommandDecode(t *testing.T) {

	assert := assert.New(t)

	raw := `{"Mode":"buy","GridSetpoint":-3000,"ChargePower":2500,"DischargePower":0}`
	var cmd WorkModeCommand
	assert.NoError(json.Unmarshal([]byte(raw), &cmd))
	assert.Equal("buy", cmd.Mode)
	assert.Equal(-3000.0, cmd.GridSetpoint)
	assert.Equal(2500.0, cmd.ChargePower)
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestParseWorkModeCommand(t *testing.T) {

	assert := assert.New(t)

	opts := Options{
		Host:      "localhost",
		Port:      1883,
		BaseTopic: "vpp",
		UnitId:    "unit_42",
	}
	c := CreateMQTTClient(opts, MQTTOptsFromOptions(opts), nil, nil)

	cmd, err := c.ParseWorkModeCommand(fakeMessage{
		topic:   "vpp/unit_42/workmode",
		payload: []byte(`{"Mode":"sell","GridSetpoint":-5000}`),
	})
	assert.NoError(err)
	assert.Equal(cmd.Mode, "sell", "command mode")
	assert.Equal(cmd.GridSetpoint, -5000.0, "command grid setpoint")

	_, err = c.ParseWorkModeCommand(fakeMessage{
		topic:   "vpp/unit_1/workmode",
		payload: []byte(`{"Mode":"sell"}`),
	})
	assert.Error(err, "another unit")

	_, err = c.ParseWorkModeCommand(fakeMessage{
		topic:   "vpp/unit_42/workmode",
		payload: []byte(`mode=sell`),
	})
	assert.Error(err, "not JSON")

	_, err = c.ParseWorkModeCommand(fakeMessage{
		topic:   "vpp/unit_42/workmode",
		payload: []byte(`{"GridSetpoint":-5000}`),
	})
	assert.Error(err, "missing mode")
}
