package vpp

// Payload records exchanged with the VPP service over MQTT. Field names
// follow the service schema verbatim, so the JSON tags are part of the wire
// contract.

// EnergyData is the ENERGY record: grid-side measurements per phase, with
// generation-positive sign convention.
type EnergyData struct {
	Power     [3]float64 `json:"Power"`
	Today     float64    `json:"Today"`
	Total     float64    `json:"Total"`
	Current   [3]float64 `json:"Current"`
	Voltage   [3]float64 `json:"Voltage"`
	Frequency float64    `json:"Frequency"`
}

// MetricsData is the METRICS record: plant-side measurements covering the
// PV strings, the local load and the battery.
type MetricsData struct {
	PvPower             [2]float64 `json:"PvPower"`
	PvVoltage           [2]float64 `json:"PvVoltage"`
	PvCurrent           [2]float64 `json:"PvCurrent"`
	LoadPower           [1]float64 `json:"LoadPower"`
	LoadCurrent         [3]float64 `json:"LoadCurrent"`
	BatteryPower        [1]float64 `json:"BatteryPower"`
	BatteryCurrent      [1]float64 `json:"BatteryCurrent"`
	BatteryVoltage      [1]float64 `json:"BatteryVoltage"`
	BatterySOC          int        `json:"BatterySOC"`
	BatteryTemperature  [1]float64 `json:"BatteryTemperature"`
	InverterStatus      int        `json:"InverterStatus"`
	InverterTemperature float64    `json:"InverterTemperature"`
	AlarmCodes          [6]int     `json:"AlarmCodes"`
	GridExportLimit     float64    `json:"GridExportLimit"`
}

// WorkModeCommand is the WORKMODE command the service sends back to steer
// the plant.
type WorkModeCommand struct {
	Id             string  `json:"Id,omitempty"`
	Mode           string  `json:"Mode"`
	GridSetpoint   float64 `json:"GridSetpoint"`
	ChargePower    float64 `json:"ChargePower"`
	DischargePower float64 `json:"DischargePower"`
	Timestamp      string  `json:"Timestamp,omitempty"`
}
