package hass

import (
	"github.com/arvoh/hass2vpp/internal/core/domain"
	"github.com/arvoh/hass2vpp/internal/core/port"
)

const TestRootDeviceId = "huawei-inverter-1"

func CreateTestRegistryClient() port.RegistryClient {
	return &TestRegistryClient{}
}

// TestRegistryClient serves a fixed huawei_solar registry layout: an
// inverter with a power meter and a battery child device, plus the power
// derating number outside the device hierarchy.
type TestRegistryClient struct {
	connected bool
}

func (c *TestRegistryClient) Connect() error {
	c.connected = true
	return nil
}

func (c *TestRegistryClient) Close() error {
	c.connected = false
	return nil
}

func (c *TestRegistryClient) Connected() bool {
	return c.connected
}

func (c *TestRegistryClient) Devices() ([]domain.Device, error) {
	return []domain.Device{
		{Id: TestRootDeviceId, Name: "Inverter", Manufacturer: "Huawei", Model: "SUN2000-10KTL-M1"},
		{Id: "huawei-meter-1", Name: "Power Meter", Manufacturer: "Huawei", Model: "DTSU666-H", ViaDeviceId: TestRootDeviceId},
		{Id: "huawei-battery-1", Name: "Battery", Manufacturer: "Huawei", Model: "LUNA2000", ViaDeviceId: TestRootDeviceId},
	}, nil
}

func (c *TestRegistryClient) Entities() ([]domain.Entity, error) {
	entities := make([]domain.Entity, 0, len(testEntityRows))
	for _, row := range testEntityRows {
		entities = append(entities, domain.Entity{
			Id:       row.id,
			DeviceId: row.deviceId,
			Platform: "huawei_solar",
		})
	}
	return entities, nil
}

func (c *TestRegistryClient) State(entityId string) domain.StateValue {
	for _, row := range testEntityRows {
		if row.id == entityId {
			return domain.StateOf(row.state)
		}
	}
	return domain.MissingState()
}

type testEntityRow struct {
	id       string
	deviceId string
	state    string
}

var testEntityRows = []testEntityRow{
	{"sensor.inverter_active_power", TestRootDeviceId, "3200"},
	{"sensor.inverter_internal_temperature", TestRootDeviceId, "40.1"},
	{"sensor.inverter_pv_1_voltage", TestRootDeviceId, "395.5"},
	{"sensor.inverter_pv_1_current", TestRootDeviceId, "4"},
	{"sensor.inverter_pv_2_voltage", TestRootDeviceId, "0"},
	{"sensor.inverter_pv_2_current", TestRootDeviceId, "0"},
	{"sensor.power_meter_phase_a_active_power", "huawei-meter-1", "250"},
	{"sensor.power_meter_phase_b_active_power", "huawei-meter-1", "255"},
	{"sensor.power_meter_phase_c_active_power", "huawei-meter-1", "260"},
	{"sensor.power_meter_phase_a_current", "huawei-meter-1", "1.1"},
	{"sensor.power_meter_phase_b_current", "huawei-meter-1", "1.2"},
	{"sensor.power_meter_phase_c_current", "huawei-meter-1", "1.3"},
	{"sensor.power_meter_phase_a_voltage", "huawei-meter-1", "229.8"},
	{"sensor.power_meter_phase_b_voltage", "huawei-meter-1", "230.2"},
	{"sensor.power_meter_phase_c_voltage", "huawei-meter-1", "230.6"},
	{"sensor.power_meter_frequency", "huawei-meter-1", "49.98"},
	{"sensor.power_meter_active_power", "huawei-meter-1", "-800"},
	{"sensor.power_meter_consumption", "huawei-meter-1", "10250.5"},
	{"sensor.battery_charge_discharge_power", "huawei-battery-1", "-1500"},
	{"sensor.battery_bus_current", "huawei-battery-1", "4.2"},
	{"sensor.battery_bus_voltage", "huawei-battery-1", "357.1"},
	{"sensor.battery_state_of_capacity", "huawei-battery-1", "76.8"},
	{"sensor.battery_1_bms_temperature", "huawei-battery-1", "27.9"},
	{"number.inverter_power_derating", "", "6000"},
}
