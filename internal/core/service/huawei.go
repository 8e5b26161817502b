package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/arvoh/hass2vpp/internal/core/domain"
	"github.com/arvoh/hass2vpp/internal/core/port"
	"github.com/arvoh/hass2vpp/pkg/vpp"

	"go.uber.org/zap"
)

const ModelHuawei = "huawei"

// Provisional readings the integration has no sensor mapping for yet.
// Replacing one of these with a real sensor is a one-line change.
const (
	provisionalEnergyToday    = 0
	provisionalInverterStatus = 2
)

var (
	provisionalLoadCurrent = [3]float64{0, 0, 0}
	provisionalAlarmCodes  = [6]int{0, 0, 0, 0, 0, 0}
)

// deratingEntityId is a number entity created outside the inverter device
// hierarchy, so it is read under its fixed id instead of the collected set.
const deratingEntityId = "number.inverter_power_derating"

// NewInverterDataSource builds the adapter for the configured inverter
// model.
func NewInverterDataSource(model string, rootDeviceId string, devices port.DeviceRegistry,
	entities port.EntityRegistry, states port.StateProvider, logger *zap.Logger) (port.InverterDataSource, error) {
	switch strings.ToLower(model) {
	case ModelHuawei:
		return NewHuaweiAdapter(rootDeviceId, devices, entities, states, logger)
	default:
		return nil, fmt.Errorf("unsupported inverter model %q", model)
	}
}

func SupportedInverterModel(model string) bool {
	return strings.ToLower(model) == ModelHuawei
}

// HuaweiAdapter assembles VPP telemetry records from the entities of a
// Huawei inverter device and its child devices (power meter, battery).
//
// The entity set is a snapshot taken at construction; states are read fresh
// on every record generation. Missing or unparseable readings degrade to
// zero values, never errors.
type HuaweiAdapter struct {
	rootDeviceId string
	states       port.StateProvider
	entities     []domain.Entity
	logger       *zap.Logger
}

func NewHuaweiAdapter(rootDeviceId string, devices port.DeviceRegistry, entities port.EntityRegistry,
	states port.StateProvider, logger *zap.Logger) (*HuaweiAdapter, error) {

	collected, err := collectDeviceEntities(rootDeviceId, devices, entities)
	if err != nil {
		return nil, err
	}

	adapter := &HuaweiAdapter{
		rootDeviceId: rootDeviceId,
		states:       states,
		entities:     collected,
		logger:       logger.With(zap.String("source", ModelHuawei)),
	}
	if len(collected) == 0 {
		adapter.logger.Warn("huawei: no enabled entities collected, all readings will default",
			zap.String("device", rootDeviceId))
	} else {
		adapter.logger.Info("huawei: collected device entities",
			zap.String("device", rootDeviceId), zap.Int("entities", len(collected)))
	}
	return adapter, nil
}

// collectDeviceEntities snapshots the enabled entities of the root device
// and of every child device linked to it through via_device_id. A child
// contributes only when it has at least one enabled entity; each entity
// appears at most once.
//
// The result is ordered so suffix resolution is deterministic: root-device
// entities before child entities, shorter ids before longer, then
// lexicographic.
func collectDeviceEntities(rootDeviceId string, deviceReg port.DeviceRegistry,
	entityReg port.EntityRegistry) ([]domain.Entity, error) {

	devices, err := deviceReg.Devices()
	if err != nil {
		return nil, err
	}
	entities, err := entityReg.Entities()
	if err != nil {
		return nil, err
	}

	byDevice := make(map[string][]domain.Entity)
	for _, e := range entities {
		if e.Enabled() {
			byDevice[e.DeviceId] = append(byDevice[e.DeviceId], e)
		}
	}

	root := byDevice[rootDeviceId]
	var children []domain.Entity
	for _, d := range devices {
		if d.Id != rootDeviceId && d.ViaDeviceId == rootDeviceId {
			children = append(children, byDevice[d.Id]...)
		}
	}

	sortEntities(root)
	sortEntities(children)

	collected := make([]domain.Entity, 0, len(root)+len(children))
	seen := make(map[string]struct{}, len(root)+len(children))
	for _, e := range append(root, children...) {
		if _, ok := seen[e.Id]; ok {
			continue
		}
		seen[e.Id] = struct{}{}
		collected = append(collected, e)
	}
	return collected, nil
}

func sortEntities(entities []domain.Entity) {
	sort.Slice(entities, func(i, j int) bool {
		if len(entities[i].Id) != len(entities[j].Id) {
			return len(entities[i].Id) < len(entities[j].Id)
		}
		return entities[i].Id < entities[j].Id
	})
}

// resolveState resolves a short logical sensor name to the current state of
// the first collected entity whose full id ends with it. The derating
// number entity bypasses the collected set, see deratingEntityId.
func (a *HuaweiAdapter) resolveState(logicalName string) domain.StateValue {
	if logicalName == "inverter_power_derating" {
		return a.states.State(deratingEntityId)
	}
	for _, e := range a.entities {
		if strings.HasSuffix(e.Id, logicalName) {
			return a.states.State(e.Id)
		}
	}
	return domain.MissingState()
}

func (a *HuaweiAdapter) floatState(logicalName string, def float64) float64 {
	return a.resolveState(logicalName).FloatOr(def)
}

func (a *HuaweiAdapter) intState(logicalName string, def int) int {
	return a.resolveState(logicalName).IntOr(def)
}

func (a *HuaweiAdapter) textState(logicalName string, def string) string {
	return a.resolveState(logicalName).TextOr(def)
}

func (a *HuaweiAdapter) Info() domain.SourceInfo {
	return domain.SourceInfo{
		Model:        ModelHuawei,
		RootDeviceId: a.rootDeviceId,
		EntityCount:  len(a.entities),
	}
}

// EnergyData reads the grid meter sensors. The meter reports import as
// positive; the record wants generation-positive, so active powers and the
// consumption total flip sign.
func (a *HuaweiAdapter) EnergyData() vpp.EnergyData {
	return vpp.EnergyData{
		Power: [3]float64{
			-a.floatState("power_meter_phase_a_active_power", 0),
			-a.floatState("power_meter_phase_b_active_power", 0),
			-a.floatState("power_meter_phase_c_active_power", 0),
		},
		Today: provisionalEnergyToday,
		Total: -a.floatState("power_meter_consumption", 0),
		Current: [3]float64{
			a.floatState("power_meter_phase_a_current", 0),
			a.floatState("power_meter_phase_b_current", 0),
			a.floatState("power_meter_phase_c_current", 0),
		},
		Voltage: [3]float64{
			a.floatState("power_meter_phase_a_voltage", 0),
			a.floatState("power_meter_phase_b_voltage", 0),
			a.floatState("power_meter_phase_c_voltage", 0),
		},
		Frequency: a.floatState("power_meter_frequency", 0),
	}
}

// MetricsData reads the plant-side sensors. String power is voltage times
// current per PV string; load power is inverter output minus grid power.
func (a *HuaweiAdapter) MetricsData() vpp.MetricsData {
	pv1Voltage := a.floatState("pv_1_voltage", 0)
	pv1Current := a.floatState("pv_1_current", 0)
	pv2Voltage := a.floatState("pv_2_voltage", 0)
	pv2Current := a.floatState("pv_2_current", 0)

	inverterPower := a.floatState("active_power", 0)
	gridPower := a.floatState("power_meter_active_power", 0)

	return vpp.MetricsData{
		PvPower:             [2]float64{pv1Voltage * pv1Current, pv2Voltage * pv2Current},
		PvVoltage:           [2]float64{pv1Voltage, pv2Voltage},
		PvCurrent:           [2]float64{pv1Current, pv2Current},
		LoadPower:           [1]float64{inverterPower - gridPower},
		LoadCurrent:         provisionalLoadCurrent,
		BatteryPower:        [1]float64{a.floatState("charge_discharge_power", 0)},
		BatteryCurrent:      [1]float64{a.floatState("bus_current", 0)},
		BatteryVoltage:      [1]float64{a.floatState("bus_voltage", 0)},
		BatterySOC:          a.intState("state_of_capacity", 0),
		BatteryTemperature:  [1]float64{a.floatState("battery_1_bms_temperature", 0)},
		InverterStatus:      provisionalInverterStatus,
		InverterTemperature: a.floatState("internal_temperature", 0),
		AlarmCodes:          provisionalAlarmCodes,
		GridExportLimit:     a.floatState("inverter_power_derating", 0),
	}
}

// ensure interface compliance
var _ port.InverterDataSource = (*HuaweiAdapter)(nil)
