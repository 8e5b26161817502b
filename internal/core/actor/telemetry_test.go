package actor

import (
	"testing"
	"time"

	adactor "github.com/arvoh/hass2vpp/internal/adapter/actor"
	"github.com/arvoh/hass2vpp/internal/core/domain"
	"github.com/arvoh/hass2vpp/internal/core/port"
	"github.com/arvoh/hass2vpp/internal/core/service"
	"github.com/arvoh/hass2vpp/internal/hass"
	"github.com/arvoh/hass2vpp/internal/util"
	"github.com/arvoh/hass2vpp/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func spawnTestHassActor(context *actor.RootContext, logger *zap.Logger) *actor.PID {
	clientProvider := func(onConnectionLost func(error)) port.RegistryClient {
		return hass.CreateTestRegistryClient()
	}
	sourceProvider := func(client port.RegistryClient) (port.InverterDataSource, error) {
		return service.NewInverterDataSource("huawei", hass.TestRootDeviceId, client, client, client, logger)
	}
	props := actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewHassActor(clientProvider, sourceProvider, logger)
	})
	return context.Spawn(props)
}

func TestTelemetryActorPublishesRecords(t *testing.T) {

	assert := assert.New(t)

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	cfg := util.LoadTestConfig()
	cfg.Telemetry.EnergyIntervalMillis = 300
	cfg.Telemetry.MetricsIntervalMillis = 300

	hassPID := spawnTestHassActor(context, logger)

	es := &eventstream.EventStream{}
	events := make(chan any, 32)
	sub := es.Subscribe(func(evt any) {
		select {
		case events <- evt:
		default:
		}
	})
	defer es.Unsubscribe(sub)

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewTelemetryActor(&cfg, hassPID, es, logger)
	})
	pid := context.Spawn(props)

	time.Sleep(2 * time.Second)

	hcr, err := healthCheck(context, pid)
	if err != nil {
		t.Error(err)
		return
	}
	assert.True(hcr.Healthy, "actor should be healthy")
	assert.Equal(hcr.Id, domain.ACTOR_ID_TELEMETRY, "actor id")

	var energy *domain.EnergyTelemetryEvent
	var metrics *domain.MetricsTelemetryEvent
	for done := false; !done; {
		select {
		case evt := <-events:
			switch tev := evt.(type) {
			case domain.EnergyTelemetryEvent:
				energy = &tev
			case domain.MetricsTelemetryEvent:
				metrics = &tev
			}
		default:
			done = true
		}
	}

	if assert.NotNil(energy, "energy record published") {
		assert.Equal(energy.Energy.Power, [3]float64{-250, -255, -260}, "energy power")
		assert.Equal(energy.Energy.Total, -10250.5, "energy total")
	}
	if assert.NotNil(metrics, "metrics record published") {
		assert.Equal(metrics.Metrics.LoadPower, [1]float64{4000}, "metrics load power")
		assert.Equal(metrics.Metrics.BatterySOC, 76, "metrics battery soc")
	}

	context.Stop(pid)
	context.Stop(hassPID)

	as.Shutdown()
}

func TestTelemetryActorDisabledIntervals(t *testing.T) {

	assert := assert.New(t)

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	cfg := util.LoadTestConfig()
	cfg.Telemetry.EnergyIntervalMillis = 0
	cfg.Telemetry.MetricsIntervalMillis = 0

	hassPID := spawnTestHassActor(context, logger)

	es := &eventstream.EventStream{}
	events := make(chan any, 32)
	sub := es.Subscribe(func(evt any) {
		select {
		case events <- evt:
		default:
		}
	})
	defer es.Unsubscribe(sub)

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewTelemetryActor(&cfg, hassPID, es, logger)
	})
	pid := context.Spawn(props)

	time.Sleep(1500 * time.Millisecond)

	hcr, err := healthCheck(context, pid)
	if err != nil {
		t.Error(err)
		return
	}
	assert.True(hcr.Healthy, "actor should be healthy")
	assert.Equal(len(events), 0, "no records published")

	context.Stop(pid)
	context.Stop(hassPID)

	as.Shutdown()
}
