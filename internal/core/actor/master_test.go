package actor

import (
	"errors"
	"fmt"
	"testing"
	"time"

	adactor "github.com/arvoh/hass2vpp/internal/adapter/actor"
	"github.com/arvoh/hass2vpp/internal/core/domain"
	"github.com/arvoh/hass2vpp/internal/core/port"
	"github.com/arvoh/hass2vpp/internal/core/service"
	"github.com/arvoh/hass2vpp/internal/hass"
	"github.com/arvoh/hass2vpp/internal/util"
	"github.com/arvoh/hass2vpp/pkg/vpp"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMasterActor(t *testing.T) {

	as := actor.NewActorSystem()
	context := as.Root

	cfg := util.LoadTestConfig()
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(logCfg.Build())

	clientProvider := func(onConnectionLost func(error)) port.RegistryClient {
		return hass.CreateTestRegistryClient()
	}
	sourceProvider := func(client port.RegistryClient) (port.InverterDataSource, error) {
		return service.NewInverterDataSource(cfg.Inverter.Model, cfg.Inverter.DeviceId, client, client, client, logger)
	}

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterOfPuppetsActor(cfg, func() *adactor.HassActor {
			return adactor.NewHassActor(clientProvider, sourceProvider, logger)
		}, func(es *eventstream.EventStream) *adactor.VPPMQTTActor {
			return adactor.NewTestVPPMQTTActor(&cfg, es, logger)
		}, logger)
	})
	pid, err := context.SpawnNamed(props, "master")
	if err != nil {
		t.Error(err)
		return
	}

	time.Sleep(2 * time.Second)

	res, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	healthResp, ok := res.(domain.ActorHealthResponse)
	assert.True(t, ok)
	fmt.Printf("Health response: %+v\n", healthResp)
	assert.NotNil(t, healthResp)

	assert.True(t, healthResp.Healthy, "healthy is true")

	res, err = context.RequestFuture(pid, domain.BridgeStatusRequest{}, 10*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	statusResp, ok := res.(domain.BridgeStatusResponse)
	assert.True(t, ok)

	assert.True(t, statusResp.Healthy, "status healthy is true")
	assert.True(t, statusResp.HassHealthy, "hass healthy is true")
	assert.True(t, statusResp.VPPMQTTHealthy, "vpp mqtt healthy is true")
	assert.True(t, statusResp.TelemetryHealthy, "telemetry healthy is true")
	assert.Nil(t, statusResp.LastWorkMode, "no workmode command received yet")

	// a WORKMODE command arrives from the VPP service
	context.Send(pid, adactor.ParsedCommand{Command: &vpp.WorkModeCommand{
		Mode:         "buy",
		GridSetpoint: 2000,
	}})

	time.Sleep(200 * time.Millisecond)

	res, err = context.RequestFuture(pid, domain.BridgeStatusRequest{}, 10*time.Second).Result()
	if err != nil {
		t.Error(err)
		return
	}
	statusResp, ok = res.(domain.BridgeStatusResponse)
	assert.True(t, ok)

	if assert.NotNil(t, statusResp.LastWorkMode, "workmode command stored") {
		assert.Equal(t, statusResp.LastWorkMode.Mode, "buy", "workmode mode")
		assert.Equal(t, statusResp.LastWorkMode.GridSetpoint, float64(2000), "workmode grid setpoint")
	}
	assert.False(t, statusResp.LastWorkModeAt.IsZero(), "workmode timestamp set")

	context.Stop(pid)

	as.Shutdown()
}

func healthCheck(ctx *actor.RootContext, pid *actor.PID) (*domain.ActorHealthResponse, error) {
	resp, err := ctx.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	if err != nil {
		return nil, err
	}
	hcr, ok := resp.(domain.ActorHealthResponse)
	if !ok {
		return nil, errors.New("unexpected response type")
	}
	return &hcr, nil
}
