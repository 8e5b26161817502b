package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	adactor "github.com/arvoh/hass2vpp/internal/adapter/actor"
	coreactor "github.com/arvoh/hass2vpp/internal/core/actor"
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

func TestHealthCheckAndStatusRoutes(t *testing.T) {

	assert := assert.New(t)

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	cfg := util.LoadTestConfig()

	clientProvider := func(onConnectionLost func(error)) port.RegistryClient {
		return hass.CreateTestRegistryClient()
	}
	sourceProvider := func(client port.RegistryClient) (port.InverterDataSource, error) {
		return service.NewInverterDataSource(cfg.Inverter.Model, cfg.Inverter.DeviceId, client, client, client, logger)
	}

	props := actor.PropsFromProducer(func() actor.Actor {
		return coreactor.NewMasterOfPuppetsActor(cfg, func() *adactor.HassActor {
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

	srv := NewServer(cfg, context, pid)
	ts := httptest.NewServer(srv.Handler)
	defer ts.Close()

	res, err := http.Get(ts.URL + "/healthcheck")
	if err != nil {
		t.Error(err)
		return
	}
	body, _ := io.ReadAll(res.Body)
	res.Body.Close()

	assert.Equal(res.StatusCode, http.StatusOK, "healthcheck status code")
	assert.True(strings.Contains(string(body), "OK"), "healthcheck body")

	res, err = http.Get(ts.URL + "/status")
	if err != nil {
		t.Error(err)
		return
	}
	var status bridgeStatus
	err = json.NewDecoder(res.Body).Decode(&status)
	res.Body.Close()
	if err != nil {
		t.Error(err)
		return
	}

	assert.Equal(res.StatusCode, http.StatusOK, "status code")
	assert.True(status.Healthy, "status healthy")
	assert.True(status.HomeAssistant, "status home assistant")
	assert.True(status.VPPMQTT, "status vpp mqtt")
	assert.True(status.Telemetry, "status telemetry")
	assert.NotEmpty(status.Version, "status version")
	assert.Nil(status.LastWorkMode, "status last workmode")

	context.Stop(pid)

	as.Shutdown()
}
