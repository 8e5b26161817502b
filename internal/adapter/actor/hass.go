package actor

import (
	"fmt"
	"time"

	"github.com/arvoh/hass2vpp/internal/core/domain"
	"github.com/arvoh/hass2vpp/internal/core/port"
	"github.com/arvoh/hass2vpp/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// RegistryClientProvider builds the registry backend for the hass actor.
// The callback must fire when an established connection drops.
type RegistryClientProvider func(onConnectionLost func(error)) port.RegistryClient

// InverterSourceProvider builds the inverter data source over a connected
// registry backend.
type InverterSourceProvider func(client port.RegistryClient) (port.InverterDataSource, error)

// HassActor owns the Home Assistant connection and the inverter data source
// built on top of it. Data requests are answered from the in-memory state
// store, so they never block on the platform.
type HassActor struct {
	behavior       actor.Behavior
	stash          *actorutil.Stash
	clientProvider RegistryClientProvider
	sourceProvider InverterSourceProvider
	client         port.RegistryClient
	source         port.InverterDataSource
	logger         *zap.Logger
}

type HassConnectionLost struct {
	Error error
}

type hassInitResult struct {
	source port.InverterDataSource
	err    error
}

func NewHassActor(clientProvider RegistryClientProvider, sourceProvider InverterSourceProvider, logger *zap.Logger) *HassActor {
	act := &HassActor{
		behavior:       actor.NewBehavior(),
		stash:          &actorutil.Stash{},
		clientProvider: clientProvider,
		sourceProvider: sourceProvider,
		logger:         actorutil.ActorLogger(domain.ACTOR_ID_HASS, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HassActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HassActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hass@starting started")

		client := state.clientProvider(func(err error) {
			ctx.Send(ctx.Self(), HassConnectionLost{Error: err})
		})
		state.client = client

		actorutil.NewBackgroundTask(ctx, func() (*hassInitResult, error) {
			if err := client.Connect(); err != nil {
				return nil, err
			}
			source, err := state.sourceProvider(client)
			if err != nil {
				return nil, err
			}
			return &hassInitResult{source: source}, nil
		}).Recover(func(err error) hassInitResult {
			return hassInitResult{err: err}
		}).WithTimeout(30 * time.Second).PipeTo(ctx.Self())
	case hassInitResult:
		if msg.err != nil {
			// let the supervisor decide
			state.logger.Error("hass@starting init failed", zap.Error(msg.err))
			panic(msg.err)
		}
		state.source = msg.source
		info := state.source.Info()
		state.logger.Info("hass@starting ready",
			zap.String("model", info.Model),
			zap.String("device", info.RootDeviceId),
			zap.Int("entities", info.EntityCount))
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case HassConnectionLost:
		state.logger.Error("hass@starting connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	case *actor.Restarting:
		state.stop()
	default:
		state.logger.Debug("hass@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HassActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	case domain.ActorHealthRequest:
		state.logger.Debug("hass@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_HASS,
			Healthy: state.client.Connected(),
			State:   "idle",
		})
	case domain.GetSourceInfoRequest:
		state.logger.Debug("hass@default GetSourceInfoRequest")
		info := state.source.Info()
		actorutil.ForRequest(msg).Respond(ctx, domain.GetSourceInfoResponse{
			Info: &info,
		})
	case domain.GetEnergyDataRequest:
		state.logger.Debug("hass@default GetEnergyDataRequest")
		energy := state.source.EnergyData()
		actorutil.ForRequest(msg).Respond(ctx, domain.GetEnergyDataResponse{
			Energy: &energy,
		})
	case domain.GetMetricsDataRequest:
		state.logger.Debug("hass@default GetMetricsDataRequest")
		metrics := state.source.MetricsData()
		actorutil.ForRequest(msg).Respond(ctx, domain.GetMetricsDataResponse{
			Metrics: &metrics,
		})
	case HassConnectionLost:
		// stop and let the supervisor decide
		state.logger.Error("hass@default connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	default:
		state.logger.Debug("hass@default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HassActor) stop() {
	state.logger.Debug("hass: close client")
	if state.client != nil {
		state.client.Close()
	}
}
