package actor

import (
	"errors"
	"fmt"
	"log"
	"time"

	adactor "github.com/arvoh/hass2vpp/internal/adapter/actor"
	"github.com/arvoh/hass2vpp/internal/config"
	"github.com/arvoh/hass2vpp/internal/core/domain"
	. "github.com/arvoh/hass2vpp/internal/util/actorutil"
	"github.com/arvoh/hass2vpp/pkg/vpp"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

type HassActorProvider func() *adactor.HassActor

type VPPMQTTActorProvider func(*eventstream.EventStream) *adactor.VPPMQTTActor

// MasterOfPuppetsActor supervises the actor tree: the hass adapter, the VPP
// MQTT adapter and the telemetry composer. It also keeps the last WORKMODE
// command received from the VPP service, for the status endpoint.
type MasterOfPuppetsActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck   healthCheckResult
	eventStream          *eventstream.EventStream
	hassActor            *actor.PID
	vppMQTTActor         *actor.PID
	telemetryActor       *actor.PID
	lastWorkMode         *vpp.WorkModeCommand
	lastWorkModeAt       time.Time
	hassActorProvider    HassActorProvider
	vppMQTTActorProvider VPPMQTTActorProvider
	logger               *zap.Logger
}

type healthCheckResult struct {
	hassActorHealthy      bool
	vppMQTTActorHealthy   bool
	telemetryActorHealthy bool
	checksReceived        int
	forStatus             bool
	respondTo             *actor.PID
}

func NewMasterOfPuppetsActor(config config.Config, hassActorProvider HassActorProvider, vppMQTTActorProvider VPPMQTTActorProvider, logger *zap.Logger) *MasterOfPuppetsActor {
	act := &MasterOfPuppetsActor{
		config:               config,
		behavior:             actor.NewBehavior(),
		stash:                &Stash{},
		logger:               ActorLogger("master", logger),
		eventStream:          &eventstream.EventStream{},
		hassActorProvider:    hassActorProvider,
		vppMQTTActorProvider: vppMQTTActorProvider,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterOfPuppetsActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterOfPuppetsActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		state.currentHealthCheck = healthCheckResult{}
		state.currentHealthCheck.reset()

		// start hass child
		hassActorPID, err := state.startHassActor(ctx)
		if err != nil {
			panic(err)
		}
		state.hassActor = hassActorPID

		// start VPP MQTT child
		vppMQTTActorPID, err := state.startVPPMQTTActor(ctx)
		if err != nil {
			panic(err)
		}
		state.vppMQTTActor = vppMQTTActorPID

		// start telemetry child
		telemetryActorPID, err := state.startTelemetryActor(ctx)
		if err != nil {
			panic(err)
		}
		state.telemetryActor = telemetryActorPID

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.startHealthCheck(ctx, false)
	case domain.BridgeStatusRequest:
		state.logger.Debug("master@default BridgeStatusRequest")
		state.startHealthCheck(ctx, true)
	case adactor.ParsedCommand:
		// keep the command and surface it on the event stream
		state.logger.Debug("master@default parsedCommand", zap.Any("command", msg.Command))
		if msg.Command != nil {
			state.lastWorkMode = msg.Command
			state.lastWorkModeAt = time.Now()
			state.eventStream.Publish(domain.WorkModeUpdateEvent{
				Command:    *msg.Command,
				ReceivedAt: state.lastWorkModeAt,
			})
		}
	case *actor.Terminated:
		// if the data source fails on boot, terminate
		if msg.Who.Id == fmt.Sprintf("%s/%s", domain.ACTOR_ID_MASTER, domain.ACTOR_ID_HASS) {
			state.logger.Error("master@default hass error")
			state.eventStream.Publish(domain.BridgeStateUpdateEvent{Online: false})
			panic(errors.New("hass terminated"))
		}
	case *actor.ReceiveTimeout:
	default:
		state.logger.Debug("master@default stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) startHealthCheck(ctx actor.Context, forStatus bool) {
	state.currentHealthCheck.reset()
	state.currentHealthCheck.respondTo = ctx.Sender()
	state.currentHealthCheck.forStatus = forStatus
	// hass actor request
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.hassActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
		return domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_HASS,
			Healthy: false,
		}
	})
	// VPP MQTT actor request
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.vppMQTTActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
		return domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_VPP_MQTT,
			Healthy: false,
		}
	})
	// telemetry actor request
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.telemetryActor, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
		return domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_TELEMETRY,
			Healthy: false,
		}
	})

	ctx.SetReceiveTimeout(1 * time.Second)

	state.behavior.BecomeStacked(state.HealthCheckReceive)
}

func (state *MasterOfPuppetsActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		ctx.CancelReceiveTimeout()
		state.currentHealthCheck.respond(ctx, state.lastWorkMode, state.lastWorkModeAt)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.checksReceived++
		if msg.Healthy {
			if msg.Id == domain.ACTOR_ID_HASS {
				state.currentHealthCheck.hassActorHealthy = true
			} else if msg.Id == domain.ACTOR_ID_VPP_MQTT {
				state.currentHealthCheck.vppMQTTActorHealthy = true
			} else if msg.Id == domain.ACTOR_ID_TELEMETRY {
				state.currentHealthCheck.telemetryActorHealthy = true
			}
		}
		if state.currentHealthCheck.allReceived() {

			ctx.CancelReceiveTimeout()

			state.currentHealthCheck.respond(ctx, state.lastWorkMode, state.lastWorkModeAt)

			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		} else {
			ctx.SetReceiveTimeout(1 * time.Second)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) startHassActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	hassProps := actor.PropsFromProducer(func() actor.Actor {
		return state.hassActorProvider()
	}, actor.WithSupervisor(supervisor))
	hassActorPID, err := ctx.SpawnNamed(hassProps, domain.ACTOR_ID_HASS)
	if err != nil {
		return nil, err
	}

	return hassActorPID, nil
}

func (state *MasterOfPuppetsActor) startVPPMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	vppMQTTProps := actor.PropsFromProducer(func() actor.Actor {
		return state.vppMQTTActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	vppMQTTActorPID, err := ctx.SpawnNamed(vppMQTTProps, domain.ACTOR_ID_VPP_MQTT)
	if err != nil {
		return nil, err
	}

	return vppMQTTActorPID, nil
}

func (state *MasterOfPuppetsActor) startTelemetryActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	telemetryProps := actor.PropsFromProducer(func() actor.Actor {
		return NewTelemetryActor(&state.config, state.hassActor, state.eventStream, state.logger)
	}, actor.WithSupervisor(supervisor))
	telemetryActorPID, err := ctx.SpawnNamed(telemetryProps, domain.ACTOR_ID_TELEMETRY)
	if err != nil {
		return nil, err
	}

	return telemetryActorPID, nil
}

func (state *healthCheckResult) reset() {
	state.hassActorHealthy = false
	state.vppMQTTActorHealthy = false
	state.telemetryActorHealthy = false
	state.checksReceived = 0
	state.forStatus = false
	state.respondTo = nil
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived == 3
}

func (state *healthCheckResult) allHealthy() bool {
	return state.hassActorHealthy && state.vppMQTTActorHealthy && state.telemetryActorHealthy
}

func (state *healthCheckResult) respond(ctx actor.Context, lastWorkMode *vpp.WorkModeCommand, lastWorkModeAt time.Time) {
	if state.respondTo == nil {
		return
	}
	if state.forStatus {
		ctx.Send(state.respondTo, domain.BridgeStatusResponse{
			Healthy:          state.allHealthy(),
			HassHealthy:      state.hassActorHealthy,
			VPPMQTTHealthy:   state.vppMQTTActorHealthy,
			TelemetryHealthy: state.telemetryActorHealthy,
			LastWorkMode:     lastWorkMode,
			LastWorkModeAt:   lastWorkModeAt,
		})
		return
	}
	ctx.Send(state.respondTo, domain.ActorHealthResponse{
		Id:      "master",
		Healthy: state.allHealthy(),
	})
}
