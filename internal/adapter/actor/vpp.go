package actor

import (
	"fmt"
	"time"

	"github.com/arvoh/hass2vpp/internal/config"
	"github.com/arvoh/hass2vpp/internal/core/domain"
	"github.com/arvoh/hass2vpp/internal/util/actorutil"
	"github.com/arvoh/hass2vpp/pkg/vpp"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// VPPMQTTActor owns the MQTT session towards the VPP service. Telemetry
// events picked up from the event stream are published to the unit's
// topics; WORKMODE commands arriving on the command topic are parsed and
// routed to the parent.
type VPPMQTTActor struct {
	config         *config.Config
	behavior       actor.Behavior
	stash          *actorutil.Stash
	client         *vpp.MQTTClient
	eventStream    *eventstream.EventStream
	eventStreamSub *eventstream.Subscription
	logger         *zap.Logger
}

type MQTTConnected struct {
}

type MQTTSubscribed struct {
}

type MQTTConnectionLost struct {
	Error error
}

type OnEventStreamMessage struct {
	message any
}

type publishResult struct {
	ReplyTo *actor.PID
	Error   error
}

type ParsedCommand struct {
	Command *vpp.WorkModeCommand
}

func OptsFromConfig(cfg *config.Config) vpp.Options {
	return vpp.Options{
		Host:      cfg.VPPMQTT.Host,
		Port:      cfg.VPPMQTT.Port,
		Username:  cfg.VPPMQTT.Username,
		Password:  cfg.VPPMQTT.Password,
		BaseTopic: cfg.VPPMQTT.BaseTopic,
		UnitId:    cfg.VPPMQTT.UnitId,
	}
}

func NewVPPMQTTActor(config *config.Config, eventStream *eventstream.EventStream, logger *zap.Logger) *VPPMQTTActor {
	act := &VPPMQTTActor{
		config:      config,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		eventStream: eventStream,
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_VPP_MQTT, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *VPPMQTTActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *VPPMQTTActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("vppmqtt@starting started")

		// create MQTT client
		opts := OptsFromConfig(state.config)
		state.client = vpp.CreateMQTTClient(opts, vpp.MQTTOptsFromOptions(opts), func(_ pahomqtt.Client) {
		}, func(_ pahomqtt.Client, err error) {
			ctx.Send(ctx.Self(), MQTTConnectionLost{Error: err})
		})

		// connect to MQTT server
		state.client.Connect(func(err error) {
			if err != nil {
				ctx.Send(ctx.Self(), MQTTConnectionLost{Error: err})
			} else {
				ctx.Send(ctx.Self(), MQTTConnected{})
			}
		}, 10*time.Second)

	case MQTTConnected:
		state.logger.Debug("vppmqtt@starting connected")

		state.client.Publish(state.client.BridgeStateTopic(), vpp.PAYLOAD_ONLINE, 0, true, func(error) {}, 500*time.Millisecond)

		// subscribe to eventStream
		state.eventStreamSub = state.eventStream.Subscribe(func(value any) {
			ctx.Send(ctx.Self(), OnEventStreamMessage{
				message: value,
			})
		})

		// subscribe to the WORKMODE command topic
		state.client.SubscribeToWorkModeTopic(func(c pahomqtt.Client, m pahomqtt.Message) {
			cmd, err := state.client.ParseWorkModeCommand(m)
			if err == nil && cmd != nil {
				ctx.Send(ctx.Self(), ParsedCommand{Command: cmd})
			}
		}, func(err error) {
			if err != nil {
				ctx.Send(ctx.Self(), MQTTConnectionLost{Error: err})
			} else {
				ctx.Send(ctx.Self(), MQTTSubscribed{})
			}
		}, 1*time.Second)
	case MQTTSubscribed:
		// init completed, transition to default state
		state.logger.Debug("vppmqtt@starting subscribed")
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case MQTTConnectionLost:
		// if connection lost, stop actor and let supervisor decide
		state.logger.Error("vppmqtt@starting connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	case *actor.Restarting:
		state.stop()
	default:
		state.logger.Debug("vppmqtt@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *VPPMQTTActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	case domain.ActorHealthRequest:
		state.logger.Debug("vppmqtt@default ActorHealthRequest")
		// respond health check request
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_VPP_MQTT,
			Healthy: true,
			State:   "idle",
		})
	case ParsedCommand:
		// route command to parent
		state.logger.Debug("vppmqtt@default parsedCommand", zap.Any("command", msg.Command))
		ctx.Send(ctx.Parent(), msg)
	case OnEventStreamMessage:
		// receive message from event bus and publish to MQTT if needed
		state.logger.Debug("vppmqtt@default OnEventStreamMessage", zap.String("type", fmt.Sprintf("%T", msg.message)))
		state.publishTelemetry(ctx, msg.message, nil)
	case domain.PublishTelemetryRequest:
		state.logger.Debug("vppmqtt@default PublishTelemetryRequest", zap.String("type", fmt.Sprintf("%T", msg.Event)))
		state.publishTelemetry(ctx, msg.Event, actorutil.ForRequest(msg).ReplyTo(ctx))
	case MQTTConnectionLost:
		// if connection lost, stop actor and let supervisor decide
		state.logger.Error("vppmqtt@default connection lost", zap.Error(msg.Error))
		panic(msg.Error)
	default:
		state.logger.Debug("vppmqtt@default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// publishTelemetry maps an event to its topic and publishes. While the
// publish is in flight the actor stashes everything else.
func (state *VPPMQTTActor) publishTelemetry(ctx actor.Context, event any, replyTo *actor.PID) {
	continuation := func(err error) {
		ctx.Send(ctx.Self(), publishResult{ReplyTo: replyTo, Error: err})
	}

	published := true
	switch msg := event.(type) {
	case domain.EnergyTelemetryEvent:
		state.client.PublishEnergy(msg.Energy, 1, continuation, 5*time.Second)
	case domain.MetricsTelemetryEvent:
		state.client.PublishMetrics(msg.Metrics, 1, continuation, 5*time.Second)
	case domain.BridgeStateUpdateEvent:
		state.client.Publish(state.client.BridgeStateTopic(), bridgeStatePayload(msg.Online), 0, true, continuation, 5*time.Second)
	default:
		published = false
	}

	if published {
		state.behavior.BecomeStacked(state.PublishingReceive)
	} else if replyTo != nil {
		ctx.Send(replyTo, domain.PublishTelemetryResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: fmt.Errorf("unsupported telemetry event %T", event),
			},
		})
	}
}

func (state *VPPMQTTActor) PublishingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case publishResult:
		// log error and return to default state
		if msg.Error != nil {
			state.logger.Error("vppmqtt@publishing could not publish a message", zap.Error(msg.Error))
		}
		if msg.ReplyTo != nil {
			ctx.Send(msg.ReplyTo, domain.PublishTelemetryResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: msg.Error,
				},
			})
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashOldest(ctx)
	default:
		state.logger.Debug("vppmqtt@publishing stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *VPPMQTTActor) stop() {
	state.logger.Debug("vppmqtt: disconnect")
	if state.eventStreamSub != nil {
		state.eventStream.Unsubscribe(state.eventStreamSub)
		state.eventStreamSub = nil
	}
	if state.client != nil {
		state.client.Publish(state.client.BridgeStateTopic(), vpp.PAYLOAD_OFFLINE, 0, true, func(error) {}, 500*time.Millisecond)
		state.client.Disconnect(500 * time.Millisecond)
	}
}

func bridgeStatePayload(online bool) string {
	if online {
		return vpp.PAYLOAD_ONLINE
	}
	return vpp.PAYLOAD_OFFLINE
}

// Dummy actor
func NewTestVPPMQTTActor(config *config.Config, eventStream *eventstream.EventStream, logger *zap.Logger) *VPPMQTTActor {
	act := &VPPMQTTActor{
		config:      config,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		eventStream: eventStream,
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_VPP_MQTT, logger),
	}
	act.behavior.Become(act.DummyReceive)
	return act
}

func (state *VPPMQTTActor) DummyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		opts := OptsFromConfig(state.config)
		state.client = vpp.CreateMQTTClient(opts, vpp.MQTTOptsFromOptions(opts), nil, nil)
	case domain.ActorHealthRequest:
		state.logger.Debug("vppmqtt@dummy ActorHealthRequest")
		// respond health check request
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_VPP_MQTT,
			Healthy: true,
			State:   "idle",
		})
	case domain.PublishTelemetryRequest:
		if msg.ReplyToRef != nil {
			ctx.Respond(domain.PublishTelemetryResponse{})
		}
	}
}
