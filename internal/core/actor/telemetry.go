package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/arvoh/hass2vpp/internal/config"
	"github.com/arvoh/hass2vpp/internal/core/domain"
	. "github.com/arvoh/hass2vpp/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/reugn/go-quartz/job"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"
)

// TelemetryActor drives the periodic composition of telemetry records. Each
// record kind runs on its own interval; a tick asks the hass actor for a
// fresh record and publishes it on the event stream. A failed tick is logged
// and skipped, the next tick starts from scratch.
type TelemetryActor struct {
	behavior  actor.Behavior
	stash     *Stash
	scheduler quartz.Scheduler

	hassActor   *actor.PID
	config      *config.Config
	eventStream *eventstream.EventStream

	logger *zap.Logger
}

type energyTick struct {
}

type metricsTick struct {
}

func NewTelemetryActor(config *config.Config, hassActor *actor.PID, eventStream *eventstream.EventStream, logger *zap.Logger) *TelemetryActor {
	act := &TelemetryActor{
		config:      config,
		hassActor:   hassActor,
		behavior:    actor.NewBehavior(),
		stash:       &Stash{},
		logger:      ActorLogger(domain.ACTOR_ID_TELEMETRY, logger),
		eventStream: eventStream,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *TelemetryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *TelemetryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("telemetry@starting started")

		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.hassActor, domain.GetSourceInfoRequest{}, 10*time.Second), func(err error) any {
			return domain.GetSourceInfoResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
		state.behavior.Become(state.WaitingInfoReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("telemetry@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *TelemetryActor) WaitingInfoReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetSourceInfoResponse:
		if msg.HasResponseError() {
			// ticks keep running, the source may come up later
			state.logger.Error("telemetry@waitingInfo GetSourceInfoResponse", zap.Error(msg.GetResponseError()))
		} else {
			state.logger.Info("telemetry@waitingInfo source ready",
				zap.String("model", msg.Info.Model),
				zap.String("device", msg.Info.RootDeviceId),
				zap.Int("entities", msg.Info.EntityCount))
		}
		state.startScheduler(ctx)
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("telemetry@waitingInfo: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *TelemetryActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Restarting:
		state.stop()
	case *actor.Stopping:
		state.stop()
	case domain.ActorHealthRequest:
		state.logger.Debug("telemetry@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_TELEMETRY,
			Healthy: true,
			State:   "idle",
		})
	case energyTick:
		state.logger.Debug("telemetry@default energyTick")
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.hassActor, domain.GetEnergyDataRequest{}, 1*time.Second), func(err error) any {
			return domain.GetEnergyDataResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
	case metricsTick:
		state.logger.Debug("telemetry@default metricsTick")
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.hassActor, domain.GetMetricsDataRequest{}, 1*time.Second), func(err error) any {
			return domain.GetMetricsDataResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
	case domain.GetEnergyDataResponse:
		if msg.HasResponseError() {
			state.logger.Error("telemetry@default GetEnergyDataResponse error", zap.Error(msg.GetResponseError()))
		} else if msg.Energy != nil {
			state.logger.Debug("telemetry@default GetEnergyDataResponse")
			state.eventStream.Publish(domain.EnergyTelemetryEvent{
				Energy: *msg.Energy,
			})
		}
	case domain.GetMetricsDataResponse:
		if msg.HasResponseError() {
			state.logger.Error("telemetry@default GetMetricsDataResponse error", zap.Error(msg.GetResponseError()))
		} else if msg.Metrics != nil {
			state.logger.Debug("telemetry@default GetMetricsDataResponse")
			state.eventStream.Publish(domain.MetricsTelemetryEvent{
				Metrics: *msg.Metrics,
			})
		}
	default:
		state.logger.Debug("telemetry@default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// startScheduler arms one simple trigger per record kind. The job functions
// run on scheduler goroutines, so they only forward ticks to the mailbox.
func (state *TelemetryActor) startScheduler(ctx actor.Context) {
	sched, err := quartz.NewStdScheduler()
	if err != nil {
		panic(err)
	}
	sched.Start(context.Background())
	state.scheduler = sched

	if state.config.Telemetry.EnergyIntervalMillis > 0 {
		interval := time.Duration(state.config.Telemetry.EnergyIntervalMillis) * time.Millisecond
		energyJob := job.NewFunctionJob(func(_ context.Context) (bool, error) {
			ctx.Send(ctx.Self(), energyTick{})
			return true, nil
		})
		err = sched.ScheduleJob(quartz.NewJobDetail(energyJob, quartz.NewJobKey("energy")), quartz.NewSimpleTrigger(interval))
		if err != nil {
			panic(err)
		}
	}

	if state.config.Telemetry.MetricsIntervalMillis > 0 {
		interval := time.Duration(state.config.Telemetry.MetricsIntervalMillis) * time.Millisecond
		metricsJob := job.NewFunctionJob(func(_ context.Context) (bool, error) {
			ctx.Send(ctx.Self(), metricsTick{})
			return true, nil
		})
		err = sched.ScheduleJob(quartz.NewJobDetail(metricsJob, quartz.NewJobKey("metrics")), quartz.NewSimpleTrigger(interval))
		if err != nil {
			panic(err)
		}
	}
}

func (state *TelemetryActor) stop() {
	state.logger.Debug("telemetry: stop scheduler")
	if state.scheduler != nil {
		state.scheduler.Stop()
		state.scheduler = nil
	}
}
