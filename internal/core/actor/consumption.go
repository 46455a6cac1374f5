package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/energy2mqtt/internal/config"
	"github.com/berfenger/energy2mqtt/internal/core/domain"
	"github.com/berfenger/energy2mqtt/internal/core/events"
	"github.com/berfenger/energy2mqtt/internal/metrics"
	. "github.com/berfenger/energy2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/reugn/go-quartz/job"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"
)

const consumptionJobKey = "mittfortum_consumption"

// ConsumptionActor polls the MittFortum actor on a quartz trigger and publishes the latest entry.
type ConsumptionActor struct {
	behavior actor.Behavior
	stash    *Stash

	mittFortumActor *actor.PID
	config          *config.Config
	eventStream     *eventstream.EventStream
	telemetry       *metrics.Telemetry
	quartz          quartz.Scheduler
	cancelQuartz    context.CancelFunc
	lastEntryDate   string
	clock           func() time.Time

	logger *zap.Logger
}

type consumptionTick struct {
}

func NewConsumptionActor(config *config.Config, mittFortumActor *actor.PID, eventStream *eventstream.EventStream,
	telemetry *metrics.Telemetry, logger *zap.Logger) *ConsumptionActor {
	act := &ConsumptionActor{
		config:          config,
		mittFortumActor: mittFortumActor,
		eventStream:     eventStream,
		telemetry:       telemetry,
		clock:           time.Now,
		behavior:        actor.NewBehavior(),
		stash:           &Stash{},
		logger:          ActorLogger(domain.ACTOR_ID_CONSUMPTION, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *ConsumptionActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *ConsumptionActor) pollInterval() time.Duration {
	return time.Duration(state.config.MittFortum.PollIntervalMillis) * time.Millisecond
}

func (state *ConsumptionActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("consumption@starting started")
		if err := state.startScheduler(ctx); err != nil {
			panic(err)
		}
		ctx.Send(ctx.Self(), consumptionTick{})
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.stopScheduler()
	default:
		state.logger.Debug("consumption@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *ConsumptionActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("consumption@default: ActorHealthRequest")
		state.respondHealth(ctx, "idle")
	case consumptionTick:
		state.logger.Debug("consumption@default tick")
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mittFortumActor, domain.GetConsumptionRequest{}, 30*time.Second), func(err error) any {
			return domain.GetConsumptionResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
				At: state.clock(),
			}
		})
		state.behavior.BecomeStacked(state.WaitingConsumptionReceive)
	case *actor.Stopping:
		state.stopScheduler()
	case *actor.Restarting:
		state.stopScheduler()
	default:
		state.logger.Debug("consumption@default: unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *ConsumptionActor) WaitingConsumptionReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetConsumptionResponse:
		state.handleConsumption(msg)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthRequest:
		state.respondHealth(ctx, "polling")
	case consumptionTick:
		state.logger.Debug("consumption@waiting: skip tick")
	case *actor.Stopping:
		state.stopScheduler()
	default:
		state.logger.Debug("consumption@waiting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *ConsumptionActor) handleConsumption(msg domain.GetConsumptionResponse) {
	at := msg.At
	if at.IsZero() {
		at = state.clock()
	}
	state.telemetry.ObservePoll(metrics.SOURCE_MITTFORTUM, msg.GetResponseError(), at)
	if msg.HasResponseError() {
		state.logger.Warn("consumption@waiting GetConsumptionResponse error", zap.Error(msg.GetResponseError()))
		return
	}
	entry, ok := msg.Consumption.First()
	if !ok {
		state.logger.Debug("consumption@waiting empty consumption")
		return
	}
	if entry.DateTime != state.lastEntryDate {
		state.logger.Info("consumption: new entry", zap.String("date", entry.DateTime), zap.Float64("kwh", entry.Value))
		state.lastEntryDate = entry.DateTime
	}
	for _, ev := range events.ConsumptionToUpdateEvents(entry) {
		state.eventStream.Publish(ev)
	}
	state.telemetry.SetConsumption(entry.Value, entry.Cost)
}

// startScheduler fires a tick into the mailbox on every trigger.
func (state *ConsumptionActor) startScheduler(ctx actor.Context) error {
	sched := quartz.NewStdScheduler()
	self := ctx.Self()
	system := ctx.ActorSystem()
	tick := job.NewFunctionJob(func(_ context.Context) (bool, error) {
		system.Root.Send(self, consumptionTick{})
		return true, nil
	})

	quartzCtx, cancel := context.WithCancel(context.Background())
	sched.Start(quartzCtx)
	err := sched.ScheduleJob(quartz.NewJobDetail(tick, quartz.NewJobKey(consumptionJobKey)), quartz.NewSimpleTrigger(state.pollInterval()))
	if err != nil {
		cancel()
		return err
	}
	state.quartz = sched
	state.cancelQuartz = cancel
	return nil
}

func (state *ConsumptionActor) stopScheduler() {
	if state.quartz == nil {
		return
	}
	state.logger.Debug("consumption: stop scheduler")
	state.quartz.Stop()
	state.cancelQuartz()
	state.quartz = nil
}

func (state *ConsumptionActor) respondHealth(ctx actor.Context, status string) {
	ctx.Respond(domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_CONSUMPTION,
		Healthy: state.quartz != nil && state.quartz.IsStarted(),
		State:   status,
	})
}
