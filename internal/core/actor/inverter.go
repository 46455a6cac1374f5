package actor

import (
	"fmt"
	"time"

	"github.com/berfenger/energy2mqtt/internal/config"
	"github.com/berfenger/energy2mqtt/internal/core/domain"
	"github.com/berfenger/energy2mqtt/internal/core/events"
	"github.com/berfenger/energy2mqtt/internal/core/port"
	"github.com/berfenger/energy2mqtt/internal/metrics"
	. "github.com/berfenger/energy2mqtt/internal/util/actorutil"
	"github.com/berfenger/energy2mqtt/pkg/energy"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// InverterActor polls the StecaGrid actor and owns the energy accumulator.
// Every Update happens inside this actor's mailbox, one poll at a time.
type InverterActor struct {
	behavior  actor.Behavior
	stash     *Stash
	scheduler *scheduler.TimerScheduler

	stecaGridActor *actor.PID
	config         *config.Config
	eventStream    *eventstream.EventStream
	store          port.EnergyStore
	telemetry      *metrics.Telemetry
	accumulator    *energy.Accumulator
	clock          func() time.Time

	logger *zap.Logger
}

type inverterTick struct {
}

func NewInverterActor(config *config.Config, stecaGridActor *actor.PID, eventStream *eventstream.EventStream,
	store port.EnergyStore, telemetry *metrics.Telemetry, logger *zap.Logger) *InverterActor {
	act := &InverterActor{
		config:         config,
		stecaGridActor: stecaGridActor,
		eventStream:    eventStream,
		store:          store,
		telemetry:      telemetry,
		clock:          time.Now,
		behavior:       actor.NewBehavior(),
		stash:          &Stash{},
		logger:         ActorLogger(domain.ACTOR_ID_INVERTER, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *InverterActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *InverterActor) energyMeasurement() string {
	return state.config.StecaGrid.Energy.Measurement
}

func (state *InverterActor) energySensorId() string {
	return domain.EnergySensorId(state.energyMeasurement())
}

func (state *InverterActor) pollInterval() time.Duration {
	return time.Duration(state.config.StecaGrid.PollIntervalMillis) * time.Millisecond
}

func (state *InverterActor) requestTimeout() time.Duration {
	return time.Duration(state.config.StecaGrid.RequestTimeoutMillis)*time.Millisecond + time.Second
}

func (state *InverterActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("inverter@starting started")

		var opts []energy.Option
		if state.config.StecaGrid.Energy.AllowNegative {
			opts = append(opts, energy.WithNegativePassThrough())
		}
		state.accumulator = energy.NewAccumulator(state.clock(), opts...)
		state.restore()
		state.publishEnergy()

		state.scheduler = scheduler.NewTimerScheduler(ctx)
		ctx.Send(ctx.Self(), inverterTick{})

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
	default:
		state.logger.Debug("inverter@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *InverterActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("inverter@default: ActorHealthRequest")
		state.respondHealth(ctx, "idle")
	case domain.GetEnergyStateRequest:
		state.respondEnergyState(ctx, msg)
	case inverterTick:
		state.logger.Debug("inverter@default tick")
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.stecaGridActor, domain.GetMeasurementsRequest{}, state.requestTimeout()), func(err error) any {
			return domain.GetMeasurementsResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
				At: state.clock(),
			}
		})
		state.behavior.BecomeStacked(state.WaitingMeasurementsReceive)
	case *actor.Stopping:
		state.logger.Debug("inverter@default stopping")
	default:
		state.logger.Debug("inverter@default: unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *InverterActor) WaitingMeasurementsReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetMeasurementsResponse:
		state.handleMeasurements(msg)
		state.scheduler.RequestOnce(state.pollInterval(), ctx.Self(), inverterTick{})
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthRequest:
		state.respondHealth(ctx, "polling")
	case domain.GetEnergyStateRequest:
		state.respondEnergyState(ctx, msg)
	case inverterTick:
		state.logger.Debug("inverter@waiting: skip tick")
	default:
		state.logger.Debug("inverter@waiting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *InverterActor) handleMeasurements(msg domain.GetMeasurementsResponse) {
	at := msg.At
	if at.IsZero() {
		at = state.clock()
	}
	state.telemetry.ObservePoll(metrics.SOURCE_STECAGRID, msg.GetResponseError(), at)
	if msg.HasResponseError() {
		// no sample this cycle, the accumulator keeps its last point
		state.logger.Warn("inverter@waiting GetMeasurementsResponse error", zap.Error(msg.GetResponseError()))
		return
	}

	for _, ev := range events.MeasurementsToUpdateEvents(msg.Measurements) {
		state.eventStream.Publish(ev)
	}
	for _, m := range msg.Measurements {
		if m.Value == nil {
			continue
		}
		if value, ok := energy.ParsePower(*m.Value); ok {
			state.telemetry.SetMeasurement(m.Type, m.Unit, value)
		}
	}

	sample := energy.MissingSample(at)
	if m, found := msg.Measurements.Get(state.energyMeasurement()); found {
		sample = energy.Sample{Timestamp: at, PowerValue: m.Value}
	}
	state.telemetry.ObserveSample(state.energySensorId(), sample)
	if energy.Classify(sample) != nil {
		state.logger.Debug("inverter@waiting sample ignored", zap.String("measurement", state.energyMeasurement()))
		return
	}

	state.accumulator.Update(sample, at)
	state.publishEnergy()
	state.persist(at)
}

func (state *InverterActor) publishEnergy() {
	wh := state.accumulator.Energy()
	state.telemetry.SetEnergy(state.energySensorId(), wh)
	state.eventStream.Publish(events.EnergyToUpdateEvent(state.energyMeasurement(), wh))
}

func (state *InverterActor) restore() {
	if state.store == nil {
		return
	}
	snapshot, err := state.store.Load(state.energySensorId())
	if err != nil {
		state.logger.Error("inverter: could not load energy state", zap.Error(err))
		return
	}
	if snapshot == nil {
		state.logger.Info("inverter: no energy state saved, starting from 0")
		return
	}
	if err := state.accumulator.Restore(snapshot.Energy); err != nil {
		state.logger.Warn("inverter: discarding saved energy state", zap.Float64("energy", snapshot.Energy), zap.Error(err))
		return
	}
	state.logger.Info("inverter: energy state restored", zap.Float64("energy", snapshot.Energy), zap.Time("saved_at", snapshot.UpdatedAt))
}

func (state *InverterActor) persist(at time.Time) {
	if state.store == nil {
		return
	}
	err := state.store.Save(state.energySensorId(), port.EnergySnapshot{
		Energy:    state.accumulator.Energy(),
		UpdatedAt: at,
	})
	if err != nil {
		state.logger.Error("inverter: could not save energy state", zap.Error(err))
	}
}

func (state *InverterActor) respondHealth(ctx actor.Context, status string) {
	ctx.Respond(domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_INVERTER,
		Healthy: true,
		State:   status,
	})
}

func (state *InverterActor) respondEnergyState(ctx actor.Context, msg domain.GetEnergyStateRequest) {
	s := state.accumulator.State()
	ForRequest(msg).Respond(ctx, domain.GetEnergyStateResponse{
		Sensors: []domain.EnergySensorState{{
			SensorId:      state.energySensorId(),
			Measurement:   state.energyMeasurement(),
			EnergyWh:      s.Energy,
			LastPowerW:    s.LastValue,
			LastTimestamp: s.LastTimestamp,
			Updates:       s.Updates,
			Restored:      s.Restored,
		}},
	})
}
