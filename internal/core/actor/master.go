package actor

import (
	"errors"
	"fmt"
	"log"
	"time"

	adactor "github.com/berfenger/energy2mqtt/internal/adapter/actor"
	"github.com/berfenger/energy2mqtt/internal/config"
	"github.com/berfenger/energy2mqtt/internal/core/domain"
	"github.com/berfenger/energy2mqtt/internal/core/port"
	"github.com/berfenger/energy2mqtt/internal/metrics"
	. "github.com/berfenger/energy2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

type MQTTActorProvider func(*eventstream.EventStream) *adactor.MQTTActor

type StecaGridActorProvider func() *adactor.StecaGridActor

type MittFortumActorProvider func() *adactor.MittFortumActor

type MasterOfPuppetsActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck      healthCheckResult
	eventStream             *eventstream.EventStream
	store                   port.EnergyStore
	telemetry               *metrics.Telemetry
	children                map[string]*actor.PID
	stecaGridActor          *actor.PID
	mittFortumActor         *actor.PID
	mqttActor               *actor.PID
	inverterActor           *actor.PID
	consumptionActor        *actor.PID
	stecaGridActorProvider  StecaGridActorProvider
	mittFortumActorProvider MittFortumActorProvider
	mqttActorProvider       MQTTActorProvider
	logger                  *zap.Logger
}

type healthCheckResult struct {
	healthy        map[string]bool
	checksReceived int
	expected       int
	respondTo      *actor.PID
}

func NewMasterOfPuppetsActor(config config.Config, store port.EnergyStore, telemetry *metrics.Telemetry,
	stecaGridActorProvider StecaGridActorProvider, mittFortumActorProvider MittFortumActorProvider,
	mqttActorProvider MQTTActorProvider, logger *zap.Logger) *MasterOfPuppetsActor {
	act := &MasterOfPuppetsActor{
		config:                  config,
		behavior:                actor.NewBehavior(),
		stash:                   &Stash{},
		logger:                  ActorLogger(domain.ACTOR_ID_MASTER, logger),
		eventStream:             &eventstream.EventStream{},
		store:                   store,
		telemetry:               telemetry,
		children:                map[string]*actor.PID{},
		stecaGridActorProvider:  stecaGridActorProvider,
		mittFortumActorProvider: mittFortumActorProvider,
		mqttActorProvider:       mqttActorProvider,
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
		state.currentHealthCheck.reset(0)

		// MQTT goes first so the pollers' first events have a subscriber
		mqttActorPID, err := state.startMQTTActor(ctx)
		if err != nil {
			panic(err)
		}
		state.mqttActor = mqttActorPID

		if state.config.StecaGrid.Enable {
			stecaGridActorPID, err := state.startStecaGridActor(ctx)
			if err != nil {
				panic(err)
			}
			state.stecaGridActor = stecaGridActorPID

			inverterActorPID, err := state.startInverterActor(ctx)
			if err != nil {
				panic(err)
			}
			state.inverterActor = inverterActorPID
		}

		if state.config.MittFortum.Enable {
			mittFortumActorPID, err := state.startMittFortumActor(ctx)
			if err != nil {
				panic(err)
			}
			state.mittFortumActor = mittFortumActorPID

			consumptionActorPID, err := state.startConsumptionActor(ctx)
			if err != nil {
				panic(err)
			}
			state.consumptionActor = consumptionActorPID
		}

		if state.config.MQTT.HADiscoveryEnable {
			_, err := state.startHADiscoveryActor(ctx)
			if err != nil {
				panic(err)
			}
		}

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
		state.currentHealthCheck.reset(len(state.children))
		state.currentHealthCheck.respondTo = ctx.Sender()
		for id, pid := range state.children {
			id := id
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
				return domain.ActorHealthResponse{
					Id:      id,
					Healthy: false,
					State:   err.Error(),
				}
			})
		}

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case domain.GetEnergyStateRequest:
		state.logger.Debug("master@default GetEnergyStateRequest")
		if state.inverterActor == nil {
			ForRequest(msg).Respond(ctx, domain.GetEnergyStateResponse{})
			return
		}
		ctx.Forward(state.inverterActor)
	case *actor.Terminated:
		// the I/O actors restart on failure, losing one for good is fatal
		if msg.Who.Id == fmt.Sprintf("%s/%s", domain.ACTOR_ID_MASTER, domain.ACTOR_ID_MQTT) {
			state.logger.Error("master@default mqtt terminated")
			panic(errors.New("mqtt terminated"))
		}
	default:
		state.logger.Debug("master@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MasterOfPuppetsActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// children that did not answer count as unhealthy
		ctx.CancelReceiveTimeout()
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy), zap.String("state", msg.State))
		state.currentHealthCheck.checksReceived++
		state.currentHealthCheck.healthy[msg.Id] = msg.Healthy
		if state.currentHealthCheck.allReceived() {
			ctx.CancelReceiveTimeout()
			state.currentHealthCheck.respond(ctx)
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

func (state *MasterOfPuppetsActor) spawnChild(ctx actor.Context, id string, props *actor.Props) (*actor.PID, error) {
	pid, err := ctx.SpawnNamed(props, id)
	if err != nil {
		return nil, err
	}
	state.children[id] = pid
	return pid, nil
}

func restartDecider(reason interface{}) actor.Directive {
	log.Printf("handling failure for child. reason: %v", reason)
	return actor.RestartDirective
}

func (state *MasterOfPuppetsActor) startStecaGridActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	props := actor.PropsFromProducer(func() actor.Actor {
		return state.stecaGridActorProvider()
	}, actor.WithSupervisor(supervisor))
	return state.spawnChild(ctx, domain.ACTOR_ID_STECAGRID, props)
}

func (state *MasterOfPuppetsActor) startMittFortumActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	props := actor.PropsFromProducer(func() actor.Actor {
		return state.mittFortumActorProvider()
	}, actor.WithSupervisor(supervisor))
	return state.spawnChild(ctx, domain.ACTOR_ID_MITTFORTUM, props)
}

func (state *MasterOfPuppetsActor) startInverterActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewOneForOneStrategy(10, 10*time.Second, restartDecider)

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewInverterActor(&state.config, state.stecaGridActor, state.eventStream, state.store, state.telemetry, state.logger)
	}, actor.WithSupervisor(supervisor))
	return state.spawnChild(ctx, domain.ACTOR_ID_INVERTER, props)
}

func (state *MasterOfPuppetsActor) startConsumptionActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewOneForOneStrategy(10, 10*time.Second, restartDecider)

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewConsumptionActor(&state.config, state.mittFortumActor, state.eventStream, state.telemetry, state.logger)
	}, actor.WithSupervisor(supervisor))
	return state.spawnChild(ctx, domain.ACTOR_ID_CONSUMPTION, props)
}

func (state *MasterOfPuppetsActor) startHADiscoveryActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, restartDecider)

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(&state.config, state.stecaGridActor, state.mqttActor, state.logger)
	}, actor.WithSupervisor(supervisor))
	// one-shot, not part of the health fan-out
	return ctx.SpawnNamed(props, domain.ACTOR_ID_HA_DISCOVERY)
}

func (state *MasterOfPuppetsActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	props := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	return state.spawnChild(ctx, domain.ACTOR_ID_MQTT, props)
}

func (state *healthCheckResult) reset(expected int) {
	state.healthy = map[string]bool{}
	state.checksReceived = 0
	state.expected = expected
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived >= state.expected
}

func (state *healthCheckResult) allHealthy() bool {
	if len(state.healthy) < state.expected {
		return false
	}
	for _, healthy := range state.healthy {
		if !healthy {
			return false
		}
	}
	return true
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
