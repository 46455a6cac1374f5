package actor

import (
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/energy2mqtt/internal/config"
	"github.com/berfenger/energy2mqtt/internal/core/domain"
	"github.com/berfenger/energy2mqtt/internal/util/actorutil"
	"github.com/berfenger/energy2mqtt/pkg/stecagrid"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

const discoveryRetryInterval = time.Minute

// HADiscoveryActor publishes the Home Assistant discovery payloads once and then idles.
type HADiscoveryActor struct {
	config         *config.Config
	behavior       actor.Behavior
	stash          *actorutil.Stash
	scheduler      *scheduler.TimerScheduler
	stecaGridActor *actor.PID
	mqttActor      *actor.PID
	healthy        map[string]bool
	healthyRecv    int
	healthyWanted  int

	inverterInfo    *stecagrid.DeviceInfo
	measurements    stecagrid.Measurements
	inverterPending int

	logger *zap.Logger
}

type discoveryRetry struct {
}

// stecaGridActor is nil when the inverter source is disabled.
func NewHADiscoveryActor(config *config.Config, stecaGridActor *actor.PID, mqttActor *actor.PID, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:         config,
		stecaGridActor: stecaGridActor,
		mqttActor:      mqttActor,
		behavior:       actor.NewBehavior(),
		stash:          &actorutil.Stash{},
		logger:         actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@starting started")
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		state.checkHealth(ctx)
	case *actor.Restarting:
	default:
		state.logger.Debug("hadiscovery@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) checkHealth(ctx actor.Context) {
	state.healthy = map[string]bool{}
	state.healthyRecv = 0
	state.healthyWanted = 0

	targets := map[string]*actor.PID{domain.ACTOR_ID_MQTT: state.mqttActor}
	if state.stecaGridActor != nil {
		targets[domain.ACTOR_ID_STECAGRID] = state.stecaGridActor
	}
	for id, pid := range targets {
		id := id
		state.healthyWanted++
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      id,
				Healthy: false,
			}
		})
	}
	state.behavior.Become(state.WaitingHealthyReceive)
}

func (state *HADiscoveryActor) WaitingHealthyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthResponse:
		state.logger.Debug("hadiscovery@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.healthyRecv++
		state.healthy[msg.Id] = msg.Healthy
		if state.healthyRecv < state.healthyWanted {
			return
		}
		for id, healthy := range state.healthy {
			if !healthy {
				panic(fmt.Errorf("%s actor is not healthy", id))
			}
		}
		if state.stecaGridActor == nil {
			state.publish(ctx)
			return
		}
		state.requestInverter(ctx)
	default:
		state.logger.Debug("hadiscovery@healthcheck: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) requestInverter(ctx actor.Context) {
	state.inverterInfo = nil
	state.measurements = nil
	state.inverterPending = 2
	actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.stecaGridActor, domain.GetDevicesInfoRequest{}, 5*time.Second), func(err error) any {
		return domain.GetDevicesInfoResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}
	})
	actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.stecaGridActor, domain.GetMeasurementsRequest{}, 5*time.Second), func(err error) any {
		return domain.GetMeasurementsResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: err,
			},
		}
	})
	state.behavior.Become(state.WaitingInfoReceive)
}

func (state *HADiscoveryActor) WaitingInfoReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetDevicesInfoResponse:
		state.inverterPending--
		if msg.HasResponseError() || msg.Inverter == nil {
			state.logger.Warn("hadiscovery@info: inverter unreachable, will retry", zap.Error(msg.GetResponseError()))
		} else {
			state.inverterInfo = msg.Inverter
		}
	case domain.GetMeasurementsResponse:
		state.inverterPending--
		if msg.HasResponseError() {
			state.logger.Warn("hadiscovery@info: no measurements", zap.Error(msg.GetResponseError()))
		} else {
			state.measurements = msg.Measurements
		}
	case discoveryRetry:
		state.requestInverter(ctx)
		return
	default:
		state.logger.Debug("hadiscovery@info: default recv", zap.String("type", fmt.Sprintf("%T", msg)))
		return
	}

	if state.inverterPending > 0 {
		return
	}
	if state.inverterInfo == nil {
		// the inverter sleeps at night, try again later
		state.scheduler.RequestOnce(discoveryRetryInterval, ctx.Self(), discoveryRetry{})
		return
	}
	state.publish(ctx)
}

func (state *HADiscoveryActor) Done(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.PublishDiscoveryResponse:
		if msg.HasResponseError() {
			state.logger.Error("hadiscovery@done publish failed", zap.Error(msg.GetResponseError()))
		} else {
			state.logger.Info("hadiscovery@done discovery published")
		}
	}
}

func (state *HADiscoveryActor) publish(ctx actor.Context) {
	sensors := state.sensors()
	if len(sensors) == 0 {
		panic(errors.New("no sensors to publish"))
	}
	ctx.Request(state.mqttActor, domain.PublishDiscoveryRequest{
		Sensors: sensors,
	})
	state.behavior.Become(state.Done)
}

func (state *HADiscoveryActor) sensors() []domain.GenericSensor {
	var sensors []domain.GenericSensor

	bridgeDevice := domain.BridgeDevice(state.config.MQTT.BaseTopic)
	sensors = append(sensors, domain.BridgeSensors(bridgeDevice)...)

	if state.inverterInfo != nil {
		inverterDevice := domain.InverterDevice(state.inverterInfo)
		inverterDevice.ViaDevice = bridgeDevice.Id

		energyMeasurement := state.config.StecaGrid.Energy.Measurement
		inverterSensors := domain.MeasurementSensors(inverterDevice, state.measurements, energyMeasurement)
		if _, found := state.measurements.Get(energyMeasurement); !found {
			inverterSensors = append(inverterSensors, domain.EnergySensor(inverterDevice, energyMeasurement))
		}
		for i := range inverterSensors {
			// full device info only once
			if i > 0 {
				inverterSensors[i].Device = domain.IdDevice(inverterDevice)
			}
			sensors = append(sensors, inverterSensors[i])
		}
	}

	if state.config.MittFortum.Enable {
		fortumDevice := domain.MittFortumDevice(state.config.MittFortum.CustomerId, state.config.MittFortum.MeteringPoint)
		fortumDevice.ViaDevice = bridgeDevice.Id
		sensors = append(sensors, domain.MittFortumSensors(fortumDevice, state.config.MittFortum.Currency)...)
	}

	return sensors
}
