package actor

import (
	"testing"
	"time"

	"github.com/berfenger/energy2mqtt/internal/core/domain"
	"github.com/berfenger/energy2mqtt/internal/core/events"
	"github.com/berfenger/energy2mqtt/internal/mqtt"
	"github.com/berfenger/energy2mqtt/internal/util"
	"github.com/berfenger/energy2mqtt/internal/util/actorutil"
	"github.com/berfenger/energy2mqtt/pkg/mittfortum"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMQTTActor(t *testing.T) {

	cfg := util.LoadTestConfig()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	es := eventstream.EventStream{}

	props := actor.PropsFromProducer(func() actor.Actor { return NewTestMQTTActor(&cfg, &es, logger) })
	pid := context.Spawn(props)

	msg := domain.ActorHealthRequest{}
	result, err := context.RequestFuture(pid, msg, 2*time.Second).Result()
	require.NoError(t, err)
	resp, ok := result.(domain.ActorHealthResponse)
	assert.True(t, ok)
	assert.True(t, resp.Healthy)

	es.Publish(events.EnergyToUpdateEvent("AC_Power", 1250.5))
	es.Publish(domain.FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
			Id: "stecagrid_ac_power",
		},
		Value:    345.32,
		Decimals: 2,
	})

	result, err = context.RequestFuture(pid, domain.PublishDiscoveryRequest{}, 2*time.Second).Result()
	require.NoError(t, err)
	_, ok = result.(domain.PublishDiscoveryResponse)
	assert.True(t, ok)

	context.Stop(pid)

	time.Sleep(500 * time.Millisecond)

	as.Shutdown()
}

func TestEvent2MQTTMessage(t *testing.T) {

	cfg := util.LoadTestConfig()
	state := &MQTTActor{
		config: &cfg,
		client: mqtt.CreateMQTTClient(&cfg, mqtt.OptsFromConfig(&cfg), nil, nil),
	}

	raw, err := state.event2MQTTMessage(events.EnergyToUpdateEvent("AC_Power", 1250.456))
	require.NoError(t, err)
	assert.Equal(t, "energy2mqtt/sensor/stecagrid_ac_power_energy/state", raw.topic)
	assert.Equal(t, "1250.46", raw.message)

	temp := 1.5
	evs := events.ConsumptionToUpdateEvents(mittfortum.ConsumptionEntry{
		Value:       2.5,
		Cost:        3.125,
		Temperature: &temp,
		DateTime:    "2024-01-15T10:00:00.000+01:00",
	})
	require.Len(t, evs, 3)
	raw, err = state.event2MQTTMessage(evs[1])
	require.NoError(t, err)
	assert.Equal(t, "energy2mqtt/sensor/mittfortum_energy_consumption/attributes", raw.topic)
	assert.JSONEq(t, `{"date":"2024-01-15T10:00:00.000+01:00","temperature":1.5}`, raw.message)
	assert.True(t, raw.retain)

	raw, err = state.event2MQTTMessage(events.BridgeStateToUpdateEvent(false))
	require.NoError(t, err)
	assert.Equal(t, "energy2mqtt/bridge/state", raw.topic)
	assert.Equal(t, mqtt.MQTT_PAYLOAD_OFFLINE, raw.message)

	raw, err = state.event2MQTTMessage("not an event")
	require.NoError(t, err)
	assert.Nil(t, raw)
}
