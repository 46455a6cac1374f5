package actor

import (
	"fmt"
	"strings"
	"testing"
	"time"

	adactor "github.com/berfenger/energy2mqtt/internal/adapter/actor"
	"github.com/berfenger/energy2mqtt/internal/core/domain"
	"github.com/berfenger/energy2mqtt/internal/metrics"
	"github.com/berfenger/energy2mqtt/internal/util"
	"github.com/berfenger/energy2mqtt/internal/util/actorutil"
	"github.com/berfenger/energy2mqtt/pkg/mittfortum"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func spawnConsumption(t *testing.T, reader *mittfortum.TestReader, telemetry *metrics.Telemetry) (*actor.ActorSystem, *actor.PID, *eventRecorder) {
	cfg := util.LoadTestConfig()
	cfg.MittFortum.PollIntervalMillis = 200
	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)

	es := &eventstream.EventStream{}
	recorder := &eventRecorder{}
	es.Subscribe(recorder.record)

	fortumPID := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewMittFortumActor(reader, time.Second, logger)
	}))
	pid := as.Root.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewConsumptionActor(&cfg, fortumPID, es, telemetry, logger)
	}))
	t.Cleanup(as.Shutdown)
	return as, pid, recorder
}

func TestConsumptionActorPublishesFirstEntry(t *testing.T) {

	reader := mittfortum.CreateTestReader()
	telemetry := metrics.NewTelemetry()
	as, pid, recorder := spawnConsumption(t, reader, telemetry)

	require.Eventually(t, func() bool {
		_, found := recorder.floatEvent(domain.SENSOR_ID_MITTFORTUM_COST)
		return found
	}, 5*time.Second, 50*time.Millisecond)

	kwh, found := recorder.floatEvent(domain.SENSOR_ID_MITTFORTUM_ENERGY_CONSUMPTION)
	require.True(t, found)
	assert.InDelta(t, 1.84, kwh.Value, 1e-9)
	cost, _ := recorder.floatEvent(domain.SENSOR_ID_MITTFORTUM_COST)
	assert.InDelta(t, 2.31, cost.Value, 1e-9)

	recorder.mu.Lock()
	var attributes *domain.AttributesUpdateEvent
	for _, ev := range recorder.events {
		if a, ok := ev.(domain.AttributesUpdateEvent); ok {
			attributes = &a
		}
	}
	recorder.mu.Unlock()
	require.NotNil(t, attributes)
	assert.Equal(t, -3.5, attributes.Attributes["temperature"])

	// the quartz trigger keeps polling
	require.Eventually(t, func() bool {
		return reader.CallCount() >= 3
	}, 5*time.Second, 50*time.Millisecond)

	res, err := as.Root.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	require.NoError(t, err)
	assert.True(t, res.(domain.ActorHealthResponse).Healthy)

	expected := `
# HELP energy2mqtt_mittfortum_consumption_kwh Last reported MittFortum consumption in kWh
# TYPE energy2mqtt_mittfortum_consumption_kwh gauge
energy2mqtt_mittfortum_consumption_kwh 1.84
`
	assert.NoError(t, testutil.GatherAndCompare(telemetry.Registry(), strings.NewReader(expected), "energy2mqtt_mittfortum_consumption_kwh"))
}

func TestConsumptionActorIgnoresEmptyResult(t *testing.T) {

	reader := mittfortum.CreateTestReader()
	reader.Data = nil
	_, _, recorder := spawnConsumption(t, reader, metrics.NewTelemetry())

	require.Eventually(t, func() bool {
		return reader.CallCount() >= 2
	}, 5*time.Second, 50*time.Millisecond)

	_, found := recorder.floatEvent(domain.SENSOR_ID_MITTFORTUM_ENERGY_CONSUMPTION)
	assert.False(t, found)
}

func TestConsumptionUsesActorClock(t *testing.T) {

	cfg := util.LoadTestConfig()
	telemetry := metrics.NewTelemetry()
	at := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)

	act := NewConsumptionActor(&cfg, nil, &eventstream.EventStream{}, telemetry, zap.NewNop())
	act.clock = func() time.Time { return at }
	act.handleConsumption(domain.GetConsumptionResponse{Consumption: mittfortum.CreateTestReader().Data})

	expected := fmt.Sprintf(`
# HELP energy2mqtt_last_success_timestamp_seconds Unix time of the last successful poll per source
# TYPE energy2mqtt_last_success_timestamp_seconds gauge
energy2mqtt_last_success_timestamp_seconds{source="mittfortum"} %d
`, at.Unix())
	assert.NoError(t, testutil.GatherAndCompare(telemetry.Registry(), strings.NewReader(expected), "energy2mqtt_last_success_timestamp_seconds"))
}
