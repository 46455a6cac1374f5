package actor

import (
	"errors"
	"testing"
	"time"

	"github.com/berfenger/energy2mqtt/internal/core/domain"
	"github.com/berfenger/energy2mqtt/internal/util/actorutil"
	"github.com/berfenger/energy2mqtt/pkg/stecagrid"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStecaGridActor(t *testing.T) {

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	defer as.Shutdown()
	context := as.Root

	reader := stecagrid.CreateTestReader()
	props := actor.PropsFromProducer(func() actor.Actor { return NewStecaGridActor(reader, time.Second, logger) })
	pid := context.Spawn(props)

	result, err := context.RequestFuture(pid, domain.GetDevicesInfoRequest{}, 2*time.Second).Result()
	require.NoError(t, err)
	info, ok := result.(domain.GetDevicesInfoResponse)
	require.True(t, ok)
	require.False(t, info.HasResponseError())
	assert.Equal(t, "StecaGrid 3010", info.Inverter.Name)

	result, err = context.RequestFuture(pid, domain.GetMeasurementsRequest{}, 2*time.Second).Result()
	require.NoError(t, err)
	measurements, ok := result.(domain.GetMeasurementsResponse)
	require.True(t, ok)
	require.False(t, measurements.HasResponseError())
	power, found := measurements.Measurements.Get(stecagrid.MEASUREMENT_AC_POWER)
	require.True(t, found)
	assert.Equal(t, "952.6", *power.Value)
	assert.False(t, measurements.At.IsZero())

	result, err = context.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	require.NoError(t, err)
	health, ok := result.(domain.ActorHealthResponse)
	require.True(t, ok)
	assert.True(t, health.Healthy)
	assert.Equal(t, domain.ACTOR_ID_STECAGRID, health.Id)
}

func TestStecaGridActorReaderError(t *testing.T) {

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	defer as.Shutdown()
	context := as.Root

	reader := stecagrid.CreateTestReader()
	reader.Err = errors.New("connection refused")
	props := actor.PropsFromProducer(func() actor.Actor { return NewStecaGridActor(reader, time.Second, logger) })
	pid := context.Spawn(props)

	result, err := context.RequestFuture(pid, domain.GetMeasurementsRequest{}, 2*time.Second).Result()
	require.NoError(t, err)
	measurements, ok := result.(domain.GetMeasurementsResponse)
	require.True(t, ok)
	assert.True(t, measurements.HasResponseError())
	assert.ErrorContains(t, measurements.GetResponseError(), "connection refused")

	// an offline inverter does not make the actor unhealthy
	result, err = context.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	require.NoError(t, err)
	health := result.(domain.ActorHealthResponse)
	assert.True(t, health.Healthy)
	assert.Contains(t, health.State, "connection refused")
}

func TestStecaGridActorQueuedRequests(t *testing.T) {

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	defer as.Shutdown()
	context := as.Root

	reader := stecagrid.CreateTestReader()
	props := actor.PropsFromProducer(func() actor.Actor { return NewStecaGridActor(reader, time.Second, logger) })
	pid := context.Spawn(props)

	futures := make([]*actor.Future, 0, 5)
	for i := 0; i < 5; i++ {
		futures = append(futures, context.RequestFuture(pid, domain.GetMeasurementsRequest{}, 3*time.Second))
	}
	for _, f := range futures {
		result, err := f.Result()
		require.NoError(t, err)
		resp, ok := result.(domain.GetMeasurementsResponse)
		require.True(t, ok)
		assert.False(t, resp.HasResponseError())
	}
	assert.Equal(t, 5, reader.Calls)
}
