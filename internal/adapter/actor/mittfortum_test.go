package actor

import (
	"testing"
	"time"

	"github.com/berfenger/energy2mqtt/internal/core/domain"
	"github.com/berfenger/energy2mqtt/internal/util/actorutil"
	"github.com/berfenger/energy2mqtt/pkg/mittfortum"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMittFortumActor(t *testing.T) {

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	defer as.Shutdown()
	context := as.Root

	reader := mittfortum.CreateTestReader()
	props := actor.PropsFromProducer(func() actor.Actor { return NewMittFortumActor(reader, time.Second, logger) })
	pid := context.Spawn(props)

	result, err := context.RequestFuture(pid, domain.GetConsumptionRequest{}, 2*time.Second).Result()
	require.NoError(t, err)
	resp, ok := result.(domain.GetConsumptionResponse)
	require.True(t, ok)
	require.False(t, resp.HasResponseError())
	first, found := resp.Consumption.First()
	require.True(t, found)
	assert.InDelta(t, 1.84, first.Value, 1e-9)
	assert.Equal(t, 1, reader.CallCount())

	result, err = context.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	require.NoError(t, err)
	health, ok := result.(domain.ActorHealthResponse)
	require.True(t, ok)
	assert.True(t, health.Healthy)
	assert.Equal(t, domain.ACTOR_ID_MITTFORTUM, health.Id)
	assert.Equal(t, "idle", health.State)
}

func TestMittFortumActorErrors(t *testing.T) {

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	defer as.Shutdown()
	context := as.Root

	reader := mittfortum.CreateTestReader()
	reader.LoginErr = mittfortum.ErrLogin
	reader.Err = &mittfortum.UnexpectedStatusCodeError{StatusCode: 500}
	props := actor.PropsFromProducer(func() actor.Actor { return NewMittFortumActor(reader, time.Second, logger) })
	pid := context.Spawn(props)

	result, err := context.RequestFuture(pid, domain.GetConsumptionRequest{}, 2*time.Second).Result()
	require.NoError(t, err)
	resp, ok := result.(domain.GetConsumptionResponse)
	require.True(t, ok)
	require.True(t, resp.HasResponseError())
	assert.ErrorContains(t, resp.GetResponseError(), (&mittfortum.UnexpectedStatusCodeError{StatusCode: 500}).Error())

	result, err = context.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	require.NoError(t, err)
	health := result.(domain.ActorHealthResponse)
	assert.True(t, health.Healthy)
	assert.Contains(t, health.State, "not logged in")
}
