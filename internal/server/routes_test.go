package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/berfenger/energy2mqtt/internal/core/domain"
	"github.com/berfenger/energy2mqtt/internal/metrics"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeMaster(healthy bool, lastTs time.Time) actor.ReceiveFunc {
	return func(ctx actor.Context) {
		switch ctx.Message().(type) {
		case domain.ActorHealthRequest:
			ctx.Respond(domain.ActorHealthResponse{Id: domain.ACTOR_ID_MASTER, Healthy: healthy})
		case domain.GetEnergyStateRequest:
			ctx.Respond(domain.GetEnergyStateResponse{
				Sensors: []domain.EnergySensorState{{
					SensorId:      "stecagrid_ac_power_energy",
					Measurement:   "AC_Power",
					EnergyWh:      110,
					LastPowerW:    20,
					LastTimestamp: lastTs,
					Updates:       3,
					Restored:      true,
				}},
			})
		}
	}
}

func testServer(t *testing.T, healthy bool) (*Server, time.Time) {
	as := actor.NewActorSystem()
	t.Cleanup(as.Shutdown)
	lastTs := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	pid := as.Root.Spawn(actor.PropsFromFunc(fakeMaster(healthy, lastTs)))
	return &Server{
		rootContext: as.Root,
		masterActor: pid,
		telemetry:   metrics.NewTelemetry(),
	}, lastTs
}

func TestHealthCheck(t *testing.T) {

	for _, healthy := range []bool{true, false} {
		s, _ := testServer(t, healthy)
		rec := httptest.NewRecorder()
		s.RegisterRoutes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
		if healthy {
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "health_check: OK", rec.Body.String())
		} else {
			assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		}
	}
}

func TestEnergyEndpoint(t *testing.T) {

	s, lastTs := testServer(t, true)
	rec := httptest.NewRecorder()
	s.RegisterRoutes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/energy", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body energyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Sensors, 1)
	assert.Equal(t, 110.0, body.Sensors[0].EnergyWh)
	assert.True(t, body.Sensors[0].Restored)
	assert.True(t, lastTs.Equal(body.Sensors[0].LastTimestamp))
	assert.Contains(t, rec.Body.String(), `"energy_wh":110`)
}

func TestMetricsEndpoint(t *testing.T) {

	s, _ := testServer(t, true)
	s.telemetry.SetEnergy("stecagrid_ac_power_energy", 12.5)

	rec := httptest.NewRecorder()
	s.RegisterRoutes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `energy2mqtt_energy_wh{sensor="stecagrid_ac_power_energy"} 12.5`)
}
