package domain

import (
	"time"

	"github.com/berfenger/energy2mqtt/pkg/mittfortum"
	"github.com/berfenger/energy2mqtt/pkg/stecagrid"
)

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_STECAGRID    = "stecagrid"
	ACTOR_ID_MITTFORTUM   = "mittfortum"
	ACTOR_ID_INVERTER     = "inverter"
	ACTOR_ID_CONSUMPTION  = "consumption"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

type GetDevicesInfoRequest struct {
	ActorRequestMixIn
}

type GetDevicesInfoResponse struct {
	ActorResponseMixIn
	Inverter *stecagrid.DeviceInfo
}

type GetMeasurementsRequest struct {
	ActorRequestMixIn
}

type GetMeasurementsResponse struct {
	ActorResponseMixIn
	Measurements stecagrid.Measurements
	At           time.Time
}

type GetConsumptionRequest struct {
	ActorRequestMixIn
}

type GetConsumptionResponse struct {
	ActorResponseMixIn
	Consumption mittfortum.Consumption
	At          time.Time
}

type GetEnergyStateRequest struct {
	ActorRequestMixIn
}

type EnergySensorState struct {
	SensorId      string    `json:"sensor_id"`
	Measurement   string    `json:"measurement"`
	EnergyWh      float64   `json:"energy_wh"`
	LastPowerW    float64   `json:"last_power_w"`
	LastTimestamp time.Time `json:"last_timestamp"`
	Updates       uint64    `json:"updates"`
	Restored      bool      `json:"restored"`
}

type GetEnergyStateResponse struct {
	ActorResponseMixIn
	Sensors []EnergySensorState
}

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors []GenericSensor
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
