package domain

import "fmt"

type SensorUpdateEventMixIn struct {
	Id string
}

type SensorUpdateEvent interface {
	SensorUpdateEvent() string
	SensorId() string
}

func (e SensorUpdateEventMixIn) SensorUpdateEvent() string {
	return fmt.Sprintf("%T", e)
}

func (e SensorUpdateEventMixIn) SensorId() string {
	return e.Id
}

type FloatSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value    float64
	Decimals uint
}

type TextSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value string
}

// AttributesUpdateEvent carries extra state attributes published as a JSON object.
type AttributesUpdateEvent struct {
	SensorUpdateEventMixIn
	Attributes map[string]any
}

type BridgeStateUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}
