package events

import (
	"strings"

	. "github.com/berfenger/energy2mqtt/internal/core/domain"
	"github.com/berfenger/energy2mqtt/pkg/energy"
	"github.com/berfenger/energy2mqtt/pkg/mittfortum"
	"github.com/berfenger/energy2mqtt/pkg/stecagrid"
)

const maxDecimals = 3

// MeasurementsToUpdateEvents skips measurements without a value.
// Values that are not finite numbers are forwarded as text.
func MeasurementsToUpdateEvents(measurements stecagrid.Measurements) []any {
	var events []any

	for _, m := range measurements {
		if m.Value == nil {
			continue
		}
		id := MeasurementSensorId(m.Type)
		raw := strings.TrimSpace(*m.Value)
		value, ok := energy.ParsePower(raw)
		if !ok {
			events = append(events, TextSensorUpdateEvent{
				SensorUpdateEventMixIn: SensorUpdateEventMixIn{
					Id: id,
				},
				Value: raw,
			})
			continue
		}
		events = append(events, FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: id,
			},
			Value:    value,
			Decimals: decimalsOf(raw),
		})
	}

	return events
}

func EnergyToUpdateEvent(measurementType string, energyWh float64) FloatSensorUpdateEvent {
	return FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: EnergySensorId(measurementType),
		},
		Value:    energyWh,
		Decimals: 2,
	}
}

func ConsumptionToUpdateEvents(entry mittfortum.ConsumptionEntry) []any {
	var events []any

	// Energy consumption
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_MITTFORTUM_ENERGY_CONSUMPTION,
		},
		Value:    entry.Value,
		Decimals: 3,
	})
	attributes := map[string]any{
		"date": entry.DateTime,
	}
	if entry.Temperature != nil {
		attributes["temperature"] = *entry.Temperature
	}
	events = append(events, AttributesUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_MITTFORTUM_ENERGY_CONSUMPTION,
		},
		Attributes: attributes,
	})
	// Cost
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_MITTFORTUM_COST,
		},
		Value:    entry.Cost,
		Decimals: 2,
	})

	return events
}

func BridgeStateToUpdateEvent(online bool) BridgeStateUpdateEvent {
	return BridgeStateUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_BRIDGE_STATE,
		},
		Value: online,
	}
}

func decimalsOf(raw string) uint {
	dot := strings.IndexByte(raw, '.')
	if dot < 0 || strings.ContainsAny(raw, "eE") {
		return 0
	}
	decimals := uint(len(raw) - dot - 1)
	if decimals > maxDecimals {
		return maxDecimals
	}
	return decimals
}
