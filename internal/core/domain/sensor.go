package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/berfenger/energy2mqtt/pkg/stecagrid"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE                  = "bridge"
	SENSOR_ID_MITTFORTUM_ENERGY_CONSUMPTION = "mittfortum_energy_consumption"
	SENSOR_ID_MITTFORTUM_COST               = "mittfortum_cost"
	STATE_CLASS_MEASUREMENT                 = "measurement"
	STATE_CLASS_TOTAL                       = "total"
	STATE_CLASS_TOTAL_INCREASING            = "total_increasing"
	DEVICE_CLASS_CURRENT                    = "current"
	DEVICE_CLASS_ENERGY                     = "energy"
	DEVICE_CLASS_FREQUENCY                  = "frequency"
	DEVICE_CLASS_MONETARY                   = "monetary"
	DEVICE_CLASS_POWER                      = "power"
	DEVICE_CLASS_TEMPERATURE                = "temperature"
	DEVICE_CLASS_VOLTAGE                    = "voltage"
	DEVICE_CLASS_CONNECTIVITY               = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC                 = "diagnostic"
	SENSOR_TYPE_SENSOR                      = "sensor"
	SENSOR_TYPE_BINARY                      = "binary_sensor"
	UNIT_WATT_HOUR                          = "Wh"
	UNIT_KILOWATT_HOUR                      = "kWh"
)

var sensorIdCleaner = regexp.MustCompile("[^a-z0-9_]+")

// unit => device class
var measurementDeviceClasses = map[string]string{
	"A":  DEVICE_CLASS_CURRENT,
	"V":  DEVICE_CLASS_VOLTAGE,
	"W":  DEVICE_CLASS_POWER,
	"Hz": DEVICE_CLASS_FREQUENCY,
	"Wh": DEVICE_CLASS_ENERGY,
	"°C": DEVICE_CLASS_TEMPERATURE,
}

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("energy2mqtt_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "ACasal",
		Model:        "energy2mqtt",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("energy2mqtt %s", md5HashShort(baseTopic)),
	}
}

func InverterDevice(info *stecagrid.DeviceInfo) Device {
	serial := info.Serial
	if serial == "" {
		serial = info.Name
	}
	return Device{
		Id:           fmt.Sprintf("stecagrid_%s", md5HashShort(serial)),
		Manufacturer: "Steca",
		Model:        "Grid",
		Name:         info.Name,
	}
}

func MittFortumDevice(customerId, meteringPoint string) Device {
	return Device{
		Id:           fmt.Sprintf("mittfortum_%s", md5HashShort(customerId+"/"+meteringPoint)),
		Manufacturer: "Fortum",
		Model:        "MittFortum",
		Name:         "MittFortum",
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

// MeasurementSensorId maps a StecaGrid measurement type to a topic-safe sensor id.
func MeasurementSensorId(measurementType string) string {
	id := sensorIdCleaner.ReplaceAllString(strings.ToLower(measurementType), "_")
	return "stecagrid_" + strings.Trim(id, "_")
}

func EnergySensorId(measurementType string) string {
	return MeasurementSensorId(measurementType) + "_energy"
}

// MeasurementSensors builds one sensor per reported measurement and the
// integrated energy sensor for energyMeasurement if it is reported.
func MeasurementSensors(inverterDevice Device, measurements stecagrid.Measurements, energyMeasurement string) []GenericSensor {

	var sensors []GenericSensor

	for _, m := range measurements {
		id := MeasurementSensorId(m.Type)
		sensor := GenericSensor{
			Device:            inverterDevice,
			Id:                id,
			SensorType:        SENSOR_TYPE_SENSOR,
			Name:              fmt.Sprintf("StecaGrid %s Sensor", m.Type),
			UnitOfMeasurement: m.Unit,
			DeviceClass:       measurementDeviceClasses[m.Unit],
			StateClass:        STATE_CLASS_MEASUREMENT,
			UniqueId:          uniqueId(inverterDevice.Id, id),
		}
		if m.Unit == UNIT_WATT_HOUR {
			sensor.StateClass = STATE_CLASS_TOTAL_INCREASING
		}
		sensors = append(sensors, sensor)

		if m.Type == energyMeasurement {
			sensors = append(sensors, EnergySensor(inverterDevice, m.Type))
		}
	}

	return sensors
}

func EnergySensor(inverterDevice Device, measurementType string) GenericSensor {
	id := EnergySensorId(measurementType)
	return GenericSensor{
		Device:            inverterDevice,
		Id:                id,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              fmt.Sprintf("StecaGrid %s Energy Sensor", measurementType),
		UnitOfMeasurement: UNIT_WATT_HOUR,
		DeviceClass:       DEVICE_CLASS_ENERGY,
		StateClass:        STATE_CLASS_TOTAL_INCREASING,
		Icon:              "mdi:solar-power",
		UniqueId:          uniqueId(inverterDevice.Id, id),
	}
}

func MittFortumSensors(device Device, currency string) []GenericSensor {

	var sensors []GenericSensor

	// Energy consumption
	sensors = append(sensors, GenericSensor{
		Device:            device,
		Id:                SENSOR_ID_MITTFORTUM_ENERGY_CONSUMPTION,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "MittFortum Energy Consumption",
		UnitOfMeasurement: UNIT_KILOWATT_HOUR,
		DeviceClass:       DEVICE_CLASS_ENERGY,
		StateClass:        STATE_CLASS_TOTAL,
		UniqueId:          uniqueId(device.Id, SENSOR_ID_MITTFORTUM_ENERGY_CONSUMPTION),
		HasAttributes:     true,
	})

	// Total cost
	sensors = append(sensors, GenericSensor{
		Device:            IdDevice(device),
		Id:                SENSOR_ID_MITTFORTUM_COST,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "MittFortum Total Cost",
		UnitOfMeasurement: currency,
		DeviceClass:       DEVICE_CLASS_MONETARY,
		StateClass:        STATE_CLASS_TOTAL,
		UniqueId:          uniqueId(device.Id, SENSOR_ID_MITTFORTUM_COST),
	})

	return sensors
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {
	return []GenericSensor{{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	}}
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5HashShort(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])[0:8]
}
