package port

import "time"

// EnergySnapshot is the persisted part of an energy accumulator.
type EnergySnapshot struct {
	Energy    float64   `yaml:"energy"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

// EnergyStore persists cumulative energy totals across restarts.
// Load returns nil without error when nothing was saved for the sensor.
type EnergyStore interface {
	Load(sensorId string) (*EnergySnapshot, error)
	Save(sensorId string, snapshot EnergySnapshot) error
}
