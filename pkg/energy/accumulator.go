// Package energy integrates polled power readings into a cumulative energy total.
package energy

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	ErrAlreadyRestored     = errors.New("energy accumulator already restored")
	ErrRestoreAfterUpdate  = errors.New("energy accumulator restored after first update")
	ErrInvalidRestoreValue = errors.New("invalid persisted energy value")
)

// Accumulator converts a stream of power samples (W) into cumulative energy (Wh)
// using the trapezoidal rule over wall-clock time.
//
// An Accumulator is owned by a single writer and is not safe for concurrent use.
type Accumulator struct {
	energyWh      float64
	lastValue     float64
	lastTimestamp time.Time
	updates       uint64
	restored      bool

	allowNegative bool
}

type State struct {
	Energy        float64
	LastValue     float64
	LastTimestamp time.Time
	Updates       uint64
	Restored      bool
}

type Option func(*Accumulator)

// WithNegativePassThrough integrates negative power as reported, letting the total decrease.
// By default negative readings are clamped to 0.
func WithNegativePassThrough() Option {
	return func(a *Accumulator) {
		a.allowNegative = true
	}
}

func NewAccumulator(createdAt time.Time, opts ...Option) *Accumulator {
	acc := &Accumulator{
		lastTimestamp: createdAt,
	}
	for _, opt := range opts {
		opt(acc)
	}
	return acc
}

// Restore seeds the cumulative energy from a persisted value.
// It may be called once and only before the first applied update.
// Negative seeds require WithNegativePassThrough.
func (a *Accumulator) Restore(value float64) error {
	if a.restored {
		return ErrAlreadyRestored
	}
	if a.updates > 0 {
		return ErrRestoreAfterUpdate
	}
	if math.IsNaN(value) || math.IsInf(value, 0) || (value < 0 && !a.allowNegative) {
		return ErrInvalidRestoreValue
	}
	a.energyWh = value
	a.restored = true
	return nil
}

func (a *Accumulator) RestoreString(persisted string) error {
	value, ok := ParsePower(persisted)
	if !ok {
		return ErrInvalidRestoreValue
	}
	return a.Restore(value)
}

// Update integrates sample into the total and returns the new cumulative energy.
// Missing or unparsable samples leave the state untouched.
func (a *Accumulator) Update(sample Sample, now time.Time) float64 {
	power, err := sample.Power()
	if err != nil {
		return a.energyWh
	}
	if power < 0 && !a.allowNegative {
		power = 0
	}

	elapsed := now.Sub(a.lastTimestamp)
	if elapsed < 0 {
		// clock moved backwards, re-anchor without integrating
		elapsed = 0
	}
	dtHours := elapsed.Hours()

	a.energyWh += (a.lastValue + power) / 2 * dtHours
	a.lastValue = power
	a.lastTimestamp = now
	a.updates++

	return a.energyWh
}

func (a *Accumulator) Energy() float64 {
	return a.energyWh
}

func (a *Accumulator) State() State {
	return State{
		Energy:        a.energyWh,
		LastValue:     a.lastValue,
		LastTimestamp: a.lastTimestamp,
		Updates:       a.updates,
		Restored:      a.restored,
	}
}

// ParsePower parses a reported reading. NaN and Inf are rejected.
func ParsePower(raw string) (float64, bool) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return value, true
}
