package energy

import (
	"errors"
	"strconv"
	"time"
)

var (
	ErrMissingSample    = errors.New("missing power sample")
	ErrUnparsableSample = errors.New("unparsable power sample")
)

// Sample is one polled power reading. A nil PowerValue means the device did not report one.
type Sample struct {
	Timestamp  time.Time
	PowerValue *string
}

func NewSample(ts time.Time, value string) Sample {
	return Sample{
		Timestamp:  ts,
		PowerValue: &value,
	}
}

func NumericSample(ts time.Time, watts float64) Sample {
	return NewSample(ts, strconv.FormatFloat(watts, 'f', -1, 64))
}

func MissingSample(ts time.Time) Sample {
	return Sample{Timestamp: ts}
}

// Power returns the parsed reading, or ErrMissingSample / ErrUnparsableSample.
func (s Sample) Power() (float64, error) {
	if s.PowerValue == nil {
		return 0, ErrMissingSample
	}
	value, ok := ParsePower(*s.PowerValue)
	if !ok {
		return 0, ErrUnparsableSample
	}
	return value, nil
}

// Classify reports why a sample would be ignored by Update, or nil if it is usable.
func Classify(s Sample) error {
	_, err := s.Power()
	return err
}
