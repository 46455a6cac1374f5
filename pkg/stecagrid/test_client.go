package stecagrid

import (
	"context"
	"sync"
)

func CreateTestReader() *TestReader {
	return &TestReader{
		Info: DeviceInfo{
			Name:         "StecaGrid 3010",
			Type:         "Inverter",
			Serial:       "748611XC001234567",
			NominalPower: "3000",
		},
		Values: Measurements{
			testMeasurement(MEASUREMENT_AC_VOLTAGE, "231.4", "V"),
			testMeasurement(MEASUREMENT_AC_CURRENT, "4.12", "A"),
			testMeasurement(MEASUREMENT_AC_POWER, "952.6", "W"),
			testMeasurement(MEASUREMENT_AC_FREQUENCY, "50.01", "Hz"),
			testMeasurement(MEASUREMENT_DC_VOLTAGE, "389.2", "V"),
			testMeasurement(MEASUREMENT_DC_CURRENT, "2.54", "A"),
			testMeasurement(MEASUREMENT_TEMPERATURE, "41.5", "°C"),
		},
	}
}

type TestReader struct {
	mu     sync.Mutex
	Info   DeviceInfo
	Values Measurements
	Err    error
	Calls  int
}

func (r *TestReader) ValidateConnection(_ context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Err == nil, r.Err
}

func (r *TestReader) GetInfo(_ context.Context) (*DeviceInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	info := r.Info
	return &info, nil
}

func (r *TestReader) GetMeasurements(_ context.Context) (Measurements, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls++
	if r.Err != nil {
		return nil, r.Err
	}
	return append(Measurements(nil), r.Values...), nil
}

func (r *TestReader) SetPower(value *string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.Values {
		if r.Values[i].Type == MEASUREMENT_AC_POWER {
			r.Values[i].Value = value
		}
	}
}

func testMeasurement(measurementType, value, unit string) Measurement {
	return Measurement{
		Type:  measurementType,
		Value: &value,
		Unit:  unit,
	}
}

var _ Reader = (*TestReader)(nil)
