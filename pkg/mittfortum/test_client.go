package mittfortum

import (
	"context"
	"sync"
)

func CreateTestReader() *TestReader {
	temp := -3.5
	return &TestReader{
		Data: Consumption{
			{Value: 1.84, Cost: 2.31, Temperature: &temp, DateTime: "2024-01-15T10:00:00.000+01:00"},
			{Value: 1.52, Cost: 1.97, DateTime: "2024-01-15T09:00:00.000+01:00"},
		},
	}
}

type TestReader struct {
	mu       sync.Mutex
	Data     Consumption
	Err      error
	LoginErr error
	Calls    int
}

func (r *TestReader) Login(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.LoginErr
}

func (r *TestReader) GetConsumption(_ context.Context) (Consumption, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls++
	if r.Err != nil {
		return nil, r.Err
	}
	return append(Consumption(nil), r.Data...), nil
}

func (r *TestReader) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Calls
}

var _ Reader = (*TestReader)(nil)
