package actorutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackgroundTaskSuccess(t *testing.T) {

	var got int
	NewBackgroundTask(nil, func() (*int, error) {
		v := 42
		return &v, nil
	}).OnSuccess(func(v int) { got = v }).Run()

	assert.Equal(t, 42, got)
}

func TestBackgroundTaskRecover(t *testing.T) {

	assert := assert.New(t)

	var got string
	NewBackgroundTask(nil, func() (*string, error) {
		return nil, errors.New("device unreachable")
	}).Recover(func(err error) string {
		return "recovered: " + err.Error()
	}).OnSuccess(func(v string) { got = v }).Run()

	assert.Contains(got, "recovered")
	assert.Contains(got, "device unreachable")
}

func TestBackgroundTaskOnError(t *testing.T) {

	var gotErr error
	called := false
	NewBackgroundTaskErr(nil, func() error {
		return errors.New("write failed")
	}).OnError(func(err error) { gotErr = err }).OnSuccess(func(struct{}) { called = true }).Run()

	assert.Error(t, gotErr)
	assert.False(t, called)
}

func TestBackgroundTaskWithContextDeadline(t *testing.T) {

	var gotErr error
	start := time.Now()
	NewBackgroundTaskWithContext(nil, 50*time.Millisecond, func(ctx context.Context) (*int, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}).OnError(func(err error) { gotErr = err }).Run()

	assert.Error(t, gotErr)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestMapBackgroundTask(t *testing.T) {

	var got string
	task := NewBackgroundTask(nil, func() (*int, error) {
		v := 7
		return &v, nil
	})
	MapBackgroundTask(task, func(v *int) *string {
		s := "value"
		if *v == 7 {
			s = "seven"
		}
		return &s
	}).OnSuccess(func(v string) { got = v }).Run()

	assert.Equal(t, "seven", got)
}
