package actor

import (
	"github.com/asynkron/protoactor-go/actor"
)

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
}

func mapTaskResult[T any](sender *actor.PID) func(t *T) *backgroundTaskResult {
	return func(t *T) *backgroundTaskResult {
		return &backgroundTaskResult{
			message: *t,
			replyTo: sender,
		}
	}
}
