package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/energy2mqtt/internal/core/domain"
	"github.com/berfenger/energy2mqtt/internal/util/actorutil"
	"github.com/berfenger/energy2mqtt/pkg/stecagrid"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// StecaGridActor serializes HTTP access to one inverter.
type StecaGridActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash
	reader   stecagrid.Reader
	timeout  time.Duration
	lastErr  error
	logger   *zap.Logger
}

func NewStecaGridActor(reader stecagrid.Reader, timeout time.Duration, logger *zap.Logger) *StecaGridActor {
	act := &StecaGridActor{
		reader:   reader,
		timeout:  timeout,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_STECAGRID, logger),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *StecaGridActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *StecaGridActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("stecagrid@default started")
	case domain.ActorHealthRequest:
		state.logger.Debug("stecagrid@default ActorHealthRequest")
		state.respondHealth(ctx, "idle")
	case domain.GetDevicesInfoRequest:
		state.logger.Debug("stecagrid@default GetDevicesInfoRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)

		actorutil.MapBackgroundTask(actorutil.NewBackgroundTaskWithContext(ctx, state.timeout, state.getDevicesInfo),
			mapTaskResult[domain.GetDevicesInfoResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetDevicesInfoResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingInverter)
	case domain.GetMeasurementsRequest:
		state.logger.Debug("stecagrid@default GetMeasurementsRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)

		actorutil.MapBackgroundTask(actorutil.NewBackgroundTaskWithContext(ctx, state.timeout, state.getMeasurements),
			mapTaskResult[domain.GetMeasurementsResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetMeasurementsResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
					At: time.Now(),
				},
				replyTo: sender,
			}
		}).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingInverter)
	default:
		state.logger.Debug("stecagrid@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *StecaGridActor) WaitingInverter(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.respondHealth(ctx, "busy")
	case backgroundTaskResult:
		if resp, ok := msg.message.(domain.ActorResponse); ok {
			state.lastErr = resp.GetResponseError()
			if resp.HasResponseError() {
				state.logger.Warn("stecagrid@waiting request failed", zap.Error(resp.GetResponseError()))
			}
		}
		if msg.replyTo != nil {
			ctx.Send(msg.replyTo, msg.message)
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("stecagrid@waiting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// respondHealth reports the actor alive even if the inverter is offline (it sleeps at night).
func (state *StecaGridActor) respondHealth(ctx actor.Context, status string) {
	if state.lastErr != nil {
		status = fmt.Sprintf("%s, last request failed: %v", status, state.lastErr)
	}
	ctx.Respond(domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_STECAGRID,
		Healthy: true,
		State:   status,
	})
}

func (state *StecaGridActor) getDevicesInfo(ctx context.Context) (*domain.GetDevicesInfoResponse, error) {
	info, err := state.reader.GetInfo(ctx)
	if err != nil {
		return nil, err
	}
	return &domain.GetDevicesInfoResponse{
		Inverter: info,
	}, nil
}

func (state *StecaGridActor) getMeasurements(ctx context.Context) (*domain.GetMeasurementsResponse, error) {
	measurements, err := state.reader.GetMeasurements(ctx)
	if err != nil {
		return nil, err
	}
	return &domain.GetMeasurementsResponse{
		Measurements: measurements,
		At:           time.Now(),
	}, nil
}
