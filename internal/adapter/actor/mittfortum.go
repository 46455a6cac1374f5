package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/berfenger/energy2mqtt/internal/core/domain"
	"github.com/berfenger/energy2mqtt/internal/util/actorutil"
	"github.com/berfenger/energy2mqtt/pkg/mittfortum"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// MittFortumActor owns the portal session. Requests are served one at a time.
type MittFortumActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash
	reader   mittfortum.Reader
	timeout  time.Duration
	loggedIn bool
	lastErr  error
	logger   *zap.Logger
}

func NewMittFortumActor(reader mittfortum.Reader, timeout time.Duration, logger *zap.Logger) *MittFortumActor {
	act := &MittFortumActor{
		reader:   reader,
		timeout:  timeout,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_MITTFORTUM, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MittFortumActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

type loginResult struct {
	err error
}

func (state *MittFortumActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("mittfortum@starting started")
		actorutil.NewBackgroundTaskWithContext(ctx, state.timeout, func(reqCtx context.Context) (*loginResult, error) {
			return &loginResult{err: state.reader.Login(reqCtx)}, nil
		}).Recover(func(err error) loginResult {
			return loginResult{err: err}
		}).PipeTo(ctx.Self())
	case loginResult:
		if msg.err != nil {
			// a failed login is retried by the client on the next query
			state.logger.Error("mittfortum@starting login failed", zap.Error(msg.err))
			state.lastErr = msg.err
		} else {
			state.logger.Info("mittfortum@starting logged in")
			state.loggedIn = true
		}
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthRequest:
		state.respondHealth(ctx, "starting")
	default:
		state.logger.Debug("mittfortum@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MittFortumActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("mittfortum@default ActorHealthRequest")
		state.respondHealth(ctx, "idle")
	case domain.GetConsumptionRequest:
		state.logger.Debug("mittfortum@default GetConsumptionRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)

		actorutil.MapBackgroundTask(actorutil.NewBackgroundTaskWithContext(ctx, state.timeout, state.getConsumption),
			mapTaskResult[domain.GetConsumptionResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetConsumptionResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
					At: time.Now(),
				},
				replyTo: sender,
			}
		}).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingPortal)
	default:
		state.logger.Debug("mittfortum@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MittFortumActor) WaitingPortal(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.respondHealth(ctx, "busy")
	case backgroundTaskResult:
		if resp, ok := msg.message.(domain.ActorResponse); ok {
			state.lastErr = resp.GetResponseError()
			if resp.HasResponseError() {
				state.logger.Warn("mittfortum@waiting request failed", zap.Error(resp.GetResponseError()))
			} else {
				state.loggedIn = true
			}
		}
		if msg.replyTo != nil {
			ctx.Send(msg.replyTo, msg.message)
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("mittfortum@waiting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MittFortumActor) respondHealth(ctx actor.Context, status string) {
	if !state.loggedIn {
		status += ", not logged in"
	}
	if state.lastErr != nil {
		status = fmt.Sprintf("%s, last request failed: %v", status, state.lastErr)
	}
	ctx.Respond(domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MITTFORTUM,
		Healthy: true,
		State:   status,
	})
}

func (state *MittFortumActor) getConsumption(ctx context.Context) (*domain.GetConsumptionResponse, error) {
	consumption, err := state.reader.GetConsumption(ctx)
	if err != nil {
		return nil, err
	}
	return &domain.GetConsumptionResponse{
		Consumption: consumption,
		At:          time.Now(),
	}, nil
}
