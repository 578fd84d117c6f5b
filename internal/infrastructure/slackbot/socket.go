package slackbot

import (
	"context"
	"errors"
	"sync"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/varvet/trove-advisor/internal/domain/entities"
	"github.com/varvet/trove-advisor/internal/domain/ports"
)

// SocketRunner receives events over a Slack socket mode connection.
type SocketRunner struct {
	client  *socketmode.Client
	handler ports.EventHandler
	logger  *zap.Logger
	ack     func(socketmode.Request)

	inflight sync.WaitGroup
}

// NewSocketRunner creates a runner. api must carry an app-level token.
func NewSocketRunner(api *slack.Client, handler ports.EventHandler, logger *zap.Logger) *SocketRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := socketmode.New(api)
	return &SocketRunner{
		client:  client,
		handler: handler,
		logger:  logger.Named("socketmode"),
		ack:     func(req socketmode.Request) { client.Ack(req) },
	}
}

// Run connects and dispatches events until ctx is done, then waits for in-flight
// handlers to finish.
func (r *SocketRunner) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.client.RunContext(gctx)
	})
	g.Go(func() error {
		r.consume(gctx, r.client.Events)
		return nil
	})

	err := g.Wait()
	r.inflight.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (r *SocketRunner) consume(ctx context.Context, events <-chan socketmode.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			r.dispatch(ctx, evt)
		}
	}
}

func (r *SocketRunner) dispatch(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting,
		socketmode.EventTypeConnected,
		socketmode.EventTypeConnectionError,
		socketmode.EventTypeInvalidAuth,
		socketmode.EventTypeHello,
		socketmode.EventTypeDisconnect:
		r.handle(ctx, entities.ConnectionEvent{State: string(evt.Type), Detail: detail(evt)})

	case socketmode.EventTypeEventsAPI:
		apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			r.logger.Warn("unexpected events api payload", zap.Any("data", evt.Data))
			return
		}
		if evt.Request != nil {
			r.ack(*evt.Request)
		}
		r.spawn(ctx, FromEventsAPI(apiEvent))

	case socketmode.EventTypeSlashCommand:
		cmd, ok := evt.Data.(slack.SlashCommand)
		if !ok {
			r.logger.Warn("unexpected slash command payload", zap.Any("data", evt.Data))
			return
		}
		var once sync.Once
		req := evt.Request
		r.spawn(ctx, FromSlashCommand(cmd, func() {
			once.Do(func() {
				if req != nil {
					r.ack(*req)
				}
			})
		}))

	default:
		if evt.Request != nil {
			r.ack(*evt.Request)
		}
		r.handle(ctx, entities.UnknownEvent{Type: string(evt.Type)})
	}
}

// spawn handles ev in its own goroutine, detached from the connection's lifetime.
func (r *SocketRunner) spawn(ctx context.Context, ev entities.Event) {
	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		r.handle(context.WithoutCancel(ctx), ev)
	}()
}

func (r *SocketRunner) handle(ctx context.Context, ev entities.Event) {
	if err := r.handler.Handle(ctx, ev); err != nil {
		r.logger.Error("event handling failed", zap.Stringer("kind", ev.Kind()), zap.Error(err))
	}
}

func detail(evt socketmode.Event) string {
	if err, ok := evt.Data.(error); ok {
		return err.Error()
	}
	return ""
}
