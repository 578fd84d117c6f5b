package slackbot

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"go.uber.org/zap"

	"github.com/varvet/trove-advisor/internal/domain/entities"
	"github.com/varvet/trove-advisor/internal/domain/ports"
)

const (
	maxBodyBytes      = 1 << 20
	defaultAckTimeout = 2500 * time.Millisecond
)

// EventsHandler serves the Slack Events API and slash commands over HTTP. Every
// request is verified with the signing secret.
type EventsHandler struct {
	signingSecret string
	handler       ports.EventHandler
	logger        *zap.Logger
	ackTimeout    time.Duration

	baseCtx  context.Context
	inflight sync.WaitGroup
}

// NewEventsHandler creates a handler. Events are processed with contexts derived
// from ctx rather than from the HTTP request.
func NewEventsHandler(ctx context.Context, signingSecret string, handler ports.EventHandler, logger *zap.Logger) *EventsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventsHandler{
		signingSecret: signingSecret,
		handler:       handler,
		logger:        logger.Named("events"),
		ackTimeout:    defaultAckTimeout,
		baseCtx:       context.WithoutCancel(ctx),
	}
}

// Register mounts the endpoints on mux.
func (h *EventsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/slack/events", h.serveEvents)
	mux.HandleFunc("/slack/commands", h.serveCommand)
}

// Wait blocks until every dispatched event has been handled.
func (h *EventsHandler) Wait() {
	h.inflight.Wait()
}

func (h *EventsHandler) serveEvents(w http.ResponseWriter, r *http.Request) {
	body, ok := h.verified(w, r)
	if !ok {
		return
	}

	ev, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		h.logger.Warn("malformed event", zap.Error(err))
		http.Error(w, "malformed event", http.StatusBadRequest)
		return
	}

	if ev.Type == slackevents.URLVerification {
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			http.Error(w, "malformed challenge", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(challenge.Challenge))
		return
	}

	// Slack redelivers unacknowledged events with this header set.
	if r.Header.Get("X-Slack-Retry-Num") != "" {
		w.WriteHeader(http.StatusOK)
		return
	}

	h.spawn(FromEventsAPI(ev))
	w.WriteHeader(http.StatusOK)
}

func (h *EventsHandler) serveCommand(w http.ResponseWriter, r *http.Request) {
	body, ok := h.verified(w, r)
	if !ok {
		return
	}

	r.Body = io.NopCloser(bytes.NewReader(body))
	cmd, err := slack.SlashCommandParse(r)
	if err != nil {
		http.Error(w, "malformed command", http.StatusBadRequest)
		return
	}

	acked := make(chan struct{})
	var once sync.Once
	h.spawn(FromSlashCommand(cmd, func() { once.Do(func() { close(acked) }) }))

	// The HTTP 200 is the acknowledgement, so it is written once the router acks.
	select {
	case <-acked:
	case <-time.After(h.ackTimeout):
		h.logger.Warn("command not acknowledged in time", zap.String("command", cmd.Command))
	}
	w.WriteHeader(http.StatusOK)
}

func (h *EventsHandler) verified(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return nil, false
	}

	verifier, err := slack.NewSecretsVerifier(r.Header, h.signingSecret)
	if err != nil {
		h.logger.Warn("unsigned request", zap.Error(err))
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil, false
	}

	body, err := io.ReadAll(io.TeeReader(http.MaxBytesReader(w, r.Body, maxBodyBytes), &verifier))
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return nil, false
	}
	if err := verifier.Ensure(); err != nil {
		h.logger.Warn("bad request signature", zap.Error(err))
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	return body, true
}

func (h *EventsHandler) spawn(ev entities.Event) {
	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()
		if err := h.handler.Handle(h.baseCtx, ev); err != nil {
			h.logger.Error("event handling failed", zap.Stringer("kind", ev.Kind()), zap.Error(err))
		}
	}()
}
