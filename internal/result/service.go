package result

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/career-assessment/internal/quiz"
	ws "github.com/gokatarajesh/career-assessment/pkg/http/ws"
)

// Recorder is the quiz result-ready hand-off: it caches each scored result.
type Recorder struct {
	store  Store
	logger zerolog.Logger
}

func NewRecorder(store Store, logger zerolog.Logger) *Recorder {
	return &Recorder{store: store, logger: logger.With().Str("component", "result_recorder").Logger()}
}

// ResultReady implements quiz.ResultHandler.
func (r *Recorder) ResultReady(ctx context.Context, event quiz.ResultEvent) error {
	if err := r.store.Save(ctx, event); err != nil {
		return err
	}
	r.logger.Info().
		Str("user_id", event.UserID).
		Str("test", event.Test).
		Str("session_id", event.SessionID).
		Msg("result recorded")
	return nil
}

// Broadcaster listens for published results and forwards them to the owner's WebSocket clients.
type Broadcaster struct {
	redis   *redis.Client
	hub     *ws.Hub
	channel string
	logger  zerolog.Logger
}

// NewBroadcaster creates a Pub/Sub powered result broadcaster.
func NewBroadcaster(redis *redis.Client, hub *ws.Hub, channel string, logger zerolog.Logger) *Broadcaster {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Broadcaster{
		redis:   redis,
		hub:     hub,
		channel: channel,
		logger:  logger.With().Str("component", "result_broadcaster").Logger(),
	}
}

// Run subscribes to the result channel and blocks until the context is cancelled.
func (b *Broadcaster) Run(ctx context.Context) error {
	if b.redis == nil || b.hub == nil {
		return nil
	}

	sub := b.redis.Subscribe(ctx, b.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.forward(msg.Payload)
		}
	}
}

func (b *Broadcaster) forward(payload string) {
	var event quiz.ResultEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		b.logger.Warn().Err(err).Msg("failed to decode result payload")
		return
	}
	Deliver(b.hub, event, b.logger)
}

// Deliver pushes a result_ready message to the user's connections, if any.
func Deliver(hub *ws.Hub, event quiz.ResultEvent, logger zerolog.Logger) {
	msg, err := ws.NewMessage(ws.TypeResultReady, ws.ResultReadyPayload{
		Test:        event.Test,
		SessionID:   event.SessionID,
		Result:      event.Result,
		SubmittedAt: event.SubmittedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		logger.Warn().Err(err).Msg("failed to marshal result WS payload")
		return
	}
	if err := hub.SendToUser(event.UserID, msg); err != nil && err != ws.ErrConnectionNotFound {
		logger.Warn().Err(err).Str("user_id", event.UserID).Msg("failed to deliver result")
	}
}
