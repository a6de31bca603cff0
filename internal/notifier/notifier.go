package notifier

import (
	"context"
	"time"

	"gym-checkin/internal/logger"
	"gym-checkin/internal/models"
	"gym-checkin/internal/sse"
)

// Relay carries events to every API instance. The sse.RedisBridge implements it.
type Relay interface {
	Publish(ctx context.Context, key string, event models.StatusEvent) error
}

// Notifier tells waiting clients about code status changes. It is a courtesy
// channel: anything missed here can be recovered by reading the stored code.
type Notifier struct {
	Emitter *sse.StatusEventEmitter
	Relay   Relay
	Timeout time.Duration
	Logger  *logger.Logger
}

func NewNotifier(emitter *sse.StatusEventEmitter, relay Relay, timeout time.Duration, log *logger.Logger) *Notifier {
	if log == nil {
		log = logger.NewWithWriters(nil, nil)
	}
	return &Notifier{Emitter: emitter, Relay: relay, Timeout: timeout, Logger: log}
}

func CodeKey(codeID string) string { return "code:" + codeID }

func UserKey(userID string) string { return "user:" + userID }

// Publish sends the event to the code's and the owner's subscribers. With a
// relay configured, delivery goes through it; a relay failure falls back to
// this instance's clients.
func (n *Notifier) Publish(ctx context.Context, event models.StatusEvent) error {
	keys := []string{CodeKey(event.CodeID)}
	if event.UserID != "" {
		keys = append(keys, UserKey(event.UserID))
	}

	for _, key := range keys {
		if n.Relay != nil {
			err := n.Relay.Publish(ctx, key, event)
			if err == nil {
				continue
			}
			n.Logger.Warn("NOTIFIER", "relay publish failed for "+key+", delivering locally: "+err.Error())
		}
		n.Emitter.Emit(key, event)
	}
	return nil
}

// Subscribe streams events for one code. The channel closes after the first
// terminal event, after the timeout, or when ctx is done.
func (n *Notifier) Subscribe(ctx context.Context, codeID string) <-chan models.StatusEvent {
	return n.stream(ctx, CodeKey(codeID), true)
}

// SubscribeUser streams events for all of a member's codes until the timeout or ctx ends.
func (n *Notifier) SubscribeUser(ctx context.Context, userID string) <-chan models.StatusEvent {
	return n.stream(ctx, UserKey(userID), false)
}

func (n *Notifier) stream(ctx context.Context, key string, stopOnTerminal bool) <-chan models.StatusEvent {
	subCtx, cancel := n.withTimeout(ctx)
	in := n.Emitter.Subscribe(subCtx, key)
	out := make(chan models.StatusEvent, 10)

	go func() {
		defer close(out)
		defer cancel()
		for {
			select {
			case <-subCtx.Done():
				return
			case event, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- event:
				case <-subCtx.Done():
					return
				}
				if stopOnTerminal && event.Terminal() {
					return
				}
			}
		}
	}()

	return out
}

func (n *Notifier) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if n.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, n.Timeout)
}
