package sse

import (
	"context"
	"sync"

	"gym-checkin/internal/models"
)

// StatusEventEmitter fans status events out to the SSE clients of one instance.
// Keys are opaque; the notifier uses "code:<id>" and "user:<id>".
type StatusEventEmitter struct {
	clients map[string][]chan models.StatusEvent
	mu      sync.RWMutex
}

func NewStatusEventEmitter() *StatusEventEmitter {
	return &StatusEventEmitter{
		clients: make(map[string][]chan models.StatusEvent),
	}
}

// Subscribe registers a client under key until ctx is done, then closes its channel.
func (e *StatusEventEmitter) Subscribe(ctx context.Context, key string) <-chan models.StatusEvent {
	clientChan := make(chan models.StatusEvent, 10)

	e.mu.Lock()
	e.clients[key] = append(e.clients[key], clientChan)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.removeClient(key, clientChan)
	}()

	return clientChan
}

// Emit delivers without blocking; a client with a full buffer misses the event.
// Sends happen under the read lock so a channel is never closed mid-send.
func (e *StatusEventEmitter) Emit(key string, event models.StatusEvent) int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	delivered := 0
	for _, clientChan := range e.clients[key] {
		select {
		case clientChan <- event:
			delivered++
		default:
		}
	}
	return delivered
}

func (e *StatusEventEmitter) removeClient(key string, clientChan chan models.StatusEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clients := e.clients[key]
	for i, ch := range clients {
		if ch == clientChan {
			e.clients[key] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	if len(e.clients[key]) == 0 {
		delete(e.clients, key)
	}
}

func (e *StatusEventEmitter) ClientCount(key string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients[key])
}
