// Package sse streams sync events to browser views over Server-Sent
// Events.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/inkwell/pkg/logging"
)

// Event is one SSE frame.
type Event struct {
	Event string `json:"event,omitempty"`
	ID    string `json:"id,omitempty"`
	Data  any    `json:"data"`
}

// Broadcaster fans events out to connected streams. A slow stream
// misses events rather than blocking the others.
type Broadcaster struct {
	mu      sync.RWMutex
	streams map[chan Event]struct{}

	join  chan chan Event
	leave chan chan Event
	queue chan Event
	done  chan struct{}

	seq    atomic.Uint64
	logger *zerolog.Logger
}

// NewBroadcaster creates a Broadcaster. Run must be called for events
// to be delivered.
func NewBroadcaster(logger *zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		streams: make(map[chan Event]struct{}),
		// Buffered so ServeHTTP does not block before Run starts.
		join:   make(chan chan Event, 16),
		leave:  make(chan chan Event, 16),
		queue:  make(chan Event, 256),
		done:   make(chan struct{}),
		logger: logging.Component(logger, "sse"),
	}
}

// Run delivers events until ctx is cancelled, then closes every stream.
func (b *Broadcaster) Run(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			for s := range b.streams {
				close(s)
			}
			b.streams = make(map[chan Event]struct{})
			b.mu.Unlock()
			b.logger.Debug().Msg("Event stream shut down")
			return

		case s := <-b.join:
			b.mu.Lock()
			b.streams[s] = struct{}{}
			n := len(b.streams)
			b.mu.Unlock()
			b.logger.Debug().Int("streams", n).Msg("Stream connected")

		case s := <-b.leave:
			b.mu.Lock()
			if _, ok := b.streams[s]; ok {
				delete(b.streams, s)
				close(s)
			}
			n := len(b.streams)
			b.mu.Unlock()
			b.logger.Debug().Int("streams", n).Msg("Stream disconnected")

		case e := <-b.queue:
			b.mu.RLock()
			for s := range b.streams {
				select {
				case s <- e:
				default:
					b.logger.Warn().Str("event", e.Event).Msg("Stream buffer full, event skipped")
				}
			}
			b.mu.RUnlock()
		}
	}
}

// Publish queues an event for every stream and assigns it the next id.
func (b *Broadcaster) Publish(name string, data any) {
	e := Event{
		Event: name,
		ID:    strconv.FormatUint(b.seq.Add(1), 10),
		Data:  data,
	}
	select {
	case b.queue <- e:
	default:
		b.logger.Warn().Str("event", name).Msg("Event queue full, event dropped")
	}
}

// Streams returns the number of connected streams.
func (b *Broadcaster) Streams() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.streams)
}

// ServeHTTP streams events until the request ends or the broadcaster
// stops.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	select {
	case <-b.done:
		http.Error(w, "event stream closed", http.StatusServiceUnavailable)
		return
	default:
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	s := make(chan Event, 64)
	b.join <- s
	defer func() {
		select {
		case b.leave <- s:
		case <-b.done:
		}
	}()

	b.write(w, flusher, Event{
		Event: "connected",
		Data:  map[string]any{"timestamp": time.Now().UTC()},
	})

	for {
		select {
		case e, open := <-s:
			if !open {
				return
			}
			b.write(w, flusher, e)
		case <-r.Context().Done():
			return
		}
	}
}

func (b *Broadcaster) write(w http.ResponseWriter, flusher http.Flusher, e Event) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		b.logger.Error().Err(err).Str("event", e.Event).Msg("Event data not encodable")
		return
	}
	if e.Event != "" {
		_, _ = fmt.Fprintf(w, "event: %s\n", e.Event)
	}
	if e.ID != "" {
		_, _ = fmt.Fprintf(w, "id: %s\n", e.ID)
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}
