package main

import (
	"context"
	"encoding/json"
	"log"

	"github.com/go-redis/redis/v8"

	"github.com/nightshade3d/scene-api/protocol"
	"github.com/nightshade3d/scene-api/scene"
)

// Redis channel carrying broadcast scene events between server instances.
const sceneEventsChannel = "scene-events"

// Hub owns the shared scene world and fans broadcast events out to every
// websocket session and SSE observer. When a redis client is configured,
// broadcasts are published to redis and delivered through the subscription,
// so multiple server instances share one event stream.
type Hub struct {
	world *scene.World
	rdb   *redis.Client

	// Broadcast events from sessions.
	broadcast chan protocol.Event

	// Register requests from new sessions.
	register chan *Session

	// Unregister requests from closing sessions.
	unregister chan *Session

	addObserver    chan chan []byte
	removeObserver chan chan []byte

	// Messages arriving from the redis subscription.
	incoming chan []byte

	sessions  map[*Session]bool
	observers map[chan []byte]bool
}

// NewHub creates a hub around the given world. rdb may be nil, in which
// case broadcasts are delivered locally only.
func NewHub(world *scene.World, rdb *redis.Client) *Hub {
	return &Hub{
		world:          world,
		rdb:            rdb,
		broadcast:      make(chan protocol.Event, 1),
		register:       make(chan *Session),
		unregister:     make(chan *Session),
		addObserver:    make(chan chan []byte),
		removeObserver: make(chan chan []byte),
		incoming:       make(chan []byte, 256),
		sessions:       make(map[*Session]bool),
		observers:      make(map[chan []byte]bool),
	}
}

// Run serves the hub until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribe(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			return

		case s := <-h.register:
			h.sessions[s] = true
			log.Printf("Session added. %d registered sessions", len(h.sessions))

		case s := <-h.unregister:
			if _, ok := h.sessions[s]; ok {
				delete(h.sessions, s)
				log.Printf("Removed session. %d registered sessions", len(h.sessions))
			}
			// The read pump unregisters exactly once, and nothing sends on
			// s.send after it exits, so this is the only closer — even for
			// sessions deliver already dropped.
			close(s.send)

		case obs := <-h.addObserver:
			h.observers[obs] = true
			log.Printf("Observer added. %d registered observers", len(h.observers))

		case obs := <-h.removeObserver:
			if _, ok := h.observers[obs]; ok {
				delete(h.observers, obs)
				close(obs)
			}

		case event := <-h.broadcast:
			bytes, err := json.Marshal(event)
			if err != nil {
				log.Printf("error marshalling broadcast: %v", err)
				continue
			}
			if h.rdb != nil {
				if err := h.rdb.Publish(ctx, sceneEventsChannel, bytes).Err(); err != nil {
					log.Printf("redis publish failed, delivering locally: %v", err)
					h.deliver(bytes)
				}
			} else {
				h.deliver(bytes)
			}

		case bytes := <-h.incoming:
			h.deliver(bytes)
		}
	}
}

// subscribe pumps scene events published by any server instance into the
// hub's delivery loop.
func (h *Hub) subscribe(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, sceneEventsChannel)
	defer pubsub.Close()

	h.forward(ctx, pubsub.Channel())
}

// forward relays subscription messages until the channel closes or the
// context ends, so cancelling Run also stops the subscriber.
func (h *Hub) forward(ctx context.Context, ch <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			select {
			case h.incoming <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}
}

// deliver hands a marshalled event to every session and observer. A
// receiver whose buffer is full is dropped rather than blocking the hub.
func (h *Hub) deliver(message []byte) {
	for s := range h.sessions {
		select {
		case s.send <- message:
		default:
			// Slow consumer. Closing the connection ends both pumps; the
			// session's own unregister then closes the send channel, so the
			// read pump can never hit a closed channel mid-command.
			delete(h.sessions, s)
			s.conn.Close()
		}
	}
	for obs := range h.observers {
		select {
		case obs <- message:
		default:
			close(obs)
			delete(h.observers, obs)
		}
	}
}
