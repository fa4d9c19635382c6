// Package client is the Go client library for the nightshade scene server.
// It issues commands over a websocket connection and correlates replies by
// command id, buffering replies that arrive for other pending commands.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nightshade3d/scene-api/protocol"
	"github.com/nightshade3d/scene-api/scene"
)

const defaultTimeout = 30 * time.Second

// Client is a connection to a scene server. It is safe for concurrent use;
// calls are serialized on the connection.
type Client struct {
	mu   sync.Mutex
	conn *websocket.Conn

	nextCommandID uint64
	pending       map[uint64]protocol.Event

	clientID   string
	stateToken string
	restored   *scene.Vector3

	timeout time.Duration
	onEvent func(protocol.Event)
}

// Dial connects to a scene server and consumes its handshake. The url
// points at the server's websocket endpoint, e.g. ws://localhost:9124/ws.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Client{
		conn:    conn,
		pending: make(map[uint64]protocol.Event),
		timeout: defaultTimeout,
	}

	if err := c.handshake(); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// handshake reads events until the server's connected message arrives.
func (c *Client) handshake() error {
	for {
		event, err := c.readEvent()
		if err != nil {
			return fmt.Errorf("handshake: %w", err)
		}
		if event.Type != protocol.EventConnected {
			continue
		}
		var connected protocol.Connected
		if err := protocol.DecodeData(event.Data, &connected); err != nil {
			return fmt.Errorf("handshake: %w", err)
		}
		c.clientID = connected.ClientID
		c.stateToken = connected.State
		c.restored = connected.Restored
		return nil
	}
}

// ClientID returns the id the server assigned this connection.
func (c *Client) ClientID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientID
}

// StateToken returns the latest session state token issued by the server.
// Pass it as the state query parameter on reconnect to resume the session.
func (c *Client) StateToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateToken
}

// RestoredPosition returns the camera position restored from a state
// token, or nil when the session started fresh.
func (c *Client) RestoredPosition() *scene.Vector3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.restored == nil {
		return nil
	}
	position := *c.restored
	return &position
}

// SetTimeout changes how long calls wait for a reply.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = timeout
}

// Notify registers a callback invoked for unsolicited broadcast events
// received while calls are waiting for their replies.
func (c *Client) Notify(fn func(protocol.Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvent = fn
}

// SpawnCamera asks the server to create a named camera entity at the
// given position.
func (c *Client) SpawnCamera(x, y, z float32, name string) (scene.EntityID, error) {
	data := protocol.SpawnCamera{Position: scene.Vector3{X: x, Y: y, Z: z}, Name: name}
	return c.spawn(protocol.CmdSpawnCamera, data)
}

// SpawnCube asks the server to create a named cube entity at the given
// position with the given edge length.
func (c *Client) SpawnCube(x, y, z, size float32, name string) (scene.EntityID, error) {
	data := protocol.SpawnCube{Position: scene.Vector3{X: x, Y: y, Z: z}, Size: size, Name: name}
	return c.spawn(protocol.CmdSpawnCube, data)
}

func (c *Client) spawn(commandType string, data interface{}) (scene.EntityID, error) {
	event, err := c.call(commandType, data)
	if err != nil {
		return scene.EntityID{}, err
	}
	if event.Type != protocol.EventEntityCreated {
		return scene.EntityID{}, fmt.Errorf("unexpected response type %q", event.Type)
	}
	var created protocol.EntityCreated
	if err := protocol.DecodeData(event.Data, &created); err != nil {
		return scene.EntityID{}, err
	}
	return created.Entity, nil
}

// Despawn asks the server to remove a live entity.
func (c *Client) Despawn(id scene.EntityID) error {
	event, err := c.call(protocol.CmdDespawn, protocol.Despawn{Entity: id})
	if err != nil {
		return err
	}
	if event.Type != protocol.EventDespawned {
		return fmt.Errorf("unexpected response type %q", event.Type)
	}
	return nil
}

// RequestCameras returns the ids of all live camera entities in spawn
// order.
func (c *Client) RequestCameras() ([]scene.EntityID, error) {
	event, err := c.call(protocol.CmdRequestCameras, nil)
	if err != nil {
		return nil, err
	}
	if event.Type != protocol.EventCameras {
		return nil, fmt.Errorf("unexpected response type %q", event.Type)
	}
	var cameras protocol.Cameras
	if err := protocol.DecodeData(event.Data, &cameras); err != nil {
		return nil, err
	}
	return cameras.Entities, nil
}

// Close sends a close frame and releases the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	c.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second))
	return c.conn.Close()
}

// call sends one command and waits for the event answering it.
func (c *Client) call(commandType string, data interface{}) (protocol.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	commandID := c.nextCommandID
	c.nextCommandID++

	bytes, err := json.Marshal(protocol.Command{ID: commandID, Type: commandType, Data: data})
	if err != nil {
		return protocol.Event{}, err
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, bytes); err != nil {
		return protocol.Event{}, fmt.Errorf("send %s: %w", commandType, err)
	}

	return c.waitForReply(commandID)
}

// waitForReply reads events until one arrives whose source matches
// commandID. Replies to other pending commands are buffered; broadcasts
// are handed to the notify callback.
func (c *Client) waitForReply(commandID uint64) (protocol.Event, error) {
	if event, ok := c.pending[commandID]; ok {
		delete(c.pending, commandID)
		return c.checkError(event)
	}

	for {
		event, err := c.readEvent()
		if err != nil {
			return protocol.Event{}, fmt.Errorf("waiting for reply to command %d: %w", commandID, err)
		}

		if event.Source == nil {
			if event.Type == protocol.EventState {
				var state protocol.State
				if err := protocol.DecodeData(event.Data, &state); err == nil {
					c.stateToken = state.State
				}
			}
			if c.onEvent != nil {
				c.onEvent(event)
			}
			continue
		}

		if *event.Source == commandID {
			return c.checkError(event)
		}
		c.pending[*event.Source] = event
	}
}

// checkError converts an error reply into a call error.
func (c *Client) checkError(event protocol.Event) (protocol.Event, error) {
	if event.Type != protocol.EventError {
		return event, nil
	}
	var serverError protocol.Error
	if err := protocol.DecodeData(event.Data, &serverError); err != nil {
		return protocol.Event{}, fmt.Errorf("server error with unreadable payload: %v", err)
	}
	return protocol.Event{}, fmt.Errorf("server error: %s", serverError.Message)
}

func (c *Client) readEvent() (protocol.Event, error) {
	if c.timeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	}
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return protocol.Event{}, err
	}
	var event protocol.Event
	if err := json.Unmarshal(data, &event); err != nil {
		return protocol.Event{}, err
	}
	return event, nil
}
