// Package protocol defines the JSON messages exchanged between scene
// clients and the server. Clients send Command envelopes and receive Event
// envelopes; an event answering a command carries the command's id in its
// source field.
package protocol

import (
	"github.com/mitchellh/mapstructure"

	"github.com/nightshade3d/scene-api/scene"
)

// Command types.
const (
	CmdSpawnCamera    = "spawn_camera"
	CmdSpawnCube      = "spawn_cube"
	CmdDespawn        = "despawn"
	CmdRequestCameras = "request_cameras"
)

// Event types.
const (
	EventConnected       = "connected"
	EventEntityCreated   = "entity_created"
	EventDespawned       = "despawned"
	EventCameras         = "cameras"
	EventEntitySpawned   = "entity_spawned"
	EventEntityDespawned = "entity_despawned"
	EventState           = "state"
	EventError           = "error"
)

// Command is the envelope for client requests. IDs are chosen by the
// client and must be strictly increasing per connection.
type Command struct {
	ID   uint64      `json:"id"`
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Event is the envelope for server messages. Source is set on events that
// answer a command and absent on broadcasts.
type Event struct {
	Type   string      `json:"type"`
	Source *uint64     `json:"source,omitempty"`
	Data   interface{} `json:"data,omitempty"`
}

// Reply builds an event answering the command with the given id.
func Reply(eventType string, source uint64, data interface{}) Event {
	return Event{Type: eventType, Source: &source, Data: data}
}

// DecodeData converts an unmarshalled envelope payload into a typed struct.
func DecodeData(data, out interface{}) error {
	return mapstructure.Decode(data, out)
}

// SpawnCamera requests a new camera entity.
type SpawnCamera struct {
	Position scene.Vector3 `json:"position"`
	Name     string        `json:"name"`
}

// SpawnCube requests a new wireframe cube entity. Size is the edge length
// and must be positive.
type SpawnCube struct {
	Position scene.Vector3 `json:"position"`
	Size     float32       `json:"size"`
	Name     string        `json:"name"`
}

// Despawn requests removal of a live entity.
type Despawn struct {
	Entity scene.EntityID `json:"entity"`
}

// Connected is the handshake payload sent once after the websocket opens.
// Restored carries the previous camera position when the client resumed a
// session with a valid state token.
type Connected struct {
	ClientID string         `json:"clientId"`
	State    string         `json:"state"`
	Restored *scene.Vector3 `json:"restored,omitempty"`
}

// EntityCreated answers a successful spawn command.
type EntityCreated struct {
	Entity scene.EntityID `json:"entity"`
}

// Despawned answers a successful despawn command.
type Despawned struct {
	Entity scene.EntityID `json:"entity"`
}

// Cameras answers a request_cameras command with all live camera entities
// in spawn order.
type Cameras struct {
	Entities []scene.EntityID `json:"entities"`
}

// EntitySpawned is broadcast to every session and observer when an entity
// is created. Kind is "camera" or "cube".
type EntitySpawned struct {
	Entity   scene.EntityID `json:"entity"`
	Kind     string         `json:"kind"`
	Name     string         `json:"name"`
	Position scene.Vector3  `json:"position"`
}

// EntityDespawned is broadcast to every session and observer when an
// entity is removed.
type EntityDespawned struct {
	Entity scene.EntityID `json:"entity"`
}

// State carries a refreshed session state token to the issuing client.
type State struct {
	State string `json:"state"`
}

// Error answers a command that could not be executed.
type Error struct {
	Message string `json:"message"`
}
