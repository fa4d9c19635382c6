package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/ksuid"

	"github.com/nightshade3d/scene-api/protocol"
	"github.com/nightshade3d/scene-api/scene"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Session is a middleman between one websocket connection and the hub.
// Commands are executed on the read pump against the hub's world; replies
// go back on this session's send channel, broadcasts through the hub.
type Session struct {
	ID ksuid.KSUID

	hub          *Hub
	stateManager *StateManager

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan []byte

	// Position of the camera most recently spawned by this session,
	// carried in the state token so a reconnect can resume from it.
	cameraPosition scene.Vector3
}

// readPump pumps commands from the websocket connection into the world.
//
// The application runs readPump in a per-connection goroutine. The
// application ensures that there is at most one reader on a connection by
// executing all reads from this goroutine.
func (s *Session) readPump() {
	defer func() {
		s.hub.unregister <- s
		s.conn.Close()
	}()
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error { s.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("error: %v", err)
			}
			break
		}
		var command protocol.Command
		if err := json.Unmarshal(data, &command); err != nil {
			// No command id is recoverable from a malformed frame, so the
			// error reply carries no source.
			log.Printf("error: %v", err)
			s.reply(protocol.Event{
				Type: protocol.EventError,
				Data: protocol.Error{Message: fmt.Sprintf("malformed command: %v", err)},
			})
			continue
		}
		s.processCommand(command)
	}
}

// processCommand executes one command against the world. Every command
// gets exactly one reply carrying its id as the source; failures reply
// with an error event and keep the connection up.
func (s *Session) processCommand(command protocol.Command) {
	world := s.hub.world

	switch command.Type {
	case protocol.CmdSpawnCamera:
		var spawn protocol.SpawnCamera
		if err := protocol.DecodeData(command.Data, &spawn); err != nil {
			s.fail(command.ID, fmt.Sprintf("bad spawn_camera payload: %v", err))
			return
		}
		entity := world.SpawnCamera(spawn.Position, spawn.Name)
		s.reply(protocol.Reply(protocol.EventEntityCreated, command.ID, protocol.EntityCreated{Entity: entity}))
		s.refreshState(spawn.Position)
		s.hub.broadcast <- protocol.Event{
			Type: protocol.EventEntitySpawned,
			Data: protocol.EntitySpawned{Entity: entity, Kind: "camera", Name: spawn.Name, Position: spawn.Position},
		}

	case protocol.CmdSpawnCube:
		var spawn protocol.SpawnCube
		if err := protocol.DecodeData(command.Data, &spawn); err != nil {
			s.fail(command.ID, fmt.Sprintf("bad spawn_cube payload: %v", err))
			return
		}
		if spawn.Size <= 0 {
			s.fail(command.ID, fmt.Sprintf("cube size must be positive, got %v", spawn.Size))
			return
		}
		entity := world.SpawnCube(spawn.Position, spawn.Size, spawn.Name)
		s.reply(protocol.Reply(protocol.EventEntityCreated, command.ID, protocol.EntityCreated{Entity: entity}))
		s.hub.broadcast <- protocol.Event{
			Type: protocol.EventEntitySpawned,
			Data: protocol.EntitySpawned{Entity: entity, Kind: "cube", Name: spawn.Name, Position: spawn.Position},
		}

	case protocol.CmdDespawn:
		var despawn protocol.Despawn
		if err := protocol.DecodeData(command.Data, &despawn); err != nil {
			s.fail(command.ID, fmt.Sprintf("bad despawn payload: %v", err))
			return
		}
		if !world.Despawn(despawn.Entity) {
			s.fail(command.ID, fmt.Sprintf("no live entity with %s", despawn.Entity))
			return
		}
		s.reply(protocol.Reply(protocol.EventDespawned, command.ID, protocol.Despawned{Entity: despawn.Entity}))
		s.hub.broadcast <- protocol.Event{
			Type: protocol.EventEntityDespawned,
			Data: protocol.EntityDespawned{Entity: despawn.Entity},
		}

	case protocol.CmdRequestCameras:
		entities := world.Query(scene.CompCamera)
		if entities == nil {
			entities = []scene.EntityID{}
		}
		s.reply(protocol.Reply(protocol.EventCameras, command.ID, protocol.Cameras{Entities: entities}))

	default:
		s.fail(command.ID, fmt.Sprintf("unknown command type %q", command.Type))
	}
}

// refreshState sends the session a state token carrying its latest camera
// position.
func (s *Session) refreshState(position scene.Vector3) {
	s.cameraPosition = position
	token, err := s.stateManager.Serialize(State{Position: position})
	if err != nil {
		log.Printf("error serializing state: %v", err)
		return
	}
	s.reply(protocol.Event{Type: protocol.EventState, Data: protocol.State{State: token}})
}

func (s *Session) reply(event protocol.Event) {
	bytes, err := json.Marshal(event)
	if err != nil {
		log.Printf("error marshalling reply: %v", err)
		return
	}
	// A full buffer means the hub is dropping this session; losing the
	// reply is fine, blocking the read pump forever is not.
	select {
	case s.send <- bytes:
	default:
		log.Printf("dropping reply to saturated session %s", s.ID)
	}
}

func (s *Session) fail(source uint64, message string) {
	log.Printf("command %d failed: %s", source, message)
	s.reply(protocol.Reply(protocol.EventError, source, protocol.Error{Message: message}))
}

// writePump pumps messages from the hub to the websocket connection.
//
// A goroutine running writePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case message, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Println("Websocket write error", err)
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs handles websocket requests from scene clients.
func ServeWs(hub *Hub, stateManager *StateManager, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	session := &Session{
		ID:           ksuid.New(),
		hub:          hub,
		stateManager: stateManager,
		conn:         conn,
		send:         make(chan []byte, 256),
	}

	// A valid state token from a previous session resumes its camera
	// position; anything else starts fresh.
	var restored *scene.Vector3
	if token := r.URL.Query().Get("state"); token != "" {
		if state, err := stateManager.Deserialize(token); err == nil {
			session.cameraPosition = state.Position
			restored = &state.Position
		} else {
			log.Printf("ignoring state token: %v", err)
		}
	}

	token, err := stateManager.Serialize(State{Position: session.cameraPosition})
	if err != nil {
		log.Printf("error serializing state: %v", err)
	}
	session.reply(protocol.Event{
		Type: protocol.EventConnected,
		Data: protocol.Connected{ClientID: session.ID.String(), State: token, Restored: restored},
	})

	hub.register <- session

	// Allow collection of memory referenced by the caller by doing all work
	// in new goroutines.
	go session.writePump()
	go session.readPump()
}
