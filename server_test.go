package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nightshade3d/scene-api/client"
	"github.com/nightshade3d/scene-api/protocol"
	"github.com/nightshade3d/scene-api/scene"
)

type testServer struct {
	world *scene.World
	url   string
	wsURL string
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	world := scene.NewWorld()
	hub := NewHub(world, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	stateManager := NewStateManager([]byte("test-secret"))
	server := httptest.NewServer(newRouter(world, hub, stateManager))
	t.Cleanup(server.Close)

	return &testServer{
		world: world,
		url:   server.URL,
		wsURL: "ws" + strings.TrimPrefix(server.URL, "http") + "/ws",
	}
}

func dialTestServer(t *testing.T, url string) *client.Client {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := client.Dial(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetTimeout(5 * time.Second)
	return conn
}

func TestSpawnLatticeEndToEnd(t *testing.T) {
	server := startTestServer(t)
	conn := dialTestServer(t, server.wsURL)

	assert.NotEmpty(t, conn.ClientID())

	camera, err := conn.SpawnCamera(0, 10, 15, "MainCamera")
	require.NoError(t, err)

	const size = 4
	const spacing = float32(1.5)
	offset := float32(size-1) * spacing / 2

	seen := make(map[scene.EntityID]bool)
	for x := 0; x < size; x++ {
		for y := 0; y < size; y++ {
			for z := 0; z < size; z++ {
				name := fmt.Sprintf("Cube_%d_%d_%d", x, y, z)
				cube, err := conn.SpawnCube(
					float32(x)*spacing-offset,
					float32(y)*spacing-offset,
					float32(z)*spacing-offset,
					1.0, name)
				require.NoError(t, err)
				assert.False(t, seen[cube], "duplicate entity id for %s", name)
				seen[cube] = true

				stored, ok := server.world.Name(cube)
				require.True(t, ok)
				assert.Equal(t, name, stored)
			}
		}
	}

	assert.Len(t, seen, size*size*size)
	assert.Equal(t, 1+size*size*size, server.world.Len())

	cameras, err := conn.RequestCameras()
	require.NoError(t, err)
	assert.Equal(t, []scene.EntityID{camera}, cameras)

	transform, ok := server.world.Transform(camera)
	require.True(t, ok)
	assert.Equal(t, scene.Vector3{X: 0, Y: 10, Z: 15}, transform.Translation)
}

func TestDespawnAndCommandErrors(t *testing.T) {
	server := startTestServer(t)
	conn := dialTestServer(t, server.wsURL)

	cube, err := conn.SpawnCube(0, 0, 0, 1, "doomed")
	require.NoError(t, err)

	require.NoError(t, conn.Despawn(cube))
	assert.Equal(t, 0, server.world.Len())

	// A second despawn of the same id is an error reply, not a dropped
	// connection.
	err = conn.Despawn(cube)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no live entity")

	_, err = conn.SpawnCube(0, 0, 0, 0, "flat")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be positive")

	// The connection survived both failures.
	_, err = conn.SpawnCube(1, 1, 1, 1, "fine")
	assert.NoError(t, err)
}

func TestUnknownCommandGetsErrorReply(t *testing.T) {
	server := startTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(server.wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Skip the handshake.
	var event protocol.Event
	require.NoError(t, conn.ReadJSON(&event))
	require.Equal(t, protocol.EventConnected, event.Type)

	require.NoError(t, conn.WriteJSON(protocol.Command{ID: 1, Type: "warp"}))

	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, protocol.EventError, event.Type)
	require.NotNil(t, event.Source)
	assert.Equal(t, uint64(1), *event.Source)
}

func TestMalformedFrameGetsErrorReply(t *testing.T) {
	server := startTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(server.wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var event protocol.Event
	require.NoError(t, conn.ReadJSON(&event))
	require.Equal(t, protocol.EventConnected, event.Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, protocol.EventError, event.Type)
	assert.Nil(t, event.Source)
	var serverError protocol.Error
	require.NoError(t, protocol.DecodeData(event.Data, &serverError))
	assert.Contains(t, serverError.Message, "malformed command")

	// The connection survived and still executes commands.
	require.NoError(t, conn.WriteJSON(protocol.Command{ID: 1, Type: protocol.CmdRequestCameras}))
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, protocol.EventCameras, event.Type)
}

func TestStateTokenResumesCameraPosition(t *testing.T) {
	server := startTestServer(t)

	first := dialTestServer(t, server.wsURL)
	assert.Nil(t, first.RestoredPosition())

	_, err := first.SpawnCamera(1, 2, 3, "roamer")
	require.NoError(t, err)

	// The refreshed state token rides behind the spawn reply; the next
	// call drains it.
	_, err = first.RequestCameras()
	require.NoError(t, err)
	token := first.StateToken()
	require.NotEmpty(t, token)
	require.NoError(t, first.Close())

	second := dialTestServer(t, server.wsURL+"?state="+token)
	restored := second.RestoredPosition()
	require.NotNil(t, restored)
	assert.Equal(t, scene.Vector3{X: 1, Y: 2, Z: 3}, *restored)
}

func TestInvalidStateTokenStartsFresh(t *testing.T) {
	server := startTestServer(t)

	conn := dialTestServer(t, server.wsURL+"?state=bogus")
	assert.Nil(t, conn.RestoredPosition())
	assert.NotEmpty(t, conn.ClientID())
}

func TestSpawnBroadcastReachesOtherSessions(t *testing.T) {
	server := startTestServer(t)

	spawner := dialTestServer(t, server.wsURL)
	watcher := dialTestServer(t, server.wsURL)

	broadcasts := make(chan protocol.Event, 16)
	watcher.Notify(func(event protocol.Event) {
		broadcasts <- event
	})

	_, err := spawner.SpawnCube(1, 2, 3, 1, "announced")
	require.NoError(t, err)

	// Give the hub time to fan the broadcast out to the watcher's socket,
	// then drain it with a call.
	time.Sleep(200 * time.Millisecond)
	_, err = watcher.RequestCameras()
	require.NoError(t, err)

	select {
	case event := <-broadcasts:
		assert.Equal(t, protocol.EventEntitySpawned, event.Type)
		var spawned protocol.EntitySpawned
		require.NoError(t, protocol.DecodeData(event.Data, &spawned))
		assert.Equal(t, "announced", spawned.Name)
		assert.Equal(t, "cube", spawned.Kind)
		assert.Equal(t, scene.Vector3{X: 1, Y: 2, Z: 3}, spawned.Position)
	default:
		t.Fatal("watcher never saw the entity_spawned broadcast")
	}
}

func TestObserverStreamReceivesBroadcasts(t *testing.T) {
	server := startTestServer(t)

	resp, err := http.Get(server.url + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "data: {\"type\":\"connected\"}\n", line)

	conn := dialTestServer(t, server.wsURL)
	_, err = conn.SpawnCube(0, 0, 0, 1, "watched")
	require.NoError(t, err)

	for {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if strings.Contains(line, protocol.EventEntitySpawned) {
			assert.Contains(t, line, "watched")
			return
		}
	}
}

func TestHealthReportsEntityCount(t *testing.T) {
	server := startTestServer(t)

	resp, err := http.Get(server.url + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body [64]byte
	n, _ := resp.Body.Read(body[:])
	assert.Equal(t, "Healthy: 0 entities\n", string(body[:n]))

	conn := dialTestServer(t, server.wsURL)
	_, err = conn.SpawnCube(0, 0, 0, 1, "counted")
	require.NoError(t, err)

	resp, err = http.Get(server.url + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	n, _ = resp.Body.Read(body[:])
	assert.Equal(t, "Healthy: 1 entities\n", string(body[:n]))
}
