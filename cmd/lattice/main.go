// Command lattice spawns a camera and a cubic lattice of unit cubes on a
// running scene server, then lists the server's cameras.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/nightshade3d/scene-api/client"
)

var (
	addr    = flag.String("addr", "ws://localhost:9124/ws", "scene server websocket endpoint")
	size    = flag.Int("size", 4, "cubes per lattice axis")
	spacing = flag.Float64("spacing", 1.5, "distance between neighboring cubes")
)

const cubeSize = 1.0

func main() {
	flag.Parse()
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := client.Dial(ctx, *addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	cameraID, err := conn.SpawnCamera(0, 10, 15, "MainCamera")
	if err != nil {
		return fmt.Errorf("spawning camera: %w", err)
	}
	log.Printf("Spawned camera %v", cameraID)

	points := latticeCoords(*size, float32(*spacing))
	for _, point := range points {
		p := point.Position
		if _, err := conn.SpawnCube(p.X, p.Y, p.Z, cubeSize, point.Name); err != nil {
			return fmt.Errorf("spawning %s: %w", point.Name, err)
		}
	}
	log.Printf("Spawned %d cubes", len(points))

	cameras, err := conn.RequestCameras()
	if err != nil {
		return fmt.Errorf("requesting cameras: %w", err)
	}
	fmt.Printf("Found cameras: %v\n", cameras)

	return nil
}
