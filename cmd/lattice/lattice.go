package main

import (
	"fmt"

	"github.com/nightshade3d/scene-api/scene"
)

type latticePoint struct {
	Name     string
	Position scene.Vector3
}

// latticeOffset is the centering offset for one lattice axis, chosen so
// the grid is symmetric about the origin: index i maps to i*spacing-offset.
func latticeOffset(size int, spacing float32) float32 {
	return float32(size-1) * spacing / 2
}

// latticeCoords generates the size³ cube positions of an origin-centered
// lattice, each with its unique Cube_x_y_z name.
func latticeCoords(size int, spacing float32) []latticePoint {
	offset := latticeOffset(size, spacing)
	points := make([]latticePoint, 0, size*size*size)
	for x := 0; x < size; x++ {
		for y := 0; y < size; y++ {
			for z := 0; z < size; z++ {
				points = append(points, latticePoint{
					Name: fmt.Sprintf("Cube_%d_%d_%d", x, y, z),
					Position: scene.Vector3{
						X: float32(x)*spacing - offset,
						Y: float32(y)*spacing - offset,
						Z: float32(z)*spacing - offset,
					},
				})
			}
		}
	}
	return points
}
