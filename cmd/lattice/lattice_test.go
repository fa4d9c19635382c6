package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatticeOffsetCentersGrid(t *testing.T) {
	// For N=4, S=1.5 the offset is 2.25: index 0 maps to -2.25 and
	// index 3 maps to 2.25.
	offset := latticeOffset(4, 1.5)
	assert.Equal(t, float32(2.25), offset)
	assert.Equal(t, float32(-2.25), float32(0)*1.5-offset)
	assert.Equal(t, float32(2.25), float32(3)*1.5-offset)
}

func TestLatticeCoordsGeneratesSymmetricGrid(t *testing.T) {
	points := latticeCoords(4, 1.5)
	require.Len(t, points, 64)

	names := make(map[string]bool)
	var minimum, maximum float32
	for _, point := range points {
		assert.False(t, names[point.Name], "duplicate name %s", point.Name)
		names[point.Name] = true

		for _, coordinate := range []float32{point.Position.X, point.Position.Y, point.Position.Z} {
			if coordinate < minimum {
				minimum = coordinate
			}
			if coordinate > maximum {
				maximum = coordinate
			}
		}
	}

	// Symmetric about the origin.
	assert.Equal(t, float32(-2.25), minimum)
	assert.Equal(t, float32(2.25), maximum)

	assert.Equal(t, "Cube_0_0_0", points[0].Name)
	assert.Equal(t, "Cube_3_3_3", points[63].Name)
	assert.Contains(t, names, "Cube_2_1_3")
}

func TestLatticeCoordsAxisFormula(t *testing.T) {
	// Coordinate along each axis for index i is i*S - (N-1)*S/2.
	points := latticeCoords(3, 2)
	offset := latticeOffset(3, 2)
	assert.Equal(t, float32(2), offset)

	i := 0
	for x := 0; x < 3; x++ {
		for y := 0; y < 3; y++ {
			for z := 0; z < 3; z++ {
				point := points[i]
				assert.Equal(t, float32(x)*2-offset, point.Position.X)
				assert.Equal(t, float32(y)*2-offset, point.Position.Y)
				assert.Equal(t, float32(z)*2-offset, point.Position.Z)
				i++
			}
		}
	}
}

func TestSingleCubeLatticeSitsAtOrigin(t *testing.T) {
	points := latticeCoords(1, 1.5)
	require.Len(t, points, 1)
	assert.Equal(t, float32(0), points[0].Position.X)
	assert.Equal(t, float32(0), points[0].Position.Y)
	assert.Equal(t, float32(0), points[0].Position.Z)
	assert.Equal(t, "Cube_0_0_0", points[0].Name)
}
