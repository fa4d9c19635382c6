package scene

// BoxLines paints the wireframe of an axis-aligned box centered on center
// with the given half extents. The result holds the box's 12 edges as 24
// vertices, pairwise.
func BoxLines(center, halfExtents Vector3) []Vector3 {
	corner := func(sx, sy, sz float32) Vector3 {
		return center.Add(Vector3{
			X: sx * halfExtents.X,
			Y: sy * halfExtents.Y,
			Z: sz * halfExtents.Z,
		})
	}

	// Bottom face, top face, then the vertical edges joining them.
	edges := [12][2]Vector3{
		{corner(-1, -1, -1), corner(1, -1, -1)},
		{corner(1, -1, -1), corner(1, -1, 1)},
		{corner(1, -1, 1), corner(-1, -1, 1)},
		{corner(-1, -1, 1), corner(-1, -1, -1)},

		{corner(-1, 1, -1), corner(1, 1, -1)},
		{corner(1, 1, -1), corner(1, 1, 1)},
		{corner(1, 1, 1), corner(-1, 1, 1)},
		{corner(-1, 1, 1), corner(-1, 1, -1)},

		{corner(-1, -1, -1), corner(-1, 1, -1)},
		{corner(1, -1, -1), corner(1, 1, -1)},
		{corner(1, -1, 1), corner(1, 1, 1)},
		{corner(-1, -1, 1), corner(-1, 1, 1)},
	}

	lines := make([]Vector3, 0, 24)
	for _, edge := range edges {
		lines = append(lines, edge[0], edge[1])
	}
	return lines
}
