package math

import "github.com/go-gl/mathgl/mgl32"

// GenerateNormals computes flat face normals for an indexed triangle list.
// Every vertex of a triangle gets that triangle's normal, so a vertex shared
// between faces keeps the normal of the last face that references it.
func GenerateNormals(positions []mgl32.Vec3, indices []uint32) []mgl32.Vec3 {
	normals := make([]mgl32.Vec3, len(positions))
	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]

		edge1 := positions[i1].Sub(positions[i0])
		edge2 := positions[i2].Sub(positions[i0])

		n := edge1.Cross(edge2)
		if n.Len() == 0 {
			// degenerate triangle
			continue
		}
		n = n.Normalize()
		normals[i0] = n
		normals[i1] = n
		normals[i2] = n
	}
	return normals
}
