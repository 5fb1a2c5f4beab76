package loaders

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/g3n/engine/loader/obj"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	dmath "github.com/spaghettifunk/dyne/engine/math"
	"github.com/spaghettifunk/dyne/engine/renderer"
	"github.com/spaghettifunk/dyne/engine/resources"
)

// ModelLoader reads Wavefront OBJ geometry. Polygons are fan triangulated
// and identical vertices are merged into a single indexed entry. Material
// libraries are ignored.
type ModelLoader struct{}

func (ml *ModelLoader) Load(path string, params interface{}) (*resources.Resource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open model %s", path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat model %s", path)
	}

	data, err := ParseOBJ(f)
	if err != nil {
		return nil, errors.Wrapf(err, "model %s", path)
	}

	return &resources.Resource{
		Name:     resourceName(path),
		FullPath: path,
		Type:     resources.ResourceTypeMesh,
		DataSize: uint64(info.Size()),
		Data:     data,
	}, nil
}

func (ml *ModelLoader) Unload(res *resources.Resource) error {
	res.Data = nil
	return nil
}

// objCorner indexes into the decoder arrays; -1 marks a missing part.
type objCorner struct {
	position, uv, normal int
}

// ParseOBJ reads an OBJ stream into an indexed mesh. Besides the records the
// decoder understands, "v x y z r g b" lines give the vertex a color.
func ParseOBJ(r io.Reader) (*resources.MeshResourceData, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	colors, err := vertexColors(src)
	if err != nil {
		return nil, err
	}

	// faces declared before any "o" record need an object to land in
	var in bytes.Buffer
	in.WriteString("o mesh\n")
	in.Write(src)

	dec, err := obj.DecodeReader(&in, strings.NewReader(""))
	if err != nil {
		return nil, errors.Wrap(err, "decode obj")
	}

	corners, err := triangulate(dec)
	if err != nil {
		return nil, err
	}
	if len(corners) == 0 {
		return nil, errors.New("no faces")
	}
	return build(dec, colors, corners), nil
}

// vertexColors collects the optional rgb triple of every v record, white
// when absent.
func vertexColors(src []byte) ([]mgl32.Vec3, error) {
	var colors []mgl32.Vec3
	scanner := bufio.NewScanner(bytes.NewReader(src))
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || fields[0] != "v" {
			continue
		}
		color := mgl32.Vec3{1, 1, 1}
		if len(fields) >= 7 {
			for i := 0; i < 3; i++ {
				c, err := strconv.ParseFloat(fields[4+i], 32)
				if err != nil {
					return nil, errors.Wrapf(err, "line %d: vertex color", line)
				}
				color[i] = float32(c)
			}
		}
		colors = append(colors, color)
	}
	return colors, scanner.Err()
}

func triangulate(dec *obj.Decoder) ([]objCorner, error) {
	positions := len(dec.Vertices) / 3
	uvs := len(dec.Uvs) / 2
	normals := len(dec.Normals) / 3

	var corners []objCorner
	for _, o := range dec.Objects {
		for n, face := range o.Faces {
			if len(face.Vertices) < 3 {
				return nil, errors.Errorf("object %q face %d: %d vertices", o.Name, n, len(face.Vertices))
			}
			face := face
			corner := func(i int) (objCorner, error) {
				c := objCorner{
					position: face.Vertices[i],
					uv:       optionalIndex(face.Uvs, i, uvs),
					normal:   optionalIndex(face.Normals, i, normals),
				}
				if c.position < 0 || c.position >= positions {
					return c, errors.Errorf("object %q face %d: vertex index %d out of range [0, %d)", o.Name, n, c.position, positions)
				}
				return c, nil
			}
			for i := 2; i < len(face.Vertices); i++ {
				for _, k := range [3]int{0, i - 1, i} {
					c, err := corner(k)
					if err != nil {
						return nil, err
					}
					corners = append(corners, c)
				}
			}
		}
	}
	return corners, nil
}

func optionalIndex(indices []int, i, count int) int {
	if i >= len(indices) || indices[i] < 0 || indices[i] >= count {
		return -1
	}
	return indices[i]
}

func build(dec *obj.Decoder, colors []mgl32.Vec3, corners []objCorner) *resources.MeshResourceData {
	position := func(i int) mgl32.Vec3 {
		return mgl32.Vec3{dec.Vertices[i*3], dec.Vertices[i*3+1], dec.Vertices[i*3+2]}
	}

	hasNormals := len(dec.Normals) > 0
	var generated []mgl32.Vec3
	if !hasNormals {
		positions := make([]mgl32.Vec3, len(corners))
		sequence := make([]uint32, len(corners))
		for i, c := range corners {
			positions[i] = position(c.position)
			sequence[i] = uint32(i)
		}
		generated = dmath.GenerateNormals(positions, sequence)
	}

	mesh := &renderer.MeshData{Indices: make([]uint32, 0, len(corners))}
	unique := make(map[renderer.Vertex]uint32)
	for i, c := range corners {
		v := renderer.Vertex{
			Position: position(c.position),
			Color:    mgl32.Vec3{1, 1, 1},
		}
		if c.position < len(colors) {
			v.Color = colors[c.position]
		}
		switch {
		case c.normal >= 0:
			v.Normal = mgl32.Vec3{dec.Normals[c.normal*3], dec.Normals[c.normal*3+1], dec.Normals[c.normal*3+2]}
		case generated != nil:
			v.Normal = generated[i]
		}
		if c.uv >= 0 {
			v.UV = mgl32.Vec2{dec.Uvs[c.uv*2], dec.Uvs[c.uv*2+1]}
		}

		index, ok := unique[v]
		if !ok {
			index = uint32(len(mesh.Vertices))
			unique[v] = index
			mesh.Vertices = append(mesh.Vertices, v)
		}
		mesh.Indices = append(mesh.Indices, index)
	}
	return &resources.MeshResourceData{Mesh: mesh, HasNormals: hasNormals}
}
