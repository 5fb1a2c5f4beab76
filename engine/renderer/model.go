package renderer

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

type Vertex struct {
	Position mgl32.Vec3
	Color    mgl32.Vec3
	Normal   mgl32.Vec3
	UV       mgl32.Vec2
}

var vertexSize = uint32(unsafe.Sizeof(Vertex{}))

// VertexLayoutFor returns the pipeline vertex input for Vertex.
func VertexLayoutFor() *VertexLayout {
	return &VertexLayout{
		Stride: vertexSize,
		Attributes: []VertexAttribute{
			{Location: 0, Format: VertexFormatFloat32x3, Offset: uint32(unsafe.Offsetof(Vertex{}.Position))},
			{Location: 1, Format: VertexFormatFloat32x3, Offset: uint32(unsafe.Offsetof(Vertex{}.Color))},
			{Location: 2, Format: VertexFormatFloat32x3, Offset: uint32(unsafe.Offsetof(Vertex{}.Normal))},
			{Location: 3, Format: VertexFormatFloat32x2, Offset: uint32(unsafe.Offsetof(Vertex{}.UV))},
		},
	}
}

// MeshData is what a mesh loader produces. Indices may be empty.
type MeshData struct {
	Vertices []Vertex
	Indices  []uint32
}

// Mesh is anything a render system can bind and draw.
type Mesh interface {
	Bind(cmd CommandBuffer)
	Draw(cmd CommandBuffer)
	Destroy()
}

// Model holds immutable device-local vertex and index buffers.
type Model struct {
	vertexBuffer *Buffer
	vertexCount  uint32
	indexBuffer  *Buffer
	indexCount   uint32
}

func NewModel(device Device, mesh *MeshData) (*Model, error) {
	if len(mesh.Vertices) < 3 {
		return nil, errors.Wrapf(ErrEmptyMesh, "got %d", len(mesh.Vertices))
	}
	m := &Model{}

	vb, err := uploadDeviceLocal(device, sliceBytes(mesh.Vertices), uint64(vertexSize), uint32(len(mesh.Vertices)), BufferUsageVertex)
	if err != nil {
		return nil, errors.Wrap(err, "vertex buffer")
	}
	m.vertexBuffer = vb
	m.vertexCount = uint32(len(mesh.Vertices))

	if len(mesh.Indices) > 0 {
		ib, err := uploadDeviceLocal(device, sliceBytes(mesh.Indices), 4, uint32(len(mesh.Indices)), BufferUsageIndex)
		if err != nil {
			m.Destroy()
			return nil, errors.Wrap(err, "index buffer")
		}
		m.indexBuffer = ib
		m.indexCount = uint32(len(mesh.Indices))
	}
	return m, nil
}

// uploadDeviceLocal fills a device-local buffer through a host-visible
// staging buffer that is released once the copy completed.
func uploadDeviceLocal(device Device, data []byte, instanceSize uint64, count uint32, usage BufferUsage) (*Buffer, error) {
	staging, err := NewBuffer(device, instanceSize, count, BufferUsageTransferSrc, MemoryHostVisible|MemoryHostCoherent, 0)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()

	if err := staging.Map(); err != nil {
		return nil, err
	}
	if err := staging.Write(data, 0); err != nil {
		return nil, err
	}

	dst, err := NewBuffer(device, instanceSize, count, usage|BufferUsageTransferDst, MemoryDeviceLocal, 0)
	if err != nil {
		return nil, err
	}
	err = device.SubmitOneShot(func(cmd CommandBuffer) {
		cmd.CopyBuffer(staging, dst, dst.Size())
	})
	if err != nil {
		dst.Destroy()
		return nil, errors.Wrap(err, "staging copy")
	}
	return dst, nil
}

func sliceBytes[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(zero)))
}

func (m *Model) Bind(cmd CommandBuffer) {
	cmd.BindVertexBuffers(0, m.vertexBuffer)
	if m.indexBuffer != nil {
		cmd.BindIndexBuffer(m.indexBuffer)
	}
}

func (m *Model) Draw(cmd CommandBuffer) {
	if m.indexBuffer != nil {
		cmd.DrawIndexed(m.indexCount, 1, 0, 0, 0)
		return
	}
	cmd.Draw(m.vertexCount, 1, 0, 0)
}

func (m *Model) VertexCount() uint32 { return m.vertexCount }
func (m *Model) IndexCount() uint32  { return m.indexCount }
func (m *Model) HasIndices() bool    { return m.indexBuffer != nil }

func (m *Model) Destroy() {
	if m.vertexBuffer != nil {
		m.vertexBuffer.Destroy()
		m.vertexBuffer = nil
	}
	if m.indexBuffer != nil {
		m.indexBuffer.Destroy()
		m.indexBuffer = nil
	}
}
