package rendertest

import "github.com/spaghettifunk/dyne/engine/renderer"

// Mesh records binds and draws without touching a device.
type Mesh struct {
	Name      string
	Binds     int
	Draws     int
	Destroyed bool
}

func NewMesh(name string) *Mesh {
	return &Mesh{Name: name}
}

func (m *Mesh) Bind(cmd renderer.CommandBuffer) {
	m.Binds++
}

func (m *Mesh) Draw(cmd renderer.CommandBuffer) {
	m.Draws++
	cmd.Draw(3, 1, 0, 0)
}

func (m *Mesh) Destroy() {
	m.Destroyed = true
}
