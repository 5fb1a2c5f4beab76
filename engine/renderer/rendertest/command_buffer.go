package rendertest

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/spaghettifunk/dyne/engine/renderer"
)

type CommandBufferState uint8

const (
	CommandBufferReady CommandBufferState = iota
	CommandBufferRecording
	CommandBufferInRenderPass
	CommandBufferRecordingEnded
	CommandBufferSubmitted
)

// Command is one recorded call.
type Command struct {
	Name string
	Args []interface{}
}

func (c Command) String() string {
	return fmt.Sprintf("%s%v", c.Name, c.Args)
}

// CommandBuffer records calls and enforces begin/end ordering. Copies are
// executed when the buffer is submitted.
type CommandBuffer struct {
	device   *Device
	State    CommandBufferState
	Commands []Command
	Viewport renderer.Viewport
	Scissor  renderer.Rect
	Pushes   [][]byte
	Begins   int
	Freed    bool
	copies   []pendingCopy
}

type pendingCopy struct {
	src, dst *Allocation
	size     uint64
}

func (c *CommandBuffer) record(name string, args ...interface{}) {
	c.Commands = append(c.Commands, Command{Name: name, Args: args})
}

// Names lists the recorded command names in order.
func (c *CommandBuffer) Names() []string {
	names := make([]string, len(c.Commands))
	for i, cmd := range c.Commands {
		names[i] = cmd.Name
	}
	return names
}

func (c *CommandBuffer) Begin() error {
	if c.Freed {
		return errors.New("begin on freed command buffer")
	}
	if c.State == CommandBufferRecording || c.State == CommandBufferInRenderPass {
		return errors.New("command buffer is already recording")
	}
	c.Commands = nil
	c.Pushes = nil
	c.copies = nil
	c.State = CommandBufferRecording
	c.Begins++
	return nil
}

func (c *CommandBuffer) End() error {
	if c.State != CommandBufferRecording {
		return errors.Errorf("end called in state %d", c.State)
	}
	c.State = CommandBufferRecordingEnded
	return nil
}

func (c *CommandBuffer) Reset() error {
	c.Commands = nil
	c.Pushes = nil
	c.copies = nil
	c.State = CommandBufferReady
	return nil
}

func (c *CommandBuffer) BeginRenderPass(pass renderer.RenderPass, fb renderer.Framebuffer, area renderer.Rect, clear renderer.ClearValues) {
	c.State = CommandBufferInRenderPass
	c.record("BeginRenderPass", pass, fb, area, clear)
}

func (c *CommandBuffer) EndRenderPass() {
	c.State = CommandBufferRecording
	c.record("EndRenderPass")
}

func (c *CommandBuffer) SetViewport(v renderer.Viewport) {
	c.Viewport = v
	c.record("SetViewport", v)
}

func (c *CommandBuffer) SetScissor(r renderer.Rect) {
	c.Scissor = r
	c.record("SetScissor", r)
}

func (c *CommandBuffer) BindPipeline(p renderer.Pipeline) {
	c.record("BindPipeline", p)
}

func (c *CommandBuffer) BindDescriptorSets(p renderer.Pipeline, firstSet uint32, sets ...renderer.DescriptorSet) {
	c.record("BindDescriptorSets", p, firstSet, sets)
}

func (c *CommandBuffer) PushConstants(p renderer.Pipeline, stages renderer.ShaderStage, offset uint32, data []byte) {
	c.Pushes = append(c.Pushes, append([]byte(nil), data...))
	c.record("PushConstants", p, stages, offset, len(data))
}

func (c *CommandBuffer) BindVertexBuffers(first uint32, buffers ...*renderer.Buffer) {
	c.record("BindVertexBuffers", first, len(buffers))
}

func (c *CommandBuffer) BindIndexBuffer(b *renderer.Buffer) {
	c.record("BindIndexBuffer", b.Size())
}

func (c *CommandBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	c.record("Draw", vertexCount, instanceCount)
}

func (c *CommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	c.record("DrawIndexed", indexCount, instanceCount)
}

func (c *CommandBuffer) CopyBuffer(src, dst *renderer.Buffer, size uint64) {
	c.copies = append(c.copies, pendingCopy{src: allocationOf(src), dst: allocationOf(dst), size: size})
	c.record("CopyBuffer", size)
}

// execute runs the work the fake GPU can observe.
func (c *CommandBuffer) execute() error {
	if c.State != CommandBufferRecordingEnded {
		return errors.Errorf("submit of command buffer in state %d", c.State)
	}
	for _, cp := range c.copies {
		if cp.src == nil || cp.dst == nil || cp.src.Destroyed || cp.dst.Destroyed {
			return errors.New("copy between invalid buffers")
		}
		copy(cp.dst.Data[:cp.size], cp.src.Data[:cp.size])
	}
	c.State = CommandBufferSubmitted
	return nil
}
