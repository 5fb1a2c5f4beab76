package platform

import (
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/pkg/errors"

	"github.com/spaghettifunk/dyne/engine/core"
	"github.com/spaghettifunk/dyne/engine/renderer"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

type WindowConfig struct {
	Title  string
	X, Y   int
	Width  uint32
	Height uint32
}

// Window is a GLFW window without a client API, used as a Vulkan surface.
// Input callbacks feed core.Input; resizes raise a flag the renderer polls.
type Window struct {
	handle  *glfw.Window
	input   *core.Input
	bus     *core.EventBus
	resized bool
}

func NewWindow(cfg WindowConfig, input *core.Input, bus *core.EventBus) (*Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize glfw")
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return nil, errors.New("glfw reports no Vulkan loader")
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	handle, err := glfw.CreateWindow(int(cfg.Width), int(cfg.Height), cfg.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, errors.Wrap(err, "failed to create window")
	}

	w := &Window{handle: handle, input: input, bus: bus}
	handle.SetKeyCallback(w.keyCallback)
	handle.SetMouseButtonCallback(w.mouseButtonCallback)
	handle.SetCursorPosCallback(w.cursorPosCallback)
	handle.SetFramebufferSizeCallback(w.framebufferSizeCallback)
	handle.SetCloseCallback(w.closeCallback)
	handle.SetPos(cfg.X, cfg.Y)
	handle.Show()

	core.LogInfo("window %q created (%dx%d)", cfg.Title, cfg.Width, cfg.Height)
	return w, nil
}

// Extent is the framebuffer size in pixels, zero while minimized.
func (w *Window) Extent() renderer.Extent {
	width, height := w.handle.GetFramebufferSize()
	return renderer.Extent{Width: uint32(width), Height: uint32(height)}
}

func (w *Window) WasResized() bool { return w.resized }
func (w *Window) ResetResized()    { w.resized = false }

func (w *Window) ShouldClose() bool {
	return w.handle.ShouldClose()
}

func (w *Window) SetShouldClose() {
	w.handle.SetShouldClose(true)
}

func (w *Window) WaitEvents() {
	glfw.WaitEvents()
}

// PumpMessages processes pending events without blocking.
func (w *Window) PumpMessages() {
	glfw.PollEvents()
}

func (w *Window) Focused() bool {
	return w.handle.GetAttrib(glfw.Focused) == glfw.True
}

// CaptureCursor hides the cursor and keeps it inside the window for mouse look.
func (w *Window) CaptureCursor(captured bool) {
	mode := glfw.CursorNormal
	if captured {
		mode = glfw.CursorHidden
	}
	w.handle.SetInputMode(glfw.CursorMode, mode)
}

func (w *Window) SetCursorPos(x, y float64) {
	w.handle.SetCursorPos(x, y)
}

func (w *Window) RequiredInstanceExtensions() []string {
	return w.handle.GetRequiredInstanceExtensions()
}

func (w *Window) InstanceProcAddr() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}

func (w *Window) CreateSurface(instance interface{}) (uintptr, error) {
	surface, err := w.handle.CreateWindowSurface(instance, nil)
	if err != nil {
		return 0, errors.Wrap(err, "failed to create window surface")
	}
	return surface, nil
}

func (w *Window) Destroy() {
	if w.handle != nil {
		w.handle.Destroy()
		w.handle = nil
	}
	glfw.Terminate()
}

func (w *Window) keyCallback(_ *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if action == glfw.Repeat {
		return
	}
	w.input.ProcessKey(TranslateKey(key), action == glfw.Press)
}

func (w *Window) mouseButtonCallback(_ *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
	var b core.Button
	switch button {
	case glfw.MouseButtonLeft:
		b = core.BUTTON_LEFT
	case glfw.MouseButtonRight:
		b = core.BUTTON_RIGHT
	case glfw.MouseButtonMiddle:
		b = core.BUTTON_MIDDLE
	default:
		return
	}
	w.input.ProcessButton(b, action == glfw.Press)
}

func (w *Window) cursorPosCallback(_ *glfw.Window, xpos, ypos float64) {
	w.input.ProcessMouseMove(xpos, ypos)
}

func (w *Window) framebufferSizeCallback(_ *glfw.Window, width, height int) {
	w.resized = true
	if w.bus != nil {
		w.bus.Fire(core.EventContext{
			Type:   core.EVENT_CODE_RESIZED,
			Sender: w,
			Data:   &core.SystemEvent{WindowWidth: uint32(width), WindowHeight: uint32(height)},
		})
	}
}

func (w *Window) closeCallback(_ *glfw.Window) {
	if w.bus != nil {
		w.bus.Fire(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT, Sender: w})
	}
}
