package engine

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/spaghettifunk/dyne/engine/assets"
	"github.com/spaghettifunk/dyne/engine/config"
	"github.com/spaghettifunk/dyne/engine/core"
	dmath "github.com/spaghettifunk/dyne/engine/math"
	"github.com/spaghettifunk/dyne/engine/platform"
	"github.com/spaghettifunk/dyne/engine/renderer"
	"github.com/spaghettifunk/dyne/engine/renderer/vulkan"
	"github.com/spaghettifunk/dyne/engine/scene"
	"github.com/spaghettifunk/dyne/engine/systems"
)

// MaxFrameTime caps the simulation step after a stall, in seconds.
const MaxFrameTime float32 = 0.1

var ErrShaderNotFound = errors.New("shader not found")

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

type Engine struct {
	currentStage Stage
	config       *config.Config
	gameInstance *Game

	bus      *core.EventBus
	input    *core.Input
	window   *platform.Window
	backend  *vulkan.VulkanRenderer
	renderer *renderer.Renderer
	assets   *assets.AssetManager

	scene         *scene.Scene
	systemManager *systems.SystemManager
	texture       renderer.Texture
	camera        *scene.Camera
	viewer        dmath.Transform
	controller    *scene.MovementController

	clock   *core.Clock
	metrics *core.FrameMetrics

	isRunning     bool
	mouseCaptured bool
}

func New(g *Game, cfg *config.Config) (*Engine, error) {
	if err := core.SetLogLevel(cfg.Log.Level); err != nil {
		return nil, err
	}
	if g.Name != "" {
		cfg.Window.Title = g.Name
	}
	bus := core.NewEventBus()
	viewer := dmath.TransformCreate()
	viewer.Translation = mgl32.Vec3{0, 0, -2.5}

	return &Engine{
		currentStage: EngineStageUninitialized,
		config:       cfg,
		gameInstance: g,
		bus:          bus,
		input:        core.NewInput(bus),
		assets:       assets.NewAssetManager(cfg.Assets.Workers),
		scene:        scene.New(),
		camera:       scene.NewCamera(),
		viewer:       viewer,
		controller:   scene.NewMovementController(cfg.Camera.MoveSpeed, cfg.Camera.LookSpeed, cfg.Camera.BoostScale),
		clock:        core.NewClock(),
		metrics:      core.NewFrameMetrics(),
		isRunning:    true,
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	for code, fn := range map[core.SystemEventCode]core.FnOnEvent{
		core.EVENT_CODE_APPLICATION_QUIT: e.onEvent,
		core.EVENT_CODE_KEY_PRESSED:      e.onKey,
		core.EVENT_CODE_BUTTON_PRESSED:   e.onButton,
		core.EVENT_CODE_RESIZED:          e.onResized,
	} {
		if err := e.bus.Register(code, e, fn); err != nil {
			return err
		}
	}

	window, err := platform.NewWindow(platform.WindowConfig{
		Title:  e.config.Window.Title,
		X:      e.config.Window.X,
		Y:      e.config.Window.Y,
		Width:  e.config.Window.Width,
		Height: e.config.Window.Height,
	}, e.input, e.bus)
	if err != nil {
		return err
	}
	e.window = window

	apiVersion, err := e.config.APIVersion()
	if err != nil {
		return err
	}
	backend, err := vulkan.New(window, vulkan.Config{
		ApplicationName: e.config.Window.Title,
		APIVersion:      apiVersion,
		Validation:      e.config.Renderer.Validation,
		PresentMode:     e.config.Renderer.PresentMode,
	})
	if err != nil {
		return err
	}
	e.backend = backend

	r, err := renderer.NewRenderer(window, backend.Device())
	if err != nil {
		return err
	}
	e.renderer = r

	if err := e.assets.Initialize(e.config.Assets.Root, e.config.Assets.Watch); err != nil {
		return err
	}
	e.assets.OnChange(func(ev assets.AssetEvent) {
		core.LogInfo("asset %s changed on disk (%s), restart to pick it up", ev.Asset.Path, ev.Asset.Type)
	})

	if err := e.initializeSystems(); err != nil {
		return err
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(e); err != nil {
			return errors.Wrap(err, "game initialization failed")
		}
	}
	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) initializeSystems() error {
	simple, err := e.loadShaderPair("simple_shader")
	if err != nil {
		return err
	}
	lights, err := e.loadShaderPair("point_light")
	if err != nil {
		return err
	}
	tex, err := e.loadTexture(e.gameInstance.Texture)
	if err != nil {
		return errors.Wrap(err, "failed to load texture")
	}
	e.texture = tex

	sm, err := systems.NewSystemManager(e.Device(), systems.SystemManagerConfig{
		RenderPass:        e.renderer.SwapchainRenderPass(),
		SimpleShaders:     simple,
		PointLightShaders: lights,
		Texture:           tex,
	})
	if err != nil {
		return err
	}
	e.systemManager = sm
	return nil
}

func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.clock.Start()

	for e.isRunning && !e.window.ShouldClose() {
		e.window.PumpMessages()

		delta, err := e.clock.Tick(MaxFrameTime)
		if err != nil {
			return err
		}
		e.clock.Update()

		e.controller.Move(e.input, e.mouseLook(), delta, &e.viewer)

		if e.gameInstance.FnUpdate != nil {
			if err := e.gameInstance.FnUpdate(e, delta); err != nil {
				core.LogError("game update failed: %v", err)
				return err
			}
		}

		if err := e.drawFrame(delta); err != nil {
			core.LogError("render failed: %v", err)
			return err
		}

		if e.metrics.Update(e.clock.LastFrame().Seconds()) {
			core.LogDebug("%.0f fps, %.2f ms/frame", e.metrics.FPS(), e.metrics.FrameTime())
		}

		if err := e.collectMeshes(); err != nil {
			return err
		}

		// Input state is copied last so this frame's transitions stay visible above.
		e.input.Update()
	}

	return errors.Wrap(e.Device().WaitIdle(), "wait idle after frame loop")
}

func (e *Engine) drawFrame(delta float32) error {
	cmd, err := e.renderer.BeginFrame()
	if err != nil {
		return err
	}
	if cmd == nil {
		// the swapchain was rebuilt, try again next tick
		return nil
	}

	cam := e.config.Camera
	e.camera.SetPerspectiveProjection(mgl32.DegToRad(cam.FOV), e.renderer.AspectRatio(), cam.Near, cam.Far)
	e.camera.SetViewYXZ(e.viewer.Translation, e.viewer.Rotation)

	frame := &systems.FrameInfo{
		FrameIndex:    e.renderer.FrameIndex(),
		FrameTime:     delta,
		CommandBuffer: cmd,
		Camera:        e.camera,
		Scene:         e.scene,
	}
	if err := e.systemManager.Update(frame); err != nil {
		return err
	}
	if err := e.renderer.BeginSwapchainRenderPass(cmd); err != nil {
		return err
	}
	e.systemManager.Render(frame)
	if err := e.renderer.EndSwapchainRenderPass(cmd); err != nil {
		return err
	}
	return e.renderer.EndFrame()
}

// collectMeshes destroys meshes whose last reference went away this frame.
// In-flight frames may still read them, so the device has to drain first.
func (e *Engine) collectMeshes() error {
	if !e.scene.HasReleased() {
		return nil
	}
	if err := e.Device().WaitIdle(); err != nil {
		return errors.Wrap(err, "wait idle before destroying meshes")
	}
	n := e.scene.DestroyReleased()
	core.LogDebug("destroyed %d released meshes", n)
	return nil
}

// mouseLook returns the cursor offset from the window center and recenters
// the cursor, while the mouse is captured.
func (e *Engine) mouseLook() mgl32.Vec2 {
	if !e.mouseCaptured || !e.window.Focused() {
		return mgl32.Vec2{}
	}
	extent := e.window.Extent()
	cx, cy := float64(extent.Width)/2, float64(extent.Height)/2
	x, y := e.input.MousePosition()
	e.window.SetCursorPos(cx, cy)
	return mgl32.Vec2{float32(x - cx), float32(cy - y)}
}

// Stop asks the frame loop to exit after the current frame.
func (e *Engine) Stop() {
	e.isRunning = false
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown

	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			core.LogError("game shutdown: %v", err)
		}
	}
	if e.backend != nil {
		if err := e.Device().WaitIdle(); err != nil {
			core.LogError("wait idle: %v", err)
		}
	}
	if e.systemManager != nil {
		e.systemManager.Shutdown()
	}
	if e.texture != nil {
		e.texture.Destroy()
	}
	e.scene.Destroy()
	if e.renderer != nil {
		e.renderer.Destroy()
	}
	if e.backend != nil {
		e.backend.Shutdown()
	}
	if e.window != nil {
		e.window.Destroy()
	}
	e.assets.Shutdown()
	e.bus.Shutdown()
	e.currentStage = EngineStageUninitialized
	return nil
}

func (e *Engine) onEvent(context core.EventContext) bool {
	if context.Type == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning = false
		return true
	}
	return false
}

func (e *Engine) onKey(context core.EventContext) bool {
	ke, ok := context.Data.(*core.KeyEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return false
	}
	switch ke.KeyCode {
	case core.KEY_ESCAPE:
		// firing to ourselves, other listeners may care too
		e.bus.Fire(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT, Sender: e})
		return true
	case core.KEY_X:
		e.setMouseCaptured(false)
	}
	return false
}

func (e *Engine) onButton(context core.EventContext) bool {
	me, ok := context.Data.(*core.MouseEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return false
	}
	if me.Button == core.BUTTON_LEFT {
		e.setMouseCaptured(true)
	}
	return false
}

func (e *Engine) setMouseCaptured(captured bool) {
	if e.mouseCaptured == captured {
		return
	}
	e.mouseCaptured = captured
	e.window.CaptureCursor(captured)
	if captured {
		extent := e.window.Extent()
		e.window.SetCursorPos(float64(extent.Width)/2, float64(extent.Height)/2)
	}
}

func (e *Engine) onResized(context core.EventContext) bool {
	se, ok := context.Data.(*core.SystemEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return false
	}
	core.LogDebug("Window resize: %d, %d", se.WindowWidth, se.WindowHeight)
	if e.gameInstance.FnOnResize != nil && se.WindowWidth > 0 && se.WindowHeight > 0 {
		if err := e.gameInstance.FnOnResize(se.WindowWidth, se.WindowHeight); err != nil {
			core.LogError(err.Error())
		}
	}
	return false
}
