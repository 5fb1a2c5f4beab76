package engine

// Game is the set of hooks an application plugs into the engine.
type Game struct {
	Name string
	// Texture is the asset bound at global binding 1. Empty means a white
	// pixel.
	Texture      string
	State        interface{}
	FnInitialize Initialize
	FnUpdate     Update
	FnOnResize   OnResize
	FnShutdown   Shutdown
}

// Initialize builds the scene once the renderer is up.
type Initialize func(e *Engine) error

// Update runs once per frame, before drawing.
type Update func(e *Engine, deltaTime float32) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
