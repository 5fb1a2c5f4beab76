package config

import (
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// SupportedAPIVersions bounds the Vulkan API versions the renderer can request.
const SupportedAPIVersions = ">= 1.0.0, < 2.0.0"

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Assets   AssetsConfig   `toml:"assets"`
	Log      LogConfig      `toml:"log"`
	Camera   CameraConfig   `toml:"camera"`
}

type WindowConfig struct {
	Title  string `toml:"title"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
	X      int    `toml:"x"`
	Y      int    `toml:"y"`
}

type RendererConfig struct {
	APIVersion  string `toml:"api_version"`
	Validation  bool   `toml:"validation"`
	PresentMode string `toml:"present_mode"`
}

type AssetsConfig struct {
	Root    string `toml:"root"`
	Watch   bool   `toml:"watch"`
	Workers int    `toml:"workers"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type CameraConfig struct {
	FOV        float32 `toml:"fov"`
	Near       float32 `toml:"near"`
	Far        float32 `toml:"far"`
	MoveSpeed  float32 `toml:"move_speed"`
	LookSpeed  float32 `toml:"look_speed"`
	BoostScale float32 `toml:"boost_scale"`
}

func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Title:  "Dyne",
			Width:  1280,
			Height: 720,
			X:      100,
			Y:      100,
		},
		Renderer: RendererConfig{
			APIVersion:  "1.2.0",
			Validation:  true,
			PresentMode: "mailbox",
		},
		Assets: AssetsConfig{
			Root:    "assets",
			Watch:   true,
			Workers: 4,
		},
		Log: LogConfig{Level: "info"},
		Camera: CameraConfig{
			FOV:        90,
			Near:       0.1,
			Far:        100,
			MoveSpeed:  3,
			LookSpeed:  1.5,
			BoostScale: 2.5,
		},
	}
}

// Load reads a TOML file over the defaults, so a file only needs the keys
// it changes. A leading ~ in path is expanded.
func Load(path string) (*Config, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to expand %s", path)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config %s", expanded)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", expanded)
	}
	// relative asset roots are resolved against the config file
	if !filepath.IsAbs(cfg.Assets.Root) {
		cfg.Assets.Root = filepath.Join(filepath.Dir(expanded), cfg.Assets.Root)
	}
	return cfg, nil
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse TOML")
	}
	root, err := homedir.Expand(cfg.Assets.Root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to expand %s", cfg.Assets.Root)
	}
	cfg.Assets.Root = root
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Window.Width == 0 || c.Window.Height == 0 {
		return errors.Wrapf(ErrInvalidConfig, "window size %dx%d", c.Window.Width, c.Window.Height)
	}
	if _, err := c.APIVersion(); err != nil {
		return err
	}
	switch c.Renderer.PresentMode {
	case "fifo", "mailbox", "immediate":
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown present mode %q", c.Renderer.PresentMode)
	}
	if c.Assets.Workers <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "assets.workers must be positive, got %d", c.Assets.Workers)
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		return errors.Wrapf(ErrInvalidConfig, "camera clip range [%g, %g]", c.Camera.Near, c.Camera.Far)
	}
	if c.Camera.FOV <= 0 || c.Camera.FOV >= 180 {
		return errors.Wrapf(ErrInvalidConfig, "camera fov %g", c.Camera.FOV)
	}
	return nil
}

// APIVersion parses renderer.api_version and checks it is a Vulkan 1.x version.
func (c *Config) APIVersion() (*semver.Version, error) {
	v, err := semver.NewVersion(c.Renderer.APIVersion)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidConfig, "api_version %q: %s", c.Renderer.APIVersion, err)
	}
	constraint, err := semver.NewConstraint(SupportedAPIVersions)
	if err != nil {
		return nil, errors.Wrap(err, "bad version constraint")
	}
	if !constraint.Check(v) {
		return nil, errors.Wrapf(ErrInvalidConfig, "api_version %s does not satisfy %s", v, SupportedAPIVersions)
	}
	return v, nil
}
