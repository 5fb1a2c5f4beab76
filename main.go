/*
This is an example of application that will use the
engine package to test things out
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/dyne/engine"
	"github.com/spaghettifunk/dyne/engine/config"
	"github.com/spaghettifunk/dyne/engine/core"
	"github.com/spaghettifunk/dyne/testbed"
)

func main() {
	configPath := flag.String("config", "dyne.toml", "path to the TOML configuration file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		core.LogFatal("cannot load config: %v", err)
	}

	tb := testbed.NewTestGame()

	e, err := engine.New(tb, cfg)
	if err != nil {
		core.LogFatal("cannot create engine: %v", err)
	}

	if err := e.Initialize(); err != nil {
		_ = e.Shutdown()
		core.LogFatal("cannot initialize engine: %+v", err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// the frame loop owns every GPU object, so a signal only asks it to stop
	go func() {
		<-sigCh
		e.Stop()
	}()

	runErr := e.Run()
	if err := e.Shutdown(); err != nil {
		core.LogError("shutdown: %v", err)
	}
	if runErr != nil {
		core.LogFatal("engine stopped: %+v", runErr)
	}
}

// loadConfig falls back to the defaults when the default file is absent.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) && path == "dyne.toml" {
		core.LogWarn("%s not found, using default configuration", path)
		return config.Default(), nil
	}
	return config.Load(path)
}
