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

	"github.com/spaghettifunk/anima2d/engine"
	"github.com/spaghettifunk/anima2d/engine/core"
	"github.com/spaghettifunk/anima2d/testbed"
)

func main() {
	configPath := flag.String("config", "anima2d.toml", "path to the TOML configuration")
	frames := flag.Uint64("frames", 0, "stop after this many frames (0 runs until quit)")
	fps := flag.Float64("fps", 60, "frame rate cap (0 disables it)")
	shots := flag.String("screenshots", ".", "directory for F12 screenshots")
	flag.Parse()

	tb := testbed.NewTestGame(&engine.ApplicationConfig{
		Name:          "anima2d testbed",
		ConfigPath:    *configPath,
		MaxFrames:     *frames,
		TargetFPS:     *fps,
		ScreenshotDir: *shots,
	})

	e, err := engine.New(tb.Game)
	if err != nil {
		core.LogFatal("failed to create the engine: %s", err)
	}

	if err := e.Initialize(); err != nil {
		_ = e.Shutdown()
		core.LogFatal("failed to initialize the engine: %s", err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// ask the run loop to stop; it shuts down on its own goroutine
	go func() {
		<-sigCh
		e.Quit()
	}()

	runErr := e.Run()
	if err := e.Shutdown(); err != nil {
		core.LogError(err.Error())
	}
	if runErr != nil {
		core.LogFatal("engine stopped: %s", runErr)
	}
}
