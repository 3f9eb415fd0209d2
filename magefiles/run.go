//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Compiles the shaders and runs the testbed on the Vulkan backend.
func (Run) Engine() error {
	mg.Deps(Build.Shaders)
	fmt.Println("Run engine...")
	_, err := executeCmd("go", withArgs("run", ".", "-config", "anima2d.toml"), withStream())
	return err
}

// Runs the testbed on the headless backend for a few hundred frames.
func (Run) Headless() error {
	fmt.Println("Run headless engine...")
	_, err := executeCmd("go", withArgs("run", ".", "-config", "headless.toml", "-frames", "300", "-fps", "0"), withStream())
	return err
}

type Test mg.Namespace

// Runs every package test with the race detector.
func (Test) All() error {
	_, err := executeCmd("go", withArgs("test", "-race", "./..."), withStream())
	return err
}

// Runs the tests that need neither a window nor a GPU, without cgo.
func (Test) Core() error {
	_, err := executeCmd("go", withEnv("CGO_ENABLED=0"), withArgs("test",
		"./engine/core/...",
		"./engine/math/...",
		"./engine/containers/...",
		"./engine/assets/...",
		"./engine/renderer",
		"./engine/renderer/frames/...",
		"./engine/renderer/objcache/...",
		"./engine/renderer/headless/...",
		"./engine/renderer/components/...",
		"./engine/systems/...",
	), withStream())
	return err
}
