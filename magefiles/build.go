//go:build mage

package main

import (
	"fmt"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/target"
)

const shaderDir = "assets/shaders"

type Build mg.Namespace

// Compiles every GLSL stage in assets/shaders to SPIR-V next to its source.
func (Build) Shaders() error {
	return buildShaders()
}

// Builds the testbed binary.
func (Build) Testbed() error {
	mg.Deps(Build.Shaders)
	_, err := executeCmd("go", withArgs("build", "-o", "bin/anima2d", "."), withStream())
	return err
}

func buildShaders() error {
	var sources []string
	for _, ext := range []string{"vert", "frag", "comp"} {
		matches, err := filepath.Glob(filepath.Join(shaderDir, "*."+ext))
		if err != nil {
			return err
		}
		sources = append(sources, matches...)
	}
	if len(sources) == 0 {
		return fmt.Errorf("no shader sources found in %s", shaderDir)
	}

	for _, src := range sources {
		out := src + ".spv"
		// common.glsl is included by every stage
		stale, err := target.Path(out, src, filepath.Join(shaderDir, "common.glsl"))
		if err != nil {
			return err
		}
		if !stale {
			continue
		}
		if _, err := executeCmd("glslc", withArgs("--target-env=vulkan1.1", "-I", shaderDir, src, "-o", out), withStream()); err != nil {
			return err
		}
	}
	return nil
}
