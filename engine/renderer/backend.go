package renderer

import (
	"fmt"
	"strings"

	"github.com/spaghettifunk/anima2d/engine/core"
)

type BackendType uint8

const (
	Headless BackendType = iota
	Vulkan
)

func (t BackendType) String() string {
	switch t {
	case Headless:
		return "headless"
	case Vulkan:
		return "vulkan"
	}
	return "unknown"
}

// ParseBackendType maps the configured backend name to its type.
func ParseBackendType(name string) (BackendType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "headless":
		return Headless, nil
	case "vulkan":
		return Vulkan, nil
	}
	return Headless, fmt.Errorf("%w: unknown backend %q", core.ErrInvalidConfig, name)
}
