package renderer

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/spaghettifunk/anima2d/engine/core"
)

// ScreenshotCallback receives the backbuffer contents of a presented frame.
type ScreenshotCallback func(img *image.RGBA, err error)

// CaptureScreenshot queues a backbuffer capture served by the next Present.
func (g *Graphics) CaptureScreenshot(cb ScreenshotCallback) {
	if cb == nil {
		return
	}
	g.pendingScreenshots = append(g.pendingScreenshots, cb)
}

func (g *Graphics) captureScreenshots() {
	if len(g.pendingScreenshots) == 0 {
		return
	}
	callbacks := g.pendingScreenshots
	g.pendingScreenshots = nil

	w, h := g.backend.Dimensions()
	rb, err := g.backend.CaptureBackbuffer()
	if err != nil {
		for _, cb := range callbacks {
			cb(nil, err)
		}
		return
	}
	g.addReadback(rb, func(data []byte, err error) {
		var img *image.RGBA
		if err == nil {
			if len(data) < w*h*4 {
				err = fmt.Errorf("%w: captured %d bytes for %dx%d", core.ErrBufferTooSmall, len(data), w, h)
			} else {
				img = image.NewRGBA(image.Rect(0, 0, w, h))
				copy(img.Pix, data[:w*h*4])
			}
		}
		for _, cb := range callbacks {
			cb(img, err)
		}
	})
}

// SaveScreenshot encodes img by the extension of path: png, bmp or tiff.
func SaveScreenshot(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".png":
		err = png.Encode(f, img)
	case ".bmp":
		err = bmp.Encode(f, img)
	case ".tif", ".tiff":
		err = tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		err = fmt.Errorf("%w: unsupported screenshot format %q", core.ErrInvalidConfig, ext)
	}
	if err != nil {
		return err
	}
	return f.Close()
}
