package loaders

import (
	"fmt"
	"image"
	"path/filepath"

	"github.com/fzipp/bmfont"
	"github.com/spaghettifunk/anima2d/engine/renderer"
)

// FontPage is one atlas image of a font.
type FontPage struct {
	ID    int
	File  string
	Image *image.RGBA
}

// FontData is a font laid out on atlas pages, ready to be uploaded.
type FontData struct {
	Face       string
	Size       int
	LineHeight int
	Base       int
	PageWidth  int
	PageHeight int
	Pages      []FontPage
	Glyphs     map[rune]renderer.Glyph
	Kerning    map[[2]rune]int
}

// BitmapFontLoader reads AngelCode .fnt descriptors and the page images
// they reference, resolved next to the descriptor.
type BitmapFontLoader struct {
	images ImageLoader
}

func (fl *BitmapFontLoader) Load(path string, params interface{}) (*Resource, error) {
	font, err := bmfont.Load(path)
	if err != nil {
		return nil, err
	}
	desc := font.Descriptor

	data := &FontData{
		Face:       desc.Info.Face,
		Size:       max(desc.Info.Size, -desc.Info.Size),
		LineHeight: desc.Common.LineHeight,
		Base:       desc.Common.Base,
		PageWidth:  desc.Common.ScaleW,
		PageHeight: desc.Common.ScaleH,
		Pages:      make([]FontPage, len(desc.Pages)),
		Glyphs:     make(map[rune]renderer.Glyph, len(desc.Chars)),
		Kerning:    make(map[[2]rune]int, len(desc.Kerning)),
	}

	dir := filepath.Dir(path)
	size := uint64(0)
	for _, p := range desc.Pages {
		if p.ID < 0 || p.ID >= len(data.Pages) {
			return nil, fmt.Errorf("font %s: page id %d out of range", path, p.ID)
		}
		res, err := fl.images.Load(filepath.Join(dir, p.File), nil)
		if err != nil {
			return nil, fmt.Errorf("font %s: page %d: %w", path, p.ID, err)
		}
		data.Pages[p.ID] = FontPage{ID: p.ID, File: p.File, Image: res.Data.(*image.RGBA)}
		size += res.DataSize
	}

	for _, g := range desc.Chars {
		data.Glyphs[g.ID] = renderer.Glyph{
			X:        g.X,
			Y:        g.Y,
			W:        g.Width,
			H:        g.Height,
			XOffset:  g.XOffset,
			YOffset:  g.YOffset,
			XAdvance: g.XAdvance,
			Page:     g.Page,
		}
	}
	for pair, k := range desc.Kerning {
		data.Kerning[[2]rune{pair.First, pair.Second}] = k.Amount
	}

	return &Resource{
		Name:     desc.Info.Face,
		FullPath: path,
		Type:     ResourceTypeBitmapFont,
		DataSize: size,
		Data:     data,
	}, nil
}

// Unload drops the resource's reference; the FontData stays valid for
// whoever took it.
func (fl *BitmapFontLoader) Unload(resource *Resource) error {
	resource.Data = nil
	resource.DataSize = 0
	resource.FullPath = ""
	return nil
}
