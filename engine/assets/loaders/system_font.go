package loaders

import (
	"bufio"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"github.com/spaghettifunk/anima2d/engine/renderer"
)

const (
	systemFontAtlasWidth = 512
	systemFontPadding    = 1
	systemFontFirstRune  = 32
	systemFontLastRune   = 126
)

// SystemFontParams select the face size when the config does not.
type SystemFontParams struct {
	Size float64
}

// SystemFontLoader reads a .fontcfg file naming a TrueType/OpenType file
// and a face, and rasterizes the printable ASCII range into one atlas
// page. Without a file key the embedded Go Regular font is used.
//
//	file=NotoSans-Regular.ttf
//	face=Noto Sans Regular
//	size=21
type SystemFontLoader struct{}

type systemFontConfig struct {
	file string
	face string
	size float64
}

func parseFontConfig(path string) (systemFontConfig, error) {
	cfg := systemFontConfig{size: 16}
	file, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip comments and empty lines
		if len(line) == 0 || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return cfg, fmt.Errorf("%s: malformed line %q", path, line)
		}
		switch strings.TrimSpace(key) {
		case "file":
			cfg.file = strings.TrimSpace(value)
		case "face":
			cfg.face = strings.TrimSpace(value)
		case "size":
			size, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
			if err != nil || size <= 0 {
				return cfg, fmt.Errorf("%s: invalid size %q", path, value)
			}
			cfg.size = size
		}
	}
	if err := scanner.Err(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (fl *SystemFontLoader) Load(path string, params interface{}) (*Resource, error) {
	cfg, err := parseFontConfig(path)
	if err != nil {
		return nil, err
	}
	if p, ok := params.(*SystemFontParams); ok && p != nil && p.Size > 0 {
		cfg.size = p.Size
	}

	fontBytes := goregular.TTF
	if cfg.file != "" {
		if fontBytes, err = os.ReadFile(filepath.Join(filepath.Dir(path), cfg.file)); err != nil {
			return nil, err
		}
	}
	collection, err := opentype.ParseCollection(fontBytes)
	if err != nil {
		return nil, err
	}
	f, name, err := pickFace(collection, cfg.face)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    cfg.size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, err
	}
	defer face.Close()

	data := rasterize(face, name, int(cfg.size+0.5))
	return &Resource{
		Name:     name,
		FullPath: path,
		Type:     ResourceTypeSystemFont,
		DataSize: uint64(len(data.Pages[0].Image.Pix)),
		Data:     data,
	}, nil
}

func (fl *SystemFontLoader) Unload(resource *Resource) error {
	resource.Data = nil
	resource.DataSize = 0
	return nil
}

// pickFace returns the font whose full name matches face, or the first
// font of the collection when face is empty.
func pickFace(collection *opentype.Collection, face string) (*opentype.Font, string, error) {
	var buf sfnt.Buffer
	for i := 0; i < collection.NumFonts(); i++ {
		f, err := collection.Font(i)
		if err != nil {
			return nil, "", err
		}
		name, err := f.Name(&buf, sfnt.NameIDFull)
		if err != nil {
			name = ""
		}
		if face == "" || strings.EqualFold(name, face) {
			return f, name, nil
		}
	}
	return nil, "", fmt.Errorf("face %q not found", face)
}

type placedGlyph struct {
	r      rune
	x, y   int
	bounds fixed.Rectangle26_6
}

// rasterize packs the printable ASCII glyphs of face row by row into a
// single white-on-transparent page.
func rasterize(face font.Face, name string, size int) *FontData {
	metrics := face.Metrics()
	data := &FontData{
		Face:       name,
		Size:       size,
		LineHeight: metrics.Height.Ceil(),
		Base:       metrics.Ascent.Ceil(),
		PageWidth:  systemFontAtlasWidth,
		Glyphs:     make(map[rune]renderer.Glyph),
		Kerning:    make(map[[2]rune]int),
	}

	var placed []placedGlyph
	x, y, rowHeight := systemFontPadding, systemFontPadding, 0
	for r := rune(systemFontFirstRune); r <= systemFontLastRune; r++ {
		bounds, advance, ok := face.GlyphBounds(r)
		if !ok {
			continue
		}
		w := (bounds.Max.X - bounds.Min.X).Ceil()
		h := (bounds.Max.Y - bounds.Min.Y).Ceil()
		if x+w+systemFontPadding > systemFontAtlasWidth {
			x = systemFontPadding
			y += rowHeight + systemFontPadding
			rowHeight = 0
		}
		data.Glyphs[r] = renderer.Glyph{
			X:        x,
			Y:        y,
			W:        w,
			H:        h,
			XOffset:  bounds.Min.X.Floor(),
			YOffset:  data.Base + bounds.Min.Y.Floor(),
			XAdvance: advance.Round(),
		}
		placed = append(placed, placedGlyph{r: r, x: x, y: y, bounds: bounds})
		x += w + systemFontPadding
		rowHeight = max(rowHeight, h)
	}

	height := 1
	for height < y+rowHeight+systemFontPadding {
		height <<= 1
	}
	data.PageHeight = height
	atlas := image.NewRGBA(image.Rect(0, 0, systemFontAtlasWidth, height))

	d := font.Drawer{Dst: atlas, Src: image.White, Face: face}
	for _, g := range placed {
		d.Dot = fixed.Point26_6{
			X: fixed.I(g.x) - g.bounds.Min.X,
			Y: fixed.I(g.y) - g.bounds.Min.Y,
		}
		d.DrawString(string(g.r))
	}
	data.Pages = []FontPage{{ID: 0, Image: atlas}}

	for a := range data.Glyphs {
		for b := range data.Glyphs {
			if k := face.Kern(a, b).Round(); k != 0 {
				data.Kerning[[2]rune{a, b}] = k
			}
		}
	}
	return data
}
