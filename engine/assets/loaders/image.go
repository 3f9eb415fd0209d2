package loaders

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// ImageResourceParams tune how an image is decoded.
type ImageResourceParams struct {
	FlipY bool
}

// ImageLoader decodes png, jpeg, bmp and tiff files into tightly packed
// RGBA8 pixels.
type ImageLoader struct{}

func (il *ImageLoader) Load(path string, params interface{}) (*Resource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, err
	}

	flip := false
	if p, ok := params.(*ImageResourceParams); ok && p != nil {
		flip = p.FlipY
	}
	rgba := ToRGBA(img, flip)

	return &Resource{
		Name:     "image",
		FullPath: path,
		Type:     ResourceTypeImage,
		DataSize: uint64(len(rgba.Pix)),
		Data:     rgba,
	}, nil
}

func (il *ImageLoader) Unload(resource *Resource) error {
	resource.Data = nil
	resource.DataSize = 0
	return nil
}

// ToRGBA copies img into an RGBA image whose origin is 0,0 and whose
// stride is exactly four bytes per pixel.
func ToRGBA(img image.Image, flipY bool) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	if flipY {
		row := make([]byte, out.Stride)
		for y := 0; y < out.Rect.Dy()/2; y++ {
			top := out.Pix[y*out.Stride : (y+1)*out.Stride]
			bottom := out.Pix[(out.Rect.Dy()-1-y)*out.Stride : (out.Rect.Dy()-y)*out.Stride]
			copy(row, top)
			copy(top, bottom)
			copy(bottom, row)
		}
	}
	return out
}
