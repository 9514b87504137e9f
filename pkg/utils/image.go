package utils

import (
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/go-faster/errors"
	"golang.org/x/image/draw"
)

// Scale returns img enlarged by an integer factor with nearest
// neighbour sampling, keeping pixels sharp.
func Scale(img image.Image, factor int) image.Image {
	if factor <= 1 {
		return img
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// SaveImage writes img as a PNG to filename, scaled by factor.
func SaveImage(img image.Image, filename string, factor int) (err error) {
	if filepath.Ext(filename) != ".png" {
		filename += ".png"
	}
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if err := png.Encode(f, Scale(img, factor)); err != nil {
		return errors.Wrapf(err, "encode %s", filename)
	}
	return nil
}
