package rimage

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/pkg/errors"
)

// MaskOn is the value of every channel inside a mask rectangle.
const MaskOn = 255

// NewMaskImage returns a width x height image with the given number of channels that is MaskOn
// inside rect and zero everywhere else. rect is clipped to the image bounds; an empty rect
// yields an all-zero mask.
//
// One channel produces an *image.Gray, three an opaque *image.RGBA and four an *image.NRGBA
// whose alpha channel is masked like the others.
func NewMaskImage(width, height, channels int, rect image.Rectangle) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid mask size (%d, %d)", width, height)
	}
	bounds := image.Rect(0, 0, width, height)
	inside := rect.Intersect(bounds)

	switch channels {
	case 1:
		img := image.NewGray(bounds)
		draw.Draw(img, inside, &image.Uniform{color.Gray{MaskOn}}, image.Point{}, draw.Src)
		return img, nil
	case 3:
		img := image.NewRGBA(bounds)
		draw.Draw(img, bounds, &image.Uniform{color.RGBA{0, 0, 0, 255}}, image.Point{}, draw.Src)
		draw.Draw(img, inside, &image.Uniform{color.RGBA{MaskOn, MaskOn, MaskOn, 255}}, image.Point{}, draw.Src)
		return img, nil
	case 4:
		img := image.NewNRGBA(bounds)
		draw.Draw(img, inside, &image.Uniform{color.NRGBA{MaskOn, MaskOn, MaskOn, MaskOn}}, image.Point{}, draw.Src)
		return img, nil
	default:
		return nil, errors.Errorf("unsupported number of mask channels %d", channels)
	}
}

// MaskRectangle converts an x, y, width, height tuple into the half-open rectangle it covers.
func MaskRectangle(x, y, w, h int) image.Rectangle {
	return image.Rect(x, y, x+w, y+h)
}
