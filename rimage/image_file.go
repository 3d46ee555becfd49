// Package rimage reads and writes image files and rasterizes masks.
package rimage

import (
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// ImageShape is the size and channel count of an image on disk.
type ImageShape struct {
	Width    int
	Height   int
	Channels int
}

// ReadImageFromFile decodes the image at path.
func ReadImageFromFile(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't read image %s", path)
	}
	return img, nil
}

// ReadImageShape reads only the header of the image at path.
func ReadImageShape(path string) (ImageShape, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return ImageShape{}, errors.Wrapf(err, "couldn't open image %s", path)
	}
	defer utils.UncheckedErrorFunc(f.Close)

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return ImageShape{}, errors.Wrapf(err, "couldn't decode image header of %s", path)
	}
	return ImageShape{Width: cfg.Width, Height: cfg.Height, Channels: channelsOf(cfg.ColorModel)}, nil
}

// WriteImageToFile writes the image to the given path, creating parent directories. The
// format is chosen from the file extension.
func WriteImageToFile(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return errors.Wrapf(err, "couldn't create directory for %s", path)
	}
	if err := imaging.Save(img, path); err != nil {
		return errors.Wrapf(err, "couldn't write image %s", path)
	}
	return nil
}

// ChannelsOf returns how many channels an in-memory image carries.
func ChannelsOf(img image.Image) int {
	return channelsOf(img.ColorModel())
}

func channelsOf(model color.Model) int {
	switch model {
	case color.GrayModel, color.Gray16Model:
		return 1
	case color.NRGBAModel, color.NRGBA64Model:
		return 4
	default:
		return 3
	}
}
