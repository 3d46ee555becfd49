// Package dataset loads the camera poses and image layout of a posed image dataset.
package dataset

import (
	"context"

	"github.com/pkg/errors"

	"go.viam.com/epipolar/rimage"
	"go.viam.com/epipolar/rimage/transform"
)

// LoadOptions controls how poses are normalized after loading.
type LoadOptions struct {
	// Factor is the image downsampling factor; images are read from images_<Factor>.
	Factor int
	// Recenter moves the world frame onto the average camera pose.
	Recenter bool
	// BoundFactor scales the scene so the nearest bound becomes 1/BoundFactor. Zero disables scaling.
	BoundFactor float64
	// Spherify recenters poses of a 360 degree capture on a unit sphere.
	Spherify bool
}

// A Loader loads the scene stored under a dataset directory.
type Loader interface {
	Load(ctx context.Context, datadir string, opts LoadOptions) (*Scene, error)
}

// Scene is the set of camera poses of a dataset ordered by image index.
type Scene struct {
	// Poses are camera-to-world transforms.
	Poses []*transform.CamPose
	// Bounds holds the near and far scene depth of every pose.
	Bounds [][2]float64
	// Height, Width and Focal describe the (downsampled) pinhole camera shared by all images.
	Height float64
	Width  float64
	Focal  float64
	// ImageShape is the shape of the first image.
	ImageShape rimage.ImageShape
	ImagePaths []string
	// TestIndex is the pose closest to the average camera center.
	TestIndex int
}

// NumImages returns the number of posed images.
func (s *Scene) NumImages() int {
	return len(s.Poses)
}

// Intrinsics returns the camera parameters shared by all images. Height and width are
// truncated to whole pixels.
func (s *Scene) Intrinsics() (*transform.PinholeCameraIntrinsics, error) {
	if s == nil {
		return nil, transform.NewNoIntrinsicsError("no scene loaded")
	}
	intrinsics, err := transform.NewPinholeCameraIntrinsicsFromHWF(int(s.Height), int(s.Width), s.Focal)
	if err != nil {
		return nil, errors.Wrap(err, "scene intrinsics")
	}
	return intrinsics, nil
}
