package pipeline

import (
	"context"
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/epipolar/correspondence"
	"go.viam.com/epipolar/dataset"
	"go.viam.com/epipolar/rimage"
	"go.viam.com/epipolar/rimage/transform"
	"go.viam.com/epipolar/testutils"
)

type fakeSceneLoader struct {
	scene *dataset.Scene
	err   error
}

func (fl *fakeSceneLoader) Load(ctx context.Context, datadir string, opts dataset.LoadOptions) (*dataset.Scene, error) {
	return fl.scene, fl.err
}

func rotY(angle float64) *mat.Dense {
	c, s := math.Cos(angle), math.Sin(angle)
	return mat.NewDense(3, 3, []float64{
		c, 0, s,
		0, 1, 0,
		-s, 0, c,
	})
}

// syntheticScene returns three cameras side by side looking at the same points.
func syntheticScene(t *testing.T) *dataset.Scene {
	t.Helper()
	scene := &dataset.Scene{
		Height:     48,
		Width:      64,
		Focal:      50,
		ImageShape: rimage.ImageShape{Width: 64, Height: 48, Channels: 3},
	}
	centers := []r3.Vector{{X: -0.5}, {X: 0, Y: 0.1}, {X: 0.6, Z: 0.2}}
	angles := []float64{0.05, 0, -0.08}
	for n, center := range centers {
		pose, err := transform.NewCamPose(rotY(angles[n]), center)
		test.That(t, err, test.ShouldBeNil)
		scene.Poses = append(scene.Poses, pose)
	}
	return scene
}

func worldPoints() []r3.Vector {
	var pts []r3.Vector
	for _, x := range []float64{-1.5, -0.4, 0.7, 1.6} {
		for _, y := range []float64{-1, 0.2, 1.1} {
			pts = append(pts, r3.Vector{X: x, Y: y, Z: 6 + x*0.5 - y*0.3})
		}
	}
	return pts
}

func project(t *testing.T, scene *dataset.Scene, idx int, world r3.Vector) r2.Point {
	t.Helper()
	intrinsics, err := scene.Intrinsics()
	test.That(t, err, test.ShouldBeNil)
	pose := scene.Poses[idx]
	var inCam mat.Dense
	inCam.Mul(pose.Rotation.T(), mat.NewDense(3, 1, []float64{
		world.X - pose.Translation.At(0, 0),
		world.Y - pose.Translation.At(1, 0),
		world.Z - pose.Translation.At(2, 0),
	}))
	pt, ok := intrinsics.ProjectToPixel(r3.Vector{X: inCam.At(0, 0), Y: inCam.At(1, 0), Z: inCam.At(2, 0)})
	test.That(t, ok, test.ShouldBeTrue)
	return pt
}

// writeSyntheticCorrespondences writes the projections of worldPoints for every triple, except
// for the keys listed in empty, which get an empty file.
func writeSyntheticCorrespondences(
	t *testing.T,
	datadir string,
	factor int,
	scene *dataset.Scene,
	empty ...correspondence.Key,
) correspondence.Sets {
	t.Helper()
	sets := correspondence.Sets{}
	for _, key := range Triples(scene.NumImages()) {
		set := correspondence.Set{}
		isEmpty := false
		for _, e := range empty {
			isEmpty = isEmpty || e == key
		}
		if !isEmpty {
			for _, pt := range worldPoints() {
				set = append(set, correspondence.Correspondence{
					Anchor: project(t, scene, key.Anchor, pt),
					First:  project(t, scene, key.First, pt),
					Second: project(t, scene, key.Second, pt),
				})
			}
		}
		testutils.WriteCorrespondences(t, datadir, factor, key, set)
		sets[key] = set
	}
	return sets
}
