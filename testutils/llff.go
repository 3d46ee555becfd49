package testutils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/epipolar/correspondence"
	"go.viam.com/epipolar/rimage"
)

// LLFFRow lays out a pose in the LLFF [down, right, back] convention followed by its near
// and far bounds.
func LLFFRow(down, right, back, center r3.Vector, hwf [3]float64, near, far float64) []float64 {
	cols := []r3.Vector{down, right, back, center, {X: hwf[0], Y: hwf[1], Z: hwf[2]}}
	row := make([]float64, 0, 17)
	for r := 0; r < 3; r++ {
		for _, c := range cols {
			row = append(row, []float64{c.X, c.Y, c.Z}[r])
		}
	}
	return append(row, near, far)
}

// WriteImages writes num blank PNG images of the given shape into dir.
func WriteImages(t *testing.T, dir string, num int, shape rimage.ImageShape) {
	t.Helper()
	for n := 0; n < num; n++ {
		img, err := rimage.NewMaskImage(shape.Width, shape.Height, shape.Channels, rimage.MaskRectangle(0, 0, 1, 1))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, rimage.WriteImageToFile(filepath.Join(dir, fmt.Sprintf("image%03d.png", n)), img), test.ShouldBeNil)
	}
}

// WriteCorrespondences writes set as the SIFT correspondence file of key.
func WriteCorrespondences(t *testing.T, datadir string, factor int, key correspondence.Key, set correspondence.Set) {
	t.Helper()
	dir := filepath.Join(datadir, correspondence.DirName)
	test.That(t, os.MkdirAll(dir, 0o750), test.ShouldBeNil)
	var sb strings.Builder
	for _, c := range set {
		fmt.Fprintf(&sb, "%.6f %.6f %.6f %.6f %.6f %.6f\n",
			c.Anchor.X, c.Anchor.Y, c.First.X, c.First.Y, c.Second.X, c.Second.Y)
	}
	path := filepath.Join(dir, correspondence.FileName(factor, key.Anchor, key.First, key.Second))
	test.That(t, os.WriteFile(path, []byte(sb.String()), 0o600), test.ShouldBeNil)
}
