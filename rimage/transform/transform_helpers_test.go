package transform

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

// rotationFromAxisAngle builds a rotation matrix with Rodrigues' formula.
func rotationFromAxisAngle(axis r3.Vector, angle float64) *mat.Dense {
	k := SkewMatrix(axis.Normalize())
	var k2, rot mat.Dense
	k2.Mul(k, k)
	rot.Scale(math.Sin(angle), k)
	k2.Scale(1-math.Cos(angle), &k2)
	rot.Add(&rot, &k2)
	rot.Add(&rot, eye(3))
	return &rot
}

func denseShouldAlmostEqual(t *testing.T, actual, expected mat.Matrix, tol float64) {
	t.Helper()
	ar, ac := actual.Dims()
	er, ec := expected.Dims()
	test.That(t, ar, test.ShouldEqual, er)
	test.That(t, ac, test.ShouldEqual, ec)
	for i := 0; i < er; i++ {
		for j := 0; j < ec; j++ {
			test.That(t, actual.At(i, j), test.ShouldAlmostEqual, expected.At(i, j), tol)
		}
	}
}

// worldToCamera expresses a world point in the frame of a camera-to-world pose.
func worldToCamera(pose *CamPose, pt r3.Vector) r3.Vector {
	d := vectorToDense(pt.Sub(pose.TranslationVector()))
	var local mat.Dense
	local.Mul(pose.Rotation.T(), d)
	v, err := denseToVector(&local)
	if err != nil {
		panic(err)
	}
	return v
}
