package transform

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

// syntheticViews projects pixels of the reference camera, back-projected at varying depths,
// into the local camera.
func syntheticViews(t *testing.T) (*mat.Dense, []r2.Point, []r2.Point) {
	t.Helper()
	intrinsics, err := NewPinholeCameraIntrinsicsFromHWF(378, 504, 407.5)
	test.That(t, err, test.ShouldBeNil)
	k := intrinsics.GetCameraMatrix()

	ref := mustCamPose(t, rotationFromAxisAngle(r3.Vector{0.1, 1, 0}, 0.1), r3.Vector{-0.2, 0.05, 0})
	local := mustCamPose(t, rotationFromAxisAngle(r3.Vector{0, 1, 0.2}, -0.08), r3.Vector{0.25, -0.05, 0.1})
	rel, err := RelativePose(ref, local)
	test.That(t, err, test.ShouldBeNil)
	fundMat, err := rel.FundamentalMatrix(k)
	test.That(t, err, test.ShouldBeNil)

	pixels := []r2.Point{{10, 20}, {250, 190}, {480, 30}, {100, 360}, {400, 300}}
	depths := []float64{2, 3.5, 5, 8, 13}
	var pts1, pts2 []r2.Point
	for i, px := range pixels {
		var world mat.Dense
		world.Mul(ref.Rotation, vectorToDense(backProject(intrinsics, px, depths[i])))
		world.Add(&world, ref.Translation)
		wv, err := denseToVector(&world)
		test.That(t, err, test.ShouldBeNil)

		p, ok := intrinsics.ProjectToPixel(worldToCamera(ref, wv))
		test.That(t, ok, test.ShouldBeTrue)
		q, ok := intrinsics.ProjectToPixel(worldToCamera(local, wv))
		test.That(t, ok, test.ShouldBeTrue)
		pts1 = append(pts1, p)
		pts2 = append(pts2, q)
	}
	return fundMat, pts1, pts2
}

// backProject is the camera frame point at depth z that ProjectToPixel maps onto px.
func backProject(intrinsics *PinholeCameraIntrinsics, px r2.Point, z float64) r3.Vector {
	return r3.Vector{
		X: (px.X - intrinsics.Ppx) / intrinsics.Fx * z,
		Y: (px.Y - intrinsics.Ppy) / intrinsics.Fy * z,
		Z: z,
	}
}

func TestBackProjectInvertsProjection(t *testing.T) {
	intrinsics, err := NewPinholeCameraIntrinsicsFromHWF(378, 504, 407.5)
	test.That(t, err, test.ShouldBeNil)
	for _, px := range []r2.Point{{0, 0}, {252, 189}, {503.5, 12.25}} {
		got, ok := intrinsics.ProjectToPixel(backProject(intrinsics, px, 4.5))
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, got.X, test.ShouldAlmostEqual, px.X, 1e-9)
		test.That(t, got.Y, test.ShouldAlmostEqual, px.Y, 1e-9)
	}
	_, ok := intrinsics.ProjectToPixel(r3.Vector{X: 1, Y: 1})
	test.That(t, ok, test.ShouldBeFalse)
}

func TestEpipolarResidualOfExactMatrixIsSmall(t *testing.T) {
	fundMat, pts1, pts2 := syntheticViews(t)

	residuals, err := EpipolarResidualsForPoints(pts1, pts2, fundMat)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, residuals, test.ShouldHaveLength, len(pts1))
	for _, r := range residuals {
		test.That(t, math.Abs(r), test.ShouldBeLessThan, 1e-9)
	}

	flatF, err := FlattenMatrix(fundMat)
	test.That(t, err, test.ShouldBeNil)
	mean, err := MeanAbsEpipolarResidual(FlattenPoints(pts1), FlattenPoints(pts2), flatF)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mean, test.ShouldBeLessThan, 1e-3)

	// points shifted off their epipolar lines are penalized
	shifted := make([]r2.Point, len(pts2))
	for i, pt := range pts2 {
		shifted[i] = pt.Add(r2.Point{X: 0, Y: 25})
	}
	off, err := MeanAbsEpipolarResidual(FlattenPoints(pts1), FlattenPoints(shifted), flatF)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, off, test.ShouldBeGreaterThan, mean)
}

func TestEpipolarResidualsMatchMatrixProduct(t *testing.T) {
	f := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}
	p := []float64{1, 2, -3, 0.5}
	q := []float64{0.25, -1, 2, 2}
	residuals, err := EpipolarResiduals(p, q, f)
	test.That(t, err, test.ShouldBeNil)

	fm := mat.NewDense(3, 3, f)
	for i := 0; i < 2; i++ {
		ph := mat.NewDense(1, 3, []float64{p[2*i], p[2*i+1], 1})
		qh := mat.NewDense(3, 1, []float64{q[2*i], q[2*i+1], 1})
		var tmp, want mat.Dense
		tmp.Mul(ph, fm)
		want.Mul(&tmp, qh)
		test.That(t, residuals[i], test.ShouldAlmostEqual, want.At(0, 0), 1e-12)
	}
}

func TestEpipolarResidualsGenericPrecision(t *testing.T) {
	f64 := []float64{0, -1e-3, 0.2, 1e-3, 0, -0.4, -0.1, 0.5, 0.01}
	p64 := []float64{12, 40, 100, 7}
	q64 := []float64{13, 38, 98, 9}

	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	p32 := []float32{12, 40, 100, 7}
	q32 := []float32{13, 38, 98, 9}

	mean64, err := MeanAbsEpipolarResidual(p64, q64, f64)
	test.That(t, err, test.ShouldBeNil)
	mean32, err := MeanAbsEpipolarResidual(p32, q32, f32)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, float64(mean32), test.ShouldAlmostEqual, mean64, 1e-4)
}

func TestEpipolarLossMatchesValidatorResidual(t *testing.T) {
	fundMat, pts1, pts2 := syntheticViews(t)
	flatF, err := FlattenMatrix(fundMat)
	test.That(t, err, test.ShouldBeNil)
	// perturb so the residuals are not all zero
	flatF[5] += 1e-4

	p, q := FlattenPoints(pts1), FlattenPoints(pts2)
	mean, err := MeanAbsEpipolarResidual(p, q, flatF)
	test.That(t, err, test.ShouldBeNil)
	loss, err := EpipolarLoss(p, q, flatF)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loss.Value, test.ShouldEqual, mean)
}

func TestEpipolarLossGradient(t *testing.T) {
	f := []float64{0.1, -0.2, 0.3, 0.05, 0.4, -0.6, 0.7, -0.01, 0.2}
	p := []float64{1.5, -2, 0.3, 0.7, 4, 1}
	q := []float64{-1, 0.5, 2.2, -0.4, 0.3, 3}

	loss, err := EpipolarLoss(p, q, f)
	test.That(t, err, test.ShouldBeNil)

	const h = 1e-6
	numeric := func(values []float64, idx int) float64 {
		orig := values[idx]
		values[idx] = orig + h
		plus, err := MeanAbsEpipolarResidual(p, q, f)
		test.That(t, err, test.ShouldBeNil)
		values[idx] = orig - h
		minus, err := MeanAbsEpipolarResidual(p, q, f)
		test.That(t, err, test.ShouldBeNil)
		values[idx] = orig
		return (plus - minus) / (2 * h)
	}
	for i := range f {
		test.That(t, loss.GradF[i], test.ShouldAlmostEqual, numeric(f, i), 1e-6)
	}
	for i := range p {
		test.That(t, loss.GradP[i], test.ShouldAlmostEqual, numeric(p, i), 1e-6)
	}
	for i := range q {
		test.That(t, loss.GradQ[i], test.ShouldAlmostEqual, numeric(q, i), 1e-6)
	}
}

func TestEpipolarInputErrors(t *testing.T) {
	_, err := EpipolarResiduals([]float64{1, 2}, []float64{1, 2}, []float64{1, 2, 3})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "9 elements")

	_, err = EpipolarResiduals([]float64{1, 2, 3}, []float64{1, 2}, make([]float64, 9))
	test.That(t, err, test.ShouldNotBeNil)

	_, err = EpipolarLoss([]float64{1, 2}, []float64{1, 2, 3, 4}, make([]float64, 9))
	test.That(t, err, test.ShouldNotBeNil)

	_, err = FlattenMatrix(mat.NewDense(2, 3, nil))
	test.That(t, err, test.ShouldNotBeNil)

	mean, err := MeanAbsEpipolarResidual([]float64{}, []float64{}, make([]float64, 9))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, math.IsNaN(mean), test.ShouldBeTrue)

	loss, err := EpipolarLoss([]float32{}, []float32{}, make([]float32, 9))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loss.GradF, test.ShouldHaveLength, 9)
}
