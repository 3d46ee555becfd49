package transform

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// CamPose stores the 3x4 pose matrix as well as the 3D Rotation and Translation matrices.
type CamPose struct {
	PoseMat     *mat.Dense
	Rotation    *mat.Dense
	Translation *mat.Dense
}

// NewCamPoseFromMat creates a pointer to a Camera pose from a 3x4 pose dense matrix. Extra
// columns, such as the height/width/focal column of LLFF poses, are ignored.
func NewCamPoseFromMat(pose mat.Matrix) (*CamPose, error) {
	r, c := pose.Dims()
	if r != 3 || c < 4 {
		return nil, errors.Errorf("camera pose must be at least 3x4, got %dx%d", r, c)
	}
	poseMat := mat.NewDense(3, 4, nil)
	poseMat.Copy(pose)
	U3 := poseMat.ColView(3)
	t := mat.NewDense(3, 1, []float64{U3.AtVec(0), U3.AtVec(1), U3.AtVec(2)})
	rot := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			rot.Set(i, j, poseMat.At(i, j))
		}
	}
	return &CamPose{
		PoseMat:     poseMat,
		Rotation:    rot,
		Translation: t,
	}, nil
}

// NewCamPose creates a camera pose from a 3x3 rotation and a translation vector.
func NewCamPose(rot *mat.Dense, translation r3.Vector) (*CamPose, error) {
	if r, c := rot.Dims(); r != 3 || c != 3 {
		return nil, errors.Errorf("rotation must be 3x3, got %dx%d", r, c)
	}
	var poseMat mat.Dense
	poseMat.Augment(rot, vectorToDense(translation))
	return &CamPose{
		PoseMat:     &poseMat,
		Rotation:    mat.DenseCopyOf(rot),
		Translation: vectorToDense(translation),
	}, nil
}

// TranslationVector returns the translation column as an r3.Vector.
func (cp *CamPose) TranslationVector() r3.Vector {
	return r3.Vector{X: cp.Translation.At(0, 0), Y: cp.Translation.At(1, 0), Z: cp.Translation.At(2, 0)}
}

// RelativeTransform is the rotation and translation taking points expressed in a reference
// camera frame into a local camera frame.
type RelativeTransform struct {
	Rotation    *mat.Dense
	Translation *mat.Dense
}

// RelativePose computes the transform between the ref and local poses:
// R = Rref^-1·Rloc and t = Rref^-1·(tloc - tref).
func RelativePose(ref, local *CamPose) (*RelativeTransform, error) {
	if ref == nil || local == nil {
		return nil, errors.New("reference and local poses must be non-nil")
	}
	refRotInv, err := invert(ref.Rotation, "reference rotation")
	if err != nil {
		return nil, err
	}
	var rot, dt, t mat.Dense
	rot.Mul(refRotInv, local.Rotation)
	dt.Sub(local.Translation, ref.Translation)
	t.Mul(refRotInv, &dt)
	return &RelativeTransform{Rotation: &rot, Translation: &t}, nil
}

// ComposeWith applies rt on top of the reference pose it was derived from, which recovers the
// local pose: R = Rref·R and t = Rref·t + tref.
func (rt *RelativeTransform) ComposeWith(ref *CamPose) (*CamPose, error) {
	var rot, t mat.Dense
	rot.Mul(ref.Rotation, rt.Rotation)
	t.Mul(ref.Rotation, rt.Translation)
	t.Add(&t, ref.Translation)
	tv, err := denseToVector(&t)
	if err != nil {
		return nil, err
	}
	return NewCamPose(&rot, tv)
}

// FundamentalMatrix returns the fundamental matrix of the transform for the camera matrix k.
func (rt *RelativeTransform) FundamentalMatrix(k *mat.Dense) (*mat.Dense, error) {
	return FundamentalMatrixFromRT(rt.Rotation, rt.Translation, k)
}

// NewIdentityCamPose returns the pose with identity rotation and zero translation.
func NewIdentityCamPose() *CamPose {
	pose, err := NewCamPose(eye(3), r3.Vector{})
	if err != nil {
		// a 3x3 identity is always a valid rotation.
		panic(err)
	}
	return pose
}
