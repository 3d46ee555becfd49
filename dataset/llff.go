package dataset

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sbinet/npyio"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/epipolar/logging"
	"go.viam.com/epipolar/rimage"
	"go.viam.com/epipolar/rimage/transform"
)

const (
	// PosesFile is the pose and bounds array of an LLFF dataset.
	PosesFile = "poses_bounds.npy"
	// valuesPerPose is a row-major 3x5 pose-with-hwf followed by near and far bounds.
	valuesPerPose = 17
)

var imageExtensions = []string{".jpg", ".jpeg", ".png"}

// LLFFLoader loads LLFF datasets: a poses_bounds.npy file next to one image directory per
// downsampling factor.
type LLFFLoader struct {
	logger logging.Logger
}

// NewLLFFLoader returns a new LLFFLoader.
func NewLLFFLoader(logger logging.Logger) *LLFFLoader {
	return &LLFFLoader{logger: logger}
}

// ImageDir returns the image directory used for the given downsampling factor.
func ImageDir(datadir string, factor int) string {
	if factor <= 1 {
		return filepath.Join(datadir, "images")
	}
	return filepath.Join(datadir, fmt.Sprintf("images_%d", factor))
}

// Load reads the poses of the dataset in datadir and normalizes them according to opts.
func (ll *LLFFLoader) Load(ctx context.Context, datadir string, opts LoadOptions) (*Scene, error) {
	rows, err := readPosesBounds(filepath.Join(datadir, PosesFile))
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	imgDir := ImageDir(datadir, opts.Factor)
	imgPaths, err := listImages(imgDir)
	if err != nil {
		return nil, err
	}
	if len(imgPaths) != len(rows) {
		return nil, errors.Errorf("mismatch between %d images in %s and %d poses", len(imgPaths), imgDir, len(rows))
	}
	shape, err := rimage.ReadImageShape(imgPaths[0])
	if err != nil {
		return nil, err
	}

	factor := 1.0
	if opts.Factor > 1 {
		factor = float64(opts.Factor)
	}
	poses := make([]*mat.Dense, len(rows))
	bounds := make([][2]float64, len(rows))
	for n, row := range rows {
		raw := mat.NewDense(3, 5, row[:15])
		pose := mat.NewDense(3, 5, nil)
		for r := 0; r < 3; r++ {
			// LLFF stores [down, right, back] columns; reorder to [right, up, back].
			pose.Set(r, 0, raw.At(r, 1))
			pose.Set(r, 1, -raw.At(r, 0))
			for c := 2; c < 5; c++ {
				pose.Set(r, c, raw.At(r, c))
			}
		}
		pose.Set(0, 4, float64(shape.Height))
		pose.Set(1, 4, float64(shape.Width))
		pose.Set(2, 4, raw.At(2, 4)/factor)
		poses[n] = pose
		bounds[n] = [2]float64{row[15], row[16]}
	}

	if opts.BoundFactor > 0 {
		minBound := math.Inf(1)
		for _, b := range bounds {
			minBound = math.Min(minBound, math.Min(b[0], b[1]))
		}
		if minBound <= 0 {
			return nil, errors.Errorf("cannot rescale scene with non-positive bound %v", minBound)
		}
		scale(poses, bounds, 1/(minBound*opts.BoundFactor))
	}
	if opts.Recenter {
		if err := recenterPoses(poses); err != nil {
			return nil, err
		}
	}
	if opts.Spherify {
		if err := spherifyPoses(poses, bounds); err != nil {
			return nil, err
		}
	}

	scene := &Scene{
		Bounds:     bounds,
		Height:     poses[0].At(0, 4),
		Width:      poses[0].At(1, 4),
		Focal:      poses[0].At(2, 4),
		ImageShape: shape,
		ImagePaths: imgPaths,
		TestIndex:  nearestToAverage(poses),
	}
	for n, pose := range poses {
		camPose, err := transform.NewCamPoseFromMat(pose)
		if err != nil {
			return nil, errors.Wrapf(err, "pose %d", n)
		}
		scene.Poses = append(scene.Poses, camPose)
	}
	ll.logger.Debugw("loaded scene",
		"datadir", datadir,
		"poses", len(scene.Poses),
		"hwf", []float64{scene.Height, scene.Width, scene.Focal},
		"test_index", scene.TestIndex)
	return scene, nil
}

// readPosesBounds reads an N x 17 array of float32 or float64.
func readPosesBounds(path string) ([][]float64, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't open poses")
	}
	defer utils.UncheckedErrorFunc(f.Close)

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't read npy header of %s", path)
	}
	shape := r.Header.Descr.Shape
	if len(shape) != 2 || shape[1] != valuesPerPose || shape[0] == 0 {
		return nil, errors.Errorf("expected an N x %d array in %s, got shape %v", valuesPerPose, path, shape)
	}

	var poses mat.Dense
	switch r.Header.Descr.Type {
	case "<f8":
		// npyio returns Fortran ordered arrays row major.
		if err := r.Read(&poses); err != nil {
			return nil, errors.Wrapf(err, "couldn't read %s", path)
		}
	case "<f4":
		var data32 []float32
		if err := r.Read(&data32); err != nil {
			return nil, errors.Wrapf(err, "couldn't read %s", path)
		}
		data := lo.Map(data32, func(v float32, _ int) float64 { return float64(v) })
		if r.Header.Descr.Fortran {
			poses.CloneFrom(mat.NewDense(shape[1], shape[0], data).T())
		} else {
			poses.CloneFrom(mat.NewDense(shape[0], shape[1], data))
		}
	default:
		return nil, errors.Errorf("unsupported dtype %q in %s", r.Header.Descr.Type, path)
	}
	if nr, nc := poses.Dims(); nr != shape[0] || nc != valuesPerPose {
		return nil, errors.Errorf("read a %dx%d array from %s, expected %dx%d", nr, nc, path, shape[0], valuesPerPose)
	}

	rows := make([][]float64, shape[0])
	for n := range rows {
		rows[n] = mat.Row(nil, n, &poses)
	}
	return rows, nil
}

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't list images")
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		for _, want := range imageExtensions {
			if ext == want {
				paths = append(paths, filepath.Join(dir, entry.Name()))
				break
			}
		}
	}
	if len(paths) == 0 {
		return nil, errors.Errorf("no images in %s", dir)
	}
	sort.Strings(paths)
	return paths, nil
}

func scale(poses []*mat.Dense, bounds [][2]float64, sc float64) {
	for n, pose := range poses {
		for r := 0; r < 3; r++ {
			pose.Set(r, 3, pose.At(r, 3)*sc)
		}
		bounds[n][0] *= sc
		bounds[n][1] *= sc
	}
}

func column(pose mat.Matrix, c int) r3.Vector {
	return r3.Vector{X: pose.At(0, c), Y: pose.At(1, c), Z: pose.At(2, c)}
}

// viewMatrix builds a 3x4 camera-to-world matrix looking along z with the given up hint.
func viewMatrix(z, up, pos r3.Vector) *mat.Dense {
	vec2 := z.Normalize()
	vec0 := up.Cross(vec2).Normalize()
	vec1 := vec2.Cross(vec0).Normalize()
	return fromColumns(vec0, vec1, vec2, pos)
}

func fromColumns(cols ...r3.Vector) *mat.Dense {
	m := mat.NewDense(3, len(cols), nil)
	for c, v := range cols {
		m.Set(0, c, v.X)
		m.Set(1, c, v.Y)
		m.Set(2, c, v.Z)
	}
	return m
}

// averagePose returns the 3x4 pose at the mean camera center, looking along the summed
// viewing directions.
func averagePose(poses []*mat.Dense) *mat.Dense {
	var center, forward, up r3.Vector
	for _, pose := range poses {
		center = center.Add(column(pose, 3))
		forward = forward.Add(column(pose, 2))
		up = up.Add(column(pose, 1))
	}
	center = center.Mul(1 / float64(len(poses)))
	return viewMatrix(forward, up, center)
}

// homogeneous extends the first four columns of a 3xN pose with a [0 0 0 1] row.
func homogeneous(pose mat.Matrix) *mat.Dense {
	out := mat.NewDense(4, 4, nil)
	out.Slice(0, 3, 0, 4).(*mat.Dense).Copy(pose)
	out.Set(3, 3, 1)
	return out
}

// applyInverse replaces every pose by inv(c2w)·pose, leaving the hwf column untouched.
func applyInverse(poses []*mat.Dense, c2w mat.Matrix, name string) error {
	var inv mat.Dense
	if err := inv.Inverse(homogeneous(c2w)); err != nil {
		return transform.NewSingularMatrixError(name, err)
	}
	for _, pose := range poses {
		var moved mat.Dense
		moved.Mul(&inv, homogeneous(pose))
		pose.Slice(0, 3, 0, 4).(*mat.Dense).Copy(moved.Slice(0, 3, 0, 4))
	}
	return nil
}

func recenterPoses(poses []*mat.Dense) error {
	return applyInverse(poses, averagePose(poses), "average pose")
}

// spherifyPoses moves the world origin to the point closest to all optical axes and scales
// the camera centers to unit mean distance from it.
func spherifyPoses(poses []*mat.Dense, bounds [][2]float64) error {
	var sumAtA, sumB mat.Dense
	sumAtA.ReuseAs(3, 3)
	sumB.ReuseAs(3, 1)
	for _, pose := range poses {
		d := mat.NewVecDense(3, nil)
		d.CopyVec(pose.ColView(2))
		o := mat.NewVecDense(3, nil)
		o.CopyVec(pose.ColView(3))

		var a mat.Dense
		a.Outer(-1, d, d)
		for i := 0; i < 3; i++ {
			a.Set(i, i, a.At(i, i)+1)
		}
		var b, ata mat.Dense
		b.Mul(&a, o)
		b.Scale(-1, &b)
		ata.Mul(a.T(), &a)
		sumAtA.Add(&sumAtA, &ata)
		sumB.Add(&sumB, &b)
	}
	n := float64(len(poses))
	sumAtA.Scale(1/n, &sumAtA)
	sumB.Scale(1/n, &sumB)

	var invAtA, pt mat.Dense
	if err := invAtA.Inverse(&sumAtA); err != nil {
		return transform.NewSingularMatrixError("optical axes", err)
	}
	pt.Mul(&invAtA, &sumB)
	center := r3.Vector{X: -pt.At(0, 0), Y: -pt.At(1, 0), Z: -pt.At(2, 0)}

	var up r3.Vector
	for _, pose := range poses {
		up = up.Add(column(pose, 3).Sub(center))
	}
	vec0 := up.Mul(1 / n).Normalize()
	vec1 := r3.Vector{X: .1, Y: .2, Z: .3}.Cross(vec0).Normalize()
	vec2 := vec0.Cross(vec1).Normalize()
	if err := applyInverse(poses, fromColumns(vec1, vec2, vec0, center), "sphere frame"); err != nil {
		return err
	}

	var sumSq float64
	for _, pose := range poses {
		sumSq += column(pose, 3).Norm2()
	}
	rad := math.Sqrt(sumSq / n)
	if rad == 0 {
		return errors.New("cannot spherify poses sharing a single center")
	}
	scale(poses, bounds, 1/rad)

	hwf := column(poses[0], 4)
	for _, pose := range poses[1:] {
		pose.Set(0, 4, hwf.X)
		pose.Set(1, 4, hwf.Y)
		pose.Set(2, 4, hwf.Z)
	}
	return nil
}

func nearestToAverage(poses []*mat.Dense) int {
	center := column(averagePose(poses), 3)
	best, bestDist := 0, math.Inf(1)
	for n, pose := range poses {
		if d := column(pose, 3).Sub(center).Norm2(); d < bestDist {
			best, bestDist = n, d
		}
	}
	return best
}
