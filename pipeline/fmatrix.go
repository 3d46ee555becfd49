package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/epipolar/fmatrix"
	"go.viam.com/epipolar/logging"
	"go.viam.com/epipolar/rimage/transform"
)

// GenerateFundamentalMatrices writes the fundamental matrix of every ordered pair of poses
// under <datadir>/fundemental_matrix. The returned matrices follow OrderedPairs order.
func GenerateFundamentalMatrices(
	ctx context.Context,
	cfg *Config,
	poses []*transform.CamPose,
	intrinsics *transform.PinholeCameraIntrinsics,
	logger logging.Logger,
) ([]*mat.Dense, error) {
	if err := intrinsics.CheckValid(); err != nil {
		return nil, err
	}
	k := intrinsics.GetCameraMatrix()

	dir := filepath.Join(cfg.DataDir, fmatrix.DirName)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrap(err, "couldn't create fundamental matrix directory")
	}

	pairs := OrderedPairs(len(poses))
	matrices := make([]*mat.Dense, len(pairs))
	err := forEach(ctx, cfg.workers(), len(pairs), func(ctx context.Context, idx int) error {
		pair := pairs[idx]
		rel, err := transform.RelativePose(poses[pair.Ref], poses[pair.Local])
		if err != nil {
			return errors.Wrapf(err, "relative pose %d->%d", pair.Ref, pair.Local)
		}
		fundMat, err := rel.FundamentalMatrix(k)
		if err != nil {
			return errors.Wrapf(err, "fundamental matrix %d->%d", pair.Ref, pair.Local)
		}
		path := fmatrix.Path(cfg.DataDir, cfg.Factor, pair.Ref, pair.Local)
		if err := fmatrix.WriteFile(path, fundMat); err != nil {
			return errors.Wrapf(err, "writing fundamental matrix %d->%d", pair.Ref, pair.Local)
		}
		matrices[idx] = fundMat
		logger.Debugw("wrote fundamental matrix", "ref", pair.Ref, "local", pair.Local, "path", path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("wrote fundamental matrices", "count", len(pairs), "dir", dir)
	return matrices, nil
}
