package pipeline

import (
	"context"
	"math"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/epipolar/correspondence"
	"go.viam.com/epipolar/fmatrix"
	"go.viam.com/epipolar/logging"
	"go.viam.com/epipolar/rimage/transform"
)

// ValidationReport summarizes the epipolar residuals of F(Anchor, Target) over the
// correspondences found through image Via.
type ValidationReport struct {
	Anchor            int
	Target            int
	Via               int
	Count             int
	MeanAbsResidual   float64
	MedianAbsResidual float64
	MaxAbsResidual    float64
}

// ValidateFundamentalMatrices spot checks the stored matrices F(0, j) for every j > 0 against
// the first non-empty correspondence set (k, 0, j). An empty set hands over to the next k, and
// a target with no non-empty set is logged and left unchecked. Residual size never fails the
// check; only reading the matrices does.
func ValidateFundamentalMatrices(
	ctx context.Context,
	cfg *Config,
	n int,
	sets correspondence.Sets,
	logger logging.Logger,
) ([]ValidationReport, error) {
	const anchor = 0
	var reports []ValidationReport
	for target := 1; target < n; target++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fundMat, err := fmatrix.ReadFile(fmatrix.Path(cfg.DataDir, cfg.Factor, anchor, target))
		if err != nil {
			return nil, errors.Wrapf(err, "reading fundamental matrix %d->%d", anchor, target)
		}
		flatF, err := transform.FlattenMatrix(fundMat)
		if err != nil {
			return nil, err
		}

		validated := false
		for via := 1; via < n && !validated; via++ {
			if via == target {
				continue
			}
			set, ok := sets.Lookup(via, anchor, target)
			if !ok || len(set) == 0 {
				continue
			}
			report, err := validatePair(flatF, set)
			if err != nil {
				return nil, errors.Wrapf(err, "validating %d->%d", anchor, target)
			}
			report.Anchor, report.Target, report.Via = anchor, target, via
			logger.Infow("epipolar residual",
				"ref", anchor,
				"target", target,
				"via", via,
				"count", report.Count,
				"mean_abs", report.MeanAbsResidual,
				"median_abs", report.MedianAbsResidual,
				"max_abs", report.MaxAbsResidual)
			reports = append(reports, report)
			validated = true
		}
		if !validated {
			logger.Warnw("no correspondences to validate fundamental matrix", "ref", anchor, "target", target)
		}
	}
	return reports, nil
}

func validatePair(flatF []float64, set correspondence.Set) (ValidationReport, error) {
	p := transform.FlattenPoints(set.FirstPoints())
	q := transform.FlattenPoints(set.SecondPoints())
	mean, err := transform.MeanAbsEpipolarResidual(p, q, flatF)
	if err != nil {
		return ValidationReport{}, err
	}
	residuals, err := transform.EpipolarResiduals(p, q, flatF)
	if err != nil {
		return ValidationReport{}, err
	}
	abs := lo.Map(residuals, func(r float64, _ int) float64 { return math.Abs(r) })
	median, err := stats.Median(abs)
	if err != nil {
		return ValidationReport{}, err
	}
	maxAbs, err := stats.Max(abs)
	if err != nil {
		return ValidationReport{}, err
	}
	return ValidationReport{
		Count:             len(set),
		MeanAbsResidual:   mean,
		MedianAbsResidual: median,
		MaxAbsResidual:    maxAbs,
	}, nil
}
