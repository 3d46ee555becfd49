package pipeline

import (
	"context"

	"github.com/pkg/errors"

	"go.viam.com/epipolar/correspondence"
	"go.viam.com/epipolar/dataset"
	"go.viam.com/epipolar/logging"
)

// Result is what a run produced.
type Result struct {
	NumImages   int
	Matrices    int
	Validations []ValidationReport
	Masks       []MaskRecord
}

// Run loads the scene in cfg.DataDir and writes its fundamental matrices, validates them
// against the SIFT correspondences and writes the masks. Stages run in that order and the
// first error aborts the run.
func Run(ctx context.Context, cfg *Config, sceneLoader dataset.Loader, logger logging.Logger) (*Result, error) {
	if err := cfg.Validate("config"); err != nil {
		return nil, err
	}
	logger.Infow("starting",
		"datadir", cfg.DataDir,
		"expname", cfg.ExpName,
		"factor", cfg.Factor,
		"llffhold", cfg.LLFFHold,
		"spherify", cfg.Spherify,
		"workers", cfg.workers())

	scene, err := sceneLoader.Load(ctx, cfg.DataDir, cfg.LoadOptions())
	if err != nil {
		return nil, errors.Wrap(err, "loading scene")
	}
	intrinsics, err := cfg.intrinsics(scene)
	if err != nil {
		return nil, err
	}
	n := scene.NumImages()
	result := &Result{NumImages: n}

	matrices, err := GenerateFundamentalMatrices(ctx, cfg, scene.Poses, intrinsics, logger.Sublogger("fmatrix"))
	if err != nil {
		return nil, err
	}
	result.Matrices = len(matrices)

	loader, err := correspondence.NewFileLoader(cfg.DataDir, cfg.Factor)
	if err != nil {
		return nil, err
	}
	sets, err := correspondence.LoadAll(ctx, loader, Triples(n))
	if err != nil {
		return nil, err
	}

	if !cfg.SkipValidation {
		result.Validations, err = ValidateFundamentalMatrices(ctx, cfg, n, sets, logger.Sublogger("validate"))
		if err != nil {
			return nil, err
		}
	}

	result.Masks, err = GenerateMasks(ctx, cfg, scene.ImageShape, n, sets, logger.Sublogger("mask"))
	if err != nil {
		return nil, err
	}
	logger.Infow("done", "images", n, "fundamental_matrices", result.Matrices, "masks", len(result.Masks))
	return result, nil
}
