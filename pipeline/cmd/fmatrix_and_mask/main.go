// Package main writes the pairwise fundamental matrices and co-visibility masks of an LLFF dataset.
package main

import (
	"context"
	"strings"

	"go.viam.com/utils"

	"go.viam.com/epipolar/dataset"
	"go.viam.com/epipolar/logging"
	"go.viam.com/epipolar/pipeline"
)

const name = "fmatrix_and_mask"

func main() {
	utils.ContextualMain(mainWithArgs, logging.NewLogger(name))
}

// Arguments for the command.
type Arguments struct {
	DataDir        string `flag:"datadir,default=../NoExtNeRF/data/nerf_llff_data/leaves,usage=where the dataset is stored"`
	Factor         int    `flag:"factor,default=8,usage=downsample factor for LLFF images"`
	ExpName        string `flag:"expname,default=leaves,usage=experiment name"`
	Spherify       bool   `flag:"spherify,usage=set for spherical 360 scenes"`
	LLFFHold       int    `flag:"llffhold,default=8,usage=will take every 1/N images as LLFF test set"`
	ConfigFile     string `flag:"config,usage=JSON config file; flags given on the command line override it"`
	Workers        int    `flag:"workers,usage=pairs processed at once (0 uses every CPU)"`
	Debug          bool   `flag:"debug,usage=enable debug logging"`
	SkipValidation bool   `flag:"skip-validation,usage=skip the epipolar residual check"`
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) error {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	if argsParsed.Debug {
		logger = logging.NewDebugLogger(name)
	}
	logging.ReplaceGlobal(logger)

	cfg, err := configFromArgs(argsParsed, explicitFlags(args))
	if err != nil {
		return err
	}
	_, err = pipeline.Run(ctx, cfg, dataset.NewLLFFLoader(logger.Sublogger("dataset")), logger)
	return err
}

// explicitFlags returns the names of the flags given in args, whatever their value.
func explicitFlags(args []string) map[string]bool {
	set := map[string]bool{}
	if len(args) < 2 {
		return set
	}
	for _, arg := range args[1:] {
		if arg == "--" {
			break
		}
		if !strings.HasPrefix(arg, "-") {
			continue
		}
		flagName, _, _ := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		set[flagName] = true
	}
	return set
}

// configFromArgs starts from the config file, if any, and applies every flag named in set.
// Without a config file every flag applies.
func configFromArgs(args Arguments, set map[string]bool) (*pipeline.Config, error) {
	cfg := pipeline.DefaultConfig()
	given := func(flagName string) bool { return args.ConfigFile == "" || set[flagName] }
	if args.ConfigFile != "" {
		var err error
		if cfg, err = pipeline.ReadConfig(args.ConfigFile); err != nil {
			return nil, err
		}
	}
	if given("datadir") {
		cfg.DataDir = args.DataDir
	}
	if given("factor") {
		cfg.Factor = args.Factor
	}
	if given("expname") {
		cfg.ExpName = args.ExpName
	}
	if given("llffhold") {
		cfg.LLFFHold = args.LLFFHold
	}
	if given("spherify") {
		cfg.Spherify = args.Spherify
	}
	if given("workers") {
		cfg.Workers = args.Workers
	}
	if given("skip-validation") {
		cfg.SkipValidation = args.SkipValidation
	}
	if err := cfg.Validate("flags"); err != nil {
		return nil, err
	}
	return cfg, nil
}
