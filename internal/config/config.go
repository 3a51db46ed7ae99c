// Package config defines the stormfit run configuration and its
// loading: struct defaults, an optional YAML file, then environment
// variables, in increasing precedence.
package config

import (
	"fmt"
	"runtime"
)

// Config holds everything one `stormfit fit` run needs.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// EventsPath is the event dataset CSV (columns start,duration[,covariate]).
	EventsPath string `koanf:"events_path"`

	// CovariatesPath is an optional annual covariate CSV (year,value).
	// When set, the "covariate" annual template becomes available.
	CovariatesPath string `koanf:"covariates_path"`

	// OutputPath receives the per-combination results CSV.
	OutputPath string `koanf:"output_path"`

	// WindowStart and WindowEnd bound the observation window in years.
	WindowStart float64 `koanf:"window_start"`
	WindowEnd   float64 `koanf:"window_end"`

	// AnnualModels, SeasonalModels and ClusterModels list the template
	// names whose Cartesian product forms the model grid.
	AnnualModels   []string `koanf:"annual_models"`
	SeasonalModels []string `koanf:"seasonal_models"`
	ClusterModels  []string `koanf:"cluster_models"`

	// OptimizerMethods is the staged method sequence; empty picks the
	// default for each model's parameter count.
	OptimizerMethods []string `koanf:"optimizer_methods"`

	// OptimizerPasses repeats the method sequence.
	OptimizerPasses int `koanf:"optimizer_passes"`

	// MaxIterations and MaxFuncEvals bound each optimizer stage.
	MaxIterations int `koanf:"max_iterations"`
	MaxFuncEvals  int `koanf:"max_func_evals"`

	// GradientThreshold is the gradient-based convergence criterion.
	GradientThreshold float64 `koanf:"gradient_threshold"`

	// MinimumRate floors the intensity; evaluations below it are
	// infeasible.
	MinimumRate float64 `koanf:"minimum_rate"`

	// EnforceNonNegativeTheta rejects trial parameter vectors outside
	// the non-negative orthant.
	EnforceNonNegativeTheta bool `koanf:"enforce_nonnegative_theta"`

	// WarmStart seeds clustering variants from the fitted
	// non-clustering model sharing their annual/seasonal prefix.
	WarmStart bool `koanf:"warm_start"`

	// Workers bounds the parallel search pool (ignored with WarmStart).
	Workers int `koanf:"workers"`

	// QuadPointsPerYear sets quadrature node density for the intensity
	// integral.
	QuadPointsPerYear int `koanf:"quad_points_per_year"`

	// CovariateWrap selects how years beyond the covariate table are
	// mapped: "cyclic" or "hold_last".
	CovariateWrap string `koanf:"covariate_wrap"`

	// Seed drives the synthetic generator.
	Seed int64 `koanf:"seed"`
}

// New returns a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		OutputPath:        "fit_results.csv",
		AnnualModels:      []string{"constant"},
		SeasonalModels:    []string{"none", "single_freq"},
		ClusterModels:     []string{"none", "exp_decay"},
		OptimizerPasses:   1,
		GradientThreshold: 1e-5,
		Workers:           runtime.NumCPU(),
		QuadPointsPerYear: 64,
		CovariateWrap:     "cyclic",
		Seed:              1,
	}
}

// Validate checks cross-field constraints shared by all commands.
func (c *Config) Validate() error {
	if c.WindowEnd <= c.WindowStart {
		return fmt.Errorf("window [%g, %g] is empty", c.WindowStart, c.WindowEnd)
	}
	if len(c.AnnualModels) == 0 || len(c.SeasonalModels) == 0 || len(c.ClusterModels) == 0 {
		return fmt.Errorf("each of annual_models, seasonal_models, cluster_models must name at least one template")
	}
	switch c.CovariateWrap {
	case "cyclic", "hold_last":
	default:
		return fmt.Errorf("covariate_wrap must be cyclic or hold_last, got %q", c.CovariateWrap)
	}
	if c.MinimumRate < 0 {
		return fmt.Errorf("minimum_rate must be non-negative, got %g", c.MinimumRate)
	}
	return nil
}
