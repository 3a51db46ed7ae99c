// stormfit fits non-homogeneous Poisson process timing models to a
// coastal storm event dataset and simulates synthetic storm arrivals
// from a fitted model.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/coastalrisk/stormfit/internal/config"
	"github.com/coastalrisk/stormfit/internal/nhpp"
	"github.com/coastalrisk/stormfit/internal/rate"
	"github.com/coastalrisk/stormfit/internal/search"
	"github.com/coastalrisk/stormfit/internal/storm"
)

var rootCmd = &cobra.Command{
	Use:   "stormfit",
	Short: "NHPP storm timing model fitting and simulation",

	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (YAML)")
	rootCmd.AddCommand(fitCmd)
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().String("annual", "constant", "annual template name")
	simulateCmd.Flags().String("seasonal", "none", "seasonal template name")
	simulateCmd.Flags().String("cluster", "none", "cluster template name")
	simulateCmd.Flags().String("theta", "", "comma-separated fitted parameter vector")
	simulateCmd.Flags().Float64("gap", 0, "fixed event duration incl. minimum gap, in years")
	simulateCmd.Flags().Float64("dur-mu", 0, "log-normal duration log-mean (with --dur-sigma)")
	simulateCmd.Flags().Float64("dur-sigma", 0, "log-normal duration log-stddev; 0 disables sampling")
	simulateCmd.Flags().String("out", "simulated_events.csv", "output events CSV")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}
	return cfg, nil
}

// buildRegistry installs the built-in templates plus the covariate
// annual template when a covariate table is configured.
func buildRegistry(cfg *config.Config) (*rate.Registry, error) {
	reg := rate.NewRegistry()
	if cfg.CovariatesPath == "" {
		return reg, nil
	}

	table, err := storm.LoadCovariates(cfg.CovariatesPath)
	if err != nil {
		return nil, err
	}

	var lookup storm.CovariateLookup
	switch cfg.CovariateWrap {
	case "hold_last":
		lookup = storm.HoldLastLookup{Table: table}
	default:
		lookup = storm.CyclicLookup{Table: table}
	}
	reg.RegisterCovariateAnnual(lookup)

	log.WithFields(log.Fields{
		"years": len(table.Values),
		"first": table.FirstYear,
		"wrap":  cfg.CovariateWrap,
	}).Info("covariate table loaded")
	return reg, nil
}

var fitCmd = &cobra.Command{
	Use:   "fit",
	Short: "fit the model grid to an event dataset",

	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.EventsPath == "" {
			return fmt.Errorf("events_path is required: %w", storm.ErrMissingData)
		}

		window := storm.Window{Start: cfg.WindowStart, End: cfg.WindowEnd}
		data, err := storm.LoadEvents(cfg.EventsPath, window)
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{
			"events":    data.N(),
			"window":    fmt.Sprintf("[%g, %g]", window.Start, window.End),
			"dead_time": data.DeadTime(),
		}).Info("event dataset loaded")

		reg, err := buildRegistry(cfg)
		if err != nil {
			return err
		}

		grid := search.Grid{
			Annual:   cfg.AnnualModels,
			Seasonal: cfg.SeasonalModels,
			Cluster:  cfg.ClusterModels,
		}
		opts := search.Options{
			Eval: nhpp.Options{
				MinimumRate:       cfg.MinimumRate,
				QuadPointsPerYear: cfg.QuadPointsPerYear,
			},
			Fit: nhpp.FitOptions{
				Methods:            cfg.OptimizerMethods,
				Passes:             cfg.OptimizerPasses,
				MaxIterations:      cfg.MaxIterations,
				MaxFuncEvals:       cfg.MaxFuncEvals,
				GradientThreshold:  cfg.GradientThreshold,
				EnforceNonNegTheta: cfg.EnforceNonNegativeTheta,
			},
			WarmStart: cfg.WarmStart,
			Workers:   cfg.Workers,
		}

		results, err := search.Run(reg, data, grid, opts)
		if err != nil {
			return err
		}

		if err := search.WriteCSV(cfg.OutputPath, results); err != nil {
			return err
		}
		log.WithField("path", cfg.OutputPath).Info("results written")

		ranked := search.SortByAIC(results)
		best := ranked[0]
		if best.Err != "" {
			log.Warn("no combination fitted successfully")
			return nil
		}
		log.WithFields(log.Fields{
			"model": best.ModelID,
			"aic":   best.AIC,
			"nll":   best.NLL,
			"theta": best.Theta,
		}).Info("best model by AIC")
		return nil
	},
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "generate synthetic storm arrivals from a fitted model",

	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		annual, _ := cmd.Flags().GetString("annual")
		seasonal, _ := cmd.Flags().GetString("seasonal")
		cluster, _ := cmd.Flags().GetString("cluster")
		thetaArg, _ := cmd.Flags().GetString("theta")
		gap, _ := cmd.Flags().GetFloat64("gap")
		durMu, _ := cmd.Flags().GetFloat64("dur-mu")
		durSigma, _ := cmd.Flags().GetFloat64("dur-sigma")
		out, _ := cmd.Flags().GetString("out")

		reg, err := buildRegistry(cfg)
		if err != nil {
			return err
		}
		comp, err := reg.Compose(annual, seasonal, cluster)
		if err != nil {
			return err
		}

		theta, err := parseTheta(thetaArg)
		if err != nil {
			return err
		}
		if len(theta) != comp.Npar() {
			return fmt.Errorf("model %s expects %d parameters, got %d", comp.Name(), comp.Npar(), len(theta))
		}

		simOpts := nhpp.SimOptions{
			Window: storm.Window{Start: cfg.WindowStart, End: cfg.WindowEnd},
			Theta:  theta,
			Seed:   cfg.Seed,
		}
		switch {
		case gap > 0 && durSigma > 0:
			return fmt.Errorf("--gap and --dur-sigma are mutually exclusive")
		case gap > 0:
			simOpts.Durations = nhpp.FixedDuration(gap)
		case durSigma > 0:
			simOpts.Durations = nhpp.LogNormalDurations(durMu, durSigma)
		}

		data, err := nhpp.Simulate(comp.Eval, simOpts)
		if err != nil {
			return err
		}
		if err := storm.WriteEvents(out, data); err != nil {
			return err
		}
		log.WithFields(log.Fields{
			"model":  comp.Name(),
			"events": data.N(),
			"path":   out,
		}).Info("synthetic events written")
		return nil
	},
}

func parseTheta(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("--theta is required")
	}
	parts := strings.Split(s, ",")
	theta := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("parse theta[%d] (%q): %w", i, p, err)
		}
		theta[i] = v
	}
	return theta, nil
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
