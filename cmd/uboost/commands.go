package main

import (
	"fmt"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/uboost/core/sparse"
	"github.com/YuminosukeSato/uboost/pkg/errors"
	"github.com/YuminosukeSato/uboost/pkg/log"
	"github.com/YuminosukeSato/uboost/sklearn/uniform"
)

var (
	logLevel  string
	logFormat string

	configPath string
	outPath    string

	gradientSize int
	gradientSeed uint64
	gradientEps  float64
)

var rootCmd = &cobra.Command{
	Use:           "uboost",
	Short:         "Uniformity-aware gradient boosting",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(logLevel, logFormat)
	},
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Fit a uniform GB and AdaBoost, then print quality and flatness tables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(configPath)
		if err != nil {
			return err
		}
		return runTrain(cmd.Context(), cmd.OutOrStdout(), cfg, outPath)
	},
}

var checkGradientCmd = &cobra.Command{
	Use:   "check-gradient",
	Short: "Compare the analytic KNN-loss gradient with finite differences on 3*I",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		worst, err := checkScaledIdentity(gradientSize, gradientSeed, gradientEps)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "max |gradient - finite difference| = %.3e\n", worst)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "zerolog", "zerolog or slog")

	trainCmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML run configuration (defaults when empty)")
	trainCmd.Flags().StringVarP(&outPath, "out", "o", "", "write final probabilities of the uniform classifier as .npy")

	checkGradientCmd.Flags().IntVar(&gradientSize, "size", 1000, "number of samples")
	checkGradientCmd.Flags().Uint64Var(&gradientSeed, "seed", 42, "random seed for labels and scores")
	checkGradientCmd.Flags().Float64Var(&gradientEps, "eps", 1e-6, "finite difference step")

	rootCmd.AddCommand(trainCmd, checkGradientCmd)
}

func setupLogging(level, format string) error {
	lvl, ok := log.ParseLevel(level)
	if !ok {
		return errors.NewValidationError("log-level", "must be debug, info, warn or error", level)
	}
	switch format {
	case "zerolog":
		log.SetProvider(log.NewZerologProvider(os.Stderr, lvl))
	case "slog":
		log.SetupLogger(strings.ToLower(lvl.String()))
		log.SetProvider(log.SlogProvider{})
	default:
		return errors.NewValidationError("log-format", "must be zerolog or slog", format)
	}
	return nil
}

// checkScaledIdentity runs uniform.CheckGradient for the KNN loss whose
// coefficient matrix is 3*I on random labels and scores.
func checkScaledIdentity(n int, seed uint64, eps float64) (float64, error) {
	if n < 1 {
		return 0, errors.NewValidationError("size", "must be >= 1", n)
	}
	loss, err := uniform.NewKnnLoss(2, sparse.Identity(n, 3), nil)
	if err != nil {
		return 0, err
	}
	rng := rand.New(rand.NewPCG(seed, seed+1))
	y := make([]float64, n)
	pred := make([]float64, n)
	for i := range y {
		if rng.Float64() > 0.5 {
			y[i] = 1
		}
		pred[i] = rng.Float64()
	}
	return uniform.CheckGradient(loss, y, pred, eps)
}
