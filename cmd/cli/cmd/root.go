package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dynlb/pkg/config"
	"github.com/dynlb/pkg/utils"
)

var (
	// Global flags
	verbose    bool
	configPath string

	cfg    *config.Config
	logger utils.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "dynlb",
	Short: "A distributed dynamic load balancer for particle workloads",
	Long: `dynlb balances particle-like workloads across a parallel job.

Each worker owns a set of 3D points; the balancer computes an
assignment of every point to a worker that equalises per-worker counts
while keeping spatial neighbours together, either through a one-shot
Morton (Z-order) pass or a persistent radix/RCB partition tree that is
rebuilt only when the load imbalance drifts past a threshold.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		logLevel := utils.ParseLogLevel(cfg.Log.Level)
		if verbose {
			logLevel = utils.LevelDebug
		}
		logger = utils.NewDefaultLogger(logLevel, os.Stdout)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (YAML)")

	binName := BinName()
	rootCmd.Example = `  # Simulate 4 workers with random clouds and a radix tree
  ` + binName + ` run -w 4 -n 1000

  # One-shot Morton balance
  ` + binName + ` run -w 4 -n 1000 --morton

  # RCB partitioning over the loopback gRPC transport
  ` + binName + ` run -w 3 -n 500 --mode rcb --grpc`
}

// GetLogger returns the configured logger
func GetLogger() utils.Logger {
	return logger
}

// BinName returns the base name of the current executable
func BinName() string {
	return filepath.Base(os.Args[0])
}
