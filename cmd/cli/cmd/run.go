package cmd

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dynlb/internal/balancer"
	"github.com/dynlb/internal/collective"
	"github.com/dynlb/internal/collective/grpccomm"
	"github.com/dynlb/internal/collective/local"
)

var (
	runWorkers   int
	runMaxPoints int
	runSteps     int
	runSeed      int64
	runMode      string
	runCutoff    int
	runEpsilon   float64
	runMorton    bool
	runGRPC      bool
)

// runCmd simulates a parallel job inside one process: every worker is
// a goroutine with its own random cloud, exactly like the original
// multi-rank test driver.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Simulate a balanced parallel job with random point clouds",
	Long: `Run spins up a group of in-process workers, hands each a random
point cloud of up to --points points, and drives the balancer: either a
one-shot Morton balance (--morton) or a tree balancer that is created
once and updated over --steps drift steps.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSimulation()
	},
}

func init() {
	runCmd.Flags().IntVarP(&runWorkers, "workers", "w", 0, "Worker count (0 = from config)")
	runCmd.Flags().IntVarP(&runMaxPoints, "points", "n", 1000, "Maximum points per worker")
	runCmd.Flags().IntVarP(&runSteps, "steps", "s", 5, "Update steps after create")
	runCmd.Flags().Int64Var(&runSeed, "seed", 1, "Random seed")
	runCmd.Flags().StringVarP(&runMode, "mode", "m", "", "Partitioning mode: radix or rcb (default from config)")
	runCmd.Flags().IntVar(&runCutoff, "cutoff", 0, "Radix leaf size or rcb leaf count (0 = default)")
	runCmd.Flags().Float64VarP(&runEpsilon, "epsilon", "e", -1, "Imbalance slack (negative = from config)")
	runCmd.Flags().BoolVar(&runMorton, "morton", false, "One-shot Morton balance instead of a tree")
	runCmd.Flags().BoolVar(&runGRPC, "grpc", false, "Run the group over the loopback gRPC transport")

	rootCmd.AddCommand(runCmd)
}

// workerCloud is one rank's random cloud, sized like the original test
// driver: rand % max + 1.
func workerCloud(rank int, seed int64, maxPoints int) balancer.Points {
	rng := rand.New(rand.NewSource(seed + int64(rank)))
	n := rng.Intn(maxPoints) + 1

	pts := balancer.Points{
		X: make([]float64, n),
		Y: make([]float64, n),
		Z: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		pts.X[i] = rng.Float64()
		pts.Y[i] = rng.Float64()
		pts.Z[i] = rng.Float64()
	}
	return pts
}

// drift moves every point by a small random walk, clamped to the unit
// cube, so updates have something to rebalance.
func drift(pts balancer.Points, rng *rand.Rand) {
	clamp := func(v float64) float64 {
		return math.Min(1, math.Max(0, v))
	}
	for i := 0; i < pts.Len(); i++ {
		pts.X[i] = clamp(pts.X[i] + (rng.Float64()-0.5)*0.1)
		pts.Y[i] = clamp(pts.Y[i] + (rng.Float64()-0.5)*0.1)
		pts.Z[i] = clamp(pts.Z[i] + (rng.Float64()-0.5)*0.1)
	}
}

// buildGroup assembles the collective group, in-process or via the
// loopback gRPC transport.
func buildGroup(workers int) ([]collective.Comm, func(), error) {
	if !runGRPC {
		comms, err := local.NewGroup(workers)
		return comms, func() {}, err
	}

	coord, err := grpccomm.Serve("127.0.0.1:0", workers)
	if err != nil {
		return nil, nil, err
	}

	comms := make([]collective.Comm, workers)
	comms[0] = coord.Comm()
	for rank := 1; rank < workers; rank++ {
		c, err := grpccomm.Dial(coord.Addr(), rank, workers)
		if err != nil {
			coord.Close()
			return nil, nil, err
		}
		comms[rank] = c
	}

	cleanup := func() {
		for _, c := range comms[1:] {
			_ = c.Close()
		}
		_ = coord.Close()
	}
	return comms, cleanup, nil
}

func runSimulation() error {
	workers := runWorkers
	if workers <= 0 {
		workers = cfg.Collective.Size
	}

	modeName := runMode
	if modeName == "" {
		modeName = cfg.Balance.Mode
	}
	mode, err := balancer.ParseMode(modeName)
	if err != nil {
		return err
	}

	epsilon := runEpsilon
	if epsilon < 0 {
		epsilon = cfg.Balance.Epsilon
	}

	cutoff := runCutoff
	if cutoff == 0 {
		cutoff = cfg.Balance.Cutoff
	}

	var metrics *balancer.Metrics
	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		metrics = balancer.NewMetrics(registry)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
			logger.Info("metrics listening on %s", cfg.Metrics.Addr)
			_ = http.ListenAndServe(cfg.Metrics.Addr, mux)
		}()
	}

	transport := "local"
	if runGRPC {
		transport = "grpc"
	}
	logger.Info("simulating %d workers: mode=%s epsilon=%g transport=%s seed=%d",
		workers, modeName, epsilon, transport, runSeed)

	comms, cleanup, err := buildGroup(workers)
	if err != nil {
		return err
	}
	defer cleanup()

	start := time.Now()
	if runMorton {
		err = simulateMorton(comms)
	} else {
		err = simulateTree(comms, mode, cutoff, epsilon, metrics)
	}
	if err != nil {
		return err
	}

	logger.Info("simulation finished in %v", time.Since(start))
	return nil
}

// simulateMorton runs the stateless one-shot balancer and reports the
// resulting per-worker counts.
func simulateMorton(comms []collective.Comm) error {
	workers := len(comms)
	counts := make([]int, workers)
	locals := make([]int, workers)

	var mu sync.Mutex
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for rank, c := range comms {
		wg.Add(1)
		go func(rank int, c collective.Comm) {
			defer wg.Done()
			pts := workerCloud(rank, runSeed, runMaxPoints)
			ranks, err := balancer.MortonBalance(context.Background(), c, cfg.Balance.TaskHint, pts)
			if err != nil {
				errs[rank] = err
				return
			}
			mu.Lock()
			locals[rank] = pts.Len()
			for _, r := range ranks {
				counts[r]++
			}
			mu.Unlock()
		}(rank, c)
	}
	wg.Wait()

	for rank, err := range errs {
		if err != nil {
			return fmt.Errorf("rank %d: %w", rank, err)
		}
	}

	printCounts("morton balance", locals, counts)
	return nil
}

// simulateTree creates a tree balancer, drifts the clouds, and updates.
func simulateTree(comms []collective.Comm, mode balancer.Mode, cutoff int, epsilon float64, metrics *balancer.Metrics) error {
	workers := len(comms)
	imbalances := make([]float64, 0, runSteps+1)
	var imbMu sync.Mutex

	errs := make([]error, workers)
	var wg sync.WaitGroup
	for rank, c := range comms {
		wg.Add(1)
		go func(rank int, c collective.Comm) {
			defer wg.Done()
			errs[rank] = func() error {
				ctx := context.Background()
				pts := workerCloud(rank, runSeed, runMaxPoints)
				rng := rand.New(rand.NewSource(runSeed + int64(1000+rank)))

				bcfg := balancer.Config{
					TaskHint: cfg.Balance.TaskHint,
					Cutoff:   cutoff,
					Epsilon:  epsilon,
					Mode:     mode,
					Logger:   logger,
				}
				if rank == 0 {
					bcfg.Metrics = metrics
				}

				b, err := balancer.Create(ctx, c, bcfg, pts)
				if err != nil {
					return err
				}
				defer b.Destroy()

				if rank == 0 {
					imbMu.Lock()
					imbalances = append(imbalances, b.Imbalance())
					imbMu.Unlock()
				}

				for step := 0; step < runSteps; step++ {
					drift(pts, rng)
					if err := b.Update(ctx, pts); err != nil {
						return err
					}
					if rank == 0 {
						imbMu.Lock()
						imbalances = append(imbalances, b.Imbalance())
						imbMu.Unlock()
					}
				}
				return nil
			}()
		}(rank, c)
	}
	wg.Wait()

	for rank, err := range errs {
		if err != nil {
			return fmt.Errorf("rank %d: %w", rank, err)
		}
	}

	printImbalances(imbalances, epsilon)
	return nil
}

// printCounts reports before/after per-worker counts.
func printCounts(title string, before, after []int) {
	bold := color.New(color.Bold)
	bold.Printf("=== %s ===\n", title)
	for w := range before {
		fmt.Printf("  worker %2d: %5d -> %5d\n", w, before[w], after[w])
	}
}

// printImbalances reports the imbalance trajectory, coloring steps
// that stayed inside the slack green and the rest yellow.
func printImbalances(imbalances []float64, epsilon float64) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	bold.Println("=== imbalance trajectory ===")
	for step, imb := range imbalances {
		label := "create"
		if step > 0 {
			label = fmt.Sprintf("update %d", step)
		}
		line := fmt.Sprintf("  %-9s imbalance = %g", label, imb)
		if imb <= 1+epsilon {
			green.Println(line)
		} else {
			yellow.Println(line)
		}
	}
}
