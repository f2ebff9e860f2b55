// Command spherecore runs the GPU sphere-collision core headlessly: bring
// up a device, generate an initial population, and advance it either for a
// fixed number of sub-steps (for smoke-testing a configuration) or forever
// at a fixed tick rate while exposing Prometheus metrics.
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/harborlight-sim/spherecore/common"
	"github.com/harborlight-sim/spherecore/core"
	"github.com/harborlight-sim/spherecore/initgen"
	"github.com/harborlight-sim/spherecore/metrics"
)

var (
	sphereCount      uint32
	boundary         float32
	gridSize         float32
	timeStep         float32
	subStepsPerFrame int
	maxRadius        float32
	minRadius        float32
	seed             int64

	subStepsOnly int
	metricsAddr  string
)

var rootCmd = &cobra.Command{
	Use:   "spherecore",
	Short: "GPU-resident rigid-sphere collision core",
	Long: `spherecore drives a uniform-grid broad phase and penalty-based
narrow phase for a population of rigid spheres entirely on the GPU,
via compute shaders: grid assignment, bitonic sort, cell-range build,
and integration, run every sub-step.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().Uint32Var(&sphereCount, "spheres", 1024, "number of spheres to simulate")
	rootCmd.Flags().Float32Var(&boundary, "boundary", 10, "half-extent of the cube container")
	rootCmd.Flags().Float32Var(&gridSize, "grid-size", 1, "uniform grid cell side length")
	rootCmd.Flags().Float32Var(&timeStep, "dt", 1.0/240.0, "sub-step Δt in seconds")
	rootCmd.Flags().IntVar(&subStepsPerFrame, "substeps-per-frame", 1, "sub-steps advanced per frame")
	rootCmd.Flags().Float32Var(&maxRadius, "max-radius", 0.5, "maximum sphere radius")
	rootCmd.Flags().Float32Var(&minRadius, "min-radius", 0.25, "minimum sphere radius")
	rootCmd.Flags().Int64Var(&seed, "seed", 0, "deterministic seed for initial population generation (0 picks one from the clock)")

	rootCmd.Flags().IntVar(&subStepsOnly, "substeps-only", 0, "run exactly N sub-steps, log a read-back summary, and exit (0 = run forever)")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve /metrics on (empty disables the metrics server)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	runSeed := common.Coalesce(seed, time.Now().UnixNano())

	cfg := core.NewConfig(
		core.WithSphereCount(sphereCount),
		core.WithBoundary(boundary),
		core.WithGridSize(gridSize),
		core.WithTimeStep(timeStep),
		core.WithSubStepsPerFrame(subStepsPerFrame),
		core.WithMaxRadius(maxRadius),
		core.WithSeed(runSeed),
	)

	var collectors *metrics.Collectors
	if metricsAddr != "" {
		collectors = metrics.NewCollectors()
		go serveMetrics(metricsAddr)
	}

	initial := initgen.Generate(cfg, minRadius)

	c, err := core.NewCore(cfg, initial, collectors)
	if err != nil {
		return fmt.Errorf("spherecore: start core: %w", err)
	}
	defer c.Release()

	if subStepsOnly > 0 {
		return runFixed(c, subStepsOnly)
	}
	return runForever(c, cfg)
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	log.Printf("serving metrics on %s/metrics", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("metrics server stopped: %v", err)
	}
}

func runFixed(c *core.Core, subSteps int) error {
	results, err := c.Advance(subSteps)
	if err != nil {
		return fmt.Errorf("spherecore: advance %d sub-steps: %w", subSteps, err)
	}

	log.Printf("[%s] ran %d sub-steps, %d results read back", c.RunID(), subSteps, len(results))
	for i, r := range results {
		if i >= 5 {
			log.Printf("... %d more", len(results)-5)
			break
		}
		log.Printf("  id=%d position=%v velocity=%v", i, r.Position, r.Velocity)
	}
	return nil
}

func runForever(c *core.Core, cfg core.Config) error {
	ticker := time.NewTicker(time.Duration(cfg.TimeStep * float32(time.Second)))
	defer ticker.Stop()

	for range ticker.C {
		if _, err := c.Advance(cfg.SubStepsPerFrame); err != nil {
			return fmt.Errorf("spherecore: advance: %w", err)
		}
	}
	return nil
}
