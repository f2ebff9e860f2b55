// Package core wires the GPU device, buffer manager, and compute stages
// together into the sub-step state machine: Assign -> Sort -> CellClear ->
// CellBuild -> Integrate, looped once per sub-step requested from Advance.
package core

import (
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/harborlight-sim/spherecore/buffers"
	"github.com/harborlight-sim/spherecore/gpu"
	"github.com/harborlight-sim/spherecore/metrics"
	"github.com/harborlight-sim/spherecore/model"
	"github.com/harborlight-sim/spherecore/stages"
)

// Core owns one simulation run: a device, its five buffers, and the four
// registered compute stages driven in sequence every sub-step.
type Core struct {
	runID  string
	config Config

	dev     gpu.Device
	buffers *buffers.Manager

	assign     stages.GridAssignmentStage
	sort       stages.BitonicSortStage
	cellRanges stages.CellRangeBuilderStage
	integrate  stages.IntegrationStage

	profiler *Profiler
	metrics  *metrics.Collectors
}

// NewCore brings up a headless GPU device, validates cfg, registers every
// compute pipeline, and uploads the initial instance array. The returned
// Core is ready for Advance.
func NewCore(cfg Config, initialInstances []model.Instance, collectors *metrics.Collectors) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dev, err := gpu.NewDevice(false)
	if err != nil {
		return nil, &ResourceError{Op: "request device", Err: err}
	}

	c := &Core{
		runID:      uuid.NewString(),
		config:     cfg,
		dev:        dev,
		buffers:    buffers.NewManager(dev),
		assign:     stages.NewGridAssignmentStage(),
		sort:       stages.NewBitonicSortStage(),
		cellRanges: stages.NewCellRangeBuilderStage(),
		integrate:  stages.NewIntegrationStage(),
		profiler:   NewProfiler(),
		metrics:    collectors,
	}

	if err := c.registerStages(); err != nil {
		dev.Release()
		return nil, err
	}

	if err := c.buffers.Init(buffersParams(cfg), initialInstances); err != nil {
		dev.Release()
		return nil, &ResourceError{Op: "init buffers", Err: err}
	}

	if collectors != nil {
		collectors.ActiveSpheres.Set(float64(cfg.SphereCount))
	}

	log.Printf("[%s] core ready: spheres=%d grid=%d^3 substeps/frame=%d",
		c.runID, cfg.SphereCount, cfg.GridCount(), cfg.SubStepsPerFrame)

	return c, nil
}

func buffersParams(cfg Config) buffers.Params {
	return buffers.Params{
		TimeStep:    cfg.TimeStep,
		Boundary:    cfg.Boundary,
		GridSize:    cfg.GridSize,
		PaddedCount: cfg.PaddedSphereCount(),
		TotalCells:  cfg.TotalCells(),
	}
}

func (c *Core) registerStages() error {
	if err := c.assign.Register(c.dev); err != nil {
		return &ResourceError{Op: "register grid-assignment pipeline", Err: err}
	}
	if err := c.sort.Register(c.dev); err != nil {
		return &ResourceError{Op: "register bitonic-sort pipeline", Err: err}
	}
	if err := c.cellRanges.Register(c.dev); err != nil {
		return &ResourceError{Op: "register cell-range-builder pipeline", Err: err}
	}
	if err := c.integrate.Register(c.dev); err != nil {
		return &ResourceError{Op: "register integrate pipeline", Err: err}
	}
	return nil
}

// RunID returns the run's stable identity, used as the log/metrics label.
func (c *Core) RunID() string { return c.runID }

// Advance drives subSteps sub-steps through the full stage sequence. After
// every sub-step it reads back the Results buffer, scans it for
// instability, and reseeds any offending instance; it returns the results
// read back after the last sub-step.
func (c *Core) Advance(subSteps int) ([]model.Result, error) {
	providers := c.buffers.Providers()
	paddedCount := c.buffers.PaddedCount()
	totalCells := c.buffers.TotalCells()

	var results []model.Result
	for step := 0; step < subSteps; step++ {
		start := time.Now()
		if err := c.assign.Dispatch(c.dev, providers, paddedCount); err != nil {
			return nil, &ResourceError{Op: "dispatch grid-assignment", Err: err}
		}
		c.observe("assign", time.Since(start))

		start = time.Now()
		if err := c.sort.Dispatch(c.dev, providers, paddedCount); err != nil {
			return nil, &ResourceError{Op: "dispatch bitonic-sort", Err: err}
		}
		c.observe("sort", time.Since(start))

		start = time.Now()
		if err := c.cellRanges.Dispatch(c.dev, providers, totalCells, paddedCount); err != nil {
			return nil, &ResourceError{Op: "dispatch cell-range-builder", Err: err}
		}
		c.observe("cell-ranges", time.Since(start))

		start = time.Now()
		if err := c.integrate.Dispatch(c.dev, providers, paddedCount); err != nil {
			return nil, &ResourceError{Op: "dispatch integrate", Err: err}
		}
		c.observe("integrate", time.Since(start))

		c.profiler.Tick(c.runID)

		var err error
		results, err = c.buffers.ReadBackResults()
		if err != nil {
			return nil, err
		}

		if err := c.handleInstability(results); err != nil {
			return results, err
		}
	}

	return results, nil
}

func (c *Core) observe(stage string, dur time.Duration) {
	if c.metrics == nil {
		return
	}
	c.metrics.DispatchTotal.WithLabelValues(stage).Inc()
	c.metrics.SubStepDuration.WithLabelValues(stage).Observe(dur.Seconds())
}

// handleInstability scans results for NaN/Inf and reseeds every offending
// instance in place at the origin with zero velocity, so a single diverging
// sphere cannot poison the rest of the run.
func (c *Core) handleInstability(results []model.Result) error {
	offenders := ScanForInstability(results)
	if len(offenders) == 0 {
		return nil
	}

	instances, err := c.buffers.ReadBackInstances()
	if err != nil {
		return err
	}

	if c.metrics != nil {
		c.metrics.InstabilityTotal.Add(float64(len(offenders)))
	}

	for _, offense := range offenders {
		log.Printf("[%s] instability detected: instance %d field %s", c.runID, offense.InstanceID, offense.Field)

		slot := slotForID(instances, offense.InstanceID)
		if slot < 0 {
			continue
		}
		if err := c.buffers.ReseedInstance(uint32(slot), [3]float32{0, 0, 0}, [3]float32{0, 0, 0}); err != nil {
			return err
		}
		if c.metrics != nil {
			c.metrics.ReseedTotal.Inc()
		}
	}

	return nil
}

func slotForID(instances []model.Instance, id uint32) int {
	for i, inst := range instances {
		if inst.Id == id {
			return i
		}
	}
	return -1
}

// Rebuild tears down and recreates the device, every pipeline, and every
// buffer from scratch, reuploading initialInstances. Advance does not
// detect device loss, so the caller decides when to call Rebuild.
func (c *Core) Rebuild(initialInstances []model.Instance) error {
	c.buffers.Release()
	c.dev.Release()

	dev, err := gpu.NewDevice(false)
	if err != nil {
		return &ResourceError{Op: "request device", Err: err}
	}
	c.dev = dev
	c.buffers = buffers.NewManager(dev)

	if err := c.registerStages(); err != nil {
		return err
	}
	if err := c.buffers.Init(buffersParams(c.config), initialInstances); err != nil {
		return &ResourceError{Op: "init buffers", Err: err}
	}

	log.Printf("[%s] core rebuilt after device loss", c.runID)
	return nil
}

// Release tears down the buffers and the GPU device.
func (c *Core) Release() {
	c.buffers.Release()
	c.dev.Release()
}
