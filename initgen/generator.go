// Package initgen builds the initial instance array a Core uploads at
// startup: one random position/velocity/radius per sphere, generated in
// parallel chunks across a worker pool the way the teacher engine preps
// per-frame animator work, except here it runs once before the first
// upload rather than every frame.
package initgen

import (
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/harborlight-sim/spherecore/core"
	"github.com/harborlight-sim/spherecore/model"
)

// chunkSize is the number of instances generated per submitted task; small
// enough that cfg.SphereCount in the low thousands still fans out across
// every worker, large enough that per-task overhead stays negligible.
const chunkSize = 256

// Generate produces cfg.SphereCount instances with stable ids 0..SphereCount-1,
// uniformly random positions inside the cube
// [-boundary+radius, boundary-radius]^3 for each instance's own radius,
// velocities with a random direction and a speed uniform in [0, 2), and
// radii uniform in [minRadius, cfg.MaxRadius]. Generation is
// deterministic for a given cfg.Seed and is split across runtime.NumCPU()-1
// workers (minimum 1), matching the teacher's frame-prep pool sizing.
func Generate(cfg core.Config, minRadius float32) []model.Instance {
	instances := make([]model.Instance, cfg.SphereCount)

	workers := runtime.NumCPU() - 1
	if workers < 1 {
		workers = 1
	}
	pool := worker.NewDynamicWorkerPool(workers, 256, time.Second)

	var wg sync.WaitGroup
	taskID := 0
	for start := uint32(0); start < cfg.SphereCount; start += chunkSize {
		end := start + chunkSize
		if end > cfg.SphereCount {
			end = cfg.SphereCount
		}

		wg.Add(1)
		chunkStart, chunkEnd := start, end
		id := taskID
		taskID++
		pool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				rng := rand.New(rand.NewSource(cfg.Seed + int64(chunkStart)))
				for i := chunkStart; i < chunkEnd; i++ {
					instances[i] = randomInstance(rng, i, cfg.Boundary, minRadius, cfg.MaxRadius)
				}
				return nil, nil
			},
		})
	}
	wg.Wait()

	return instances
}

// randomInstance draws one instance's radius, position, and velocity from
// rng. Position is clamped inward by the instance's own radius so no sphere
// starts already overlapping the boundary.
func randomInstance(rng *rand.Rand, id uint32, boundary, minRadius, maxRadius float32) model.Instance {
	radius := minRadius + rng.Float32()*(maxRadius-minRadius)
	extent := boundary - radius

	position := mgl32.Vec3{
		(rng.Float32()*2 - 1) * extent,
		(rng.Float32()*2 - 1) * extent,
		(rng.Float32()*2 - 1) * extent,
	}

	direction := mgl32.Vec3{rng.Float32()*2 - 1, rng.Float32()*2 - 1, rng.Float32()*2 - 1}
	if direction.Len() > 1e-6 {
		direction = direction.Normalize()
	}
	speed := rng.Float32() * 2
	velocity := direction.Mul(speed)

	return model.Instance{
		Id:        id,
		Radius:    radius,
		CellIndex: 0,
		Position:  [3]float32{position.X(), position.Y(), position.Z()},
		Velocity:  [3]float32{velocity.X(), velocity.Y(), velocity.Z()},
	}
}
