// Package gait produces foot trajectories and sequences them into a trot.
package gait

import "sync"

// Trajectory holds a closed foot path as parallel coordinate rows: X forward,
// Z lateral, Y vertical (negative is below the hip), all in cm.
type Trajectory struct {
	X, Z, Y []float64
}

// Len returns the number of points on the path.
func (t Trajectory) Len() int { return len(t.X) }

// Scaled returns a copy with each coordinate row multiplied by the momentum
// components, which is how the dispatch command steers the gait.
func (t Trajectory) Scaled(mx, mz, my float64) Trajectory {
	out := Trajectory{
		X: make([]float64, len(t.X)),
		Z: make([]float64, len(t.Z)),
		Y: make([]float64, len(t.Y)),
	}
	for i := range t.X {
		out.X[i] = t.X[i] * mx
		out.Z[i] = t.Z[i] * mz
		out.Y[i] = t.Y[i] * my
	}
	return out
}

// Generator builds the step/slide trajectory at a given resolution and caches
// it; the path is fixed per run and scaling happens per command.
type Generator struct {
	resolution int

	mu     sync.Mutex
	cached *Trajectory
}

// NewGenerator creates a Generator with the given points per phase.
func NewGenerator(resolution int) *Generator {
	if resolution < 2 {
		resolution = 2
	}
	return &Generator{resolution: resolution}
}

// Control points of the swing phase (cubic Bezier): the foot lifts from the
// back of the stride, arcs forward, and lands at the front. The stance phase
// is a straight slide back along the ground line at y = -15.
var (
	stepNodesX = [4]float64{-1.0, -1.0, 1.0, 1.0}
	stepNodesZ = [4]float64{-1.0, -1.0, 1.0, 1.0}
	stepNodesY = [4]float64{-15.0, -10.0, -10.0, -15.0}

	slideFrom = [3]float64{1.0, 1.0, -15.0}
	slideTo   = [3]float64{-1.0, -1.0, -15.0}
)

// Generate returns the combined swing+stance trajectory. The result is cached;
// callers must not mutate it and should use Scaled instead.
func (g *Generator) Generate() Trajectory {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cached != nil {
		return *g.cached
	}

	n := g.resolution
	traj := Trajectory{
		X: make([]float64, 0, 2*n),
		Z: make([]float64, 0, 2*n),
		Y: make([]float64, 0, 2*n),
	}
	for i := 0; i < n; i++ {
		s := float64(i) / float64(n-1)
		traj.X = append(traj.X, cubicBezier(stepNodesX, s))
		traj.Z = append(traj.Z, cubicBezier(stepNodesZ, s))
		traj.Y = append(traj.Y, cubicBezier(stepNodesY, s))
	}
	for i := 0; i < n; i++ {
		s := float64(i) / float64(n-1)
		traj.X = append(traj.X, lerp(slideFrom[0], slideTo[0], s))
		traj.Z = append(traj.Z, lerp(slideFrom[1], slideTo[1], s))
		traj.Y = append(traj.Y, lerp(slideFrom[2], slideTo[2], s))
	}

	g.cached = &traj
	return traj
}

func cubicBezier(p [4]float64, t float64) float64 {
	u := 1 - t
	return u*u*u*p[0] + 3*u*u*t*p[1] + 3*u*t*t*p[2] + t*t*t*p[3]
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }
