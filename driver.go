package packing

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// StepEngine is the tagged-variant interface shared by every generation
// algorithm (§9): the driver below is written against this interface only,
// so LSStep, RelaxationStep, and ClosestJammingStep are interchangeable.
type StepEngine interface {
	SetParticles(packing *Packing)
	SetGenerationConfig(cfg GenerationConfig)
	// Displace advances the packing by one iteration. A returned
	// ErrorKindConvergenceFailure is fatal to the current task; any other
	// error kind should not occur here and is also treated as fatal.
	Displace() error
	ShouldContinue() bool
	InnerRatio() float64
	OuterRatio() float64
	IsOuterChanging() bool
	CanOvercomeTheoreticalDensity() bool
	Reset()
}

// MaxIterations bounds a Driver.Run call even if a step engine's
// ShouldContinue never naturally goes false, e.g. a misconfigured target
// density no algorithm variant can reach.
const MaxIterations = 2_000_000

// Driver runs a StepEngine to completion, threading a per-task identifier
// through the logger so concurrent tasks' log lines stay distinguishable,
// and assembling the PackingInfo the caller persists alongside the finished
// packing. It does not read or report an engine's PackingStatistics.
type Driver struct {
	TaskID uuid.UUID
	Config GenerationConfig
	Logger Logger

	engine  StepEngine
	packing *Packing
}

func NewDriver(engine StepEngine, cfg GenerationConfig, logger Logger) *Driver {
	if logger == nil {
		logger = NewNopLogger()
	}
	id := uuid.New()
	return &Driver{
		TaskID: id,
		Config: cfg,
		Logger: logger.With("task", id.String()),
		engine: engine,
	}
}

// Run drives the step engine from the given starting packing until either
// ShouldContinue reports false or MaxIterations is reached, returning
// PackingInfo describing the outcome. A convergence failure from the engine
// unwinds this task only; it never panics and never touches package-level
// state shared with other tasks.
func (d *Driver) Run(packing *Packing) (PackingInfo, error) {
	start := time.Now()
	d.packing = packing
	d.engine.SetGenerationConfig(d.Config)
	d.engine.SetParticles(packing)

	theoreticalPorosity := 1 - d.Config.TargetDensity
	info := PackingInfo{
		TheoreticalPorosity: theoreticalPorosity,
		Tolerance:           1e-6,
	}

	d.Logger.Info("generation started", "algorithm", d.Config.Algorithm.String(), "particles", packing.Len())

	for iteration := 0; d.engine.ShouldContinue() && iteration < MaxIterations; iteration++ {
		if err := d.engine.Displace(); err != nil {
			info.WallTime = time.Since(start)
			d.Logger.Error("step engine failed", "iteration", iteration, "err", err)
			return info, err
		}
		info.Iterations = iteration + 1

		if d.Config.StepsToWrite > 0 && info.Iterations%d.Config.StepsToWrite == 0 {
			d.Logger.Debug("progress",
				"iteration", info.Iterations,
				"inner", d.engine.InnerRatio(),
				"outer", d.engine.OuterRatio())
		}
	}

	info.AchievedPorosity = d.achievedPorosity()
	info.WallTime = time.Since(start)
	d.Logger.Info("generation finished",
		"iterations", info.Iterations,
		"achievedPorosity", info.AchievedPorosity,
		"theoreticalPorosity", info.TheoreticalPorosity)

	return info, nil
}

// achievedPorosity integrates particle volumes scaled to the engine's final
// inner diameter ratio against the domain volume (§6).
func (d *Driver) achievedPorosity() float64 {
	ratio := d.engine.InnerRatio()
	solidVolume := 0.0
	for i := 0; i < d.packing.Len(); i++ {
		particle := d.packing.Get(ParticleIndex(i))
		radius := particle.Diameter * ratio / 2
		solidVolume += sphereVolume(radius)
	}
	domainVolume := d.Config.Domain().Volume()
	if domainVolume <= 0 {
		return 0
	}
	return 1 - solidVolume/domainVolume
}

func sphereVolume(radius float64) float64 {
	return (4.0 / 3.0) * math.Pi * radius * radius * radius
}
