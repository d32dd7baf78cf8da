// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package cyclicschedule implements a cyclical learning rate schedule (CLR): the learning rate
// oscillates between a base and a max value along a triangular wave, whose amplitude can decay
// over the cycles or over the iterations. See New for details, and the original paper in [1].
//
// [1] Leslie N. Smith, "Cyclical Learning Rates for Training Neural Networks", https://arxiv.org/abs/1506.01186
package cyclicschedule

import (
	"fmt"
	"math"

	"github.com/gomlx/clr/pkg/ml/context"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

const (
	// Scope used to name the schedule, e.g. in the training loop hooks.
	Scope = "cyclic_schedule"

	// ParamBaseLearningRate is the lower bound of the learning rate. Default is DefaultBaseLearningRate.
	ParamBaseLearningRate = "cyclic_schedule_base_learning_rate"

	// ParamMaxLearningRate is the upper bound of the learning rate. It is only reached if the amplitude is 1.
	// Default is DefaultMaxLearningRate.
	ParamMaxLearningRate = "cyclic_schedule_max_learning_rate"

	// ParamStepSize is the number of epochs (or steps, see ParamPerStep) in half a cycle.
	// Default is DefaultStepSize.
	ParamStepSize = "cyclic_schedule_step_size"

	// ParamMode is one of "triangular", "triangular2" or "exp_range". Default is "triangular".
	ParamMode = "cyclic_schedule_mode"

	// ParamGamma is the decay of the amplitude for "exp_range". It has no default. With "exp_range" it must be in (0, 1].
	ParamGamma = "cyclic_schedule_gamma"

	// ParamPerStep makes the schedule indexed by the global training step, instead of the epoch.
	// Default is false.
	ParamPerStep = "cyclic_schedule_per_step"
)

const (
	DefaultBaseLearningRate = 0.001
	DefaultMaxLearningRate  = 0.006
	DefaultStepSize         = 2000.0
)

// ErrInvalidConfig is returned (wrapped) by Config.Done when the configuration is invalid.
var ErrInvalidConfig = errors.New("invalid cyclic learning rate schedule configuration")

// Config of the cyclic learning rate schedule. New creates it, and once configured, call Config.Done to
// validate it and build the Schedule.
type Config struct {
	baseLR, maxLR, stepSize float64
	mode                    Mode
	scaleFn                 ScaleFn
	scaleMode               ScaleMode
	gamma                   float64
	hasGamma                bool
	perStep                 bool

	// err holds the first error found while reading the configuration from a context.
	err error
}

// New creates a configuration for a cyclic learning rate schedule, with the defaults:
// base learning rate 0.001, max learning rate 0.006, step size 2000 and ModeTriangular.
//
// When finished configuring, call Done to get the Schedule. Example:
//
//	schedule, err := cyclicschedule.New().
//		BaseLearningRate(1e-4).
//		MaxLearningRate(1e-2).
//		StepSize(8).
//		Mode(cyclicschedule.ModeTriangular2).
//		Done()
//	if err != nil { ... }
//	err = schedule.AttachToLoop(loop)
//
// Or take the hyperparameters from the context (see ParamBaseLearningRate, ParamMaxLearningRate,
// ParamStepSize, ParamMode, ParamGamma and ParamPerStep):
//
//	schedule, err := cyclicschedule.New().FromContext(ctx).Done()
func New() *Config {
	return &Config{
		baseLR:    DefaultBaseLearningRate,
		maxLR:     DefaultMaxLearningRate,
		stepSize:  DefaultStepSize,
		mode:      ModeTriangular,
		scaleMode: ScaleModeCycle,
	}
}

// FromContext configures the schedule from the context hyperparameters, for the keys that are set.
// Errors (e.g. a parameter with the wrong type) are reported by Done.
func (c *Config) FromContext(ctx *context.Context) *Config {
	err := exceptions.TryCatch[error](func() {
		c.baseLR = context.GetParamOr(ctx, ParamBaseLearningRate, c.baseLR)
		c.maxLR = context.GetParamOr(ctx, ParamMaxLearningRate, c.maxLR)
		c.stepSize = context.GetParamOr(ctx, ParamStepSize, c.stepSize)
		c.mode = context.GetParamOr(ctx, ParamMode, c.mode)
		c.perStep = context.GetParamOr(ctx, ParamPerStep, c.perStep)
		if value, found := ctx.GetParam(ParamGamma); found && value != nil {
			c.Gamma(context.MustGetParam[float64](ctx, ParamGamma))
		}
	})
	if err != nil && c.err == nil {
		c.err = errors.Wrapf(ErrInvalidConfig, "reading hyperparameters from context scope %q: %v", ctx.Scope(), err)
	}
	return c
}

// BaseLearningRate sets the lower bound of the learning rate. Default is 0.001.
func (c *Config) BaseLearningRate(baseLR float64) *Config {
	c.baseLR = baseLR
	return c
}

// MaxLearningRate sets the upper bound of the learning rate. It must be >= the base learning rate.
// Default is 0.006.
func (c *Config) MaxLearningRate(maxLR float64) *Config {
	c.maxLR = maxLR
	return c
}

// StepSize sets the number of epochs (or iterations) in half a cycle. It must be > 0.
// The CLR paper recommends 2 to 8 times the number of iterations per epoch. Default is 2000.
func (c *Config) StepSize(stepSize float64) *Config {
	c.stepSize = stepSize
	return c
}

// Mode selects the built-in amplitude function. It is ignored if a ScaleFn is set. Default is ModeTriangular.
func (c *Config) Mode(mode Mode) *Config {
	c.mode = mode
	return c
}

// ScaleFn sets a custom amplitude function, evaluated on the cycle number or on the iteration, according
// to scaleMode. It takes precedence over Mode. Setting it to nil restores the use of Mode.
func (c *Config) ScaleFn(fn ScaleFn, scaleMode ScaleMode) *Config {
	c.scaleFn = fn
	c.scaleMode = scaleMode
	return c
}

// Gamma sets the decay base of ModeExpRange: the amplitude is gamma^iteration. It has no default: it is
// required by ModeExpRange, and ignored by the other modes.
//
// With ModeExpRange it must be in (0, 1]: a gamma > 1 would grow the amplitude without bound, so it is
// rejected by Done.
func (c *Config) Gamma(gamma float64) *Config {
	c.gamma = gamma
	c.hasGamma = true
	return c
}

// PerStep makes the schedule be indexed by the global training step instead of the epoch, when attached
// to a training loop. The step size is then given in steps.
func (c *Config) PerStep(perStep bool) *Config {
	c.perStep = perStep
	return c
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

func (c *Config) validate() error {
	if c.err != nil {
		return c.err
	}
	if !isFinite(c.stepSize) || c.stepSize <= 0 || math.IsInf(1/c.stepSize, 0) {
		return errors.Wrapf(ErrInvalidConfig, "step size must be a finite value > 0 with a finite inverse, got %g",
			c.stepSize)
	}
	if !isFinite(c.baseLR) || !isFinite(c.maxLR) {
		return errors.Wrapf(ErrInvalidConfig, "learning rates must be finite, got base=%g, max=%g", c.baseLR, c.maxLR)
	}
	if c.maxLR < c.baseLR {
		return errors.Wrapf(ErrInvalidConfig, "max learning rate (%g) must be >= base learning rate (%g)",
			c.maxLR, c.baseLR)
	}
	if c.scaleFn != nil {
		if !c.scaleMode.IsAScaleMode() {
			return errors.Wrapf(ErrInvalidConfig, "unknown scale mode %s, valid values are %q",
				c.scaleMode, ScaleModeStrings())
		}
		return nil
	}
	if !c.mode.IsAMode() {
		return errors.Wrapf(ErrInvalidConfig, "unknown mode %s, valid values are %q", c.mode, ModeStrings())
	}
	if c.mode == ModeExpRange {
		if !c.hasGamma {
			return errors.Wrapf(ErrInvalidConfig, "mode %s requires gamma to be set", c.mode)
		}
		if !(c.gamma > 0 && c.gamma <= 1) {
			return errors.Wrapf(ErrInvalidConfig, "mode %s requires gamma in the range (0, 1], got %g",
				c.mode, c.gamma)
		}
	}
	return nil
}

// Done validates the configuration, resolves the amplitude function and returns the Schedule.
// Later changes to the Config don't affect the returned Schedule.
//
// Errors wrap ErrInvalidConfig.
func (c *Config) Done() (*Schedule, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	s := &Schedule{
		baseLR:   c.baseLR,
		maxLR:    c.maxLR,
		stepSize: c.stepSize,
		mode:     c.mode,
		gamma:    c.gamma,
		hasGamma: c.hasGamma,
		perStep:  c.perStep,
	}
	if c.scaleFn != nil {
		s.custom = true
		s.scaleFn = c.scaleFn
		s.scaleMode = c.scaleMode
		return s, nil
	}
	switch c.mode {
	case ModeTriangular:
		s.scaleFn, s.scaleMode = ConstantScale, ScaleModeCycle
	case ModeTriangular2:
		s.scaleFn, s.scaleMode = HalvingScale, ScaleModeCycle
	case ModeExpRange:
		s.scaleFn, s.scaleMode = ExponentialScale(c.gamma), ScaleModeIterations
	}
	return s, nil
}

// MustDone is like Done, but panics (with exceptions.Panicf) if the configuration is invalid.
func (c *Config) MustDone() *Schedule {
	s, err := c.Done()
	if err != nil {
		exceptions.Panicf("cyclicschedule: %+v", err)
	}
	return s
}

// Schedule is a resolved cyclic learning rate schedule. It is immutable, and safe for concurrent use.
type Schedule struct {
	baseLR, maxLR, stepSize float64
	mode                    Mode
	custom                  bool
	scaleFn                 ScaleFn
	scaleMode               ScaleMode
	gamma                   float64
	hasGamma                bool
	perStep                 bool
}

// Cycle returns the cycle number of the epoch, starting at 1.
func (s *Schedule) Cycle(epoch float64) float64 {
	return math.Floor(1 + epoch/(2*s.stepSize))
}

// Amplitude returns the scale applied to the distance between the base and max learning rates at the given epoch.
func (s *Schedule) Amplitude(epoch float64) float64 {
	if s.scaleMode == ScaleModeIterations {
		return s.scaleFn(epoch)
	}
	return s.scaleFn(s.Cycle(epoch))
}

// LearningRate returns the learning rate for the epoch (or iteration). It has no side effects.
func (s *Schedule) LearningRate(epoch float64) float64 {
	cycle := s.Cycle(epoch)
	x := math.Abs(epoch/s.stepSize - 2*cycle + 1)
	return s.baseLR + (s.maxLR-s.baseLR)*math.Max(0, 1-x)*s.Amplitude(epoch)
}

// LearningRateAt returns the learning rate of the schedule for an integer or float epoch.
func LearningRateAt[E constraints.Integer | constraints.Float](s *Schedule, epoch E) float64 {
	return s.LearningRate(float64(epoch))
}

// Func returns the schedule as a function, for the training loop or plotting tools.
func (s *Schedule) Func() func(epoch float64) float64 {
	return s.LearningRate
}

// MaxSamples is the maximum number of points returned by Schedule.Sample.
const MaxSamples = 1_000_000

// Sample returns the epochs from `from` to `to` (inclusive), every `every` epochs, and their learning rates.
// It returns an error if every <= 0, to < from, or if it would return more than MaxSamples points.
func (s *Schedule) Sample(from, to, every float64) (epochs, learningRates []float64, err error) {
	if !(every > 0) || !isFinite(from) || !isFinite(to) {
		return nil, nil, errors.Errorf("Schedule.Sample(from=%g, to=%g, every=%g): every must be > 0 and bounds finite",
			from, to, every)
	}
	if to < from {
		return nil, nil, errors.Errorf("Schedule.Sample(from=%g, to=%g): to must be >= from", from, to)
	}
	count := math.Floor((to-from)/every) + 1
	if !(count <= MaxSamples) {
		return nil, nil, errors.Errorf("Schedule.Sample(from=%g, to=%g, every=%g): %g points exceeds the maximum of %d",
			from, to, every, count, MaxSamples)
	}
	n := int(count)
	epochs = make([]float64, 0, n)
	learningRates = make([]float64, 0, n)
	for ii := range n {
		epoch := from + float64(ii)*every
		epochs = append(epochs, epoch)
		learningRates = append(learningRates, s.LearningRate(epoch))
	}
	return epochs, learningRates, nil
}

// BaseLearningRate of the schedule.
func (s *Schedule) BaseLearningRate() float64 { return s.baseLR }

// MaxLearningRate of the schedule.
func (s *Schedule) MaxLearningRate() float64 { return s.maxLR }

// StepSize of the schedule: the number of epochs (or iterations) in half a cycle.
func (s *Schedule) StepSize() float64 { return s.stepSize }

// Mode of the schedule. It is not used if the schedule has a custom scale function.
func (s *Schedule) Mode() Mode { return s.mode }

// ScaleMode resolved for the schedule.
func (s *Schedule) ScaleMode() ScaleMode { return s.scaleMode }

// HasCustomScaleFn returns whether the schedule uses a ScaleFn given with Config.ScaleFn.
func (s *Schedule) HasCustomScaleFn() bool { return s.custom }

// Gamma returns the value of gamma, and whether it was set.
func (s *Schedule) Gamma() (gamma float64, ok bool) { return s.gamma, s.hasGamma }

// PerStep returns whether the schedule is indexed by the global training step, instead of the epoch.
func (s *Schedule) PerStep() bool { return s.perStep }

// String implements fmt.Stringer.
func (s *Schedule) String() string {
	name := s.mode.String()
	if s.custom {
		name = "custom(" + s.scaleMode.String() + ")"
	} else if s.mode == ModeExpRange {
		name = fmt.Sprintf("%s(gamma=%g)", name, s.gamma)
	}
	unit := "epochs"
	if s.perStep {
		unit = "steps"
	}
	return fmt.Sprintf("cyclic schedule %s: base=%g, max=%g, step size=%g %s", name, s.baseLR, s.maxLR, s.stepSize, unit)
}
