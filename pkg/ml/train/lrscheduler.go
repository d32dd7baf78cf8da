// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package train

import (
	"math"

	"github.com/gomlx/clr/pkg/ml/train/optimizers"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ErrNoLearningRate is returned when attaching a learning rate schedule to a Loop whose trainer's
// optimizer doesn't expose a learning rate (see optimizers.LearningRateSetter).
var ErrNoLearningRate = errors.New("optimizer must expose a settable learning rate")

// LearningRateKey is the Loop.SharedData key where the learning rate schedulers publish the
// last learning rate set, as a float64.
const LearningRateKey = "learning_rate"

// LearningRateFn returns the learning rate for the given index: the epoch, or the global step
// if the schedule is applied per step.
type LearningRateFn func(index float64) float64

type lrScheduler struct {
	name   string
	fn     LearningRateFn
	setter optimizers.LearningRateSetter
}

func (s *lrScheduler) set(loop *Loop, index int) error {
	lr := s.fn(float64(index))
	if math.IsNaN(lr) || math.IsInf(lr, 0) {
		return errors.Errorf("learning rate schedule %q returned an invalid learning rate %g for index %d",
			s.name, lr, index)
	}
	previous := s.setter.LearningRate()
	s.setter.SetLearningRate(lr)
	loop.SharedData[LearningRateKey] = lr
	if klog.V(2).Enabled() && previous != lr {
		klog.Infof("Learning rate changed from %g to %g", previous, lr)
	}
	return nil
}

func (s *lrScheduler) onEpochBegin(loop *Loop, epoch int) error {
	if err := s.set(loop, epoch); err != nil {
		return err
	}
	klog.Infof("Epoch %05d: Learning rate is %6.4f.", epoch, s.setter.LearningRate())
	return nil
}

func (s *lrScheduler) onStart(loop *Loop, _ Dataset) error {
	return s.set(loop, loop.LoopStep)
}

// onStep sets the learning rate for the next step: LoopStep is only incremented after the hooks.
func (s *lrScheduler) onStep(loop *Loop, _ []float64) error {
	if err := s.set(loop, loop.LoopStep+1); err != nil {
		return err
	}
	klog.V(2).Infof("Step %07d: Learning rate is %6.4f.", loop.LoopStep+1, s.setter.LearningRate())
	return nil
}

// AttachLearningRateScheduler attaches the learning rate function fn to the loop.
//
// By default (perStep=false) the learning rate is set before each epoch begins (only Loop.RunEpochs has
// epochs), indexed by the epoch number, and logged once per epoch. If perStep is true, it is indexed by
// the global step (Loop.LoopStep), and set at the start of the loop and after every step.
//
// The loop trainer's optimizer must implement optimizers.LearningRateSetter, otherwise it fails
// immediately with ErrNoLearningRate.
func AttachLearningRateScheduler(loop *Loop, name string, fn LearningRateFn, perStep bool) error {
	if fn == nil {
		return errors.Errorf("AttachLearningRateScheduler(%q): nil learning rate function", name)
	}
	if loop.Trainer == nil {
		return errors.Wrapf(ErrNoLearningRate, "AttachLearningRateScheduler(%q): loop has no trainer", name)
	}
	opt := loop.Trainer.Optimizer()
	setter, ok := opt.(optimizers.LearningRateSetter)
	if !ok {
		return errors.Wrapf(ErrNoLearningRate, "AttachLearningRateScheduler(%q): optimizer %T", name, opt)
	}
	s := &lrScheduler{name: name, fn: fn, setter: setter}
	if perStep {
		loop.OnStart(name, 0, s.onStart)
		loop.OnStep(name, 0, s.onStep)
		return nil
	}
	loop.OnEpochBegin(name, 0, s.onEpochBegin)
	return nil
}
