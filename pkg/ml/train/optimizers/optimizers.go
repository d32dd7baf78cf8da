// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package optimizers implements host-side gradient descent optimizers over flat []float64 parameters,
// and the contract used by learning rate schedules to drive them.
package optimizers

import (
	"slices"

	"github.com/gomlx/clr/pkg/ml/context"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
)

// Interface implemented by optimizer implementations.
type Interface interface {
	// Update applies one optimization step to params, given their gradients. Both slices must have
	// the same length, and params is updated in place.
	Update(params, grads []float64) error

	// Clear resets any internal state (moments, step counters) kept by the optimizer.
	Clear()
}

// LearningRateSetter is implemented by optimizers that expose a settable learning rate.
//
// Learning rate schedules (see train.AttachLearningRateScheduler) require the trainer's optimizer
// to implement it.
type LearningRateSetter interface {
	// LearningRate currently used by the optimizer.
	LearningRate() float64

	// SetLearningRate to be used from the next Update on.
	SetLearningRate(learningRate float64)
}

var (
	// KnownOptimizers is a map of known optimizers by name to their default constructors.
	KnownOptimizers = map[string]func(ctx *context.Context) Interface{
		"sgd":  func(ctx *context.Context) Interface { return StochasticGradientDescent().FromContext(ctx).Done() },
		"adam": func(ctx *context.Context) Interface { return Adam().FromContext(ctx).Done() },
	}

	// ParamOptimizer is the context parameter with the name of the optimizer.
	// The default value is "sgd", and the valid values are "sgd" and "adam".
	ParamOptimizer = "optimizer"

	// ParamLearningRate is the context parameter name for the default value of learning rate.
	// It is used by all optimizers.
	ParamLearningRate = "learning_rate"
)

// FromContext creates an optimizer from context hyperparameters.
// See [ParamOptimizer]. The default is "sgd".
func FromContext(ctx *context.Context) (Interface, error) {
	optName := context.GetParamOr(ctx, ParamOptimizer, "sgd")
	return ByName(ctx, optName)
}

// ByName returns an optimizer given the name, or an error if one does not exist.
// It uses KnownOptimizers.
func ByName(ctx *context.Context, optName string) (Interface, error) {
	optBuilder, found := KnownOptimizers[optName]
	if !found {
		names := maps.Keys(KnownOptimizers)
		slices.Sort(names)
		return nil, errors.Errorf("unknown optimizer %q, valid values are %q", optName, names)
	}
	return optBuilder(ctx), nil
}

// checkShapes used by all optimizers' Update.
func checkShapes(params, grads []float64) error {
	if len(params) != len(grads) {
		return errors.Errorf("optimizer got %d params but %d gradients", len(params), len(grads))
	}
	return nil
}
