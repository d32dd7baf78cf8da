// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package optimizers

import "github.com/gomlx/clr/pkg/ml/context"

// SGDDefaultLearningRate is the default learning rate used by the StochasticGradientDescent optimizer.
const SGDDefaultLearningRate = 0.1

// ParamSGDMomentum is the context parameter for the momentum of StochasticGradientDescent. Default is 0.
const ParamSGDMomentum = "sgd_momentum"

// SGDConfig implements a Stochastic Gradient Descent optimizer, with optional momentum.
type SGDConfig struct {
	learningRate float64
	momentum     float64
	velocity     []float64
}

// StochasticGradientDescent creates an optimizer that performs SGD, with learning rate
// SGDDefaultLearningRate and no momentum.
func StochasticGradientDescent() *SGDConfig {
	return &SGDConfig{
		learningRate: SGDDefaultLearningRate,
	}
}

// FromContext reads ParamLearningRate and ParamSGDMomentum, if set.
func (sgd *SGDConfig) FromContext(ctx *context.Context) *SGDConfig {
	sgd.learningRate = context.GetParamOr(ctx, ParamLearningRate, sgd.learningRate)
	sgd.momentum = context.GetParamOr(ctx, ParamSGDMomentum, sgd.momentum)
	return sgd
}

// WithLearningRate sets the initial learning rate. The default value is SGDDefaultLearningRate.
//
// It returns itself to allow chaining.
func (sgd *SGDConfig) WithLearningRate(learningRate float64) *SGDConfig {
	sgd.learningRate = learningRate
	return sgd
}

// WithMomentum sets the momentum. 0 (the default) disables it.
func (sgd *SGDConfig) WithMomentum(momentum float64) *SGDConfig {
	sgd.momentum = momentum
	return sgd
}

// Done returns the configured optimizer.
// It's a no-op since SGDConfig itself implements Interface, but it keeps it consistent with
// the builder pattern.
func (sgd *SGDConfig) Done() *SGDConfig {
	return sgd
}

// LearningRate implements LearningRateSetter.
func (sgd *SGDConfig) LearningRate() float64 { return sgd.learningRate }

// SetLearningRate implements LearningRateSetter.
func (sgd *SGDConfig) SetLearningRate(learningRate float64) { sgd.learningRate = learningRate }

// Update implements Interface.
func (sgd *SGDConfig) Update(params, grads []float64) error {
	if err := checkShapes(params, grads); err != nil {
		return err
	}
	if sgd.momentum == 0 {
		for ii, g := range grads {
			params[ii] -= sgd.learningRate * g
		}
		return nil
	}
	if len(sgd.velocity) != len(params) {
		sgd.velocity = make([]float64, len(params))
	}
	for ii, g := range grads {
		sgd.velocity[ii] = sgd.momentum*sgd.velocity[ii] + g
		params[ii] -= sgd.learningRate * sgd.velocity[ii]
	}
	return nil
}

// Clear implements Interface, and resets the momentum.
func (sgd *SGDConfig) Clear() {
	sgd.velocity = nil
}
