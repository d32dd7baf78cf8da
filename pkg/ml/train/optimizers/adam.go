// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package optimizers

import (
	"math"

	"github.com/gomlx/clr/pkg/ml/context"
)

const (
	// AdamDefaultLearningRate is used by Adam if no learning rate is set.
	AdamDefaultLearningRate = 0.001

	// ParamAdamEpsilon can be used to configure the default value of epsilon. It must be a float64.
	ParamAdamEpsilon = "adam_epsilon"

	// ParamAdamWeightDecay defaults to 0.0. See AdamConfig.WeightDecay.
	ParamAdamWeightDecay = "adam_weight_decay"

	// ParamAdamBeta1 is the moving average coefficient for the gradient (momentum), the numerator.
	// The default value is 0.9
	ParamAdamBeta1 = "adam_beta1"

	// ParamAdamBeta2 is the moving average coefficient for the variance, the denominator.
	// The default value is 0.999
	ParamAdamBeta2 = "adam_beta2"
)

// Adam optimization is a stochastic gradient descent method based on an adaptive estimation of first-order and
// second-order moments. According to [Kingma et al., 2014](http://arxiv.org/abs/1412.6980),
// the method is "*computationally efficient, has little memory requirement, invariant to diagonal rescaling of
// gradients, and is well suited for problems that are large in terms of data/parameters*".
//
// It returns a configuration object that can be used to set its parameters. Once configured, call AdamConfig.Done.
//
// See [AdamConfig.FromContext] to configure it from the context hyperparameters.
func Adam() *AdamConfig {
	return &AdamConfig{
		learningRate: AdamDefaultLearningRate,
		beta1:        0.9,
		beta2:        0.999,
		epsilon:      1e-7,
	}
}

// AdamConfig holds the configuration and the moments of an Adam optimizer.
type AdamConfig struct {
	learningRate float64
	beta1, beta2 float64
	epsilon      float64
	weightDecay  float64 // Works as AdamW.

	step                      int
	firstMoment, secondMoment []float64
}

// FromContext will configure Adam with hyperparameters set in the given context.
// E.g.: "adam_epsilon" (see [ParamAdamEpsilon]) is used to set [AdamConfig.Epsilon].
func (c *AdamConfig) FromContext(ctx *context.Context) *AdamConfig {
	c.learningRate = context.GetParamOr(ctx, ParamLearningRate, c.learningRate)
	c.epsilon = context.GetParamOr(ctx, ParamAdamEpsilon, c.epsilon)
	c.weightDecay = context.GetParamOr(ctx, ParamAdamWeightDecay, c.weightDecay)
	c.beta1 = context.GetParamOr(ctx, ParamAdamBeta1, c.beta1)
	c.beta2 = context.GetParamOr(ctx, ParamAdamBeta2, c.beta2)
	return c
}

// Betas sets the two moving averages constants (default to 0.9 and 0.999).
func (c *AdamConfig) Betas(beta1, beta2 float64) *AdamConfig {
	c.beta1, c.beta2 = beta1, beta2
	return c
}

// Epsilon used on the denominator as a small constant for stability. Default is 1e-7.
func (c *AdamConfig) Epsilon(epsilon float64) *AdamConfig {
	c.epsilon = epsilon
	return c
}

// WeightDecay configures the optimizer to work as AdamW: the decay is applied directly to the weights,
// scaled by the learning rate.
func (c *AdamConfig) WeightDecay(weightDecay float64) *AdamConfig {
	c.weightDecay = weightDecay
	return c
}

// Done returns the configured optimizer.
func (c *AdamConfig) Done() *AdamConfig {
	return c
}

// LearningRate implements LearningRateSetter.
func (c *AdamConfig) LearningRate() float64 { return c.learningRate }

// SetLearningRate implements LearningRateSetter.
func (c *AdamConfig) SetLearningRate(learningRate float64) { c.learningRate = learningRate }

// Update implements Interface.
func (c *AdamConfig) Update(params, grads []float64) error {
	if err := checkShapes(params, grads); err != nil {
		return err
	}
	if len(c.firstMoment) != len(params) {
		c.firstMoment = make([]float64, len(params))
		c.secondMoment = make([]float64, len(params))
		c.step = 0
	}
	c.step++
	debias1 := 1 - math.Pow(c.beta1, float64(c.step))
	debias2 := 1 - math.Pow(c.beta2, float64(c.step))
	for ii, g := range grads {
		c.firstMoment[ii] = c.beta1*c.firstMoment[ii] + (1-c.beta1)*g
		c.secondMoment[ii] = c.beta2*c.secondMoment[ii] + (1-c.beta2)*g*g
		m := c.firstMoment[ii] / debias1
		v := c.secondMoment[ii] / debias2
		update := m / (math.Sqrt(v) + c.epsilon)
		if c.weightDecay > 0 {
			update += c.weightDecay * params[ii]
		}
		params[ii] -= c.learningRate * update
	}
	return nil
}

// Clear implements Interface, and resets the moments.
func (c *AdamConfig) Clear() {
	c.step = 0
	c.firstMoment = nil
	c.secondMoment = nil
}
