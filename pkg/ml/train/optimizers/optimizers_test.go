// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package optimizers_test

import (
	"testing"

	"github.com/gomlx/clr/pkg/ml/context"
	"github.com/gomlx/clr/pkg/ml/train/optimizers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
)

func init() {
	klog.InitFlags(nil)
}

// minimize f(x) = (x-3)^2 starting from 0.
func minimizeSquare(t *testing.T, opt optimizers.Interface, steps int) float64 {
	params := []float64{0}
	for range steps {
		grads := []float64{2 * (params[0] - 3)}
		require.NoError(t, opt.Update(params, grads))
	}
	return params[0]
}

func TestSGD(t *testing.T) {
	sgd := optimizers.StochasticGradientDescent().WithLearningRate(0.1).Done()
	assert.InDelta(t, 3.0, minimizeSquare(t, sgd, 200), 1e-6)

	sgd = optimizers.StochasticGradientDescent().WithLearningRate(0.05).WithMomentum(0.9).Done()
	assert.InDelta(t, 3.0, minimizeSquare(t, sgd, 500), 1e-4)

	// One plain step: x -= lr * g.
	sgd = optimizers.StochasticGradientDescent().WithLearningRate(0.5).Done()
	params := []float64{1, 2}
	require.NoError(t, sgd.Update(params, []float64{1, -2}))
	assert.Equal(t, []float64{0.5, 3}, params)

	require.Error(t, sgd.Update(params, []float64{1}))
}

func TestAdam(t *testing.T) {
	adam := optimizers.Adam().Done()
	adam.SetLearningRate(0.1)
	assert.InDelta(t, 3.0, minimizeSquare(t, adam, 2000), 0.05)
}

func TestLearningRateSetter(t *testing.T) {
	for _, opt := range []optimizers.Interface{
		optimizers.StochasticGradientDescent().Done(),
		optimizers.Adam().Done(),
	} {
		setter, ok := opt.(optimizers.LearningRateSetter)
		require.Truef(t, ok, "%T should implement LearningRateSetter", opt)
		setter.SetLearningRate(0.0042)
		assert.Equal(t, 0.0042, setter.LearningRate())
	}
}

func TestFromContext(t *testing.T) {
	ctx := context.New()
	ctx.SetParam(optimizers.ParamLearningRate, 0.25)

	opt, err := optimizers.FromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.25, opt.(optimizers.LearningRateSetter).LearningRate())

	ctx.SetParam(optimizers.ParamOptimizer, "adam")
	opt, err = optimizers.FromContext(ctx)
	require.NoError(t, err)
	require.IsType(t, &optimizers.AdamConfig{}, opt)
	assert.Equal(t, 0.25, opt.(optimizers.LearningRateSetter).LearningRate())

	_, err = optimizers.ByName(ctx, "lion")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lion")
	assert.Contains(t, err.Error(), `["adam" "sgd"]`)
}
