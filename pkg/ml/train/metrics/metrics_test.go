// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"io"
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/gomlx/clr/pkg/ml/train"
	"github.com/gomlx/clr/pkg/ml/train/optimizers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMean(t *testing.T) {
	m := NewMeanMetric("Mean loss", "~loss", LossMetricType)
	assert.True(t, math.IsNaN(m.Read()))
	for _, v := range []float64{1, 2, 3, 4} {
		m.Update(v)
	}
	assert.InDelta(t, 2.5, m.Read(), 1e-12)
	assert.Equal(t, "~loss", m.ShortName())
	m.Reset()
	assert.True(t, math.IsNaN(m.Read()))
}

func TestExponentialMovingAverage(t *testing.T) {
	m := NewExponentialMovingAverageMetric("Moving loss", "", LossMetricType, 0.5)
	assert.Equal(t, "Moving loss", m.ShortName())
	m.Update(4) // Weight 1.
	assert.InDelta(t, 4.0, m.Read(), 1e-12)
	m.Update(2) // Weight 1/2.
	assert.InDelta(t, 3.0, m.Read(), 1e-12)
	m.Update(0) // Weight capped at 1/2.
	assert.InDelta(t, 1.5, m.Read(), 1e-12)

	assert.Panics(t, func() { NewExponentialMovingAverageMetric("bad", "", LossMetricType, 0) })
}

func TestStreamingMedian(t *testing.T) {
	metric := NewMedianMetric("Median", "med", LossMetricType).WithSampleSize(10_000)

	t.Run("Random 1/r numbers", func(t *testing.T) {
		// Sample from 0.01 < r < 1.0 randomly, and feed StreamingMedian values of 1/r.
		const numExamples = 100_001
		rng := rand.New(rand.NewPCG(3, 7))
		values := make([]float64, 0, numExamples)
		for range numExamples {
			r := 1 / (rng.Float64()*0.99 + 0.01)
			values = append(values, r)
			metric.Update(r)
		}
		slices.Sort(values)
		require.InDelta(t, values[numExamples/2], metric.Read(), 0.1)
	})

	metric = metric.WithSampleSize(100)
	metric.Reset()
	t.Run("Consecutive numbers from 0 to 1000", func(t *testing.T) {
		for ii := range 1_001 {
			metric.Update(float64(ii))
		}
		require.InDelta(t, 500.0, metric.Read(), 200)
	})
}

type stepsDataset struct{ count int }

func (ds *stepsDataset) Name() string { return "steps" }
func (ds *stepsDataset) Reset()       { ds.count = 0 }
func (ds *stepsDataset) Yield() ([][]float64, []float64, error) {
	if ds.count >= 4 {
		return nil, nil, io.EOF
	}
	ds.count++
	return [][]float64{{0}}, []float64{float64(ds.count)}, nil
}

// labelTrainer returns the label and its double as metrics.
type labelTrainer struct{}

func (labelTrainer) TrainStep(_ [][]float64, labels []float64) ([]float64, error) {
	return []float64{labels[0], 2 * labels[0]}, nil
}
func (labelTrainer) MetricsNames() []string          { return []string{"loss", "double"} }
func (labelTrainer) Optimizer() optimizers.Interface { return optimizers.StochasticGradientDescent().Done() }

func TestAttachToLoop(t *testing.T) {
	loop := train.NewLoop(labelTrainer{})
	mean := NewMeanMetric("Mean double", "double", LossMetricType)
	require.NoError(t, AttachToLoop(loop, 1, mean))
	require.Error(t, AttachToLoop(loop, 2, NewMeanMetric("bad", "", LossMetricType)))

	_, err := loop.RunEpochs(&stepsDataset{}, 1)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, mean.Read(), 1e-12) // Mean of 2, 4, 6, 8.

	name, value := ExtraMetric(mean)()
	assert.Equal(t, "double", name)
	assert.Equal(t, "5", value)

	// A new loop run resets the metric.
	_, err = loop.RunEpochs(&stepsDataset{}, 1)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, mean.Read(), 1e-12)
}
