// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package cyclicschedule

import (
	"io"
	"math"
	"sync"
	"testing"

	"github.com/gomlx/clr/pkg/ml/context"
	"github.com/gomlx/clr/pkg/ml/train"
	"github.com/gomlx/clr/pkg/ml/train/optimizers"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
)

func init() {
	klog.InitFlags(nil)
}

const delta = 1e-12

func TestDefaults(t *testing.T) {
	s, err := New().Done()
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseLearningRate, s.BaseLearningRate())
	assert.Equal(t, DefaultMaxLearningRate, s.MaxLearningRate())
	assert.Equal(t, DefaultStepSize, s.StepSize())
	assert.Equal(t, ModeTriangular, s.Mode())
	assert.Equal(t, ScaleModeCycle, s.ScaleMode())
	assert.False(t, s.HasCustomScaleFn())

	assert.InDelta(t, 0.001, s.LearningRate(0), delta)
	assert.InDelta(t, 0.0035, s.LearningRate(1000), delta)
	assert.InDelta(t, 0.006, s.LearningRate(2000), delta)
	assert.InDelta(t, 0.001, s.LearningRate(4000), delta)
	assert.InDelta(t, 0.006, s.LearningRate(6000), delta)

	// Purity: same input, same output.
	for range 3 {
		assert.Equal(t, s.LearningRate(1234.5), s.LearningRate(1234.5))
	}

	assert.Equal(t, 1.0, s.Cycle(0))
	assert.Equal(t, 1.0, s.Cycle(3999))
	assert.Equal(t, 2.0, s.Cycle(4000))
}

func TestTriangular2(t *testing.T) {
	s, err := New().Mode(ModeTriangular2).Done()
	require.NoError(t, err)
	assert.InDelta(t, 0.006, s.LearningRate(2000), delta)
	assert.InDelta(t, 0.001, s.LearningRate(4000), delta)
	// Peak of the second cycle is half-way.
	assert.InDelta(t, 0.001+0.005/2, s.LearningRate(6000), delta)
	// Peak of the third cycle is a quarter.
	assert.InDelta(t, 0.001+0.005/4, s.LearningRate(10000), delta)
	assert.InDelta(t, 0.5, s.Amplitude(6000), delta)
}

func TestExpRange(t *testing.T) {
	const gamma = 0.9999
	s, err := New().Mode(ModeExpRange).Gamma(gamma).Done()
	require.NoError(t, err)
	assert.Equal(t, ScaleModeIterations, s.ScaleMode())
	assert.InDelta(t, 0.001+0.005*math.Pow(gamma, 2000), s.LearningRate(2000), delta)
	assert.InDelta(t, 0.001+0.005*math.Pow(gamma, 6000), s.LearningRate(6000), delta)
	g, ok := s.Gamma()
	assert.True(t, ok)
	assert.Equal(t, gamma, g)

	// Gamma is required.
	_, err = New().Mode(ModeExpRange).Done()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
	assert.Contains(t, err.Error(), "gamma")
}

func TestBounded(t *testing.T) {
	for _, mode := range []Mode{ModeTriangular, ModeTriangular2} {
		s, err := New().Mode(mode).StepSize(7).Done()
		require.NoError(t, err)
		for epoch := 0; epoch < 500; epoch++ {
			lr := LearningRateAt(s, epoch)
			require.GreaterOrEqualf(t, lr, s.BaseLearningRate()-delta, "mode=%s, epoch=%d", mode, epoch)
			require.LessOrEqualf(t, lr, s.MaxLearningRate()+delta, "mode=%s, epoch=%d", mode, epoch)
		}
	}
}

func TestIncreasingFirstHalfCycle(t *testing.T) {
	s, err := New().Done()
	require.NoError(t, err)
	var lrs []float64
	for _, epoch := range []int{0, 500, 1000, 1500, 2000} {
		lrs = append(lrs, LearningRateAt(s, epoch))
	}
	for ii := 1; ii < len(lrs); ii++ {
		assert.Greater(t, lrs[ii], lrs[ii-1])
	}
	assert.InDelta(t, 0.006, lrs[len(lrs)-1], delta)
	assert.InDelta(t, LearningRateAt(s, float32(500)), LearningRateAt(s, int64(500)), delta)
}

func TestCustomScaleFn(t *testing.T) {
	scaleFn := func(x float64) float64 { return x / 10_000 }
	config := New().Mode(ModeTriangular2).ScaleFn(scaleFn, ScaleModeIterations)
	s, err := config.Done()
	require.NoError(t, err)
	assert.True(t, s.HasCustomScaleFn())
	assert.Equal(t, ScaleModeIterations, s.ScaleMode())
	// Amplitude evaluated on the iteration (2000/10000=0.2), not on the cycle.
	assert.InDelta(t, 0.001+0.005*0.2, s.LearningRate(2000), delta)

	// Changes to the config after Done don't affect the schedule.
	config.Mode(ModeTriangular).ScaleFn(nil, ScaleModeCycle).StepSize(10)
	assert.InDelta(t, 0.001+0.005*0.2, s.LearningRate(2000), delta)

	// Evaluated on the cycle.
	s, err = New().ScaleFn(scaleFn, ScaleModeCycle).Done()
	require.NoError(t, err)
	assert.InDelta(t, 0.001+0.005/10_000, s.LearningRate(2000), delta)

	// An invalid mode is ignored with a custom function, but the scale mode must be valid.
	_, err = New().Mode(Mode(17)).ScaleFn(scaleFn, ScaleModeCycle).Done()
	require.NoError(t, err)
	_, err = New().ScaleFn(scaleFn, ScaleMode(3)).Done()
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestInvalidConfig(t *testing.T) {
	for name, config := range map[string]*Config{
		"zero step size":     New().StepSize(0),
		"negative step size": New().StepSize(-10),
		"NaN step size":      New().StepSize(math.NaN()),
		"inf step size":      New().StepSize(math.Inf(1)),
		"denormal step size": New().StepSize(1e-320),
		"max below base":     New().BaseLearningRate(0.1).MaxLearningRate(0.01),
		"NaN base":           New().BaseLearningRate(math.NaN()),
		"unknown mode":       New().Mode(Mode(42)),
		"zero gamma":         New().Mode(ModeExpRange).Gamma(0),
		"gamma above 1":      New().Mode(ModeExpRange).Gamma(1.5),
	} {
		t.Run(name, func(t *testing.T) {
			s, err := config.Done()
			require.Error(t, err)
			assert.Nil(t, s)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
			assert.Panics(t, func() { _ = config.MustDone() })
		})
	}

	// Gamma is only validated when used by exp_range.
	s, err := New().Gamma(2).Done()
	require.NoError(t, err)
	assert.InDelta(t, 0.006, s.LearningRate(2000), delta)
	_, err = New().ScaleFn(ConstantScale, ScaleModeCycle).Gamma(-1).Done()
	require.NoError(t, err)

	// Small step sizes are fine, as long as they have a finite inverse.
	s, err = New().StepSize(1e-300).Done()
	require.NoError(t, err)
	assert.False(t, math.IsNaN(s.LearningRate(1e-300)))

	// Equal bounds are valid: a constant learning rate.
	s, err = New().BaseLearningRate(0.01).MaxLearningRate(0.01).Done()
	require.NoError(t, err)
	assert.InDelta(t, 0.01, s.LearningRate(123), delta)
}

func TestFromContext(t *testing.T) {
	ctx := context.New()
	ctx.SetParams(map[string]any{
		ParamBaseLearningRate: 0.01,
		ParamMaxLearningRate:  0.1,
		ParamStepSize:         4, // Integers are converted.
		ParamMode:             "triangular2",
		ParamPerStep:          true,
	})
	s, err := New().FromContext(ctx).Done()
	require.NoError(t, err)
	assert.Equal(t, ModeTriangular2, s.Mode())
	assert.True(t, s.PerStep())
	assert.InDelta(t, 0.1, s.LearningRate(4), delta)
	assert.InDelta(t, 0.01+0.09/2, s.LearningRate(12), delta)

	// Values set in the context in a sub-scope take precedence.
	ctx.In("model").SetParams(map[string]any{ParamMode: ModeExpRange, ParamGamma: 0.5})
	s, err = New().FromContext(ctx.In("model")).Done()
	require.NoError(t, err)
	assert.Equal(t, ModeExpRange, s.Mode())
	assert.InDelta(t, 0.01+0.09*0.0625, s.LearningRate(4), delta)

	// Wrong values are reported by Done.
	ctx.SetParam(ParamMode, "sawtooth")
	_, err = New().FromContext(ctx).Done()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
	assert.Contains(t, err.Error(), "sawtooth")

	ctx.SetParam(ParamMode, "triangular")
	ctx.SetParam(ParamStepSize, "many")
	_, err = New().FromContext(ctx).Done()
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSample(t *testing.T) {
	s := New().MustDone()
	epochs, lrs, err := s.Sample(0, 4000, 1000)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1000, 2000, 3000, 4000}, epochs)
	assert.InDeltaSlice(t, []float64{0.001, 0.0035, 0.006, 0.0035, 0.001}, lrs, delta)

	_, _, err = s.Sample(0, 10, 0)
	require.Error(t, err)
	_, _, err = s.Sample(10, 0, 1)
	require.Error(t, err)
	_, _, err = s.Sample(math.NaN(), 10, 1)
	require.Error(t, err)

	// Too many points.
	_, _, err = s.Sample(0, 1e18, 1e-9)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum")
	epochs, _, err = s.Sample(0, MaxSamples-1, 1)
	require.NoError(t, err)
	assert.Len(t, epochs, MaxSamples)
}

func TestBSplineScale(t *testing.T) {
	fn, err := BSplineScale(1, 10, 0.5, 0.5, 0.5, 0.5, 0.5)
	require.NoError(t, err)
	for _, x := range []float64{3.3, 5.5, 7} {
		assert.InDeltaf(t, 0.5, fn(x), 1e-6, "x=%g", x)
	}
	// Constant outside of the range.
	assert.Equal(t, fn(1), fn(-5))
	assert.Equal(t, fn(10), fn(100))

	fn, err = BSplineScale(0, 2, 0.5, 0.5, 0.5, 0.5, 0.5)
	require.NoError(t, err)
	s, err := New().ScaleFn(fn, ScaleModeIterations).StepSize(1).Done()
	require.NoError(t, err)
	assert.InDelta(t, 0.001+0.005*0.5, s.LearningRate(1), 1e-6)

	_, err = BSplineScale(1, 10, 0.5)
	require.ErrorIs(t, err, ErrInvalidConfig)
	_, err = BSplineScale(10, 1, 0.5, 0.2)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestModeStrings(t *testing.T) {
	assert.Equal(t, []string{"triangular", "triangular2", "exp_range"}, ModeStrings())
	mode, err := ModeString("exp_range")
	require.NoError(t, err)
	assert.Equal(t, ModeExpRange, mode)
	_, err = ModeString("cosine")
	require.Error(t, err)
	assert.Equal(t, "iterations", ScaleModeIterations.String())
}

func TestConcurrentUse(t *testing.T) {
	s := New().Mode(ModeTriangular2).MustDone()
	want := make([]float64, 100)
	for ii := range want {
		want[ii] = s.LearningRate(float64(ii * 97))
	}
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ii := range want {
				if s.LearningRate(float64(ii*97)) != want[ii] {
					t.Errorf("concurrent LearningRate(%d) differs", ii*97)
				}
			}
		}()
	}
	wg.Wait()
}

// oneBatchDataset yields one batch per epoch.
type oneBatchDataset struct{ done bool }

func (ds *oneBatchDataset) Name() string { return "one_batch" }
func (ds *oneBatchDataset) Reset()       { ds.done = false }
func (ds *oneBatchDataset) Yield() ([][]float64, []float64, error) {
	if ds.done {
		return nil, nil, io.EOF
	}
	ds.done = true
	return [][]float64{{1}}, []float64{1}, nil
}

// recordingTrainer records the learning rate of its optimizer at every step.
type recordingTrainer struct {
	opt optimizers.Interface
	lrs []float64
}

func (tr *recordingTrainer) TrainStep(_ [][]float64, _ []float64) ([]float64, error) {
	tr.lrs = append(tr.lrs, tr.opt.(optimizers.LearningRateSetter).LearningRate())
	return []float64{0}, nil
}

func (tr *recordingTrainer) MetricsNames() []string          { return []string{"loss"} }
func (tr *recordingTrainer) Optimizer() optimizers.Interface { return tr.opt }

type fixedOptimizer struct{}

func (fixedOptimizer) Update(_, _ []float64) error { return nil }
func (fixedOptimizer) Clear()                      {}

func TestAttachToLoop(t *testing.T) {
	s := New().StepSize(2).MustDone()
	trainer := &recordingTrainer{opt: optimizers.StochasticGradientDescent().Done()}
	loop := train.NewLoop(trainer)
	require.NoError(t, s.AttachToLoop(loop))
	_, err := loop.RunEpochs(&oneBatchDataset{}, 5)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.001, 0.0035, 0.006, 0.0035, 0.001}, trainer.lrs, delta)

	// Per step.
	s = New().StepSize(2).PerStep(true).MustDone()
	trainer = &recordingTrainer{opt: optimizers.Adam().Done()}
	loop = train.NewLoop(trainer)
	require.NoError(t, s.AttachToLoop(loop))
	_, err = loop.RunSteps(&oneBatchDataset{}, 3)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.001, 0.0035, 0.006}, trainer.lrs, delta)

	// Optimizer without a learning rate fails immediately.
	loop = train.NewLoop(&recordingTrainer{opt: fixedOptimizer{}})
	err = s.AttachToLoop(loop)
	require.Error(t, err)
	assert.True(t, errors.Is(err, train.ErrNoLearningRate))
}
