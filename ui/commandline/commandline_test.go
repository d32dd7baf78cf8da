// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gomlx/clr/pkg/ml/context"
	"github.com/gomlx/clr/pkg/ml/train"
	"github.com/gomlx/clr/pkg/ml/train/optimizers"
	"github.com/gomlx/clr/pkg/ml/train/optimizers/cyclicschedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
)

func init() {
	klog.InitFlags(nil)
}

func createTestContext() *context.Context {
	ctx := context.New()
	ctx.SetParam("x", 11.0)
	ctx.SetParam("y", 7)
	ctx.SetParam("z", false)
	ctx.SetParam("s", "foo")
	ctx.SetParam("list_int", []int{})
	ctx.SetParam("list_float", []float64{})
	ctx.SetParam("list_str", []string{})
	ctx.SetParam(cyclicschedule.ParamMode, cyclicschedule.ModeTriangular)
	return ctx
}

func TestParseContextSettings(t *testing.T) {
	ctx := createTestContext()

	paramsSet, err := ParseContextSettings(ctx, "x=13;/a/z=true;/a/b/y=3;s=bar;list_int=1,3,7;list_float=0.1,1.2,3e3;list_str=a,b;")
	require.NoError(t, err)
	require.Equal(t, []string{"x", "/a/z", "/a/b/y", "s", "list_int", "list_float", "list_str"}, paramsSet)
	x, found := ctx.GetParam("x")
	assert.True(t, found)
	assert.Equal(t, 13.0, x.(float64))

	y, found := ctx.GetParam("y")
	assert.True(t, found)
	assert.Equal(t, 7, y)
	y, _ = ctx.In("a").GetParam("y")
	assert.Equal(t, 7, y)
	y, _ = ctx.In("a").In("b").GetParam("y")
	assert.Equal(t, 3, y)

	z, found := ctx.GetParam("z")
	assert.True(t, found)
	assert.False(t, z.(bool))
	z, _ = ctx.In("a").GetParam("z")
	assert.True(t, z.(bool))

	s, found := ctx.GetParam("s")
	assert.True(t, found)
	assert.Equal(t, "bar", s.(string))

	assert.Equal(t, []int{1, 3, 7}, context.GetParamOr(ctx, "list_int", []int{}))
	assert.Equal(t, []float64{0.1, 1.2, 3e3}, context.GetParamOr(ctx, "list_float", []float64{}))
	assert.Equal(t, []string{"a", "b"}, context.GetParamOr(ctx, "list_str", []string{}))

	// Large integers with "_" separators.
	_, err = ParseContextSettings(ctx, "y=1_000_000")
	require.NoError(t, err)
	assert.Equal(t, 1_000_000, context.GetParamOr(ctx, "y", 0))

	// Enums are parsed with their UnmarshalText.
	_, err = ParseContextSettings(ctx, cyclicschedule.ParamMode+"=exp_range")
	require.NoError(t, err)
	assert.Equal(t, cyclicschedule.ModeExpRange, context.GetParamOr(ctx, cyclicschedule.ParamMode, cyclicschedule.ModeTriangular))
	_, err = ParseContextSettings(ctx, cyclicschedule.ParamMode+"=sawtooth")
	require.Error(t, err)

	// Parameter "q" is unknown.
	_, err = ParseContextSettings(ctx, "q=3")
	require.Error(t, err)

	// Parameter "q" is still unknown in root.
	ctx.In("c").SetParam("q", 13)
	_, err = ParseContextSettings(ctx, "q=3")
	require.Error(t, err)

	// Cannot set the wrong type of value.
	_, err = ParseContextSettings(ctx, "y=3.14")
	require.Error(t, err)

	// Cannot parse setting with scope not absolute.
	_, err = ParseContextSettings(ctx, "a/abc=3.14")
	require.Error(t, err)

	// Missing "=".
	_, err = ParseContextSettings(ctx, "x")
	require.Error(t, err)
}

func TestParseContextSettingsFiles(t *testing.T) {
	dir := t.TempDir()
	textPath := filepath.Join(dir, "settings.txt")
	require.NoError(t, os.WriteFile(textPath, []byte("# Comment\nx=17;s=text\n\n/a/y=5\n"), 0o644))
	yamlPath := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
x: 0.5
list_int: [2, 4]
cyclic_schedule_mode: triangular2
a:
  b:
    z: true
`), 0o644))

	ctx := createTestContext()
	paramsSet, err := ParseContextSettings(ctx, "file:"+textPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "s", "/a/y"}, paramsSet)
	assert.Equal(t, 17.0, context.GetParamOr(ctx, "x", 0.0))
	assert.Equal(t, "text", context.GetParamOr(ctx, "s", ""))
	assert.Equal(t, 5, context.GetParamOr(ctx.In("a"), "y", 0))

	paramsSet, err = ParseContextSettings(ctx, "file:"+yamlPath+";y=3")
	require.NoError(t, err)
	assert.Equal(t, []string{"/a/b/z", "cyclic_schedule_mode", "list_int", "x", "y"}, paramsSet)
	assert.Equal(t, 0.5, context.GetParamOr(ctx, "x", 0.0))
	assert.Equal(t, []int{2, 4}, context.GetParamOr(ctx, "list_int", []int{}))
	assert.Equal(t, cyclicschedule.ModeTriangular2,
		context.GetParamOr(ctx, cyclicschedule.ParamMode, cyclicschedule.ModeTriangular))
	assert.True(t, context.GetParamOr(ctx.In("a").In("b"), "z", false))
	assert.False(t, context.GetParamOr(ctx.In("a"), "z", false))

	modified := SprintModifiedContextSettings(ctx, append(paramsSet, "x"))
	assert.Contains(t, modified, `"cyclic_schedule_mode": (cyclicschedule.Mode) triangular2`)
	assert.Contains(t, SprintContextSettings(ctx), `"/x": (float64) 0.5`)

	_, err = ParseContextSettings(ctx, "file:"+filepath.Join(dir, "missing.txt"))
	require.Error(t, err)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1.50s", FormatDuration(1500*time.Millisecond))
	assert.Equal(t, "2.35ms", FormatDuration(2345678*time.Nanosecond))
	assert.Equal(t, "1m30s", FormatDuration(90*time.Second))
}

// stepsDataset yields an infinite number of batches.
type stepsDataset struct{}

func (stepsDataset) Name() string { return "steps" }
func (stepsDataset) Reset()       {}
func (stepsDataset) Yield() ([][]float64, []float64, error) {
	return [][]float64{{1}}, []float64{1}, nil
}

type constantTrainer struct {
	opt optimizers.Interface
}

func (tr *constantTrainer) TrainStep(_ [][]float64, _ []float64) ([]float64, error) {
	return []float64{0.25, 0.5}, nil
}
func (tr *constantTrainer) MetricsNames() []string          { return []string{"loss", "mae"} }
func (tr *constantTrainer) Optimizer() optimizers.Interface { return tr.opt }

func TestProgressBarAndReport(t *testing.T) {
	loop := train.NewLoop(&constantTrainer{opt: optimizers.StochasticGradientDescent().Done()})
	schedule := cyclicschedule.New().StepSize(5).PerStep(true).MustDone()
	require.NoError(t, schedule.AttachToLoop(loop))
	var buf bytes.Buffer
	AttachProgressBarTo(&buf, loop, func() (name, value string) { return "extra", "42" })
	metrics, err := loop.RunSteps(stepsDataset{}, 10)
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "Global Step")
	assert.Contains(t, output, "Learning rate")
	assert.Contains(t, output, "mae")
	assert.Contains(t, output, "extra")

	// Running again reuses the progress bar.
	_, err = loop.RunSteps(stepsDataset{}, 5)
	require.NoError(t, err)

	var report bytes.Buffer
	require.NoError(t, ReportMetrics(&report, loop, metrics))
	assert.Contains(t, report.String(), "loss: 0.25")
	assert.Contains(t, report.String(), "learning rate:")
	require.NoError(t, ReportMetrics(io.Discard, loop, nil))
}
