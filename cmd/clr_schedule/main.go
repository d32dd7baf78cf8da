// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// clr_schedule previews a cyclic learning rate schedule: it prints a table with sampled values, and
// optionally plots it.
//
// The schedule is configured with -set, using the same hyperparameters as training. Example:
//
//	clr_schedule -set="cyclic_schedule_mode=exp_range;cyclic_schedule_gamma=0.999" -to=8000 -html=/tmp/clr.html
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gomlx/clr/pkg/ml/context"
	"github.com/gomlx/clr/pkg/ml/train/optimizers/cyclicschedule"
	"github.com/gomlx/clr/ui/commandline"
	"github.com/gomlx/clr/ui/plots"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagFrom  = flag.Float64("from", 0, "First epoch (or step) to sample.")
	flagTo    = flag.Float64("to", -1, "Last epoch (or step) to sample. Defaults to 3 full cycles.")
	flagEvery = flag.Float64("every", -1, "Sample every this many epochs (or steps). Defaults to a quarter of the step size.")
	flagTable = flag.Bool("table", true, "Prints the table with the sampled schedule.")

	flagBSpline = flag.String("bspline", "",
		"Comma-separated control points of a B-spline used as amplitude, over the cycles sampled. "+
			"If set, it replaces the amplitude of the mode. Example: \"1,0.8,0.3,0.3\".")

	flagPNG  = flag.String("png", "", "If set, saves a plot of the schedule to the given PNG file.")
	flagHTML = flag.String("html", "", "If set, saves a Plotly page with the schedule to the given file.")
	flagSVG  = flag.String("svg", "", "If set, saves a plot of the schedule to the given SVG file.")
	flagLog  = flag.Bool("log", false, "Use a logarithmic scale for the learning rate in the Plotly page.")
)

func createDefaultContext() *context.Context {
	ctx := context.New()
	ctx.SetParams(map[string]any{
		cyclicschedule.ParamBaseLearningRate: cyclicschedule.DefaultBaseLearningRate,
		cyclicschedule.ParamMaxLearningRate:  cyclicschedule.DefaultMaxLearningRate,
		cyclicschedule.ParamStepSize:         cyclicschedule.DefaultStepSize,
		cyclicschedule.ParamMode:             cyclicschedule.ModeTriangular,
		cyclicschedule.ParamGamma:            0.99994,
		cyclicschedule.ParamPerStep:          false,
	})
	return ctx
}

// parseControlPoints parses a comma-separated list of floats.
func parseControlPoints(list string) ([]float64, error) {
	var points []float64
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid B-spline control point %q", part)
		}
		points = append(points, v)
	}
	return points, nil
}

// buildSchedule from the context, and with the optional B-spline amplitude spanning the cycles
// from `from` to `to`.
func buildSchedule(ctx *context.Context, bspline string, from, to float64) (*cyclicschedule.Schedule, error) {
	cfg := cyclicschedule.New().FromContext(ctx)
	if bspline == "" {
		return cfg.Done()
	}
	controlPoints, err := parseControlPoints(bspline)
	if err != nil {
		return nil, err
	}
	// Cycles are computed with the step size read from the context.
	probe, err := cyclicschedule.New().FromContext(ctx).Done()
	if err != nil {
		return nil, err
	}
	firstCycle, lastCycle := probe.Cycle(from), probe.Cycle(to)
	if lastCycle <= firstCycle {
		lastCycle = firstCycle + 1
	}
	scaleFn, err := cyclicschedule.BSplineScale(firstCycle, lastCycle, controlPoints...)
	if err != nil {
		return nil, err
	}
	return cfg.ScaleFn(scaleFn, cyclicschedule.ScaleModeCycle).Done()
}

func main() {
	klog.InitFlags(nil)
	ctx := createDefaultContext()
	settings := commandline.CreateContextSettingsFlag(ctx, "")
	flag.Parse()
	_ = must.M1(commandline.ParseContextSettings(ctx, *settings))

	stepSize := context.GetParamOr(ctx, cyclicschedule.ParamStepSize, cyclicschedule.DefaultStepSize)
	from, to, every := *flagFrom, *flagTo, *flagEvery
	if to < 0 {
		to = from + 6*stepSize
	}
	if every <= 0 {
		every = stepSize / 4
	}
	schedule, err := buildSchedule(ctx, *flagBSpline, from, to)
	if err != nil {
		klog.Fatalf("Failed with error: %+v", err)
	}
	unit := "Epoch"
	if schedule.PerStep() {
		unit = "Step"
	}

	fmt.Println(titleStyle.Render("Schedule"))
	fmt.Println(summaryTable(schedule))
	if *flagTable {
		epochs, _ := must.M2(schedule.Sample(from, to, every))
		fmt.Println(titleStyle.Render("Learning rates"))
		fmt.Println(scheduleTable(sampleRows(schedule, epochs), unit))
	}

	if *flagPNG == "" && *flagHTML == "" && *flagSVG == "" {
		return
	}
	// Plots are sampled more densely than the table.
	points := must.M1(plots.SampleFn(schedule.Mode().String(), plots.MetricTypeLearningRate,
		schedule.LearningRate, from, to, max(every/8, (to-from)/4096)))
	if *flagPNG != "" {
		must.M(plots.SaveImage(*flagPNG, schedule.String(), points))
		fmt.Printf("Plot saved to %q\n", *flagPNG)
	}
	if *flagHTML != "" {
		must.M(plots.SavePlotlyHTML(*flagHTML, points, *flagLog))
		fmt.Printf("Plotly page saved to %q\n", *flagHTML)
	}
	if *flagSVG != "" {
		f := must.M1(os.Create(*flagSVG))
		must.M(plots.RenderSVG(f, 1024, 512, schedule.String(), points))
		must.M(f.Close())
		fmt.Printf("SVG plot saved to %q\n", *flagSVG)
	}
}
