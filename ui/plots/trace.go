// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package plots

import (
	"fmt"

	"github.com/gomlx/clr/pkg/ml/train"
	"github.com/pkg/errors"
)

// TraceName is the name of the hooks registered by TraceLearningRate.
const TraceName = "clr.ui.plots.trace"

// Trace records the learning rate effectively used at each training step, and the loss.
// Create it with TraceLearningRate.
type Trace struct {
	// Points collected so far.
	Points []Point

	every     int
	writer    chan<- Point
	errReport <-chan error
}

// TraceLearningRate attaches to the loop a hook that records, every `every` steps, the learning rate
// used in the step (published by the learning rate schedule in Loop.SharedData) and the loss
// (the first metric returned by the trainer).
//
// It runs before the learning rate schedules (priority -1), so a schedule applied per step has not
// yet set the learning rate of the next step.
func TraceLearningRate(loop *train.Loop, every int) *Trace {
	if every <= 0 {
		every = 1
	}
	tr := &Trace{every: every}
	loop.OnStep(TraceName, -1, tr.onStep)
	return tr
}

// WithFile also appends the points to the given file, one JSON object per line. See LoadPoints.
// Call Trace.Close at the end to flush the file.
func (tr *Trace) WithFile(filePath string) *Trace {
	tr.writer, tr.errReport = CreatePointsWriter(filePath)
	return tr
}

func (tr *Trace) add(p Point) {
	tr.Points = append(tr.Points, p)
	if tr.writer != nil {
		tr.writer <- p
	}
}

func (tr *Trace) onStep(loop *train.Loop, metrics []float64) error {
	if loop.LoopStep%tr.every != 0 {
		return nil
	}
	step := float64(loop.LoopStep)
	if lr, ok := loop.SharedData[train.LearningRateKey].(float64); ok {
		tr.add(Point{
			MetricName: "Learning rate",
			Short:      "lr",
			MetricType: MetricTypeLearningRate,
			Step:       step,
			Value:      lr,
		})
	}
	if len(metrics) > 0 {
		name := "Batch loss"
		if names := loop.Trainer.MetricsNames(); len(names) > 0 {
			name = fmt.Sprintf("Batch %s", names[0])
		}
		tr.add(Point{
			MetricName: name,
			Short:      "loss",
			MetricType: MetricTypeLoss,
			Step:       step,
			Value:      metrics[0],
		})
	}
	return nil
}

// Close flushes and closes the file set with WithFile, if any, and returns any error that happened writing it.
// The trace should not be used after closed.
func (tr *Trace) Close() error {
	if tr.writer == nil {
		return nil
	}
	close(tr.writer)
	tr.writer = nil
	if err := <-tr.errReport; err != nil {
		return errors.WithMessage(err, "closing learning rate trace")
	}
	return nil
}
