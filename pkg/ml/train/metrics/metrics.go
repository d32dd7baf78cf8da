// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package metrics holds running aggregations of the metrics returned by the trainer at each step:
// means, exponential moving averages and streaming medians.
//
// Attach them to a loop with AttachToLoop, and display them in the progress bar with ExtraMetric.
package metrics

import (
	"fmt"
	"math"

	"github.com/gomlx/clr/pkg/ml/train"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// Interface for a running metric.
type Interface interface {
	// Name of the metric.
	Name() string

	// ShortName is a shortened version of the name (preferably a few characters) to display in progress bars or
	// similar UIs.
	ShortName() string

	// MetricType is a key for metrics that share the same quantity or semantics. E.g.: "Moving-Average-Loss"
	// and "Batch-Loss" would both have the same "loss" metric type.
	MetricType() string

	// Update with the value of one step.
	Update(value float64)

	// Read the current value. It is NaN if no value has been seen since the last Reset.
	Read() float64

	// Reset the metric, e.g. when starting a new training loop.
	Reset()
}

const (
	// LossMetricType is the type of loss metrics.
	LossMetricType = "loss"

	// Scope used to name the hooks of metrics attached to a loop.
	Scope = "clr.metrics"
)

// baseMetric holds the names of a metric.
type baseMetric struct {
	name, shortName, metricType string
}

func (m *baseMetric) Name() string { return m.name }

func (m *baseMetric) ShortName() string {
	if m.shortName == "" {
		return m.name
	}
	return m.shortName
}

func (m *baseMetric) MetricType() string { return m.metricType }

// MeanMetric keeps the mean of all values seen.
type MeanMetric struct {
	baseMetric
	mean, count float64
}

// NewMeanMetric creates a metric that keeps the mean of all values seen since the last reset.
func NewMeanMetric(name, shortName, metricType string) *MeanMetric {
	return &MeanMetric{baseMetric: baseMetric{name: name, shortName: shortName, metricType: metricType}}
}

// Update implements Interface.
func (m *MeanMetric) Update(value float64) {
	m.count++
	m.mean += (value - m.mean) / m.count
}

// Read implements Interface.
func (m *MeanMetric) Read() float64 {
	if m.count == 0 {
		return math.NaN()
	}
	return m.mean
}

// Reset implements Interface.
func (m *MeanMetric) Reset() {
	m.mean, m.count = 0, 0
}

// MovingAverageMetric behaves like a MeanMetric, but each new value has weight of newExampleWeight, and
// the stored weight is capped at (1-newExampleWeight).
type MovingAverageMetric struct {
	MeanMetric
	newExampleWeight float64
}

// NewExponentialMovingAverageMetric creates a metric that takes new values with the given weight (newExampleWeight),
// and decays the rest by 1-newExampleWeight.
//
// A typical value of newExampleWeight is 0.01, the smaller the value, the slower the moving average moves.
//
// This doesn't have a set prior, it will start being a normal average until there are enough terms, and it becomes
// an exponential moving average.
func NewExponentialMovingAverageMetric(name, shortName, metricType string, newExampleWeight float64) *MovingAverageMetric {
	if !(newExampleWeight > 0 && newExampleWeight <= 1) {
		exceptions.Panicf("NewExponentialMovingAverageMetric(%q): newExampleWeight must be in (0, 1], got %g",
			name, newExampleWeight)
	}
	return &MovingAverageMetric{
		MeanMetric:       MeanMetric{baseMetric: baseMetric{name: name, shortName: shortName, metricType: metricType}},
		newExampleWeight: newExampleWeight,
	}
}

// Update implements Interface.
func (m *MovingAverageMetric) Update(value float64) {
	m.count++
	weight := max(m.newExampleWeight, 1/m.count)
	m.mean = m.mean*(1-weight) + value*weight
}

// AttachToLoop updates the metric at every step with the metric of index metricIdx returned by the loop's
// trainer, and resets it at the start of the loop.
func AttachToLoop(loop *train.Loop, metricIdx int, m Interface) error {
	names := loop.Trainer.MetricsNames()
	if metricIdx < 0 || metricIdx >= len(names) {
		return errors.Errorf("metrics.AttachToLoop(%q): metric index %d out of range, trainer has metrics %q",
			m.Name(), metricIdx, names)
	}
	hookName := fmt.Sprintf("%s.%s", Scope, m.Name())
	loop.OnStart(hookName, 0, func(_ *train.Loop, _ train.Dataset) error {
		m.Reset()
		return nil
	})
	loop.OnStep(hookName, 0, func(_ *train.Loop, metrics []float64) error {
		if metricIdx < len(metrics) {
			m.Update(metrics[metricIdx])
		}
		return nil
	})
	return nil
}

// ExtraMetric returns a function that can be given as an extra metric to the command-line progress bar.
func ExtraMetric(m Interface) func() (name, value string) {
	return func() (name, value string) {
		return m.ShortName(), fmt.Sprintf("%.4g", m.Read())
	}
}
