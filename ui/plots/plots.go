// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package plots collects plot points of learning rate schedules and of training, and renders them
// with the different plot libraries: Plotly (HTML), gonum/plot (PNG, SVG, PDF) and margaid (SVG).
package plots

import (
	"encoding/json"
	"io"
	"math"
	"os"
	"slices"

	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"k8s.io/klog/v2"
)

// MetricTypeLearningRate is the MetricType of learning rate points.
const MetricTypeLearningRate = "learning rate"

// MetricTypeLoss is the MetricType of loss points.
const MetricTypeLoss = "loss"

// Point represents a plot point. It is used to save/load plots.
type Point struct {
	// MetricName of this point.
	MetricName string

	// Short name
	Short string

	// MetricType typically will be "learning rate" or "loss".
	// It's used in plotting to aggregate similar metric types in the same plot.
	MetricType string

	// Step is the global step (or the epoch) this metric was measured.
	// Usually, this is an int value, stored as a float64.
	Step float64

	// Value is the metric captured.
	Value float64
}

// MaxSampledPoints is the maximum number of points SampleFn returns.
const MaxSampledPoints = 1_000_000

// SampleFn samples fn from `from` to `to` (inclusive), every `every` steps, and returns them as points
// with the given metric name and type.
//
// It returns an error if it would sample more than MaxSampledPoints points.
func SampleFn(metricName, metricType string, fn func(step float64) float64, from, to, every float64) ([]Point, error) {
	if !(every > 0) || math.IsNaN(from) || math.IsNaN(to) || math.IsInf(from, 0) || math.IsInf(to, 0) || to < from {
		return nil, errors.Errorf("SampleFn(%q, from=%g, to=%g, every=%g): requires finite from <= to and every > 0",
			metricName, from, to, every)
	}
	count := math.Floor((to-from)/every) + 1
	if !(count <= MaxSampledPoints) {
		return nil, errors.Errorf("SampleFn(%q, from=%g, to=%g, every=%g): %g points exceeds the maximum of %d",
			metricName, from, to, every, count, MaxSampledPoints)
	}
	n := int(count)
	points := make([]Point, 0, n)
	for ii := range n {
		step := from + float64(ii)*every
		points = append(points, Point{
			MetricName: metricName,
			Short:      metricName,
			MetricType: metricType,
			Step:       step,
			Value:      fn(step),
		})
	}
	return points, nil
}

// FilterByType returns the points of the given metric type.
func FilterByType(points []Point, metricType string) []Point {
	var filtered []Point
	for _, p := range points {
		if p.MetricType == metricType {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

// series groups points by metric type, and then by metric name. Each series is sorted by step,
// and points with NaN or infinite values are dropped.
type series struct {
	metricType string
	names      []string
	steps      map[string][]float64
	values     map[string][]float64
}

func groupPoints(points []Point) []*series {
	byType := make(map[string]*series)
	for _, p := range points {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			continue
		}
		s, found := byType[p.MetricType]
		if !found {
			s = &series{
				metricType: p.MetricType,
				steps:      make(map[string][]float64),
				values:     make(map[string][]float64),
			}
			byType[p.MetricType] = s
		}
		name := p.Short
		if name == "" {
			name = p.MetricName
		}
		if _, found := s.steps[name]; !found {
			s.names = append(s.names, name)
		}
		s.steps[name] = append(s.steps[name], p.Step)
		s.values[name] = append(s.values[name], p.Value)
	}
	result := make([]*series, 0, len(byType))
	metricTypes := maps.Keys(byType)
	slices.Sort(metricTypes)
	for _, metricType := range metricTypes {
		s := byType[metricType]
		for _, name := range s.names {
			sortByStep(s.steps[name], s.values[name])
		}
		result = append(result, s)
	}
	return result
}

func sortByStep(steps, values []float64) {
	if slices.IsSorted(steps) {
		return
	}
	indices := make([]int, len(steps))
	for ii := range indices {
		indices[ii] = ii
	}
	slices.SortStableFunc(indices, func(a, b int) int {
		switch {
		case steps[a] < steps[b]:
			return -1
		case steps[a] > steps[b]:
			return 1
		}
		return 0
	})
	sortedSteps, sortedValues := make([]float64, len(steps)), make([]float64, len(values))
	for ii, idx := range indices {
		sortedSteps[ii], sortedValues[ii] = steps[idx], values[idx]
	}
	copy(steps, sortedSteps)
	copy(values, sortedValues)
}

// LoadPoints parses all plot points saved in the given file, as written by CreatePointsWriter.
func LoadPoints(filePath string) ([]Point, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read plot points file %q", filePath)
	}
	defer func() { _ = f.Close() }()

	dec := json.NewDecoder(f)
	var points []Point
	for {
		var point Point
		err := dec.Decode(&point)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "error while decoding plot points file %q", filePath)
		}
		points = append(points, point)
	}
	return points, nil
}

// CreatePointsWriter creates a channel to write Point to the given file (one JSON object per line).
// It creates an errReport channel to report an error (or nil) back at the very end.
// If any error occurs, it stops writing, and will report the error back once pointWriter is closed.
func CreatePointsWriter(filePath string) (pointWriter chan<- Point, errReport <-chan error) {
	pointChan := make(chan Point, 100)
	pointWriter = pointChan
	errChan := make(chan error, 1)
	errReport = errChan
	go func() {
		// Create/append file with upcoming points.
		f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0664)
		if err != nil {
			err = errors.Wrapf(err, "failed to open plot points file %q for append", filePath)
			klog.Errorf("Error: %v", err)
		}
		var enc *json.Encoder
		if err == nil {
			enc = json.NewEncoder(f)
		}
		for point := range pointChan {
			if err != nil {
				continue // Drain the channel.
			}
			if err = enc.Encode(point); err != nil {
				err = errors.Wrapf(err, "failed to encode point %v", point)
				klog.Errorf("Error: %v", err)
			}
		}
		if f != nil {
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}
		}
		errChan <- err
	}()
	return
}
