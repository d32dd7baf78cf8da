// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package cyclicschedule

import (
	"math"
	"slices"

	"github.com/gomlx/bsplines"
	"github.com/pkg/errors"
)

// ScaleFn is an amplitude function: it scales the distance between the base and the max learning rate.
// It is evaluated either on the cycle number or on the iteration, see ScaleMode.
type ScaleFn func(x float64) float64

// ConstantScale is the amplitude of ModeTriangular.
func ConstantScale(float64) float64 { return 1 }

// HalvingScale is the amplitude of ModeTriangular2: 1/2^(cycle-1).
func HalvingScale(cycle float64) float64 { return math.Exp2(1 - cycle) }

// ExponentialScale returns the amplitude of ModeExpRange: gamma^iteration.
func ExponentialScale(gamma float64) ScaleFn {
	return func(iteration float64) float64 {
		return math.Pow(gamma, iteration)
	}
}

// BSplineScale returns an amplitude function given by a B-spline through the control points, spread
// regularly from start to end. Outside [start, end] the amplitude stays constant at the first or last value.
//
// Example: an amplitude that decays smoothly over the first 10 cycles and then stays at 0.2:
//
//	fn, err := cyclicschedule.BSplineScale(1, 10, 1, 0.9, 0.5, 0.2, 0.2)
//	...
//	schedule, err := cyclicschedule.New().ScaleFn(fn, cyclicschedule.ScaleModeCycle).Done()
func BSplineScale(start, end float64, controlPoints ...float64) (ScaleFn, error) {
	if len(controlPoints) < 2 {
		return nil, errors.Wrapf(ErrInvalidConfig, "BSplineScale requires at least 2 control points, got %d",
			len(controlPoints))
	}
	if !(end > start) || math.IsInf(end-start, 0) {
		return nil, errors.Wrapf(ErrInvalidConfig, "BSplineScale requires start < end, got [%g, %g]", start, end)
	}
	degree := min(3, len(controlPoints)-1)
	b := bsplines.NewRegular(degree, len(controlPoints)).
		WithControlPoints(slices.Clone(controlPoints)).
		WithExtrapolation(bsplines.ExtrapolateConstant)
	width := end - start
	return func(x float64) float64 {
		return b.Evaluate(min(max((x-start)/width, 0), 1))
	}, nil
}
