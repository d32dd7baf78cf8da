// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package plots

import (
	"io"

	mg "github.com/erkkah/margaid"
	"github.com/pkg/errors"
)

// RenderSVG renders the points of one metric type as an SVG with margaid, one line per metric name.
// If there is more than one metric type, only the points of the first one (in sorted order) are used.
func RenderSVG(w io.Writer, width, height int, title string, points []Point) error {
	allSeries := groupPoints(points)
	if len(allSeries) == 0 {
		return errors.New("RenderSVG: no points to plot")
	}
	s := allSeries[0]
	lines := make([]*mg.Series, 0, len(s.names))
	allPoints := mg.NewSeries()
	for _, name := range s.names {
		line := mg.NewSeries(mg.Titled(name))
		for ii, step := range s.steps[name] {
			value := mg.MakeValue(step, s.values[name][ii])
			line.Add(value)
			allPoints.Add(value)
		}
		lines = append(lines, line)
	}

	diagram := mg.New(width, height,
		mg.WithAutorange(mg.XAxis, lines...),
		mg.WithProjection(mg.XAxis, mg.Lin),
		mg.WithAutorange(mg.YAxis, lines...),
		mg.WithProjection(mg.YAxis, mg.Lin),
		mg.WithInset(70),
		mg.WithPadding(2),
		mg.WithColorScheme(90),
		mg.WithBackgroundColor("#f8f8f8"),
	)
	for _, line := range lines {
		diagram.Line(line, mg.UsingAxes(mg.XAxis, mg.YAxis), mg.UsingStrokeWidth(2))
	}
	diagram.Axis(allPoints, mg.XAxis, diagram.ValueTicker('f', 0, 10), false, "Steps")
	diagram.Axis(allPoints, mg.YAxis, diagram.ValueTicker('g', 3, 10), true, s.metricType)
	diagram.Frame()
	if title != "" {
		diagram.Title(title)
	}
	if len(lines) > 1 {
		diagram.Legend(mg.BottomLeft)
	}
	if err := diagram.Render(w); err != nil {
		return errors.Wrapf(err, "failed to render %q plot", s.metricType)
	}
	return nil
}
