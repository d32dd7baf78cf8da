// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package plots

import (
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// SaveImage plots the points with gonum/plot, one line per metric name, and saves the image to filePath.
// The format is given by the file extension: ".png", ".svg", ".pdf", ".jpg", etc.
//
// Metric types are not separated: usually one filters the points with FilterByType first.
func SaveImage(filePath, title string, points []Point) error {
	allSeries := groupPoints(points)
	if len(allSeries) == 0 {
		return errors.Errorf("SaveImage(%q): no points to plot", filePath)
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "step"
	p.Y.Label.Text = allSeries[0].metricType
	p.Add(plotter.NewGrid())

	var lines []any
	for _, s := range allSeries {
		for _, name := range s.names {
			steps, values := s.steps[name], s.values[name]
			xys := make(plotter.XYs, len(steps))
			for ii := range steps {
				xys[ii].X, xys[ii].Y = steps[ii], values[ii]
			}
			lines = append(lines, name, xys)
		}
	}
	if err := plotutil.AddLines(p, lines...); err != nil {
		return errors.Wrapf(err, "SaveImage(%q): failed to add lines", filePath)
	}
	if err := p.Save(12*vg.Inch, 6*vg.Inch, filePath); err != nil {
		return errors.Wrapf(err, "SaveImage(%q): failed to save plot", filePath)
	}
	return nil
}
