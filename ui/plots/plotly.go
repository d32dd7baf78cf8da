// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package plots

import (
	"encoding/base64"
	"encoding/json"
	"html/template"
	"io"
	"os"

	"github.com/pkg/errors"

	grob "github.com/MetalBlueberry/go-plotly/generated/v2.34.0/graph_objects"
	ptypes "github.com/MetalBlueberry/go-plotly/pkg/types"
)

// PlotlySrc is the Plotly JavaScript library used by the HTML pages, matching the version of the
// generated graph objects.
var PlotlySrc = "https://cdn.plot.ly/plotly-2.34.0.min.js"

// PlotlyFigures creates one Plotly figure per metric type of the points, with one line per metric name,
// and returns them serialized as JSON.
//
// If logScale is true, the Y-axis uses a logarithmic scale.
func PlotlyFigures(points []Point, logScale bool) ([][]byte, error) {
	allSeries := groupPoints(points)
	figures := make([][]byte, 0, len(allSeries))
	for _, s := range allSeries {
		yAxis := &grob.LayoutYaxis{
			Showgrid: ptypes.B(true),
		}
		if logScale {
			yAxis.Type = grob.LayoutYaxisTypeLog
		}
		fig := &grob.Fig{
			Layout: &grob.Layout{
				Title: &grob.LayoutTitle{
					Text: ptypes.S(s.metricType),
				},
				Xaxis: &grob.LayoutXaxis{
					Showgrid: ptypes.B(true),
				},
				Yaxis:  yAxis,
				Legend: &grob.LayoutLegend{},
			},
		}
		for _, name := range s.names {
			fig.Data = append(fig.Data, &grob.Scatter{
				Name: ptypes.S(name),
				Line: &grob.ScatterLine{
					Shape: grob.ScatterLineShapeLinear,
				},
				Mode: "lines",
				X:    ptypes.DataArray(s.steps[name]),
				Y:    ptypes.DataArray(s.values[name]),
			})
		}
		figAsJSON, err := json.Marshal(fig)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to marshal plotly figure for metric type %q", s.metricType)
		}
		figures = append(figures, figAsJSON)
	}
	return figures, nil
}

var (
	singleFileHTML = `<!DOCTYPE html>
	<head>
		<meta charset="utf-8">
		<script src="{{ .CDN }}"></script>
	</head>
	<body>
{{- range $i, $f := .Figures }}
		<div id="plot{{ $i }}"></div>
		{{ if not (eq $i (lastIdx $.Figures)) }}
		<hr style="border-color: gray;">
		{{ end }}
{{- end }}
	<script>
{{- range $i, $f := .Figures }}
		data = JSON.parse(atob('{{ $f }}'))
		Plotly.newPlot('plot{{ $i }}', data);
{{- end }}
	</script>
	</body>
</html>`
	singleFileHTMLTmpl = template.Must(template.New("plotly").Funcs(template.FuncMap{
		"lastIdx": func(a []string) int { return len(a) - 1 },
	}).Parse(singleFileHTML))
)

// WritePlotlyAsHTML renders the Plotly figures (given as JSON) to an HTML page that can be
// served or saved to a file.
func WritePlotlyAsHTML(w io.Writer, figuresAsJSON ...[]byte) error {
	encoded := make([]string, 0, len(figuresAsJSON))
	for _, fig := range figuresAsJSON {
		encoded = append(encoded, base64.StdEncoding.EncodeToString(fig))
	}
	data := &struct {
		CDN     string
		Figures []string
	}{
		CDN:     PlotlySrc,
		Figures: encoded,
	}
	if err := singleFileHTMLTmpl.Execute(w, data); err != nil {
		return errors.Wrap(err, "failed to render plotly")
	}
	return nil
}

// WritePlotlyHTML renders the points as Plotly figures (one per metric type) in an HTML page.
func WritePlotlyHTML(w io.Writer, points []Point, logScale bool) error {
	figures, err := PlotlyFigures(points, logScale)
	if err != nil {
		return err
	}
	return WritePlotlyAsHTML(w, figures...)
}

// SavePlotlyHTML is like WritePlotlyHTML, but writes to a file.
func SavePlotlyHTML(fileName string, points []Point, logScale bool) error {
	f, err := os.Create(fileName)
	if err != nil {
		return errors.Wrapf(err, "failed to create file %q", fileName)
	}
	if err = WritePlotlyHTML(f, points, logScale); err != nil {
		_ = f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "failed to close file %q", fileName)
}
