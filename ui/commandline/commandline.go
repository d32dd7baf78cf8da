// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package commandline contains convenience UI training tools for the command line.
package commandline

import (
	"fmt"
	"io"

	"github.com/gomlx/clr/pkg/ml/train"
)

// ReportMetrics writes the metrics returned by a training loop, named after the loop trainer's metrics,
// and the last learning rate set by a schedule, if any.
func ReportMetrics(w io.Writer, loop *train.Loop, metrics []float64) error {
	if _, err := fmt.Fprintf(w, "Results after %d steps:\n", loop.LoopStep); err != nil {
		return err
	}
	for metricIdx, name := range loop.Trainer.MetricsNames() {
		if metricIdx >= len(metrics) {
			break
		}
		if _, err := fmt.Fprintf(w, "\t%s: %.6g\n", name, metrics[metricIdx]); err != nil {
			return err
		}
	}
	if lr, ok := loop.SharedData[train.LearningRateKey].(float64); ok {
		if _, err := fmt.Fprintf(w, "\tlearning rate: %.6g\n", lr); err != nil {
			return err
		}
	}
	return nil
}
