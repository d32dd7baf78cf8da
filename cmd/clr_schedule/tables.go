// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"math"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/clr/pkg/ml/train/optimizers/cyclicschedule"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle = lipgloss.NewStyle().Faint(false).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Faint(true).
			PaddingLeft(1).PaddingRight(1)
	peakRowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "9", Dark: "9"}).
			Bold(true).
			PaddingLeft(1).PaddingRight(1)

	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)
)

// tableWithPeaks highlights the rows where the learning rate peaks in a cycle.
type tableWithPeaks struct {
	Table *lgtable.Table
	Count int
	Peaks map[int]bool
}

func (t *tableWithPeaks) Row(isPeak bool, row ...string) {
	if isPeak {
		t.Peaks[t.Count] = true
	}
	t.Table.Row(row...)
	t.Count++
}

func newTableWithPeaks(alignments ...lipgloss.Position) *tableWithPeaks {
	t := &tableWithPeaks{
		Peaks: make(map[int]bool),
	}
	t.Table = lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if row < 0 {
				s = headerRowStyle
				return
			}
			switch {
			case t.Peaks[row]:
				s = peakRowStyle
			case row%2 == 0:
				s = oddRowStyle
			default:
				s = evenRowStyle
			}
			alignment := lipgloss.Left
			if col < len(alignments) {
				alignment = alignments[col]
			} else if len(alignments) > 0 {
				alignment = alignments[len(alignments)-1]
			}
			s = s.Align(alignment)
			return
		})
	return t
}

// scheduleRow is one sampled epoch of the schedule.
type scheduleRow struct {
	Epoch, Cycle, Amplitude, LearningRate float64
	IsPeak                                bool
}

// sampleRows samples the schedule at the given epochs. A row is a peak if it is at the middle of a cycle,
// where the learning rate reaches base + (max-base)*amplitude.
func sampleRows(schedule *cyclicschedule.Schedule, epochs []float64) []scheduleRow {
	rows := make([]scheduleRow, 0, len(epochs))
	for _, epoch := range epochs {
		halfCycles := epoch / schedule.StepSize()
		rows = append(rows, scheduleRow{
			Epoch:        epoch,
			Cycle:        schedule.Cycle(epoch),
			Amplitude:    schedule.Amplitude(epoch),
			LearningRate: schedule.LearningRate(epoch),
			IsPeak:       halfCycles == math.Floor(halfCycles) && int64(halfCycles)%2 == 1,
		})
	}
	return rows
}

// formatEpoch with thousands separators for integer values.
func formatEpoch(epoch float64) string {
	if epoch == math.Floor(epoch) && math.Abs(epoch) < 1e15 {
		return humanize.Comma(int64(epoch))
	}
	return humanize.FtoaWithDigits(epoch, 4)
}

// scheduleTable renders the sampled rows of the schedule.
func scheduleTable(rows []scheduleRow, unit string) string {
	table := newTableWithPeaks(lipgloss.Right)
	table.Table.Headers(unit, "Cycle", "Amplitude", "Learning rate")
	for _, row := range rows {
		table.Row(row.IsPeak,
			formatEpoch(row.Epoch),
			humanize.Comma(int64(row.Cycle)),
			humanize.FtoaWithDigits(row.Amplitude, 6),
			fmt.Sprintf("%.6g", row.LearningRate))
	}
	return table.Table.Render()
}

// summaryTable renders the configuration of the schedule.
func summaryTable(schedule *cyclicschedule.Schedule) string {
	table := newTableWithPeaks(lipgloss.Right, lipgloss.Left)
	mode := schedule.Mode().String()
	if schedule.HasCustomScaleFn() {
		mode = "custom (b-spline over " + schedule.ScaleMode().String() + ")"
	}
	table.Row(false, "mode", mode)
	table.Row(false, "base learning rate", fmt.Sprintf("%g", schedule.BaseLearningRate()))
	table.Row(false, "max learning rate", fmt.Sprintf("%g", schedule.MaxLearningRate()))
	table.Row(false, "step size", humanize.FtoaWithDigits(schedule.StepSize(), 4))
	if gamma, ok := schedule.Gamma(); ok {
		table.Row(false, "gamma", fmt.Sprintf("%g", gamma))
	}
	table.Row(false, "per step", fmt.Sprintf("%v", schedule.PerStep()))
	return table.Table.Render()
}
