// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package cyclicschedule

// Mode selects the built-in amplitude function of the cyclic schedule.
type Mode int

//go:generate go tool enumer -type=Mode -trimprefix=Mode -transform=snake -values -text -json -yaml -output=gen_mode_enumer.go mode.go

const (
	// ModeTriangular keeps the amplitude constant: every cycle oscillates between the base and the max learning rate.
	ModeTriangular Mode = iota

	// ModeTriangular2 halves the amplitude at every cycle.
	ModeTriangular2

	// ModeExpRange scales the amplitude by gamma^iteration. It requires Config.Gamma.
	ModeExpRange
)

// ScaleMode defines what the amplitude function is evaluated on.
type ScaleMode int

//go:generate go tool enumer -type=ScaleMode -trimprefix=ScaleMode -transform=snake -values -text -json -yaml -output=gen_scalemode_enumer.go mode.go

const (
	// ScaleModeCycle evaluates the amplitude function on the cycle number, starting at 1.
	ScaleModeCycle ScaleMode = iota

	// ScaleModeIterations evaluates the amplitude function on the epoch (or iteration) index.
	ScaleModeIterations
)
