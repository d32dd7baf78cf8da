// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package train

import "github.com/gomlx/clr/pkg/ml/train/optimizers"

// Trainer executes one training step on a batch. It is implemented by the model being trained:
// the Loop doesn't know anything about the model, it only drives the trainer.
type Trainer interface {
	// TrainStep trains on one batch of examples, and returns the metrics for the step.
	// The first metric must be the batch loss: the Loop interrupts the training if it becomes NaN or infinite.
	TrainStep(inputs [][]float64, labels []float64) (metrics []float64, err error)

	// MetricsNames returns the names of the metrics returned by TrainStep, in the same order.
	MetricsNames() []string

	// Optimizer used by the trainer. Learning rate schedules require it to implement
	// optimizers.LearningRateSetter.
	Optimizer() optimizers.Interface
}

// Dataset yields batches of examples for training.
type Dataset interface {
	// Name of the dataset, used for logging and error reporting.
	Name() string

	// Yield one batch of inputs (one row per example) and labels. It returns io.EOF at the end of an epoch.
	Yield() (inputs [][]float64, labels []float64, err error)

	// Reset restarts the dataset after it reached the end of the epoch.
	Reset()
}
