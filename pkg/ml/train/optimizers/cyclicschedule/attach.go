// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package cyclicschedule

import (
	"github.com/gomlx/clr/pkg/ml/train"
	"github.com/pkg/errors"
)

// AttachToLoop sets the learning rate of the loop's optimizer according to the schedule: before each
// epoch, or before each step if the schedule was configured with Config.PerStep.
//
// It returns an error wrapping train.ErrNoLearningRate if the optimizer doesn't expose its learning rate.
func (s *Schedule) AttachToLoop(loop *train.Loop) error {
	if err := train.AttachLearningRateScheduler(loop, Scope, s.LearningRate, s.perStep); err != nil {
		return errors.WithMessagef(err, "attaching %s", s)
	}
	return nil
}
