package motion

// Homing runs three stages through the same plan executor, re-entered by
// stage index rather than by callback:
//
//	stage 0  approach — drive homingRange steps toward the negative stop
//	stage 1  backoff  — pull homingBackoff steps away from the recorded stop
//	stage 2  center   — park at recorded stop + homingRange/2
//
// The achieved position of stages 0 and 1 is recorded so the center stage
// can base itself on where the sweep actually ended.

// finishHomingStage handles a homing plan whose stage just completed:
// record the achieved position, advance the stage counter, flip the slot
// pair, and either install the next stage or terminate at origin.
func (m *Manager) finishHomingStage(channel int, plan *activePlan, motor *MotorState) {
	if plan.homingStep == 0 {
		plan.limitRecorded = true
		plan.homingLimitPosition = motor.Position
	} else if plan.homingStep == 1 {
		plan.backoffRecorded = true
		plan.homingBackoffPosition = motor.Position
	}

	plan.homingStep++
	if plan.homingStep <= 2 {
		m.activeSlot[channel] = (m.activeSlot[channel] + 1) % 2
		m.configureHomingStage(channel, plan)
		if plan.active {
			motor.Phase = PhaseHoming
			motor.Asleep = false
			motor.PlannedDurationUs = plan.timing.TotalDurationUs
			m.updateAutosleep(channel)
			return
		}
	}

	// All stages done (or the tail degenerated): the backed-off center is
	// the new origin.
	*plan = activePlan{}
	motor.Position = 0
	motor.TargetPosition = 0
	motor.Phase = PhaseIdle
	motor.Asleep = true
	motor.LimitClipped = false
	motor.Fault = FaultNone
	motor.PlannedDurationUs = 0
	m.updateAutosleep(channel)
}

// configureHomingStage installs the plan and command slot for the current
// homing stage. A degenerate stage (zero steps or zero duration) snaps the
// position and cascades straight into the next stage; if the final stage
// degenerates the plan is left inactive for the caller to terminate.
func (m *Manager) configureHomingStage(channel int, plan *activePlan) {
	motor := &m.motors[channel]

	if plan.homingStep > 2 {
		plan.active = false
		return
	}

	plan.startPosition = motor.Position
	switch plan.homingStep {
	case 0:
		plan.targetPosition = plan.startPosition - plan.homingRange
	case 1:
		plan.targetPosition = plan.startPosition + plan.homingBackoff
	case 2:
		limitBase := plan.startPosition - plan.homingBackoff
		if plan.limitRecorded {
			limitBase = plan.homingLimitPosition
		}
		plan.targetPosition = limitBase + plan.homingRange/2
	default:
		plan.active = false
		return
	}

	steps := uint32(abs64(plan.targetPosition - plan.startPosition))
	plan.timing = ComputeTiming(steps, motor.SpeedHz, motor.Acceleration)
	plan.elapsedUs = 0

	slot := &m.slots[channel][m.activeSlot[channel]]
	*slot = commandSlot{}

	if steps == 0 || plan.timing.TotalDurationUs == 0 {
		motor.Position = plan.targetPosition
		motor.TargetPosition = plan.targetPosition
		plan.active = false
		if plan.homingStep < 2 {
			plan.homingStep++
			m.configureHomingStage(channel, plan)
		}
		return
	}

	slot.occupied = true
	slot.timing = plan.timing
	slot.stepCount = steps
	slot.halfPeriodMicros = halfPeriodMicros(motor.SpeedHz)
	slot.directionHigh = plan.targetPosition >= plan.startPosition

	plan.active = true
	motor.TargetPosition = plan.targetPosition
	motor.PlannedDurationUs = plan.timing.TotalDurationUs
}
