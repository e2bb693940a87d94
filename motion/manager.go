package motion

import (
	"math"

	"octostep/pio"
)

// Manager owns the eight channels: motion state, command slots toward the
// step generator, the active plans, and the sleep register. It is a single
// long-lived instance driven cooperatively by the host loop; nothing here
// blocks and no operation yields.
//
// Motion is modeled kinematically: Service advances each active plan
// against elapsed wall-clock microseconds and interpolates position
// linearly over the profile's total duration. That is the simulation
// contract status readers observe while the PIO generator emits the real
// pulses from the exported slots.
type Manager struct {
	motors     [MotorCount]MotorState
	plans      [MotorCount]activePlan
	slots      [MotorCount][2]commandSlot
	activeSlot [MotorCount]uint8

	sleep         sleepRegister
	positiveLimit int64
	negativeLimit int64
}

// NewManager returns a manager with every channel idle, asleep, and at
// position zero.
func NewManager() *Manager {
	m := &Manager{
		positiveLimit: DefaultLimit,
		negativeLimit: -DefaultLimit,
	}
	m.Reset()
	return m
}

// Reset returns every channel to the power-on state and republishes the
// sleep register.
func (m *Manager) Reset() {
	for i := 0; i < MotorCount; i++ {
		m.motors[i] = MotorState{
			SpeedHz:      DefaultSpeedHz,
			Acceleration: DefaultAcceleration,
			Phase:        PhaseIdle,
			Asleep:       true,
		}
		m.slots[i][0] = commandSlot{}
		m.slots[i][1] = commandSlot{}
		m.activeSlot[i] = 0
		m.plans[i] = activePlan{}

		m.sleep.setChannel(i, true)
	}
	m.sleep.apply()
}

// reserveSlot picks the writable slot for a new plan: the active slot when
// free, else the alternate. Both occupied means the pipeline is stalled.
func (m *Manager) reserveSlot(channel int) bool {
	slot := m.activeSlot[channel]
	if m.slots[channel][slot].occupied {
		alternate := (slot + 1) % 2
		if m.slots[channel][alternate].occupied {
			return false
		}
		slot = alternate
	}
	m.activeSlot[channel] = slot
	return true
}

// QueueMove plans an absolute move on the channel. The target is clamped
// to the soft limits; a clamped accept reports ResultClippedToLimit and
// leaves a sticky FaultLimitClipped until the next accepted move.
func (m *Manager) QueueMove(channel int, targetPosition int64, speedHz, acceleration int32) (MoveResult, TimingEstimate) {
	if channel < 0 || channel >= MotorCount {
		return ResultFault, TimingEstimate{}
	}

	motor := &m.motors[channel]
	if motor.Phase == PhaseHoming {
		return ResultBusy, TimingEstimate{}
	}
	if motor.Fault == FaultDriverFault {
		return ResultFault, TimingEstimate{}
	}

	if !m.reserveSlot(channel) {
		return ResultBusy, TimingEstimate{}
	}

	clamped := targetPosition
	if clamped > m.positiveLimit {
		clamped = m.positiveLimit
	}
	if clamped < m.negativeLimit {
		clamped = m.negativeLimit
	}
	clipped := clamped != targetPosition

	steps := uint32(abs64(clamped - motor.Position))
	timing := ComputeTiming(steps, speedHz, acceleration)

	return m.commitMove(channel, clamped, speedHz, acceleration, steps, timing, clipped), timing
}

func (m *Manager) commitMove(channel int, clampedTarget int64, speedHz, acceleration int32, steps uint32, timing TimingEstimate, clipped bool) MoveResult {
	motor := &m.motors[channel]
	plan := &m.plans[channel]

	motor.TargetPosition = clampedTarget
	motor.SpeedHz = speedHz
	motor.Acceleration = acceleration
	motor.LimitClipped = clipped
	motor.PlannedDurationUs = timing.TotalDurationUs

	result := ResultScheduled
	if clipped {
		result = ResultClippedToLimit
	}

	if timing.TotalSteps == 0 || timing.TotalDurationUs == 0 {
		// Degenerate move: snap and park without waking the driver.
		motor.Position = clampedTarget
		motor.Phase = PhaseIdle
		motor.Asleep = true
		motor.Fault = FaultNone
		if clipped {
			motor.Fault = FaultLimitClipped
		}
		*plan = activePlan{}
		m.slots[channel][m.activeSlot[channel]] = commandSlot{}
		m.updateAutosleep(channel)
		return result
	}

	*plan = activePlan{
		active:         true,
		startPosition:  motor.Position,
		targetPosition: clampedTarget,
		timing:         timing,
	}

	m.slots[channel][m.activeSlot[channel]] = commandSlot{
		occupied:         true,
		timing:           timing,
		stepCount:        steps,
		halfPeriodMicros: halfPeriodMicros(speedHz),
		directionHigh:    clampedTarget >= plan.startPosition,
	}

	motor.Phase = PhaseMoving
	motor.Asleep = false
	motor.Fault = FaultNone
	if clipped {
		motor.Fault = FaultLimitClipped
	}
	m.updateAutosleep(channel)

	return result
}

// BeginHoming starts the three-stage homing routine: drive into the
// negative limit, back off, then park at mid-travel. Completion re-zeroes
// the channel.
func (m *Manager) BeginHoming(channel int, request HomingRequest) MoveResult {
	if channel < 0 || channel >= MotorCount {
		return ResultFault
	}

	motor := &m.motors[channel]
	if motor.Phase == PhaseMoving {
		return ResultBusy
	}

	rng := request.TravelRange
	if rng == 0 {
		rng = DefaultTravelRange
	}
	if rng < 2 {
		return ResultFault
	}
	backoff := request.Backoff
	if backoff == 0 {
		backoff = DefaultBackoff
	}
	if backoff < 0 {
		backoff = 0
	}
	if backoff >= rng {
		backoff = rng - 1
	}

	if !m.reserveSlot(channel) {
		return ResultBusy
	}

	plan := &m.plans[channel]
	*plan = activePlan{
		homingPhase:   true,
		homingRange:   rng,
		homingBackoff: backoff,
	}

	motor.Phase = PhaseHoming
	motor.Asleep = false
	motor.LimitClipped = false
	motor.Fault = FaultNone

	m.configureHomingStage(channel, plan)
	if !plan.active {
		// Every stage degenerated; the channel is already home.
		motor.Position = 0
		motor.TargetPosition = 0
		motor.Phase = PhaseIdle
		motor.Asleep = true
		motor.PlannedDurationUs = 0
		m.updateAutosleep(channel)
		return ResultScheduled
	}

	motor.PlannedDurationUs = plan.timing.TotalDurationUs
	m.updateAutosleep(channel)
	return ResultScheduled
}

// Service advances every active plan by elapsedUs of wall-clock time.
// Channels are visited in ascending index order.
func (m *Manager) Service(elapsedUs uint32) {
	if elapsedUs == 0 {
		return
	}

	for channel := 0; channel < MotorCount; channel++ {
		plan := &m.plans[channel]
		motor := &m.motors[channel]

		if !plan.active {
			continue
		}

		elapsed := uint64(plan.elapsedUs) + uint64(elapsedUs)
		if elapsed > uint64(plan.timing.TotalDurationUs) {
			elapsed = uint64(plan.timing.TotalDurationUs)
		}
		plan.elapsedUs = uint32(elapsed)

		if plan.timing.TotalDurationUs > 0 {
			progress := float64(plan.elapsedUs) / float64(plan.timing.TotalDurationUs)
			delta := plan.targetPosition - plan.startPosition
			motor.Position = plan.startPosition + int64(math.Round(progress*float64(delta)))
		}

		if plan.elapsedUs < plan.timing.TotalDurationUs {
			continue
		}

		motor.Position = plan.targetPosition
		m.slots[channel][m.activeSlot[channel]].occupied = false

		if plan.homingPhase {
			m.finishHomingStage(channel, plan, motor)
			continue
		}

		*plan = activePlan{}
		motor.Phase = PhaseIdle
		motor.Position = motor.TargetPosition
		motor.Asleep = true
		motor.PlannedDurationUs = 0
		m.updateAutosleep(channel)
	}
}

// ForceSleep discards the active plan and both slots and parks the channel
// asleep immediately.
func (m *Manager) ForceSleep(channel int) {
	if channel < 0 || channel >= MotorCount {
		return
	}
	m.motors[channel].Phase = PhaseIdle
	m.motors[channel].Asleep = true
	m.motors[channel].PlannedDurationUs = 0
	m.plans[channel] = activePlan{}
	m.slots[channel][0] = commandSlot{}
	m.slots[channel][1] = commandSlot{}
	m.activeSlot[channel] = 0
	m.updateAutosleep(channel)
}

// ForceWake drives the channel awake without touching faults or plans.
func (m *Manager) ForceWake(channel int) {
	if channel < 0 || channel >= MotorCount {
		return
	}
	m.motors[channel].Asleep = false
	m.updateAutosleep(channel)
}

// InjectFault records the fault and parks the channel like ForceSleep.
func (m *Manager) InjectFault(channel int, fault FaultCode) {
	if channel < 0 || channel >= MotorCount {
		return
	}
	m.motors[channel].Fault = fault
	m.motors[channel].Phase = PhaseIdle
	m.motors[channel].PlannedDurationUs = 0
	m.motors[channel].Asleep = true
	m.plans[channel] = activePlan{}
	m.slots[channel][0] = commandSlot{}
	m.slots[channel][1] = commandSlot{}
	m.activeSlot[channel] = 0
	m.updateAutosleep(channel)
}

// ClearFault clears the standing fault and nothing else.
func (m *Manager) ClearFault(channel int) {
	if channel < 0 || channel >= MotorCount {
		return
	}
	m.motors[channel].Fault = FaultNone
}

// State returns a snapshot of the channel. Out-of-range channels read as a
// zero state.
func (m *Manager) State(channel int) MotorState {
	if channel < 0 || channel >= MotorCount {
		return MotorState{}
	}
	return m.motors[channel]
}

// MarkCommandExecuted is the step generator's ack that the active slot's
// burst has been consumed.
func (m *Manager) MarkCommandExecuted(channel int) {
	if channel < 0 || channel >= MotorCount {
		return
	}
	m.slots[channel][m.activeSlot[channel]] = commandSlot{}
}

// ConfigureShiftRegister wires the sleep register lines and publishes the
// current asleep states once.
func (m *Manager) ConfigureShiftRegister(pins ShiftRegisterPins, activeHigh bool) {
	m.sleep.configure(pins, activeHigh)
	for i := 0; i < MotorCount; i++ {
		m.sleep.setChannel(i, m.motors[i].Asleep)
	}
	m.sleep.apply()
}

// ExportCommandBuffer fills out with the raw two-slot snapshot for the
// step generator. delayTicks carries the half-period in microseconds; the
// rp2040 PIO backend converts to clock ticks with pio.DelayTicksFromMicros.
func (m *Manager) ExportCommandBuffer(channel int, out *pio.CommandBuffer) {
	if channel < 0 || channel >= MotorCount || out == nil {
		return
	}
	for index := 0; index < 2; index++ {
		source := &m.slots[channel][index]
		out.Slots[index].StepCount = source.stepCount
		out.Slots[index].DelayTicks = source.halfPeriodMicros
		out.Slots[index].DirectionHigh = source.directionHigh
		out.Occupied[index] = source.occupied
	}
}

func (m *Manager) updateAutosleep(channel int) {
	m.sleep.setChannel(channel, m.motors[channel].Asleep)
	m.sleep.apply()
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
