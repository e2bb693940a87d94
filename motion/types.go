// Package motion is the planning and sequencing engine behind the eight
// DRV8825 channels: trapezoidal timing, double-buffered command slots
// toward the PIO step generator, the three-stage homing routine, and the
// shift-register autosleep policy.
package motion

import "octostep/core"

const (
	// MotorCount is the number of driver channels on the board.
	MotorCount = 8

	// DefaultLimit bounds travel in steps on either side of zero.
	DefaultLimit = 1200

	// DefaultTravelRange is the homing sweep when the request leaves it zero.
	DefaultTravelRange = DefaultLimit * 2

	// DefaultBackoff is the homing pull-away distance in steps.
	DefaultBackoff = 50

	// DefaultSpeedHz is the step rate used when a command omits one.
	DefaultSpeedHz = 4000

	// DefaultAcceleration is the ramp rate in steps/s^2.
	DefaultAcceleration = 16000
)

const microsPerSecond = 1000000

// Phase is the per-channel motion state machine.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseMoving
	PhaseHoming
)

// String returns the wire label for the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseMoving:
		return "MOVING"
	case PhaseHoming:
		return "HOMING"
	}
	return "UNKNOWN"
}

// FaultCode marks the standing fault on a channel.
type FaultCode uint8

const (
	FaultNone FaultCode = iota
	FaultLimitClipped
	FaultDriverFault
	// FaultHomingTimeout is reserved in the taxonomy; the sequencer is
	// time-bounded by its computed stage durations and never raises it.
	FaultHomingTimeout
)

// MoveResult is the outcome of a queue or homing request.
type MoveResult uint8

const (
	ResultScheduled MoveResult = iota
	ResultClippedToLimit
	ResultBusy
	ResultFault
)

// TimingEstimate is the trapezoidal profile summary for one burst.
type TimingEstimate struct {
	TotalSteps      uint32
	AccelSteps      uint32
	CruiseSteps     uint32
	TotalDurationUs uint32
}

// HomingRequest carries the optional overrides for BeginHoming.
// Zero values select the defaults.
type HomingRequest struct {
	TravelRange int64
	Backoff     int64
}

// MotorState is the read-only snapshot of one channel.
type MotorState struct {
	Position          int64
	TargetPosition    int64
	SpeedHz           int32
	Acceleration      int32
	Phase             Phase
	Asleep            bool
	Fault             FaultCode
	LimitClipped      bool
	PlannedDurationUs uint32
}

// ShiftRegisterPins names the SN74HC595 control lines.
type ShiftRegisterPins struct {
	Data  core.GPIOPin
	Clock core.GPIOPin
	Latch core.GPIOPin
}

// commandSlot is one half of a channel's double-buffered command pair.
type commandSlot struct {
	occupied         bool
	timing           TimingEstimate
	stepCount        uint32
	halfPeriodMicros uint32
	directionHigh    bool
}

// activePlan tracks the in-flight move or homing stage for one channel.
type activePlan struct {
	active                bool
	homingPhase           bool
	homingStep            uint8
	limitRecorded         bool
	backoffRecorded       bool
	elapsedUs             uint32
	startPosition         int64
	targetPosition        int64
	homingRange           int64
	homingBackoff         int64
	homingLimitPosition   int64
	homingBackoffPosition int64
	timing                TimingEstimate
}
