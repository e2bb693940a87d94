package motion

import (
	"testing"

	"octostep/pio"
)

func exportSlot(t *testing.T, m *Manager, channel, slot int) pio.StepperCommand {
	t.Helper()
	var buffer pio.CommandBuffer
	m.ExportCommandBuffer(channel, &buffer)
	if !buffer.Occupied[slot] {
		t.Fatalf("expected slot %d occupied, occupancy %+v", slot, buffer.Occupied)
	}
	return buffer.Slots[slot]
}

func TestHomingStageSequence(t *testing.T) {
	m := NewManager()

	result := m.BeginHoming(4, HomingRequest{TravelRange: 2400, Backoff: 100})
	if result != ResultScheduled {
		t.Fatalf("expected Scheduled, got %d", result)
	}

	state := m.State(4)
	if state.Phase != PhaseHoming || state.Asleep {
		t.Fatalf("expected HOMING awake, got %+v", state)
	}

	// Stage 0: approach sweeps the full travel range toward the stop.
	cmd := exportSlot(t, m, 4, 0)
	if cmd.StepCount != 2400 {
		t.Errorf("stage 0: expected 2400 steps, got %d", cmd.StepCount)
	}
	if cmd.DirectionHigh {
		t.Errorf("stage 0: expected DIR low toward the negative stop")
	}

	m.Service(m.State(4).PlannedDurationUs + 100)
	if got := m.State(4).Position; got != -2400 {
		t.Errorf("expected approach to end at -2400, got %d", got)
	}

	// Stage 1: back off from the recorded stop, on the flipped slot.
	cmd = exportSlot(t, m, 4, 1)
	if cmd.StepCount != 100 {
		t.Errorf("stage 1: expected 100 steps, got %d", cmd.StepCount)
	}
	if !cmd.DirectionHigh {
		t.Errorf("stage 1: expected DIR high away from the stop")
	}

	m.Service(m.State(4).PlannedDurationUs + 100)
	if got := m.State(4).Position; got != -2300 {
		t.Errorf("expected backoff to end at -2300, got %d", got)
	}

	// Stage 2: park at recorded stop + range/2.
	cmd = exportSlot(t, m, 4, 0)
	if cmd.StepCount != 1100 {
		t.Errorf("stage 2: expected 1100 steps, got %d", cmd.StepCount)
	}

	m.Service(m.State(4).PlannedDurationUs + 100)

	state = m.State(4)
	if state.Position != 0 || state.TargetPosition != 0 {
		t.Errorf("expected homing to zero the channel, got pos=%d target=%d", state.Position, state.TargetPosition)
	}
	if state.Phase != PhaseIdle || !state.Asleep {
		t.Errorf("expected parked idle/asleep, got %+v", state)
	}
	if state.Fault != FaultNone || state.LimitClipped {
		t.Errorf("expected clean fault state after homing, got %+v", state)
	}

	var buffer pio.CommandBuffer
	m.ExportCommandBuffer(4, &buffer)
	if buffer.Occupied[0] || buffer.Occupied[1] {
		t.Errorf("expected slots released after homing, got %+v", buffer.Occupied)
	}
}

func TestHomingDefaultsAndBusy(t *testing.T) {
	m := NewManager()

	if result := m.BeginHoming(2, HomingRequest{}); result != ResultScheduled {
		t.Fatalf("expected Scheduled with defaults, got %d", result)
	}

	if result, _ := m.QueueMove(2, 10, 4000, 16000); result != ResultBusy {
		t.Errorf("expected Busy while homing, got %d", result)
	}

	// Drain all three stages.
	for stage := 0; stage < 3; stage++ {
		planned := m.State(2).PlannedDurationUs
		if planned == 0 {
			break
		}
		m.Service(planned + 100)
	}

	state := m.State(2)
	if state.Phase != PhaseIdle || state.Position != 0 {
		t.Fatalf("homing did not drain: %+v", state)
	}

	if result, _ := m.QueueMove(2, 10, 4000, 16000); result != ResultScheduled {
		t.Errorf("expected Scheduled after homing drained, got %d", result)
	}
}

func TestHomingValidation(t *testing.T) {
	m := NewManager()

	if result := m.BeginHoming(MotorCount, HomingRequest{}); result != ResultFault {
		t.Errorf("expected Fault for invalid channel, got %d", result)
	}
	if result := m.BeginHoming(0, HomingRequest{TravelRange: 1}); result != ResultFault {
		t.Errorf("expected Fault for range < 2, got %d", result)
	}

	m.QueueMove(1, 500, 4000, 16000)
	if result := m.BeginHoming(1, HomingRequest{}); result != ResultBusy {
		t.Errorf("expected Busy while moving, got %d", result)
	}
}

func TestHomingBackoffClampedToRange(t *testing.T) {
	m := NewManager()

	if result := m.BeginHoming(0, HomingRequest{TravelRange: 100, Backoff: 500}); result != ResultScheduled {
		t.Fatalf("expected Scheduled, got %d", result)
	}

	// Stage 0 sweeps the range.
	cmd := exportSlot(t, m, 0, 0)
	if cmd.StepCount != 100 {
		t.Errorf("stage 0: expected 100 steps, got %d", cmd.StepCount)
	}
	m.Service(m.State(0).PlannedDurationUs + 100)

	// Backoff was clamped to range-1.
	cmd = exportSlot(t, m, 0, 1)
	if cmd.StepCount != 99 {
		t.Errorf("stage 1: expected clamped backoff of 99 steps, got %d", cmd.StepCount)
	}

	m.Service(m.State(0).PlannedDurationUs + 100)
	m.Service(m.State(0).PlannedDurationUs + 100)

	state := m.State(0)
	if state.Position != 0 || state.Phase != PhaseIdle {
		t.Errorf("expected homing to finish at origin, got %+v", state)
	}
}

func TestHomingZeroBackoffCascades(t *testing.T) {
	m := NewManager()

	// Negative backoff clamps to zero, so stage 1 degenerates and the
	// sequencer cascades straight into the center stage.
	if result := m.BeginHoming(3, HomingRequest{TravelRange: 200, Backoff: -1}); result != ResultScheduled {
		t.Fatalf("expected Scheduled, got %d", result)
	}

	m.Service(m.State(3).PlannedDurationUs + 100) // approach done
	state := m.State(3)
	if state.Phase != PhaseHoming {
		t.Fatalf("expected center stage still homing, got %s", state.Phase)
	}

	m.Service(state.PlannedDurationUs + 100)
	state = m.State(3)
	if state.Position != 0 || state.Phase != PhaseIdle {
		t.Errorf("expected origin after cascade, got %+v", state)
	}
}

func TestHomingClearsStandingFault(t *testing.T) {
	m := NewManager()

	m.InjectFault(5, FaultDriverFault)
	if result := m.BeginHoming(5, HomingRequest{}); result != ResultScheduled {
		t.Fatalf("expected homing to start over a standing fault, got %d", result)
	}
	if got := m.State(5).Fault; got != FaultNone {
		t.Errorf("expected fault cleared by homing start, got %d", got)
	}
}
