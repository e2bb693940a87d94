//go:build rp2040

package pio

// Hardware step generation on the RP2040's PIO blocks. Each channel gets
// one state machine running the step/dir program; the firmware feeds it
// one 32-bit word per exported command slot.

import (
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// The state machine runs at EffectiveClockHz so one delay tick equals one
// microsecond: the 12-bit dwell field then takes the slot's half-period
// directly, down to step rates of ~123 Hz before clamping.
const (
	EffectiveClockHz = 1000000
	clockDivider     = DefaultClockHz / EffectiveClockHz

	burstCountBits = 16
	dwellBits      = 12
	maxBurstCount  = 1<<burstCountBits - 1
	maxDwellTicks  = 1<<dwellBits - 1
)

// assembleStepDir builds the step/dir program. The OSR shifts right, so
// fields unpack LSB-first in instruction order:
//
//	bit  0      direction level, latched onto DIR before the first edge
//	bits 1-16   burst length (steps)
//	bits 17-28  half-period dwell in ticks
//
// The pulse loop raises STEP, burns the dwell in Y, drops STEP, and
// repeats until X runs out.
func assembleStepDir() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		asm.Pull(false, true).Encode(),
		asm.Out(rp2pio.OutDestPins, 1).Encode(),
		asm.Out(rp2pio.OutDestX, burstCountBits).Encode(),
		asm.Out(rp2pio.OutDestY, dwellBits).Encode(),
		// pulse loop
		asm.Set(rp2pio.SetDestPins, 1).Delay(3).Encode(),
		asm.Jmp(5, rp2pio.JmpYNZeroDec).Encode(),
		asm.Set(rp2pio.SetDestPins, 0).Delay(3).Encode(),
		asm.Jmp(4, rp2pio.JmpXNZeroDec).Encode(),
	}
}

// The jump targets above are absolute, so the program must load at zero.
const stepDirOrigin = 0

// StepperBackend drives one channel's STEP/DIR pair from a PIO state
// machine fed with bursts built from the exported slots.
type StepperBackend struct {
	pio     *rp2pio.PIO
	sm      rp2pio.StateMachine
	stepPin machine.Pin
	dirPin  machine.Pin
	offset  uint8
}

// NewStepperBackend binds a state machine on the given PIO block.
// pioNum: 0 for PIO0, 1 for PIO1. smNum: 0-3.
func NewStepperBackend(pioNum, smNum uint8) *StepperBackend {
	block := rp2pio.PIO0
	if pioNum != 0 {
		block = rp2pio.PIO1
	}
	return &StepperBackend{
		pio: block,
		sm:  block.StateMachine(smNum),
	}
}

// Init claims the state machine, loads the program, and hands both pins
// to the PIO block with STEP and DIR idling low.
func (b *StepperBackend) Init(stepPin, dirPin uint8) error {
	b.stepPin = machine.Pin(stepPin)
	b.dirPin = machine.Pin(dirPin)

	b.sm.TryClaim()

	program := assembleStepDir()
	offset, err := b.pio.AddProgram(program, stepDirOrigin)
	if err != nil {
		return err
	}
	b.offset = offset

	b.stepPin.Configure(machine.PinConfig{Mode: b.pio.PinMode()})
	b.dirPin.Configure(machine.PinConfig{Mode: b.pio.PinMode()})

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetSetPins(b.stepPin, 1)
	cfg.SetOutPins(b.dirPin, 1)
	// Explicit pull, right shift: fields unpack in the order the program
	// issues out instructions.
	cfg.SetOutShift(true, false, 32)
	cfg.SetWrap(offset+uint8(len(program))-1, offset)
	cfg.SetClkDivIntFrac(clockDivider, 0)

	b.sm.Init(offset, cfg)

	// Pin directions and idle levels only take effect once the state
	// machine owns the pins, after Init.
	b.sm.SetPindirsConsecutive(b.stepPin, 1, true)
	b.sm.SetPindirsConsecutive(b.dirPin, 1, true)
	b.sm.SetPinsConsecutive(b.stepPin, 1, false)
	b.sm.SetPinsConsecutive(b.dirPin, 1, false)

	b.sm.SetEnabled(true)
	return nil
}

// QueueBurst latches one slot's burst into the FIFO. Returns false when
// the FIFO is full; the feeder retries on the next tick.
func (b *StepperBackend) QueueBurst(stepCount, halfPeriodMicros uint32, directionHigh bool) bool {
	if b.sm.IsTxFIFOFull() {
		return false
	}

	count := stepCount
	if count > maxBurstCount {
		count = maxBurstCount
	}
	dwell := DelayTicksFromMicros(halfPeriodMicros, EffectiveClockHz)
	if dwell > maxDwellTicks {
		dwell = maxDwellTicks
	}

	word := count<<1 | dwell<<(1+burstCountBits)
	if directionHigh {
		word |= 1
	}
	b.sm.TxPut(word)
	return true
}

// Idle reports whether the state machine has drained its FIFO.
func (b *StepperBackend) Idle() bool {
	return b.sm.IsTxFIFOEmpty()
}

// Stop halts and restarts the state machine, discarding queued bursts.
func (b *StepperBackend) Stop() {
	b.sm.SetEnabled(false)
	b.sm.ClearFIFOs()
	b.sm.Restart()
	b.sm.SetEnabled(true)
}
