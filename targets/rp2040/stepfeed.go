//go:build rp2040

package main

import (
	"octostep/boards"
	"octostep/motion"
	"octostep/pio"
)

// Eight channels map one-to-one onto the RP2040's eight PIO state
// machines: channel i runs on PIO i/4, state machine i%4.

var (
	stepBackends [motion.MotorCount]*pio.StepperBackend

	// pushed tracks which exported slot snapshots have already been
	// latched into a FIFO, so a burst is fed exactly once.
	pushed [motion.MotorCount][2]bool

	// inFlight counts bursts latched but not yet acked back to the
	// manager.
	inFlight [motion.MotorCount]int
)

func initStepGenerators() {
	for channel := 0; channel < motion.MotorCount; channel++ {
		backend := pio.NewStepperBackend(uint8(channel/4), uint8(channel%4))
		if err := backend.Init(uint8(boards.RP2040StepPins[channel]), uint8(boards.RP2040DirPins[channel])); err != nil {
			continue
		}
		stepBackends[channel] = backend
	}
}

// feedStepGenerators acks drained bursts and pushes newly occupied command
// slots into the PIO FIFOs. The exported delayTicks carry the half-period
// in microseconds; the backend converts to state-machine ticks.
func feedStepGenerators(manager *motion.Manager) {
	var buffer pio.CommandBuffer

	for channel := 0; channel < motion.MotorCount; channel++ {
		backend := stepBackends[channel]
		if backend == nil {
			continue
		}

		// An empty FIFO means every latched burst has been consumed;
		// report that back so the active slot frees up.
		if inFlight[channel] > 0 && backend.Idle() {
			manager.MarkCommandExecuted(channel)
			inFlight[channel] = 0
		}

		manager.ExportCommandBuffer(channel, &buffer)
		for slot := 0; slot < 2; slot++ {
			if !buffer.Occupied[slot] {
				pushed[channel][slot] = false
				continue
			}
			if pushed[channel][slot] {
				continue
			}

			cmd := buffer.Slots[slot]
			if backend.QueueBurst(cmd.StepCount, cmd.DelayTicks, cmd.DirectionHigh) {
				pushed[channel][slot] = true
				inFlight[channel]++
			}
		}
	}
}
