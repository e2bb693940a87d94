//go:build rp2040

package main

import (
	"machine"
	"time"

	"octostep/boards"
	"octostep/control"
	"octostep/core"
)

var (
	processor *control.Processor
	assembler control.LineAssembler

	lastServiceTime time.Time
)

func main() {
	// Disable watchdog on boot to clear any previous state
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	InitUSB()

	core.SetGPIODriver(NewRPGPIODriver())

	processor = control.NewProcessor()
	processor.Reset()
	processor.ConfigureShiftRegister(boards.RP2040ShiftRegister, false)

	initStepGenerators()

	lastServiceTime = time.Now()
	writeLine("CTRL:READY")

	for {
		serviceTick()
		drainSerial()

		// Yield to other goroutines
		time.Sleep(50 * time.Microsecond)
	}
}

// serviceTick advances the motion engine by the wall-clock delta and feeds
// any freshly planned bursts to the PIO generators.
func serviceTick() {
	now := time.Now()
	elapsed := now.Sub(lastServiceTime).Microseconds()
	if elapsed <= 0 {
		return
	}
	lastServiceTime = now
	processor.Service(uint32(elapsed))
	feedStepGenerators(processor.Manager())
}

// drainSerial consumes buffered USB CDC bytes into command lines.
func drainSerial() {
	for machine.Serial.Buffered() > 0 {
		b, err := machine.Serial.ReadByte()
		if err != nil {
			return
		}

		line, complete, overflowed := assembler.Feed(b)
		if !complete {
			continue
		}
		if overflowed {
			writeLine("CTRL:" + control.RespPayloadTooLong.String())
			continue
		}

		response := processor.ProcessLine(line)
		for _, text := range response.Lines() {
			writeLine(text)
		}
	}
}

func writeLine(text string) {
	_, _ = machine.Serial.Write([]byte(text))
	_ = machine.Serial.WriteByte('\n')
}
