package motion

import "octostep/core"

// sleepRegister aggregates the per-channel nSLEEP bits and shifts the 8-bit
// pattern out through an SN74HC595 whenever any bit changes. The DRV8825
// sleep input is active low, so the default polarity inverts the asleep
// flags on the wire; activeHigh flips that for boards buffering the line.
type sleepRegister struct {
	configured bool
	activeHigh bool
	pins       ShiftRegisterPins
	states     [MotorCount]bool
}

// configure latches the control lines and polarity and marks every channel
// asleep. Pins all zero means the register is not wired; apply stays a
// no-op until real lines arrive.
func (r *sleepRegister) configure(pins ShiftRegisterPins, activeHigh bool) {
	r.pins = pins
	r.activeHigh = activeHigh
	r.configured = pins.Data != 0 || pins.Clock != 0 || pins.Latch != 0

	if r.configured {
		if drv := core.GetGPIODriver(); drv != nil {
			_ = drv.ConfigureOutput(pins.Data)
			_ = drv.ConfigureOutput(pins.Clock)
			_ = drv.ConfigureOutput(pins.Latch)
		}
	}
	for i := range r.states {
		r.states[i] = true
	}
}

func (r *sleepRegister) setChannel(channel int, asleep bool) {
	if channel < 0 || channel >= MotorCount {
		return
	}
	r.states[channel] = asleep
}

// apply assembles the pattern (bit i = channel i) and shifts it out
// MSB-first between a latch-low/latch-high pair.
func (r *sleepRegister) apply() {
	if !r.configured {
		return
	}
	drv := core.GetGPIODriver()
	if drv == nil {
		return
	}

	var pattern uint8
	for channel := 0; channel < MotorCount; channel++ {
		output := r.states[channel]
		if !r.activeHigh {
			output = !output
		}
		if output {
			pattern |= 1 << channel
		}
	}

	_ = drv.SetPin(r.pins.Latch, false)
	for bit := 7; bit >= 0; bit-- {
		_ = drv.SetPin(r.pins.Data, pattern&(1<<bit) != 0)
		_ = drv.SetPin(r.pins.Clock, true)
		_ = drv.SetPin(r.pins.Clock, false)
	}
	_ = drv.SetPin(r.pins.Latch, true)
}
