//go:build rp2040

package main

import (
	"errors"
	"machine"

	"octostep/core"
)

// RPGPIODriver implements core.GPIODriver on RP2040 hardware pins.
type RPGPIODriver struct {
	configured [30]bool
}

// NewRPGPIODriver creates the RP2040 GPIO driver.
func NewRPGPIODriver() *RPGPIODriver {
	return &RPGPIODriver{}
}

// ConfigureOutput configures a pin as a digital output.
func (d *RPGPIODriver) ConfigureOutput(pin core.GPIOPin) error {
	if int(pin) >= len(d.configured) {
		return errors.New("pin out of range")
	}
	machine.Pin(pin).Configure(machine.PinConfig{Mode: machine.PinOutput})
	d.configured[pin] = true
	return nil
}

// SetPin sets the pin to high (true) or low (false).
func (d *RPGPIODriver) SetPin(pin core.GPIOPin, value bool) error {
	if int(pin) >= len(d.configured) || !d.configured[pin] {
		return errors.New("pin not configured")
	}
	machine.Pin(pin).Set(value)
	return nil
}
