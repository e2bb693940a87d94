//go:build rp2040

package main

import "machine"

// InitUSB initializes USB serial communication.
// On RP2040, machine.Serial is USB CDC, not UART; the descriptors are set
// by TinyGo's runtime and the baud rate on the wire is ignored.
func InitUSB() {
	_ = machine.Serial.Configure(machine.UARTConfig{BaudRate: 115200})
}
