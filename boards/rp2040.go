// Package boards pins down the wiring of supported carrier boards.
package boards

import (
	"octostep/core"
	"octostep/motion"
)

// STEP/DIR assignments for eight DRV8825 channels on the RP2040 carrier.
var (
	RP2040StepPins = [motion.MotorCount]core.GPIOPin{15, 17, 21, 22, 23, 24, 25, 26}
	RP2040DirPins  = [motion.MotorCount]core.GPIOPin{14, 18, 20, 4, 6, 27, 12, 13}
)

// RP2040ShiftRegister is the SN74HC595 control wiring (data, clock, latch).
var RP2040ShiftRegister = motion.ShiftRegisterPins{
	Data:  18, // SER
	Clock: 19, // SRCLK
	Latch: 20, // RCLK
}
